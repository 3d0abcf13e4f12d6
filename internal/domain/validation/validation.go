// Package validation checks form input against declarative schemas before
// anything is sent over the network.
//
// Schemas are plain structs carrying validator tags. Violations are reported
// as FieldErrors: one human-readable message per offending field.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/pkg/metrics"
)

// DefaultDescriptionLimit bounds suggestion and comment descriptions.
const DefaultDescriptionLimit = 500

// FieldError is one violation, keyed by the field's JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is the result of a failed validation.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, e := range fe {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrInvalid) match.
func (fe FieldErrors) Is(target error) bool { return target == ErrInvalid }

// Get returns the message for field, or "".
func (fe FieldErrors) Get(field string) string {
	for _, e := range fe {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

// Validator validates schemas. It is safe for concurrent use.
type Validator struct {
	v     *validator.Validate
	limit int
}

// Option configures a Validator.
type Option func(*Validator)

// WithDescriptionLimit sets the description length limit. Non-positive
// values are ignored.
func WithDescriptionLimit(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.limit = n
		}
	}
}

// New creates a Validator with the custom rules registered.
func New(opts ...Option) *Validator {
	val := &Validator{
		v:     validator.New(validator.WithRequiredStructEnabled()),
		limit: DefaultDescriptionLimit,
	}
	for _, opt := range opts {
		opt(val)
	}

	val.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(val.v, "desclimit", func(fl validator.FieldLevel) bool {
		return Count(fl.Field().String()) <= val.limit
	})
	mustRegister(val.v, "tagcode", func(fl validator.FieldLevel) bool {
		_, ok := model.LookupTag(model.TagCode(fl.Field().String()))
		return ok
	})
	mustRegister(val.v, "formatcode", func(fl validator.FieldLevel) bool {
		_, ok := model.LookupFormat(model.FormatCode(fl.Field().String()))
		return ok
	})
	return val
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

// Limit returns the description length limit.
func (v *Validator) Limit() int { return v.limit }

// Count is the length the description limit is measured in.
func Count(s string) int { return utf8.RuneCountInString(s) }

// Counter renders the live "n/limit" description counter.
func (v *Validator) Counter(description string) string {
	return fmt.Sprintf("%d/%d", Count(description), v.limit)
}

// Validate checks form against its tags. It returns nil or FieldErrors.
// schema only labels metrics.
func (v *Validator) Validate(schema string, form any) error {
	err := v.v.Struct(form)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe)
		metrics.RecordValidationFailure(schema, field)
		out = append(out, FieldError{Field: field, Message: v.message(fe)})
	}
	return out
}

// fieldPath strips the top-level struct name from the namespace, so nested
// fields read "tags[1]" instead of "EventForm.tags[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "desclimit":
		return fmt.Sprintf("Must be at most %d characters", v.limit)
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "Must be a valid URL"
	case "tagcode":
		return "Unknown tag"
	case "formatcode":
		return "Unknown format"
	default:
		return "Invalid value"
	}
}

// Suggestion converts a model request to its schema.
func Suggestion(r model.SuggestionRequest) SuggestionForm {
	return SuggestionForm{
		SuggestedID: int64(r.SuggestedID),
		Tier:        int(r.Tier),
		Region:      string(r.Region),
		Description: r.Description,
	}
}

// Vouch converts a model request to its schema.
func Vouch(r model.VouchRequest) VouchForm {
	return VouchForm{
		VouchedID: int64(r.VouchedID),
		Tier:      int(r.Tier),
		Region:    string(r.Region),
	}
}

// Event converts event input to its schema.
func Event(in model.EventInput) EventForm {
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		tags = append(tags, string(t))
	}
	return EventForm{
		Name:             in.Name,
		Date:             in.Date,
		EventURL:         in.EventURL,
		DiscordInviteURL: in.DiscordInviteURL,
		Tags:             tags,
		Description:      in.Description,
		Format:           string(in.Format),
	}
}
