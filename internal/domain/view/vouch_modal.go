package view

import (
	"context"
	"fmt"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/mutation"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/topics"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/voting"
)

// Voucher sends "plus.vouch".
type Voucher interface {
	Vouch(ctx context.Context, req model.VouchRequest) error
}

// EligibilityFunc returns the viewer's current eligibility to vouch.
type EligibilityFunc func(ctx context.Context) (model.Tier, error)

// VouchTierOptions lists the tiers a holder of canVouchFor may vouch for,
// highest first. It is empty when canVouchFor is not a tier.
func VouchTierOptions(canVouchFor model.Tier) []model.Tier {
	var out []model.Tier
	for _, t := range model.Tiers {
		if t.AtMost(canVouchFor) {
			out = append(out, t)
		}
	}
	return out
}

// VouchModal lets an eligible member vouch for a user.
type VouchModal struct {
	canVouchFor model.Tier
	voting      voting.Predicate
	eligibility EligibilityFunc
	form        *mutation.Form[validation.VouchForm, model.VouchRequest]
}

// NewVouchModal creates a closed modal. eligibility may be nil, in which
// case canVouchFor is trusted at submit time.
func NewVouchModal(
	canVouchFor model.Tier,
	client Voucher,
	vote voting.Predicate,
	eligibility EligibilityFunc,
	v *validation.Validator,
	opts ...mutation.Option,
) *VouchModal {
	m := &VouchModal{canVouchFor: canVouchFor, voting: vote, eligibility: eligibility}
	m.form = mutation.New(mutation.Config[validation.VouchForm, model.VouchRequest]{
		Name:           MutationVouch,
		Schema:         validation.SchemaVouch,
		Validator:      v,
		Guard:          m.checkEligibility,
		Build:          buildVouch,
		Send:           client.Vouch,
		Invalidates:    []querycache.Topic{topics.Statuses},
		SuccessMessage: "Successfully vouched",
		Initial: func() validation.VouchForm {
			return validation.VouchForm{Tier: int(canVouchFor), Region: string(model.RegionNA)}
		},
	}, opts...)
	return m
}

func buildVouch(f validation.VouchForm) model.VouchRequest {
	return model.VouchRequest{
		VouchedID: model.UserID(f.VouchedID),
		Tier:      model.Tier(f.Tier),
		Region:    model.Region(f.Region),
	}
}

// checkEligibility refuses tiers above the viewer's current eligibility.
func (m *VouchModal) checkEligibility(ctx context.Context, f validation.VouchForm) error {
	limit := m.canVouchFor
	if m.eligibility != nil {
		current, err := m.eligibility(ctx)
		if err != nil {
			return fmt.Errorf("check eligibility: %w", err)
		}
		limit = current
	}
	if !model.Tier(f.Tier).AtMost(limit) {
		return ErrNotEligible
	}
	return nil
}

// Available reports whether the vouch button is shown.
func (m *VouchModal) Available() bool {
	return m.canVouchFor.Valid() && !m.voting.IsHappening()
}

// TierOptions lists the selectable tiers.
func (m *VouchModal) TierOptions() []model.Tier { return VouchTierOptions(m.canVouchFor) }

// RegionOptions lists the selectable regions.
func (m *VouchModal) RegionOptions() []model.Region { return model.Regions }

// Open shows the modal.
func (m *VouchModal) Open() error {
	if !m.Available() {
		return ErrNotAllowed
	}
	m.form.Open()
	return nil
}

// Close hides the modal and resets its fields.
func (m *VouchModal) Close() { m.form.Close() }

// IsOpen reports whether the modal is shown.
func (m *VouchModal) IsOpen() bool { return m.form.Visible() }

// Select sets the user to vouch for.
func (m *VouchModal) Select(id model.UserID) {
	m.form.Edit(func(f *validation.VouchForm) { f.VouchedID = int64(id) })
}

// SetTier picks a tier. Tiers outside TierOptions are kept and rejected on
// submit.
func (m *VouchModal) SetTier(t model.Tier) {
	m.form.Edit(func(f *validation.VouchForm) { f.Tier = int(t) })
}

// SetRegion picks a region.
func (m *VouchModal) SetRegion(r model.Region) {
	m.form.Edit(func(f *validation.VouchForm) { f.Region = string(r) })
}

// Submit validates and sends the vouch. It returns ErrNotAllowed unless the
// modal is open and still available.
func (m *VouchModal) Submit(ctx context.Context) error {
	if !m.form.Visible() || !m.Available() {
		return ErrNotAllowed
	}
	return m.form.Submit(ctx)
}

// Form exposes the modal form state.
func (m *VouchModal) Form() mutation.Snapshot[validation.VouchForm] { return m.form.Snapshot() }

// Unmount detaches the modal.
func (m *VouchModal) Unmount() { m.form.Unmount() }
