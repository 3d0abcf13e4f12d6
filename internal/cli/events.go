package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/policy"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/view"
)

// eventFlags are the editable event fields as command flags.
type eventFlags struct {
	name        string
	date        string
	url         string
	discord     string
	tags        []string
	description string
	format      string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "event name")
	cmd.Flags().StringVar(&f.date, "date", "", "start time, RFC 3339 (e.g. 2026-11-07T18:00:00Z)")
	cmd.Flags().StringVar(&f.url, "url", "", "registration URL")
	cmd.Flags().StringVar(&f.discord, "discord", "", "Discord invite URL")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag code, repeatable (e.g. SZ, MONEY)")
	cmd.Flags().StringVar(&f.description, "description", "", "description (markdown)")
	cmd.Flags().StringVar(&f.format, "format-code", "", "format code (e.g. SE, SWISS2DE)")
}

// apply overlays the flags that were set onto in.
func (f *eventFlags) apply(cmd *cobra.Command, in *model.EventInput) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		in.Name = f.name
	}
	if changed("date") {
		d, err := time.Parse(time.RFC3339, f.date)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --date", err)
		}
		in.Date = d
	}
	if changed("url") {
		in.EventURL = f.url
	}
	if changed("discord") {
		in.DiscordInviteURL = f.discord
	}
	if changed("tag") {
		in.Tags = make([]model.TagCode, 0, len(f.tags))
		for _, t := range f.tags {
			in.Tags = append(in.Tags, model.TagCode(strings.ToUpper(t)))
		}
	}
	if changed("description") {
		in.Description = f.description
	}
	if changed("format-code") {
		in.Format = model.FormatCode(strings.ToUpper(f.format))
	}
	return nil
}

// NewEventsCommand creates the events command group.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List, post and edit calendar events",
	}
	cmd.AddCommand(newEventsListCommand(rootOpts))
	cmd.AddCommand(newEventsCreateCommand(rootOpts))
	cmd.AddCommand(newEventsEditCommand(rootOpts))
	return cmd
}

func newEventsListCommand(rootOpts *RootOptions) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calendar events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd, rootOpts)
			events, err := rootOpts.client().Events(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list events", err)
			}
			if p.format == "json" {
				return p.json(events)
			}
			pol := policy.New(model.UserID(rootOpts.cfg.AdminID))
			for _, e := range events {
				card := view.NewEventCard(e, model.UserID(rootOpts.User), pol, nil)
				if details {
					card.Toggle()
				}
				printCard(p, e.ID, card)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&details, "details", "d", false, "expand format and description")
	return cmd
}

func printCard(p printer, id model.EventID, card *view.EventCard) {
	s := card.Summary()
	tags := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		tags = append(tags, t.Name)
	}
	edit := ""
	if card.CanEdit().Allowed {
		edit = "  [editable]"
	}
	p.line("#%d %s  %s  %s%s", id, s.Date.Format("2006-01-02 15:04 MST"), s.Name, s.Host, edit)
	p.line("    posted by %s  %s", s.PosterName, s.EventURL)
	if len(tags) > 0 {
		p.line("    tags: %s", strings.Join(tags, ", "))
	}
	if s.DiscordInviteURL != "" {
		p.line("    discord: %s", s.DiscordInviteURL)
	}
	if d, ok := card.Details(); ok {
		p.line("    format: %s", d.FormatName)
		if d.Description != "" {
			p.line("    %s", strings.ReplaceAll(d.Description, "\n", "\n    "))
		}
	}
}

func newEventsCreateCommand(rootOpts *RootOptions) *cobra.Command {
	f := &eventFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a calendar event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rootOpts.requireUser(); err != nil {
				return err
			}
			var in model.EventInput
			if err := f.apply(cmd, &in); err != nil {
				return err
			}
			return submitEvent(cmd.Context(), rootOpts, newPrinter(cmd, rootOpts), 0, in)
		},
	}

	f.register(cmd)
	return cmd
}

func newEventsEditCommand(rootOpts *RootOptions) *cobra.Command {
	f := &eventFlags{}

	cmd := &cobra.Command{
		Use:   "edit <event-id>",
		Short: "Edit a calendar event you posted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.requireUser(); err != nil {
				return err
			}
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || n <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid event id %q", args[0]))
			}
			p := newPrinter(cmd, rootOpts)

			events, err := rootOpts.client().Events(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list events", err)
			}

			var in *model.EventInput
			pol := policy.New(model.UserID(rootOpts.cfg.AdminID))
			for _, e := range events {
				if e.ID != model.EventID(n) {
					continue
				}
				card := view.NewEventCard(e, model.UserID(rootOpts.User), pol, func(e model.Event) {
					in = &model.EventInput{
						Name:             e.Name,
						Date:             e.Date,
						EventURL:         e.EventURL,
						DiscordInviteURL: e.DiscordInviteURL,
						Tags:             e.Tags,
						Description:      e.Description,
						Format:           e.Format,
					}
				})
				if err := card.Edit(); err != nil {
					return NewExitError(ExitFailure, "Only the poster can edit this event")
				}
			}
			if in == nil {
				return NewExitError(ExitFailure, "Event not found")
			}

			if err := f.apply(cmd, in); err != nil {
				return err
			}
			return submitEvent(cmd.Context(), rootOpts, p, model.EventID(n), *in)
		},
	}

	f.register(cmd)
	return cmd
}

// submitEvent validates locally and then creates (id == 0) or updates.
func submitEvent(ctx context.Context, opts *RootOptions, p printer, id model.EventID, in model.EventInput) error {
	v := validation.New(validation.WithDescriptionLimit(opts.cfg.DescriptionLimit))
	if err := v.Validate(validation.SchemaEvent, validation.Event(in)); err != nil {
		return p.rejected(err)
	}

	client := opts.client()
	var (
		e   model.Event
		err error
	)
	if id == 0 {
		e, err = client.CreateEvent(ctx, in)
	} else {
		e, err = client.UpdateEvent(ctx, id, in)
	}
	if err != nil {
		return p.rejected(err)
	}

	if p.format == "json" {
		return p.json(e)
	}
	if id == 0 {
		p.line("Event #%d posted: %s", e.ID, e.Name)
	} else {
		p.line("Event #%d updated: %s", e.ID, e.Name)
	}
	return nil
}
