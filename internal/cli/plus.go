package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/plushub/internal/adapters/http/api"
	"github.com/okian/plushub/internal/adapters/rpc"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/mutation"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/topics"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/view"
	"github.com/okian/plushub/internal/domain/voting"
)

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		tier   int
		region string
	)

	cmd := &cobra.Command{
		Use:   "suggest <user-id> <description...>",
		Short: "Suggest a user for a plus tier",
		Long: `Suggest a user for a plus tier. If the user already has a suggestion
for that tier the description is added to it as a comment.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.requireUser(); err != nil {
				return err
			}
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			req := model.SuggestionRequest{
				SuggestedID: id,
				Tier:        model.Tier(tier),
				Region:      model.Region(strings.ToUpper(region)),
				Description: strings.Join(args[1:], " "),
			}
			return runSuggest(cmd.Context(), rootOpts, newPrinter(cmd, rootOpts), rootOpts.client(), req)
		},
	}

	cmd.Flags().IntVarP(&tier, "tier", "t", 0, "tier to suggest for (1-3)")
	cmd.Flags().StringVarP(&region, "region", "r", string(model.RegionNA), "region (NA|EU)")
	_ = cmd.MarkFlagRequired("tier")
	return cmd
}

func runSuggest(ctx context.Context, opts *RootOptions, p printer, client *rpc.Client, req model.SuggestionRequest) error {
	var resp api.SuggestionResponse
	form := mutation.New(mutation.Config[validation.SuggestionForm, model.SuggestionRequest]{
		Name:      view.MutationSuggestion,
		Schema:    validation.SchemaSuggestion,
		Validator: validation.New(validation.WithDescriptionLimit(opts.cfg.DescriptionLimit)),
		Build:     buildSuggestion,
		Send: func(ctx context.Context, r model.SuggestionRequest) error {
			var err error
			resp, err = client.SuggestDetailed(ctx, r)
			return err
		},
		Invalidates:    []querycache.Topic{topics.Suggestions},
		SuccessMessage: "Suggestion submitted",
	},
		mutation.WithInvalidator(client.Cache()),
		mutation.WithNotifier(p),
	)
	defer form.Unmount()

	form.Open()
	form.Edit(func(f *validation.SuggestionForm) { *f = validation.Suggestion(req) })
	if err := form.Submit(ctx); err != nil {
		return p.failed(err)
	}

	if p.format == "json" {
		return p.json(resp)
	}
	if resp.Created {
		p.line("Suggested %s for %s (%s)", resp.Suggestion.SuggestedUser.FullUsername(), resp.Suggestion.Tier, resp.Suggestion.ID)
	} else {
		p.line("Comment added to the suggestion of %s for %s", resp.Suggestion.SuggestedUser.FullUsername(), resp.Suggestion.Tier)
	}
	return nil
}

func buildSuggestion(f validation.SuggestionForm) model.SuggestionRequest {
	return model.SuggestionRequest{
		SuggestedID: model.UserID(f.SuggestedID),
		Tier:        model.Tier(f.Tier),
		Region:      model.Region(f.Region),
		Description: f.Description,
	}
}

// NewSuggestionsCommand creates the suggestions command.
func NewSuggestionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions",
		Short: "List plus suggestions with their comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd, rootOpts)
			client := rootOpts.client()
			list, err := client.Suggestions(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list suggestions", err)
			}
			if p.format == "json" {
				return p.json(list)
			}
			for _, s := range list {
				printThread(p, s, client)
			}
			return nil
		},
	}
}

func printThread(p printer, s model.Suggestion, client *rpc.Client) {
	tv := view.NewSuggestionThread(s, false, client, voting.PredicateFunc(func() bool { return false }), nil).View()
	p.line("%s  %s %s %s by %s (%s)", s.ID, tv.Tier, tv.Region, tv.SuggestedUser.FullUsername(), tv.Suggester.FullUsername(), tv.CreatedAt.Format("2006-01-02"))
	p.line("    %s", tv.Description)
	for _, c := range tv.Comments {
		p.line("    > %s: %s", c.Suggester.FullUsername(), c.Description)
	}
}

// NewCommentCommand creates the comment command.
func NewCommentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <suggestion-id> <text...>",
		Short: "Comment on an existing suggestion",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.requireUser(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid suggestion id", err)
			}
			return runComment(cmd.Context(), rootOpts, newPrinter(cmd, rootOpts), id, strings.Join(args[1:], " "))
		},
	}
}

func runComment(ctx context.Context, opts *RootOptions, p printer, id uuid.UUID, text string) error {
	client := opts.client()

	list, err := client.Suggestions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list suggestions", err)
	}
	var (
		target model.Suggestion
		found  bool
	)
	for _, s := range list {
		if s.ID == id {
			target, found = s, true
			break
		}
	}
	if !found {
		return NewExitError(ExitFailure, "Suggestion not found")
	}

	status, err := client.MyStatus(ctx)
	if err != nil {
		return refused(err)
	}

	thread := view.NewSuggestionThread(target, status.CanSuggestFor(target.Tier), client, votingPredicate(ctx, client),
		validation.New(validation.WithDescriptionLimit(opts.cfg.DescriptionLimit)),
		mutation.WithInvalidator(client.Cache()),
		mutation.WithNotifier(p),
	)
	defer thread.Unmount()

	if err := thread.OpenComment(); err != nil {
		return NewExitError(ExitFailure, "You can't comment on this suggestion right now")
	}
	thread.SetComment(text)
	if err := thread.SubmitComment(ctx); err != nil {
		return p.failed(err)
	}
	return nil
}

// NewVouchCommand creates the vouch command.
func NewVouchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		tier   int
		region string
	)

	cmd := &cobra.Command{
		Use:   "vouch <user-id>",
		Short: "Vouch for a user",
		Long: `Vouch for a user. The tier defaults to the highest tier you may
currently vouch for.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.requireUser(); err != nil {
				return err
			}
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return runVouch(cmd.Context(), rootOpts, newPrinter(cmd, rootOpts), id, model.Tier(tier), model.Region(strings.ToUpper(region)))
		},
	}

	cmd.Flags().IntVarP(&tier, "tier", "t", 0, "tier to vouch for (default: your eligibility)")
	cmd.Flags().StringVarP(&region, "region", "r", string(model.RegionNA), "region (NA|EU)")
	return cmd
}

func runVouch(ctx context.Context, opts *RootOptions, p printer, id model.UserID, tier model.Tier, region model.Region) error {
	client := opts.client()

	status, err := client.MyStatus(ctx)
	if err != nil {
		return refused(err)
	}

	modal := view.NewVouchModal(status.CanVouchFor, client, votingPredicate(ctx, client), client.Eligibility, nil,
		mutation.WithInvalidator(client.Cache()),
		mutation.WithNotifier(p),
	)
	defer modal.Unmount()

	if err := modal.Open(); err != nil {
		return NewExitError(ExitFailure, "You can't vouch right now")
	}
	modal.Select(id)
	if tier != model.TierNone {
		modal.SetTier(tier)
	}
	modal.SetRegion(region)

	if err := modal.Submit(ctx); err != nil {
		return p.failed(err)
	}
	return nil
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show your plus status, or everyone's with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd, rootOpts)
			client := rootOpts.client()

			var list []model.PlusStatus
			if all {
				statuses, err := client.Statuses(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list statuses", err)
				}
				list = statuses
			} else {
				if err := rootOpts.requireUser(); err != nil {
					return err
				}
				st, err := client.MyStatus(cmd.Context())
				if err != nil {
					return refused(err)
				}
				list = []model.PlusStatus{st}
			}

			if p.format == "json" {
				return p.json(list)
			}
			for _, st := range list {
				p.line("%-24s member=%s vouched=%s can_vouch_for=%s region=%s",
					st.User.FullUsername(), st.MembershipTier, st.VouchTier, st.CanVouchFor, st.Region)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every status")
	return cmd
}

// NewVotingCommand creates the voting command.
func NewVotingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "voting",
		Short: "Show the current voting window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd, rootOpts)
			r, err := rootOpts.client().Voting(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read voting range", err)
			}
			if p.format == "json" {
				return p.json(r)
			}
			state := "closed"
			if r.IsHappening {
				state = "open"
			}
			p.line("voting %s: %s - %s", state, r.Start.Format("2006-01-02 15:04 MST"), r.End.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}
}

// votingPredicate asks the server whether voting is happening. Errors read
// as "not happening"; the server still enforces the window on submit.
func votingPredicate(ctx context.Context, client *rpc.Client) voting.Predicate {
	return voting.PredicateFunc(func() bool {
		r, err := client.Voting(ctx)
		return err == nil && r.IsHappening
	})
}

func parseUserID(s string) (model.UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid user id %q", s))
	}
	return model.UserID(n), nil
}

func newPrinter(cmd *cobra.Command, opts *RootOptions) printer {
	return printer{format: opts.Format, out: cmd.OutOrStdout()}
}
