// Package cli wires the plushub command line: the API server and the
// client commands that drive the suggestion thread, vouch modal and event
// cards against a running server.
package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/plushub/internal/adapters/rpc"
	"github.com/okian/plushub/internal/config"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/pkg/logger"
)

// RootOptions holds global flags and the configuration loaded from them.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	User       int64
	APIURL     string

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the plushub CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "plushub",
		Short: "plushub - plus server suggestions, vouches and calendar",
		Long: `Serve the plushub API or act on a running server as a user:
comment on suggestions, vouch for players and manage calendar events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (default $"+config.EnvFile+")")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().Int64VarP(&opts.User, "user", "u", 0, "user id to act as")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", "", "API base URL (overrides api_base_url)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewSuggestCommand(opts))
	cmd.AddCommand(NewSuggestionsCommand(opts))
	cmd.AddCommand(NewCommentCommand(opts))
	cmd.AddCommand(NewVouchCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewVotingCommand(opts))

	return cmd
}

// load reads configuration and initializes logging on stderr so command
// output stays parseable.
func (o *RootOptions) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadFile(cmd.Context(), o.ConfigPath)
	} else {
		cfg, err = config.Load(cmd.Context())
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.APIURL != "" {
		cfg.APIBaseURL = o.APIURL
	}
	o.cfg = cfg

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize logging", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

// client builds an API client acting as the --user flag.
func (o *RootOptions) client() *rpc.Client {
	return rpc.New(o.cfg.APIBaseURL,
		rpc.WithUser(model.UserID(o.User)),
		rpc.WithTimeout(time.Duration(o.cfg.ClientTimeoutMS)*time.Millisecond),
		rpc.WithLogger(logger.Named("rpc")),
	)
}

// requireUser fails client mutations that have no --user.
func (o *RootOptions) requireUser() error {
	if o.User <= 0 {
		return NewExitError(ExitCommandError, "--user is required for this command")
	}
	return nil
}
