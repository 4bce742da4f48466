package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tuannm99/ftstab/internal"
	"github.com/tuannm99/ftstab/internal/ftstab"
)

// RootOptions holds the global flags and what they resolve to once a
// subcommand runs.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	LogLevel   string

	cfg    *internal.FtstabConfig
	logger *slog.Logger
}

// NewRootCommand builds the ftstab command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ftstab",
		Short: "Binary tables in FITS files",
		Long: `ftstab writes and reads binary tables stored as FITS BINTABLE extensions.

A table is declared in a YAML schema file, created with "create", filled
with "append" and then sorted, binned into histogram images or inspected.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides the config file")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewAppendCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewSortCommand(opts))
	cmd.AddCommand(NewHistCommand(opts))
	cmd.AddCommand(NewHist2DCommand(opts))
	cmd.AddCommand(NewDigestCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := internal.LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	o.cfg = cfg
	o.logger = NewLogger(cmd.ErrOrStderr(), level, cfg.Log.Color)
	return nil
}

func (o *RootOptions) engine() *ftstab.Engine {
	return ftstab.New(o.cfg.EngineOptions(o.logger)...)
}

// openMode resolves a --mode flag; empty means the configured default.
func (o *RootOptions) openMode(flag string) (ftstab.OpenMode, error) {
	if flag == "" {
		return o.cfg.Mode()
	}
	return ftstab.ParseOpenMode(flag)
}

// openExisting attaches to a table for reading back its schema. Nothing is
// created when the file or the extension is missing.
func (o *RootOptions) openExisting(path string, ext int) (*ftstab.Session, error) {
	return o.engine().Open(path, ext, ftstab.ModeAppend, o.cfg.Table.TreatHistory)
}

// closeSession closes s and joins its error with err.
func closeSession(s *ftstab.Session, err error) error {
	return errors.Join(err, s.Close())
}

// ExitCode maps an error returned by the command tree to a process status:
// the outcome number for open failures, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if n := ftstab.OutcomeNumber(err); n > 0 {
		return n
	}
	return 1
}
