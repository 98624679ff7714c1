package cli

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/hpsweep/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) *ExitError {
	return &ExitError{Code: 2, Message: err.Error()}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	root      string
	logLevel  string
	logFormat string
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		global globalFlags
		parsed *app.Config
	)

	rootCmd := &cobra.Command{
		Use:   "hpsweep",
		Short: "Generate hyperparameter sweep configurations and run them",
		Long: `hpsweep expands a configuration template across a grid of hyperparameters
and runs each resulting configuration against a CSV dataset, writing the
results back into the configuration file.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(output)
	rootCmd.SetErr(output)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&global.root, "root", ".", "Project root holding config/, data/ and encoding.json.")
	pf.StringVar(&global.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&global.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	finish := func(cfg app.Config) error {
		if err := validateGlobal(&global); err != nil {
			return err
		}
		cfg.Root = global.root
		cfg.LogLevel = global.logLevel
		cfg.LogFormat = global.logFormat

		c, err := app.NewConfig(cfg)
		if err != nil {
			return usageError(err)
		}
		parsed = c
		return nil
	}

	rootCmd.AddCommand(newGenerateCmd(finish), newRunCmd(finish))

	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, usageError(err)
	}
	if parsed == nil {
		slog.Debug("No command executed, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "command", parsed.Command)
	return parsed, false, nil
}

func newGenerateCmd(finish func(app.Config) error) *cobra.Command {
	var gridPath, encodingPath string
	cmd := &cobra.Command{
		Use:   "generate [flags] DATASET_ID...",
		Short: "Write one configuration per grid combination for each dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return finish(app.Config{
				Command:      app.CommandGenerate,
				Args:         args,
				GridPath:     gridPath,
				EncodingPath: encodingPath,
			})
		},
	}
	cmd.Flags().StringVar(&gridPath, "grid", "", "HCL sweep definition. Defaults to the built-in grid.")
	cmd.Flags().StringVar(&encodingPath, "encoding", "", "Encoding table. Defaults to <root>/encoding.json.")
	return cmd
}

func newRunCmd(finish func(app.Config) error) *cobra.Command {
	var cfg app.Config
	cmd := &cobra.Command{
		Use:   "run [flags] CONFIG_PATH...",
		Short: "Train and evaluate each configuration, writing results back",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg.Command = app.CommandRun
			cfg.Args = args
			return finish(cfg)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&cfg.OneHot, "one-hot", false, "One-hot encode label columns.")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Print each updated configuration.")
	f.IntVar(&cfg.Workers, "workers", 1, "Number of configurations to run in parallel.")
	f.StringVar(&cfg.MongoURI, "mongo-uri", "", "Record finished runs to this MongoDB server.")
	f.StringVar(&cfg.MongoDatabase, "mongo-database", "hpsweep", "MongoDB database for recorded runs.")
	f.StringVar(&cfg.MongoCollection, "mongo-collection", "runs", "MongoDB collection for recorded runs.")
	return cmd
}

func validateGlobal(g *globalFlags) error {
	g.logFormat = strings.ToLower(g.logFormat)
	if g.logFormat != "text" && g.logFormat != "json" {
		return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	g.logLevel = strings.ToLower(g.logLevel)
	switch g.logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return nil
}
