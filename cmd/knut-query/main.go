// Command knut-query runs tree-sitter queries and configured rules over
// source files.
//
//	knut-query run --lang cpp -e '(call_expression) @call' 'src/**/*.cpp'
//	knut-query check --config knut.toml --format json 'src/**/*.{cpp,h}'
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	knut "github.com/KDAB/knut-sub001"
	"github.com/KDAB/knut-sub001/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	format     string
	verbose    bool
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "knut-query",
		Short: "Run tree-sitter queries and rules over source files",
		Long: `knut-query parses source files with tree-sitter and runs queries on
them. Queries support the eq?, like?, eq-except?, like-except?, match?,
in-named-block? and not-is? filters and the exclude! command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Settings file (TOML)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", formatText, "Output format (text, json, yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	cmd.AddCommand(runCmd(opts))
	cmd.AddCommand(checkCmd(opts))
	return cmd
}

// loadSettings reads the settings file, or returns the defaults when no
// file was given.
func (o *globalOptions) loadSettings() (*config.Settings, error) {
	if o.configPath == "" {
		return config.DefaultSettings(), nil
	}
	settings, err := config.LoadTOML(o.configPath, config.DefaultSettings())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return settings, nil
}

// newLogger builds the stderr logger. The level follows the settings
// unless --verbose forces debug.
func (o *globalOptions) newLogger(w io.Writer, store *config.Store[config.Settings]) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(o.level(store.Get()))
	store.OnChange(func(_, next *config.Settings) {
		level.Set(o.level(next))
	})
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *globalOptions) level(settings *config.Settings) slog.Level {
	if o.verbose {
		return slog.LevelDebug
	}
	return settings.Level()
}

// setup loads the settings and creates the workspace every subcommand runs
// in. The settings store is returned so --watch can feed it.
func (o *globalOptions) setup(cmd *cobra.Command) (*knut.Workspace, *config.Store[config.Settings], *slog.Logger, error) {
	if err := checkFormat(o.format); err != nil {
		return nil, nil, nil, err
	}
	settings, err := o.loadSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	store := config.NewStore(settings)
	logger := o.newLogger(cmd.ErrOrStderr(), store)

	ws, err := knut.NewWorkspace(knut.WithLogger(logger), knut.WithSettingsStore(store))
	if err != nil {
		return nil, nil, nil, err
	}
	return ws, store, logger, nil
}
