// Command mysterria-translator runs the chat translation service.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/mc-mysterria/mysterria-translator-sub000/config"
	"github.com/mc-mysterria/mysterria-translator-sub000/logging"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = translator.Version
	commit    = translator.GitCommit
	buildDate = translator.BuildDate
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

// cli holds the global flags and what setup derives from them.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envPath    string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "mysterria-translator",
		Short: "Chat translation service with backend fallback",
		Long: `mysterria-translator translates chat messages for players.

Requests pass through length, language and per-player rate gates, repeat
messages are served from a short-lived cache, and everything else goes to an
ordered chain of translation backends that falls through on failure and
suspends rate-limited backends for a while.

Examples:
  mysterria-translator serve --config config.yml
  mysterria-translator translate --lang en_us "привіт всім"
  mysterria-translator detect "як справи?"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yml", "config file (missing file means defaults)")
	root.PersistentFlags().StringVar(&c.envPath, "env", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "override log.format (json, console)")

	root.AddCommand(
		newServeCommand(c),
		newTranslateCommand(c),
		newDetectCommand(c),
		newValidateCommand(c),
		newVersionCommand(),
	)
	return root
}

// setup loads the environment and configuration and builds the logger.
func (c *cli) setup() error {
	if c.envPath != "" {
		if err := godotenv.Load(c.envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envPath, err)
		}
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}

	logger, err := logging.New(c.stderr, cfg.Log.Format, logging.Debug(cfg.Log.Level, cfg.Debug))
	if err != nil {
		return err
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", translator.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(out, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(out, "  built:   %s\n", buildDate)
			}
			return nil
		},
	}
}

func newValidateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list the backend order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			t := c.cfg.Translation
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK\nbackends: %s\n", strings.Join(t.Backends(), " -> "))
			return nil
		},
	}
}
