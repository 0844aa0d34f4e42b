package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/mc-mysterria/mysterria-translator-sub000/server"
)

func newServeCommand(c *cli) *cobra.Command {
	var (
		addr     string
		snapshot string
		trace    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP translation service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			if addr != "" {
				c.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if trace {
				shutdown, err := setupTracing(c.stderr)
				if err != nil {
					return fmt.Errorf("init tracing: %w", err)
				}
				defer func() {
					flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = shutdown(flushCtx)
				}()
			}

			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if snapshot != "" {
				if err := a.importSnapshot(snapshot); err != nil {
					c.logger.Warn().Err(err).Str("path", snapshot).Msg("cache snapshot not loaded")
				}
			}

			srv := server.New(a.manager,
				server.WithLangStore(a.langs),
				server.WithBroadcaster(a.notices),
				server.WithLogger(c.logger),
			)
			shutdownTimeout := time.Duration(c.cfg.Server.ShutdownTimeoutSeconds) * time.Second
			serveErr := srv.ListenAndServe(ctx, c.cfg.Server.Addr, shutdownTimeout)

			if snapshot != "" {
				if err := a.exportSnapshot(snapshot); err != nil {
					c.logger.Warn().Err(err).Str("path", snapshot).Msg("cache snapshot not written")
				}
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "cache snapshot file loaded at start and written at shutdown")
	cmd.Flags().BoolVar(&trace, "trace", false, "print OpenTelemetry spans to stderr")
	return cmd
}

func newTranslateCommand(c *cli) *cobra.Command {
	var (
		locale   string
		source   string
		actor    string
		backends string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate one message (reads stdin when no text is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			if !c.cfg.Translation.Enabled {
				return fmt.Errorf("translation is disabled (translation.enabled=false)")
			}
			if backends != "" {
				c.cfg.Translation.Provider = backends
			}

			text, err := inputText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.manager.Translate(ctx, translator.Request{
				Text:       text,
				SourceLang: source,
				TargetLang: locale,
				ActorID:    translator.ActorID(actor),
			})
			return printOutcome(cmd.OutOrStdout(), text, out, asJSON)
		},
	}

	cmd.Flags().StringVarP(&locale, "lang", "l", translator.DefaultTarget, "target locale, e.g. en_us or uk_ua")
	cmd.Flags().StringVarP(&source, "source", "s", "", "source language (default: detect)")
	cmd.Flags().StringVar(&actor, "actor", "", "actor id subject to the per-actor rate limit")
	cmd.Flags().StringVarP(&backends, "backends", "b", "", "comma-separated backend order (overrides translation.provider)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outcome as JSON")
	return cmd
}

func inputText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text to translate")
	}
	return text, nil
}

type outcomeJSON struct {
	Status  string `json:"status"`
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Target  string `json:"target,omitempty"`
	Backend string `json:"backend,omitempty"`
	Cached  bool   `json:"cached,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// printOutcome writes the translated text, or the original when no
// translation was needed. Rate limiting and failure are errors.
func printOutcome(w io.Writer, original string, out translator.Outcome, asJSON bool) error {
	var res outcomeJSON
	var failure error

	switch o := out.(type) {
	case *translator.Success:
		res = outcomeJSON{
			Status:  server.StatusTranslated,
			Text:    o.Text,
			Source:  o.Source.Code,
			Target:  o.Target.Code,
			Backend: o.Backend,
			Cached:  o.Cached,
		}
	case *translator.NoTranslationNeeded:
		res = outcomeJSON{Status: server.StatusNotNeeded, Text: original, Reason: o.Reason}
	case *translator.RateLimited:
		res = outcomeJSON{Status: server.StatusRateLimited, Text: original}
		failure = fmt.Errorf("rate limited")
	case *translator.Failed:
		res = outcomeJSON{Status: server.StatusFailed, Text: original, Reason: o.Reason}
		failure = fmt.Errorf("translation failed: %s", o.Reason)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return failure
	}
	if failure != nil {
		return failure
	}
	_, err := fmt.Fprintln(w, res.Text)
	return err
}

func newDetectCommand(c *cli) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "detect <text>",
		Short: "Show the language detected for a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			detector, err := buildDetector(c.cfg.Translation)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			lang := detector.Detect(args[0])
			if lang.IsUnknown() {
				fmt.Fprintln(out, "unknown")
			} else {
				fmt.Fprintf(out, "%s (%s)\n", lang.Code, lang.Name)
			}
			if locale != "" {
				fmt.Fprintf(out, "needs translation for %s: %t\n", locale, translator.NeedsTranslation(detector, args[0], locale))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "also report whether a reader with this locale needs a translation")
	return cmd
}
