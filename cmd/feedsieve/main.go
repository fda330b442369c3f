package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"feedsieve/internal/app"
	"feedsieve/internal/config"
	"feedsieve/internal/domain"
	"feedsieve/internal/ingest"
	"feedsieve/internal/list"
	"feedsieve/internal/logging"
	"feedsieve/internal/server"
	"feedsieve/internal/tui"
	"feedsieve/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "feedsieve",
		Usage:   "Poll feeds, keep what matters, mail a digest",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config.yaml", Value: config.DefaultPath()},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the poll and digest schedules until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api", Usage: "also serve the REST API on this address (overrides api.addr)"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, true)
					if err != nil {
						return err
					}
					defer closeFn()
					addr := a.Config.API.Addr
					if v := strings.TrimSpace(c.String("api")); v != "" {
						addr = v
					}
					return a.Run(ctx, addr)
				},
			},
			{
				Name:  "cycle",
				Usage: "Run one ingestion cycle and print its report",
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, true)
					if err != nil {
						return err
					}
					defer closeFn()
					rep, err := a.Cycle.RunCycle(ctx)
					if errors.Is(err, ingest.ErrCycleRunning) {
						return err
					}
					printReport(os.Stdout, rep)
					return err
				},
			},
			{
				Name:  "digest",
				Usage: "Build and send the digest once",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "print the digest instead of sending or recording it"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, false)
					if err != nil {
						return err
					}
					defer closeFn()
					if c.Bool("dry-run") {
						msg, d, err := a.Digest.Preview(ctx)
						if err != nil {
							return err
						}
						if d.Empty() {
							fmt.Printf("Nothing relevant since %s.\n", d.Since.Local().Format(time.RFC1123))
							return nil
						}
						fmt.Printf("Subject: %s\n\n%s\n", msg.Subject, msg.Text)
						return nil
					}
					res, err := a.Digest.Run(ctx)
					if err != nil {
						return err
					}
					switch {
					case !res.Sent:
						fmt.Println("Nothing relevant since the last digest; window advanced.")
					case res.Record.Status == domain.DigestFailed:
						return fmt.Errorf("digest not delivered: %s", deref(res.Record.Error))
					default:
						fmt.Printf("Digest with %d items sent to %s.\n", res.Record.ArticleCount, a.Config.Digest.Recipient)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List articles judged relevant recently",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "hours", Usage: "Time window in hours", Value: 24},
					&cli.StringFlag{Name: "topic", Usage: "only this topic"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, false)
					if err != nil {
						return err
					}
					defer closeFn()
					return list.Run(ctx, os.Stdout, a.Store, list.Options{Hours: c.Int("hours"), Topic: c.String("topic")})
				},
			},
			{
				Name:  "browse",
				Usage: "Browse articles and verdicts in the terminal",
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, false)
					if err != nil {
						return err
					}
					defer closeFn()
					return tui.Run(ctx, a.Store)
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the REST API without the schedules",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default from api.addr, else :8080)"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, true)
					if err != nil {
						return err
					}
					defer closeFn()
					addr := firstNonEmpty(c.String("addr"), a.Config.API.Addr, ":8080")
					return a.API(nil).Start(ctx, addr)
				},
			},
			{
				Name:  "mcp",
				Usage: "Run the MCP server on stdio",
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, false)
					if err != nil {
						return err
					}
					defer closeFn()
					return server.New(a.Store).Run(ctx)
				},
			},
			{
				Name:  "requeue",
				Usage: "Put a failed article back into the pipeline",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "id", Usage: "article id", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					a, closeFn, err := open(ctx, c, false)
					if err != nil {
						return err
					}
					defer closeFn()
					id := int64(c.Int("id"))
					if err := a.Store.RequeueArticle(ctx, id); err != nil {
						return err
					}
					fmt.Printf("Article %d requeued.\n", id)
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a commented default configuration",
						Action: func(ctx context.Context, c *cli.Command) error {
							path := c.String("config")
							if err := config.WriteDefault(path); err != nil {
								return err
							}
							fmt.Printf("Configuration written to %s\n", config.ExpandPath(path))
							return nil
						},
					},
					{
						Name:  "show",
						Usage: "Print the effective configuration with secrets masked",
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := config.Load(c.String("config"))
							if err != nil {
								return err
							}
							out, err := config.Marshal(cfg.Redacted())
							if err != nil {
								return err
							}
							_, err = os.Stdout.Write(out)
							return err
						},
					},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// open loads and validates the configuration and builds the application.
// Interactive commands log to the configured file only, so the terminal
// stays clean.
func open(ctx context.Context, c *cli.Command, seed bool) (*app.Application, func(), error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var logger *slog.Logger
	closeLog := func() error { return nil }
	if interactive(c.Name) && strings.TrimSpace(cfg.Log.File) == "" {
		logger = logging.Discard()
	} else {
		logger, closeLog, err = logging.New(cfg.Log)
		if err != nil {
			return nil, nil, err
		}
	}

	a, err := app.New(ctx, cfg, logger, os.Stdout)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	closeFn := func() {
		if err := a.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
		closeLog()
	}
	if seed {
		if err := a.Seed(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return a, closeFn, nil
}

func interactive(name string) bool {
	switch name {
	case "browse", "list", "requeue", "mcp":
		return true
	}
	return false
}

func printReport(w io.Writer, rep ingest.CycleReport) {
	fmt.Fprintf(w, "Feeds polled:   %d (%d failed)\n", rep.Feeds, rep.FeedErrors)
	fmt.Fprintf(w, "New articles:   %d (%d already known)\n", rep.New, rep.Skipped)
	fmt.Fprintf(w, "Fetched:        %d (%d failed)\n", rep.Fetch.Fetched, rep.Fetch.Failed)
	fmt.Fprintf(w, "Extracted:      %d (%d failed)\n", rep.Extract.Extracted, rep.Extract.Failed)
	if rep.AssessRan {
		fmt.Fprintf(w, "Assessed:       %d (%d LLM calls, %d given up)\n", rep.Assess.Assessed, rep.Assess.Calls, rep.Assess.Failed)
	} else {
		fmt.Fprintln(w, "Assessed:       skipped, no model configured")
	}
	for _, e := range rep.StageErrors {
		fmt.Fprintf(w, "Stage error:    %s\n", e)
	}
	fmt.Fprintf(w, "Took:           %s\n", rep.Duration.Round(time.Millisecond))
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return "unknown error"
	}
	return *s
}
