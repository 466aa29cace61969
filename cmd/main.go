package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"weeklydigest/internal/caldav"
	"weeklydigest/internal/config"
	"weeklydigest/internal/google"
	"weeklydigest/internal/poster"
	"weeklydigest/internal/slack"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "weeklydigest",
		Usage: "Post this week's schedule from a Google Sheet to Slack.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "Optional YAML config file.", EnvVars: []string{"CONFIG_FILE"}},
		},
		Commands: []*cli.Command{
			authCommand(),
			postCommand(),
			previewCommand(),
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to read private sheets.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'lab'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func postCommand() *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "Build this week's digest and post it.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the digest without posting it."},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log per-row diagnostics."},
			&cli.StringFlag{Name: "cron", Usage: "Post on a cron schedule (e.g. \"0 9 * * 1\") instead of once."},
		},
		Action: func(c *cli.Context) error {
			return runPost(c, c.Bool("dry-run"))
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Print this week's digest without posting it.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log per-row diagnostics."},
		},
		Action: func(c *cli.Context) error {
			return runPost(c, true)
		},
	}
}

func runPost(c *cli.Context, dryRun bool) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}
	logger := setupLogger(cfg.LogLevel)

	if dryRun {
		logger.Info("Performing a dry run. Nothing will be posted.")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	creds := google.Credentials{
		APIKey:       cfg.Google.APIKey,
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Account:      cfg.Google.Account,
	}
	if creds.APIKey == "" && creds.Account == "" {
		// Fall back to the first account saved by the auth command.
		accounts, err := google.GetTokenAccounts(".")
		if err == nil && len(accounts) > 0 {
			creds.Account = accounts[0]
			logger.Info("Using saved Google account.", "account", creds.Account)
		}
	}
	sheetsClient, err := google.NewClient(c.Context, logger, creds)
	if err != nil {
		return fmt.Errorf("failed to create google sheets client: %w", err)
	}

	var publisher poster.Publisher
	if cfg.SlackEnabled() {
		publisher = slack.NewClient(logger, cfg.Slack.Token, cfg.Slack.APIURL)
	}

	var mirror poster.Mirror
	if cfg.CalDAV.URL != "" && !dryRun {
		m, err := caldav.NewMirror(c.Context, logger, cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.Calendar, loc)
		if err != nil {
			logger.Error("Calendar mirror disabled", "error", err)
		} else {
			mirror = m
		}
	}

	p := poster.NewPoster(logger, sheetsClient, publisher, mirror, os.Stdout, poster.Options{
		SpreadsheetID: cfg.Google.SheetID,
		Sheet:         google.SheetSelector{Name: cfg.Google.SheetName, Index: cfg.Google.SheetIndex},
		Channel:       cfg.Slack.Channel,
		Columns:       cfg.Columns,
		Location:      loc,
		DryRun:        dryRun,
	})

	schedule := c.String("cron")
	if schedule == "" {
		schedule = cfg.Cron
	}
	if schedule == "" || dryRun {
		logger.Info("Running a single digest cycle.")
		if _, err := p.Run(c.Context); err != nil {
			return fmt.Errorf("digest run failed: %w", err)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each tick is an independent run; a slow run makes the next tick skip rather than overlap.
	scheduler := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := scheduler.AddFunc(schedule, func() {
		if _, err := p.Run(ctx); err != nil {
			logger.Error("Digest run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}

	logger.Info("Starting scheduler.", "cron", schedule, "timezone", loc.String())
	scheduler.Start()
	<-ctx.Done()
	logger.Info("Stopping scheduler.")
	<-scheduler.Stop().Done()
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
