package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robalyx/chatguard/internal/database"
	"github.com/robalyx/chatguard/internal/database/migrations"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/decision"
	"github.com/robalyx/chatguard/internal/setup"
	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/robalyx/chatguard/internal/wordlist"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// ModeratorLogDir specifies where moderator log files are stored.
	ModeratorLogDir = "logs/moderator_logs"

	// expiredBanSweepInterval is how often expired temporary bans are lifted.
	expiredBanSweepInterval = time.Minute
	// expiredBanBatchSize bounds the bans lifted per sweep.
	expiredBanBatchSize = 100
)

var (
	ErrTextRequired      = errors.New("TEXT argument required")
	ErrUnknownActionType = errors.New("unknown action type")
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "moderator",
		Usage: "Chat moderation service",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to the chat platform and moderate inbound messages",
				Action: runModerator,
			},
			{
				Name:  "migrate",
				Usage: "Run pending database migrations",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withMigrator(ctx, func(migrator *migrate.Migrator, logger *zap.Logger) error {
						if err := migrator.Lock(ctx); err != nil {
							return err
						}
						defer migrator.Unlock(ctx) //nolint:errcheck

						group, err := migrator.Migrate(ctx)
						if err != nil {
							return err
						}

						if group.IsZero() {
							logger.Info("No new migrations to run (database is up to date)")
							return nil
						}

						logger.Info("Successfully migrated", zap.String("group", group.String()))
						return nil
					})
				},
				Commands: []*cli.Command{
					{
						Name:  "status",
						Usage: "Show migration status",
						Action: func(ctx context.Context, _ *cli.Command) error {
							return withMigrator(ctx, func(migrator *migrate.Migrator, logger *zap.Logger) error {
								ms, err := migrator.MigrationsWithStatus(ctx)
								if err != nil {
									return err
								}

								logger.Info("Migration status",
									zap.String("migrations", ms.String()),
									zap.String("unapplied", ms.Unapplied().String()),
									zap.String("last_group", ms.LastGroup().String()),
								)
								return nil
							})
						},
					},
				},
			},
			{
				Name:      "check",
				Usage:     "Run the detectors against text without taking any action",
				ArgsUsage: "TEXT",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "chat",
						Usage: "Chat whose policy is applied (0 = global policy)",
					},
					&cli.StringFlag{
						Name:  "attachment",
						Usage: "Attachment URL to check alongside the text",
					},
				},
				Action: checkText,
			},
			{
				Name:  "warnings",
				Usage: "Inspect or reset warning counters",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "user",
						Usage:    "User ID",
						Required: true,
					},
				},
				Commands: []*cli.Command{
					{
						Name:   "get",
						Usage:  "Show a user's warning count",
						Action: getWarnings,
					},
					{
						Name:   "reset",
						Usage:  "Reset a user's warning count",
						Action: resetWarnings,
					},
				},
			},
			{
				Name:  "wordlist",
				Usage: "Wordlist validation",
				Commands: []*cli.Command{
					{
						Name:  "check",
						Usage: "Check wordlist for errors",
						Description: `Check wordlist for actual errors:
- Duplicate terms after normalization
- Shadowed terms (every match already reported by a more confident term)
- Self-references, cross-references and related terms shared between entries
- Normalization redundancy (variants the detector already matches)
- Empty terms, unknown categories and out of range confidences

Returns exit code 1 if errors found, 0 if clean.`,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "path",
								Usage: "Wordlist file path",
								Value: "config/wordlist.jsonc",
							},
						},
						Action: checkWordlist,
					},
				},
			},
			{
				Name:  "action",
				Usage: "Execute a manual moderation action",
				Description: `Execute a moderation action as an operator. The action runs through the
same handlers as automatic actions, including follow-ups.

Examples:
  moderator action --type warn --user 42 --chat 7 --message 100
  moderator action --type tempban --user 42 --duration 2h
  moderator action --type markasspamandban --user 42 --chat 7 --message 100`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Action type (" + actionTypeNames() + ")",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "user",
						Usage:    "Target user ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "chat",
						Usage: "Chat the action is about",
					},
					&cli.IntFlag{
						Name:  "message",
						Usage: "Message the action is about",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Reason recorded with the action",
						Value: "Manual action",
					},
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "Temporary ban length (0 = policy default)",
					},
				},
				Action: executeAction,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runModerator runs the gateway until interrupted.
func runModerator(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup.InitializeApp(ctx, "moderator", ModeratorLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	if app.Platform == nil {
		return setup.ErrPlatformNotConfigured
	}

	if err := app.Platform.Open(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	go sweepExpiredBans(ctx, app)

	log.Println("Moderator has been started. Waiting for interrupt signal to gracefully shutdown...")
	<-ctx.Done()

	app.Logger.Info("Shutting down moderator")
	return nil
}

// sweepExpiredBans periodically lifts temporary bans that have expired.
func sweepExpiredBans(ctx context.Context, app *setup.App) {
	ticker := time.NewTicker(expiredBanSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lifted, err := app.Decision.LiftExpiredBans(ctx, app.Platform, expiredBanBatchSize)
			if err != nil {
				app.Logger.Error("Failed to lift expired bans", zap.Error(err))
				continue
			}

			if lifted > 0 {
				app.Logger.Info("Lifted expired bans", zap.Int("count", lifted))
			}
		}
	}
}

// checkText prints the aggregate result and tier for the given text.
func checkText(ctx context.Context, c *cli.Command) error {
	text := strings.Join(c.Args().Slice(), " ")
	if text == "" && c.String("attachment") == "" {
		return ErrTextRequired
	}

	app, err := setup.InitializeApp(ctx, "check", ModeratorLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	chatID := c.Int("chat")
	pol := app.Policies.ForChat(chatID)

	msg := &types.Message{
		ChatID:        chatID,
		Text:          text,
		AttachmentURL: c.String("attachment"),
		SentAt:        time.Now(),
	}

	agg := app.Coordinator.Check(ctx, msg.CheckRequest(), pol.EnabledDetectors())
	if agg.Skipped {
		fmt.Printf("Skipped: %s\n", agg.SkipReason)
		return nil
	}

	for _, r := range agg.Results {
		status := r.Verdict.String()
		if r.Failed {
			status = "failed"
		}
		fmt.Printf("%-12s %-8s %6.2f  %s\n", r.Detector, status, r.Confidence, r.Reason)
	}

	for _, v := range agg.Violations {
		fmt.Printf("Critical violation from %s: %s\n", v.Detector, v.Reason)
	}

	fmt.Printf("Net confidence: %.2f\n", agg.NetConfidence)
	fmt.Printf("Tier: %s\n", decision.Decide(agg, pol.AutoBanThreshold, pol.ReviewThreshold))

	return nil
}

// getWarnings prints a user's warning count.
func getWarnings(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, "warnings", ModeratorLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	count, err := app.Warnings.GetWarnings(ctx, c.Int("user"))
	if err != nil {
		return err
	}

	fmt.Printf("User %d has %d warnings\n", c.Int("user"), count)
	return nil
}

// resetWarnings resets a user's warning count. The reset is audited when the
// moderation service is available.
func resetWarnings(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, "warnings", ModeratorLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	userID := c.Int("user")

	if app.Service == nil {
		app.Logger.Warn("Moderation service unavailable, resetting without audit")
		return app.Warnings.ResetWarnings(ctx, userID)
	}

	event := types.NewModerationEvent(
		enum.ActionTypeResetWarnings, userID, 0, 0, types.WebUserActor("cli"), "Reset from command line",
	)
	if _, err := app.Service.ExecuteModerationAction(ctx, event); err != nil {
		return err
	}

	fmt.Printf("Reset warnings of user %d\n", userID)
	return nil
}

// executeAction runs a manual moderation action.
func executeAction(ctx context.Context, c *cli.Command) error {
	action, ok := enum.ParseActionType(c.String("type"))
	if !ok {
		return fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownActionType, c.String("type"), actionTypeNames())
	}

	app, err := setup.InitializeApp(ctx, "action", ModeratorLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	if app.Service == nil {
		return setup.ErrPlatformNotConfigured
	}

	event := types.NewModerationEvent(
		action, c.Int("user"), c.Int("chat"), c.Int("message"), types.WebUserActor("cli"), c.String("reason"),
	)
	event.Payload.Duration = c.Duration("duration")

	outcome, err := app.Service.ExecuteModerationAction(ctx, event)
	if err != nil {
		return err
	}

	for current := outcome; current != nil; current = current.FollowUp {
		fmt.Printf("%s: %d chats affected, %d failed, %d handler errors\n",
			current.Event.Action, current.Event.Payload.ChatsAffected,
			current.Event.Payload.ChatsFailed, len(current.Pass.Errors))

		if current.Execution != nil && current.Execution.DeleteErr != nil {
			fmt.Printf("Message deletion failed: %v\n", current.Execution.DeleteErr)
		}

		if current.FollowUpErr != nil {
			fmt.Printf("Follow-up failed: %v\n", current.FollowUpErr)
		}
	}

	return nil
}

// checkWordlist validates a wordlist file.
func checkWordlist(_ context.Context, c *cli.Command) error {
	list, err := config.LoadWordlistFromPath(c.String("path"))
	if err != nil {
		return err
	}

	issues := wordlist.ValidateWordlist(list)
	if len(issues) > 0 {
		fmt.Printf("Found %d error(s):\n\n", len(issues))
		for _, issue := range issues {
			fmt.Printf("- %s\n", issue.Description)
		}
		return cli.Exit("", 1)
	}

	fmt.Printf("No errors found in %d terms\n", len(list.Terms))
	return nil
}

// withMigrator connects to the database without the interactive migration
// check and runs fn with a migrator.
func withMigrator(ctx context.Context, fn func(*migrate.Migrator, *zap.Logger) error) error {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, logger, false)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return fn(migrate.NewMigrator(db.DB(), migrations.Migrations), logger)
}

// actionTypeNames lists the accepted action type names.
func actionTypeNames() string {
	names := make([]string, 0, len(enum.AllActionTypes()))
	for _, action := range enum.AllActionTypes() {
		names = append(names, strings.ToLower(action.String()))
	}
	return strings.Join(names, ", ")
}
