package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/channel"
	"github.com/sagebridge/sagebridge/internal/channel/discord"
	"github.com/sagebridge/sagebridge/internal/channel/irc"
	"github.com/sagebridge/sagebridge/internal/config"
	"github.com/sagebridge/sagebridge/internal/gateway"
	"github.com/sagebridge/sagebridge/internal/routing"
	"github.com/sagebridge/sagebridge/internal/session"
	"github.com/sagebridge/sagebridge/internal/store"
	"github.com/sagebridge/sagebridge/internal/turn"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge and all configured channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			table, cleanup, err := openSessionTable(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			backend := assistant.NewOpenAIClient(cfg.OpenAI, log)
			if err := backend.EnsureAssistant(ctx); err != nil {
				return fmt.Errorf("preparing assistant: %w", err)
			}

			ttl := time.Duration(cfg.OpenAI.SessionTimeoutSeconds) * time.Second
			mux := session.NewMultiplexer(table, backend, ttl, log)
			poller := turn.NewPoller(backend, mux, turn.PollerConfig{}, log)
			normalizer := turn.NewNormalizer(backend, log)
			orch := turn.NewOrchestrator(backend, mux, poller, normalizer, log)

			channels := channel.NewRegistry(log)
			if cfg.Channels.Discord != nil {
				channels.Register(discord.New(*cfg.Channels.Discord, log))
			}
			if cfg.Channels.IRC != nil {
				channels.Register(irc.New(*cfg.Channels.IRC, log))
			}
			if cfg.Channels.Gateway != nil {
				channels.Register(gateway.New(*cfg.Channels.Gateway, log))
			}
			if channels.Count() == 0 {
				return fmt.Errorf("no channels configured; enable at least one under channels:")
			}

			router := routing.NewRouter(channels, orch, log)
			router.Wire()

			channels.StartAll(ctx)

			log.Info().
				Int("channels", channels.Count()).
				Str("store", cfg.Session.Store).
				Dur("sessionTimeout", ttl).
				Msg("sagebridge running")

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			channels.StopAll(shutdownCtx)
			return nil
		},
	}
	return cmd
}

// openSessionTable opens the configured session table store. The returned
// cleanup func closes any underlying database.
func openSessionTable(cfg config.Config) (session.Table, func(), error) {
	path := paths.SessionTablePath(cfg.Session)

	if cfg.Session.Store == "sqlite" {
		db, err := store.Open(path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("opening session database: %w", err)
		}
		log.Info().Str("path", path).Msg("using SQLite session table")
		return store.NewSQLiteTable(db), func() { db.Close() }, nil
	}

	table, err := session.OpenSnapshot(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session table: %w", err)
	}
	log.Info().Str("path", path).Msg("using file session table")
	return table, func() {}, nil
}
