package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telemyapp/brother-bot/internal/api"
	"github.com/telemyapp/brother-bot/internal/bot"
	"github.com/telemyapp/brother-bot/internal/config"
	"github.com/telemyapp/brother-bot/internal/telegram"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Telegram bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.RequireBot(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBot(ctx, cfg)
		},
	}
}

func runBot(ctx context.Context, cfg config.Config) error {
	tg := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.PollTimeout)
	progress := bot.ChatProgress{Sender: tg, ChatID: cfg.AuthorizedUserID}
	c := buildComponents(cfg, newBrowser(cfg), progress)

	if cfg.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.NewRouter(c.fetcher),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		go func() {
			log.Printf("brotherbot ops listening on %s", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("event=ops_server_failed err=%q", err.Error())
			}
		}()
	}

	handler := bot.NewStatusHandler(cfg.AuthorizedUserID, c.fetcher, tg)
	log.Printf("brotherbot running, send /status")
	bot.NewPoller(tg, handler, cfg.PollTimeout, botUsername(ctx, tg)).Run(ctx)
	log.Printf("brotherbot stopping")
	return nil
}

// botUsername looks up the bot's @name so addressed group commands can be
// matched. A failed lookup is logged and leaves only bare commands working.
func botUsername(ctx context.Context, tg *telegram.Client) string {
	lookupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	me, err := tg.GetMe(lookupCtx)
	if err != nil {
		log.Printf("event=telegram_get_me_failed err=%q", err.Error())
		return ""
	}
	log.Printf("event=telegram_identity username=%q id=%d", me.Username, me.ID)
	return me.Username
}
