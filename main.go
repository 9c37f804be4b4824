package main

import (
	"chatty/internal/assistant"
	"chatty/internal/chat"
	"chatty/internal/config"
	"chatty/internal/peer"
	"chatty/internal/storage"
	"chatty/internal/ws"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "chatty",
		Short:        "Chat with your contacts and the AI assistant from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger := newLogger(cfg.LogLevel)

	cache, err := storage.NewBboltStorage(cfg.CacheDB)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	conn, err := ws.Dial(ctx, cfg.WSURL, cfg.CookieName, cfg.Token)
	if err != nil {
		return err
	}
	channel := ws.NewChannel(conn, logger.With().Str("component", "push").Logger())

	peers := peer.New(peer.Config{
		BaseURL:    cfg.APIURL,
		Token:      cfg.Token,
		CookieName: cfg.CookieName,
		Timeout:    cfg.HTTPTimeout,
	})
	bot := assistant.New(assistant.Config{
		URL:     cfg.AssistantURL,
		APIKey:  cfg.AssistantAPIKey,
		Model:   cfg.AssistantModel,
		Timeout: cfg.HTTPTimeout,
	})

	storeLogger := logger.With().Str("component", "store").Logger()

	s := newSession(out)
	store := chat.New(chat.Config{
		SelfID:       cfg.UserID,
		Peers:        peers,
		Assistant:    bot,
		Push:         channel,
		Users:        cache,
		SystemPrompt: cfg.SystemPrompt,
		Logger:       &storeLogger,
		OnChange:     s.render,
	})
	s.store = store

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return channel.Run(gCtx)
	})

	g.Go(func() error {
		defer cancel()
		return s.loop(gCtx, in)
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
