package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevinfinalboss/VoidMod/api/routes"
	"github.com/kevinfinalboss/VoidMod/api/server"
	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/internal/bot"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	l, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info("Initializing bot...")
	discordBot, err := bot.New(ctx, cfg, l)
	if err != nil {
		l.Fatal("Failed to create bot", zap.Error(err))
	}

	srv := server.NewServer(cfg, l)
	srv.SetupRoutes(routes.Deps{
		StartTime:   cfg.BotStartTime,
		Reconciler:  discordBot.Reconciler(),
		Infractions: discordBot.Store(),
		Logger:      l,
	})

	l.Info("Starting bot...")
	if err := discordBot.Start(ctx); err != nil {
		l.Error("Failed to start bot", zap.Error(err))
		if err := discordBot.Stop(); err != nil {
			l.Error("Error during shutdown", zap.Error(err))
		}
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return discordBot.Reconciler().Run(gctx, cfg.Moderation.ReconcileInterval)
	})

	if err := g.Wait(); err != nil {
		l.Error("Service stopped with error", zap.Error(err))
	}

	l.Info("Shutting down...")
	if err := discordBot.Stop(); err != nil {
		l.Error("Error during shutdown", zap.Error(err))
	}
}
