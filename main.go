package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	config "focusbot/app/configs"
	"focusbot/app/core/api"
	"focusbot/app/core/conversation"
	"focusbot/app/core/dispatch"
	"focusbot/app/core/interaction/cli"
	"focusbot/app/core/interaction/telegram"
	"focusbot/app/core/scheduler"
	"focusbot/app/core/store"
	"focusbot/app/pkg/logger"
	"focusbot/app/pkg/types"
)

// ownerNotifier routes dispatcher output to the fixed owner chat.
type ownerNotifier struct {
	channel     types.Channel
	ownerChatID string
}

func (n *ownerNotifier) Notify(ctx context.Context, reply types.Reply) error {
	return n.channel.Send(ctx, n.ownerChatID, reply)
}

func main() {
	if err := logger.Init("output/logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("FocusBot Starting...")

	cfgManager, err := config.NewManager(config.DefaultPath())
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()
	cliMode := len(os.Args) > 1 && os.Args[1] == "-cli"
	if !cliMode {
		if err := config.Validate(cfg); err != nil {
			logger.Error("Invalid config: %v", err)
			os.Exit(1)
		}
	}

	db, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Database initialized successfully")

	clock := types.SystemClock{}
	engine := conversation.NewEngine(db, clock)

	var channel types.Channel
	ownerChatID := cfg.Telegram.OwnerChatID
	if cliMode {
		ownerChatID = "local"
		channel = cli.NewChannel(ownerChatID)
	} else {
		channel = telegram.NewChannel(telegram.Config{
			BotToken:       cfg.Telegram.BotToken,
			APIRoot:        cfg.Telegram.APIRoot,
			PollInterval:   time.Duration(cfg.Telegram.PollIntervalSec) * time.Second,
			TimeoutSeconds: cfg.Telegram.TimeoutSeconds,
			OffsetPath:     filepath.Join(cfg.Storage.DataDir, "telegram-offset.db"),
		})
	}

	notifier := &ownerNotifier{channel: channel, ownerChatID: ownerChatID}
	dispatcher := dispatch.New(db, clock, notifier,
		dispatch.WithNotifyTimeout(time.Duration(cfg.Dispatch.NotifyTimeoutSec)*time.Second),
		dispatch.WithMorningBriefing(cfg.Dispatch.BriefingTime),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobScheduler := scheduler.New()
	if err := jobScheduler.Register(scheduler.JobSpec{
		Name:       "reminder_sweep",
		Interval:   time.Duration(cfg.Dispatch.TickSeconds) * time.Second,
		Timeout:    time.Duration(cfg.Dispatch.TickSeconds) * time.Second,
		RunOnStart: true,
		Run:        dispatcher.Sweep,
	}); err != nil {
		logger.Error("Failed to register sweep job: %v", err)
		os.Exit(1)
	}
	if err := jobScheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := jobScheduler.Stop(3 * time.Second); err != nil {
			logger.Error("Scheduler shutdown timeout: %v", err)
		}
	}()

	handler := func(msg types.Message) {
		if msg.ChatID != ownerChatID {
			logger.Info("Rejected message from chat %s", msg.ChatID)
			reply := types.Reply{Text: "⛔ Brak dostępu. To jest prywatny bot."}
			if err := channel.Send(ctx, msg.ChatID, reply); err != nil {
				logger.Error("Failed to send rejection: %v", err)
			}
			return
		}
		reply := engine.HandleInput(ctx, msg.ChatID, msg.Text)
		if reply.Text == "" {
			return
		}
		if err := channel.Send(ctx, msg.ChatID, reply); err != nil {
			logger.Error("Failed to send reply: %v", err)
		}
	}

	go func() {
		if err := channel.Start(ctx, handler); err != nil {
			logger.Error("Channel %s crashed: %v", channel.ID(), err)
			os.Exit(1)
		}
	}()

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.ListenAddr, db)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("API server crashed: %v", err)
			}
		}()
		fmt.Printf("- Status API: http://%s/api/health\n", cfg.API.ListenAddr)
	}

	logger.Info("FocusBot is ready to serve.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. FocusBot Shutting Down...", sig)
	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("API shutdown: %v", err)
		}
		shutdownCancel()
	}
	cancel()
}
