// Command ricordamid boots the reminder engine daemon: loads config, opens
// durable storage, rehydrates pending reminders, and runs the engine's
// event loop and sweep until signalled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ricordami/pkg/bus"
	"ricordami/pkg/config"
	"ricordami/pkg/logger"
	"ricordami/pkg/notify"
	"ricordami/pkg/reminders"
	"ricordami/pkg/telemetry"
	"ricordami/pkg/tools"
)

func main() {
	configPath := flag.String("config", "ricordami.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No config file yet is not fatal: defaults are usable on their own.
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger.Init(level, cfg.Debug)
	logger.InfoCF("bootstrap", "starting", map[string]interface{}{
		"instance_id": cfg.InstanceID,
		"workspace":   cfg.Workspace,
	})

	msgBus := bus.NewMessageBus()

	if cfg.Telegram.BotToken != "" {
		tgNotifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken)
		if err != nil {
			logger.ErrorCF("bootstrap", "failed to init telegram notifier", map[string]interface{}{"error": err.Error()})
		} else {
			msgBus.RegisterHandler("telegram", tgNotifier)
		}
	}
	if cfg.Webhook.URL != "" {
		msgBus.RegisterHandler("webhook", notify.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.BearerToken))
	}

	dsn := cfg.DurableDSN
	if !filepath.IsAbs(dsn) {
		dsn = filepath.Join(cfg.Workspace, dsn)
	}
	durable, err := reminders.OpenDurableStore(dsn)
	if err != nil {
		logger.ErrorCF("bootstrap", "failed to open durable store", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer durable.Close()

	tracker := telemetry.NewTracker(cfg.Workspace)

	callback := reminders.TrackedCallback{
		Next:     reminders.BusCallback{Bus: msgBus},
		Recorder: tracker,
	}

	memory := reminders.NewMemoryStore()
	engine, err := reminders.NewAndInit(memory, durable, reminders.SystemClock{}, callback)
	if err != nil {
		logger.ErrorCF("bootstrap", "failed to rehydrate engine", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	reminderTool := tools.NewReminderTool(engine, msgBus, reminders.SystemClock{})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracker.Start(ctx)
	go msgBus.Dispatch(ctx)
	go runSweep(ctx, engine, cfg.SweepCron)
	go runCommands(ctx, msgBus, reminderTool)

	logger.InfoC("bootstrap", "ready")
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		logger.ErrorCF("bootstrap", "engine loop exited with error", map[string]interface{}{"error": err.Error()})
	}

	tracker.Stop()
	msgBus.Close()
	logger.InfoC("bootstrap", "shut down")
}

func runSweep(ctx context.Context, engine *reminders.Engine, cronExpr string) {
	if err := engine.RunSweep(ctx, cronExpr); err != nil && ctx.Err() == nil {
		logger.ErrorCF("bootstrap", "sweep loop exited with error", map[string]interface{}{"error": err.Error()})
	}
}

// runCommands drains InboundCommand values published by whatever external
// command-dispatch surface is wired to the bus (spec.md §1 places that
// surface itself out of scope) and executes each against the reminder
// tool, which owns tokenization, dispatch, and the engine call.
func runCommands(ctx context.Context, msgBus *bus.MessageBus, tool *tools.ReminderTool) {
	for {
		cmd, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		tool.SetContext(cmd.Channel, cmd.ChatID)
		result := tool.Execute(ctx, map[string]interface{}{"text": cmd.Line})
		if !result.Success {
			logger.WarnCF("bootstrap", "command failed", map[string]interface{}{
				"channel": cmd.Channel,
				"error":   result.Output,
			})
		}
	}
}
