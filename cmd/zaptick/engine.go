package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"github.com/zapllo/zaptick-sub010/pkg/engine"
	"github.com/zapllo/zaptick-sub010/pkg/log"
	"github.com/zapllo/zaptick-sub010/pkg/sources/redisqueue"
)

func EngineCommand() *cli.Command {
	return &cli.Command{
		Name:    "engine",
		Aliases: []string{"e"},
		Usage:   "Start the automation engine consuming inbound messages",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the inbound message queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				Value:   "0",
				Sources: cli.EnvVars("REDIS_DB"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Redis list holding inbound messages",
				Value:   "zaptick:inbound",
				Sources: cli.EnvVars("INBOUND_QUEUE"),
			},
		),
		Action: runEngine,
	}
}

func runEngine(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	engineID := command.String("engine-id")
	if engineID == "" {
		engineID = "engine-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("engine").With("engine_id", engineID)

	logger.InfoContext(ctx, "Initializing Zaptick Engine")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := newRuntime(ctx, logger, command, "zaptick-engine")
	defer rt.shutdown(ctx, logger)

	if err := engine.NewEventLogger(logger).Register(ctx, rt.bus); err != nil {
		return err
	}

	source, err := redisqueue.NewSource(ctx, map[string]any{
		"queue": command.String("queue"),
		"connection": map[string]any{
			"addr":     command.String("redis-addr"),
			"password": command.String("redis-password"),
			"db":       command.String("redis-db"),
		},
	}, logger)
	if err != nil {
		return err
	}

	if err := source.Start(ctx, rt.engine.HandleMessage); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Engine running, waiting for inbound messages")

	<-ctx.Done()

	logger.Info("Shutting down engine")

	return source.Stop(context.WithoutCancel(ctx))
}
