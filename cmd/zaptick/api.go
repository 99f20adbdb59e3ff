package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"
	"github.com/zapllo/zaptick-sub010/pkg/cmd"
	"github.com/zapllo/zaptick-sub010/pkg/engine"
	"github.com/zapllo/zaptick-sub010/pkg/eventbus"
	"github.com/zapllo/zaptick-sub010/pkg/log"
	"github.com/zapllo/zaptick-sub010/pkg/messenger/httpapi"
	"github.com/zapllo/zaptick-sub010/pkg/otelhelper"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
	"github.com/zapllo/zaptick-sub010/pkg/registry"
	"github.com/zapllo/zaptick-sub010/pkg/scheduler"
	"github.com/zapllo/zaptick-sub010/pkg/web"
)

const defaultPort = 9091

func APICommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"a"},
		Usage:   "Start the automation REST API",
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Zaptick API")

			rt := newRuntime(ctx, logger, command, "zaptick-api")
			defer rt.shutdown(ctx, logger)

			api := NewAPI(logger, rt.store, rt.registry, rt.engine)

			return api.Start(command.Int("port"))
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL (file://<dir> or memory://)",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (kafka, gochannel)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "gateway-url",
			Usage:   "Base URL of the messaging channel gateway",
			Value:   "http://localhost:8080",
			Sources: cli.EnvVars("GATEWAY_URL"),
		},
		&cli.StringFlag{
			Name:    "gateway-api-key",
			Usage:   "API key for the messaging channel gateway",
			Sources: cli.EnvVars("GATEWAY_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	engine      *engine.WorkflowEngine
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	eng *engine.WorkflowEngine,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		registry:    reg,
		engine:      eng,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.registry, a.engine, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Zaptick Automation API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}

// runtime bundles the collaborators both commands wire the same way.
type runtime struct {
	store    persistence.Persistence
	registry *registry.Registry
	engine   *engine.WorkflowEngine
	poller   *scheduler.ResumePoller
	bus      eventbus.EventBus
}

func newRuntime(ctx context.Context, logger *slog.Logger, command *cli.Command, serviceName string) *runtime {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		if _, err := otelhelper.NewTracer(ctx, serviceName); err != nil {
			logger.WarnContext(ctx, "Failed to initialize tracing", "error", err)
		}
	}

	store := cmd.NewPersistence(command.String("database-url"))

	messenger := httpapi.NewMessenger(
		logger,
		command.String("gateway-url"),
		command.String("gateway-api-key"),
	)

	reg := cmd.NewRegistry(logger, messenger, messenger)

	eventBus := cmd.NewEventBus(command.String("event-bus"), serviceName, logger)

	poller := scheduler.NewResumePoller(logger, store.ExecutionRepository(), scheduler.DefaultPollInterval)

	eng := engine.NewWorkflowEngine(logger, store, reg, messenger, eventBus, poller)

	if err := poller.Start(ctx, eng.Resume); err != nil {
		panic(err)
	}

	return &runtime{
		store:    store,
		registry: reg,
		engine:   eng,
		poller:   poller,
		bus:      eventBus,
	}
}

func (rt *runtime) shutdown(ctx context.Context, logger *slog.Logger) {
	if err := rt.poller.Stop(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to stop resume poller", "error", err)
	}

	if err := rt.bus.Close(); err != nil {
		logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := rt.store.Close(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
