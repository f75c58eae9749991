package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/gray-logic-scheduler/migrations"

	"github.com/nerrad567/gray-logic-scheduler/internal/api"
	"github.com/nerrad567/gray-logic-scheduler/internal/audit"
	"github.com/nerrad567/gray-logic-scheduler/internal/automation"
	"github.com/nerrad567/gray-logic-scheduler/internal/bridges/mqttapi"
	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/device"
	"github.com/nerrad567/gray-logic-scheduler/internal/events"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
)

// core is the engine and everything it needs, shared by the service and
// the CLI subcommands.
type core struct {
	db       *database.DB
	registry *device.Registry
	executor *command.Executor
	store    *schedule.SQLiteStore
	engine   *automation.Engine
}

// openCore opens and migrates the database, builds the device registry
// from the catalog and wires the engine. The caller closes core.db.
func openCore(ctx context.Context, cfg *config.Config, log *logging.Logger, publisher automation.Publisher, m *metrics.Metrics) (*core, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("loading scheduler timezone: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:          cfg.Database.Path,
		WALMode:       cfg.Database.WALMode,
		BusyTimeout:   cfg.Database.BusyTimeout,
		DurableWrites: cfg.Database.DurableWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	catalog, err := device.CatalogFromConfig(cfg.Devices)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading device catalog: %w", err)
	}
	registry, err := device.NewRegistry(catalog)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building device registry: %w", err)
	}
	registry.SetLogger(log)

	executor := command.NewExecutor(registry)
	executor.SetLogger(log)

	store := schedule.NewSQLiteStore(db.DB, loc)

	engine := automation.NewEngine(automation.Config{
		Devices:   registry,
		Executor:  executor,
		Store:     store,
		Location:  loc,
		Publisher: publisher,
		Metrics:   m,
		Logger:    log,
	})

	return &core{
		db:       db,
		registry: registry,
		executor: executor,
		store:    store,
		engine:   engine,
	}, nil
}

// run is the service, separated from the cobra command for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Scheduler",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	// Event fan-out
	dispatcher := events.NewDispatcher(events.DefaultBufferSize)
	dispatcher.SetLogger(log)
	dispatcher.SetMetrics(m)

	c, err := openCore(ctx, cfg, log, dispatcher, m)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := c.db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)
	log.Info("device registry initialised", "devices", c.registry.Count())

	health := map[string]api.HealthChecker{"database": c.db}

	auditRepo := audit.NewSQLiteRepository(c.db.DB)
	dispatcher.AddSink(audit.NewSink(auditRepo))

	// Connect to MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge := mqttapi.NewBridge(c.engine, mqttClient, mqttClient.QoS())
		bridge.SetLogger(log)
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		dispatcher.AddSink(bridge)
		health["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		dispatcher.AddSink(events.NewTelemetrySink(influxClient))
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	dispatcher.AddSink(hub)

	dispatcher.Start(ctx)
	defer func() {
		log.Info("draining event queues")
		dispatcher.Close()
	}()

	// Scheduler loop
	scheduler := schedule.NewScheduler(c.store, c.executor, schedule.Config{
		PollInterval:     cfg.Scheduler.PollInterval,
		InvalidDuePolicy: schedule.InvalidDuePolicy(cfg.Scheduler.InvalidDuePolicy),
	})
	scheduler.SetLogger(log)
	scheduler.SetMetrics(m)
	scheduler.SetObserver(c.engine)

	var wg sync.WaitGroup
	defer func() {
		log.Info("waiting for scheduler loop")
		wg.Wait()
	}()
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(loopCtx)
	}()
	log.Info("scheduler started", "interval", scheduler.Interval())

	// HTTP API
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Engine:   c.engine,
		Hub:      hub,
		Audit:    auditRepo,
		Health:   health,
		Gatherer: promRegistry,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	for name, checker := range health {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check failed: %s: %w", name, err)
		}
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse order: API server, scheduler loop,
	// event queues, InfluxDB, MQTT, database.
	return nil
}
