// Scene Rotator
//
// scenerotator connects to OBS Studio over obs-websocket v5 and cycles the
// current program scene through the scenes of one named group at a fixed
// interval. Groups are edited and rotation is controlled over a REST and
// WebSocket API, and optionally over MQTT.
//
// Usage:
//
//	scenerotator                       run the service
//	scenerotator token -sub <name>     print a bearer token for the API
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/scene-rotator/internal/api"
	"github.com/nerrad567/scene-rotator/internal/audit"
	"github.com/nerrad567/scene-rotator/internal/control"
	"github.com/nerrad567/scene-rotator/internal/discovery"
	"github.com/nerrad567/scene-rotator/internal/groups"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/database"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/influxdb"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/logging"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/mqtt"
	"github.com/nerrad567/scene-rotator/internal/obs"
	"github.com/nerrad567/scene-rotator/internal/rotation"
	"github.com/nerrad567/scene-rotator/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Default dotenv file, loaded before the configuration when present.
const defaultEnvFile = ".env"

// shutdownTimeout bounds the final group save on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	if err := loadDotEnv(getEnvFile()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading env file: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled or a
// long-running component fails.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting scenerotator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
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

	// Core. Broadcast targets are attached to the relay as surfaces come up.
	events := &relay{}
	reporter := rotation.NewErrorReporter(log.Component("rotation"))
	reporter.SetBroadcaster(events)
	store := rotation.NewGroupStore()
	queue := rotation.NewTaskQueue(cfg.Rotation.QueueSize, log.Component("host"))

	host := obs.NewSupervisor(cfg.OBS, log.Component("obs"))
	host.SetOnConnect(func() {
		log.Info("OBS session established", "url", cfg.OBS.URL)
	})
	host.SetOnDisconnect(func(err error) {
		log.Warn("OBS session lost", "error", err)
	})
	host.SetOnEvent(func(ev obs.Event) {
		if ev.Type == obs.EventCurrentProgramSceneChanged {
			events.Broadcast(rotation.ChannelProgramScene, ev.Data)
		}
	})

	executor := rotation.NewSwitchExecutor(host, queue, reporter, log.Component("rotation"))
	executor.SetBroadcaster(events)

	scheduler := rotation.NewScheduler(store, executor, reporter,
		rotation.WithInterval(cfg.RotationInterval()),
		rotation.WithLogger(log.Component("rotation")),
		rotation.WithBroadcaster(events),
	)
	defer scheduler.Close()

	// Persistence
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close(log)

	syncer := groups.NewSyncer(st.repo, store, reporter, log.Component("groups"),
		time.Duration(cfg.Storage.SaveDebounce)*time.Millisecond)
	if loadErr := syncer.Load(ctx); loadErr != nil {
		log.Warn("starting with empty group store", "error", loadErr)
	}
	log.Info("scene groups loaded", "backend", cfg.Storage.Backend, "groups", store.Len())
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if flushErr := syncer.Flush(flushCtx); flushErr != nil {
			log.Error("saving scene groups on shutdown", "error", flushErr)
		}
	}()

	// Metrics (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connectErr := influxdb.Connect(cfg.InfluxDB)
		if connectErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connectErr)
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
		executor.SetMetrics(influxClient)
		reporter.OnReport(func(rep rotation.Report) { influxClient.WriteError(string(rep.Kind)) })
		events.Add(stateRecorder{metrics: influxClient})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Long-running components. Early returns below still stop and drain them.
	runCtx, cancelRun := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	defer func() {
		cancelRun()
		_ = g.Wait()
	}()

	g.Go(func() error {
		queue.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if runErr := host.Run(gctx); runErr != nil {
			return fmt.Errorf("obs: %w", runErr)
		}
		return nil
	})

	if st.fileStore != nil && cfg.Storage.Watch {
		g.Go(func() error {
			if watchErr := st.fileStore.Watch(gctx, syncer.Apply, syncer.ReloadFailed); watchErr != nil {
				log.Warn("groups file watch stopped", "error", watchErr)
			}
			return nil
		})
	}

	// Event history (sqlite backend only)
	var history *audit.SQLiteRepository
	if st.db != nil {
		history = audit.NewSQLiteRepository(st.db.DB)
		recorder := audit.NewRecorder(history,
			time.Duration(cfg.Database.HistoryRetentionDays)*24*time.Hour,
			log.Component("history"))
		events.Add(recorder)
		g.Go(func() error {
			recorder.Run(gctx)
			return nil
		})
	}

	// MQTT control surface (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))

		bridge := control.NewBridge(mqttClient, mqttClient.Topics(), mqttClient.QoS(),
			scheduler, executor, reporter, log.Component("control"))
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		mqttClient.SetOnConnect(bridge.Resync)
		events.Add(bridge)
		g.Go(func() error {
			bridge.Run(gctx)
			return nil
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"prefix", mqttClient.Topics().Prefix(),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		hub := api.NewHub(cfg.WebSocket, log.Component("ws"))
		events.Add(hub)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})

		deps := api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Security:  cfg.Security,
			Logger:    log.Component("api"),
			Store:     store,
			Scheduler: scheduler,
			Executor:  executor,
			Reporter:  reporter,
			Scenes:    host,
			Persister: syncer,
			Queue:     queue,
			Hub:       hub,
			Version:   version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if history != nil {
			deps.History = history
		}

		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		if cfg.Security.JWT.Secret == "" {
			log.Info("API authentication disabled, no JWT secret configured")
		}

		if cfg.API.MDNS.Enabled {
			adv := discovery.NewAdvertiser(discovery.Info{
				Instance: cfg.API.MDNS.Instance,
				Port:     cfg.API.Port,
				Version:  version,
				Auth:     cfg.Security.JWT.Secret != "",
				Panel:    cfg.API.Panel.Enabled,
			}, log.Component("mdns"))
			g.Go(func() error {
				if advErr := adv.Run(gctx); advErr != nil {
					log.Warn("mdns advertisement unavailable", "error", advErr)
				}
				return nil
			})
		}
	} else {
		log.Info("API disabled")
	}

	applyStartupState(cfg.Rotation, scheduler, log)

	log.Info("initialisation complete, waiting for shutdown signal")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("service stopped with error", "error", err)
		return err
	}

	log.Info("scenerotator stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SCENEROTATOR_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SCENEROTATOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// getEnvFile returns the dotenv path, overridable with SCENEROTATOR_ENV_FILE.
func getEnvFile() string {
	if path := os.Getenv("SCENEROTATOR_ENV_FILE"); path != "" {
		return path
	}
	return defaultEnvFile
}

// loadDotEnv exports the variables in path without overriding the real
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// storage is the opened group backend.
type storage struct {
	repo      groups.Repository
	fileStore *groups.FileStore // json backend only
	db        *database.DB      // sqlite backend only
}

func (st storage) close(log *logging.Logger) {
	if st.db == nil {
		return
	}
	log.Info("closing database")
	if err := st.db.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}
}

// openStorage opens the configured group backend.
func openStorage(ctx context.Context, cfg *config.Config, log *logging.Logger) (storage, error) {
	if cfg.Storage.Backend != config.StorageSQLite {
		fs := groups.NewFileStore(cfg.Storage.GroupsFile, log.Component("groups"))
		return storage{repo: fs, fileStore: fs}, nil
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return storage{}, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return storage{}, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	return storage{repo: groups.NewSQLiteRepository(db.DB), db: db}, nil
}

// applyStartupState selects the configured group and starts rotation when
// autostart is set. Failures are already reported by the scheduler.
func applyStartupState(cfg config.RotationConfig, scheduler *rotation.Scheduler, log *logging.Logger) {
	if cfg.ActiveGroup != "" {
		if err := scheduler.SetActiveGroup(cfg.ActiveGroup); err != nil {
			log.Warn("configured active group not loaded", "group", cfg.ActiveGroup)
		}
	}
	if cfg.Autostart {
		scheduler.Start()
	}
}
