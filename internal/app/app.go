package app

import (
	"context"
	"net/http"
	"time"

	tomography "github.com/iwtcode/tomographyAdapter"
	"github.com/iwtcode/tomographyAdapter/internal/adapters/handlers"
	"github.com/iwtcode/tomographyAdapter/internal/config"
	api "github.com/iwtcode/tomographyAdapter/internal/domain/models"
	"github.com/iwtcode/tomographyAdapter/internal/interfaces"
	"github.com/iwtcode/tomographyAdapter/internal/metrics"
	"github.com/iwtcode/tomographyAdapter/internal/middleware/logging"
	"github.com/iwtcode/tomographyAdapter/internal/services/events"
	"github.com/iwtcode/tomographyAdapter/internal/services/kafka"
	"github.com/iwtcode/tomographyAdapter/internal/services/mqtt"
	"github.com/iwtcode/tomographyAdapter/internal/services/redis"
	"github.com/iwtcode/tomographyAdapter/internal/services/stream"
	"github.com/iwtcode/tomographyAdapter/internal/usecases"

	"go.uber.org/fx"
)

const refreshInterval = 5 * time.Second

// New создает новый экземпляр fx.App. Дополнительные опции позволяют
// командам переопределить конфигурацию до запуска.
func New(options ...fx.Option) *fx.App {
	return fx.New(
		ConfigModule,
		LoggingModule,
		ManagerModule,
		SinkModule,
		UsecaseModule,
		HttpServerModule,
		fx.Options(options...),
		// Invoke-функции для запуска фоновых задач и хуков жизненного цикла
		fx.Invoke(InvokeManager),
	)
}

// --- Модули FX ---

var ConfigModule = fx.Module("config_module",
	fx.Provide(config.LoadConfiguration),
)

func ProvideLogger(lc fx.Lifecycle, cfg *config.AppConfig) *logging.Logger {
	loggerCfg := &logging.Config{
		Enabled:    cfg.Logging.Enable,
		Level:      cfg.Logging.Level,
		LogsDir:    cfg.Logging.LogsDir,
		SavingDays: uint(cfg.Logging.SavingDays),
	}
	logger := logging.NewLogger(loggerCfg, "TomographyManager")
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return logger.Close()
		},
	})
	return logger
}

var LoggingModule = fx.Module("logging_module",
	fx.Provide(ProvideLogger),
)

// ProvideClient создает менеджер устройств поверх общего логгера сервиса.
func ProvideClient(cfg *config.AppConfig, logger *logging.Logger) (*tomography.Client, error) {
	return tomography.NewWithLogger(cfg.Manager, logger.Logrus())
}

func ProvideDeviceManager(client *tomography.Client) interfaces.DeviceManager {
	return client
}

var ManagerModule = fx.Module("manager_module",
	fx.Provide(
		ProvideClient,
		ProvideDeviceManager,
	),
)

// Sinks - включенные приемники событий. Bridge и History равны nil, если
// MQTT или Redis не настроены.
type Sinks struct {
	All     []interfaces.EventSink
	Bridge  *mqtt.Bridge
	History interfaces.EventHistory
}

// ProvideMetrics возвращает nil, если метрики отключены.
func ProvideMetrics(cfg *config.AppConfig) *metrics.Metrics {
	if !cfg.MetricsEnabled {
		return nil
	}
	return metrics.New()
}

func ProvideSinks(cfg *config.AppConfig, hub *stream.Hub, logger *logging.Logger) (*Sinks, error) {
	sinks := &Sinks{All: []interfaces.EventSink{hub}}

	if cfg.Kafka.Broker != "" {
		logger.Info("Kafka sink enabled", "broker", cfg.Kafka.Broker, "topic", cfg.Kafka.Topic)
		sinks.All = append(sinks.All, kafka.NewKafkaProducer(cfg.Kafka))
	}

	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := redis.NewEventStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("Redis sink enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
		sinks.All = append(sinks.All, store)
		sinks.History = store
	}

	if cfg.MQTT.Broker != "" {
		sinks.Bridge = mqtt.NewBridge(cfg.MQTT, logger)
		sinks.All = append(sinks.All, sinks.Bridge)
	}

	return sinks, nil
}

func ProvideHistory(sinks *Sinks) interfaces.EventHistory {
	return sinks.History
}

func ProvideDispatcher(manager interfaces.DeviceManager, m *metrics.Metrics, sinks *Sinks, logger *logging.Logger) *events.Dispatcher {
	return events.NewDispatcher(manager, m, logger, sinks.All...)
}

var SinkModule = fx.Module("sink_module",
	fx.Provide(
		stream.NewHub,
		ProvideMetrics,
		ProvideSinks,
		ProvideHistory,
		ProvideDispatcher,
	),
)

var UsecaseModule = fx.Module("usecases_module",
	fx.Provide(usecases.NewUsecases),
)

var HttpServerModule = fx.Module("http_server_module",
	fx.Provide(
		handlers.NewHandler,
		handlers.ProvideRouter,
	),
	fx.Invoke(InvokeHttpServer),
)

// InvokeManager запускает менеджер, раздачу событий и прием команд по MQTT.
func InvokeManager(
	lc fx.Lifecycle,
	client *tomography.Client,
	dispatcher *events.Dispatcher,
	hub *stream.Hub,
	sinks *Sinks,
	m *metrics.Metrics,
	usecase interfaces.Usecases,
	logger *logging.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			go hub.Run()

			if sinks.Bridge != nil {
				if err := sinks.Bridge.Connect(startCtx); err != nil {
					logger.Error("Failed to connect to MQTT broker", "error", err)
					return err
				}
				err := sinks.Bridge.SubscribeCommands(func(cmd api.MQTTCommand) error {
					return usecase.SendCommand(cmd.Device, api.CommandRequest{Function: cmd.Function, Args: cmd.Args})
				})
				if err != nil {
					return err
				}
			}

			dispatcher.Start()
			if err := client.Start(ctx); err != nil {
				logger.Error("FATAL: Failed to start device manager", "error", err)
				return err
			}
			logger.Info("Device manager is listening", "address", client.Addr().String())

			go func() {
				if err := client.WaitReady(ctx); err != nil {
					logger.Warn("Not all devices came online", "error", err)
					return
				}
				logger.Info("All devices are online")
			}()

			if m != nil {
				go refreshMetrics(ctx, client, m)
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			logger.Info("Stopping device manager...")
			err := client.Shutdown(stopCtx)
			cancel()
			dispatcher.Wait()
			for _, sink := range sinks.All {
				if cerr := sink.Close(); cerr != nil {
					logger.Warn("Failed to close event sink", "sink", sink.Name(), "error", cerr)
				}
			}
			logger.Info("Event sinks drained", "dropped", dispatcher.Dropped())
			return err
		},
	})
}

func refreshMetrics(ctx context.Context, client *tomography.Client, m *metrics.Metrics) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(client.Devices())
		}
	}
}

// InvokeHttpServer запускает HTTP-сервер.
func InvokeHttpServer(lc fx.Lifecycle, cfg *config.AppConfig, h http.Handler, logger *logging.Logger) {
	serverAddr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     h,
		ReadTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("HTTP Server is starting", "address", serverAddr)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Failed to start server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}
