package tomography

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/iwtcode/tomographyAdapter/manager"
	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/sirupsen/logrus"
)

// Client является основной точкой входа для управления детекторами и столами.
type Client struct {
	orchestrator *manager.Orchestrator
	config       *Config
	logger       *logrus.Logger
}

// New создает клиента. Если WorkerCommand пуст, процессы устройств не
// запускаются и должны подключиться сами.
func New(cfg *Config) (*Client, error) {
	return NewWithLogger(cfg, NewLogger(cfg.LogLevel))
}

// NewWithLogger создает клиента с готовым логгером.
func NewWithLogger(cfg *Config, logger *logrus.Logger) (*Client, error) {
	var spawner manager.Spawner
	if len(cfg.WorkerCommand) > 0 {
		spawner = &manager.ExecSpawner{
			Command: cfg.WorkerCommand,
			LogsDir: cfg.LogsDir,
			Env:     []string{"TOMO_PASSWORD=" + cfg.Password, "LOG_LEVEL=" + cfg.LogLevel},
		}
	}

	orchestrator, err := manager.New(manager.Config{
		Addr:           cfg.Addr(),
		Password:       cfg.Password,
		Detectors:      cfg.Detectors,
		Tables:         cfg.Tables,
		PollTimeout:    cfg.Timeout,
		RoundTrip:      cfg.RoundTripTimeout,
		StartupTimeout: cfg.StartupTimeout,
	}, spawner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	return &Client{
		orchestrator: orchestrator,
		config:       cfg,
		logger:       logger,
	}, nil
}

// NewLogger настраивает logrus по уровню; "off" и "none" отключают вывод.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()

	if level == "off" || level == "none" {
		logger.SetOutput(io.Discard)
	} else {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		logger.SetLevel(lvl)
		logger.SetOutput(os.Stdout)
	}

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

// Start открывает порт и запускает процессы устройств.
func (c *Client) Start(ctx context.Context) error {
	return c.orchestrator.Start(ctx)
}

// WaitReady ждет рукопожатия всех устройств.
func (c *Client) WaitReady(ctx context.Context) error {
	return c.orchestrator.WaitReady(ctx)
}

// Addr возвращает фактический адрес прослушивания.
func (c *Client) Addr() net.Addr {
	return c.orchestrator.Addr()
}

// PostCommand ставит команду с числовым кодом в очередь устройства.
func (c *Client) PostCommand(device string, function uint32, payload any) error {
	return c.orchestrator.PostCommand(device, function, payload)
}

// Post ставит команду по имени функции ("home", "acquire_image") или ее коду.
// Несколько аргументов отправляются как список.
func (c *Client) Post(device, function string, args ...any) error {
	family, err := c.orchestrator.Family(device)
	if err != nil {
		// неизвестное имя: PostCommand публикует диагностику с подсказкой
		return c.orchestrator.PostCommand(device, 0, nil)
	}
	code, err := family.ParseFunction(function)
	if err != nil {
		return err
	}
	return c.orchestrator.PostCommand(device, code, Payload(args...))
}

// Payload собирает значение команды: nil без аргументов, сам аргумент для
// одного и список для нескольких.
func Payload(args ...any) any {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return args
	}
}

// Family возвращает таблицу кодов устройства.
func (c *Client) Family(device string) (*codes.Family, error) {
	return c.orchestrator.Family(device)
}

// Events возвращает поток событий. Канал закрывается после Shutdown.
func (c *Client) Events() <-chan models.Event {
	return c.orchestrator.Events()
}

// Devices возвращает состояние всех сконфигурированных устройств.
func (c *Client) Devices() []models.DeviceInfo {
	return c.orchestrator.Devices()
}

// Manager возвращает оркестратор для встраивания в сервис.
func (c *Client) Manager() *manager.Orchestrator {
	return c.orchestrator
}

// GetLogger возвращает используемый логгер.
func (c *Client) GetLogger() *logrus.Logger {
	return c.logger
}

// Shutdown останавливает менеджер и процессы устройств.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.orchestrator.Shutdown(ctx)
}
