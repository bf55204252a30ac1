package tomography

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config хранит модель конфигурации менеджера
type Config struct {
	Host      string   `yaml:"host"`
	Port      uint16   `yaml:"port"`
	Password  string   `yaml:"password"`
	Detectors []string `yaml:"detectors"`
	Tables    []string `yaml:"tables"`

	// Timeout - ожидание данных обработчиком за одну итерацию
	Timeout          time.Duration `yaml:"timeout"`
	RoundTripTimeout time.Duration `yaml:"round_trip_timeout"`
	StartupTimeout   time.Duration `yaml:"startup_timeout"`

	LogsDir string `yaml:"logs_dir"`
	// WorkerCommand запускается как `<WorkerCommand...> worker <name>`
	WorkerCommand []string `yaml:"worker_command"`
	LogLevel      string   `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		Host:             "127.0.0.1",
		Port:             9000,
		Detectors:        []string{"xrd1611"},
		Tables:           []string{"Soloist"},
		Timeout:          time.Second,
		RoundTripTimeout: 10 * time.Second,
		StartupTimeout:   30 * time.Second,
		LogsDir:          "logs",
		WorkerCommand:    []string{"tomoctl"},
		LogLevel:         "info",
	}
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	cfg := defaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadFile читает YAML-файл поверх значений по умолчанию. Переменные окружения
// имеют приоритет над файлом.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Addr возвращает адрес прослушивания host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TOMO_HOST"); v != "" {
		c.Host = v
	}
	if port, err := strconv.ParseUint(os.Getenv("TOMO_PORT"), 10, 16); err == nil && port != 0 {
		c.Port = uint16(port)
	}
	if v, ok := os.LookupEnv("TOMO_PASSWORD"); ok {
		c.Password = v
	}
	if v, ok := os.LookupEnv("TOMO_DETECTORS"); ok {
		c.Detectors = splitNames(v)
	}
	if v, ok := os.LookupEnv("TOMO_TABLES"); ok {
		c.Tables = splitNames(v)
	}
	applyDuration("TOMO_TIMEOUT", &c.Timeout)
	applyDuration("TOMO_ROUND_TRIP_TIMEOUT", &c.RoundTripTimeout)
	applyDuration("TOMO_STARTUP_TIMEOUT", &c.StartupTimeout)
	if v := os.Getenv("TOMO_LOGS_DIR"); v != "" {
		c.LogsDir = v
	}
	if v := os.Getenv("TOMO_WORKER_COMMAND"); v != "" {
		c.WorkerCommand = strings.Fields(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// splitNames разбирает список имен, разделенных пробелами или запятыми.
func splitNames(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// applyDuration принимает "1.5s"/"500ms" или число секунд, как "0.5".
func applyDuration(key string, dst *time.Duration) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		*dst = time.Duration(secs * float64(time.Second))
	}
}
