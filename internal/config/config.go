package config

import (
	"os"
	"strconv"

	tomography "github.com/iwtcode/tomographyAdapter"
	"github.com/joho/godotenv"
)

// AppConfig содержит конфигурацию сервиса
type AppConfig struct {
	ServerPort string
	GinMode    string
	// APITokenHash - bcrypt-хеш токена API; пустое значение отключает проверку
	APITokenHash   string
	MetricsEnabled bool

	Kafka   KafkaConfig
	Redis   RedisConfig
	MQTT    MQTTConfig
	Logging LoggerConfig

	Manager *tomography.Config
}

// LoggerConfig содержит настройки логгера
type LoggerConfig struct {
	Enable     bool
	LogsDir    string
	Level      string
	SavingDays int
}

// KafkaConfig - приемник событий Kafka; пустой Broker отключает его
type KafkaConfig struct {
	Broker string
	Topic  string
}

// RedisConfig - публикация событий и история сообщений в Redis
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Channel     string
	HistorySize int
}

// MQTTConfig - публикация событий и прием команд через MQTT
type MQTTConfig struct {
	Broker        string
	ClientID      string
	TopicEvents   string
	TopicCommands string
}

// LoadConfiguration загружает конфигурацию из .env файла или переменных окружения
func LoadConfiguration() (*AppConfig, error) {
	_ = godotenv.Load()

	manager := tomography.Load()
	if path := os.Getenv("TOMO_CONFIG"); path != "" {
		cfg, err := tomography.LoadFile(path)
		if err != nil {
			return nil, err
		}
		manager = cfg
	}

	config := &AppConfig{
		ServerPort:     getEnv("APP_PORT", "8082"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APITokenHash:   getEnv("API_TOKEN_HASH", ""),
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		Kafka: KafkaConfig{
			Broker: getEnv("KAFKA_BROKER", ""),
			Topic:  getEnv("KAFKA_TOPIC", "tomography_events"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			Channel:     getEnv("REDIS_CHANNEL", "tomography:events"),
			HistorySize: getEnvAsInt("REDIS_HISTORY_SIZE", 1000),
		},
		MQTT: MQTTConfig{
			Broker:        getEnv("MQTT_BROKER", ""),
			ClientID:      getEnv("MQTT_CLIENT_ID", "tomography-manager"),
			TopicEvents:   getEnv("MQTT_TOPIC_EVENTS", "tomography/events"),
			TopicCommands: getEnv("MQTT_TOPIC_COMMANDS", "tomography/commands"),
		},
		Logging: LoggerConfig{
			Enable:     getEnvAsBool("LOGGER_ENABLE", true),
			LogsDir:    getEnv("LOGGER_LOGS_DIR", "./logs"),
			Level:      getEnv("LOGGER_LOG_LEVEL", "DEBUG"),
			SavingDays: getEnvAsInt("LOGGER_SAVING_DAYS", 7),
		},
		Manager: manager,
	}

	return config, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(name string, defaultValue int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	val, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return val
}
