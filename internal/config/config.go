package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	LogLevel      string
	DBDSN         string
	HTTPAddr      string
	MigrationsDir string

	TelegramToken string

	KafkaBrokers     string
	KafkaTopicPrefix string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NotifierInterval time.Duration
	SlotDuration     time.Duration
	WorkingHours     model.WorkingHours
	// AutoGenerateDays > 0 включает ежедневную генерацию слотов всем мастерам
	AutoGenerateDays int
}

// Load читает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment:      getEnv("ENV", "development"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		DBDSN:            os.Getenv("DB_DSN"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MigrationsDir:    os.Getenv("MIGRATIONS_DIR"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "scheduling."),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.AutoGenerateDays, err = getInt("AUTO_GENERATE_DAYS", 0); err != nil {
		return nil, err
	}

	if cfg.NotifierInterval, err = getDuration("NOTIFIER_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.NotifierInterval <= 0 {
		return nil, fmt.Errorf("NOTIFIER_INTERVAL must be positive")
	}

	minutes, err := getInt("SLOT_DURATION_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	if minutes <= 0 {
		return nil, fmt.Errorf("SLOT_DURATION_MINUTES must be positive, got %d", minutes)
	}
	cfg.SlotDuration = time.Duration(minutes) * time.Minute

	cfg.WorkingHours = model.DefaultWorkingHours()
	if v := os.Getenv("WORKING_HOURS_START"); v != "" {
		if cfg.WorkingHours.Start, err = model.ParseClockTime(v); err != nil {
			return nil, fmt.Errorf("WORKING_HOURS_START: %w", err)
		}
	}
	if v := os.Getenv("WORKING_HOURS_END"); v != "" {
		if cfg.WorkingHours.End, err = model.ParseClockTime(v); err != nil {
			return nil, fmt.Errorf("WORKING_HOURS_END: %w", err)
		}
	}
	if err := cfg.WorkingHours.Validate(); err != nil {
		return nil, fmt.Errorf("working hours: %w", err)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
