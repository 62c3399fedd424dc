package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultOrigin          = "https://edu.donstu.ru/"
	defaultCredentialsFile = "token.json"
)

type Config struct {
	TelegramToken   string
	DBDSN           string
	Environment     string
	LogLevel        string
	CredentialsFile string // JSON-ключ сервисного аккаунта Google
	RaspOrigin      string
	ReserveOrigin   string
	SyncConfigPath  string
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		DBDSN:           os.Getenv("DB_DSN"),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		Environment:     getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", defaultCredentialsFile),
		RaspOrigin:      getEnv("RASP_ORIGIN", defaultOrigin),
		SyncConfigPath:  os.Getenv("SYNC_CONFIG"),
	}
	cfg.ReserveOrigin = getEnv("RASP_RESERVE_ORIGIN", cfg.RaspOrigin)

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	return cfg, nil
}

// SyncSettings настройки синхронизации
type SyncSettings struct {
	Timezone         string        `yaml:"timezone"`
	ActiveFromHour   int           `yaml:"active_from_hour"`
	ActiveToHour     int           `yaml:"active_to_hour"` // включительно
	ActiveThreshold  time.Duration `yaml:"active_threshold"`
	IdleThreshold    time.Duration `yaml:"idle_threshold"`
	DirectoryRefresh time.Duration `yaml:"directory_refresh"`
	DirectoryRetry   time.Duration `yaml:"directory_retry"`
	DirectorySpaces  []int64       `yaml:"directory_spaces"`
	SyncCron         string        `yaml:"sync_cron"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	CatalogTTL       time.Duration `yaml:"catalog_ttl"`

	Location *time.Location `yaml:"-"`
}

// DefaultSyncSettings настройки по умолчанию
func DefaultSyncSettings() *SyncSettings {
	return &SyncSettings{
		Timezone:         "Europe/Moscow",
		ActiveFromHour:   7,
		ActiveToHour:     18,
		ActiveThreshold:  10 * time.Minute,
		IdleThreshold:    30 * time.Minute,
		DirectoryRefresh: 24 * time.Hour,
		DirectoryRetry:   15 * time.Minute,
		DirectorySpaces:  []int64{1, 4},
		SyncCron:         "* * * * *",
		HTTPTimeout:      30 * time.Second,
		CatalogTTL:       24 * time.Hour,
	}
}

// LoadSyncSettings читает YAML поверх значений по умолчанию. Пустой path - только умолчания.
func LoadSyncSettings(path string) (*SyncSettings, error) {
	s := DefaultSyncSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sync config: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse sync config: %w", err)
		}
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid sync config: %w", err)
	}

	return s, nil
}

func (s *SyncSettings) validate() error {
	var errs []error

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", s.Timezone, err))
	}
	s.Location = loc

	if s.ActiveFromHour < 0 || s.ActiveFromHour > 23 || s.ActiveToHour < 0 || s.ActiveToHour > 23 {
		errs = append(errs, errors.New("active hours must be within 0..23"))
	}
	if s.ActiveFromHour > s.ActiveToHour {
		errs = append(errs, errors.New("active_from_hour is after active_to_hour"))
	}
	if s.ActiveThreshold <= 0 || s.IdleThreshold <= 0 {
		errs = append(errs, errors.New("thresholds must be positive"))
	}
	if s.DirectoryRefresh <= 0 || s.DirectoryRetry <= 0 {
		errs = append(errs, errors.New("directory_refresh and directory_retry must be positive"))
	}
	if len(s.DirectorySpaces) == 0 {
		errs = append(errs, errors.New("directory_spaces is empty"))
	}
	if s.SyncCron == "" {
		errs = append(errs, errors.New("sync_cron is empty"))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
