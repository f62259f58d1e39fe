package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	HTTPAddr   string
	LogLevel   string
	RedisDSN   string
	ExportDir  string
	ExportBase string

	// scrape source credentials; never log the hash
	TelegramAPIID   int
	TelegramAPIHash string
	SessionFile     string
	ScrapeDelayMs   int

	// worker fan-out
	SourceGroups      []string
	WorkerCount       int
	MaxPerGroup       int
	ScrapeIntervalMin int // 0 = single pass

	// export archive (S3/R2 compatible); optional
	ArchiveEndpoint string
	ArchiveBucket   string
	ArchiveKeysRaw  string

	AdminSecretKey string
	CORSOrigins    []string
}

func Load() (Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := Config{
		DBPath:          getenvDefault("DB_PATH", "telegram_scraper.db"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:        getenvDefault("REDIS_DSN", ""),
		ExportDir:       getenvDefault("EXPORT_DIR", "."),
		ExportBase:      getenvDefault("EXPORT_BASE", "scrape_results"),
		TelegramAPIHash: os.Getenv("TELEGRAM_API_HASH"),
		SessionFile:     getenvDefault("SESSION_FILE", "member-archive.session"),
		ArchiveEndpoint: getenvDefault("ARCHIVE_ENDPOINT", ""),
		ArchiveBucket:   getenvDefault("ARCHIVE_BUCKET", ""),
		ArchiveKeysRaw:  os.Getenv("ARCHIVE_KEYS"),
		AdminSecretKey:  getenvDefault("ADMIN_SECRET_KEY", ""),
	}

	var err error
	if cfg.TelegramAPIID, err = getenvInt("TELEGRAM_API_ID", 0); err != nil {
		return Config{}, errors.New("TELEGRAM_API_ID must be an integer")
	}
	if cfg.ScrapeDelayMs, err = getenvInt("SCRAPE_DELAY_MS", 100); err != nil {
		return Config{}, errors.New("SCRAPE_DELAY_MS must be an integer")
	}
	if cfg.WorkerCount, err = getenvInt("WORKER_COUNT", 4); err != nil {
		return Config{}, errors.New("WORKER_COUNT must be an integer")
	}
	if cfg.MaxPerGroup, err = getenvInt("MAX_PER_GROUP", 100); err != nil {
		return Config{}, errors.New("MAX_PER_GROUP must be an integer")
	}
	if cfg.ScrapeIntervalMin, err = getenvInt("SCRAPE_INTERVAL_MIN", 0); err != nil {
		return Config{}, errors.New("SCRAPE_INTERVAL_MIN must be an integer")
	}

	if cfg.DBPath == "" {
		return Config{}, errors.New("missing DB_PATH")
	}

	// light validation: archive keys must be valid json if set
	if cfg.ArchiveKeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.ArchiveKeysRaw), &tmp); err != nil {
			return Config{}, errors.New("ARCHIVE_KEYS must be valid json")
		}
	}

	cfg.SourceGroups = splitList(getenvDefault("SOURCE_GROUPS", ""))

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = splitList(corsOrigins)
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
