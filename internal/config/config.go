package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime knob, read from the environment with an
// optional .env file.
type Config struct {
	HTTPPort string
	Debug    bool

	// Backend selects the order store implementation: "file" or "postgres".
	Backend  string
	DataFile string

	AdminUser     string
	AdminPassword string

	RefreshInterval  time.Duration
	BootstrapTimeout time.Duration

	// SyncBackend selects the cross-client sync channel: "kafka", "redis"
	// or "console".
	SyncBackend  string
	KafkaBrokers []string
	SyncTopic    string
	AuditTopic   string
	SyncGroupID  string
	RedisAddr    string
	RedisChannel string
}

// loadEnv probes for a .env alongside the working directory and its parents,
// without overriding variables already set in the environment.
func loadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("config: cannot resolve working directory: %v", err)
		return
	}

	for _, p := range []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	} {
		if err := godotenv.Load(p); err == nil {
			log.Printf("config: loaded environment from %s", p)
			return
		}
	}
}

func Load() Config {
	loadEnv()

	return Config{
		HTTPPort: getEnv("HTTP_PORT", "9000"),
		Debug:    getBool("DEBUG", false),

		Backend:  getEnv("STORE_BACKEND", "file"),
		DataFile: getEnv("STORE_FILE", "modgarage.json"),

		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "change-me"),

		RefreshInterval:  getDuration("REFRESH_INTERVAL", 60*time.Second),
		BootstrapTimeout: getDuration("BOOTSTRAP_TIMEOUT", 10*time.Second),

		SyncBackend:  getEnv("SYNC_BACKEND", "console"),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		SyncTopic:    getEnv("SYNC_TOPIC", "collection_sync"),
		AuditTopic:   getEnv("AUDIT_TOPIC", "admin_audit"),
		SyncGroupID:  getEnv("SYNC_GROUP_ID", "modgarage-sync"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisChannel: getEnv("REDIS_CHANNEL", "modgarage:sync"),
	}
}

// DSN assembles the postgres connection string from the standard variables.
func DSN() string {
	return "host=" + getEnv("DB_HOST", "localhost") +
		" port=" + getEnv("DB_PORT", "5432") +
		" user=" + getEnv("POSTGRES_USER", "postgres") +
		" password=" + getEnv("POSTGRES_PASSWORD", "") +
		" dbname=" + getEnv("POSTGRES_DB", "modgarage") +
		" sslmode=disable"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("config: invalid duration for %s: %q, using default", key, v)
	return def
}
