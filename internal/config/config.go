package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Server is the hub's configuration, read from the environment.
type Server struct {
	Addr     string `envconfig:"FLOWSHARE_ADDR" default:":8001"`
	DBPath   string `envconfig:"FLOWSHARE_DB_PATH" default:"flowshare.sqlite3"`
	DataDir  string `envconfig:"FLOWSHARE_DATA_DIR" default:"flowshare-data"`
	LogLevel string `envconfig:"FLOWSHARE_LOG_LEVEL" default:"info"`
}

// Client configures the peer-side agent.
type Client struct {
	ServerURL      string        `envconfig:"FLOWSHARE_SERVER_URL" default:"http://localhost:8001"`
	ReconnectDelay time.Duration `envconfig:"FLOWSHARE_RECONNECT_DELAY" default:"3s"`
	LogLevel       string        `envconfig:"FLOWSHARE_LOG_LEVEL" default:"info"`
}

func LoadServer() (Server, error) {
	var cfg Server
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func LoadClient() (Client, error) {
	var cfg Client
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
