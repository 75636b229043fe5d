package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Settings holds application configuration. Values are taken from
// environment variables with the prefix "MAPCACHE_".
type Settings struct {
	ServiceURL string `envconfig:"SERVICE_URL" default:"http://localhost:8080"`
	LogLevel   string `envconfig:"LOG_LEVEL"   default:"info"`
	DataDir    string `envconfig:"DATA_DIR"    default:"./data/mapcache"`
}

// Load populates Settings from environment variables.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("MAPCACHE", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Init initializes logging from the loaded settings.
func (s *Settings) Init() {
	InitLogger()
	SetLogLevel(parseLevel(s.LogLevel))

	log.Info().
		Str("service_url", s.ServiceURL).
		Str("data_dir", s.DataDir).
		Str("log_level", s.LogLevel).
		Msg("Application configuration loaded")
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug", "DEBUG":
		return zerolog.DebugLevel
	case "info", "INFO":
		return zerolog.InfoLevel
	case "warn", "WARN":
		return zerolog.WarnLevel
	case "error", "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
