package syncer

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config groups all sync tunables. Values are taken from environment
// variables with the prefix "SYNC_". Example: SYNC_INTERVAL=60s SYNC_MAX_RETRIES=5 .
type Config struct {
	Interval     time.Duration `envconfig:"INTERVAL"      default:"30s"`
	RetryDelay   time.Duration `envconfig:"RETRY_DELAY"   default:"2s"`
	MaxRetries   int           `envconfig:"MAX_RETRIES"   default:"3"`
	OnlineDelay  time.Duration `envconfig:"ONLINE_DELAY"  default:"500ms"`
	MaxRegions   int           `envconfig:"MAX_REGIONS"   default:"5"`
	CycleTimeout time.Duration `envconfig:"CYCLE_TIMEOUT" default:"20s"`
}

// LoadConfig populates Config from environment variables (prefix SYNC_).
func LoadConfig() (Config, error) {
	var c Config
	return c, envconfig.Process("SYNC", &c)
}
