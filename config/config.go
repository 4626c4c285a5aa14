package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration. It is constructed once at
// process start and passed by pointer into the pipeline and auditor; no
// component reads ambient environment state on its own.
type Config struct {
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"nhs"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"nhs123"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"nhs_data"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	SourcePath  string `env:"SOURCE_PATH" envDefault:"./data/performance.csv"`
	MappingPath string `env:"MAPPING_PATH"`
	ReportDir   string `env:"REPORT_DIR" envDefault:"./output"`

	BatchSize       int           `env:"BATCH_SIZE" envDefault:"50"`
	RowWorkers      int           `env:"ROW_WORKERS" envDefault:"4"`
	WriteWorkers    int           `env:"WRITE_WORKERS" envDefault:"2"`
	WriteThrottleMs int           `env:"WRITE_THROTTLE_MS" envDefault:"0"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay  time.Duration `env:"RETRY_BASE_DELAY" envDefault:"2s"`

	// CompletenessThreshold is the populated-leaf ratio below which a
	// record is accepted with a low-completeness warning.
	CompletenessThreshold float64 `env:"COMPLETENESS_THRESHOLD" envDefault:"0.5"`

	ExpectedEntities        int      `env:"EXPECTED_ENTITIES" envDefault:"151"`
	ExpectedPeriods         int      `env:"EXPECTED_PERIODS" envDefault:"12"`
	MustHaveEntities        []string `env:"MUST_HAVE_ENTITIES" envSeparator:","`
	CriticalMissingFraction float64  `env:"CRITICAL_MISSING_FRACTION" envDefault:"0.1"`
}

// Load reads the .env file (when present) and returns a populated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, falling back to system env vars")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
