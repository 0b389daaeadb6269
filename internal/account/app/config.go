package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is loaded once from the environment at startup and treated as
// immutable afterwards; everything downstream receives it by injection.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	// Issuer is the iss claim stamped into, and required from, every
	// session token.
	Issuer string `env:"ACCOUNT_ISSUER" envDefault:"accountd"`

	// ExternalURL is the public base URL used in mailed confirmation links.
	ExternalURL string `env:"ACCOUNT_EXTERNAL_URL" envDefault:"http://localhost:8080"`

	DatabaseFile string `env:"ACCOUNT_DATABASE_FILE" envDefault:"account.db"`

	// Pepper is mixed into password hashes; optional but recommended.
	Pepper string `env:"ACCOUNT_PEPPER"`

	Algorithm      string        `env:"ACCOUNT_ALGORITHM" envDefault:"EdDSA"`
	NumKeys        int           `env:"ACCOUNT_NUM_KEYS"`
	KeyStorageMode string        `env:"ACCOUNT_KEY_STORAGE_MODE" envDefault:"ephemeral"`
	KeyGracePeriod time.Duration `env:"ACCOUNT_KEY_GRACE_PERIOD" envDefault:"720h"`

	// MasterKeyFile holds the secret that encrypts persisted signing keys.
	// Required in persistent mode.
	MasterKeyFile string `env:"ACCOUNT_MASTER_KEY_FILE"`

	SessionTTL time.Duration `env:"ACCOUNT_SESSION_TTL" envDefault:"8760h"`

	// APIKey, when set, gates login behind the X-API-KEY header.
	APIKey string `env:"API_KEY"`

	// AdminUser/AdminPassword bootstrap one confirmed admin account at
	// startup.
	AdminUser     string `env:"ADMIN_USER"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("app: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.KeyStorageMode {
	case "ephemeral", "persistent":
	default:
		return fmt.Errorf("app: invalid ACCOUNT_KEY_STORAGE_MODE %q", c.KeyStorageMode)
	}
	if c.KeyStorageMode == "persistent" && c.MasterKeyFile == "" {
		return errors.New("app: ACCOUNT_MASTER_KEY_FILE is required in persistent key mode")
	}

	// A configured admin user with no password is a misconfiguration worth
	// failing loudly on, not an account with an empty password.
	if c.AdminUser != "" && c.AdminPassword == "" {
		return errors.New("app: ADMIN_USER is set but ADMIN_PASSWORD is empty")
	}
	return nil
}
