package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "KUPA"

// Store selects and configures the row store.
type Store struct {
	Driver          string `mapstructure:"driver"`
	DatabaseURL     string `mapstructure:"database_url"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	SheetName       string `mapstructure:"sheet_name"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type YNAB struct {
	Token     string `mapstructure:"token"`
	BudgetID  string `mapstructure:"budget_id"`
	AccountID string `mapstructure:"account_id"`
	Payee     string `mapstructure:"payee"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	LogLevel            string `mapstructure:"log_level"`
	Layout              string `mapstructure:"layout"`
	DivergenceTolerance string `mapstructure:"divergence_tolerance"`
	OutputPath          string `mapstructure:"output_path"`

	Server Server `mapstructure:"server"`
	Store  Store  `mapstructure:"store"`
	YNAB   YNAB   `mapstructure:"ynab"`
}

var defaults = map[string]interface{}{
	"log_level":            "info",
	"layout":               "auto",
	"divergence_tolerance": "1.00",
	"server.addr":          "0.0.0.0:3000",
	"store.driver":         "memory",
	"store.sheet_name":     "Transactions",
	"ynab.payee":           "Café sales",
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"log-level": "log_level",
	"layout":    "layout",
	"addr":      "server.addr",
	"store":     "store.driver",
	"output":    "output_path",
}

// Build loads configuration from, in increasing precedence: defaults, the
// config file, a .env file, KUPA_* environment variables and set flags.
// cfgFile may be empty, in which case config.yaml is read when present.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		_ = v.BindEnv(key)
	}
	for _, key := range []string{"store.database_url", "store.spreadsheet_id", "store.credentials_file", "ynab.token", "ynab.budget_id", "ynab.account_id", "output_path"} {
		_ = v.BindEnv(key)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if _, err := cfg.Tolerance(); err != nil {
		return nil, err
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	return &cfg, nil
}

// Tolerance is the parsed divergence tolerance.
func (c *Config) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.DivergenceTolerance))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid divergence_tolerance %q: %w", c.DivergenceTolerance, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("divergence_tolerance must not be negative, got %s", d)
	}
	return d, nil
}

// Level is the parsed log level. Build has already validated it.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// loadDotEnv exports the variables of path without overriding ones already
// set. A missing file is not an error.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	env, err := gotenv.StrictParse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for key, value := range env {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}
