package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/profile-sync/internal/contact"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ApifyConfig holds the Apify token and the actors used for scraping and
// contact lookup.
type ApifyConfig struct {
	Token           string `yaml:"token" mapstructure:"token"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	ScraperActor    string `yaml:"scraper_actor" mapstructure:"scraper_actor"`
	ContactActor    string `yaml:"contact_actor" mapstructure:"contact_actor"`
	InputFile       string `yaml:"input_file" mapstructure:"input_file"`
	PollTimeoutSecs int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// PollTimeout returns the actor wait limit.
func (c ApifyConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSecs) * time.Second
}

// ScrapeConfig configures search scraping.
type ScrapeConfig struct {
	MinDelay    int  `yaml:"min_delay" mapstructure:"min_delay"`
	MaxDelay    int  `yaml:"max_delay" mapstructure:"max_delay"`
	StartPage   int  `yaml:"start_page" mapstructure:"start_page"`
	EnrichAfter bool `yaml:"enrich_after" mapstructure:"enrich_after"`
}

// EnrichConfig configures contact enrichment.
type EnrichConfig struct {
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	PauseSecs   int    `yaml:"pause_secs" mapstructure:"pause_secs"`
	MergePolicy string `yaml:"merge_policy" mapstructure:"merge_policy"`
	PhoneRegion string `yaml:"phone_region" mapstructure:"phone_region"`
}

// Pause returns the wait between enrichment batches.
func (c EnrichConfig) Pause() time.Duration {
	return time.Duration(c.PauseSecs) * time.Second
}

// SalesforceConfig holds Salesforce JWT auth and Lead export settings.
type SalesforceConfig struct {
	ClientID       string  `yaml:"client_id" mapstructure:"client_id"`
	Username       string  `yaml:"username" mapstructure:"username"`
	KeyPath        string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL       string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	LeadSource     string  `yaml:"lead_source" mapstructure:"lead_source"`
	DefaultCompany string  `yaml:"default_company" mapstructure:"default_company"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RunRetentionMins int      `yaml:"run_retention_mins" mapstructure:"run_retention_mins"`
}

// RunRetention returns how long finished background runs stay in memory.
func (c ServerConfig) RunRetention() time.Duration {
	return time.Duration(c.RunRetentionMins) * time.Minute
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROFILESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a useful default are still registered so that
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "profiles.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("apify.token", "")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.scraper_actor", "pdcNMezBkIlhX0LwO")
	v.SetDefault("apify.contact_actor", "2SyF0bVxmgGr8IVCZ")
	v.SetDefault("apify.input_file", "")
	v.SetDefault("apify.poll_timeout_secs", 1800)
	v.SetDefault("scrape.min_delay", 2)
	v.SetDefault("scrape.max_delay", 5)
	v.SetDefault("scrape.start_page", 1)
	v.SetDefault("scrape.enrich_after", true)
	v.SetDefault("enrich.batch_size", 50)
	v.SetDefault("enrich.pause_secs", 5)
	v.SetDefault("enrich.merge_policy", string(contact.Preserve))
	v.SetDefault("enrich.phone_region", "US")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5.0)
	v.SetDefault("salesforce.lead_source", "LinkedIn")
	v.SetDefault("salesforce.default_company", "Unknown")
	v.SetDefault("salesforce.concurrency", 4)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.run_retention_mins", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "store",
// "scrape", "enrich", "crm" or "serve"; every mode includes the store checks.
// The server starts without provider credentials and reports provider
// failures per request. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
		fmt.Sprintf("store.driver %q is not supported (sqlite, postgres)", c.Store.Driver))
	check(c.Store.DatabaseURL != "", "store.database_url is required")
	if _, err := contact.ParsePolicy(c.Enrich.MergePolicy); err != nil {
		errs = append(errs, fmt.Sprintf("enrich.merge_policy %q must be preserve or overwrite", c.Enrich.MergePolicy))
	}

	enrich := func() {
		check(c.Apify.Token != "", "apify.token is required")
		check(c.Apify.ContactActor != "", "apify.contact_actor is required")
		check(c.Enrich.BatchSize > 0, "enrich.batch_size must be > 0")
	}
	scrape := func() {
		check(c.Apify.ScraperActor != "", "apify.scraper_actor is required")
		check(c.Scrape.MinDelay <= c.Scrape.MaxDelay, "scrape.min_delay must not exceed scrape.max_delay")
		enrich()
	}

	switch mode {
	case "store":
	case "enrich":
		enrich()
	case "scrape":
		scrape()
	case "crm":
		check(c.Salesforce.ClientID != "", "salesforce.client_id is required")
		check(c.Salesforce.KeyPath != "", "salesforce.key_path is required")
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
