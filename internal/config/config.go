package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	KV       KVConfig       `mapstructure:"kv"`
	Cron     CronConfig     `mapstructure:"cron"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Explorer ExplorerConfig `mapstructure:"explorer"`
	Presale  PresaleConfig  `mapstructure:"presale"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Token    TokenConfig    `mapstructure:"token"`
	Claim    ClaimConfig    `mapstructure:"claim"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig configures the optional run journal. An empty DSN disables it.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type KVConfig struct {
	// Backend is "redis" or "memory".
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Ingest  string `mapstructure:"ingest"`
}

type LedgerConfig struct {
	// URL selects the transport: ws(s):// uses the websocket API, http(s):// uses JSON-RPC.
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	// WSConns caps concurrent websocket requests; each connection runs one at a time.
	WSConns int `mapstructure:"ws_conns"`
}

type ExplorerConfig struct {
	XRPScanBaseURL string        `mapstructure:"xrpscan_base_url"`
	DataAPIBaseURL string        `mapstructure:"data_api_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxPages       int           `mapstructure:"max_pages"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	UserAgent      string        `mapstructure:"user_agent"`
}

type PresaleConfig struct {
	Destination  string `mapstructure:"destination"`
	StartLedger  int64  `mapstructure:"start_ledger"`
	CutoffLedger int64  `mapstructure:"cutoff_ledger"`
	// Target is the fundraising goal in XRP.
	Target      float64 `mapstructure:"target"`
	RecentLimit int     `mapstructure:"recent_limit"`
	// SupplyForSale is the token amount split pro rata at snapshot time.
	SupplyForSale string `mapstructure:"supply_for_sale"`
}

type IngestConfig struct {
	Secret    string        `mapstructure:"secret"`
	PageLimit int           `mapstructure:"page_limit"`
	MaxPages  int           `mapstructure:"max_pages"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

type TokenConfig struct {
	Currency string `mapstructure:"currency"`
	Issuer   string `mapstructure:"issuer"`
}

type ClaimConfig struct {
	// StaticSnapshot is a JSON object address -> amount used when no snapshot was finalized.
	StaticSnapshot string `mapstructure:"static_snapshot"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRESALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("kv.backend", "memory")
	v.SetDefault("kv.redis_addr", "")
	v.SetDefault("kv.redis_password", "")
	v.SetDefault("kv.redis_db", 0)
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.ingest", "@every 2m")
	v.SetDefault("ledger.url", "wss://xrplcluster.com")
	v.SetDefault("ledger.timeout", "20s")
	v.SetDefault("ledger.max_retries", 2)
	v.SetDefault("ledger.ws_conns", 4)
	v.SetDefault("explorer.xrpscan_base_url", "https://api.xrpscan.com")
	v.SetDefault("explorer.data_api_base_url", "https://data.ripple.com")
	v.SetDefault("explorer.timeout", "10s")
	v.SetDefault("explorer.max_pages", 60)
	v.SetDefault("explorer.cache_ttl", "30s")
	v.SetDefault("explorer.user_agent", "presale-service")
	v.SetDefault("presale.destination", "")
	v.SetDefault("presale.start_ledger", 0)
	v.SetDefault("presale.cutoff_ledger", 0)
	v.SetDefault("presale.target", 50000)
	v.SetDefault("presale.recent_limit", 500)
	v.SetDefault("presale.supply_for_sale", "50000000000")
	v.SetDefault("ingest.secret", "")
	v.SetDefault("ingest.page_limit", 200)
	v.SetDefault("ingest.max_pages", 1000)
	v.SetDefault("ingest.lock_ttl", "5m")
	v.SetDefault("token.currency", "FIAT")
	v.SetDefault("token.issuer", "")
	v.SetDefault("claim.static_snapshot", "")
}

func (c *Config) normalize() {
	c.KV.Backend = strings.ToLower(strings.TrimSpace(c.KV.Backend))
	c.Presale.Destination = strings.TrimSpace(c.Presale.Destination)
	c.Token.Issuer = strings.TrimSpace(c.Token.Issuer)
	c.Explorer.XRPScanBaseURL = strings.TrimRight(strings.TrimSpace(c.Explorer.XRPScanBaseURL), "/")
	c.Explorer.DataAPIBaseURL = strings.TrimRight(strings.TrimSpace(c.Explorer.DataAPIBaseURL), "/")
	if c.Ingest.PageLimit <= 0 || c.Ingest.PageLimit > 400 {
		c.Ingest.PageLimit = 200
	}
	if c.Ingest.MaxPages <= 0 {
		c.Ingest.MaxPages = 1000
	}
	if c.Ledger.WSConns <= 0 {
		c.Ledger.WSConns = 4
	}
	if c.Explorer.MaxPages <= 0 {
		c.Explorer.MaxPages = 60
	}
	if c.Presale.RecentLimit <= 0 {
		c.Presale.RecentLimit = 500
	}
}

// Validate reports configuration that would make the service unusable.
func (c Config) Validate() error {
	var errs []error
	if c.Presale.Destination == "" {
		errs = append(errs, errors.New("presale.destination required"))
	}
	if _, err := c.SupplyForSale(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.StaticSnapshot(); err != nil {
		errs = append(errs, err)
	}
	switch c.KV.Backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.KV.RedisAddr) == "" {
			errs = append(errs, errors.New("kv.redis_addr required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown kv.backend %q", c.KV.Backend))
	}
	return errors.Join(errs...)
}

func (c Config) SupplyForSale() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Presale.SupplyForSale))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse presale.supply_for_sale: %w", err)
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.New("presale.supply_for_sale must be positive")
	}
	return d, nil
}

// StaticSnapshot parses claim.static_snapshot. Values may be JSON numbers or strings.
func (c Config) StaticSnapshot() (map[string]string, error) {
	raw := strings.TrimSpace(c.Claim.StaticSnapshot)
	out := map[string]string{}
	if raw == "" {
		return out, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse claim.static_snapshot: %w", err)
	}
	for addr, v := range m {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[strings.TrimSpace(addr)] = strings.TrimSpace(s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return nil, fmt.Errorf("parse claim.static_snapshot[%s]: %w", addr, err)
		}
		out[strings.TrimSpace(addr)] = n.String()
	}
	return out, nil
}
