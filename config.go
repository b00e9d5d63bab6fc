package crawshawpool

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/BurntSushi/toml"

	"github.com/caasmo/crawshaw-pool/pool"
)

var ErrNoPath = errors.New("config: database path is required")

// Config is the TOML configuration of a pool.
//
//	path = "app.db"
//	pool_size = 8
//	min_idle = 2
//	max_idle_time = "10m"
//	test_on_checkout = true
type Config struct {
	Path              string   `toml:"path"`
	PoolSize          int32    `toml:"pool_size"`
	MinIdle           int32    `toml:"min_idle"`
	MaxIdleTime       Duration `toml:"max_idle_time"`
	MaxLifetime       Duration `toml:"max_lifetime"`
	HealthCheckPeriod Duration `toml:"health_check_period"`
	AcquireTimeout    Duration `toml:"acquire_timeout"`
	TestOnCheckout    bool     `toml:"test_on_checkout"`
	TestOnCheckin     bool     `toml:"test_on_checkin"`
	RetryConnect      bool     `toml:"retry_connect"`
	MaxConnectRetries uint64   `toml:"max_connect_retries"`
}

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the configuration NewCrawshawPool uses.
func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		PoolSize:          int32(runtime.NumCPU()),
		MaxIdleTime:       Duration{10 * time.Minute},
		HealthCheckPeriod: Duration{time.Minute},
		AcquireTimeout:    Duration{time.Second},
		TestOnCheckout:    true,
	}
}

// LoadConfig reads a TOML file. Keys missing from the file keep the
// DefaultConfig values; unknown keys are an error. The result is validated
// by Open, so path may be filled in afterwards.
func LoadConfig(file string) (Config, error) {
	cfg := DefaultConfig("")
	md, err := toml.DecodeFile(file, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to decode %s: %w", file, err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeConfig parses a TOML document, as stored by Db.SaveConfig.
func DecodeConfig(content string) (Config, error) {
	cfg := DefaultConfig("")
	md, err := toml.Decode(content, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode serializes c to TOML.
func (c Config) Encode() (string, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return "", fmt.Errorf("config: failed to encode: %w", err)
	}
	return sb.String(), nil
}

func (c Config) Validate() error {
	if c.Path == "" {
		return ErrNoPath
	}
	if c.PoolSize < 0 || c.MinIdle < 0 {
		return fmt.Errorf("config: pool_size and min_idle cannot be negative")
	}
	if c.PoolSize > 0 && c.MinIdle > c.PoolSize {
		return fmt.Errorf("config: min_idle (%d) exceeds pool_size (%d)", c.MinIdle, c.PoolSize)
	}
	return nil
}

func (c Config) poolConfig() pool.Config[*sqlite.Conn] {
	return pool.Config[*sqlite.Conn]{
		MaxSize:           c.PoolSize,
		MinIdle:           c.MinIdle,
		MaxIdleTime:       c.MaxIdleTime.Duration,
		MaxLifetime:       c.MaxLifetime.Duration,
		HealthCheckPeriod: c.HealthCheckPeriod.Duration,
		AcquireTimeout:    c.AcquireTimeout.Duration,
		TestOnCheckout:    c.TestOnCheckout,
		TestOnCheckin:     c.TestOnCheckin,
		RetryConnect:      c.RetryConnect,
		MaxConnectRetries: c.MaxConnectRetries,
	}
}

func checkUndecoded(md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}
