package log

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/lixenwraith/config"
)

// Config holds every tunable named in §3/§4/§6: queue ordering mode,
// level threshold, disk-space threshold, line/time formats, heartbeat
// interval, and the internal-diagnostics toggle. Per-sink rotation
// parameters (size cap, interval, daily trigger) are passed directly to
// the sink-registration functions in logger.go rather than carried
// here, matching §6's "by contract (signatures, not types)" framing.
type Config struct {
	// Mode selects one of the four initialisation modes of §4.4:
	// "ordered", "unordered", "noop", "noop_ordered".
	Mode string `toml:"mode"`

	// Level is the configured well-known level tag (§4.9); an empty or
	// unrecognised value falls back to LogAll.
	Level string `toml:"level"`

	// LineFormat and TimeFormat are the §4.1/§6 template strings.
	LineFormat string `toml:"line_format"`
	TimeFormat string `toml:"time_format"`

	// SanitizePolicy names the sanitizer.PolicyPreset applied to a
	// Record's message body before rendering: "raw", "txt", "json", or
	// "shell".
	SanitizePolicy string `toml:"sanitize_policy"`

	// DiskThresholdPercent is the default disk-space threshold (0-100)
	// applied to file sinks that don't override it explicitly.
	DiskThresholdPercent float64 `toml:"disk_threshold_percent"`

	// HeartbeatInterval is how often a heartbeat record is emitted; zero
	// disables heartbeats entirely.
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`

	// InternalErrorsToStderr gates the diagnostics reporter used by
	// every sink for its own operational failures.
	InternalErrorsToStderr bool `toml:"internal_errors_to_stderr"`
}

// defaultConfig is the single source for all configurable default
// values, matching §6's stated defaults for the two format templates.
var defaultConfig = Config{
	Mode:                   "ordered",
	Level:                  LogAll,
	LineFormat:             "%t | %S | %T | %m",
	TimeFormat:             "%Y/%m/%d %H:%M:%S.$6",
	SanitizePolicy:         "txt",
	DiskThresholdPercent:   100,
	HeartbeatInterval:      0,
	InternalErrorsToStderr: false,
}

// DefaultConfig returns a copy of the default configuration.
func DefaultConfig() *Config {
	cfg := defaultConfig
	return &cfg
}

// Clone returns an independent copy of cfg, safe to mutate without
// affecting the original — used on the apply-under-lock path when a
// caller hands a Config to New.
func (cfg *Config) Clone() *Config {
	clone := *cfg
	return &clone
}

// NewConfigFromFile loads configuration from a TOML file via
// github.com/lixenwraith/config, falling back to defaults for any key
// the file doesn't set and tolerating a missing file outright.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	loader := config.New()
	if err := loader.RegisterStruct("asynclog.", *cfg); err != nil {
		return nil, fmtErrorf("register config struct: %w", err)
	}

	if err := loader.Load(path, nil); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmtErrorf("load config from %s: %w", path, err)
	}

	if err := extractConfig(loader, "asynclog.", cfg); err != nil {
		return nil, fmtErrorf("extract config values: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigFromDefaults builds a Config from defaults plus a
// string-keyed override map, the in-memory counterpart to
// NewConfigFromFile used by tests and CLI-style callers.
func NewConfigFromDefaults(overrides map[string]string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyOverride(overrides); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// extractConfig copies every toml-tagged field the loader resolved
// under prefix back into cfg, leaving fields the loader has no value
// for at their existing default.
func extractConfig(loader *config.Config, prefix string, cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("toml")
		if tag == "" {
			continue
		}
		val, ok := loader.Get(prefix + tag)
		if !ok {
			continue
		}
		if err := assignField(v.Field(i), val); err != nil {
			return fmtErrorf("field %s: %w", tag, err)
		}
	}
	return nil
}

func assignField(field reflect.Value, val any) error {
	rv := reflect.ValueOf(val)
	switch field.Kind() {
	case reflect.String:
		field.SetString(fmt.Sprint(val))
	case reflect.Bool:
		b, ok := val.(bool)
		if !ok {
			return fmtErrorf("expected bool, got %T", val)
		}
		field.SetBool(b)
	case reflect.Float64:
		f, ok := toFloat(val)
		if !ok {
			return fmtErrorf("expected numeric, got %T", val)
		}
		field.SetFloat(f)
	case reflect.Int64:
		// time.Duration is an int64 underneath; accept either a
		// pre-parsed duration or a plain integer count of nanoseconds.
		if d, ok := val.(time.Duration); ok {
			field.SetInt(int64(d))
			return nil
		}
		f, ok := toFloat(val)
		if !ok {
			return fmtErrorf("expected numeric, got %T", val)
		}
		field.SetInt(int64(f))
	default:
		if rv.Type().AssignableTo(field.Type()) {
			field.Set(rv)
			return nil
		}
		return fmtErrorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// validate rejects out-of-range configuration before it reaches a live
// logger, per the [AMBIENT STACK]'s configuration section.
func (cfg *Config) validate() error {
	var errs []error

	switch cfg.Mode {
	case "ordered", "unordered", "noop", "noop_ordered":
	default:
		errs = append(errs, fmtErrorf("mode %q is not one of ordered/unordered/noop/noop_ordered", cfg.Mode))
	}

	if cfg.DiskThresholdPercent < 0 || cfg.DiskThresholdPercent > 100 {
		errs = append(errs, fmtErrorf("disk_threshold_percent %v out of range [0,100]", cfg.DiskThresholdPercent))
	}

	if cfg.HeartbeatInterval < 0 {
		errs = append(errs, fmtErrorf("heartbeat_interval %v must be non-negative", cfg.HeartbeatInterval))
	}

	if cfg.LineFormat == "" {
		errs = append(errs, fmtErrorf("line_format must not be empty"))
	}
	if cfg.TimeFormat == "" {
		errs = append(errs, fmtErrorf("time_format must not be empty"))
	}
	switch cfg.SanitizePolicy {
	case "raw", "txt", "json", "shell":
	default:
		errs = append(errs, fmtErrorf("sanitize_policy %q is not one of raw/txt/json/shell", cfg.SanitizePolicy))
	}

	return combineErrors(errs)
}

// modeFromString resolves a Config.Mode string into the registry's
// InitializationMode enum, defaulting to PerfectlyOrdered.
func modeFromString(s string) InitializationMode {
	switch s {
	case "unordered":
		return AllowUnordered
	case "noop":
		return NoOpMode
	case "noop_ordered":
		return NoOpOrdered
	default:
		return PerfectlyOrdered
	}
}
