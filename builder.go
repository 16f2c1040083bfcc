package log

import "time"

// Builder constructs a Config fluently, for callers that would rather
// chain method calls than assemble a TOML file or an override map.
// Mirrors the reference library's builder.go: every setter returns the
// Builder itself, and Build validates before handing back a Config.
type Builder struct {
	cfg *Config
}

// NewBuilder starts from a copy of the default configuration.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

func (b *Builder) Mode(mode string) *Builder {
	b.cfg.Mode = mode
	return b
}

func (b *Builder) Level(level string) *Builder {
	b.cfg.Level = level
	return b
}

func (b *Builder) LineFormat(tmpl string) *Builder {
	b.cfg.LineFormat = tmpl
	return b
}

func (b *Builder) TimeFormat(tmpl string) *Builder {
	b.cfg.TimeFormat = tmpl
	return b
}

func (b *Builder) SanitizePolicy(policy string) *Builder {
	b.cfg.SanitizePolicy = policy
	return b
}

func (b *Builder) DiskThresholdPercent(pct float64) *Builder {
	b.cfg.DiskThresholdPercent = pct
	return b
}

func (b *Builder) HeartbeatInterval(d time.Duration) *Builder {
	b.cfg.HeartbeatInterval = d
	return b
}

func (b *Builder) InternalErrorsToStderr(on bool) *Builder {
	b.cfg.InternalErrorsToStderr = on
	return b
}

// Build validates the accumulated configuration and returns it.
func (b *Builder) Build() (*Config, error) {
	if err := b.cfg.validate(); err != nil {
		return nil, err
	}
	return b.cfg.Clone(), nil
}
