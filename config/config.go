package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/yanghwi/daily-dungeon/crypto"
	"github.com/yanghwi/daily-dungeon/game"
)

var (
	ErrInvalidDuration = errors.New("invalid-duration")
	ErrInvalidTunable  = errors.New("invalid-tunable")
)

type Config struct {
	ListenAddr     string        `env:"LISTEN_ADDR" envDefault:":5000"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS,required" envSeparator:","`
	PostgresURL    string        `env:"POSTGRES_URL,required"`
	JWTKey         string        `env:"JWT_KEY,required"`
	TokenMaxAge    time.Duration `env:"TOKEN_MAX_AGE" envDefault:"168h"`

	HashIterations  uint32 `env:"ARGON2_ITERATIONS" envDefault:"3"`
	HashMemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	HashParallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"1"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL"`
	NarrativeModel     string        `env:"NARRATIVE_MODEL" envDefault:"gpt-4o-mini"`
	NarrativeCacheTTL  time.Duration `env:"NARRATIVE_CACHE_TTL" envDefault:"30m"`
	NarrativeCacheSize int           `env:"NARRATIVE_CACHE_SIZE" envDefault:"512"`

	// Game tunables
	ChoiceTimeout      time.Duration `env:"CHOICE_TIMEOUT" envDefault:"10s"`
	RollTimeout        time.Duration `env:"ROLL_TIMEOUT" envDefault:"5s"`
	VoteTimeout        time.Duration `env:"VOTE_TIMEOUT" envDefault:"30s"`
	IntroDelay         time.Duration `env:"INTRO_DELAY" envDefault:"2s"`
	NarrativeDelay     time.Duration `env:"NARRATIVE_DELAY" envDefault:"2s"`
	WaveEndDelay       time.Duration `env:"WAVE_END_DELAY" envDefault:"3s"`
	DisconnectGrace    time.Duration `env:"DISCONNECT_GRACE" envDefault:"30s"`
	TickInterval       time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	CriticalMargin     int           `env:"CRITICAL_MARGIN" envDefault:"5"`
	DefaultPlayerCount int           `env:"DEFAULT_PLAYER_COUNT" envDefault:"4"`
	MaxPlayers         int           `env:"MAX_PLAYERS" envDefault:"4"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	durations := map[string]time.Duration{
		"TOKEN_MAX_AGE":       c.TokenMaxAge,
		"NARRATIVE_CACHE_TTL": c.NarrativeCacheTTL,
		"CHOICE_TIMEOUT":      c.ChoiceTimeout,
		"ROLL_TIMEOUT":        c.RollTimeout,
		"VOTE_TIMEOUT":        c.VoteTimeout,
		"INTRO_DELAY":         c.IntroDelay,
		"NARRATIVE_DELAY":     c.NarrativeDelay,
		"WAVE_END_DELAY":      c.WaveEndDelay,
		"DISCONNECT_GRACE":    c.DisconnectGrace,
		"TICK_INTERVAL":       c.TickInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidDuration, name)
		}
	}

	switch {
	case c.CriticalMargin < 1:
		return fmt.Errorf("%w: CRITICAL_MARGIN must be at least 1", ErrInvalidTunable)
	case c.MaxPlayers < 1 || c.MaxPlayers > 8:
		return fmt.Errorf("%w: MAX_PLAYERS must be between 1 and 8", ErrInvalidTunable)
	case c.DefaultPlayerCount < 1 || c.DefaultPlayerCount > c.MaxPlayers:
		return fmt.Errorf("%w: DEFAULT_PLAYER_COUNT must be between 1 and MAX_PLAYERS", ErrInvalidTunable)
	case c.NarrativeCacheSize < 1:
		return fmt.Errorf("%w: NARRATIVE_CACHE_SIZE must be at least 1", ErrInvalidTunable)
	case c.HashIterations < 1 || c.HashParallelism < 1:
		return fmt.Errorf("%w: ARGON2_ITERATIONS and ARGON2_PARALLELISM must be at least 1", ErrInvalidTunable)
	case c.HashMemoryKiB < 8*uint32(c.HashParallelism):
		return fmt.Errorf("%w: ARGON2_MEMORY_KIB must be at least 8 per lane", ErrInvalidTunable)
	}
	return nil
}

// GameSettings returns the tunables consumed by rooms.
func (c Config) GameSettings() game.Settings {
	return game.Settings{
		MaxPlayers:         c.MaxPlayers,
		ChoiceTimeout:      c.ChoiceTimeout,
		RollTimeout:        c.RollTimeout,
		VoteTimeout:        c.VoteTimeout,
		IntroDelay:         c.IntroDelay,
		NarrativeDelay:     c.NarrativeDelay,
		WaveEndDelay:       c.WaveEndDelay,
		DisconnectGrace:    c.DisconnectGrace,
		CriticalMargin:     c.CriticalMargin,
		DefaultPlayerCount: c.DefaultPlayerCount,
		TickInterval:       c.TickInterval,
	}
}

func (c Config) HashParams() crypto.HashParams {
	return crypto.HashParams{
		Iterations:  c.HashIterations,
		MemoryKiB:   c.HashMemoryKiB,
		Parallelism: c.HashParallelism,
	}
}
