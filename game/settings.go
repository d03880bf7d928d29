package game

import "time"

// DefaultHP is every player's health at the start of a run.
const DefaultHP = 100

// Settings are the per-room tunables.
type Settings struct {
	MaxPlayers         int
	ChoiceTimeout      time.Duration
	RollTimeout        time.Duration
	VoteTimeout        time.Duration
	IntroDelay         time.Duration
	NarrativeDelay     time.Duration
	WaveEndDelay       time.Duration
	DisconnectGrace    time.Duration
	CriticalMargin     int
	DefaultPlayerCount int
	TickInterval       time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:         4,
		ChoiceTimeout:      10 * time.Second,
		RollTimeout:        5 * time.Second,
		VoteTimeout:        30 * time.Second,
		IntroDelay:         2 * time.Second,
		NarrativeDelay:     2 * time.Second,
		WaveEndDelay:       3 * time.Second,
		DisconnectGrace:    30 * time.Second,
		CriticalMargin:     5,
		DefaultPlayerCount: 4,
		TickInterval:       100 * time.Millisecond,
	}
}
