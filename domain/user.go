package domain

import "time"

type User struct {
	Id           string
	Username     string
	PasswordHash string
}

type RunResult string

const (
	RunClear   RunResult = "clear"
	RunWipe    RunResult = "wipe"
	RunRetreat RunResult = "retreat"
)

// RunRecord is what gets persisted when a run ends.
type RunRecord struct {
	Id           string
	RoomCode     string
	Result       RunResult
	WavesCleared int
	Highlights   []string
	Participants []RunParticipant
	CreatedAt    time.Time
}

// RunParticipant is one player's line in a RunRecord. AccountId may be empty
// for players without an account; those are not stored.
type RunParticipant struct {
	AccountId     string
	CharacterName string
	Background    string
	Survived      bool
	DamageTaken   int
}
