package game

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseWaveIntro  Phase = "wave_intro"
	PhaseChoosing   Phase = "choosing"
	PhaseRolling    Phase = "rolling"
	PhaseNarrating  Phase = "narrating"
	PhaseWaveResult Phase = "wave_result"
	PhaseRunEnd     Phase = "run_end"
)

// Active reports whether a run is in progress. Disconnects during active
// phases get a grace period.
func (p Phase) Active() bool {
	switch p {
	case PhaseWaveIntro, PhaseChoosing, PhaseRolling, PhaseNarrating, PhaseWaveResult:
		return true
	}
	return false
}

type Vote string

const (
	VoteContinue Vote = "continue"
	VoteRetreat  Vote = "retreat"
)
