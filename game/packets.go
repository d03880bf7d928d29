package game

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/yanghwi/daily-dungeon/combat"
	"github.com/yanghwi/daily-dungeon/dice"
	"github.com/yanghwi/daily-dungeon/domain"
)

var ErrMalformedPacket = errors.New("malformed-packet")

// Inbound intent kinds.
const (
	IntentSubmitChoice     = "submitChoice"
	IntentSubmitRoll       = "submitRoll"
	IntentSubmitVote       = "submitVote"
	IntentLeave            = "leave"
	IntentSelectBackground = "selectBackground"
	IntentStartRun         = "startRun"
)

// Outbound event kinds.
const (
	EventRoomSnapshot       = "roomSnapshot"
	EventPlayerJoined       = "playerJoined"
	EventPlayerLeft         = "playerLeft"
	EventPlayerDisconnected = "playerDisconnected"
	EventPlayerReconnected  = "playerReconnected"
	EventBackgroundSelected = "backgroundSelected"
	EventPhaseChanged       = "phaseChanged"
	EventWaveIntro          = "waveIntro"
	EventAllChoicesReady    = "allChoicesReady"
	EventRollResults        = "rollResults"
	EventNarrative          = "narrative"
	EventWaveEnd            = "waveEnd"
	EventRunEnd             = "runEnd"
	EventReconnectFailed    = "reconnectFailed"
)

type packet struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type intent struct {
	Kind       string
	OptionID   string
	Decision   Vote
	Background string
}

type intentPayload struct {
	OptionID   string `json:"optionId"`
	Decision   Vote   `json:"decision"`
	Background string `json:"background"`
}

func decodeIntent(data []byte) (intent, error) {
	var p packet
	if err := json.Unmarshal(data, &p); err != nil || p.Type == "" {
		return intent{}, ErrMalformedPacket
	}
	var body intentPayload
	if len(p.Payload) > 0 {
		if err := json.Unmarshal(p.Payload, &body); err != nil {
			return intent{}, ErrMalformedPacket
		}
	}
	switch p.Type {
	case IntentSubmitChoice, IntentSubmitRoll, IntentSubmitVote, IntentLeave, IntentSelectBackground, IntentStartRun:
	default:
		return intent{}, ErrMalformedPacket
	}
	return intent{Kind: p.Type, OptionID: body.OptionID, Decision: body.Decision, Background: body.Background}, nil
}

func encodePacket(kind string, payload any) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		// payloads are plain structs built in this package
		panic(err)
	}
	data, _ := json.Marshal(packet{Type: kind, Payload: body})
	return data
}

type ChoiceOption struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	Category   dice.Category `json:"category"`
	Difficulty int           `json:"difficulty"`
}

type PlayerView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Background string `json:"background,omitempty"`
	HP         int    `json:"hp"`
	MaxHP      int    `json:"maxHp"`
	Alive      bool   `json:"alive"`
	Connected  bool   `json:"connected"`
}

type roomSnapshot struct {
	Code       string         `json:"code"`
	You        string         `json:"you"`
	HostID     string         `json:"hostId"`
	Phase      Phase          `json:"phase"`
	Players    []PlayerView   `json:"players"`
	Wave       int            `json:"wave,omitempty"`
	TotalWaves int            `json:"totalWaves,omitempty"`
	Enemy      *combat.Enemy  `json:"enemy,omitempty"`
	Situation  string         `json:"situation,omitempty"`
	Options    []ChoiceOption `json:"options,omitempty"`
	HasChosen  bool           `json:"hasChosen"`
	HasRolled  bool           `json:"hasRolled"`
	HasVoted   bool           `json:"hasVoted"`
	Deadline   *time.Time     `json:"deadline,omitempty"`
}

type playerEvent struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
	HostID   string `json:"hostId,omitempty"`
}

type backgroundSelected struct {
	PlayerID   string `json:"playerId"`
	Background string `json:"background"`
}

type phaseChanged struct {
	Phase    Phase      `json:"phase"`
	Wave     int        `json:"wave,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type waveIntro struct {
	Wave       int            `json:"wave"`
	TotalWaves int            `json:"totalWaves"`
	Retry      bool           `json:"retry"`
	Enemy      combat.Enemy   `json:"enemy"`
	Situation  string         `json:"situation"`
	Options    []ChoiceOption `json:"options"`
}

type allChoicesReady struct {
	Players []string `json:"players"`
}

type rollResults struct {
	Actions []combat.Action `json:"actions"`
	Result  combat.Result   `json:"result"`
	Enemy   combat.Enemy    `json:"enemy"`
	Party   []PlayerView    `json:"partyStatus"`
}

type narrativeEvent struct {
	Text   string        `json:"text"`
	Result combat.Result `json:"result"`
}

type waveEnd struct {
	Wave            int           `json:"wave"`
	CanContinue     bool          `json:"canContinue"`
	Party           []PlayerView  `json:"partyStatus"`
	Loot            []combat.Loot `json:"loot"`
	NextWavePreview string        `json:"nextWavePreview,omitempty"`
}

// WaveRecord is one entry of a run's history.
type WaveRecord struct {
	Wave          int    `json:"wave"`
	EnemyName     string `json:"enemyName"`
	EnemyDamage   int    `json:"enemyDamage"`
	EnemyDefeated bool   `json:"enemyDefeated"`
}

type runEnd struct {
	Result       domain.RunResult `json:"result"`
	WavesCleared int              `json:"wavesCleared"`
	TotalLoot    []combat.Loot    `json:"totalLoot"`
	Highlights   []string         `json:"highlights"`
	WaveHistory  []WaveRecord     `json:"waveHistory"`
}

type reconnectFailed struct {
	Reason string `json:"reason"`
}
