package game

import (
	"context"
	"time"

	"github.com/yanghwi/daily-dungeon/combat"
	"github.com/yanghwi/daily-dungeon/content"
	"github.com/yanghwi/daily-dungeon/dice"
	"github.com/yanghwi/daily-dungeon/domain"
	"github.com/yanghwi/daily-dungeon/narrative"
)

type WebsocketConnection interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

// Client is a room member's live transport handle.
type Client interface {
	Send(data []byte) error
	Ping()
	Close(errCode string)
}

type Content interface {
	TotalWaves() int
	WaveTemplate(wave int, src dice.Source) content.WaveTemplate
	ScaleEnemy(t content.WaveTemplate, playerCount int) combat.Enemy
	Preview(wave int) string
	Background(name string) (content.Background, bool)
	Draw(src dice.Source, n int) []combat.Loot
	Highlights(result domain.RunResult) []string
	FallbackLines(tier dice.Tier) []string
	EnemyStatusLine(defeated bool) string
}

type Narrator interface {
	Narrate(ctx context.Context, o narrative.Outcome) (string, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error
	ListRuns(ctx context.Context, accountID string, limit int) ([]domain.RunRecord, error)
}

type AccountGetter interface {
	GetAccountById(ctx context.Context, id string) (domain.User, error)
}

type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

type PeriodicTickerChannelCreator interface {
	Create(d time.Duration) <-chan time.Time
}

// Lobby is the registry as seen from inside a room.
type Lobby interface {
	RequestUpdateDescription(desc RoomDescription)
	ReleaseSeat(playerID, code string)
	RemoveRoom(code string)
}

// RoomService is what the HTTP layer needs from the registry.
type RoomService interface {
	CreateRoom(ctx context.Context, playerID string, socket WebsocketConnection, private bool) (string, error)
	JoinRoom(ctx context.Context, playerID, code string, socket WebsocketConnection) error
	QuickJoin(ctx context.Context, playerID string, socket WebsocketConnection) (string, error)
	Reconnect(ctx context.Context, playerID string, socket WebsocketConnection) error
	Seated(playerID string) bool
	PublicRooms() []RoomDescription
}
