package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yanghwi/daily-dungeon/combat"
	"github.com/yanghwi/daily-dungeon/content"
	"github.com/yanghwi/daily-dungeon/dice"
	"github.com/yanghwi/daily-dungeon/domain"
	"github.com/yanghwi/daily-dungeon/narrative"
)

// --- WebsocketConnection ---

type MockWebsocketConnection struct {
	mock.Mock
}

func (m *MockWebsocketConnection) Close(errCode string) {
	m.Called(errCode)
}

func (m *MockWebsocketConnection) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockWebsocketConnection) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockWebsocketConnection) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// --- AccountGetter ---

type MockAccountGetter struct {
	mock.Mock
}

func (m *MockAccountGetter) GetAccountById(ctx context.Context, id string) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

// --- RunStore ---

type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) SaveRun(ctx context.Context, run domain.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunStore) ListRuns(ctx context.Context, accountID string, limit int) ([]domain.RunRecord, error) {
	args := m.Called(ctx, accountID, limit)
	return args.Get(0).([]domain.RunRecord), args.Error(1)
}

// --- Narrator ---

type MockNarrator struct {
	mock.Mock
}

func (m *MockNarrator) Narrate(ctx context.Context, o narrative.Outcome) (string, error) {
	args := m.Called(ctx, o)
	return args.String(0), args.Error(1)
}

// --- Lobby ---

type MockLobby struct {
	mock.Mock
}

func (m *MockLobby) RequestUpdateDescription(desc RoomDescription) {
	m.Called(desc)
}

func (m *MockLobby) ReleaseSeat(playerID, code string) {
	m.Called(playerID, code)
}

func (m *MockLobby) RemoveRoom(code string) {
	m.Called(code)
}

// --- RoomService ---

type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) CreateRoom(ctx context.Context, playerID string, socket WebsocketConnection, private bool) (string, error) {
	args := m.Called(ctx, playerID, socket, private)
	return args.String(0), args.Error(1)
}

func (m *MockRoomService) JoinRoom(ctx context.Context, playerID, code string, socket WebsocketConnection) error {
	args := m.Called(ctx, playerID, code, socket)
	return args.Error(0)
}

func (m *MockRoomService) QuickJoin(ctx context.Context, playerID string, socket WebsocketConnection) (string, error) {
	args := m.Called(ctx, playerID, socket)
	return args.String(0), args.Error(1)
}

func (m *MockRoomService) Reconnect(ctx context.Context, playerID string, socket WebsocketConnection) error {
	args := m.Called(ctx, playerID, socket)
	return args.Error(0)
}

func (m *MockRoomService) Seated(playerID string) bool {
	args := m.Called(playerID)
	return args.Bool(0)
}

func (m *MockRoomService) PublicRooms() []RoomDescription {
	args := m.Called()
	return args.Get(0).([]RoomDescription)
}

// --- fakes ---

// fakeClient records everything a room sends to it.
type fakeClient struct {
	locker    sync.Mutex
	sent      []packet
	pings     int
	closed    bool
	closeCode string
}

func (c *fakeClient) Send(data []byte) error {
	var p packet
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	c.locker.Lock()
	defer c.locker.Unlock()
	c.sent = append(c.sent, p)
	return nil
}

func (c *fakeClient) Ping() {
	c.locker.Lock()
	c.pings++
	c.locker.Unlock()
}

func (c *fakeClient) Close(errCode string) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if !c.closed {
		c.closed, c.closeCode = true, errCode
	}
}

func (c *fakeClient) count(kind string) int {
	c.locker.Lock()
	defer c.locker.Unlock()
	n := 0
	for _, p := range c.sent {
		if p.Type == kind {
			n++
		}
	}
	return n
}

// last decodes the most recent packet of kind into v.
func (c *fakeClient) last(kind string, v any) bool {
	c.locker.Lock()
	defer c.locker.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].Type == kind {
			return json.Unmarshal(c.sent[i].Payload, v) == nil
		}
	}
	return false
}

func (c *fakeClient) kinds() []string {
	c.locker.Lock()
	defer c.locker.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, p := range c.sent {
		out = append(out, p.Type)
	}
	return out
}

// fakeSocket is an in-memory WebsocketConnection. Reads block until a
// message is pushed or the socket is closed.
type fakeSocket struct {
	locker    sync.Mutex
	incoming  chan []byte
	written   [][]byte
	closed    chan struct{}
	closeOnce sync.Once
	closeCode string
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{incoming: make(chan []byte, 16), closed: make(chan struct{})}
}

func (s *fakeSocket) Read() ([]byte, error) {
	select {
	case data := <-s.incoming:
		return data, nil
	case <-s.closed:
		return nil, fmt.Errorf("socket closed")
	}
}

func (s *fakeSocket) Write(data []byte) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.written = append(s.written, data)
	return nil
}

func (s *fakeSocket) Ping() error { return nil }

func (s *fakeSocket) Close(errCode string) {
	s.closeOnce.Do(func() {
		s.locker.Lock()
		s.closeCode = errCode
		s.locker.Unlock()
		close(s.closed)
	})
}

func (s *fakeSocket) types() []string {
	s.locker.Lock()
	defer s.locker.Unlock()
	out := make([]string, 0, len(s.written))
	for _, data := range s.written {
		var p packet
		if json.Unmarshal(data, &p) == nil {
			out = append(out, p.Type)
		}
	}
	return out
}

func (s *fakeSocket) code() string {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.closeCode
}

// scriptedSource returns its values in order, then zeros.
type scriptedSource struct {
	values []int
}

func (s *scriptedSource) IntN(n int) int {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v % n
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type stubContent struct {
	waves       int
	template    content.WaveTemplate
	enemy       combat.Enemy
	backgrounds map[string]content.Background
	loot        []combat.Loot
	scaledFor   []int
}

func newStubContent() *stubContent {
	return &stubContent{
		waves: 3,
		template: content.WaveTemplate{
			Enemy:     content.EnemyBase{Name: "Raccoon"},
			Situation: "Bins everywhere.",
			DefaultOptions: []content.Option{
				{Text: "Punch it", Category: dice.Physical, Difficulty: 8},
				{Text: "Talk it down", Category: dice.Social, Difficulty: 8},
			},
		},
		enemy: combat.Enemy{Name: "Raccoon", HP: 20, MaxHP: 20, Attack: 10},
		backgrounds: map[string]content.Background{
			"brawler": {Name: "brawler", StrongCategories: []dice.Category{dice.Physical}, Bonus: 2},
			"clerk":   {Name: "clerk", StrongCategories: []dice.Category{dice.Social}, Bonus: 2},
		},
		loot: []combat.Loot{{ID: "rusty_pipe", Name: "Rusty Pipe", Type: "weapon", Rarity: "common"}},
	}
}

func (s *stubContent) TotalWaves() int { return s.waves }

func (s *stubContent) WaveTemplate(int, dice.Source) content.WaveTemplate { return s.template }

func (s *stubContent) ScaleEnemy(_ content.WaveTemplate, playerCount int) combat.Enemy {
	s.scaledFor = append(s.scaledFor, playerCount)
	return s.enemy
}

func (s *stubContent) Preview(wave int) string { return fmt.Sprintf("wave %d", wave) }

func (s *stubContent) Background(name string) (content.Background, bool) {
	bg, ok := s.backgrounds[name]
	return bg, ok
}

func (s *stubContent) Draw(_ dice.Source, n int) []combat.Loot { return s.loot[:min(n, len(s.loot))] }

func (s *stubContent) Highlights(result domain.RunResult) []string {
	return []string{"highlight " + string(result)}
}

func (s *stubContent) FallbackLines(tier dice.Tier) []string {
	return []string{"{name} got " + string(tier)}
}

func (s *stubContent) EnemyStatusLine(defeated bool) string {
	if defeated {
		return "{enemy} is down."
	}
	return "{enemy} is still standing."
}
