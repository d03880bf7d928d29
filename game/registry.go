package game

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const pingInterval = 30 * time.Second

// Registry owns every live room and the account -> room seat index. An
// account holds at most one seat at a time.
type Registry struct {
	locker       sync.RWMutex
	rooms        map[string]*Room
	descriptions map[string]RoomDescription
	seats        map[string]string
	closed       bool
	wg           sync.WaitGroup

	settings      Settings
	deps          RoomDeps
	accounts      AccountGetter
	idGenerator   UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator
}

func NewRegistry(settings Settings, deps RoomDeps, accounts AccountGetter, idgen UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator) *Registry {
	return &Registry{
		rooms:         make(map[string]*Room),
		descriptions:  make(map[string]RoomDescription),
		seats:         make(map[string]string),
		settings:      settings,
		deps:          deps,
		accounts:      accounts,
		idGenerator:   idgen,
		tickerCreator: tickerCreator,
	}
}

// Run fans ticks and pings out to every room until ctx is done.
func (reg *Registry) Run(ctx context.Context, started chan struct{}) {
	ticker := reg.tickerCreator.Create(reg.settings.TickInterval)
	pingTicker := reg.tickerCreator.Create(pingInterval)

	close(started)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker:
			for _, r := range reg.liveRooms() {
				r.Tick(now)
			}
		case <-pingTicker:
			for _, r := range reg.liveRooms() {
				r.PingPlayers()
			}
		}
	}
}

func (reg *Registry) liveRooms() []*Room {
	reg.locker.RLock()
	defer reg.locker.RUnlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

func (reg *Registry) identity(ctx context.Context, playerID string) (Identity, error) {
	user, err := reg.accounts.GetAccountById(ctx, playerID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: user.Id, Name: user.Username}, nil
}

func (reg *Registry) CreateRoom(ctx context.Context, playerID string, socket WebsocketConnection, private bool) (string, error) {
	identity, err := reg.identity(ctx, playerID)
	if err != nil {
		socket.Close("unknown-error")
		return "", err
	}
	return reg.createRoom(identity, socket, private)
}

func (reg *Registry) createRoom(identity Identity, socket WebsocketConnection, private bool) (string, error) {
	reg.locker.Lock()
	if reg.closed {
		reg.locker.Unlock()
		socket.Close(ErrShuttingDown.Error())
		return "", ErrShuttingDown
	}
	if _, seated := reg.seats[identity.ID]; seated {
		reg.locker.Unlock()
		socket.Close(ErrAlreadyInRoom.Error())
		return "", ErrAlreadyInRoom
	}
	code := reg.idGenerator.Generate()
	c := newClient(identity.ID, socket)
	deps := reg.deps
	deps.Lobby = reg
	room := NewRoom(code, private, identity, c, reg.settings, deps)
	reg.rooms[code] = room
	reg.seats[identity.ID] = code
	reg.wg.Go(room.Run)
	reg.locker.Unlock()

	go c.WritePump()
	go c.ReadPump(room)
	log.Info().Str("room", code).Str("host", identity.ID).Bool("private", private).Msg("room created")
	return code, nil
}

func (reg *Registry) JoinRoom(ctx context.Context, playerID, code string, socket WebsocketConnection) error {
	identity, err := reg.identity(ctx, playerID)
	if err != nil {
		socket.Close("unknown-error")
		return err
	}
	if err := reg.join(ctx, identity, strings.ToUpper(code), socket); err != nil {
		socket.Close(err.Error())
		return err
	}
	return nil
}

// QuickJoin seats the player in the fullest public room that is still
// gathering players, or opens a new public room when none has space.
func (reg *Registry) QuickJoin(ctx context.Context, playerID string, socket WebsocketConnection) (string, error) {
	identity, err := reg.identity(ctx, playerID)
	if err != nil {
		socket.Close("unknown-error")
		return "", err
	}
	for _, code := range reg.joinable() {
		err := reg.join(ctx, identity, code, socket)
		switch {
		case err == nil:
			return code, nil
		case errors.Is(err, ErrAlreadyInRoom), ctx.Err() != nil:
			socket.Close(err.Error())
			return "", err
		}
		// the room filled up or started meanwhile
	}
	return reg.createRoom(identity, socket, false)
}

func (reg *Registry) joinable() []string {
	reg.locker.RLock()
	candidates := make([]RoomDescription, 0, len(reg.descriptions))
	for _, desc := range reg.descriptions {
		if !desc.Private && !desc.Started && desc.Players < desc.MaxPlayers {
			candidates = append(candidates, desc)
		}
	}
	reg.locker.RUnlock()

	slices.SortFunc(candidates, func(a, b RoomDescription) int {
		return cmp.Or(cmp.Compare(b.Players, a.Players), strings.Compare(a.Code, b.Code))
	})
	codes := make([]string, 0, len(candidates))
	for _, desc := range candidates {
		codes = append(codes, desc.Code)
	}
	return codes
}

// join reserves the seat, then asks the room. The socket is left open on
// failure.
func (reg *Registry) join(ctx context.Context, identity Identity, code string, socket WebsocketConnection) error {
	reg.locker.Lock()
	room, ok := reg.rooms[code]
	if !ok {
		reg.locker.Unlock()
		return ErrRoomNotFound
	}
	if _, seated := reg.seats[identity.ID]; seated {
		reg.locker.Unlock()
		return ErrAlreadyInRoom
	}
	reg.seats[identity.ID] = code
	reg.locker.Unlock()

	c := newClient(identity.ID, socket)
	if err := room.Join(ctx, identity, c); err != nil {
		reg.ReleaseSeat(identity.ID, code)
		return err
	}
	go c.WritePump()
	go c.ReadPump(room)
	return nil
}

// Reconnect rebinds a player who is still seated in a room to a new socket.
func (reg *Registry) Reconnect(ctx context.Context, playerID string, socket WebsocketConnection) error {
	reg.locker.RLock()
	room := reg.rooms[reg.seats[playerID]]
	reg.locker.RUnlock()

	fail := func(err error) error {
		socket.Write(encodePacket(EventReconnectFailed, reconnectFailed{Reason: err.Error()}))
		socket.Close(err.Error())
		return err
	}
	if room == nil {
		return fail(ErrReconnectFailed)
	}

	c := newClient(playerID, socket)
	if err := room.Reconnect(ctx, Identity{ID: playerID}, c); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			err = ErrReconnectFailed
		}
		return fail(err)
	}
	go c.WritePump()
	go c.ReadPump(room)
	return nil
}

func (reg *Registry) Seated(playerID string) bool {
	reg.locker.RLock()
	defer reg.locker.RUnlock()
	_, ok := reg.seats[playerID]
	return ok
}

// PublicRooms lists the non-private rooms, ordered by code.
func (reg *Registry) PublicRooms() []RoomDescription {
	reg.locker.RLock()
	defer reg.locker.RUnlock()
	out := make([]RoomDescription, 0, len(reg.descriptions))
	for _, desc := range reg.descriptions {
		if !desc.Private {
			out = append(out, desc)
		}
	}
	slices.SortFunc(out, func(a, b RoomDescription) int { return strings.Compare(a.Code, b.Code) })
	return out
}

func (reg *Registry) RequestUpdateDescription(desc RoomDescription) {
	reg.locker.Lock()
	defer reg.locker.Unlock()
	if _, ok := reg.rooms[desc.Code]; ok {
		reg.descriptions[desc.Code] = desc
	}
}

func (reg *Registry) ReleaseSeat(playerID, code string) {
	reg.locker.Lock()
	defer reg.locker.Unlock()
	if reg.seats[playerID] == code {
		delete(reg.seats, playerID)
	}
}

func (reg *Registry) RemoveRoom(code string) {
	reg.locker.Lock()
	defer reg.locker.Unlock()
	if _, ok := reg.rooms[code]; !ok {
		return
	}
	delete(reg.rooms, code)
	delete(reg.descriptions, code)
	for id, seat := range reg.seats {
		if seat == code {
			delete(reg.seats, id)
		}
	}
	reg.idGenerator.Dispose(code)
	log.Info().Str("room", code).Msg("room removed")
}

// Shutdown closes every room and waits for their loops to exit.
func (reg *Registry) Shutdown(ctx context.Context) error {
	reg.locker.Lock()
	reg.closed = true
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.locker.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	done := make(chan struct{})
	go func() {
		reg.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
