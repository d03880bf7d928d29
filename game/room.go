package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/yanghwi/daily-dungeon/dice"
	"github.com/yanghwi/daily-dungeon/domain"
)

// Identity is who a connection belongs to.
type Identity struct {
	ID   string
	Name string
}

type RoomDescription struct {
	Code       string `json:"code"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Started    bool   `json:"started"`
	Private    bool   `json:"-"`
}

type member struct {
	id          string
	name        string
	background  string
	mods        dice.Modifiers
	client      Client
	hp          int
	maxHP       int
	alive       bool
	damageTaken int
}

func (m *member) connected() bool {
	return m.client != nil
}

func (m *member) view() PlayerView {
	return PlayerView{
		ID:         m.id,
		Name:       m.name,
		Background: m.background,
		HP:         m.hp,
		MaxHP:      m.maxHP,
		Alive:      m.alive,
		Connected:  m.connected(),
	}
}

type joinRequest struct {
	identity Identity
	client   Client
	errChan  chan error
}

func newJoinRequest(identity Identity, client Client) joinRequest {
	return joinRequest{identity: identity, client: client, errChan: make(chan error, 1)}
}

type envelope struct {
	playerID string
	from     Client
	intent   intent
}

type disconnectEvent struct {
	playerID string
	from     Client
}

type narrativeReady struct {
	id   uint64
	text string
	err  error
}

type Room struct {
	// Identity
	code    string
	private bool
	hostID  string

	// Collaborators
	settings Settings
	content  Content
	narrator Narrator
	store    RunStore
	lobby    Lobby
	rng      dice.Source
	now      func() time.Time
	log      zerolog.Logger

	// Runtime state
	phase   Phase
	members []*member
	run     *run
	sched   *scheduler
	closed  bool

	narrationSeq uint64

	// Communication
	inbox          chan envelope
	ticks          chan time.Time
	pings          chan struct{}
	joinRequests   chan joinRequest
	reconnects     chan joinRequest
	disconnects    chan disconnectEvent
	narratives     chan narrativeReady
	closeRequested chan struct{}
	closeOnce      sync.Once
	done           chan struct{}
	doneOnce       sync.Once
	background     sync.WaitGroup
}

type RoomDeps struct {
	Content  Content
	Narrator Narrator
	Store    RunStore
	Lobby    Lobby
}

func NewRoom(code string, private bool, host Identity, hostClient Client, settings Settings, deps RoomDeps) *Room {
	r := &Room{
		code:           code,
		private:        private,
		hostID:         host.ID,
		settings:       settings,
		content:        deps.Content,
		narrator:       deps.Narrator,
		store:          deps.Store,
		lobby:          deps.Lobby,
		rng:            rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:            time.Now,
		log:            log.With().Str("room", code).Logger(),
		phase:          PhaseLobby,
		members:        make([]*member, 0, settings.MaxPlayers),
		sched:          newScheduler(),
		inbox:          make(chan envelope, 256),
		ticks:          make(chan time.Time, 8),
		pings:          make(chan struct{}, 1),
		joinRequests:   make(chan joinRequest),
		reconnects:     make(chan joinRequest),
		disconnects:    make(chan disconnectEvent, 64),
		narratives:     make(chan narrativeReady, 4),
		closeRequested: make(chan struct{}),
		done:           make(chan struct{}),
	}
	r.members = append(r.members, newMember(host, hostClient))
	return r
}

func newMember(identity Identity, client Client) *member {
	return &member{
		id:     identity.ID,
		name:   identity.Name,
		client: client,
		hp:     DefaultHP,
		maxHP:  DefaultHP,
		alive:  true,
	}
}

func (r *Room) Code() string { return r.code }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

// Run is the room's actor loop. All room state is owned by this goroutine.
func (r *Room) Run() {
	defer r.background.Wait()
	r.sendSnapshot(r.members[0])
	r.publishDescription()
	for !r.closed {
		select {
		case <-r.closeRequested:
			r.teardown()
		case e := <-r.inbox:
			r.handleIntent(e)
		case now := <-r.ticks:
			r.handleTick(now)
		case req := <-r.joinRequests:
			req.errChan <- r.handleJoin(req)
		case req := <-r.reconnects:
			req.errChan <- r.handleReconnect(req)
		case ev := <-r.disconnects:
			r.handleDisconnect(ev)
		case n := <-r.narratives:
			r.handleNarrative(n)
		case <-r.pings:
			r.pingMembers()
		}
	}
}

// Deliver forwards a decoded intent to the room.
func (r *Room) Deliver(playerID string, from Client, in intent) {
	select {
	case r.inbox <- envelope{playerID: playerID, from: from, intent: in}:
	case <-r.done:
	}
}

// Disconnected reports that a client's transport went away.
func (r *Room) Disconnected(playerID string, from Client) {
	select {
	case r.disconnects <- disconnectEvent{playerID: playerID, from: from}:
	case <-r.done:
	}
}

// Tick never blocks; a missed tick is covered by the next one.
func (r *Room) Tick(now time.Time) {
	select {
	case r.ticks <- now:
	default:
	}
}

func (r *Room) PingPlayers() {
	select {
	case r.pings <- struct{}{}:
	default:
	}
}

func (r *Room) Join(ctx context.Context, identity Identity, client Client) error {
	return r.request(ctx, r.joinRequests, newJoinRequest(identity, client))
}

func (r *Room) Reconnect(ctx context.Context, identity Identity, client Client) error {
	return r.request(ctx, r.reconnects, newJoinRequest(identity, client))
}

func (r *Room) request(ctx context.Context, ch chan joinRequest, req joinRequest) error {
	select {
	case ch <- req:
	case <-r.done:
		return ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close asks the actor loop to shut the room down.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closeRequested) })
}

func (r *Room) member(id string) *member {
	for _, m := range r.members {
		if m.id == id {
			return m
		}
	}
	return nil
}

func (r *Room) handleJoin(req joinRequest) error {
	if r.closed {
		return ErrRoomNotFound
	}
	if r.phase.Active() {
		return ErrRunInProgress
	}
	if r.member(req.identity.ID) != nil {
		return ErrAlreadyInRoom
	}
	if len(r.members) >= r.settings.MaxPlayers {
		return ErrRoomFull
	}
	m := newMember(req.identity, req.client)
	r.broadcast(encodePacket(EventPlayerJoined, playerEvent{PlayerID: m.id, Name: m.name}))
	r.members = append(r.members, m)
	r.sendSnapshot(m)
	r.publishDescription()
	r.log.Debug().Str("player", m.id).Msg("player joined")
	return nil
}

// handleReconnect rebinds a player in grace to a new client without touching
// phase, wave or pending collections. Reconnecting while already connected
// is a no-op for the room: its state and the live client are left untouched
// and only the surplus client is closed.
func (r *Room) handleReconnect(req joinRequest) error {
	m := r.member(req.identity.ID)
	if r.closed || m == nil {
		return ErrReconnectFailed
	}
	if m.connected() {
		req.client.Close(ErrAlreadyConnected.Error())
		return nil
	}
	r.sched.cancelGrace(m.id)
	m.client = req.client
	r.sendSnapshot(m)
	r.broadcastExcept(m, encodePacket(EventPlayerReconnected, playerEvent{PlayerID: m.id, Name: m.name}))
	r.log.Debug().Str("player", m.id).Msg("player reconnected")
	return nil
}

func (r *Room) handleDisconnect(ev disconnectEvent) {
	m := r.member(ev.playerID)
	if m == nil || m.client == nil || m.client != ev.from {
		return
	}
	if !r.phase.Active() {
		r.removeMember(m)
		r.afterRemoval()
		return
	}
	m.client = nil
	r.sched.armGrace(m.id, r.now().Add(r.settings.DisconnectGrace))
	r.broadcast(encodePacket(EventPlayerDisconnected, playerEvent{PlayerID: m.id}))
	r.log.Debug().Str("player", m.id).Msg("player disconnected, grace started")
}

func (r *Room) handleGraceExpired(id string) {
	m := r.member(id)
	if m == nil || m.connected() {
		return
	}
	if !r.anyConnected() {
		r.log.Info().Msg("last connected player gone, ending run")
		r.endRun(domain.RunWipe)
		return
	}
	r.removeMember(m)
	r.afterRemoval()
}

func (r *Room) handleLeave(m *member) {
	if m.client != nil {
		m.client.Close("")
	}
	r.removeMember(m)
	r.afterRemoval()
}

// removeMember drops m from the room and frees its registry seat.
func (r *Room) removeMember(m *member) {
	idx := -1
	for i, other := range r.members {
		if other == m {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	r.sched.cancelGrace(m.id)
	if r.run != nil && !r.run.ended {
		r.run.departed = append(r.run.departed, m.participant(false))
		r.run.forget(m.id)
	}
	if r.lobby != nil {
		r.lobby.ReleaseSeat(m.id, r.code)
	}
	if r.hostID == m.id && len(r.members) > 0 {
		r.hostID = r.members[0].id
	}
	r.broadcast(encodePacket(EventPlayerLeft, playerEvent{PlayerID: m.id, HostID: r.hostID}))
	r.log.Debug().Str("player", m.id).Msg("player removed")
}

// afterRemoval closes empty rooms and re-checks the quorum of whatever is
// being collected.
func (r *Room) afterRemoval() {
	if len(r.members) == 0 {
		if r.phase.Active() {
			r.endRun(domain.RunWipe)
		}
		r.teardown()
		return
	}
	r.publishDescription()
	r.checkQuorum()
}

func (r *Room) anyConnected() bool {
	for _, m := range r.members {
		if m.connected() {
			return true
		}
	}
	return false
}

func (r *Room) handleIntent(e envelope) {
	m := r.member(e.playerID)
	if m == nil || m.client != e.from {
		return
	}
	switch e.intent.Kind {
	case IntentLeave:
		r.handleLeave(m)
	case IntentSelectBackground:
		r.selectBackground(m, e.intent.Background)
	case IntentStartRun:
		r.startRun(m)
	case IntentSubmitChoice:
		r.submitChoice(m, e.intent.OptionID)
	case IntentSubmitRoll:
		r.submitRoll(m)
	case IntentSubmitVote:
		r.submitVote(m, e.intent.Decision)
	}
}

func (r *Room) selectBackground(m *member, name string) {
	if r.phase != PhaseLobby && r.phase != PhaseRunEnd {
		return
	}
	bg, ok := r.content.Background(name)
	if !ok {
		return
	}
	m.background = bg.Name
	m.mods = bg.Modifiers()
	r.broadcast(encodePacket(EventBackgroundSelected, backgroundSelected{PlayerID: m.id, Background: bg.Name}))
}

func (r *Room) handleTick(now time.Time) {
	for !r.closed {
		kind, ok := r.sched.popDue(now)
		if !ok {
			break
		}
		r.handleDeadline(kind)
	}
	for _, id := range r.sched.dueGrace(now) {
		if r.closed {
			return
		}
		r.handleGraceExpired(id)
	}
}

func (r *Room) pingMembers() {
	for _, m := range r.members {
		if m.client != nil {
			m.client.Ping()
		}
	}
}

func (r *Room) send(m *member, data []byte) {
	if m.client == nil {
		return
	}
	if err := m.client.Send(data); err != nil {
		r.log.Warn().Err(err).Str("player", m.id).Msg("dropping slow client")
	}
}

func (r *Room) broadcast(data []byte) {
	for _, m := range r.members {
		r.send(m, data)
	}
}

func (r *Room) broadcastExcept(except *member, data []byte) {
	for _, m := range r.members {
		if m != except {
			r.send(m, data)
		}
	}
}

func (r *Room) partyStatus() []PlayerView {
	views := make([]PlayerView, 0, len(r.members))
	for _, m := range r.members {
		views = append(views, m.view())
	}
	return views
}

func (r *Room) sendSnapshot(m *member) {
	snap := roomSnapshot{
		Code:    r.code,
		You:     m.id,
		HostID:  r.hostID,
		Phase:   r.phase,
		Players: r.partyStatus(),
	}
	if r.run != nil && r.phase.Active() {
		enemy := r.run.enemy
		snap.Wave = r.run.wave
		snap.TotalWaves = r.content.TotalWaves()
		snap.Enemy = &enemy
		snap.Situation = r.run.template.Situation
		snap.Options = r.run.options[m.id]
		_, snap.HasChosen = r.run.choices[m.id]
		_, snap.HasRolled = r.run.actions[m.id]
		_, snap.HasVoted = r.run.votes[m.id]
		snap.Deadline = r.phaseDeadline()
	}
	r.send(m, encodePacket(EventRoomSnapshot, snap))
}

func (r *Room) publishDescription() {
	if r.lobby == nil {
		return
	}
	r.lobby.RequestUpdateDescription(RoomDescription{
		Code:       r.code,
		Players:    len(r.members),
		MaxPlayers: r.settings.MaxPlayers,
		Started:    r.phase.Active(),
		Private:    r.private,
	})
}

// teardown stops all timers, closes every remaining client and detaches the
// room from the registry. Safe to call more than once.
func (r *Room) teardown() {
	if r.closed {
		return
	}
	r.closed = true
	r.sched.reset()
	r.sched.clearGrace()
	for _, m := range r.members {
		if m.client != nil {
			m.client.Close(ErrShuttingDown.Error())
		}
		if r.lobby != nil {
			r.lobby.ReleaseSeat(m.id, r.code)
		}
	}
	r.members = nil
	if r.lobby != nil {
		r.lobby.RemoveRoom(r.code)
	}
	r.doneOnce.Do(func() { close(r.done) })
	r.log.Debug().Msg("room closed")
}

func (m *member) participant(survived bool) domain.RunParticipant {
	return domain.RunParticipant{
		AccountId:     m.id,
		CharacterName: m.name,
		Background:    m.background,
		Survived:      survived,
		DamageTaken:   m.damageTaken,
	}
}
