package game

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertNoDiff(t *testing.T, expected, actual any, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		assert.Fail(t, "mismatch (-want +got):\n"+diff)
	}
}

type harness struct {
	t       *testing.T
	room    *Room
	clients map[string]*fakeClient
	clock   *fakeClock
	content *stubContent
	src     *scriptedSource
}

func testSettings() Settings {
	return DefaultSettings()
}

// newHarness builds a lobby-phase room whose first id is the host. Time only
// moves through advance.
func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clients: make(map[string]*fakeClient),
		clock:   &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		content: newStubContent(),
		src:     &scriptedSource{},
	}
	h.clients[ids[0]] = &fakeClient{}
	h.room = NewRoom("ROOM01", false, identityOf(ids[0]), h.clients[ids[0]], testSettings(), RoomDeps{Content: h.content})
	h.room.now = h.clock.Now
	h.room.rng = h.src
	for _, id := range ids[1:] {
		h.clients[id] = &fakeClient{}
		require.NoError(t, h.room.handleJoin(newJoinRequest(identityOf(id), h.clients[id])))
	}
	return h
}

func identityOf(id string) Identity {
	return Identity{ID: id, Name: strings.ToUpper(id)}
}

func (h *harness) send(id string, in intent) {
	h.room.handleIntent(envelope{playerID: id, from: h.clients[id], intent: in})
}

func (h *harness) choose(id string, idx int) {
	h.send(id, intent{Kind: IntentSubmitChoice, OptionID: h.room.run.options[id][idx].ID})
}

func (h *harness) roll(id string) {
	h.send(id, intent{Kind: IntentSubmitRoll})
}

func (h *harness) vote(id string, v Vote) {
	h.send(id, intent{Kind: IntentSubmitVote, Decision: v})
}

func (h *harness) advance(d time.Duration) {
	h.clock.now = h.clock.now.Add(d)
	h.room.handleTick(h.clock.now)
}

// start gives the host the brawler background, everyone else clerk, and
// starts the run.
func (h *harness) start() {
	h.t.Helper()
	for i, m := range h.room.members {
		bg := "clerk"
		if i == 0 {
			bg = "brawler"
		}
		h.send(m.id, intent{Kind: IntentSelectBackground, Background: bg})
	}
	h.send(h.room.hostID, intent{Kind: IntentStartRun})
	require.Equal(h.t, PhaseWaveIntro, h.room.phase)
}

func (h *harness) toChoosing() {
	h.t.Helper()
	h.start()
	h.advance(h.room.settings.IntroDelay)
	require.Equal(h.t, PhaseChoosing, h.room.phase)
}

// playRound has every alive player pick their first option and roll the
// given die faces (1-20) in member order, then waits out the narration.
func (h *harness) playRound(faces ...int) {
	h.t.Helper()
	for _, m := range h.room.alive() {
		h.choose(m.id, 0)
	}
	require.Equal(h.t, PhaseRolling, h.room.phase)
	for _, f := range faces {
		h.src.values = append(h.src.values, f-1)
	}
	for _, m := range h.room.alive() {
		h.roll(m.id)
	}
	require.Equal(h.t, PhaseNarrating, h.room.phase)
	h.advance(h.room.settings.NarrativeDelay)
	h.advance(h.room.settings.WaveEndDelay)
}
