package game

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/yanghwi/daily-dungeon/combat"
	"github.com/yanghwi/daily-dungeon/content"
	"github.com/yanghwi/daily-dungeon/dice"
	"github.com/yanghwi/daily-dungeon/domain"
	"github.com/yanghwi/daily-dungeon/narrative"
)

const persistTimeout = 10 * time.Second

type run struct {
	wave         int
	template     content.WaveTemplate
	enemy        combat.Enemy
	options      map[string][]ChoiceOption
	choices      map[string]ChoiceOption
	actions      map[string]combat.Action
	votes        map[string]Vote
	result       combat.Result
	outcome      narrative.Outcome
	narration    uint64
	narratedText string
	loot         []combat.Loot
	history      []WaveRecord
	wavesCleared int
	departed     []domain.RunParticipant
	ended        bool
}

func newRun() *run {
	return &run{
		wave:    1,
		options: make(map[string][]ChoiceOption),
		choices: make(map[string]ChoiceOption),
		actions: make(map[string]combat.Action),
		votes:   make(map[string]Vote),
		loot:    []combat.Loot{},
		history: []WaveRecord{},
	}
}

func (r *run) resetRound() {
	clear(r.options)
	clear(r.choices)
	clear(r.actions)
	clear(r.votes)
	r.narration = 0
	r.narratedText = ""
}

func (r *run) forget(playerID string) {
	delete(r.options, playerID)
	delete(r.choices, playerID)
	delete(r.actions, playerID)
	delete(r.votes, playerID)
}

func (r *Room) enterPhase(p Phase) {
	r.sched.reset()
	r.phase = p
}

func (r *Room) phaseDeadline() *time.Time {
	var kind deadlineKind
	switch r.phase {
	case PhaseChoosing:
		kind = choiceDeadline
	case PhaseRolling:
		kind = rollDeadline
	case PhaseWaveResult:
		kind = voteDeadline
	default:
		return nil
	}
	at, ok := r.sched.deadline(kind)
	if !ok {
		return nil
	}
	return &at
}

func (r *Room) broadcastPhase() {
	wave := 0
	if r.run != nil {
		wave = r.run.wave
	}
	r.broadcast(encodePacket(EventPhaseChanged, phaseChanged{Phase: r.phase, Wave: wave, Deadline: r.phaseDeadline()}))
}

func (r *Room) alive() []*member {
	out := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		if m.alive {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) startRun(m *member) {
	if m.id != r.hostID || (r.phase != PhaseLobby && r.phase != PhaseRunEnd) {
		return
	}
	for _, other := range r.members {
		if other.background == "" {
			return
		}
	}
	r.run = newRun()
	for _, other := range r.members {
		other.hp, other.maxHP, other.alive, other.damageTaken = DefaultHP, DefaultHP, true, 0
	}
	r.log.Info().Int("players", len(r.members)).Msg("run started")
	r.startWave(false)
	r.publishDescription()
}

// startWave sets up the round for the current wave. A retry keeps the
// wounded enemy and skips the intro.
func (r *Room) startWave(retry bool) {
	run := r.run
	if !retry {
		run.template = r.content.WaveTemplate(run.wave, r.rng)
		run.enemy = r.content.ScaleEnemy(run.template, len(r.alive()))
	}
	run.resetRound()
	for _, m := range r.alive() {
		run.options[m.id] = r.buildOptions(m)
	}

	if retry {
		r.enterPhase(PhaseChoosing)
		r.sched.arm(choiceDeadline, r.now().Add(r.settings.ChoiceTimeout))
		r.sendIntros(true)
		r.broadcastPhase()
		r.checkQuorum()
		return
	}
	r.enterPhase(PhaseWaveIntro)
	r.sched.arm(introDone, r.now().Add(r.settings.IntroDelay))
	r.broadcastPhase()
	r.sendIntros(false)
}

func (r *Room) buildOptions(m *member) []ChoiceOption {
	opts := r.run.template.Options(m.background)
	out := make([]ChoiceOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, ChoiceOption{
			ID:         uuid.NewString(),
			Text:       o.Text,
			Category:   o.Category,
			Difficulty: o.Difficulty,
		})
	}
	return out
}

// sendIntros gives each player only their own options.
func (r *Room) sendIntros(retry bool) {
	for _, m := range r.members {
		r.send(m, encodePacket(EventWaveIntro, waveIntro{
			Wave:       r.run.wave,
			TotalWaves: r.content.TotalWaves(),
			Retry:      retry,
			Enemy:      r.run.enemy,
			Situation:  r.run.template.Situation,
			Options:    r.run.options[m.id],
		}))
	}
}

func (r *Room) handleDeadline(kind deadlineKind) {
	switch kind {
	case introDone:
		r.beginChoosing()
	case choiceDeadline:
		r.autoChoose()
		r.beginRolling()
	case rollDeadline:
		r.autoRoll()
		r.resolveRound()
	case narrativeDue:
		r.deliverNarrative()
	case waveEndDue:
		r.finishWave()
	case voteDeadline:
		r.autoVote()
		r.tallyVotes()
	}
}

// checkQuorum advances the current collection phase once every alive player
// has acted. An empty alive set is a wipe.
func (r *Room) checkQuorum() {
	if r.run == nil || r.run.ended || r.closed {
		return
	}
	var collected map[string]bool
	switch r.phase {
	case PhaseChoosing:
		collected = keys(r.run.choices)
	case PhaseRolling:
		collected = keys(r.run.actions)
	case PhaseWaveResult:
		collected = keys(r.run.votes)
	default:
		return
	}
	alive := r.alive()
	if len(alive) == 0 {
		r.endRun(domain.RunWipe)
		return
	}
	for _, m := range alive {
		if !collected[m.id] {
			return
		}
	}
	switch r.phase {
	case PhaseChoosing:
		r.beginRolling()
	case PhaseRolling:
		r.resolveRound()
	case PhaseWaveResult:
		r.tallyVotes()
	}
}

func keys[V any](m map[string]V) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func (r *Room) beginChoosing() {
	r.enterPhase(PhaseChoosing)
	r.sched.arm(choiceDeadline, r.now().Add(r.settings.ChoiceTimeout))
	r.broadcastPhase()
	r.checkQuorum()
}

func (r *Room) submitChoice(m *member, optionID string) {
	if r.phase != PhaseChoosing || !m.alive {
		return
	}
	if _, done := r.run.choices[m.id]; done {
		return
	}
	idx := slices.IndexFunc(r.run.options[m.id], func(o ChoiceOption) bool { return o.ID == optionID })
	if idx < 0 {
		return
	}
	r.run.choices[m.id] = r.run.options[m.id][idx]
	r.checkQuorum()
}

func (r *Room) autoChoose() {
	for _, m := range r.alive() {
		if _, done := r.run.choices[m.id]; done {
			continue
		}
		opts := r.run.options[m.id]
		if len(opts) == 0 {
			continue
		}
		r.run.choices[m.id] = opts[r.rng.IntN(len(opts))]
	}
}

func (r *Room) beginRolling() {
	r.enterPhase(PhaseRolling)
	r.sched.arm(rollDeadline, r.now().Add(r.settings.RollTimeout))
	ready := allChoicesReady{Players: []string{}}
	for _, m := range r.alive() {
		if _, ok := r.run.choices[m.id]; ok {
			ready.Players = append(ready.Players, m.id)
		}
	}
	r.broadcast(encodePacket(EventAllChoicesReady, ready))
	r.broadcastPhase()
	r.checkQuorum()
}

func (r *Room) submitRoll(m *member) {
	if r.phase != PhaseRolling || !m.alive {
		return
	}
	choice, ok := r.run.choices[m.id]
	if !ok {
		return
	}
	if _, done := r.run.actions[m.id]; done {
		return
	}
	r.run.actions[m.id] = r.roll(m, choice)
	r.checkQuorum()
}

func (r *Room) roll(m *member, choice ChoiceOption) combat.Action {
	return combat.Action{
		PlayerID:   m.id,
		PlayerName: m.name,
		OptionID:   choice.ID,
		OptionText: choice.Text,
		Category:   choice.Category,
		Check:      dice.Resolve(r.rng, choice.Category, choice.Difficulty, m.mods, r.settings.CriticalMargin),
	}
}

func (r *Room) autoRoll() {
	for _, m := range r.alive() {
		choice, ok := r.run.choices[m.id]
		if !ok {
			continue
		}
		if _, done := r.run.actions[m.id]; !done {
			r.run.actions[m.id] = r.roll(m, choice)
		}
	}
}

func (r *Room) resolveRound() {
	run := r.run
	actions := make([]combat.Action, 0, len(run.actions))
	for _, m := range r.members {
		if a, ok := run.actions[m.id]; ok {
			actions = append(actions, a)
		}
	}

	res := combat.Resolve(actions, run.enemy, r.content, r.rng)
	run.enemy.TakeDamage(res.EnemyDamage)
	for _, d := range res.PlayerDamages {
		m := r.member(d.PlayerID)
		if m == nil {
			continue
		}
		before := m.hp
		m.hp, m.alive = combat.ApplyDamage(m.hp, d.Damage)
		m.damageTaken += before - m.hp
	}
	if res.EnemyDefeated {
		run.loot = append(run.loot, res.Loot...)
		run.wavesCleared++
	}
	run.result = res
	run.outcome = narrative.Outcome{EnemyName: run.enemy.Name, EnemyDefeated: res.EnemyDefeated, Actions: actions}
	run.history = append(run.history, WaveRecord{
		Wave:          run.wave,
		EnemyName:     run.enemy.Name,
		EnemyDamage:   res.EnemyDamage,
		EnemyDefeated: res.EnemyDefeated,
	})

	r.enterPhase(PhaseNarrating)
	r.sched.arm(narrativeDue, r.now().Add(r.settings.NarrativeDelay))
	r.broadcast(encodePacket(EventRollResults, rollResults{
		Actions: actions,
		Result:  res,
		Enemy:   run.enemy,
		Party:   r.partyStatus(),
	}))
	r.broadcastPhase()
	r.requestNarration()
}

// requestNarration asks the narrator for text in the background. Only the
// answer carrying the current narration id is ever used.
func (r *Room) requestNarration() {
	run := r.run
	r.narrationSeq++
	run.narration = r.narrationSeq
	if r.narrator == nil {
		return
	}
	id, outcome := run.narration, run.outcome
	ctx, cancel := context.WithTimeout(context.Background(), r.settings.NarrativeDelay)
	r.background.Go(func() {
		defer cancel()
		text, err := r.narrator.Narrate(ctx, outcome)
		select {
		case r.narratives <- narrativeReady{id: id, text: text, err: err}:
		case <-r.done:
		}
	})
}

func (r *Room) handleNarrative(n narrativeReady) {
	if r.run == nil || r.phase != PhaseNarrating || n.id != r.run.narration {
		return
	}
	if n.err != nil {
		r.log.Debug().Err(n.err).Msg("narrator unavailable, using fallback")
		return
	}
	r.run.narratedText = n.text
}

func (r *Room) deliverNarrative() {
	run := r.run
	text := run.narratedText
	if text == "" {
		text = narrative.Fallback(run.outcome, r.content, r.rng)
	}
	run.narration = 0
	r.sched.arm(waveEndDue, r.now().Add(r.settings.WaveEndDelay))
	r.broadcast(encodePacket(EventNarrative, narrativeEvent{Text: text, Result: run.result}))
}

func (r *Room) finishWave() {
	run := r.run
	defeated := run.enemy.Defeated()
	switch {
	case len(r.alive()) == 0:
		r.endRun(domain.RunWipe)
		return
	case defeated && run.wave >= r.content.TotalWaves():
		r.endRun(domain.RunClear)
		return
	}

	r.enterPhase(PhaseWaveResult)
	r.sched.arm(voteDeadline, r.now().Add(r.settings.VoteTimeout))
	end := waveEnd{
		Wave:        run.wave,
		CanContinue: defeated,
		Party:       r.partyStatus(),
		Loot:        run.result.Loot,
	}
	if defeated {
		end.NextWavePreview = r.content.Preview(run.wave + 1)
	}
	r.broadcast(encodePacket(EventWaveEnd, end))
	r.broadcastPhase()
}

func (r *Room) submitVote(m *member, decision Vote) {
	if r.phase != PhaseWaveResult || !m.alive {
		return
	}
	if decision != VoteContinue && decision != VoteRetreat {
		return
	}
	if _, done := r.run.votes[m.id]; done {
		return
	}
	r.run.votes[m.id] = decision
	r.checkQuorum()
}

func (r *Room) autoVote() {
	for _, m := range r.alive() {
		if _, done := r.run.votes[m.id]; !done {
			r.run.votes[m.id] = VoteContinue
		}
	}
}

// tallyVotes retreats on a strict majority; a tie continues.
func (r *Room) tallyVotes() {
	retreat := 0
	for _, v := range r.run.votes {
		if v == VoteRetreat {
			retreat++
		}
	}
	if retreat*2 > len(r.run.votes) {
		r.endRun(domain.RunRetreat)
		return
	}
	if r.run.enemy.Defeated() {
		r.run.wave++
		r.startWave(false)
		return
	}
	r.startWave(true)
}

// endRun is terminal for the run and runs at most once per run.
func (r *Room) endRun(result domain.RunResult) {
	run := r.run
	if run == nil || run.ended {
		return
	}
	run.ended = true
	r.enterPhase(PhaseRunEnd)
	r.sched.clearGrace()

	highlights := r.content.Highlights(result)
	if highlights == nil {
		highlights = []string{}
	}
	record := domain.RunRecord{
		RoomCode:     r.code,
		Result:       result,
		WavesCleared: run.wavesCleared,
		Highlights:   highlights,
		Participants: slices.Clone(run.departed),
	}
	for _, m := range r.members {
		record.Participants = append(record.Participants, m.participant(m.alive && result != domain.RunWipe))
	}

	r.broadcast(encodePacket(EventRunEnd, runEnd{
		Result:       result,
		WavesCleared: run.wavesCleared,
		TotalLoot:    run.loot,
		Highlights:   highlights,
		WaveHistory:  run.history,
	}))
	r.broadcastPhase()
	r.persist(record)
	r.log.Info().Str("result", string(result)).Int("wavesCleared", run.wavesCleared).Msg("run ended")

	for _, m := range slices.Clone(r.members) {
		if !m.connected() {
			r.removeMember(m)
		}
	}
	if len(r.members) == 0 {
		r.teardown()
		return
	}
	r.publishDescription()
}

func (r *Room) persist(record domain.RunRecord) {
	if r.store == nil {
		return
	}
	r.background.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.store.SaveRun(ctx, record); err != nil {
			r.log.Error().Err(err).Msg("failed to save run")
		}
	})
}
