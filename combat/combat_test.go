package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yanghwi/daily-dungeon/dice"
)

type stubLoot struct {
	calls int
}

func (s *stubLoot) Draw(src dice.Source, n int) []Loot {
	s.calls++
	return []Loot{{ID: "rusty_pipe", Name: "Rusty Pipe"}}
}

func action(id string, tier dice.Tier) Action {
	return Action{PlayerID: id, Check: dice.Check{Tier: tier}}
}

func TestResolve_TierTable(t *testing.T) {
	t.Parallel()
	enemy := Enemy{HP: 1000, Attack: 10, Defense: 0}
	testCases := []struct {
		tier         dice.Tier
		enemyDamage  int
		playerDamage int
	}{
		{dice.NatSuccess, 30, 0},
		{dice.Critical, 20, 0},
		{dice.Normal, 10, 3},
		{dice.Fail, 0, 7},
		{dice.NatFail, 0, 10},
	}

	for _, tc := range testCases {
		t.Run(string(tc.tier), func(t *testing.T) {
			t.Parallel()
			res := Resolve([]Action{action("a", tc.tier)}, enemy, nil, nil)
			assert.Equal(t, tc.enemyDamage, res.EnemyDamage)
			assert.Equal(t, []PlayerDamage{{PlayerID: "a", Damage: tc.playerDamage}}, res.PlayerDamages)
			assert.False(t, res.EnemyDefeated)
			assert.Empty(t, res.Loot)
		})
	}
}

func TestResolve_DefenseFloorsAtZero(t *testing.T) {
	t.Parallel()
	enemy := Enemy{HP: 50, Attack: 7, Defense: 25}
	res := Resolve([]Action{action("a", dice.Normal), action("b", dice.Fail)}, enemy, nil, nil)
	assert.Equal(t, 0, res.EnemyDamage)
	assert.Equal(t, 2, res.PlayerDamages[0].Damage)
	assert.Equal(t, 4, res.PlayerDamages[1].Damage)
}

func TestResolve_DefeatDrawsLoot(t *testing.T) {
	t.Parallel()
	loot := &stubLoot{}
	enemy := Enemy{HP: 17, Attack: 4, Defense: 3}

	res := Resolve([]Action{action("a", dice.Critical)}, enemy, loot, nil)
	assert.Equal(t, 17, res.EnemyDamage)
	assert.True(t, res.EnemyDefeated)
	assert.Len(t, res.Loot, 1)
	assert.Equal(t, 1, loot.calls)

	res = Resolve([]Action{action("a", dice.Normal)}, enemy, loot, nil)
	assert.False(t, res.EnemyDefeated)
	assert.Empty(t, res.Loot)
	assert.Equal(t, 1, loot.calls)
}

func TestResolve_OrderIndependent(t *testing.T) {
	t.Parallel()
	enemy := Enemy{HP: 60, Attack: 9, Defense: 4}
	actions := []Action{
		action("a", dice.NatSuccess),
		action("b", dice.Fail),
		action("c", dice.Normal),
		action("d", dice.NatFail),
	}

	base := Resolve(actions, enemy, nil, nil)
	byPlayer := func(r Result) map[string]int {
		m := map[string]int{}
		for _, d := range r.PlayerDamages {
			m[d.PlayerID] = d.Damage
		}
		return m
	}

	permute(actions, 0, func(p []Action) {
		res := Resolve(p, enemy, nil, nil)
		assert.Equal(t, base.EnemyDamage, res.EnemyDamage)
		assert.Equal(t, base.EnemyDefeated, res.EnemyDefeated)
		assert.Equal(t, byPlayer(base), byPlayer(res))
	})
}

func permute(a []Action, k int, visit func([]Action)) {
	if k == len(a) {
		cp := make([]Action, len(a))
		copy(cp, a)
		visit(cp)
		return
	}
	for i := k; i < len(a); i++ {
		a[k], a[i] = a[i], a[k]
		permute(a, k+1, visit)
		a[k], a[i] = a[i], a[k]
	}
}

func TestEnemy_TakeDamage(t *testing.T) {
	t.Parallel()
	e := Enemy{HP: 10, MaxHP: 10}
	e.TakeDamage(-5)
	assert.Equal(t, 10, e.HP)
	e.TakeDamage(4)
	assert.Equal(t, 6, e.HP)
	assert.False(t, e.Defeated())
	e.TakeDamage(100)
	assert.Equal(t, 0, e.HP)
	assert.True(t, e.Defeated())
}

func TestApplyDamage(t *testing.T) {
	t.Parallel()
	hp, alive := ApplyDamage(30, 7)
	assert.Equal(t, 23, hp)
	assert.True(t, alive)

	hp, alive = ApplyDamage(5, 9)
	assert.Equal(t, 0, hp)
	assert.False(t, alive)

	hp, alive = ApplyDamage(5, -3)
	assert.Equal(t, 5, hp)
	assert.True(t, alive)
}
