// Package combat aggregates one round of resolved checks into damage dealt to
// the enemy and to each acting player.
package combat

import (
	"github.com/yanghwi/daily-dungeon/dice"
)

// BaseDamage is what a single action deals before the tier multiplier.
const BaseDamage = 10

type tierOutcome struct {
	multiplier int
	hitRatio   float64
}

var tierOutcomes = map[dice.Tier]tierOutcome{
	dice.NatSuccess: {multiplier: 3, hitRatio: 0},
	dice.Critical:   {multiplier: 2, hitRatio: 0},
	dice.Normal:     {multiplier: 1, hitRatio: 0.3},
	dice.Fail:       {multiplier: 0, hitRatio: 0.7},
	dice.NatFail:    {multiplier: 0, hitRatio: 1},
}

type Enemy struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HP          int    `json:"hp"`
	MaxHP       int    `json:"maxHp"`
	Attack      int    `json:"attack"`
	Defense     int    `json:"defense"`
	ImageTag    string `json:"imageTag"`
}

// TakeDamage lowers HP, never below zero.
func (e *Enemy) TakeDamage(n int) {
	e.HP = max(0, e.HP-max(0, n))
}

func (e Enemy) Defeated() bool {
	return e.HP <= 0
}

type Action struct {
	PlayerID   string        `json:"playerId"`
	PlayerName string        `json:"playerName"`
	OptionID   string        `json:"optionId"`
	OptionText string        `json:"optionText"`
	Category   dice.Category `json:"category"`
	dice.Check
}

type PlayerDamage struct {
	PlayerID string `json:"playerId"`
	Damage   int    `json:"damage"`
}

type Loot struct {
	ID          string `json:"itemId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Rarity      string `json:"rarity"`
	Description string `json:"description"`
	Effect      string `json:"effect"`
}

// LootSource draws items when an enemy goes down.
type LootSource interface {
	Draw(src dice.Source, n int) []Loot
}

type Result struct {
	EnemyDamage   int            `json:"enemyDamage"`
	PlayerDamages []PlayerDamage `json:"playerDamages"`
	EnemyDefeated bool           `json:"enemyDefeated"`
	Loot          []Loot         `json:"loot"`
}

// Resolve computes the round outcome against enemy without mutating it.
// Each player's damage depends only on their own action and the enemy
// attack; the enemy damage is a plain sum, so action order never matters.
func Resolve(actions []Action, enemy Enemy, loot LootSource, src dice.Source) Result {
	total := 0
	damages := make([]PlayerDamage, 0, len(actions))
	for _, a := range actions {
		outcome := tierOutcomes[a.Tier]
		total += BaseDamage * outcome.multiplier
		damages = append(damages, PlayerDamage{
			PlayerID: a.PlayerID,
			Damage:   max(0, int(float64(enemy.Attack)*outcome.hitRatio)),
		})
	}
	total = max(0, total-enemy.Defense)

	res := Result{
		EnemyDamage:   total,
		PlayerDamages: damages,
		EnemyDefeated: enemy.HP-total <= 0,
		Loot:          []Loot{},
	}
	if res.EnemyDefeated && loot != nil {
		res.Loot = loot.Draw(src, 1)
	}
	return res
}

// ApplyDamage returns the new HP, clamped at zero, and whether the holder is
// still alive.
func ApplyDamage(hp, damage int) (int, bool) {
	hp = max(0, hp-max(0, damage))
	return hp, hp > 0
}
