// Package dice implements the server-side randomized check: a d20 roll,
// category bonuses and classification into an outcome tier.
package dice

// Sides is the die size. Rolls are always in [1, Sides].
const Sides = 20

// DefaultCriticalMargin is how far above the difficulty an effective roll
// must land to count as a critical.
const DefaultCriticalMargin = 5

type Category string

const (
	Physical  Category = "physical"
	Defensive Category = "defensive"
	Creative  Category = "creative"
	Technical Category = "technical"
	Social    Category = "social"
)

type Tier string

const (
	NatFail    Tier = "nat_fail"
	Fail       Tier = "fail"
	Normal     Tier = "normal"
	Critical   Tier = "critical"
	NatSuccess Tier = "nat_success"
)

// Source is the randomness provider. *math/rand/v2.Rand satisfies it.
type Source interface {
	// IntN returns a random int in [0, n). n > 0.
	IntN(n int) int
}

// Roll returns a value in [1, Sides]. It must only ever be called on the
// server; clients never supply roll values.
func Roll(src Source) int {
	return src.IntN(Sides) + 1
}

// Classify maps a roll to its tier. A raw 1 or 20 decides the tier on its own,
// whatever the modifiers are. Otherwise effective is compared to difficulty,
// and reaching difficulty+margin is a critical.
func Classify(raw, effective, difficulty, margin int) Tier {
	switch {
	case raw == 1:
		return NatFail
	case raw == Sides:
		return NatSuccess
	case effective < difficulty:
		return Fail
	case effective >= difficulty+margin:
		return Critical
	default:
		return Normal
	}
}

// Check is the full record of one resolved roll.
type Check struct {
	Natural    int  `json:"natural"`
	Raw        int  `json:"raw"`
	Bonus      int  `json:"bonus"`
	Effective  int  `json:"effective"`
	Difficulty int  `json:"difficulty"`
	Tier       Tier `json:"tier"`
}

// Resolve rolls for one action. The floored roll is what gets classified, so a
// min_raise floor can lift a natural 1 out of NatFail.
func Resolve(src Source, category Category, difficulty int, mods Modifiers, baseMargin int) Check {
	natural := Roll(src)
	return Evaluate(natural, category, difficulty, mods, baseMargin)
}

// Evaluate is Resolve with the die face already known.
func Evaluate(natural int, category Category, difficulty int, mods Modifiers, baseMargin int) Check {
	raw := max(natural, mods.Floor())
	bonus := mods.Bonus(category)
	effective := raw + bonus
	return Check{
		Natural:    natural,
		Raw:        raw,
		Bonus:      bonus,
		Effective:  effective,
		Difficulty: difficulty,
		Tier:       Classify(raw, effective, difficulty, mods.CriticalMargin(baseMargin)),
	}
}
