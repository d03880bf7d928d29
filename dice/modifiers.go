package dice

import "slices"

type EffectKind string

const (
	// MinRaise sets a floor on the die face.
	MinRaise EffectKind = "min_raise"
	// CritExpand replaces the critical margin with a smaller one.
	CritExpand EffectKind = "crit_expand"
)

type Effect struct {
	Kind  EffectKind `json:"kind"`
	Value int        `json:"value"`
}

// Modifiers are the equipment and background numbers a player brings to a
// check.
type Modifiers struct {
	StrongCategories []Category `json:"strongCategories"`
	BackgroundBonus  int        `json:"backgroundBonus"`
	WeaponBonus      int        `json:"weaponBonus"`
	ArmorBonus       int        `json:"armorBonus"`
	Effects          []Effect   `json:"effects"`
}

// Bonus is the flat bonus for an action of the given category.
func (m Modifiers) Bonus(category Category) int {
	bonus := 0
	if slices.Contains(m.StrongCategories, category) {
		bonus += m.BackgroundBonus
	}
	switch category {
	case Physical:
		bonus += m.WeaponBonus
	case Defensive:
		bonus += m.ArmorBonus
	}
	return bonus
}

// Floor is the highest min_raise value, or 0 when there is none.
func (m Modifiers) Floor() int {
	floor := 0
	for _, e := range m.Effects {
		if e.Kind == MinRaise {
			floor = max(floor, min(e.Value, Sides))
		}
	}
	return floor
}

// CriticalMargin returns the narrowest margin among crit_expand effects, or
// base when none applies. The margin never drops below 1.
func (m Modifiers) CriticalMargin(base int) int {
	margin := base
	for _, e := range m.Effects {
		if e.Kind == CritExpand && e.Value < margin {
			margin = e.Value
		}
	}
	return max(margin, 1)
}
