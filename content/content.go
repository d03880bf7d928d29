// Package content serves the static game tables: wave templates, background
// presets, loot and flavour text. Everything is embedded at build time.
package content

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/yanghwi/daily-dungeon/combat"
	"github.com/yanghwi/daily-dungeon/dice"
	"github.com/yanghwi/daily-dungeon/domain"
)

//go:embed data/*.json
var data embed.FS

var (
	ErrEmptyWaveTable   = errors.New("empty-wave-table")
	ErrEmptyLootTable   = errors.New("empty-loot-table")
	ErrMissingScale     = errors.New("missing-difficulty-scale")
	ErrUnknownCategory  = errors.New("unknown-category")
	ErrEmptyWaveVariant = errors.New("empty-wave-variant")
)

type Option struct {
	Text       string        `json:"text"`
	Category   dice.Category `json:"category"`
	Difficulty int           `json:"difficulty"`
}

type EnemyBase struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Defense     int    `json:"defense"`
	ImageTag    string `json:"imageTag"`
}

type WaveTemplate struct {
	Enemy               EnemyBase           `json:"enemy"`
	BaseHP              int                 `json:"baseHp"`
	BaseAttack          int                 `json:"baseAttack"`
	Situation           string              `json:"situation"`
	OptionsByBackground map[string][]Option `json:"optionsByBackground"`
	DefaultOptions      []Option            `json:"defaultOptions"`
}

// Options returns the options offered to a player with the given background,
// falling back to the template defaults.
func (t WaveTemplate) Options(background string) []Option {
	if opts, ok := t.OptionsByBackground[background]; ok && len(opts) > 0 {
		return opts
	}
	return t.DefaultOptions
}

type wavePool struct {
	Boss     bool           `json:"boss"`
	Variants []WaveTemplate `json:"variants"`
}

type Scale struct {
	HPMod     float64 `json:"hpMod"`
	AttackMod float64 `json:"attackMod"`
}

type Background struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	StrongCategories []dice.Category `json:"strongCategories"`
	Bonus            int             `json:"bonus"`
	Weapon           string          `json:"weapon"`
	Armor            string          `json:"armor"`
	Accessory        string          `json:"accessory"`
	WeaponBonus      int             `json:"weaponBonus"`
	ArmorBonus       int             `json:"armorBonus"`
	Effect           dice.Effect     `json:"effect"`
}

func (b Background) Modifiers() dice.Modifiers {
	m := dice.Modifiers{
		StrongCategories: b.StrongCategories,
		BackgroundBonus:  b.Bonus,
		WeaponBonus:      b.WeaponBonus,
		ArmorBonus:       b.ArmorBonus,
	}
	if b.Effect.Kind != "" {
		m.Effects = []dice.Effect{b.Effect}
	}
	return m
}

type tables struct {
	DifficultyScale map[string]Scale              `json:"difficultyScale"`
	Backgrounds     []Background                  `json:"backgrounds"`
	Loot            []combat.Loot                 `json:"loot"`
	Previews        []string                      `json:"previews"`
	FallbackLines   map[dice.Tier][]string        `json:"fallbackLines"`
	EnemyDefeated   string                        `json:"enemyDefeated"`
	EnemyStanding   string                        `json:"enemyStanding"`
	Highlights      map[domain.RunResult][]string `json:"highlights"`
}

type Provider struct {
	waves              []wavePool
	scale              map[int]Scale
	backgrounds        []Background
	loot               []combat.Loot
	previews           []string
	fallback           map[dice.Tier][]string
	enemyDefeated      string
	enemyStanding      string
	highlights         map[domain.RunResult][]string
	defaultPlayerCount int
}

// Load parses the embedded tables. defaultPlayerCount picks the difficulty
// row used for party sizes the table does not list.
func Load(defaultPlayerCount int) (*Provider, error) {
	var waves []wavePool
	if err := decode("data/waves.json", &waves); err != nil {
		return nil, err
	}
	var t tables
	if err := decode("data/tables.json", &t); err != nil {
		return nil, err
	}

	if len(waves) == 0 {
		return nil, ErrEmptyWaveTable
	}
	for i, w := range waves {
		if len(w.Variants) == 0 {
			return nil, fmt.Errorf("%w: wave %d", ErrEmptyWaveVariant, i+1)
		}
		for _, v := range w.Variants {
			if err := checkOptions(v); err != nil {
				return nil, fmt.Errorf("wave %d: %w", i+1, err)
			}
		}
	}
	if len(t.Loot) == 0 {
		return nil, ErrEmptyLootTable
	}

	scale := make(map[int]Scale, len(t.DifficultyScale))
	for k, s := range t.DifficultyScale {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("difficulty scale key %q: %w", k, err)
		}
		scale[n] = s
	}
	if _, ok := scale[defaultPlayerCount]; !ok {
		return nil, fmt.Errorf("%w: %d players", ErrMissingScale, defaultPlayerCount)
	}

	return &Provider{
		waves:              waves,
		scale:              scale,
		backgrounds:        t.Backgrounds,
		loot:               t.Loot,
		previews:           t.Previews,
		fallback:           t.FallbackLines,
		enemyDefeated:      t.EnemyDefeated,
		enemyStanding:      t.EnemyStanding,
		highlights:         t.Highlights,
		defaultPlayerCount: defaultPlayerCount,
	}, nil
}

func decode(name string, v any) error {
	raw, err := data.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func checkOptions(t WaveTemplate) error {
	check := func(opts []Option) error {
		for _, o := range opts {
			switch o.Category {
			case dice.Physical, dice.Defensive, dice.Creative, dice.Technical, dice.Social:
			default:
				return fmt.Errorf("%w: %q", ErrUnknownCategory, o.Category)
			}
		}
		return nil
	}
	if len(t.DefaultOptions) == 0 {
		return fmt.Errorf("%s has no default options", t.Enemy.Name)
	}
	if err := check(t.DefaultOptions); err != nil {
		return err
	}
	for _, opts := range t.OptionsByBackground {
		if err := check(opts); err != nil {
			return err
		}
	}
	return nil
}

// TotalWaves is the number of waves in a full run.
func (p *Provider) TotalWaves() int {
	return len(p.waves)
}

// IsBoss reports whether the given 1-based wave is a boss wave.
func (p *Provider) IsBoss(wave int) bool {
	return p.waves[p.waveIndex(wave)].Boss
}

func (p *Provider) waveIndex(wave int) int {
	return max(0, min(wave-1, len(p.waves)-1))
}

// WaveTemplate returns the template for a 1-based wave number, clamped to the
// table. Boss waves always use their first variant; other waves pick one with
// src, or the first when src is nil.
func (p *Provider) WaveTemplate(wave int, src dice.Source) WaveTemplate {
	pool := p.waves[p.waveIndex(wave)]
	if pool.Boss || len(pool.Variants) == 1 || src == nil {
		return pool.Variants[0]
	}
	return pool.Variants[src.IntN(len(pool.Variants))]
}

// ScaleEnemy instantiates the template's enemy for a party of playerCount.
func (p *Provider) ScaleEnemy(t WaveTemplate, playerCount int) combat.Enemy {
	s, ok := p.scale[playerCount]
	if !ok {
		s = p.scale[p.defaultPlayerCount]
	}
	hp := int(float64(t.BaseHP) * s.HPMod)
	return combat.Enemy{
		Name:        t.Enemy.Name,
		Description: t.Enemy.Description,
		HP:          hp,
		MaxHP:       hp,
		Attack:      int(float64(t.BaseAttack) * s.AttackMod),
		Defense:     t.Enemy.Defense,
		ImageTag:    t.Enemy.ImageTag,
	}
}

// Preview is the teaser shown at the end of the previous wave. The first
// wave has none, so previews[0] belongs to wave 2.
func (p *Provider) Preview(wave int) string {
	i := wave - 2
	if i < 0 || i >= len(p.previews) {
		return ""
	}
	return p.previews[i]
}

func (p *Provider) Backgrounds() []Background {
	out := make([]Background, len(p.backgrounds))
	copy(out, p.backgrounds)
	return out
}

func (p *Provider) Background(name string) (Background, bool) {
	for _, b := range p.backgrounds {
		if b.Name == name {
			return b, true
		}
	}
	return Background{}, false
}

// Draw picks n loot items with replacement.
func (p *Provider) Draw(src dice.Source, n int) []combat.Loot {
	out := make([]combat.Loot, 0, n)
	for range n {
		out = append(out, p.loot[intN(src, len(p.loot))])
	}
	return out
}

func (p *Provider) Highlights(result domain.RunResult) []string {
	return append([]string(nil), p.highlights[result]...)
}

// FallbackLines returns the static narration templates for a tier. Lines
// contain {name} and {option} placeholders.
func (p *Provider) FallbackLines(tier dice.Tier) []string {
	return p.fallback[tier]
}

// EnemyStatusLine is the closing line of a fallback narration, with {enemy}
// as placeholder.
func (p *Provider) EnemyStatusLine(defeated bool) string {
	if defeated {
		return p.enemyDefeated
	}
	return p.enemyStanding
}

func intN(src dice.Source, n int) int {
	if src == nil {
		return rand.IntN(n)
	}
	return src.IntN(n)
}
