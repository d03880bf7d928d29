// Package narrative turns a resolved round into a few lines of story text,
// either through a language model or from static fallback lines.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/yanghwi/daily-dungeon/combat"
	"github.com/yanghwi/daily-dungeon/dice"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNarratorDisabled = errors.New("narrator-disabled")
	ErrEmptyCompletion  = errors.New("empty-completion")
)

const requestTimeout = 15 * time.Second

// Outcome is everything the narrator needs to know about one round.
type Outcome struct {
	EnemyName     string
	EnemyDefeated bool
	Actions       []combat.Action
}

// Completer produces a completion for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	completer Completer
	cache     *expirable.LRU[string, string]
	group     singleflight.Group
}

// NewService returns a narrator backed by completer. A nil completer yields a
// disabled service whose Narrate always fails with ErrNarratorDisabled.
func NewService(completer Completer, cacheSize int, ttl time.Duration) *Service {
	return &Service{
		completer: completer,
		cache:     expirable.NewLRU[string, string](cacheSize, nil, ttl),
	}
}

func (s *Service) Enabled() bool {
	return s.completer != nil
}

// Narrate returns story text for the outcome. Identical outcomes requested
// concurrently share one completion, and results are cached.
func (s *Service) Narrate(ctx context.Context, o Outcome) (string, error) {
	if s.completer == nil {
		return "", ErrNarratorDisabled
	}

	key := cacheKey(o)
	if text, ok := s.cache.Get(key); ok {
		return text, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// a flight that finished between the lookup above and DoChan
		if text, ok := s.cache.Get(key); ok {
			return text, nil
		}
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
		defer cancel()

		text, err := s.completer.Complete(reqCtx, buildPrompt(o))
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyCompletion
		}
		s.cache.Add(key, text)
		return text, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("enemy", o.EnemyName).Msg("narration request failed")
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func cacheKey(o Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%t", o.EnemyName, o.EnemyDefeated)
	for _, a := range o.Actions {
		fmt.Fprintf(&b, "|%s:%s:%s", a.PlayerName, a.OptionText, a.Tier)
	}
	return b.String()
}

func buildPrompt(o Outcome) string {
	var b strings.Builder
	b.WriteString("Narrate one round of a light-hearted urban fantasy fight in at most four short sentences. ")
	fmt.Fprintf(&b, "The enemy is %s.\n", o.EnemyName)
	for _, a := range o.Actions {
		fmt.Fprintf(&b, "- %s tried to %s (%s check, result: %s)\n", a.PlayerName, strings.ToLower(a.OptionText), a.Category, a.Tier)
	}
	if o.EnemyDefeated {
		b.WriteString("The enemy was defeated this round.")
	} else {
		b.WriteString("The enemy is still standing.")
	}
	return b.String()
}

// Lines supplies the static text used when no model is available.
type Lines interface {
	FallbackLines(tier dice.Tier) []string
	EnemyStatusLine(defeated bool) string
}

// Fallback builds narration from static lines: one per action plus a closing
// line about the enemy.
func Fallback(o Outcome, lines Lines, src dice.Source) string {
	out := make([]string, 0, len(o.Actions)+2)
	for _, a := range o.Actions {
		candidates := lines.FallbackLines(a.Tier)
		if len(candidates) == 0 {
			continue
		}
		line := candidates[0]
		if src != nil {
			line = candidates[src.IntN(len(candidates))]
		}
		line = strings.ReplaceAll(line, "{name}", a.PlayerName)
		line = strings.ReplaceAll(line, "{option}", a.OptionText)
		out = append(out, line)
	}
	out = append(out, "", strings.ReplaceAll(lines.EnemyStatusLine(o.EnemyDefeated), "{enemy}", o.EnemyName))
	return strings.Join(out, "\n")
}
