package narrative

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/yanghwi/daily-dungeon/dice"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type staticLines struct{}

func (staticLines) FallbackLines(tier dice.Tier) []string {
	switch tier {
	case dice.Critical:
		return []string{"{name} nails {option}.", "{name} lands {option} hard."}
	case dice.Fail:
		return []string{"{name} fumbles {option}."}
	}
	return nil
}

func (staticLines) EnemyStatusLine(defeated bool) string {
	if defeated {
		return "{enemy} is down."
	}
	return "{enemy} stands."
}
