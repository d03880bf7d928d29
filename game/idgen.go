package game

import (
	"math/rand/v2"
	"sync"
	"time"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator hands out short room codes that are unique among live rooms.
type CodeGenerator struct {
	locker sync.Mutex
	length int
	inUse  map[string]struct{}
}

func NewCodeGenerator(length int) *CodeGenerator {
	return &CodeGenerator{length: length, inUse: make(map[string]struct{})}
}

func (g *CodeGenerator) Generate() string {
	g.locker.Lock()
	defer g.locker.Unlock()

	for attempts := 1; ; attempts++ {
		// grow the code once the space gets crowded
		if attempts%64 == 0 {
			g.length++
		}
		code := make([]byte, g.length)
		for i := range code {
			code[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
		}
		if _, taken := g.inUse[string(code)]; !taken {
			g.inUse[string(code)] = struct{}{}
			return string(code)
		}
	}
}

func (g *CodeGenerator) Dispose(code string) {
	g.locker.Lock()
	delete(g.inUse, code)
	g.locker.Unlock()
}

type TickerGen struct{}

func NewTickerGen() TickerGen {
	return TickerGen{}
}

func (TickerGen) Create(d time.Duration) <-chan time.Time {
	return time.NewTicker(d).C
}
