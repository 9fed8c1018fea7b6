// Package oracletest has test doubles for the generator interfaces.
package oracletest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/walteh/unoclass/pkg/oracle"
)

type MockGenerator struct {
	mock.Mock
}

var _ oracle.Generator = (*MockGenerator)(nil)
var _ oracle.Enumerator = (*MockGenerator)(nil)

func (m *MockGenerator) Generate(ctx context.Context, tokens []string, opts oracle.Options) (*oracle.Result, error) {
	args := m.Called(ctx, tokens, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.Result), args.Error(1)
}

func (m *MockGenerator) Candidates() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

// Matched builds a Result that accepts exactly tokens.
func Matched(tokens ...string) *oracle.Result {
	res := &oracle.Result{Matched: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		res.Matched[t] = struct{}{}
	}
	return res
}

// StaticGenerator accepts a fixed set of tokens and records every call.
type StaticGenerator struct {
	mu    sync.Mutex
	Valid map[string]string
	Calls [][]string
	Opts  []oracle.Options
}

func NewStaticGenerator(valid ...string) *StaticGenerator {
	g := &StaticGenerator{Valid: make(map[string]string, len(valid))}
	for _, v := range valid {
		g.Valid[v] = ""
	}
	return g
}

func (g *StaticGenerator) Generate(ctx context.Context, tokens []string, opts oracle.Options) (*oracle.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, append([]string(nil), tokens...))
	g.Opts = append(g.Opts, opts)
	res := &oracle.Result{Matched: make(map[string]struct{})}
	for _, t := range tokens {
		if css, ok := g.Valid[t]; ok {
			res.Matched[t] = struct{}{}
			res.CSS += css
		}
	}
	return res, nil
}

func (g *StaticGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
