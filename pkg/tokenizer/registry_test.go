package tokenizer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	build := func(*Registry) (*Grammar, error) {
		calls++
		return NewGrammar().Set("a", rule(`a`)), nil
	}

	require.NoError(t, reg.Register("lang", build))
	first, err := reg.Grammar("lang")
	require.NoError(t, err)
	require.NoError(t, reg.Register("lang", build))
	second, err := reg.Grammar("lang")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
	assert.True(t, reg.Registered("lang"))
	assert.False(t, reg.Registered("other"))
}

func TestRegisterErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		build    BuildFunc
		expected error
	}{
		{"Build fails", func(*Registry) (*Grammar, error) { return nil, boom }, boom},
		{"No grammar", func(*Registry) (*Grammar, error) { return nil, nil }, ErrNoGrammar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			err := reg.Register("lang", tt.build)
			require.ErrorIs(t, err, tt.expected)
			assert.False(t, reg.Registered("lang"))
		})
	}
}

func TestUnknownLanguage(t *testing.T) {
	reg := NewRegistry()
	reg.Ref("pending")

	for _, name := range []string{"missing", "pending"} {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Grammar(name)
			require.ErrorIs(t, err, ErrUnknownLanguage)
			_, err = reg.Extend(name, NewGrammar())
			require.ErrorIs(t, err, ErrUnknownLanguage)
			_, err = reg.InsertBefore(name, "a", NewGrammar())
			require.ErrorIs(t, err, ErrUnknownLanguage)
			require.ErrorIs(t, reg.Alias(name, "x"), ErrUnknownLanguage)
		})
	}
}

func TestAlias(t *testing.T) {
	reg := NewRegistry()

	// A rule may refer to an alias before it exists.
	forward := reg.Ref("js")

	registerGrammar(t, reg, "javascript", NewGrammar().Set("a", rule(`a`)))
	registerGrammar(t, reg, "css", NewGrammar().Set("c", rule(`c`)))
	require.NoError(t, reg.Alias("javascript", "js", "ecmascript"))

	js, err := reg.Grammar("javascript")
	require.NoError(t, err)
	for _, alias := range []string{"js", "ecmascript"} {
		g, err := reg.Grammar(alias)
		require.NoError(t, err)
		assert.Same(t, js, g)
	}
	assert.Same(t, js, forward.Grammar())
	assert.Equal(t, []string{"js", "ecmascript"}, reg.Aliases("javascript"))
	assert.Equal(t, []string{"css", "javascript"}, reg.Languages())

	// Changes through any name are seen through all of them.
	updated, err := reg.InsertBefore("js", "a", NewGrammar().Set("b", rule(`b`)))
	require.NoError(t, err)
	assert.Same(t, updated, forward.Grammar())
	g, err := reg.Grammar("javascript")
	require.NoError(t, err)
	assert.Same(t, updated, g)

	assert.Error(t, reg.Alias("javascript", "css"))
}

func TestExtend(t *testing.T) {
	reg := NewRegistry()
	registerGrammar(t, reg, "base", NewGrammar().Set("a", rule(`a`)).Set("b", rule(`b`)))
	newB := rule(`B`)

	g, err := reg.Extend("base", NewGrammar().Set("c", rule(`c`)).Set("b", newB))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, g.Names())
	rules, _ := g.Get("b")
	assert.Equal(t, []*Rule{newB}, rules)

	base, err := reg.Grammar("base")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, base.Names())
	rules, _ = base.Get("b")
	assert.NotEqual(t, []*Rule{newB}, rules)
}

func TestInsertBeforeReferenceIntegrity(t *testing.T) {
	reg := NewRegistry()
	registerGrammar(t, reg, "inner", NewGrammar().Set("a", rule(`a`)))
	registerGrammar(t, reg, "host", NewGrammar().Set("wrap", &Rule{
		Pattern: MustCompilePattern(`\[.*?\]`, ""),
		Inside:  reg.Ref("inner"),
	}))
	host, err := reg.Grammar("host")
	require.NoError(t, err)
	old, err := reg.Grammar("inner")
	require.NoError(t, err)

	updated, err := reg.InsertBefore("inner", "a", NewGrammar().Set("b", rule(`b`)))
	require.NoError(t, err)

	rules, _ := host.Get("wrap")
	assert.Same(t, updated, rules[0].Inside.Grammar())
	assert.NotSame(t, old, rules[0].Inside.Grammar())

	items, err := Tokenize("[ab]", host)
	require.NoError(t, err)
	assert.Equal(t, []string{`wrap["[" a:a b:b "]"]`}, describe(items))
}

func TestVerify(t *testing.T) {
	reg := NewRegistry()
	registerGrammar(t, reg, "ok", NewGrammar().Set("a", rule(`a`)))
	require.NoError(t, reg.Verify())

	registerGrammar(t, reg, "broken", NewGrammar().Set("nest", &Rule{
		Pattern: MustCompilePattern(`\(.*\)`, ""),
		Inside: Inline(NewGrammar().Set("deep", &Rule{
			Pattern: MustCompilePattern(`x`, ""),
			Inside:  reg.Ref("missing"),
		})),
	}))
	err := reg.Verify()
	require.ErrorIs(t, err, ErrUnboundRef)
	assert.Contains(t, err.Error(), "broken.nest.deep -> missing")

	registerGrammar(t, reg, "missing", NewGrammar())
	require.NoError(t, reg.Verify())
}

func TestWalkCycles(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("self", func(reg *Registry) (*Grammar, error) {
		return NewGrammar().
			Set("nest", &Rule{Pattern: MustCompilePattern(`\(.*\)`, ""), Inside: reg.Ref("self")}).
			SetRest(reg.Ref("self")), nil
	}))
	g, err := reg.Grammar("self")
	require.NoError(t, err)

	var rules, rests int
	Walk(g, make(map[*Grammar]bool), func([]string, *Rule) { rules++ }, func([]string, *Ref) { rests++ })
	assert.Equal(t, 1, rules)
	assert.Equal(t, 1, rests)
	require.NoError(t, reg.Verify())
}

func TestRegistryLogging(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	reg := NewRegistry(WithRegistryLogger(log))

	registerGrammar(t, reg, "lang", NewGrammar().Set("a", rule(`a`)))
	require.NoError(t, reg.Alias("lang", "l"))

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, "Registered grammar", hook.AllEntries()[0].Message)
	assert.Equal(t, "lang", hook.AllEntries()[0].Data["language"])
	assert.Equal(t, "Registered alias", hook.LastEntry().Message)
	assert.Equal(t, "l", hook.LastEntry().Data["alias"])
}

func registerGrammar(t *testing.T, reg *Registry, name string, g *Grammar) {
	t.Helper()
	require.NoError(t, reg.Register(name, func(*Registry) (*Grammar, error) {
		return g, nil
	}))
}
