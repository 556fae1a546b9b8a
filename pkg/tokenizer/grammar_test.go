package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrammarSet(t *testing.T) {
	a1, a2, b := rule(`a`), rule(`A`), rule(`b`)
	g := NewGrammar().Set("a", a1).Set("b", b)
	g.Set("a", a2)

	assert.Equal(t, []string{"a", "b"}, g.Names())
	assert.Equal(t, 2, g.Len())
	rules, ok := g.Get("a")
	require.True(t, ok)
	assert.Equal(t, []*Rule{a2}, rules)
	_, ok = g.Get("c")
	assert.False(t, ok)
	assert.True(t, g.Has("b"))

	entries := g.Entries()
	entries[0].Name = "changed"
	assert.Equal(t, []string{"a", "b"}, g.Names())
}

func TestInsertBefore(t *testing.T) {
	base := func() *Grammar {
		return NewGrammar().Set("a", rule(`a`)).Set("b", rule(`b`)).Set("c", rule(`c`))
	}
	newC := rule(`C`)

	tests := []struct {
		name      string
		before    string
		additions *Grammar
		expected  []string
	}{
		{"Splice", "b", NewGrammar().Set("x", rule(`x`)), []string{"a", "x", "b", "c"}},
		{"At the front", "a", NewGrammar().Set("x", rule(`x`)).Set("y", rule(`y`)), []string{"x", "y", "a", "b", "c"}},
		{"Moves existing entries", "b", NewGrammar().Set("x", rule(`x`)).Set("c", newC), []string{"a", "x", "c", "b"}},
		{"Replaces the anchor", "b", NewGrammar().Set("b", rule(`B`)), []string{"a", "b", "c"}},
		{"Nothing to add", "b", NewGrammar(), []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := Inline(base())
			old := ref.Grammar()
			g, err := ref.InsertBefore(tt.before, tt.additions)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, g.Names())
			assert.Same(t, g, ref.Grammar())
			assert.Equal(t, []string{"a", "b", "c"}, old.Names())
		})
	}

	t.Run("Last write wins", func(t *testing.T) {
		ref := Inline(base())
		g, err := ref.InsertBefore("a", NewGrammar().Set("c", newC))
		require.NoError(t, err)
		rules, _ := g.Get("c")
		assert.Equal(t, []*Rule{newC}, rules)
	})

	t.Run("Unknown anchor", func(t *testing.T) {
		ref := Inline(base())
		old := ref.Grammar()
		_, err := ref.InsertBefore("missing", NewGrammar().Set("x", rule(`x`)))
		require.ErrorIs(t, err, ErrUnknownEntry)
		assert.Same(t, old, ref.Grammar())
	})

	t.Run("Unbound reference", func(t *testing.T) {
		_, err := (&Ref{name: "nothing"}).InsertBefore("a", NewGrammar())
		require.ErrorIs(t, err, ErrUnboundRef)
	})
}

func TestClone(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("shared", func(*Registry) (*Grammar, error) {
		return NewGrammar().Set("s", rule(`s`)), nil
	}))

	inline := NewGrammar().Set("i", rule(`i`))
	orig := NewGrammar().
		Set("inline", &Rule{Pattern: MustCompilePattern(`\[.*?\]`, ""), Inside: Inline(inline), Alias: []string{"x"}}).
		Set("named", &Rule{Pattern: MustCompilePattern(`\(.*?\)`, ""), Inside: reg.Ref("shared")})

	c := orig.Clone()
	assert.Equal(t, orig.Names(), c.Names())

	cInline, _ := c.Get("inline")
	cNamed, _ := c.Get("named")
	oInline, _ := orig.Get("inline")

	assert.NotSame(t, oInline[0], cInline[0])
	assert.NotSame(t, oInline[0].Inside, cInline[0].Inside)
	assert.Same(t, reg.Ref("shared"), cNamed[0].Inside)

	// Changing the copy's inline grammar leaves the original alone.
	_, err := cInline[0].Inside.InsertBefore("i", NewGrammar().Set("j", rule(`j`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"j", "i"}, cInline[0].Inside.Grammar().Names())
	assert.Equal(t, []string{"i"}, oInline[0].Inside.Grammar().Names())

	cInline[0].Alias[0] = "y"
	assert.Equal(t, []string{"x"}, oInline[0].Alias)
}

func TestCloneCycle(t *testing.T) {
	g := NewGrammar()
	self := Inline(g)
	g.Set("nest", &Rule{Pattern: MustCompilePattern(`\{.*\}`, ""), Inside: self})

	c := g.Clone()
	rules, ok := c.Get("nest")
	require.True(t, ok)
	inner := rules[0].Inside.Grammar()
	require.NotNil(t, inner)
	assert.NotSame(t, g, inner)

	// The copied grammar refers to itself, not to the original.
	innerRules, ok := inner.Get("nest")
	require.True(t, ok)
	assert.Same(t, inner, innerRules[0].Inside.Grammar())
}
