package tokenizer

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Rule is a single pattern plus the flags that control how its matches are
// turned into tokens.
type Rule struct {
	Pattern *Pattern

	// Lookbehind excludes the text of the first capture group from the token.
	Lookbehind bool

	// Greedy lets the match span several unclassified stream nodes.
	Greedy bool

	// Inside, when set, is the grammar used to tokenize the matched text.
	Inside *Ref

	// Alias lists extra classification labels for the emitted token.
	Alias []string
}

// NewRule returns a plain rule for p.
func NewRule(p *Pattern) *Rule {
	return &Rule{Pattern: p}
}

func (r *Rule) clone(seen map[*Ref]*Ref) *Rule {
	c := *r
	c.Alias = append([]string(nil), r.Alias...)
	c.Inside = r.Inside.clone(seen)
	return &c
}

// Entry is a named, ordered list of rules within a grammar.
type Entry struct {
	Name  string
	Rules []*Rule
}

// Grammar is an ordered mapping from token type to rules. Earlier entries
// have priority at a given position.
//
// A Grammar is mutated only during registration. Once tokenization starts it
// is read-only, apart from the one-time merge of its rest reference, which is
// synchronized.
type Grammar struct {
	entries []*Entry
	index   map[string]int

	restMu sync.Mutex
	rest   *Ref
}

// NewGrammar returns an empty grammar.
func NewGrammar() *Grammar {
	return &Grammar{index: make(map[string]int)}
}

// Set assigns rules to name. An existing entry keeps its position; a new one
// is appended.
func (g *Grammar) Set(name string, rules ...*Rule) *Grammar {
	if i, ok := g.index[name]; ok {
		g.entries[i] = &Entry{Name: name, Rules: rules}
		return g
	}
	g.index[name] = len(g.entries)
	g.entries = append(g.entries, &Entry{Name: name, Rules: rules})
	return g
}

// Get returns the rules of the entry called name.
func (g *Grammar) Get(name string) ([]*Rule, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.entries[i].Rules, true
}

// Has reports whether the grammar has an entry called name.
func (g *Grammar) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Names returns the entry names in order.
func (g *Grammar) Names() []string {
	names := make([]string, len(g.entries))
	for i, e := range g.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns the entries in order.
func (g *Grammar) Entries() []Entry {
	out := make([]Entry, len(g.entries))
	for i, e := range g.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries.
func (g *Grammar) Len() int {
	return len(g.entries)
}

// SetRest sets a grammar whose entries are merged into g the first time g is
// tokenized. It is how a grammar refers to itself, or to a grammar registered
// later, from inside one of its own rules.
func (g *Grammar) SetRest(ref *Ref) *Grammar {
	g.restMu.Lock()
	defer g.restMu.Unlock()
	g.rest = ref
	return g
}

// Rest returns the pending rest reference, if any.
func (g *Grammar) Rest() *Ref {
	g.restMu.Lock()
	defer g.restMu.Unlock()
	return g.rest
}

// mergeRest merges the rest grammar into g in place and clears it.
func (g *Grammar) mergeRest() {
	g.restMu.Lock()
	defer g.restMu.Unlock()
	if g.rest == nil {
		return
	}
	rest := g.rest.Grammar()
	g.rest = nil
	if rest == nil || rest == g {
		return
	}
	for _, e := range rest.entries {
		g.Set(e.Name, e.Rules...)
	}
}

// Clone returns a deep copy of g. Inline references are copied; named
// references stay shared, so the copy still follows later changes to the
// grammars they name.
func (g *Grammar) Clone() *Grammar {
	return g.clone(make(map[*Ref]*Ref))
}

func (g *Grammar) clone(seen map[*Ref]*Ref) *Grammar {
	c := NewGrammar()
	for _, e := range g.entries {
		rules := make([]*Rule, len(e.Rules))
		for i, r := range e.Rules {
			rules[i] = r.clone(seen)
		}
		c.Set(e.Name, rules...)
	}
	c.rest = g.Rest().clone(seen)
	return c
}

// insertBefore builds a new grammar holding g's entries with additions
// spliced in immediately before the entry called before. Entries of g that
// also appear in additions are dropped from their original position.
func (g *Grammar) insertBefore(before string, additions *Grammar) (*Grammar, error) {
	if !g.Has(before) {
		return nil, errors.Wrapf(ErrUnknownEntry, "%q", before)
	}
	ret := NewGrammar()
	for _, e := range g.entries {
		if e.Name == before {
			for _, a := range additions.entries {
				ret.Set(a.Name, a.Rules...)
			}
		}
		if !additions.Has(e.Name) {
			ret.Set(e.Name, e.Rules...)
		}
	}
	ret.rest = g.Rest()
	return ret, nil
}

// Ref is a stable handle to a grammar. Rules refer to nested grammars through
// Refs, so replacing the grammar behind a Ref is seen by every rule holding
// it. Named Refs are owned by a Registry; inline Refs wrap anonymous grammars.
type Ref struct {
	name    string
	grammar atomic.Pointer[Grammar]
	target  atomic.Pointer[Ref] // set when the name became an alias
}

// Inline returns an anonymous reference to g.
func Inline(g *Grammar) *Ref {
	r := &Ref{}
	r.grammar.Store(g)
	return r
}

// Name returns the registered name, or "" for inline references.
func (r *Ref) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Grammar returns the current grammar, or nil if the reference is unbound.
func (r *Ref) Grammar() *Grammar {
	if r == nil {
		return nil
	}
	if t := r.target.Load(); t != nil {
		return t.Grammar()
	}
	return r.grammar.Load()
}

// Bound reports whether a grammar is set.
func (r *Ref) Bound() bool {
	return r.Grammar() != nil
}

// Set replaces the grammar behind the reference.
func (r *Ref) Set(g *Grammar) {
	if t := r.target.Load(); t != nil {
		t.Set(g)
		return
	}
	r.grammar.Store(g)
}

// InsertBefore replaces the referenced grammar with a copy that has additions
// inserted before the entry called before, and returns the new grammar.
func (r *Ref) InsertBefore(before string, additions *Grammar) (*Grammar, error) {
	g := r.Grammar()
	if g == nil {
		return nil, errors.Wrapf(ErrUnboundRef, "insert before %q", before)
	}
	ret, err := g.insertBefore(before, additions)
	if err != nil {
		return nil, err
	}
	r.Set(ret)
	return ret, nil
}

func (r *Ref) clone(seen map[*Ref]*Ref) *Ref {
	if r == nil || r.name != "" {
		return r
	}
	if c, ok := seen[r]; ok {
		return c
	}
	c := &Ref{}
	seen[r] = c
	if g := r.Grammar(); g != nil {
		c.Set(g.clone(seen))
	}
	return c
}
