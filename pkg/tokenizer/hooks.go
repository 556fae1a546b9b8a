package tokenizer

import "sync"

// Hook names run by the Highlighter.
const (
	// BeforeTokenize runs before matching; callbacks may replace Env.Code or
	// Env.Grammar.
	BeforeTokenize = "before-tokenize"

	// AfterTokenize runs on the flat item sequence; callbacks may rewrite
	// Env.Tokens, e.g. to splice back embedded content.
	AfterTokenize = "after-tokenize"

	// Wrap runs for every token while the output tree is built; callbacks may
	// change Env.Element.
	Wrap = "wrap"
)

// Env is the mutable state shared by the callbacks of one hook run.
type Env struct {
	Code     string
	Grammar  *Grammar
	Language string
	Tokens   []Item

	// Set for Wrap only.
	Token   *Token
	Element *Node
}

// HookFunc is a hook callback. A returned error stops the run.
type HookFunc func(env *Env) error

// HookBus is an ordered registry of named callbacks.
type HookBus struct {
	mu  sync.RWMutex
	all map[string][]HookFunc
}

// NewHookBus returns an empty bus.
func NewHookBus() *HookBus {
	return &HookBus{all: make(map[string][]HookFunc)}
}

// Add appends fn to the callbacks of name. The same callback may be added
// any number of times, to any number of hooks.
func (b *HookBus) Add(name string, fn HookFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all[name] = append(b.all[name], fn)
}

// Run calls the callbacks of name in registration order. The first error
// aborts the run and is returned as is. A nil bus runs nothing.
func (b *HookBus) Run(name string, env *Env) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	callbacks := b.all[name]
	b.mu.RUnlock()

	for _, fn := range callbacks {
		if err := fn(env); err != nil {
			return err
		}
	}
	return nil
}
