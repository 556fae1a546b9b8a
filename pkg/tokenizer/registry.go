package tokenizer

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BuildFunc builds the grammar for a language. It may register the
// languages it depends on first.
type BuildFunc func(reg *Registry) (*Grammar, error)

// Registry maps language names to grammars. Every name owns a Ref, and rules
// refer to other languages through those Refs, so InsertBefore on a language
// is seen by every grammar that embeds it.
//
// Grammars are expected to be composed during a registration phase and then
// only read. Tokenizing while a grammar is being composed needs external
// synchronization.
type Registry struct {
	mu      sync.RWMutex
	refs    map[string]*Ref
	primary map[string]bool
	aliases map[string][]string

	log logrus.FieldLogger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for registration events.
func WithRegistryLogger(log logrus.FieldLogger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		refs:    make(map[string]*Ref),
		primary: make(map[string]bool),
		aliases: make(map[string][]string),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ref returns the reference for name, creating an unbound one if the
// language has not been registered yet.
func (r *Registry) Ref(name string) *Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refs[name]
	if !ok {
		ref = &Ref{name: name}
		r.refs[name] = ref
	}
	return ref
}

func (r *Registry) lookup(name string) (*Ref, error) {
	r.mu.RLock()
	ref, ok := r.refs[name]
	r.mu.RUnlock()
	if !ok || !ref.Bound() {
		return nil, errors.Wrapf(ErrUnknownLanguage, "%q is not registered", name)
	}
	return ref, nil
}

// Register builds and stores the grammar for name. It does nothing if name
// is already registered, so build is called at most once per name.
func (r *Registry) Register(name string, build BuildFunc) error {
	if r.Registered(name) {
		return nil
	}
	g, err := build(r)
	if err != nil {
		return errors.Wrapf(err, "registering %q", name)
	}
	if g == nil {
		return errors.Wrapf(ErrNoGrammar, "registering %q", name)
	}

	ref := r.Ref(name)
	r.mu.Lock()
	r.primary[name] = true
	r.mu.Unlock()
	ref.Set(g)

	r.log.WithFields(logrus.Fields{
		"language": name,
		"entries":  g.Len(),
	}).Debug("Registered grammar")
	return nil
}

// Alias makes each alias another name for the already registered language
// name. Aliases share the language's Ref.
func (r *Registry) Alias(name string, aliases ...string) error {
	ref, err := r.lookup(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alias := range aliases {
		if existing, ok := r.refs[alias]; ok && existing != ref {
			if existing.Bound() {
				return errors.Errorf("alias %q is already registered", alias)
			}
			// Rules that referred to the alias before it existed now follow
			// the language.
			existing.target.Store(ref)
		}
		r.refs[alias] = ref
		r.aliases[name] = append(r.aliases[name], alias)
		r.log.WithFields(logrus.Fields{
			"language": name,
			"alias":    alias,
		}).Debug("Registered alias")
	}
	return nil
}

// Registered reports whether a grammar is registered under name or alias.
func (r *Registry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.refs[name]
	return ok && ref.Bound()
}

// Languages returns the sorted primary names of the registered languages.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.primary))
	for name := range r.primary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aliases returns the aliases registered for name.
func (r *Registry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.aliases[name]...)
}

// Grammar returns the grammar registered under name.
func (r *Registry) Grammar(name string) (*Grammar, error) {
	ref, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return ref.Grammar(), nil
}

// Extend returns a deep copy of the grammar registered under name with
// additions overlaid: entries present in both keep their original position
// and take the new rules, the others are appended. The registry is not
// changed.
func (r *Registry) Extend(name string, additions *Grammar) (*Grammar, error) {
	base, err := r.Grammar(name)
	if err != nil {
		return nil, err
	}
	g := base.Clone()
	for _, e := range additions.entries {
		g.Set(e.Name, e.Rules...)
	}
	r.log.WithFields(logrus.Fields{
		"language": name,
		"added":    additions.Names(),
	}).Debug("Extended grammar")
	return g, nil
}

// InsertBefore replaces the grammar registered under name with a copy that
// has additions inserted immediately before the entry called before, and
// returns it. Every rule that refers to name sees the new grammar.
func (r *Registry) InsertBefore(name, before string, additions *Grammar) (*Grammar, error) {
	ref, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	g, err := ref.InsertBefore(before, additions)
	if err != nil {
		return nil, errors.Wrapf(err, "inserting into %q", name)
	}
	r.log.WithFields(logrus.Fields{
		"language": name,
		"before":   before,
		"added":    additions.Names(),
	}).Debug("Inserted grammar entries")
	return g, nil
}

// Verify walks every registered grammar, following nested and rest
// references, and reports named references that were never registered.
func (r *Registry) Verify() error {
	r.mu.RLock()
	names := make([]string, 0, len(r.refs))
	for name := range r.refs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	seen := make(map[*Grammar]bool)
	var unbound []string
	visitRef := func(owner string, ref *Ref) {
		if ref != nil && ref.Name() != "" && !ref.Bound() {
			unbound = append(unbound, owner+" -> "+ref.Name())
		}
	}
	for _, name := range names {
		ref := r.Ref(name)
		if !ref.Bound() {
			continue
		}
		Walk(ref.Grammar(), seen, func(path []string, rule *Rule) {
			visitRef(name+pathString(path), rule.Inside)
		}, func(path []string, rest *Ref) {
			visitRef(name+pathString(path)+".rest", rest)
		})
	}
	if len(unbound) > 0 {
		return errors.Wrapf(ErrUnboundRef, "%v", unbound)
	}
	return nil
}

// Walk visits g depth first, calling onRule for each rule and onRest for each
// pending rest reference, and follows nested grammars through both. Each
// grammar is visited once, so cyclic references terminate. seen may be
// shared between calls to skip grammars already walked.
func Walk(g *Grammar, seen map[*Grammar]bool, onRule func(path []string, rule *Rule), onRest func(path []string, rest *Ref)) {
	var walk func(g *Grammar, path []string)
	walk = func(g *Grammar, path []string) {
		if g == nil || seen[g] {
			return
		}
		seen[g] = true
		if rest := g.Rest(); rest != nil {
			if onRest != nil {
				onRest(path, rest)
			}
			walk(rest.Grammar(), path)
		}
		for _, e := range g.entries {
			p := append(path[:len(path):len(path)], e.Name)
			for _, rule := range e.Rules {
				if onRule != nil {
					onRule(p, rule)
				}
				walk(rule.Inside.Grammar(), p)
			}
		}
	}
	walk(g, nil)
}

func pathString(path []string) string {
	s := ""
	for _, p := range path {
		s += "." + p
	}
	return s
}
