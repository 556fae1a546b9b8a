package tokenizer

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// GrammarFile represents the structure of a YAML grammar file.
type GrammarFile struct {
	Name         string       `yaml:"name"`
	Alias        StringList   `yaml:"alias,omitempty"`
	Requires     []string     `yaml:"requires,omitempty"`
	Extends      string       `yaml:"extends,omitempty"`
	Entries      EntryList    `yaml:"entries"`
	InsertBefore []InsertRule `yaml:"insert-before,omitempty"`
}

// InsertRule inserts entries into another, already registered grammar.
// Path walks from that grammar into nested ones: each step names an entry
// whose first rule with a nested grammar is followed.
type InsertRule struct {
	Into    string    `yaml:"into"`
	Path    []string  `yaml:"path,omitempty"`
	Before  string    `yaml:"before"`
	Entries EntryList `yaml:"entries"`
}

// EntryList is an ordered grammar mapping. The key "rest" is not an entry:
// it names a grammar to merge in on first use.
type EntryList struct {
	Entries []EntrySpec
	Rest    string
}

// EntrySpec is one named entry of an EntryList.
type EntrySpec struct {
	Name  string
	Rules RuleList
}

// RuleList is written as a single rule or a sequence of rules.
type RuleList []RuleSpec

// RuleSpec is written as a bare pattern or as a mapping.
type RuleSpec struct {
	Pattern    string      `yaml:"pattern"`
	Flags      string      `yaml:"flags,omitempty"`
	Lookbehind bool        `yaml:"lookbehind,omitempty"`
	Greedy     bool        `yaml:"greedy,omitempty"`
	Alias      StringList  `yaml:"alias,omitempty"`
	Inside     *InsideSpec `yaml:"inside,omitempty"`
}

// InsideSpec is either the name of a registered language or an inline
// grammar.
type InsideSpec struct {
	Name    string
	Entries EntryList
}

// StringList is written as a scalar or a sequence of scalars.
type StringList []string

func resolveAlias(value *yaml.Node) *yaml.Node {
	for value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	return value
}

func badFile(value *yaml.Node, format string, args ...any) error {
	return errors.Wrapf(ErrBadGrammarFile, "line %d: "+format, append([]any{value.Line}, args...)...)
}

// UnmarshalYAML implements yaml.Unmarshaler, keeping entries in file order.
func (l *EntryList) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind != yaml.MappingNode {
		return badFile(value, "grammar entries must be a mapping")
	}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if key.Value == "rest" {
			if err := val.Decode(&l.Rest); err != nil {
				return err
			}
			continue
		}
		if seen[key.Value] {
			return badFile(key, "entry %q is defined twice", key.Value)
		}
		seen[key.Value] = true
		var rules RuleList
		if err := val.Decode(&rules); err != nil {
			return err
		}
		l.Entries = append(l.Entries, EntrySpec{Name: key.Value, Rules: rules})
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler, writing entries in order.
func (l EntryList) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range l.Entries {
		val := &yaml.Node{}
		if err := val.Encode(e.Rules); err != nil {
			return nil, err
		}
		out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.Name}, val)
	}
	if l.Rest != "" {
		out.Content = append(out.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "rest"},
			&yaml.Node{Kind: yaml.ScalarNode, Value: l.Rest})
	}
	return out, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *RuleList) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind == yaml.SequenceNode {
		var rules []RuleSpec
		if err := value.Decode(&rules); err != nil {
			return err
		}
		*l = rules
		return nil
	}
	var rule RuleSpec
	if err := value.Decode(&rule); err != nil {
		return err
	}
	*l = RuleList{rule}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (l RuleList) MarshalYAML() (any, error) {
	if len(l) == 1 {
		return l[0], nil
	}
	return []RuleSpec(l), nil
}

// ruleSpecFields has RuleSpec's fields without its methods.
type ruleSpecFields RuleSpec

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RuleSpec) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	switch value.Kind {
	case yaml.ScalarNode:
		*r = RuleSpec{Pattern: value.Value}
	case yaml.MappingNode:
		var fields ruleSpecFields
		if err := value.Decode(&fields); err != nil {
			return err
		}
		*r = RuleSpec(fields)
	default:
		return badFile(value, "rule must be a pattern or a mapping")
	}
	if r.Pattern == "" {
		return badFile(value, "rule has no pattern")
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r RuleSpec) MarshalYAML() (any, error) {
	if r.Flags == "" && !r.Lookbehind && !r.Greedy && len(r.Alias) == 0 && r.Inside == nil {
		return r.Pattern, nil
	}
	return ruleSpecFields(r), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *InsideSpec) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind == yaml.ScalarNode {
		s.Name = value.Value
		return nil
	}
	return value.Decode(&s.Entries)
}

// MarshalYAML implements yaml.Marshaler.
func (s InsideSpec) MarshalYAML() (any, error) {
	if s.Name != "" {
		return s.Name, nil
	}
	return s.Entries, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind == yaml.ScalarNode {
		*l = StringList{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (l StringList) MarshalYAML() (any, error) {
	if len(l) == 1 {
		return l[0], nil
	}
	return []string(l), nil
}

// ParseGrammarFile parses the YAML text of a grammar file.
func ParseGrammarFile(data []byte) (*GrammarFile, error) {
	var f GrammarFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		if errors.Is(err, ErrBadGrammarFile) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrBadGrammarFile, "%v", err)
	}
	if f.Name == "" {
		return nil, errors.Wrap(ErrBadGrammarFile, "missing name")
	}
	return &f, nil
}

// LoadGrammarFile loads and parses a YAML grammar file.
func LoadGrammarFile(filename string) (*GrammarFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read grammar file '%s'", filename)
	}
	f, err := ParseGrammarFile(data)
	if err != nil {
		return nil, errors.Wrapf(err, "grammar file '%s'", filename)
	}
	return f, nil
}

// Build compiles the entries into a grammar. Named references resolve
// through reg and may be bound later.
func (l EntryList) Build(reg *Registry) (*Grammar, error) {
	g := NewGrammar()
	for _, e := range l.Entries {
		rules := make([]*Rule, len(e.Rules))
		for i, spec := range e.Rules {
			rule, err := spec.Build(reg)
			if err != nil {
				return nil, errors.Wrapf(err, "entry %q", e.Name)
			}
			rules[i] = rule
		}
		g.Set(e.Name, rules...)
	}
	if l.Rest != "" {
		g.SetRest(reg.Ref(l.Rest))
	}
	return g, nil
}

// Build compiles the rule.
func (r RuleSpec) Build(reg *Registry) (*Rule, error) {
	p, err := CompilePattern(r.Pattern, r.Flags)
	if err != nil {
		return nil, err
	}
	rule := &Rule{
		Pattern:    p,
		Lookbehind: r.Lookbehind,
		Greedy:     r.Greedy,
		Alias:      []string(r.Alias),
	}
	if r.Inside != nil {
		if r.Inside.Name != "" {
			rule.Inside = reg.Ref(r.Inside.Name)
		} else {
			inside, err := r.Inside.Entries.Build(reg)
			if err != nil {
				return nil, err
			}
			rule.Inside = Inline(inside)
		}
	}
	return rule, nil
}

// Register registers the file's grammar under its name and aliases, then
// applies its insertions. Missing required languages are passed to resolve,
// which should register them. Nothing happens if the name is taken.
func (f *GrammarFile) Register(reg *Registry, resolve func(name string) error) error {
	if reg.Registered(f.Name) {
		return nil
	}
	requires := f.Requires
	if f.Extends != "" {
		requires = append([]string{f.Extends}, requires...)
	}
	for _, req := range requires {
		if reg.Registered(req) {
			continue
		}
		if resolve == nil {
			return errors.Wrapf(ErrBadGrammarFile, "%q requires unknown language %q", f.Name, req)
		}
		if err := resolve(req); err != nil {
			return errors.Wrapf(err, "%q requires %q", f.Name, req)
		}
	}

	err := reg.Register(f.Name, func(reg *Registry) (*Grammar, error) {
		g, err := f.Entries.Build(reg)
		if err != nil || f.Extends == "" {
			return g, err
		}
		return reg.Extend(f.Extends, g)
	})
	if err != nil {
		return err
	}
	if len(f.Alias) > 0 {
		if err := reg.Alias(f.Name, f.Alias...); err != nil {
			return err
		}
	}

	for _, ins := range f.InsertBefore {
		if err := ins.apply(reg); err != nil {
			return errors.Wrapf(err, "%q", f.Name)
		}
	}
	return nil
}

func (ins InsertRule) apply(reg *Registry) error {
	additions, err := ins.Entries.Build(reg)
	if err != nil {
		return err
	}
	if len(ins.Path) == 0 {
		_, err = reg.InsertBefore(ins.Into, ins.Before, additions)
		return err
	}

	g, err := reg.Grammar(ins.Into)
	if err != nil {
		return err
	}
	var target *Ref
	for _, step := range ins.Path {
		target = nil
		rules, _ := g.Get(step)
		for _, r := range rules {
			if r.Inside.Bound() {
				target = r.Inside
				break
			}
		}
		if target == nil {
			return errors.Wrapf(ErrUnknownEntry, "no nested grammar at %s%s", ins.Into, pathString(ins.Path))
		}
		g = target.Grammar()
	}
	_, err = target.InsertBefore(ins.Before, additions)
	return err
}

// LoadFS parses every file in fsys matching pattern and registers them all.
// A file's requires may name any language defined in the same set; naming
// any other gives an error matching both ErrBadGrammarFile and
// ErrUnknownLanguage.
func LoadFS(reg *Registry, fsys fs.FS, pattern string) error {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return errors.Wrapf(err, "bad pattern %q", pattern)
	}
	files := make(map[string]*GrammarFile, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Wrapf(err, "reading %s", name)
		}
		f, err := ParseGrammarFile(data)
		if err != nil {
			return errors.Wrapf(err, "%s", path.Base(name))
		}
		if _, dup := files[f.Name]; dup {
			return errors.Wrapf(ErrBadGrammarFile, "language %q is defined twice", f.Name)
		}
		files[f.Name] = f
	}

	loading := make(map[string]bool)
	var resolve func(name string) error
	resolve = func(name string) error {
		f, ok := files[name]
		if !ok {
			// A missing requirement is both a file error and an unknown language.
			return errors.WithStack(fmt.Errorf("%w: %w %q", ErrBadGrammarFile, ErrUnknownLanguage, name))
		}
		if loading[name] {
			return errors.Wrapf(ErrBadGrammarFile, "requires cycle through %q", name)
		}
		loading[name] = true
		defer delete(loading, name)
		return f.Register(reg, resolve)
	}

	order := make([]string, 0, len(files))
	for name := range files {
		order = append(order, name)
	}
	sort.Strings(order)
	for _, name := range order {
		if err := resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// Spec converts a grammar back into its file form. Named references are
// written by name. Inline grammars that refer back to themselves cannot be
// written and give ErrBadGrammarFile.
func Spec(g *Grammar) (EntryList, error) {
	return spec(g, make(map[*Grammar]bool))
}

func spec(g *Grammar, active map[*Grammar]bool) (EntryList, error) {
	if active[g] {
		return EntryList{}, errors.Wrap(ErrBadGrammarFile, "inline grammar refers to itself")
	}
	active[g] = true
	defer delete(active, g)

	var l EntryList
	if rest := g.Rest(); rest != nil {
		l.Rest = rest.Name()
	}
	for _, e := range g.entries {
		es := EntrySpec{Name: e.Name}
		for _, r := range e.Rules {
			rs := RuleSpec{
				Pattern:    r.Pattern.Source(),
				Flags:      r.Pattern.Flags(),
				Lookbehind: r.Lookbehind,
				Greedy:     r.Greedy,
				Alias:      StringList(r.Alias),
			}
			switch {
			case r.Inside == nil:
			case r.Inside.Name() != "":
				rs.Inside = &InsideSpec{Name: r.Inside.Name()}
			case r.Inside.Bound():
				nested, err := spec(r.Inside.Grammar(), active)
				if err != nil {
					return EntryList{}, err
				}
				rs.Inside = &InsideSpec{Entries: nested}
			}
			es.Rules = append(es.Rules, rs)
		}
		l.Entries = append(l.Entries, es)
	}
	return l, nil
}

// DumpGrammar renders the grammar registered under name as a grammar file.
func DumpGrammar(reg *Registry, name string) ([]byte, error) {
	g, err := reg.Grammar(name)
	if err != nil {
		return nil, err
	}
	entries, err := Spec(g)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(&GrammarFile{Name: name, Alias: reg.Aliases(name), Entries: entries})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal grammar to YAML")
	}
	return out, nil
}
