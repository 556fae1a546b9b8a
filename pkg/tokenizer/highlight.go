package tokenizer

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NodeType is the kind of a Node.
type NodeType string

const (
	RootNode    NodeType = "root"
	ElementNode NodeType = "element"
	TextNode    NodeType = "text"
)

// Node is an element of the highlighted output tree. Tokens become span
// elements classed "token", their type and their aliases; text stays text.
type Node struct {
	Type       NodeType          `json:"type"`
	Tag        string            `json:"tagName,omitempty"`
	Classes    []string          `json:"className,omitempty"`
	Attributes map[string]string `json:"properties,omitempty"`
	Value      string            `json:"value,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// Highlighter runs the hooked tokenize pipeline for registered languages.
type Highlighter struct {
	registry *Registry
	hooks    *HookBus
	log      logrus.FieldLogger
}

// HighlighterOption configures a Highlighter.
type HighlighterOption func(*Highlighter)

// WithHooks sets the hook bus run by the highlighter.
func WithHooks(hooks *HookBus) HighlighterOption {
	return func(h *Highlighter) {
		h.hooks = hooks
	}
}

// WithLogger sets the highlighter's logger.
func WithLogger(log logrus.FieldLogger) HighlighterOption {
	return func(h *Highlighter) {
		h.log = log
	}
}

// NewHighlighter returns a highlighter over reg.
func NewHighlighter(reg *Registry, opts ...HighlighterOption) *Highlighter {
	h := &Highlighter{
		registry: reg,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hooks returns the highlighter's hook bus, or nil.
func (h *Highlighter) Hooks() *HookBus {
	return h.hooks
}

// Highlight tokenizes text with the language registered under name and
// returns the output tree.
func (h *Highlighter) Highlight(text, name string) (*Node, error) {
	g, err := h.registry.Grammar(name)
	if err != nil {
		return nil, err
	}
	return h.HighlightGrammar(text, g, name)
}

// HighlightGrammar is like Highlight for a grammar that need not be
// registered. name is passed to the hooks as Env.Language.
func (h *Highlighter) HighlightGrammar(text string, g *Grammar, name string) (*Node, error) {
	env, err := h.TokenizeEnv(text, g, name)
	if err != nil {
		return nil, err
	}
	children, err := h.stringify(env.Tokens, env.Language)
	if err != nil {
		return nil, err
	}
	return &Node{Type: RootNode, Children: children}, nil
}

// TokenizeEnv runs before-tokenize, Tokenize and after-tokenize, and returns
// the final hook environment.
func (h *Highlighter) TokenizeEnv(text string, g *Grammar, name string) (*Env, error) {
	env := &Env{Code: text, Grammar: g, Language: name}
	if err := h.hooks.Run(BeforeTokenize, env); err != nil {
		return nil, err
	}
	if env.Grammar == nil {
		return nil, errors.Wrapf(ErrNoGrammar, "%q", env.Language)
	}

	tokens, err := tokenizeRunes([]rune(env.Code), env.Grammar, h.log)
	if err != nil {
		return nil, errors.Wrapf(err, "tokenizing %q", env.Language)
	}
	env.Tokens = tokens

	if err := h.hooks.Run(AfterTokenize, env); err != nil {
		return nil, err
	}
	h.log.WithFields(logrus.Fields{
		"language": env.Language,
		"runes":    TotalLen(env.Tokens),
		"items":    len(env.Tokens),
	}).Debug("Tokenized")
	return env, nil
}

func (h *Highlighter) stringify(items []Item, language string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case Text:
			if v != "" {
				nodes = append(nodes, &Node{Type: TextNode, Value: string(v)})
			}
		case *Token:
			n, err := h.stringifyToken(v, language)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (h *Highlighter) stringifyToken(tok *Token, language string) (*Node, error) {
	children, err := h.stringify(tok.Items(), language)
	if err != nil {
		return nil, err
	}
	classes := append([]string{"token", tok.Type}, tok.Alias...)
	el := &Node{
		Type:       ElementNode,
		Tag:        "span",
		Classes:    classes,
		Attributes: map[string]string{},
		Children:   children,
	}
	if err := h.hooks.Run(Wrap, &Env{Language: language, Token: tok, Element: el}); err != nil {
		return nil, err
	}
	if len(el.Attributes) == 0 {
		el.Attributes = nil
	}
	return el, nil
}
