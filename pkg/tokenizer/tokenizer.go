package tokenizer

import (
	"github.com/sirupsen/logrus"
)

// Tokenize splits text into a sequence of unclassified Text and Tokens
// according to g. The lengths of the returned items always add up to the
// rune length of text, and joining their text gives text back. Empty text
// gives an empty slice, not a single empty Text.
//
// Tokenize only reads g, apart from merging a pending rest reference into it
// on first use, so it may run concurrently on grammars that are no longer
// being composed.
func Tokenize(text string, g *Grammar) ([]Item, error) {
	return tokenizeRunes([]rune(text), g, logrus.StandardLogger())
}

func tokenizeRunes(text []rune, g *Grammar, log logrus.FieldLogger) ([]Item, error) {
	g.mergeRest()
	if len(text) == 0 {
		return []Item{}, nil
	}

	list := newStream()
	list.insertText(list.head, text)

	m := &matcher{text: text, list: list, log: log}
	if err := m.matchGrammar(g, cursor{node: list.head}, nil); err != nil {
		return nil, err
	}
	return list.materialize(), nil
}
