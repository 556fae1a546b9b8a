package tokenizer

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Item is one element of a token stream: either raw Text or a *Token.
type Item interface {
	// Len returns the length of the source text the item covers, in runes.
	Len() int
	// String returns the source text the item covers.
	String() string

	isItem()
}

// Text is source text that no rule has classified.
type Text string

func (t Text) Len() int       { return utf8.RuneCountInString(string(t)) }
func (t Text) String() string { return string(t) }
func (Text) isItem()          {}

// Token is a classified span of source text. Its content is either the raw
// matched text or, when the rule had a nested grammar, the items produced by
// tokenizing that text. A Token is never modified after construction.
type Token struct {
	Type   string
	Alias  []string
	Length int // length in runes of the matched source text

	raw    string
	items  []Item
	nested bool
}

// NewToken creates a token whose content is the raw text it matched.
func NewToken(tokenType, text string, alias ...string) *Token {
	return &Token{
		Type:   tokenType,
		Alias:  alias,
		Length: utf8.RuneCountInString(text),
		raw:    text,
	}
}

// NewNestedToken creates a token whose content is a nested item sequence.
// length is the rune length of the source text the token was built from.
func NewNestedToken(tokenType string, items []Item, length int, alias ...string) *Token {
	return &Token{
		Type:   tokenType,
		Alias:  alias,
		Length: length,
		items:  append([]Item(nil), items...),
		nested: true,
	}
}

func (t *Token) Len() int { return t.Length }
func (*Token) isItem()    {}

// Nested reports whether the content is an item sequence rather than raw text.
func (t *Token) Nested() bool {
	return t.nested
}

// Raw returns the raw content of a non-nested token, or "" for nested ones.
func (t *Token) Raw() string {
	return t.raw
}

// Items returns a copy of the nested content. For a raw token it returns a
// single Text item.
func (t *Token) Items() []Item {
	if !t.nested {
		return []Item{Text(t.raw)}
	}
	return append([]Item(nil), t.items...)
}

// String returns the concatenated leaf text of the token.
func (t *Token) String() string {
	if !t.nested {
		return t.raw
	}
	return Join(t.items)
}

// HasAlias reports whether alias is attached to the token.
func (t *Token) HasAlias(alias string) bool {
	for _, a := range t.Alias {
		if a == alias {
			return true
		}
	}
	return false
}

// Join concatenates the leaf text of items, dropping all type information.
func Join(items []Item) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(item.String())
	}
	return sb.String()
}

// TotalLen sums the lengths of items.
func TotalLen(items []Item) int {
	n := 0
	for _, item := range items {
		n += item.Len()
	}
	return n
}

// MarshalJSON renders content as a string for raw tokens and as an array of
// strings and token objects for nested ones.
func (t *Token) MarshalJSON() ([]byte, error) {
	var content any = t.raw
	if t.nested {
		content = marshalItems(t.items)
	}
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Content any      `json:"content"`
		Alias   []string `json:"alias,omitempty"`
		Length  int      `json:"length"`
	}{t.Type, content, t.Alias, t.Length})
}

func marshalItems(items []Item) []any {
	out := make([]any, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case Text:
			out[i] = string(v)
		default:
			out[i] = v
		}
	}
	return out
}
