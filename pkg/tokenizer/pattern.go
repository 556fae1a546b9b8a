package tokenizer

import (
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// Pattern is a compiled rule pattern. Patterns use regexp2 syntax, which
// supports the lookaround and backreferences that grammar rules rely on.
type Pattern struct {
	source string
	flags  string
	re     *regexp2.Regexp
}

// CompilePattern compiles source with flags drawn from "gimsu". The i, m and
// s flags select case-insensitive, multi-line and dot-all matching; g and u
// are accepted for compatibility and have no effect.
//
// Patterns use regexp2's default (.NET) dialect, not ECMAScript: \w, \d and
// \b are Unicode-aware, and $ without the m flag also matches before a
// final newline.
func CompilePattern(source, flags string) (*Pattern, error) {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'g', 'u':
		default:
			return nil, errors.Wrapf(ErrBadPattern, "unsupported flag %q in /%s/%s", f, source, flags)
		}
	}
	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return nil, errors.Wrapf(ErrBadPattern, "/%s/%s: %v", source, flags, err)
	}
	return &Pattern{source: source, flags: flags, re: re}, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(source, flags string) *Pattern {
	p, err := CompilePattern(source, flags)
	if err != nil {
		panic(err.Error())
	}
	return p
}

// Source returns the pattern text.
func (p *Pattern) Source() string { return p.source }

// Flags returns the flags the pattern was compiled with.
func (p *Pattern) Flags() string { return p.flags }

func (p *Pattern) String() string {
	return "/" + strings.ReplaceAll(p.source, "/", `\/`) + "/" + p.flags
}

// match is a pattern match in rune offsets.
type match struct {
	index int
	text  []rune
}

// find searches input from rune offset start. When lookbehind is set and the
// first capture group matched text, that text is trimmed from the front of
// the match: it belongs to whatever precedes the token.
func (p *Pattern) find(input []rune, start int, lookbehind bool) (*match, error) {
	m, err := p.re.FindRunesMatchStartingAt(input, start)
	if err != nil {
		return nil, errors.Wrapf(err, "matching %s", p)
	}
	if m == nil {
		return nil, nil
	}
	res := &match{index: m.Index, text: input[m.Index : m.Index+m.Length : m.Index+m.Length]}
	if lookbehind {
		if g := m.GroupByNumber(1); g != nil && g.Length > 0 {
			res.index += g.Length
			res.text = res.text[g.Length:]
		}
	}
	return res, nil
}
