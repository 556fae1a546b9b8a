package tokenizer

import "github.com/pkg/errors"

var (
	// ErrUnknownLanguage is returned when no grammar is registered under a name.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrNoGrammar is returned by Highlight when a before-tokenize hook left
	// no grammar to run.
	ErrNoGrammar = errors.New("language has no grammar")

	// ErrBadPattern is returned for patterns that fail to compile.
	ErrBadPattern = errors.New("bad pattern")

	// ErrUnknownEntry is returned by InsertBefore when the anchor entry is missing.
	ErrUnknownEntry = errors.New("unknown grammar entry")

	// ErrUnboundRef is returned by Verify for named references that were
	// never registered.
	ErrUnboundRef = errors.New("unbound grammar reference")

	// ErrBadGrammarFile is returned for malformed grammar files.
	ErrBadGrammarFile = errors.New("bad grammar file")
)
