package tokenizer

import "encoding/json"

// Position is a line and column in the source text, both counted from 1.
// Columns count runes.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Span is the start and end positions of an item. End is the position just
// past its last rune.
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// MarshalJSON writes the span as [startLine, startCol, endLine, endCol].
func (s Span) MarshalJSON() ([]byte, error) {
	arr := [4]int{s.Start.Line, s.Start.Col, s.End.Line, s.End.Col}
	return json.Marshal(arr)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Span) UnmarshalJSON(data []byte) error {
	var arr [4]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	s.Start = Position{Line: arr[0], Col: arr[1]}
	s.End = Position{Line: arr[2], Col: arr[3]}
	return nil
}

// Spans returns the source span of each item. items must cover the text in
// order from its start, as Tokenize returns them.
func Spans(items []Item) []Span {
	spans := make([]Span, len(items))
	pos := Position{Line: 1, Col: 1}
	for i, item := range items {
		start := pos
		for _, r := range item.String() {
			if r == '\n' {
				pos.Line++
				pos.Col = 1
			} else {
				pos.Col++
			}
		}
		spans[i] = Span{Start: start, End: pos}
	}
	return spans
}
