package tokenizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpans(t *testing.T) {
	tests := []struct {
		name     string
		items    []Item
		expected []Span
	}{
		{"Empty", []Item{}, []Span{}},
		{
			"Single line",
			[]Item{NewToken("w", "ab"), Text(" "), NewToken("w", "héllo")},
			[]Span{
				{Position{1, 1}, Position{1, 3}},
				{Position{1, 3}, Position{1, 4}},
				{Position{1, 4}, Position{1, 9}},
			},
		},
		{
			"Across lines",
			[]Item{NewToken("w", "a"), Text("\n\n"), NewNestedToken("n", []Item{Text("b\nc")}, 3)},
			[]Span{
				{Position{1, 1}, Position{1, 2}},
				{Position{1, 2}, Position{3, 1}},
				{Position{3, 1}, Position{4, 2}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Spans(tt.items))
		})
	}
}

func TestSpanJSON(t *testing.T) {
	span := Span{Start: Position{Line: 1, Col: 2}, End: Position{Line: 3, Col: 4}}
	jsonBytes, err := json.Marshal(span)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3,4]", string(jsonBytes))

	var decoded Span
	require.NoError(t, json.Unmarshal(jsonBytes, &decoded))
	assert.Equal(t, span, decoded)
}
