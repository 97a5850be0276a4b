package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text no tags",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "simple paragraph",
			input:    "<p>Hello world</p>",
			expected: "Hello world",
		},
		{
			name:     "paragraphs become lines",
			input:    "<p>First paragraph.</p><p>Second paragraph.</p>",
			expected: "First paragraph.\nSecond paragraph.",
		},
		{
			name:     "br becomes a line break",
			input:    "line one<br/>line two",
			expected: "line one\nline two",
		},
		{
			name:     "inline tags are invisible",
			input:    "<p>Some <em>emphasized</em> and <strong>bold</strong> text</p>",
			expected: "Some emphasized and bold text",
		},
		{
			name:     "entities are decoded",
			input:    "<p>Fish &amp; Chips &mdash; the classic</p>",
			expected: "Fish & Chips — the classic",
		},
		{
			name:     "script content is dropped",
			input:    "<p>visible</p><script>alert('nope')</script>",
			expected: "visible",
		},
		{
			name:     "whitespace collapses",
			input:    "<p>  spaced   out  </p>",
			expected: "spaced out",
		},
		{
			name:     "headings and list items become lines",
			input:    "<h1>Title</h1><ul><li>one</li><li>two</li></ul>",
			expected: "Title\none\ntwo",
		},
		{
			name:     "unclosed tag degrades gracefully",
			input:    "<p>broken <b>markup",
			expected: "broken markup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, StripTags(tt.input))
		})
	}
}

func TestWordCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"empty", "", 0},
		{"plain words", "three little words", 3},
		{"markup ignored", "<p>Some <em>emphasized</em> text here</p>", 4},
		{"multiple blocks", "<p>one two</p><p>three four five</p>", 5},
		{"tags only", "<p></p><div></div>", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, WordCount(tt.input))
		})
	}
}
