package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	s := NewText()
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags here", "No tags here"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"", ""},
		{`<script>alert(1)</script>Safe`, "Safe"},
		{"Fish &amp; Chips", "Fish & Chips"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Clean(tt.input), "Clean(%q)", tt.input)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"test", 0, ""},
		{"こんにちは世界です", 5, "こん..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.input, tt.n), "Truncate(%q, %d)", tt.input, tt.n)
	}
}

func TestTrimAPIMarker(t *testing.T) {
	assert.Equal(t, "The story begins…", TrimAPIMarker("The story begins… [+2310 chars]"))
	assert.Equal(t, "No marker", TrimAPIMarker("No marker"))
}

func TestParagraphs(t *testing.T) {
	s := NewText()
	in := "<article><h1>Title</h1><p>First  line.</p>\n<p></p><p>Second<br>third</p></article>"
	assert.Equal(t, "Title\n\nFirst line.\n\nSecond\n\nthird", s.Paragraphs(in))
	assert.Equal(t, "", s.Paragraphs(""))
}
