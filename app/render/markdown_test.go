package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		contains []string
		excludes []string
	}{
		{
			name:     "emphasis",
			source:   "hello **world**",
			contains: []string{"<strong>world</strong>"},
		},
		{
			name:     "ampersand is escaped once",
			source:   "fish & chips",
			contains: []string{"fish &amp; chips"},
			excludes: []string{"&amp;amp;"},
		},
		{
			name:     "script is dropped",
			source:   "<script>alert(1)</script>ok",
			excludes: []string{"<script"},
		},
		{
			name:     "links open safely",
			source:   "[site](https://example.com)",
			contains: []string{`href="https://example.com"`, "nofollow", "noreferrer", `target="_blank"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Markdown(tt.source)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.False(t, strings.Contains(out, s), "unexpected %q in %q", s, out)
			}
		})
	}
}
