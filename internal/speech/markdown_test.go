package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bold",
			in:   "The **quarterly revenue** grew by **12%**.",
			want: "The quarterly revenue grew by 12%.",
		},
		{
			name: "italic",
			in:   "An *important* point and _another_ one.",
			want: "An important point and another one.",
		},
		{
			name: "snake_case survives italic stripping",
			in:   "The user_id_value column and _emphasis_ here.",
			want: "The user_id_value column and emphasis here.",
		},
		{
			name: "headings",
			in:   "# Title\n## Section\nBody text.",
			want: "Title\nSection\nBody text.",
		},
		{
			name: "links keep text",
			in:   "See [the report](https://example.com/report) for details.",
			want: "See the report for details.",
		},
		{
			name: "images keep alt text",
			in:   "Chart: ![revenue chart](chart.png)",
			want: "Chart: revenue chart",
		},
		{
			name: "inline code",
			in:   "Run `make build` before deploying.",
			want: "Run make build before deploying.",
		},
		{
			name: "code blocks removed entirely",
			in:   "Before.\n```\nfunc main() {}\n```\nAfter.",
			want: "Before.\n\nAfter.",
		},
		{
			name: "unordered lists",
			in:   "- first point\n- second point\n* third point",
			want: "first point\nsecond point\nthird point",
		},
		{
			name: "ordered lists",
			in:   "1. first\n2. second",
			want: "first\nsecond",
		},
		{
			name: "blockquotes",
			in:   "> quoted wisdom\nplain line",
			want: "quoted wisdom\nplain line",
		},
		{
			name: "horizontal rules",
			in:   "above\n---\nbelow",
			want: "above\n\nbelow",
		},
		{
			name: "strikethrough",
			in:   "This is ~~wrong~~ corrected.",
			want: "This is wrong corrected.",
		},
		{
			name: "collapses excess whitespace",
			in:   "word   spaced\n\n\n\nparagraph",
			want: "word spaced\n\nparagraph",
		},
		{
			name: "plain text untouched",
			in:   "Nothing special here.",
			want: "Nothing special here.",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdown(tt.in))
		})
	}
}

func TestResolveVoice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sarah", "alloy"},
		{"emma", "echo"},
		{"olivia", "nova"},
		{"james", "onyx"},
		{"liam", "onyx"},
		{"noah", "onyx"},
		{"Sarah", "alloy"},
		{"  EMMA ", "echo"},
		{"nova", "nova"},
		{"shimmer", "shimmer"},
		{"", DefaultVoice},
		{"unknown-voice", DefaultVoice},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveVoice(tt.in), "input %q", tt.in)
	}
}

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, 1.0, ClampSpeed(0))
	assert.Equal(t, MinSpeed, ClampSpeed(0.1))
	assert.Equal(t, MaxSpeed, ClampSpeed(3.5))
	assert.Equal(t, 1.25, ClampSpeed(1.25))
}
