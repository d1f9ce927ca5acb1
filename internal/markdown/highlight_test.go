package markdown

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []StyleSpan
	}{
		{
			name: "flat",
			text: "# T\n\n**b** and *i*\n",
			want: []StyleSpan{
				{Start: 0, End: 4, Style: StyleHeading1},
				{Start: 5, End: 10, Style: StyleStrong},
				{Start: 15, End: 18, Style: StyleEmphasis},
			},
		},
		{
			name: "nested",
			text: "# A *b*\n",
			want: []StyleSpan{
				{Start: 0, End: 4, Style: StyleHeading1},
				{Start: 4, End: 7, Style: StyleHeading1 | StyleEmphasis},
				{Start: 7, End: 8, Style: StyleHeading1},
			},
		},
		{
			name: "plain",
			text: "nothing to see\n",
			want: nil,
		},
	}
	p := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Highlight(p.ParseFull(tt.text))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Highlight mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHighlightHeadingLevels(t *testing.T) {
	p := NewParser(nil)
	got := Highlight(p.ParseFull("### three\n"))
	if len(got) != 1 || got[0].Style != StyleHeading3 {
		t.Errorf("Highlight = %+v, want one StyleHeading3 span", got)
	}
}
