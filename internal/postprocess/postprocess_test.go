package postprocess_test

import (
	"testing"

	"github.com/valpere/scenetran/internal/postprocess"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "clean document",
			in:   `{"lines":[]}`,
			want: `{"lines":[]}`,
		},
		{
			name: "json fence",
			in:   "```json\n{\"lines\":[]}\n```",
			want: `{"lines":[]}`,
		},
		{
			name: "bare fence",
			in:   "```\n[1,2]\n```",
			want: "[1,2]",
		},
		{
			name: "thinking block before document",
			in:   "<think>hmm, tricky line</think>\n{\"lines\":[]}",
			want: `{"lines":[]}`,
		},
		{
			name: "reasoning block",
			in:   "<reasoning>because</reasoning>{\"ok\":true}",
			want: `{"ok":true}`,
		},
		{
			name: "prose around document",
			in:   "Here is the result:\n{\"lines\":[]}\nHope that helps!",
			want: `{"lines":[]}`,
		},
		{
			name: "truncated thinking with no document",
			in:   "<think>I was cut off",
			want: "",
		},
		{
			name: "no json at all",
			in:   "sorry, I cannot do that",
			want: "sorry, I cannot do that",
		},
	}
	for _, c := range cases {
		if got := postprocess.ExtractJSON(c.in); got != c.want {
			t.Errorf("%s: ExtractJSON(%q) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestCleanLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"quoted line"`, "quoted line"},
		{"«guillemets»", "guillemets"},
		{"“curly”", "curly"},
		{"  padded  ", "padded"},
		{`half "quoted`, `half "quoted`},
		{`"`, `"`},
		{"", ""},
	}
	for _, c := range cases {
		if got := postprocess.CleanLine(c.in); got != c.want {
			t.Errorf("CleanLine(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
