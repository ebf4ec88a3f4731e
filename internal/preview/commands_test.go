package preview

import "testing"

func TestApplyCommand(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		text       string
		start, end int
		want       Edit
	}{
		{
			name: "bold without selection",
			id:   "Markdown/Bold", text: "ab", start: 1, end: 1,
			want: Edit{Text: "a**text**b", SelectionStart: 3, SelectionEnd: 7},
		},
		{
			name: "bold with selection",
			id:   "Markdown/Bold", text: "say hi now", start: 4, end: 6,
			want: Edit{Text: "say **hi** now", SelectionStart: 10, SelectionEnd: 10},
		},
		{
			name: "italic without selection",
			id:   "Markdown/Italic", text: "", start: 0, end: 0,
			want: Edit{Text: "*text*", SelectionStart: 1, SelectionEnd: 5},
		},
		{
			name: "link with selection",
			id:   "Markdown/Link", text: "docs", start: 0, end: 4,
			want: Edit{Text: "[docs](http://)", SelectionStart: 15, SelectionEnd: 15},
		},
		{
			name: "link without selection",
			id:   "Markdown/Link", text: "", start: 0, end: 0,
			want: Edit{Text: "[text](http://)", SelectionStart: 1, SelectionEnd: 5},
		},
		{
			name: "reversed and out of range selection",
			id:   "Markdown/Italic", text: "héllo", start: 99, end: 1,
			want: Edit{Text: "h*éllo*", SelectionStart: 7, SelectionEnd: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyCommand(tt.id, tt.text, tt.start, tt.end)
			if err != nil {
				t.Fatalf("ApplyCommand: %v", err)
			}
			if got != tt.want {
				t.Errorf("ApplyCommand = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApplyUnknownCommand(t *testing.T) {
	if _, err := ApplyCommand("Markdown/Strike", "x", 0, 1); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestCommandsListed(t *testing.T) {
	cmds := Commands()
	if len(cmds) != 3 || cmds[0].ID != "Markdown/Bold" || cmds[2].Label != "Link" {
		t.Errorf("Commands = %+v", cmds)
	}
}
