package preview

import (
	"fmt"
	"unicode/utf8"
)

// Command is an editor action inserting markdown around the selection.
type Command struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Group string `json:"group"`

	// before and after wrap the selection; placeholder is inserted when
	// nothing is selected and selected afterwards.
	before, after, placeholder string
}

var commands = []Command{
	{ID: "Markdown/Bold", Label: "Bold", Icon: "fa-bold", Group: "Text", before: "**", after: "**", placeholder: "text"},
	{ID: "Markdown/Italic", Label: "Italic", Icon: "fa-italic", Group: "Text", before: "*", after: "*", placeholder: "text"},
	{ID: "Markdown/Link", Label: "Link", Icon: "fa-link", Group: "Text", before: "[", after: "](http://)", placeholder: "text"},
}

// Commands lists the editor commands.
func Commands() []Command {
	return append([]Command(nil), commands...)
}

// Edit is the result of applying a command: the new text and the range to
// select, as rune offsets.
type Edit struct {
	Text           string `json:"text"`
	SelectionStart int    `json:"selection_start"`
	SelectionEnd   int    `json:"selection_end"`
}

// ApplyCommand runs the command id on text with the selection [start, end)
// given in rune offsets.
func ApplyCommand(id, text string, start, end int) (Edit, error) {
	var cmd *Command
	for i := range commands {
		if commands[i].ID == id {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		return Edit{}, fmt.Errorf("unknown editor command %q", id)
	}

	runes := []rune(text)
	if start > end {
		start, end = end, start
	}
	start = clamp(start, 0, len(runes))
	end = clamp(end, 0, len(runes))

	selected := string(runes[start:end])
	inner := selected
	if inner == "" {
		inner = cmd.placeholder
	}
	out := string(runes[:start]) + cmd.before + inner + cmd.after + string(runes[end:])

	innerStart := start + utf8.RuneCountInString(cmd.before)
	e := Edit{Text: out, SelectionStart: innerStart, SelectionEnd: innerStart + utf8.RuneCountInString(inner)}
	if selected != "" {
		// caret after the insertion
		e.SelectionStart = innerStart + utf8.RuneCountInString(inner) + utf8.RuneCountInString(cmd.after)
		e.SelectionEnd = e.SelectionStart
	}
	return e, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
