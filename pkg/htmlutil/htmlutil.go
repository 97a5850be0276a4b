// Package htmlutil extracts plain text from the server-generated page HTML
// for terminal display and word-count stats.
package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockAtoms are the elements that end a visual line; their close (or, for
// br, the tag itself) becomes a newline in the stripped output.
var blockAtoms = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Li:         true,
	atom.Section:    true,
	atom.Blockquote: true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
}

// StripTags removes markup and returns readable text. Block elements become
// newlines so paragraph structure survives; entities are decoded by the
// tokenizer. Malformed HTML degrades to whatever text can be pulled out.
func StripTags(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(input))

	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return normalize(b.String())
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if a == atom.Br {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockAtoms[a] {
				b.WriteByte('\n')
			}
		}
	}
}

// WordCount counts whitespace-separated words in the rendered text of the
// given HTML.
func WordCount(input string) int {
	return len(strings.Fields(StripTags(input)))
}

// normalize collapses intra-line whitespace and drops empty lines.
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
