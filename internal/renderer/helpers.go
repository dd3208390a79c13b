package renderer

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var placeholderRe = regexp.MustCompile(`%([A-Za-z0-9_.\-]+)%`)

// replacePlaceholders substitutes %name% from the cell attributes first and
// then from the global variables. Unknown names are left as they are.
func replacePlaceholders(label string, attrs, globals map[string]string) string {
	if !strings.Contains(label, "%") {
		return label
	}
	return placeholderRe.ReplaceAllStringFunc(label, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := attrs[name]; ok {
			return v
		}
		if v, ok := globals[name]; ok {
			return v
		}
		return m
	})
}

// htmlLines flattens an HTML label into text lines. Block elements and <br>
// start new lines; markup is dropped and entities are decoded.
func htmlLines(label string) []string {
	var (
		lines []string
		cur   strings.Builder
	)
	flush := func() {
		lines = append(lines, strings.Join(strings.Fields(cur.String()), " "))
		cur.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(label))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if cur.Len() > 0 || len(lines) == 0 {
				flush()
			}
			return trimEmptyEdges(lines)
		case html.TextToken:
			cur.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Br:
				flush()
			case atom.Div, atom.P, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				if cur.Len() > 0 {
					flush()
				}
			}
		}
	}
}

func trimEmptyEdges(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// plainLines splits a plain label on newlines.
func plainLines(label string) []string {
	label = strings.ReplaceAll(label, "\r\n", "\n")
	if label == "" {
		return nil
	}
	return strings.Split(label, "\n")
}

// wrapLines breaks each line at spaces so that no line is wider than
// maxWidth. A single word wider than maxWidth keeps its own line.
func wrapLines(lines []string, maxWidth float64, measure func(string) float64) []string {
	if maxWidth <= 0 {
		return lines
	}
	var out []string
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			if measure(cur+" "+w) <= maxWidth {
				cur += " " + w
				continue
			}
			out = append(out, cur)
			cur = w
		}
		out = append(out, cur)
	}
	return out
}
