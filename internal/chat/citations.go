package chat

import (
	"sort"
	"strings"
)

// urlSet holds the URLs surfaced to the model during one request
type urlSet map[string]struct{}

func (s urlSet) add(url string) {
	if url = normalizeURL(url); url != "" {
		s[url] = struct{}{}
	}
}

func (s urlSet) has(url string) bool {
	_, ok := s[normalizeURL(url)]
	return ok
}

func normalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// SanitizeCitations reduces markdown links whose URL was never surfaced to their link text.
// Reference definitions pointing at unknown URLs are removed. Everything else is left byte-identical.
func SanitizeCitations(text string, allowed urlSet) string {
	doc := scanMarkdown(text)

	type edit struct {
		start, end int
		repl       string
	}
	var edits []edit
	for _, l := range doc.links {
		if !allowed.has(l.dest) {
			edits = append(edits, edit{l.start, l.end, l.text})
		}
	}
	for _, d := range doc.defs {
		if !allowed.has(d.dest) {
			edits = append(edits, edit{d.start, d.end, ""})
		}
	}
	if len(edits) == 0 {
		return text
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, e := range edits {
		b.WriteString(text[last:e.start])
		b.WriteString(e.repl)
		last = e.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// CitedURLs returns the destination of every inline or reference link in text
func CitedURLs(text string) []string {
	doc := scanMarkdown(text)
	urls := make([]string, 0, len(doc.links))
	for _, l := range doc.links {
		urls = append(urls, l.dest)
	}
	return urls
}

// mdLink is one rendered link: [text](dest), [text][label], [label][] or [label]
type mdLink struct {
	start, end int
	text       string
	dest       string
}

// mdDefinition is a reference definition line, [label]: dest "title".
// The span includes the trailing newline.
type mdDefinition struct {
	start, end int
	label      string
	dest       string
}

type mdDocument struct {
	links []mdLink
	defs  []mdDefinition
}

// scanMarkdown finds link spans outside code spans and fenced blocks
func scanMarkdown(src string) mdDocument {
	var doc mdDocument
	skip := codeRanges(src)

	defs := make(map[string]string)
	for start := 0; start < len(src); {
		end := strings.IndexByte(src[start:], '\n')
		next := len(src)
		line := src[start:]
		if end >= 0 {
			next = start + end + 1
			line = src[start : start+end]
		}
		if !inRanges(skip, start) {
			if label, dest, ok := parseDefinition(line); ok {
				doc.defs = append(doc.defs, mdDefinition{start: start, end: next, label: label, dest: dest})
				if _, seen := defs[label]; !seen {
					defs[label] = dest
				}
			}
		}
		start = next
	}
	for _, d := range doc.defs {
		skip = append(skip, [2]int{d.start, d.end})
	}

	for i := 0; i < len(src); i++ {
		if end := rangeEnd(skip, i); end > i {
			i = end - 1
			continue
		}
		switch src[i] {
		case '\\':
			i++
			continue
		case '[':
		default:
			continue
		}

		start := i
		if i > 0 && src[i-1] == '!' {
			start = i - 1
		}
		closing := closeBracket(src, i)
		if closing < 0 {
			continue
		}
		text := src[i+1 : closing]
		after := closing + 1

		if after < len(src) && src[after] == '(' {
			if dest, end, ok := parseInlineTarget(src, after); ok {
				doc.links = append(doc.links, mdLink{start: start, end: end, text: text, dest: dest})
				i = end - 1
				continue
			}
		}

		label, end := text, after
		if after < len(src) && src[after] == '[' {
			if c := closeBracket(src, after); c >= 0 {
				if l := src[after+1 : c]; strings.TrimSpace(l) != "" {
					label = l
				}
				end = c + 1
			}
		}
		if dest, ok := defs[normalizeLabel(label)]; ok {
			doc.links = append(doc.links, mdLink{start: start, end: end, text: text, dest: dest})
			i = end - 1
		}
	}
	return doc
}

// codeRanges returns the spans between matching backtick runs, which also covers ``` fences
func codeRanges(src string) [][2]int {
	var ranges [][2]int
	for i := 0; i < len(src); {
		if src[i] == '\\' {
			i += 2
			continue
		}
		if src[i] != '`' {
			i++
			continue
		}
		n := backtickRun(src, i)
		closing := -1
		for j := i + n; j < len(src); {
			if src[j] != '`' {
				j++
				continue
			}
			m := backtickRun(src, j)
			if m == n {
				closing = j
				break
			}
			j += m
		}
		if closing < 0 {
			i += n
			continue
		}
		ranges = append(ranges, [2]int{i, closing + n})
		i = closing + n
	}
	return ranges
}

func backtickRun(src string, i int) int {
	n := 0
	for i+n < len(src) && src[i+n] == '`' {
		n++
	}
	return n
}

func inRanges(ranges [][2]int, i int) bool {
	return rangeEnd(ranges, i) > i
}

// rangeEnd returns the end of the range containing i, or -1
func rangeEnd(ranges [][2]int, i int) int {
	for _, r := range ranges {
		if i >= r[0] && i < r[1] {
			return r[1]
		}
	}
	return -1
}

// closeBracket returns the index of the ']' matching the '[' at i, or -1
func closeBracket(src string, i int) int {
	depth := 0
	for j := i; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// parseInlineTarget parses ( dest "title" ) starting at the '(' at i
func parseInlineTarget(src string, i int) (dest string, end int, ok bool) {
	j := skipSpace(src, i+1, true)
	dest, j, ok = parseDestination(src, j)
	if !ok {
		return "", 0, false
	}
	k := skipSpace(src, j, true)
	if k > j && k < len(src) && isTitleOpener(src[k]) {
		if k, ok = parseTitle(src, k); !ok {
			return "", 0, false
		}
		k = skipSpace(src, k, true)
	}
	if k < len(src) && src[k] == ')' {
		return dest, k + 1, true
	}
	return "", 0, false
}

// parseDefinition recognises one reference definition line
func parseDefinition(line string) (label, dest string, ok bool) {
	line = strings.TrimRight(line, " \t\r")
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || !strings.HasPrefix(trimmed, "[") {
		return "", "", false
	}
	closing := strings.IndexByte(trimmed, ']')
	if closing < 2 || closing+1 >= len(trimmed) || trimmed[closing+1] != ':' {
		return "", "", false
	}
	label = normalizeLabel(trimmed[1:closing])
	if label == "" || strings.Contains(label, "[") {
		return "", "", false
	}

	j := skipSpace(trimmed, closing+2, false)
	dest, next, ok := parseDestination(trimmed, j)
	if !ok || next == j {
		return "", "", false
	}
	k := skipSpace(trimmed, next, false)
	if k > next && k < len(trimmed) && isTitleOpener(trimmed[k]) {
		if k, ok = parseTitle(trimmed, k); !ok {
			return "", "", false
		}
	}
	if k != len(trimmed) {
		return "", "", false
	}
	return label, dest, true
}

// parseDestination reads <dest> or a bare destination with balanced parentheses
func parseDestination(src string, i int) (dest string, next int, ok bool) {
	if i < len(src) && src[i] == '<' {
		for j := i + 1; j < len(src); j++ {
			switch src[j] {
			case '\\':
				j++
			case '\n', '<':
				return "", 0, false
			case '>':
				return unescape(src[i+1 : j]), j + 1, true
			}
		}
		return "", 0, false
	}

	depth, j := 0, i
scan:
	for ; j < len(src); j++ {
		switch c := src[j]; {
		case c == '\\' && j+1 < len(src):
			j++
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				break scan
			}
			depth--
		case c <= ' ':
			break scan
		}
	}
	if depth != 0 {
		return "", 0, false
	}
	return unescape(src[i:j]), j, true
}

func isTitleOpener(c byte) bool {
	return c == '"' || c == '\'' || c == '('
}

// parseTitle skips a "title", 'title' or (title) starting at i
func parseTitle(src string, i int) (int, bool) {
	closer := src[i]
	if closer == '(' {
		closer = ')'
	}
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case closer:
			return j + 1, true
		case '(':
			if closer == ')' {
				return 0, false
			}
		}
	}
	return 0, false
}

func skipSpace(src string, i int, newlines bool) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || (newlines && (src[i] == '\n' || src[i] == '\r'))) {
		i++
	}
	return i
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(asciiPunct, s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
