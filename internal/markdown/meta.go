package markdown

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	metaKey  = regexp.MustCompile(`^ {0,3}([A-Za-z0-9_-]+):\s*(.*)$`)
	metaMore = regexp.MustCompile(`^ {4,}(.*)$`)
)

// SplitMetaHeaders removes a block of MultiMarkdown "Key: value" headers
// from the top of body. Keys are lower-cased. A key with continuation lines
// (indented four spaces) maps to a []any of its lines; a single line maps to
// a string. The block ends at the first blank or non-header line, which is
// kept in the body. Body without a leading header is returned unchanged.
func SplitMetaHeaders(body []byte) (map[string]any, []byte) {
	headers := make(map[string]any)
	values := make(map[string][]string)
	var order []string
	var current string

	rest := body
	for len(rest) > 0 {
		line, next, _ := bytes.Cut(rest, []byte("\n"))
		text := strings.TrimRight(string(line), "\r")
		if strings.TrimSpace(text) == "" {
			if current != "" {
				rest = next
			}
			break
		}
		if m := metaKey.FindStringSubmatch(text); m != nil {
			current = strings.ToLower(m[1])
			if _, seen := values[current]; !seen {
				order = append(order, current)
			}
			values[current] = append(values[current], strings.TrimSpace(m[2]))
		} else if m := metaMore.FindStringSubmatch(text); m != nil && current != "" {
			values[current] = append(values[current], strings.TrimSpace(m[1]))
		} else {
			break
		}
		rest = next
	}
	if len(order) == 0 {
		return headers, body
	}

	for _, k := range order {
		v := values[k]
		if len(v) == 1 {
			headers[k] = v[0]
			continue
		}
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		headers[k] = list
	}
	return headers, rest
}
