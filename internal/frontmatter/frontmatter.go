// Package frontmatter separates a leading YAML block from Markdown content.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

var (
	// ErrMissingClosingDelimiter indicates the document opened a frontmatter
	// block but never closed it.
	ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

	// ErrNotMapping indicates the frontmatter block is valid YAML but not a mapping.
	ErrNotMapping = errors.New("yaml frontmatter is not a mapping")
)

// Document is a source file split into metadata and Markdown body.
type Document struct {
	Fields map[string]any
	// Raw is the frontmatter block without delimiters.
	Raw  []byte
	Body []byte
	// Had is false when the whole input was treated as body.
	Had bool
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
//
// If the document does not start with a delimiter line, had is false and
// body is the full input. The closing delimiter may be the last line of the
// input without a trailing newline.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte(delimiter + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, nil
	}
	if bytes.Equal(rest, []byte(delimiter)) {
		return []byte{}, []byte{}, true, nil
	}

	closeSeq := []byte(nl + delimiter + nl)
	if idx := bytes.Index(rest, closeSeq); idx >= 0 {
		return rest[:idx+len(nl)], rest[idx+len(closeSeq):], true, nil
	}

	closeAtEOF := []byte(nl + delimiter)
	if bytes.HasSuffix(rest, closeAtEOF) {
		end := len(rest) - len(delimiter)
		return rest[:end], []byte{}, true, nil
	}

	return nil, nil, false, ErrMissingClosingDelimiter
}

// ParseYAML parses raw YAML frontmatter (without delimiters) into a map.
func ParseYAML(fm []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(fm)) == 0 {
		return map[string]any{}, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(fm, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return map[string]any{}, nil
	}
	if node.Content[0].Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	fields := map[string]any{}
	if err := node.Content[0].Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Parse splits content and decodes its frontmatter.
func Parse(content []byte) (Document, error) {
	raw, body, had, err := Split(content)
	if err != nil {
		return Document{}, err
	}
	if !had {
		return Document{Fields: map[string]any{}, Body: body}, nil
	}
	fields, err := ParseYAML(raw)
	if err != nil {
		return Document{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	return Document{Fields: fields, Raw: raw, Body: body, Had: true}, nil
}

// ParseLenient behaves like Parse but never fails: an unterminated block,
// invalid YAML or a non-mapping value yields the entire input as body with
// no fields. The returned error reports what was ignored, if anything.
func ParseLenient(content []byte) (Document, error) {
	doc, err := Parse(content)
	if err != nil {
		return Document{Fields: map[string]any{}, Body: content}, err
	}
	return doc, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
