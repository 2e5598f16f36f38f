package client

import (
	"fmt"
	"strings"

	"github.com/fauna/fauna-go/protocol"
)

// TemplateError reports a malformed query template or a fragment/argument
// arrangement that violates the builder invariant. It is raised at
// construction time, never deferred to rendering.
type TemplateError struct {
	Message string
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	return "invalid query template: " + e.Message
}

// Query is an immutable composition of literal FQL fragments and
// interpolated arguments. Arguments may themselves be queries; rendering
// splices sub-queries in place, so composition carries no injection
// risk: literal text and values never mix.
type Query struct {
	fragments []string
	args      []interface{}
}

// NewQuery builds a query from explicit fragments and arguments. The
// fragments bracket the arguments, so exactly one more fragment than
// argument is required.
func NewQuery(fragments []string, args []interface{}) (*Query, error) {
	if len(fragments) != len(args)+1 {
		return nil, &TemplateError{Message: fmt.Sprintf(
			"%d fragments require %d arguments, got %d",
			len(fragments), len(fragments)-1, len(args))}
	}
	q := &Query{
		fragments: make([]string, len(fragments)),
		args:      make([]interface{}, len(args)),
	}
	copy(q.fragments, fragments)
	copy(q.args, args)
	return q, nil
}

// FQL builds a query from a template with ${name} interpolation holes
// resolved against args. Every hole must have a matching argument; the
// template is otherwise opaque FQL text, passed through unparsed.
func FQL(template string, args map[string]interface{}) (*Query, error) {
	fragments, names, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}
	resolved := make([]interface{}, len(names))
	for i, name := range names {
		val, ok := args[name]
		if !ok {
			return nil, &TemplateError{Message: fmt.Sprintf("no argument for hole %q", name)}
		}
		resolved[i] = val
	}
	return NewQuery(fragments, resolved)
}

// parseTemplate splits a template into literal fragments and the hole
// names between them.
func parseTemplate(template string) ([]string, []string, error) {
	var fragments, names []string
	rest := template
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			fragments = append(fragments, rest)
			return fragments, names, nil
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return nil, nil, &TemplateError{Message: fmt.Sprintf("unterminated hole at %q", rest[start:])}
		}
		name := strings.TrimSpace(rest[start+2 : start+end])
		if name == "" {
			return nil, nil, &TemplateError{Message: "empty hole name"}
		}
		fragments = append(fragments, rest[:start])
		names = append(names, name)
		rest = rest[start+end+1:]
	}
}

// render produces the wire form of the query: an alternation of literal
// strings and {"value": <tagged>} objects. Nested queries splice their
// own parts in, with adjacent literals merged so the alternation
// invariant holds at the top level. Rendering is pure; calling it twice
// yields equal structures.
func (q *Query) render() ([]interface{}, error) {
	var parts []interface{}
	for i, frag := range q.fragments {
		parts = appendLiteral(parts, frag)
		if i >= len(q.args) {
			continue
		}
		switch arg := q.args[i].(type) {
		case *Query:
			sub, err := arg.render()
			if err != nil {
				return nil, err
			}
			for _, p := range sub {
				if s, ok := p.(string); ok {
					parts = appendLiteral(parts, s)
				} else {
					parts = append(parts, p)
				}
			}
		default:
			encoded, err := protocol.Encode(arg)
			if err != nil {
				return nil, err
			}
			parts = append(parts, map[string]interface{}{"value": encoded})
		}
	}
	return parts, nil
}

// appendLiteral adds a literal fragment, merging with a trailing literal
// and dropping empty ones.
func appendLiteral(parts []interface{}, s string) []interface{} {
	if s == "" {
		return parts
	}
	if n := len(parts); n > 0 {
		if prev, ok := parts[n-1].(string); ok {
			parts[n-1] = prev + s
			return parts
		}
	}
	return append(parts, s)
}

// wireQuery returns the request body: the rendered fragment tree under
// the envelope's query key.
func (q *Query) wireQuery() (map[string]interface{}, error) {
	parts, err := q.render()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"query": map[string]interface{}{"fql": parts},
	}, nil
}
