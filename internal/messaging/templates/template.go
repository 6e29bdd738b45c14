// Package templates defines outbound message templates with a declared set of
// placeholders. A template body may only reference declared names.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"
)

var (
	// ErrUnknownPlaceholder is returned when a body or a value set names a
	// placeholder the template does not declare.
	ErrUnknownPlaceholder = errors.New("templates: unknown placeholder")
	// ErrMissingValue is returned when a declared placeholder has no value.
	ErrMissingValue = errors.New("templates: missing placeholder value")
)

// Values maps placeholder names to their substitutions.
type Values map[string]string

// Template is a named message with positional gateway parameters and a
// plain-text body for channels without template support.
type Template struct {
	name         string
	placeholders []string
	body         *template.Template
}

// New compiles body with strict missing-key semantics. Every {{.name}} in the
// body must be one of placeholders.
func New(name, body string, placeholders ...string) (*Template, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("templates: name required")
	}
	if body == "" {
		return nil, fmt.Errorf("templates: template text required")
	}
	declared := make(map[string]struct{}, len(placeholders))
	for _, p := range placeholders {
		if _, dup := declared[p]; dup {
			return nil, fmt.Errorf("templates: %s: duplicate placeholder %q", name, p)
		}
		declared[p] = struct{}{}
	}
	t, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("templates: parse: %w", err)
	}
	for _, field := range referencedFields(t.Tree.Root) {
		if _, ok := declared[field]; !ok {
			return nil, fmt.Errorf("%w: %s references %q", ErrUnknownPlaceholder, name, field)
		}
	}
	return &Template{name: name, placeholders: append([]string(nil), placeholders...), body: t}, nil
}

// MustNew is New for package-level template definitions.
func MustNew(name, body string, placeholders ...string) *Template {
	t, err := New(name, body, placeholders...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name is the gateway template name.
func (t *Template) Name() string {
	return t.name
}

// Placeholders returns the declared names in parameter order.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

// Params returns values in declared order for the gateway.
func (t *Template) Params(values Values) ([]string, error) {
	if err := t.check(values); err != nil {
		return nil, err
	}
	out := make([]string, len(t.placeholders))
	for i, p := range t.placeholders {
		out[i] = values[p]
	}
	return out, nil
}

// Render substitutes values into the plain-text body.
func (t *Template) Render(values Values) (string, error) {
	if err := t.check(values); err != nil {
		return "", err
	}
	data := make(map[string]string, len(values))
	for k, v := range values {
		data[k] = v
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return buf.String(), nil
}

func (t *Template) check(values Values) error {
	for key := range values {
		if !t.declares(key) {
			return fmt.Errorf("%w: %s has no %q", ErrUnknownPlaceholder, t.name, key)
		}
	}
	for _, p := range t.placeholders {
		if strings.TrimSpace(values[p]) == "" {
			return fmt.Errorf("%w: %s.%s", ErrMissingValue, t.name, p)
		}
	}
	return nil
}

func (t *Template) declares(key string) bool {
	for _, p := range t.placeholders {
		if p == key {
			return true
		}
	}
	return false
}

// referencedFields lists the top-level field names used anywhere in a tree.
func referencedFields(node parse.Node) []string {
	var out []string
	var walk func(parse.Node)
	walk = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, child := range n.Nodes {
				walk(child)
			}
		case *parse.ActionNode:
			walk(n.Pipe)
		case *parse.PipeNode:
			if n == nil {
				return
			}
			for _, cmd := range n.Cmds {
				walk(cmd)
			}
		case *parse.CommandNode:
			for _, arg := range n.Args {
				walk(arg)
			}
		case *parse.FieldNode:
			if len(n.Ident) > 0 {
				out = append(out, n.Ident[0])
			}
		case *parse.IfNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.RangeNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.WithNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		}
	}
	walk(node)
	return out
}
