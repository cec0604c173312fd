// Package template renders the string fields of step scripts with
// text/template, so scripts can refer to their vars, the environment and
// secrets.
package template

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
	"text/template/parse"

	"github.com/gxo-labs/seltrace/internal/secrets"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
)

// Renderer renders step fields.
type Renderer interface {
	Render(templateString string, data interface{}) (string, error)
	ExtractVariables(templateString string) ([]string, error)
}

// GoRenderer implements Renderer with text/template. Parsed templates are
// cached per template string. It is safe for concurrent use.
type GoRenderer struct {
	funcs   template.FuncMap
	mu      sync.Mutex
	parsed  map[string]*template.Template
	varsSet map[string][]string
}

var _ Renderer = (*GoRenderer)(nil)

// NewGoRenderer creates a renderer whose secret function resolves through
// lookup and adds resolved values to tracker. Both may be nil.
func NewGoRenderer(lookup Lookup, tracker *secrets.SecretTracker) *GoRenderer {
	return &GoRenderer{
		funcs:   FuncMap(lookup, tracker),
		parsed:  make(map[string]*template.Template),
		varsSet: make(map[string][]string),
	}
}

// Render executes templateString against data. Strings without actions
// are returned unchanged. Missing keys are errors.
func (r *GoRenderer) Render(templateString string, data interface{}) (string, error) {
	if !strings.Contains(templateString, "{{") {
		return templateString, nil
	}
	t, err := r.parse(templateString)
	if err != nil {
		return "", seltraceerrors.NewValidationError(fmt.Sprintf("template parse error: %s", err.Error()), err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", seltraceerrors.NewValidationError(fmt.Sprintf("template execution error: %s", err.Error()), err)
	}
	return buf.String(), nil
}

// ExtractVariables returns the field paths templateString refers to, such
// as "vars.user", sorted. Unparsable templates yield nil; Render reports
// them.
func (r *GoRenderer) ExtractVariables(templateString string) ([]string, error) {
	if !strings.Contains(templateString, "{{") {
		return nil, nil
	}
	r.mu.Lock()
	if cached, ok := r.varsSet[templateString]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	t, err := r.parse(templateString)
	if err != nil {
		return nil, nil
	}
	found := make(map[string]struct{})
	collect(t.Root, found, r.funcs)
	out := make([]string, 0, len(found))
	for v := range found {
		out = append(out, v)
	}
	sort.Strings(out)

	r.mu.Lock()
	r.varsSet[templateString] = out
	r.mu.Unlock()
	return out, nil
}

func (r *GoRenderer) parse(templateString string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.parsed[templateString]; ok {
		return t, nil
	}
	t, err := template.New("step").Option("missingkey=error").Funcs(r.funcs).Parse(templateString)
	if err != nil {
		return nil, err
	}
	r.parsed[templateString] = t
	return t, nil
}

func fieldPath(node parse.Node, funcs template.FuncMap) string {
	switch n := node.(type) {
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			if _, isFunc := funcs[n.Ident[0]]; !isFunc {
				return strings.Join(n.Ident, ".")
			}
		}
	case *parse.ChainNode:
		if field, ok := n.Node.(*parse.FieldNode); ok {
			return fieldPath(field, funcs)
		}
	}
	return ""
}

func collect(node parse.Node, found map[string]struct{}, funcs template.FuncMap) {
	if node == nil {
		return
	}
	if p := fieldPath(node, funcs); p != "" {
		found[p] = struct{}{}
	}
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, sub := range n.Nodes {
			collect(sub, found, funcs)
		}
	case *parse.ActionNode:
		collect(n.Pipe, found, funcs)
	case *parse.IfNode:
		collect(n.Pipe, found, funcs)
		collect(n.List, found, funcs)
		collect(n.ElseList, found, funcs)
	case *parse.RangeNode:
		collect(n.Pipe, found, funcs)
		collect(n.List, found, funcs)
		collect(n.ElseList, found, funcs)
	case *parse.WithNode:
		collect(n.Pipe, found, funcs)
		collect(n.List, found, funcs)
		collect(n.ElseList, found, funcs)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				collect(arg, found, funcs)
			}
		}
	}
}

// Lookup resolves a named value, reporting whether it exists.
type Lookup func(key string) (string, bool)
