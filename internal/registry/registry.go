// Package registry discovers workflow templates: a built-in default plus any
// *.json job graphs found in a workflows directory.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"comfyd/internal/backend"
	"comfyd/internal/common/fsutil"
	"comfyd/pkg/types"
)

// DefaultID names the built-in workflow.
const DefaultID = "default"

//go:embed workflows/default.json
var builtinWorkflow []byte

// Registry maps workflow ids to parsed templates. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	workflows map[string]types.Workflow
	templates map[string]*backend.Template
}

// Builtin returns a registry holding only the built-in workflow.
func Builtin() *Registry {
	r := &Registry{
		workflows: make(map[string]types.Workflow),
		templates: make(map[string]*backend.Template),
	}
	tpl, err := backend.ParseTemplate(builtinWorkflow)
	if err != nil {
		panic("registry: built-in workflow: " + err.Error())
	}
	r.add(types.Workflow{ID: DefaultID, Name: DefaultID, Nodes: tpl.Nodes()}, tpl)
	return r
}

// LoadDir scans a directory for *.json templates on top of the built-in one.
// ID is the filename without extension; a file named default.json replaces
// the built-in workflow. An empty dir yields Builtin. A file that is not a JSON
// object of nodes fails the whole load.
func LoadDir(dir string) (*Registry, error) {
	r := Builtin()
	if strings.TrimSpace(dir) == "" {
		return r, nil
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, ".json") {
			continue
		}
		p := filepath.Join(abs, name)
		tpl, err := backend.LoadTemplate(p)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", name, err)
		}
		id := strings.TrimSuffix(name, ext)
		r.add(types.Workflow{ID: id, Name: id, Path: p, Nodes: tpl.Nodes()}, tpl)
	}
	return r, nil
}

func (r *Registry) add(w types.Workflow, tpl *backend.Template) {
	r.workflows[w.ID] = w
	r.templates[w.ID] = tpl
}

// Template returns the parsed template for id.
func (r *Registry) Template(id string) (*backend.Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// Workflows lists the registered workflows ordered by id.
func (r *Registry) Workflows() []types.Workflow {
	out := make([]types.Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.templates[id]
	return ok
}
