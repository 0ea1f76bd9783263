package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"comfyd/internal/params"
)

// Binding addresses one input of one node. Input may be a dotted path into
// nested input objects, e.g. "select_styles.__value__". A binding with an
// empty Node is disabled.
type Binding struct {
	Node  string `json:"node" yaml:"node" toml:"node"`
	Input string `json:"input" yaml:"input" toml:"input"`
}

// Bindings maps each generation parameter to the template input it fills.
type Bindings struct {
	Prompt    Binding `json:"prompt" yaml:"prompt" toml:"prompt"`
	Negative  Binding `json:"negative" yaml:"negative" toml:"negative"`
	Seed      Binding `json:"seed" yaml:"seed" toml:"seed"`
	Steps     Binding `json:"steps" yaml:"steps" toml:"steps"`
	CFG       Binding `json:"cfg" yaml:"cfg" toml:"cfg"`
	Sampler   Binding `json:"sampler" yaml:"sampler" toml:"sampler"`
	Scheduler Binding `json:"scheduler" yaml:"scheduler" toml:"scheduler"`
	Width     Binding `json:"width" yaml:"width" toml:"width"`
	Height    Binding `json:"height" yaml:"height" toml:"height"`
	Shift     Binding `json:"shift" yaml:"shift" toml:"shift"`
	Styles    Binding `json:"styles" yaml:"styles" toml:"styles"`
}

// DefaultBindings matches the node layout of the stock workflow.
func DefaultBindings() Bindings {
	return Bindings{
		Prompt:    Binding{Node: "48", Input: "text"},
		Negative:  Binding{Node: "50", Input: "text"},
		Seed:      Binding{Node: "3", Input: "seed"},
		Steps:     Binding{Node: "3", Input: "steps"},
		CFG:       Binding{Node: "3", Input: "cfg"},
		Sampler:   Binding{Node: "3", Input: "sampler_name"},
		Scheduler: Binding{Node: "3", Input: "scheduler"},
		Width:     Binding{Node: "13", Input: "width"},
		Height:    Binding{Node: "13", Input: "height"},
		Shift:     Binding{Node: "11", Input: "shift"},
		Styles:    Binding{Node: "45", Input: "select_styles.__value__"},
	}
}

// Template is a job graph with placeholders filled per job. It is safe for
// concurrent use; Materialize works on a fresh copy.
type Template struct {
	raw   []byte
	nodes int
}

// ParseTemplate checks that b is a JSON object of nodes.
func ParseTemplate(b []byte) (*Template, error) {
	var g map[string]json.RawMessage
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if len(g) == 0 {
		return nil, errors.New("parse workflow: no nodes")
	}
	return &Template{raw: append([]byte(nil), b...), nodes: len(g)}, nil
}

// LoadTemplate reads and parses a template file.
func LoadTemplate(path string) (*Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTemplate(b)
}

// Nodes returns the number of nodes in the template.
func (t *Template) Nodes() int { return t.nodes }

// Materialize substitutes p into a copy of the template using seed as the
// resolved seed. Fields whose node or input path is missing are left alone
// and reported in skipped.
func (t *Template) Materialize(p params.Parameters, seed uint64, b Bindings) (Graph, []string) {
	var g Graph
	// raw was validated by ParseTemplate.
	_ = json.Unmarshal(t.raw, &g)

	var skipped []string
	set := func(name string, bd Binding, v any) {
		if bd.Node == "" {
			return
		}
		if !setInput(g, bd, v) {
			skipped = append(skipped, name)
		}
	}
	styles := p.Styles
	if styles == nil {
		styles = []string{}
	}
	set("prompt", b.Prompt, p.Prompt)
	set("negative", b.Negative, p.NegativePrompt)
	set("seed", b.Seed, seed)
	set("steps", b.Steps, p.Steps)
	set("cfg", b.CFG, p.CFG)
	set("sampler", b.Sampler, p.Sampler)
	set("scheduler", b.Scheduler, p.Scheduler)
	set("width", b.Width, p.Width)
	set("height", b.Height, p.Height)
	set("shift", b.Shift, p.Shift)
	set("styles", b.Styles, styles)
	return g, skipped
}

// setInput writes v at node.inputs.<path>. Intermediate objects must exist;
// the final key is created if absent.
func setInput(g Graph, bd Binding, v any) bool {
	node, ok := g[bd.Node].(map[string]any)
	if !ok {
		return false
	}
	cur, ok := node["inputs"].(map[string]any)
	if !ok {
		return false
	}
	path := strings.Split(bd.Input, ".")
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	last := path[len(path)-1]
	if last == "" {
		return false
	}
	cur[last] = v
	return true
}
