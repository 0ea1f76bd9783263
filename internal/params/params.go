// Package params defines the generation parameter set a chat session submits
// and the validation that guards the orchestration layer from bad input.
package params

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Parameters is one fully-specified generation request. It is a value type:
// callers that keep a copy should use Clone so Styles is not shared.
type Parameters struct {
	Prompt         string
	NegativePrompt string
	Seed           Seed
	Steps          int
	Width          int
	Height         int
	CFG            float64
	Shift          float64
	Sampler        string
	Scheduler      string
	Styles         []string
	// Workflow selects a registered template; empty means the configured default.
	Workflow string
}

// Defaults returns the parameter set a fresh session starts with.
func Defaults() Parameters {
	return Parameters{
		NegativePrompt: DefaultNegative,
		Seed:           RandomSeed(),
		Steps:          DefaultSteps,
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		CFG:            DefaultCFG,
		Shift:          DefaultShift,
		Sampler:        DefaultSampler,
		Scheduler:      DefaultScheduler,
	}
}

// Clone returns a deep copy.
func (p Parameters) Clone() Parameters {
	p.Styles = slices.Clone(p.Styles)
	return p
}

// Size renders width and height the way size presets are written.
func (p Parameters) Size() string { return fmt.Sprintf("%dx%d", p.Width, p.Height) }

// Validate checks every field. The first violation is returned as a
// *ValidationError.
func (p Parameters) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return invalid("prompt", "must not be empty")
	}
	if p.Steps <= 0 {
		return invalid("steps", "must be a positive integer")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return invalid("size", "width and height must be positive integers")
	}
	if !positive(p.CFG) {
		return invalid("cfg", "must be greater than 0.0")
	}
	if !positive(p.Shift) {
		return invalid("shift", "must be greater than 0.0")
	}
	if !slices.Contains(Samplers, p.Sampler) {
		return invalid("sampler", fmt.Sprintf("unknown sampler %q", p.Sampler))
	}
	if !slices.Contains(Schedulers, p.Scheduler) {
		return invalid("scheduler", fmt.Sprintf("unknown scheduler %q", p.Scheduler))
	}
	for _, s := range p.Styles {
		if strings.TrimSpace(s) == "" {
			return invalid("styles", "style tags must not be empty")
		}
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
