package params

import (
	"encoding/json"
	"strings"

	"comfyd/pkg/types"
)

// FromRequest applies defaults to the unspecified fields of an API request and
// validates the result.
func FromRequest(req types.GenerateRequest) (Parameters, error) {
	p := Defaults()
	p.Prompt = strings.TrimSpace(req.Prompt)
	if req.NegativePrompt != nil {
		p.NegativePrompt = strings.TrimSpace(*req.NegativePrompt)
	}
	if len(req.Seed) > 0 {
		var s Seed
		if err := json.Unmarshal(req.Seed, &s); err != nil {
			if IsInvalid(err) {
				return Parameters{}, err
			}
			return Parameters{}, invalid("seed", "must be a non-negative integer or \"random\"")
		}
		p.Seed = s
	}
	if req.Steps != 0 {
		p.Steps = req.Steps
	}
	if req.Size != "" {
		w, h, err := ParseExtension(req.Size)
		if err != nil {
			return Parameters{}, err
		}
		p.Width, p.Height = w, h
	}
	if req.Width != 0 {
		p.Width = req.Width
	}
	if req.Height != 0 {
		p.Height = req.Height
	}
	if req.CFG != 0 {
		p.CFG = req.CFG
	}
	if req.Shift != 0 {
		p.Shift = req.Shift
	}
	if req.Sampler != "" {
		p.Sampler = req.Sampler
	}
	if req.Scheduler != "" {
		p.Scheduler = req.Scheduler
	}
	for _, s := range req.Styles {
		p.Styles = append(p.Styles, strings.TrimSpace(s))
	}
	p.Workflow = strings.TrimSpace(req.Workflow)
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// DefaultRequest renders Defaults as an API request, for menus.
func DefaultRequest() types.GenerateRequest {
	d := Defaults()
	neg := d.NegativePrompt
	return types.GenerateRequest{
		NegativePrompt: &neg,
		Seed:           json.RawMessage(`"random"`),
		Steps:          d.Steps,
		Size:           d.Size(),
		Width:          d.Width,
		Height:         d.Height,
		CFG:            d.CFG,
		Shift:          d.Shift,
		Sampler:        d.Sampler,
		Scheduler:      d.Scheduler,
	}
}
