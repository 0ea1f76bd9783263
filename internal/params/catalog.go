package params

import (
	"strconv"
	"strings"
)

// Defaults for a fresh session.
const (
	DefaultNegative  = "(asian:1.2), simple background, poorly drawn face, doll, wax figure, (words, letters, symbols:1.25), uncanny valley, extra arms, amputation, extra legs, extra fingers, many fingers, bad anatomy, ugly"
	DefaultSteps     = 9
	DefaultWidth     = 1024
	DefaultHeight    = 1024
	DefaultCFG       = 1.0
	DefaultShift     = 3.0
	DefaultSampler   = "euler"
	DefaultScheduler = "simple"
)

// Samplers lists the sampler ids the backend accepts.
var Samplers = []string{
	"euler", "euler_ancestral", "euler_cfg_pp", "euler_ancestral_cfg_pp",
	"heun", "heunpp2", "dpm_2", "dpm_2_ancestral", "lms", "dpm_fast",
	"dpm_adaptive", "dpmpp_2s_ancestral", "dpmpp_2s_ancestral_cfg_pp",
	"dpmpp_sde", "dpmpp_sde_gpu", "dpmpp_2m", "dpmpp_2m_cfg_pp",
	"dpmpp_2m_sde", "dpmpp_2m_sde_gpu", "dpmpp_2m_sde_heun",
	"dpmpp_2m_sde_heun_gpu", "dpmpp_3m_sde", "dpmpp_3m_sde_gpu",
	"ddpm", "lcm", "ipndm", "ipndm_v", "deis", "res_multistep",
	"res_multistep_cfg_pp", "res_multistep_ancestral", "res_multistep_ancestral_cfg_pp",
	"gradient_estimation", "gradient_estimation_cfg_pp", "er_sde", "seeds_2",
	"seeds_3", "sa_solver", "sa_solver_pece", "ddim", "uni_pc", "uni_pc_bh2",
}

// Schedulers lists the scheduler ids the backend accepts.
var Schedulers = []string{
	"simple", "sgm_uniform", "karras", "exponential", "ddim_uniform",
	"beta", "normal", "linear_quadratic", "kl_optimal",
}

// Extensions are the size presets offered in menus.
var Extensions = []string{
	"1024x1024",
	"896x1152",
	"832x1216",
	"768x1344",
	"640x1536",
	"1152x896",
	"1216x832",
	"1344x768",
	"1536x640",
}

// ParseExtension splits a "WxH" size into width and height.
func ParseExtension(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, invalid("size", "must look like WIDTHxHEIGHT")
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, invalid("size", "width and height must be positive integers")
	}
	return width, height, nil
}
