package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/output"
	"github.com/dshills/promptcoach/internal/persona"
	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/review"
	"github.com/dshills/promptcoach/internal/usage"
)

// maxCompareJobs bounds the fan-out of one compare request.
const maxCompareJobs = 8

type reviewRequest struct {
	persona.Submission
	Persona         string `json:"persona"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	UseAI           *bool  `json:"useAI"`
	FallbackOnError *bool  `json:"fallbackOnError"`
	SkipCache       bool   `json:"skipCache"`
}

type compareRequest struct {
	persona.Submission
	Persona string `json:"persona"`
	// Personas compares these variants with the configured provider. It
	// defaults to all four.
	Personas []string `json:"personas"`
	// Providers compares these "provider:model" specs with one persona and
	// takes precedence over Personas.
	Providers []string `json:"providers"`
}

type personaView struct {
	Variant     persona.Variant `json:"variant"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Difficulty  string          `json:"difficulty"`
	Tone        string          `json:"tone"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"maxTokens"`
	Default     bool            `json:"default"`
}

type modelView struct {
	Model   string            `json:"model"`
	Pricing providers.Pricing `json:"pricing"`
}

type providerView struct {
	Provider     providers.Vendor `json:"provider"`
	DefaultModel string           `json:"defaultModel"`
	Configured   bool             `json:"configured"`
	Active       bool             `json:"active"`
	Models       []modelView      `json:"models"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := "ok"
	deps := fiber.Map{}
	for name, check := range s.checks {
		if err := check(c.UserContext()); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}
	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":       status,
		"version":      s.version,
		"dependencies": deps,
	})
}

func (s *Server) handlePersonas(c *fiber.Ctx) error {
	def, _ := s.Config().PersonaVariant()
	profiles := persona.Profiles()
	out := make([]personaView, len(profiles))
	for i, p := range profiles {
		out[i] = personaView{
			Variant:     p.Variant,
			Name:        p.Name,
			Description: p.Description,
			Difficulty:  p.Difficulty,
			Tone:        p.Tone,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			Default:     p.Variant == def,
		}
	}
	return c.JSON(out)
}

func (s *Server) handleProviders(c *fiber.Ctx) error {
	cfg := s.Config()
	active, _ := providers.ParseVendor(cfg.Provider)
	var out []providerView
	for _, v := range providers.Vendors() {
		pv := providerView{
			Provider:     v,
			DefaultModel: providers.DefaultModel(v),
			Configured:   providers.ValidateCredential(cfg.ProviderConfigFor(v, "")) == nil,
			Active:       v == active,
		}
		for _, m := range providers.Models(v) {
			pv.Models = append(pv.Models, modelView{Model: m, Pricing: providers.PricingFor(v, m)})
		}
		out = append(out, pv)
	}
	return c.JSON(out)
}

func (s *Server) handleReview(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	cfg := s.Config()

	variant, err := variantOrDefault(req.Persona, cfg)
	if err != nil {
		return err
	}
	pc, err := providerConfig(cfg, req.Provider, req.Model)
	if err != nil {
		return err
	}

	opts := review.Options{
		Submission:      req.Submission,
		DisableAI:       cfg.DisableAI,
		FallbackOnError: cfg.FallbackOnError,
		SkipCache:       req.SkipCache,
		UserID:          userID(c),
	}
	if req.UseAI != nil {
		opts.DisableAI = !*req.UseAI
	}
	if req.FallbackOnError != nil {
		opts.FallbackOnError = *req.FallbackOnError
	}

	res, err := s.engine.Review(c.UserContext(), req.Text, variant, pc, opts)
	if err != nil {
		return err
	}

	c.Set("X-Request-ID", res.RequestID)
	c.Set("X-Cache-Hit", "false")
	if res.Cached {
		c.Set("X-Cache-Hit", "true")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return (&output.JSONWriter{}).WriteResult(c, &res)
}

func (s *Server) handleCompare(c *fiber.Ctx) error {
	var req compareRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Providers) > maxCompareJobs || len(req.Personas) > maxCompareJobs {
		return fiber.NewError(fiber.StatusBadRequest, "too many reviewers in one comparison")
	}
	cfg := s.Config()
	opts := review.Options{
		Submission:      req.Submission,
		DisableAI:       cfg.DisableAI,
		FallbackOnError: cfg.FallbackOnError,
		UserID:          userID(c),
	}

	var (
		cmp *review.Comparison
		err error
	)
	if len(req.Providers) > 0 {
		variant, verr := variantOrDefault(req.Persona, cfg)
		if verr != nil {
			return verr
		}
		cfgs := make([]providers.Config, len(req.Providers))
		for i, spec := range req.Providers {
			v, model, perr := review.ParseModelSpec(spec)
			if perr != nil {
				return fiber.NewError(fiber.StatusBadRequest, perr.Error())
			}
			cfgs[i] = cfg.ProviderConfigFor(v, model)
		}
		cmp, err = s.engine.CompareProviders(c.UserContext(), req.Text, variant, cfgs, opts)
	} else {
		variants := persona.Variants()
		if len(req.Personas) > 0 {
			variants = variants[:0:0]
			for _, name := range req.Personas {
				v, perr := persona.Parse(name)
				if perr != nil {
					return perr
				}
				variants = append(variants, v)
			}
		}
		pc, perr := cfg.ProviderConfig()
		if perr != nil {
			return perr
		}
		cmp, err = s.engine.ComparePersonas(c.UserContext(), req.Text, variants, pc, opts)
	}
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return (&output.JSONWriter{}).WriteComparison(c, cmp)
}

func (s *Server) handleUsage(c *fiber.Ctx) error {
	if s.ledger == nil {
		return fiber.NewError(fiber.StatusNotFound, "usage tracking is disabled")
	}
	id := userID(c)
	if q := c.Query("user"); q != "" {
		id = q
	}
	totals, err := s.ledger.Totals(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"usage": totals,
		"quota": s.Config().Quota(),
	})
}

func variantOrDefault(name string, cfg config.Config) (persona.Variant, error) {
	if strings.TrimSpace(name) == "" {
		return cfg.PersonaVariant()
	}
	return persona.Parse(name)
}

func providerConfig(cfg config.Config, provider, model string) (providers.Config, error) {
	if provider == "" {
		provider = cfg.Provider
		if model == "" {
			model = cfg.Model
		}
	}
	v, err := providers.ParseVendor(provider)
	if err != nil {
		return providers.Config{}, err
	}
	return cfg.ProviderConfigFor(v, model), nil
}

func userID(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get(HeaderUserID)); id != "" {
		return id
	}
	return usage.AnonymousUser
}
