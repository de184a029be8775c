package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is a house-style pack loaded from --rules. It adds guidance to every
// review request without changing the persona.
type Rules struct {
	Focus    []string        `json:"focus,omitempty" yaml:"focus,omitempty"`
	Avoid    []string        `json:"avoid,omitempty" yaml:"avoid,omitempty"`
	Required []RequiredCheck `json:"required,omitempty" yaml:"required,omitempty"`
}

// RequiredCheck is a guideline the reviewer must always evaluate.
type RequiredCheck struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// LoadRules loads a rules file from disk. YAML is used for .yaml and .yml
// files, JSON otherwise. Returns nil Rules and nil error if path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rules)
	default:
		err = json.Unmarshal(data, &rules)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	for i, r := range rules.Required {
		if strings.TrimSpace(r.Text) == "" {
			return nil, fmt.Errorf("parsing rules file: required check %d has no text", i+1)
		}
	}
	return &rules, nil
}

// Section returns the extra request instructions derived from rules.
func (r *Rules) Section() string {
	if r == nil {
		return ""
	}

	var b strings.Builder
	if len(r.Focus) > 0 {
		fmt.Fprintf(&b, "\nFocus areas: %s. Weigh your feedback toward these.\n", strings.Join(r.Focus, ", "))
	}
	if len(r.Avoid) > 0 {
		b.WriteString("\nFlag any of these patterns if present:\n")
		for _, a := range r.Avoid {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if len(r.Required) > 0 {
		b.WriteString("\nRequired checks (always evaluate these):\n")
		for _, req := range r.Required {
			if req.ID != "" {
				fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
			} else {
				fmt.Fprintf(&b, "- %s\n", req.Text)
			}
		}
	}
	return b.String()
}
