package estimator

import (
	"fmt"
	"strings"
)

// Rule decides whether a pixel counts as damage.
type Rule interface {
	Name() string
	Match(r, g, b uint8) bool
}

// ExactMatch counts pixels equal to one colour.
type ExactMatch struct {
	R, G, B uint8
}

// DamageHighlight is the overlay colour the segmentation renders damage with.
var DamageHighlight = ExactMatch{R: 254, G: 201, B: 201}

func (m ExactMatch) Name() string { return "exact" }

func (m ExactMatch) Match(r, g, b uint8) bool {
	return r == m.R && g == m.G && b == m.B
}

// NonBackground counts every pixel that is neither pure black nor pure white.
type NonBackground struct{}

func (NonBackground) Name() string { return "non-background" }

func (NonBackground) Match(r, g, b uint8) bool {
	if r == 0 && g == 0 && b == 0 {
		return false
	}
	if r == 255 && g == 255 && b == 255 {
		return false
	}
	return true
}

// ParseRule resolves a rule name using DamageHighlight for the exact rule.
func ParseRule(name string) (Rule, error) {
	return ParseRuleWithColor(name, DamageHighlight)
}

// ParseRuleWithColor resolves a rule name; an empty name selects the exact rule.
func ParseRuleWithColor(name string, highlight ExactMatch) (Rule, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "exact", "exact-match":
		return highlight, nil
	case "non-background":
		return NonBackground{}, nil
	default:
		return nil, fmt.Errorf("unknown pixel rule %q", name)
	}
}
