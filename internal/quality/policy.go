// Package quality filters raw note candidates: it canonicalizes text,
// applies the ordered rejection policy, deduplicates rejections into
// per-node statistics, and supplies the guaranteed fallback note when
// every candidate fails.
package quality

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Rejection reason codes recorded in rejected_candidate_stats.
const (
	ReasonLowQuality = "MODEL_OUTPUT_LOW_QUALITY"
	ReasonUnsuitable = "MODEL_NOTE_UNSUITABLE"
	ReasonTooShort   = "NOTE_TOO_SHORT"
)

// Policy is the versioned filter configuration. It is loaded once at
// startup and passed by reference; nothing reads it from ambient state.
type Policy struct {
	// StopPatterns are regexes matching leaked meta tokens and prompt
	// artifacts. Matches reject with MODEL_OUTPUT_LOW_QUALITY.
	StopPatterns []string `yaml:"stop_patterns"`

	// StopSubstrings are case-insensitive substrings of known noisy
	// output. Matches reject with MODEL_NOTE_UNSUITABLE.
	StopSubstrings []string `yaml:"stop_substrings"`

	// MetaAllowlist holds exact template strings that are allowed to
	// open with a sentence-like meta token.
	MetaAllowlist []string `yaml:"meta_allowlist"`

	// MinLength is the minimum accepted candidate length.
	MinLength int `yaml:"min_length"`

	// ShortAllowlist holds short tokens accepted despite MinLength.
	ShortAllowlist []string `yaml:"short_allowlist"`

	// MinUniqueTokenRatio rejects structurally repetitive candidates.
	MinUniqueTokenRatio float64 `yaml:"min_unique_token_ratio"`
}

// Validate checks policy bounds.
func (p Policy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MinLength, validation.Required, validation.Min(1)),
		validation.Field(&p.MinUniqueTokenRatio, validation.Min(0.0), validation.Max(1.0)),
	)
}

// DefaultPolicy returns the policy that ships with the binary.
func DefaultPolicy() Policy {
	return Policy{
		StopPatterns: []string{
			`(?i)\bas an ai\b`,
			`(?i)^\s*(?:note|output|answer|response)\s*:`,
			`\{\{[^}]*\}\}`,
			`(?i)\blanguage model\b`,
		},
		StopSubstrings: []string{
			"i cannot",
			"i'm sorry",
			"here is the",
		},
		MetaAllowlist:       nil,
		MinLength:           5,
		ShortAllowlist:      []string{"aux", "verb", "noun"},
		MinUniqueTokenRatio: 0.4,
	}
}

// LoadPolicy reads a policy YAML file, filling unset fields from the
// default policy.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("quality: read policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("quality: parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("quality: policy validation: %w", err)
	}
	return p, nil
}
