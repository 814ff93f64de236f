package domain

import (
	"encoding/json"
	"fmt"
)

// PathRulesConfig controls how raw API paths are transformed into CLI
// command paths. The zero value enables automatic prefix detection and
// nothing else.
//
// Rule precedence, highest first: IncludePrefix filter, Collapse,
// prefix strip (explicit StripPrefix wins over auto detection), Keep
// re-insertion, SkipSegments removal.
type PathRulesConfig struct {
	// AutoStripPrefix strips the longest common segment prefix across all
	// paths when no explicit StripPrefix is set.
	AutoStripPrefix bool `json:"auto_strip_prefix" yaml:"auto_strip_prefix"`

	// Keep lists segment names to re-insert after prefix stripping, in
	// their original relative order within the stripped prefix.
	Keep []string `json:"keep,omitempty" yaml:"keep,omitempty"`

	// StripPrefix is an explicit segment prefix to strip. Nil means unset;
	// an explicit value (even "") disables auto detection.
	StripPrefix *string `json:"strip_prefix,omitempty" yaml:"strip_prefix,omitempty"`

	// SkipSegments lists segment names removed wherever they occur.
	SkipSegments []string `json:"skip_segments,omitempty" yaml:"skip_segments,omitempty"`

	// Collapse maps exact raw paths to replacement command paths. Entries
	// bypass every other rule.
	Collapse map[string]string `json:"collapse,omitempty" yaml:"collapse,omitempty"`

	// IncludePrefix, when non-empty, discards any path that does not start
	// with one of the listed prefixes before any other rule runs. Accepts
	// either a single string or a list in YAML/JSON.
	IncludePrefix StringList `json:"include_prefix,omitempty" yaml:"include_prefix,omitempty"`
}

// DefaultPathRules returns the rules used when a profile does not declare
// any: automatic prefix stripping only.
func DefaultPathRules() PathRulesConfig {
	return PathRulesConfig{AutoStripPrefix: true}
}

// StringList is a []string that also accepts a bare scalar when decoded
// from YAML or JSON, so `include_prefix: /api` and
// `include_prefix: [/api, /auth]` both work.
type StringList []string

func (s *StringList) UnmarshalYAML(unmarshal func(any) error) error {
	var one string
	if err := unmarshal(&one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = StringList(many)
	return nil
}

func (s *StringList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = StringList(many)
	return nil
}
