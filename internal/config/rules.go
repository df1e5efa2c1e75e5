package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/filterit/internal/core"
	"gopkg.in/yaml.v3"
)

// Rules is the YAML form of the match lists:
//
//	address_prefixes:
//	  - po box
//	  - p.o. box
//	email_suffixes:
//	  - .edu
//
// A key that is present replaces the configured list, even when empty. A key
// that is absent leaves the configured list alone.
type Rules struct {
	AddressPrefixes *[]string `yaml:"address_prefixes"`
	EmailSuffixes   *[]string `yaml:"email_suffixes"`
}

// LoadRules reads a rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes rules YAML. Unknown keys are rejected so a misspelled
// list name does not silently fall back to the defaults.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return &r, nil
}

// Apply overwrites the lists in f that the rules file sets.
func (r *Rules) Apply(f *FilterConfig) {
	if r.AddressPrefixes != nil {
		f.AddressPrefixes = append([]string{}, *r.AddressPrefixes...)
	}
	if r.EmailSuffixes != nil {
		f.EmailSuffixes = append([]string{}, *r.EmailSuffixes...)
	}
}

// MatchLists returns the session match terms described by f.
func (f FilterConfig) MatchLists() core.MatchLists {
	return core.MatchLists{
		AddressPrefixes: append([]string(nil), f.AddressPrefixes...),
		EmailSuffixes:   append([]string(nil), f.EmailSuffixes...),
	}
}
