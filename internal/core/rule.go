package core

import (
	"fmt"
	"strings"
)

// RuleKind selects one of the fixed predicate families.
type RuleKind int

const (
	// AddressPrefix removes rows whose field starts with a configured prefix.
	AddressPrefix RuleKind = iota
	// EmailSuffix removes rows whose field ends with a configured suffix.
	EmailSuffix
)

func (k RuleKind) String() string {
	switch k {
	case AddressPrefix:
		return "address"
	case EmailSuffix:
		return "email"
	default:
		return fmt.Sprintf("rule(%d)", int(k))
	}
}

// Valid reports whether k is a recognized rule kind.
func (k RuleKind) Valid() bool {
	return k == AddressPrefix || k == EmailSuffix
}

// ParseRuleKind accepts the names used by the CLI and HTTP API.
func ParseRuleKind(s string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "address", "address-prefix", "addressprefix", "po-box", "pobox":
		return AddressPrefix, nil
	case "email", "email-suffix", "emailsuffix":
		return EmailSuffix, nil
	default:
		return -1, fmt.Errorf("unknown filter rule %q", s)
	}
}

// MatchLists holds the configured match terms for both rule kinds.
type MatchLists struct {
	AddressPrefixes []string `yaml:"address_prefixes" json:"addressPrefixes"`
	EmailSuffixes   []string `yaml:"email_suffixes" json:"emailSuffixes"`
}

func (m MatchLists) clone() MatchLists {
	return MatchLists{
		AddressPrefixes: append([]string(nil), m.AddressPrefixes...),
		EmailSuffixes:   append([]string(nil), m.EmailSuffixes...),
	}
}

// matches evaluates the predicate for kind against one field value.
// Both sides are lowercased at comparison time; any single term is enough.
func (m MatchLists) matches(kind RuleKind, field string) bool {
	field = strings.ToLower(field)

	switch kind {
	case AddressPrefix:
		for _, p := range m.AddressPrefixes {
			if strings.HasPrefix(field, strings.ToLower(p)) {
				return true
			}
		}
	case EmailSuffix:
		for _, s := range m.EmailSuffixes {
			if strings.HasSuffix(field, strings.ToLower(s)) {
				return true
			}
		}
	}
	return false
}
