// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"
)

// DefaultSymbolSet is the set of characters that satisfy RequireSymbol.
const DefaultSymbolSet = "[@_!#$%^&*()<>?|}{~:]"

// Policy rule names reported in the "rule" context of a policy violation.
const (
	RuleTooShort  = "too_short"
	RuleTooLong   = "too_long"
	RuleMixedCase = "mixed_case"
	RuleSymbol    = "symbol"
	RuleDigit     = "digit"
)

// PasswordPolicy holds the complexity rules a new password must satisfy.
// Lengths are counted in runes, inclusive on both ends.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireMixedCase bool
	RequireSymbol    bool
	RequireDigit     bool
	SymbolSet        string
}

// DefaultPasswordPolicy returns 8..32 characters with mixed case, a symbol
// and a digit required.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		MaxLength:        32,
		RequireMixedCase: true,
		RequireSymbol:    true,
		RequireDigit:     true,
		SymbolSet:        DefaultSymbolSet,
	}
}

// Verify reports whether the policy itself is usable.
func (p PasswordPolicy) Verify() error {
	if p.MinLength < 1 {
		return oops.Code("CONFIG_INVALID").
			With("min_length", p.MinLength).
			Errorf("policy min length must be at least 1")
	}
	if p.MaxLength < p.MinLength {
		return oops.Code("CONFIG_INVALID").
			With("min_length", p.MinLength).
			With("max_length", p.MaxLength).
			Errorf("policy max length must not be below min length")
	}
	if p.RequireSymbol && p.SymbolSet == "" {
		return oops.Code("CONFIG_INVALID").Errorf("policy requires a symbol but the symbol set is empty")
	}
	return nil
}

// Validate reports whether candidate passes every enabled rule.
// It is total: any string, including "", yields a result.
func (p PasswordPolicy) Validate(candidate string) bool {
	return p.Check(candidate) == nil
}

// Check returns an AUTH_POLICY_VIOLATION error naming the first rule the
// candidate fails, or nil.
func (p PasswordPolicy) Check(candidate string) error {
	n := utf8.RuneCountInString(candidate)
	if n < p.MinLength {
		return violation(RuleTooShort, "password must be at least %d characters", p.MinLength)
	}
	if n > p.MaxLength {
		return violation(RuleTooLong, "password must be at most %d characters", p.MaxLength)
	}

	var lower, upper, symbol, digit bool
	for _, r := range candidate {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
		if !symbol && strings.ContainsRune(p.SymbolSet, r) {
			symbol = true
		}
	}

	if p.RequireMixedCase && (!lower || !upper) {
		return violation(RuleMixedCase, "password must contain upper and lower case letters")
	}
	if p.RequireSymbol && !symbol {
		return violation(RuleSymbol, "password must contain one of %s", p.SymbolSet)
	}
	if p.RequireDigit && !digit {
		return violation(RuleDigit, "password must contain a digit")
	}
	return nil
}

func violation(rule, format string, args ...any) error {
	return oops.Code(CodePolicyViolation).
		With("rule", rule).
		Errorf(format, args...)
}
