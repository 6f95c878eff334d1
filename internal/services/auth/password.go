// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"bufio"
	_ "embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"codeberg.org/oliverandrich/go-account-template/internal/services/confirm"
)

// DefaultMinLength applies when the configuration leaves the length unset.
const DefaultMinLength = 8

// similarityThreshold is the share of a password that may be shared with
// an account attribute before it counts as derived from it.
const similarityThreshold = 0.7

//go:embed common_passwords.txt
var commonPasswordList string

var commonPasswords = loadCommonPasswords(commonPasswordList)

func loadCommonPasswords(list string) map[string]struct{} {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		if pw := strings.ToLower(strings.TrimSpace(scanner.Text())); pw != "" {
			set[pw] = struct{}{}
		}
	}
	return set
}

// ValidationError is a single violated password rule.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// PasswordValidationError lists every rule a password violated, in rule order.
type PasswordValidationError struct {
	Errors    []ValidationError
	MinLength int
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return e.Errors[0].Message
}

// Unwrap makes password policy failures match confirm.ErrValidation.
func (e *PasswordValidationError) Unwrap() error {
	return confirm.ErrValidation
}

// Messages returns all error messages
func (e *PasswordValidationError) Messages() []string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Message
	}
	return messages
}

// rule is one password check. attrs are account attributes such as the
// email address and username.
type rule struct {
	code     string
	message  string
	violated func(password string, attrs []string) bool
}

// PasswordPolicy checks new passwords against the configured rules.
type PasswordPolicy struct {
	MinLength int
	rules     []rule
}

// NewPasswordPolicy builds the policy. Length, numeric-only, common
// password and similarity checks always apply; character class
// requirements are opt-in.
func NewPasswordPolicy(cfg *config.PasswordConfig) *PasswordPolicy {
	var c config.PasswordConfig
	if cfg != nil {
		c = *cfg
	}
	if c.MinLength < 1 {
		c.MinLength = DefaultMinLength
	}

	p := &PasswordPolicy{MinLength: c.MinLength}
	p.rules = append(p.rules, rule{
		code:    "min_length",
		message: fmt.Sprintf("Password must be at least %d characters long.", c.MinLength),
		violated: func(pw string, _ []string) bool {
			return utf8.RuneCountInString(pw) < c.MinLength
		},
	})

	classes := []struct {
		enabled bool
		code    string
		message string
		in      func(rune) bool
	}{
		{c.RequireUppercase, "no_uppercase", "Password must contain at least one uppercase letter.", unicode.IsUpper},
		{c.RequireLowercase, "no_lowercase", "Password must contain at least one lowercase letter.", unicode.IsLower},
		{c.RequireDigit, "no_digit", "Password must contain at least one digit.", unicode.IsDigit},
		{c.RequireSpecial, "no_special", "Password must contain at least one special character.", isSpecial},
	}
	for _, cl := range classes {
		if !cl.enabled {
			continue
		}
		in := cl.in
		p.rules = append(p.rules, rule{
			code:    cl.code,
			message: cl.message,
			violated: func(pw string, _ []string) bool {
				return !strings.ContainsFunc(pw, in)
			},
		})
	}

	p.rules = append(p.rules,
		rule{
			code:    "entirely_numeric",
			message: "Password cannot be entirely numeric.",
			violated: func(pw string, _ []string) bool {
				return pw != "" && !strings.ContainsFunc(pw, func(r rune) bool { return !unicode.IsDigit(r) })
			},
		},
		rule{
			code:    "common_password",
			message: "This password is too common. Please choose a more secure password.",
			violated: func(pw string, _ []string) bool {
				_, common := commonPasswords[strings.ToLower(pw)]
				return common
			},
		},
		rule{
			code:     "too_similar",
			message:  "Password is too similar to your personal information.",
			violated: similarToAny,
		},
	)
	return p
}

// Check returns nil if password satisfies every rule, and a
// *PasswordValidationError otherwise.
func (p *PasswordPolicy) Check(password string, attrs ...string) error {
	var violations []ValidationError
	for _, r := range p.rules {
		if r.violated(password, attrs) {
			violations = append(violations, ValidationError{Code: r.code, Message: r.message})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &PasswordValidationError{Errors: violations, MinLength: p.MinLength}
}

func isSpecial(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func similarToAny(password string, attrs []string) bool {
	pw := strings.ToLower(password)
	for _, attr := range attrs {
		a := strings.ToLower(attr)
		if a == "" {
			continue
		}
		if strings.Contains(pw, a) || strings.Contains(a, pw) || similarity(pw, a) > similarityThreshold {
			return true
		}
	}
	return false
}

// similarity is the longest common subsequence of a and b relative to the
// longer of the two, counted in runes.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := range ra {
		for j := range rb {
			if ra[i] == rb[j] {
				cur[j+1] = prev[j] + 1
			} else {
				cur[j+1] = max(prev[j+1], cur[j])
			}
		}
		prev, cur = cur, prev
	}
	return float64(prev[len(rb)]) / float64(max(len(ra), len(rb)))
}
