package assertions

import (
	"regexp"
	"strings"
)

// NumericPattern matches a line carrying the numeric reply code as a
// space-delimited token, optionally followed later on the line by contains.
func NumericPattern(code, contains string) *regexp.Regexp {
	pat := `\s` + regexp.QuoteMeta(code) + `\s`
	if contains != "" {
		pat += `.*` + regexp.QuoteMeta(contains)
	}
	return regexp.MustCompile(pat)
}

// CommandPattern matches a line carrying cmd as a word after a space, for
// example ":alice!u@h PRIVMSG #c :hi" for "PRIVMSG".
func CommandPattern(cmd string) *regexp.Regexp {
	return regexp.MustCompile(`\s` + regexp.QuoteMeta(strings.ToUpper(cmd)) + `\b`)
}

// NumericSpec describes an expected numeric reply.
//
// Code is always required. Contains is an anchor that must follow the code
// somewhere on the line. Wording is the exact text that must directly follow
// the code (target, params and trailing text, as a prefix); it is checked
// only in strict mode.
type NumericSpec struct {
	Code     string `yaml:"code"`
	Contains string `yaml:"contains,omitempty"`
	Wording  string `yaml:"wording,omitempty"`
}

// Numeric returns a lenient spec for code.
func Numeric(code string) NumericSpec {
	return NumericSpec{Code: code}
}

// WithContains returns a copy of s with the anchor set.
func (s NumericSpec) WithContains(contains string) NumericSpec {
	s.Contains = contains
	return s
}

// WithWording returns a copy of s with the strict wording set.
func (s NumericSpec) WithWording(wording string) NumericSpec {
	s.Wording = wording
	return s
}

// Pattern compiles the spec. With strict set and a Wording present the
// pattern requires the exact wording; otherwise it is code plus anchor.
func (s NumericSpec) Pattern(strict bool) *regexp.Regexp {
	if strict && s.Wording != "" {
		return regexp.MustCompile(`\s` + regexp.QuoteMeta(s.Code) + `\s` + regexp.QuoteMeta(s.Wording))
	}
	return NumericPattern(s.Code, s.Contains)
}

// String returns the code and anchor for messages.
func (s NumericSpec) String() string {
	if s.Contains != "" {
		return s.Code + " (" + s.Contains + ")"
	}
	return s.Code
}
