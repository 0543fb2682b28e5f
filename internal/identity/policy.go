package identity

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const (
	DefaultMinLength     = 8
	DefaultMaxSimilarity = 0.7
)

//go:embed common_passwords.txt
var commonPasswordsList string

var attributeSplit = regexp.MustCompile(`\W+`)

// UserAttributes are the account values a password must not resemble.
// Keys are human-readable attribute names used in messages.
type UserAttributes map[string]string

// PasswordValidator checks one strength rule and returns a message when the
// password fails it, or "" when it passes.
type PasswordValidator interface {
	Validate(password string, attrs UserAttributes) string
}

// Policy runs every validator and collects all failure messages.
type Policy struct {
	validators []PasswordValidator
}

// NewPolicy builds a policy from the given validators, run in order.
func NewPolicy(validators ...PasswordValidator) *Policy {
	return &Policy{validators: validators}
}

// DefaultPolicy is length, similarity, common-password and numeric checks.
// A non-positive minLength uses DefaultMinLength.
func DefaultPolicy(minLength int) *Policy {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return NewPolicy(
		MinimumLength{Min: minLength},
		MaximumLength{Max: MaxPasswordBytes},
		UserAttributeSimilarity{MaxSimilarity: DefaultMaxSimilarity},
		NewCommonPasswords(),
		NumericPassword{},
	)
}

// Validate returns nil when the password passes every rule.
func (p *Policy) Validate(password string, attrs UserAttributes) []string {
	var problems []string
	for _, v := range p.validators {
		if msg := v.Validate(password, attrs); msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}

type MinimumLength struct {
	Min int
}

func (m MinimumLength) Validate(password string, _ UserAttributes) string {
	if len([]rune(password)) < m.Min {
		return fmt.Sprintf("This password is too short. It must contain at least %d characters.", m.Min)
	}
	return ""
}

// MaximumLength counts bytes, not characters: that is the unit the hasher
// limits.
type MaximumLength struct {
	Max int
}

func (m MaximumLength) Validate(password string, _ UserAttributes) string {
	if len(password) > m.Max {
		return m.Message()
	}
	return ""
}

func (m MaximumLength) Message() string {
	return fmt.Sprintf("This password is too long. It must contain at most %d bytes.", m.Max)
}

type NumericPassword struct{}

func (NumericPassword) Validate(password string, _ UserAttributes) string {
	if password == "" {
		return ""
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return ""
		}
	}
	return "This password is entirely numeric."
}

// CommonPasswords rejects passwords found in an embedded list of leaked
// passwords. Comparison is case-insensitive.
type CommonPasswords struct {
	passwords map[string]struct{}
}

func NewCommonPasswords() *CommonPasswords {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(commonPasswordsList))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	return &CommonPasswords{passwords: set}
}

func (c *CommonPasswords) Validate(password string, _ UserAttributes) string {
	if _, ok := c.passwords[strings.ToLower(strings.TrimSpace(password))]; ok {
		return "This password is too common."
	}
	return ""
}

// UserAttributeSimilarity rejects a password whose character overlap with a
// user attribute (or any word of it) reaches MaxSimilarity.
type UserAttributeSimilarity struct {
	MaxSimilarity float64
}

func (u UserAttributeSimilarity) Validate(password string, attrs UserAttributes) string {
	if password == "" {
		return ""
	}
	fold := cases.Fold()
	pw := fold.String(password)

	// map iteration order is random; sort names so the first hit is stable
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		value := attrs[name]
		if value == "" {
			continue
		}
		value = fold.String(value)
		parts := append(attributeSplit.Split(value, -1), value)
		for _, part := range parts {
			if part == "" {
				continue
			}
			if quickRatio(pw, part) >= u.MaxSimilarity {
				return fmt.Sprintf("The password is too similar to the %s.", name)
			}
		}
	}
	return ""
}

// quickRatio is twice the size of the character multiset intersection over
// the combined length. The similarity rule is defined on this ratio, so a
// scramble of an attribute counts as similar.
func quickRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int, len(rb))
	for _, r := range rb {
		avail[r]++
	}
	matches := 0
	for _, r := range ra {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}
