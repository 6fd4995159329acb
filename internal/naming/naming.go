// Package naming validates and normalizes .pepu names.
// Everything here is pure: no storage or network access.
package naming

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"pepu-name-service/internal/domain"
)

// MaxLabelLength is the longest label accepted (DNS label limit).
const MaxLabelLength = 63

// Rejection reasons, in the order they are checked.
var (
	ErrEmpty      = errors.New("name is empty")
	ErrTooLong    = errors.New("name is longer than 63 characters")
	ErrHyphenEdge = errors.New("name cannot start or end with a hyphen")
	ErrCharset    = errors.New("name can only contain letters, numbers and hyphens")
	ErrBanned     = errors.New("name contains a banned word")
)

var labelPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Format normalizes user input into the canonical full name:
// trimmed, lowercased, with the .pepu suffix appended if absent.
// Format is idempotent.
func Format(input string) string {
	name := strings.ToLower(strings.TrimSpace(input))
	if strings.HasSuffix(name, domain.Suffix) {
		return name
	}
	return name + domain.Suffix
}

// Label strips the .pepu suffix from a full name.
func Label(fullName string) string {
	return strings.TrimSuffix(fullName, domain.Suffix)
}

// CheckLabel validates a bare label (no suffix).
func CheckLabel(label string) error {
	n := utf8.RuneCountInString(label)
	if n == 0 {
		return ErrEmpty
	}
	if n > MaxLabelLength {
		return ErrTooLong
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return ErrHyphenEdge
	}
	if !labelPattern.MatchString(label) {
		return ErrCharset
	}
	if HasBannedWord(label) {
		return ErrBanned
	}
	return nil
}

// Check normalizes input and validates the resulting label.
func Check(input string) error {
	return CheckLabel(Label(Format(input)))
}

// HasBannedWord reports whether label contains any denylisted word.
func HasBannedWord(label string) bool {
	lower := strings.ToLower(label)
	for _, w := range bannedWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// Result is the outcome of IsRegistrable.
type Result struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// IsRegistrable checks the format of input. It does not consult storage;
// a name that passes may still be taken.
func IsRegistrable(input string) Result {
	name := Format(input)
	if err := CheckLabel(Label(name)); err != nil {
		return Result{Name: name, Reason: err.Error()}
	}
	return Result{Name: name, OK: true}
}

// NameHash computes the ENS namehash of a dotted name.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}
