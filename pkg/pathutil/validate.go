// Package pathutil provides name and label validation for drover.
package pathutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/drover-project/drover/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// maxLabelLen bounds context labels; they end up in log lines and lock
// listings, not in filenames, so the cap is purely for readability.
const maxLabelLen = 200

// ValidateDirName checks a single path component used under the
// coordination directory (e.g. the locks subdirectory name).
func ValidateDirName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("name must not be empty")
	}

	// NFC normalize
	name = norm.NFC.String(name)

	if name == ".." || strings.Contains(name, "..") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain '..': %s", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain separators: %s", name)
	}
	if !nameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("name must match [a-zA-Z0-9._-]+: %s", name)
	}
	return nil
}

// ValidateLabel checks a free-form context label: printable text, no
// control characters, bounded length. Labels are diagnostic only.
func ValidateLabel(label string) error {
	if label == "" {
		return nil
	}
	label = norm.NFC.String(label)
	if len(label) > maxLabelLen {
		return errclass.ErrNameInvalid.WithMessagef("label exceeds %d bytes", maxLabelLen)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("label must not contain control characters: %q", label)
		}
	}
	return nil
}

// SanitizeHostComponent normalizes a hostname for embedding in a
// session identifier: NFC form, lowercased, anything outside
// [a-z0-9.-] replaced with '-'. Never returns an empty string.
func SanitizeHostComponent(host string) string {
	host = strings.ToLower(norm.NFC.String(host))
	var b strings.Builder
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "unknown-host"
	}
	return b.String()
}
