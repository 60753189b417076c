// Package nickname validates game character nicknames.
package nickname

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Length bounds, counted in characters.
const (
	MinLength = 2
	MaxLength = 6
)

// Error codes exposed to API clients.
const (
	CodeEmpty          = "NICKNAME_EMPTY"
	CodeLengthInvalid  = "NICKNAME_LENGTH_INVALID"
	CodePatternInvalid = "NICKNAME_PATTERN_INVALID"
	CodeDuplicate      = "NICKNAME_DUPLICATE"
)

// Sentinel kinds for nickname errors.
var (
	ErrEmpty     = errors.New("nickname is empty")
	ErrLength    = errors.New("nickname must be 2 to 6 characters")
	ErrPattern   = errors.New("nickname may only contain letters, digits and Hangul syllables")
	ErrDuplicate = errors.New("nickname is already taken")
)

// Latin letters, digits and precomposed Hangul syllables.
var pattern = regexp.MustCompile(`^[a-zA-Z0-9가-힣]*$`)

// Validate checks the format of nickname. Uniqueness is the store's concern
// and is reported with ErrDuplicate by callers.
func Validate(nickname string) error {
	if strings.TrimSpace(nickname) == "" {
		return ErrEmpty
	}
	if n := utf8.RuneCountInString(nickname); n < MinLength || n > MaxLength {
		return ErrLength
	}
	if !pattern.MatchString(nickname) {
		return ErrPattern
	}
	return nil
}

// Normalize returns name in Unicode NFC. Clients that send Hangul as
// conjoining jamo get the precomposed syllables the pattern accepts, and equal
// names compare equal in the store.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// Code maps a nickname error to its API code. It returns "" for errors that
// are not nickname errors.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmpty):
		return CodeEmpty
	case errors.Is(err, ErrLength):
		return CodeLengthInvalid
	case errors.Is(err, ErrPattern):
		return CodePatternInvalid
	case errors.Is(err, ErrDuplicate):
		return CodeDuplicate
	default:
		return ""
	}
}

// IsNicknameError reports whether err is one of this package's kinds.
func IsNicknameError(err error) bool {
	return Code(err) != ""
}
