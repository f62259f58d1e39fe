package security

import (
	"errors"
	"strings"
)

var ErrInvalidTarget = errors.New("invalid target")

// NormalizeTarget validates a source group identifier (@username or
// t.me/username form) and returns the canonical @username. Telegram public
// usernames are 5-32 characters of [A-Za-z0-9_].
func NormalizeTarget(target string) (string, error) {
	t := strings.TrimSpace(target)
	t = strings.TrimPrefix(t, "https://")
	t = strings.TrimPrefix(t, "t.me/")
	t = strings.TrimPrefix(t, "@")

	if len(t) < 5 || len(t) > 32 {
		return "", ErrInvalidTarget
	}
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return "", ErrInvalidTarget
		}
	}

	return "@" + t, nil
}
