// Package principal models the subjects permissions are granted to.
package principal

import (
	"errors"
	"strings"
)

// Kind distinguishes people from groups.
type Kind string

const (
	// KindUser identifies an individual portal user.
	KindUser Kind = "user"
	// KindGroup identifies a portal group.
	KindGroup Kind = "group"
)

// ErrInvalid is returned when an identifier cannot be parsed.
var ErrInvalid = errors.New("principal: invalid identifier")

// Principal is a typed subject key.
type Principal struct {
	Kind Kind
	Key  string
}

// User builds a user principal.
func User(key string) Principal {
	return Principal{Kind: KindUser, Key: key}
}

// Group builds a group principal.
func Group(key string) Principal {
	return Principal{Kind: KindGroup, Key: key}
}

// String renders the principal as "kind:key".
func (p Principal) String() string {
	return string(p.Kind) + ":" + p.Key
}

// IsZero reports whether the principal carries no key.
func (p Principal) IsZero() bool {
	return p.Key == ""
}

// ParseKind maps a textual kind to Kind.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(KindUser), "person":
		return KindUser, true
	case string(KindGroup):
		return KindGroup, true
	default:
		return "", false
	}
}

// Parse reads "kind:key" or a bare key. Bare keys are treated as groups.
func Parse(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrInvalid
	}
	if prefix, key, ok := strings.Cut(raw, ":"); ok {
		if kind, known := ParseKind(prefix); known {
			if strings.TrimSpace(key) == "" {
				return Principal{}, ErrInvalid
			}
			return Principal{Kind: kind, Key: key}, nil
		}
	}
	return Group(raw), nil
}

// Entity is the display view of a principal as the group directory knows it.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"entityType"`
}

// Principal returns the typed principal the entity describes.
func (e Entity) Principal() Principal {
	return Principal{Kind: e.Kind, Key: e.ID}
}
