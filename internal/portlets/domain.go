// Package portlets exposes the portlet registry: definitions the viewer may manage or
// render, and updates to their preferences.
package portlets

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/rbac"
)

var (
	// ErrNotFound reports an unknown portlet fname.
	ErrNotFound = fmt.Errorf("portlets: %w", httpx.ErrNotFound)
	// ErrForbidden reports a portlet the viewer may not see.
	ErrForbidden = fmt.Errorf("portlets: %w", httpx.ErrForbidden)
	// ErrInvalidPreference reports a preference without a name.
	ErrInvalidPreference = fmt.Errorf("portlets: preference name required: %w", httpx.ErrValidation)
)

// Definition is the exported form of a registered portlet.
type Definition struct {
	ID             int64               `json:"id"`
	FName          string              `json:"fname"`
	Name           string              `json:"name"`
	Title          string              `json:"title"`
	Description    string              `json:"description,omitempty"`
	Type           string              `json:"type"`
	LifecycleState rbac.LifecycleState `json:"lifecycleState"`
	Categories     []string            `json:"categories"`
	Parameters     map[string]string   `json:"parameters,omitempty"`
	Preferences    []Preference        `json:"preferences"`
}

// Preference is a named, multi-valued portlet setting.
type Preference struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Values   []string `json:"values" validate:"max=100,dive,max=4000"`
	ReadOnly bool     `json:"readOnly"`
}

// Preference returns the named preference.
func (d Definition) Preference(name string) (Preference, bool) {
	for _, p := range d.Preferences {
		if p.Name == name {
			return p, true
		}
	}
	return Preference{}, false
}

// CategoryName lower-cases a category name and upper-cases its first letter.
func CategoryName(raw string) string {
	s := cases.Lower(language.Und).String(strings.TrimSpace(raw))
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Und).String(s[:size]) + s[size:]
}

func normalizeCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if name := CategoryName(c); name != "" {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
