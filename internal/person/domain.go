// Package person reads portal people and their directory attributes.
package person

import (
	"fmt"
	"strings"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
)

// ErrNotFound reports an unknown username.
var ErrNotFound = fmt.Errorf("person: %w", httpx.ErrNotFound)

// AttrStudentID names the attribute carrying the student system id.
const AttrStudentID = "studentId"

// Person is a portal user with multi-valued attributes.
type Person struct {
	Username    string              `json:"username"`
	DisplayName string              `json:"displayName"`
	Email       string              `json:"emailAddress"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
}

// Attribute returns the first value of name, or "" when unset.
func (p Person) Attribute(name string) string {
	for _, v := range p.Attributes[name] {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// StudentID returns the student id attribute.
func (p Person) StudentID() string {
	return p.Attribute(AttrStudentID)
}
