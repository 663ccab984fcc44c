package person

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
)

// Manager loads people from up_person and up_person_attr.
type Manager struct {
	db db.Querier
}

// NewManager constructs a Manager.
func NewManager(q db.Querier) *Manager {
	return &Manager{db: q}
}

// Person returns username with all attributes.
func (m *Manager) Person(ctx context.Context, username string) (Person, error) {
	p := Person{Username: username}
	err := m.db.QueryRow(ctx,
		`SELECT COALESCE(display_name, ''), COALESCE(email, '') FROM up_person WHERE username = $1`,
		username,
	).Scan(&p.DisplayName, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Person{}, ErrNotFound
		}
		return Person{}, fmt.Errorf("person: load %s: %w", username, err)
	}

	rows, err := m.db.Query(ctx,
		`SELECT attr_name, attr_value FROM up_person_attr WHERE username = $1 ORDER BY attr_name, attr_order`,
		username,
	)
	if err != nil {
		return Person{}, fmt.Errorf("person: attributes of %s: %w", username, err)
	}
	type attr struct {
		Name  string
		Value string
	}
	attrs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[attr])
	if err != nil {
		return Person{}, fmt.Errorf("person: scan attributes: %w", err)
	}
	p.Attributes = make(map[string][]string, len(attrs))
	for _, a := range attrs {
		p.Attributes[a.Name] = append(p.Attributes[a.Name], a.Value)
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Attribute("displayName")
	}
	if p.Email == "" {
		p.Email = p.Attribute("mail")
	}
	return p, nil
}
