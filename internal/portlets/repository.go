package portlets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
	"github.com/campusportal/portal-rest/internal/rbac"
)

// Conn is a pool that can also open transactions.
type Conn interface {
	db.Querier
	db.Beginner
}

// PGRepository reads and writes portlet definitions in PostgreSQL.
type PGRepository struct {
	conn Conn
}

// NewPGRepository constructs a repository.
func NewPGRepository(conn Conn) *PGRepository {
	return &PGRepository{conn: conn}
}

const definitionColumns = `id, fname, name, COALESCE(title, name), COALESCE(description, ''), type, lifecycle_state`

// All lists every registered definition ordered by name.
func (r *PGRepository) All(ctx context.Context) ([]Definition, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+definitionColumns+` FROM up_portlet_def ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("portlets: list: %w", err)
	}
	defs, err := pgx.CollectRows(rows, scanDefinition)
	if err != nil {
		return nil, fmt.Errorf("portlets: scan: %w", err)
	}
	if err := r.decorate(ctx, r.conn, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// ByFName fetches one definition.
func (r *PGRepository) ByFName(ctx context.Context, fname string) (Definition, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+definitionColumns+` FROM up_portlet_def WHERE fname = $1`, fname)
	if err != nil {
		return Definition{}, fmt.Errorf("portlets: get %s: %w", fname, err)
	}
	def, err := pgx.CollectExactlyOneRow(rows, scanDefinition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, ErrNotFound
		}
		return Definition{}, fmt.Errorf("portlets: get %s: %w", fname, err)
	}
	defs := []Definition{def}
	if err := r.decorate(ctx, r.conn, defs); err != nil {
		return Definition{}, err
	}
	return defs[0], nil
}

// SavePreference replaces the values of an existing preference, keeping its read-only
// flag, or adds it. The stored preference is returned.
func (r *PGRepository) SavePreference(ctx context.Context, portletID int64, pref Preference) (Preference, error) {
	values := pref.Values
	if values == nil {
		values = []string{}
	}
	saved := Preference{Name: pref.Name, Values: values, ReadOnly: pref.ReadOnly}
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		var readOnly bool
		err := tx.QueryRow(ctx,
			`SELECT read_only FROM up_portlet_pref WHERE portlet_id = $1 AND name = $2 FOR UPDATE`,
			portletID, pref.Name,
		).Scan(&readOnly)
		switch {
		case err == nil:
			saved.ReadOnly = readOnly
			_, err = tx.Exec(ctx,
				`UPDATE up_portlet_pref SET pref_values = $3 WHERE portlet_id = $1 AND name = $2`,
				portletID, pref.Name, values,
			)
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx,
				`INSERT INTO up_portlet_pref (portlet_id, name, read_only, pref_values) VALUES ($1, $2, $3, $4)`,
				portletID, pref.Name, pref.ReadOnly, values,
			)
		}
		if err != nil {
			return fmt.Errorf("portlets: save preference %s: %w", pref.Name, err)
		}
		return nil
	})
	if err != nil {
		return Preference{}, err
	}
	return saved, nil
}

// decorate loads categories, parameters and preferences for defs in place.
func (r *PGRepository) decorate(ctx context.Context, q db.Querier, defs []Definition) error {
	if len(defs) == 0 {
		return nil
	}
	ids := make([]int64, len(defs))
	index := make(map[int64]int, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
		index[d.ID] = i
	}

	rows, err := q.Query(ctx, `SELECT m.portlet_id, c.name
		FROM up_portlet_category_member m
		JOIN up_portlet_category c ON c.id = m.category_id
		WHERE m.portlet_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("portlets: categories: %w", err)
	}
	type category struct {
		PortletID int64
		Name      string
	}
	categories, err := pgx.CollectRows(rows, pgx.RowToStructByPos[category])
	if err != nil {
		return fmt.Errorf("portlets: scan categories: %w", err)
	}
	raw := make(map[int64][]string, len(defs))
	for _, c := range categories {
		raw[c.PortletID] = append(raw[c.PortletID], c.Name)
	}

	rows, err = q.Query(ctx, `SELECT portlet_id, name, value
		FROM up_portlet_param WHERE portlet_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("portlets: parameters: %w", err)
	}
	type parameter struct {
		PortletID int64
		Name      string
		Value     string
	}
	params, err := pgx.CollectRows(rows, pgx.RowToStructByPos[parameter])
	if err != nil {
		return fmt.Errorf("portlets: scan parameters: %w", err)
	}

	rows, err = q.Query(ctx, `SELECT portlet_id, name, pref_values, read_only
		FROM up_portlet_pref WHERE portlet_id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return fmt.Errorf("portlets: preferences: %w", err)
	}
	type preference struct {
		PortletID int64
		Name      string
		Values    []string
		ReadOnly  bool
	}
	prefs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[preference])
	if err != nil {
		return fmt.Errorf("portlets: scan preferences: %w", err)
	}

	for i := range defs {
		defs[i].Categories = normalizeCategories(raw[defs[i].ID])
		defs[i].Preferences = []Preference{}
	}
	for _, p := range params {
		d := &defs[index[p.PortletID]]
		if d.Parameters == nil {
			d.Parameters = make(map[string]string)
		}
		d.Parameters[p.Name] = p.Value
	}
	for _, p := range prefs {
		d := &defs[index[p.PortletID]]
		d.Preferences = append(d.Preferences, Preference{Name: p.Name, Values: p.Values, ReadOnly: p.ReadOnly})
	}
	return nil
}

func scanDefinition(row pgx.CollectableRow) (Definition, error) {
	var (
		d     Definition
		state string
	)
	if err := row.Scan(&d.ID, &d.FName, &d.Name, &d.Title, &d.Description, &d.Type, &state); err != nil {
		return Definition{}, err
	}
	parsed, err := rbac.ParseLifecycleState(state)
	if err != nil {
		return Definition{}, err
	}
	d.LifecycleState = parsed
	return d, nil
}
