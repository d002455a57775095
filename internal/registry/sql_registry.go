package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sentinel-governance/sentinel/internal/audit"
	"github.com/sentinel-governance/sentinel/internal/model"
)

// SQLRegistry is the live-mode Agent Registry, backed by the same pure-Go
// SQLite driver the Audit Log's live mode uses.
type SQLRegistry struct {
	db       *sql.DB
	auditLog audit.Store
}

var _ Registry = (*SQLRegistry)(nil)

// NewSQLRegistry opens (creating if necessary) a SQLite-backed Agent
// Registry at path.
func NewSQLRegistry(path string, auditLog audit.Store) (*SQLRegistry, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		name TEXT PRIMARY KEY,
		registered_at TEXT NOT NULL,
		last_seen TEXT,
		total_proposed INTEGER NOT NULL DEFAULT 0,
		approved INTEGER NOT NULL DEFAULT 0,
		escalated INTEGER NOT NULL DEFAULT 0,
		denied INTEGER NOT NULL DEFAULT 0,
		card_url TEXT
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create agents table: %w", err)
	}
	return &SQLRegistry{db: db, auditLog: auditLog}, nil
}

// Register implements Registry.
func (r *SQLRegistry) Register(ctx context.Context, name, cardURL string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (name, registered_at, card_url) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET card_url = excluded.card_url WHERE excluded.card_url != ''
	`, name, time.Now().UTC().Format(time.RFC3339Nano), cardURL)
	return err
}

// UpdateStats implements Registry.
func (r *SQLRegistry) UpdateStats(ctx context.Context, name string, decision model.Decision, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// UTC with a fixed-width fraction, so List's ORDER BY last_seen on the
	// text column follows time order.
	lastSeen := now.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agents (name, registered_at, last_seen, total_proposed)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(name) DO NOTHING
	`, name, lastSeen, lastSeen)
	if err != nil {
		return err
	}

	column := map[model.Decision]string{
		model.DecisionApproved:  "approved",
		model.DecisionEscalated: "escalated",
		model.DecisionDenied:    "denied",
	}[decision]
	if column == "" {
		return fmt.Errorf("unknown decision %q", decision)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE agents SET total_proposed = total_proposed + 1, %s = %s + 1, last_seen = ?
		WHERE name = ?
	`, column, column), lastSeen, name)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// List implements Registry.
func (r *SQLRegistry) List(ctx context.Context) ([]*model.AgentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, registered_at, last_seen, total_proposed, approved, escalated, denied, card_url
		FROM agents ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AgentRecord
	for rows.Next() {
		var rec model.AgentRecord
		var registeredAt, lastSeen, cardURL sql.NullString
		if err := rows.Scan(&rec.Name, &registeredAt, &lastSeen, &rec.TotalProposed, &rec.Approved, &rec.Escalated, &rec.Denied, &cardURL); err != nil {
			return nil, err
		}
		rec.RegisteredAt, _ = time.Parse(time.RFC3339Nano, registeredAt.String)
		rec.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen.String)
		rec.CardURL = cardURL.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// History implements Registry.
func (r *SQLRegistry) History(ctx context.Context, name string, limit int) ([]*model.GovernanceVerdict, error) {
	if limit <= 0 {
		limit = 20
	}
	candidates, err := r.auditLog.GetRecent(ctx, 500, "")
	if err != nil {
		return nil, fmt.Errorf("fetch audit history: %w", err)
	}
	var out []*model.GovernanceVerdict
	for _, v := range candidates {
		if v.AgentID != name {
			continue
		}
		out = append(out, v)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close releases the underlying database handle.
func (r *SQLRegistry) Close() error { return r.db.Close() }
