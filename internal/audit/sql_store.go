package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

// SQLStore persists verdicts to SQLite or PostgreSQL: one table, a
// DSN-prefix backend switch, and a mutex-protected hash chain computed at
// write time.
type SQLStore struct {
	db         *sql.DB
	isPostgres bool
	mu         sync.Mutex // protects lastHash
	lastHash   string
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens (creating if necessary) a verdict store at dsn. A DSN
// beginning with "postgres://" or "postgresql://" selects the PostgreSQL
// backend (pgx); anything else is treated as a SQLite file path
// (modernc.org/sqlite, no cgo).
func NewSQLStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = "sentinel-audit.db"
	}
	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")

	var db *sql.DB
	var err error
	if isPostgres {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres audit store: %w", err)
		}
	} else {
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create audit directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit store: %w", err)
		}
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := createVerdictTable(db, isPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("create verdict table: %w", err)
	}

	s := &SQLStore{db: db, isPostgres: isPostgres, lastHash: GenesisHash}
	if err := s.loadLastHash(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load last hash: %w", err)
	}
	return s, nil
}

func rebind(isPostgres bool, query string) string {
	if !isPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func createVerdictTable(db *sql.DB, isPostgres bool) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if isPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS verdicts (
		id %s,
		action_id TEXT UNIQUE NOT NULL,
		agent_id TEXT,
		resource_id TEXT,
		decision TEXT NOT NULL,
		composite REAL NOT NULL,
		prev_hash TEXT NOT NULL,
		event_hash TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		raw_json TEXT NOT NULL
	);`, pk)
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	indexes := `
	CREATE INDEX IF NOT EXISTS idx_verdicts_timestamp ON verdicts(timestamp);
	CREATE INDEX IF NOT EXISTS idx_verdicts_resource ON verdicts(resource_id);
	CREATE INDEX IF NOT EXISTS idx_verdicts_agent ON verdicts(agent_id);
	`
	_, err := db.Exec(indexes)
	return err
}

func (s *SQLStore) loadLastHash() error {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT event_hash FROM verdicts ORDER BY id DESC LIMIT 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		s.lastHash = GenesisHash
		return nil
	}
	if err != nil {
		return err
	}
	if hash.Valid && hash.String != "" {
		s.lastHash = hash.String
	} else {
		s.lastHash = GenesisHash
	}
	return nil
}

// Record implements Store. Recording the same action_id twice is a no-op:
// verdicts are written once and the log deduplicates by identity.
func (s *SQLStore) Record(ctx context.Context, verdict *model.GovernanceVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, rebind(s.isPostgres, `SELECT 1 FROM verdicts WHERE action_id = ?`), verdict.ActionID).Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check existing verdict: %w", err)
	}

	prevHash := s.lastHash
	hash := computeVerdictHash(verdict, prevHash)

	raw, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	_, err = s.db.ExecContext(ctx, rebind(s.isPostgres, `
		INSERT INTO verdicts (action_id, agent_id, resource_id, decision, composite, prev_hash, event_hash, timestamp, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		verdict.ActionID, verdict.AgentID, verdict.ResourceID, string(verdict.Decision),
		verdict.SRI.Composite, prevHash, hash, verdict.Timestamp.UTC().Format(sortableTimeLayout), string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	s.lastHash = hash
	return nil
}

// GetByID implements Store.
func (s *SQLStore) GetByID(ctx context.Context, actionID string) (*model.GovernanceVerdict, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, rebind(s.isPostgres, `SELECT raw_json FROM verdicts WHERE action_id = ?`), actionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, &sentinelerr.NotFoundError{ActionID: actionID}
	}
	if err != nil {
		return nil, fmt.Errorf("query verdict: %w", err)
	}
	var v model.GovernanceVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return &v, nil
}

// GetRecent implements Store.
func (s *SQLStore) GetRecent(ctx context.Context, limit int, resourceIDSubstring string) ([]*model.GovernanceVerdict, error) {
	query := `SELECT raw_json FROM verdicts WHERE 1=1`
	var args []any
	if resourceIDSubstring != "" {
		query += " AND resource_id LIKE ?"
		args = append(args, "%"+resourceIDSubstring+"%")
	}
	query += " ORDER BY timestamp DESC, action_id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, rebind(s.isPostgres, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []*model.GovernanceVerdict
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan verdict row: %w", err)
		}
		var v model.GovernanceVerdict
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("unmarshal verdict: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// Aggregate implements Store.
func (s *SQLStore) Aggregate(ctx context.Context) (*Aggregate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM verdicts`)
	if err != nil {
		return nil, fmt.Errorf("query verdicts for aggregate: %w", err)
	}
	defer rows.Close()

	var all []*model.GovernanceVerdict
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan verdict row: %w", err)
		}
		var v model.GovernanceVerdict
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("unmarshal verdict: %w", err)
		}
		all = append(all, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return aggregateFromVerdicts(all), nil
}

// VerifyIntegrity checks the hash chain over every verdict in insertion
// order, surfacing tamper evidence to admin tooling.
func (s *SQLStore) VerifyIntegrity(ctx context.Context) (ChainStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json, prev_hash, event_hash FROM verdicts ORDER BY id ASC`)
	if err != nil {
		return ChainStatus{}, fmt.Errorf("query verdicts for verify: %w", err)
	}
	defer rows.Close()

	var records []storedRecord
	for rows.Next() {
		var raw, prevHash, hash string
		if err := rows.Scan(&raw, &prevHash, &hash); err != nil {
			return ChainStatus{}, fmt.Errorf("scan verdict row: %w", err)
		}
		var v model.GovernanceVerdict
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return ChainStatus{}, fmt.Errorf("unmarshal verdict: %w", err)
		}
		records = append(records, storedRecord{Verdict: &v, PrevHash: prevHash, Hash: hash})
	}
	if err := rows.Err(); err != nil {
		return ChainStatus{}, err
	}
	return verifyChain(records), nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
