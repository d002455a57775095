// Package registry implements the Agent Registry: per-agent proposal
// counters and last-seen tracking, file-backed (one JSON record per agent
// name) for mock mode, grounded on the same read-whole-file-then-unmarshal
// pattern internal/topology and internal/incident use.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sentinel-governance/sentinel/internal/audit"
	"github.com/sentinel-governance/sentinel/internal/model"
)

// Registry is the Agent Registry contract.
type Registry interface {
	// Register is idempotent: it sets RegisteredAt only on the first call
	// for a given name.
	Register(ctx context.Context, name, cardURL string) error

	// UpdateStats atomically increments total_proposed and the matching
	// decision counter, and sets last_seen to now.
	UpdateStats(ctx context.Context, name string, decision model.Decision, now time.Time) error

	// List returns every registered agent, newest last_seen first.
	List(ctx context.Context) ([]*model.AgentRecord, error)

	// History returns up to limit recent verdicts proposed by name, newest
	// first, joined against the Audit Log by agent_id.
	History(ctx context.Context, name string, limit int) ([]*model.GovernanceVerdict, error)
}

// FileRegistry is the file-backed (mock mode) Agent Registry: one JSON file
// per agent name under dir.
type FileRegistry struct {
	dir       string
	auditLog  audit.Store
	mu        sync.Mutex
}

var _ Registry = (*FileRegistry)(nil)

// NewFileRegistry opens (creating if necessary) a file-backed Agent
// Registry rooted at dir. History() joins against auditLog.
func NewFileRegistry(dir string, auditLog audit.Store) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}
	return &FileRegistry{dir: dir, auditLog: auditLog}, nil
}

func (r *FileRegistry) path(name string) string {
	return filepath.Join(r.dir, sanitize(name)+".json")
}

// sanitize keeps agent names safe as filenames: slashes are the only
// realistic collision risk given agent names come from URNs/hostnames.
func sanitize(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

func (r *FileRegistry) load(name string) (*model.AgentRecord, bool, error) {
	raw, err := os.ReadFile(r.path(name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read agent record %s: %w", name, err)
	}
	var rec model.AgentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal agent record %s: %w", name, err)
	}
	return &rec, true, nil
}

func (r *FileRegistry) save(rec *model.AgentRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}
	return os.WriteFile(r.path(rec.Name), data, 0644)
}

// Register implements Registry.
func (r *FileRegistry) Register(ctx context.Context, name, cardURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, found, err := r.load(name)
	if err != nil {
		return err
	}
	if !found {
		rec = &model.AgentRecord{Name: name, RegisteredAt: time.Now().UTC()}
	}
	if cardURL != "" {
		rec.CardURL = cardURL
	}
	return r.save(rec)
}

// UpdateStats implements Registry.
func (r *FileRegistry) UpdateStats(ctx context.Context, name string, decision model.Decision, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, found, err := r.load(name)
	if err != nil {
		return err
	}
	if !found {
		rec = &model.AgentRecord{Name: name, RegisteredAt: now}
	}
	rec.ApplyDecision(decision)
	rec.LastSeen = now
	return r.save(rec)
}

// List implements Registry.
func (r *FileRegistry) List(ctx context.Context) ([]*model.AgentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read registry directory: %w", err)
	}
	var out []*model.AgentRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var rec model.AgentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Name(), err)
		}
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

// History implements Registry: it asks the Audit Log for recent verdicts
// and filters to those proposed by name, since the Audit Log's GetRecent
// contract does not itself filter by agent_id.
func (r *FileRegistry) History(ctx context.Context, name string, limit int) ([]*model.GovernanceVerdict, error) {
	if limit <= 0 {
		limit = 20
	}
	// Over-fetch since GetRecent has no agent_id filter; a real deployment
	// would add one, but the mock-mode volumes here make this adequate.
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
