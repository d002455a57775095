package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

// FileStore is the mock-mode Audit Log: one JSON file per verdict under
// dir, named "<action_id>.json". The chain head (last hash written) is
// cached in a sidecar file so restarts resume the hash chain correctly.
type FileStore struct {
	dir string
	mu  sync.Mutex

	lastHash string
	index    []indexEntry // in-memory index, kept sorted oldest-first
}

type indexEntry struct {
	actionID  string
	timestamp string // UTC, sortableTimeLayout, sortable as string
}

// sortableTimeLayout is RFC3339 with a fixed nine-digit fraction. Applied to
// UTC times it yields fixed-width strings whose byte order is time order.
const sortableTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ Store = (*FileStore)(nil)

const chainHeadFile = "_chain_head.json"

type chainHead struct {
	LastHash string `json:"last_hash"`
}

// NewFileStore opens (creating if necessary) a file-per-record audit log
// rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	s := &FileStore{dir: dir, lastHash: GenesisHash}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) loadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read audit directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == chainHeadFile {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var rec storedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("unmarshal %s: %w", name, err)
		}
		s.index = append(s.index, indexEntry{
			actionID:  rec.Verdict.ActionID,
			timestamp: rec.Verdict.Timestamp.UTC().Format(sortableTimeLayout),
		})
	}
	sortIndexAsc(s.index)

	headRaw, err := os.ReadFile(filepath.Join(s.dir, chainHeadFile))
	if err == nil {
		var head chainHead
		if json.Unmarshal(headRaw, &head) == nil && head.LastHash != "" {
			s.lastHash = head.LastHash
		}
	}
	return nil
}

func (s *FileStore) recordPath(actionID string) string {
	return filepath.Join(s.dir, actionID+".json")
}

// Record implements Store. Recording the same action_id twice is a no-op:
// verdicts are written once and the log deduplicates by identity.
func (s *FileStore) Record(ctx context.Context, verdict *model.GovernanceVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(verdict.ActionID)); err == nil {
		return nil
	}

	prevHash := s.lastHash
	hash := computeVerdictHash(verdict, prevHash)
	rec := storedRecord{Verdict: verdict, PrevHash: prevHash, Hash: hash}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal verdict record: %w", err)
	}
	if err := os.WriteFile(s.recordPath(verdict.ActionID), data, 0644); err != nil {
		return fmt.Errorf("write verdict record: %w", err)
	}

	headData, err := json.Marshal(chainHead{LastHash: hash})
	if err != nil {
		return fmt.Errorf("marshal chain head: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, chainHeadFile), headData, 0644); err != nil {
		return fmt.Errorf("write chain head: %w", err)
	}

	s.lastHash = hash
	s.index = append(s.index, indexEntry{
		actionID:  verdict.ActionID,
		timestamp: verdict.Timestamp.UTC().Format(sortableTimeLayout),
	})
	sortIndexAsc(s.index)
	return nil
}

// sortIndexAsc sorts entries timestamp ascending, action_id ascending on
// ties, matching SQLStore's "ORDER BY timestamp DESC, action_id ASC"
// reversed: GetRecent returns strictly timestamp descending, ties broken
// by action_id ascending.
func sortIndexAsc(index []indexEntry) {
	sort.SliceStable(index, func(i, j int) bool {
		if index[i].timestamp != index[j].timestamp {
			return index[i].timestamp < index[j].timestamp
		}
		return index[i].actionID < index[j].actionID
	})
}

func (s *FileStore) readRecord(actionID string) (*storedRecord, error) {
	raw, err := os.ReadFile(s.recordPath(actionID))
	if os.IsNotExist(err) {
		return nil, &sentinelerr.NotFoundError{ActionID: actionID}
	}
	if err != nil {
		return nil, fmt.Errorf("read verdict record %s: %w", actionID, err)
	}
	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal verdict record %s: %w", actionID, err)
	}
	return &rec, nil
}

// GetByID implements Store.
func (s *FileStore) GetByID(ctx context.Context, actionID string) (*model.GovernanceVerdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.readRecord(actionID)
	if err != nil {
		return nil, err
	}
	return rec.Verdict, nil
}

// GetRecent implements Store.
func (s *FileStore) GetRecent(ctx context.Context, limit int, resourceIDSubstring string) ([]*model.GovernanceVerdict, error) {
	s.mu.Lock()
	recent := make([]indexEntry, len(s.index))
	copy(recent, s.index)
	s.mu.Unlock()

	// timestamp descending, action_id ascending on ties, matching
	// SQLStore's "ORDER BY timestamp DESC, action_id ASC".
	sort.SliceStable(recent, func(i, j int) bool {
		if recent[i].timestamp != recent[j].timestamp {
			return recent[i].timestamp > recent[j].timestamp
		}
		return recent[i].actionID < recent[j].actionID
	})
	ids := make([]string, len(recent))
	for i, e := range recent {
		ids[i] = e.actionID
	}

	var out []*model.GovernanceVerdict
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, err := s.readRecord(id)
		if err != nil {
			if sentinelerr.IsNotFound(err) {
				continue // record removed out-of-band between index load and read
			}
			return nil, err
		}
		if resourceIDSubstring != "" && !strings.Contains(rec.Verdict.ResourceID, resourceIDSubstring) {
			continue
		}
		out = append(out, rec.Verdict)
	}
	return out, nil
}

// Aggregate implements Store.
func (s *FileStore) Aggregate(ctx context.Context) (*Aggregate, error) {
	s.mu.Lock()
	ids := make([]string, len(s.index))
	for i, e := range s.index {
		ids[i] = e.actionID
	}
	s.mu.Unlock()

	var all []*model.GovernanceVerdict
	for _, id := range ids {
		rec, err := s.readRecord(id)
		if err != nil {
			if sentinelerr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		all = append(all, rec.Verdict)
	}
	return aggregateFromVerdicts(all), nil
}

// VerifyIntegrity checks the hash chain over every verdict in timestamp
// order (the order they were recorded).
func (s *FileStore) VerifyIntegrity(ctx context.Context) (ChainStatus, error) {
	s.mu.Lock()
	ids := make([]string, len(s.index))
	for i, e := range s.index {
		ids[i] = e.actionID
	}
	s.mu.Unlock()

	var records []storedRecord
	for _, id := range ids {
		rec, err := s.readRecord(id)
		if err != nil {
			if sentinelerr.IsNotFound(err) {
				continue
			}
			return ChainStatus{}, err
		}
		records = append(records, *rec)
	}
	return verifyChain(records), nil
}

// Close implements Store. FileStore holds no resources beyond file
// descriptors opened and closed per-call, so Close is a no-op.
func (s *FileStore) Close() error { return nil }
