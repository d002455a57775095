package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// HashAlgorithm identifies the hashing algorithm used for the tamper-
// evidence chain.
const HashAlgorithm = "sha256"

// GenesisHash is the hash used as prev_hash for the first verdict in the
// chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// computeVerdictHash hashes the JSON encoding of a verdict's action_id,
// agent_id, resource_id, decision, composite score, reason, violations and
// timestamp plus its prev_hash — never the verdict's own (not-yet-known)
// hash. The sub-scores, weights, thresholds and sub-results are not hashed.
func computeVerdictHash(verdict *model.GovernanceVerdict, prevHash string) string {
	hashInput := struct {
		ActionID   string          `json:"action_id"`
		AgentID    string          `json:"agent_id"`
		ResourceID string          `json:"resource_id"`
		Decision   model.Decision  `json:"decision"`
		Composite  float64         `json:"composite"`
		Reason     string          `json:"reason"`
		Violations []string        `json:"violations"`
		Timestamp  string          `json:"timestamp"`
		PrevHash   string          `json:"prev_hash"`
	}{
		ActionID:   verdict.ActionID,
		AgentID:    verdict.AgentID,
		ResourceID: verdict.ResourceID,
		Decision:   verdict.Decision,
		Composite:  verdict.SRI.Composite,
		Reason:     verdict.Reason,
		Violations: verdict.Violations,
		Timestamp:  verdict.Timestamp.Format(time.RFC3339Nano),
		PrevHash:   prevHash,
	}
	data, err := json.Marshal(hashInput)
	if err != nil {
		data = []byte(verdict.ActionID)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChainStatus reports the outcome of verifying a hash chain.
type ChainStatus struct {
	Valid        bool   `json:"valid"`
	TotalRecords int    `json:"total_records"`
	BrokenAt     int    `json:"broken_at,omitempty"`
	Error        string `json:"error,omitempty"`
}

// verifyChain checks that each record's stored hash matches its recomputed
// hash and that prev_hash links match, given records in insertion order.
func verifyChain(records []storedRecord) ChainStatus {
	status := ChainStatus{TotalRecords: len(records), BrokenAt: -1}
	if len(records) == 0 {
		status.Valid = true
		return status
	}
	prev := GenesisHash
	for i, r := range records {
		if r.PrevHash != prev {
			status.BrokenAt = i
			status.Error = fmt.Sprintf("record %s has broken chain link", r.Verdict.ActionID)
			return status
		}
		expected := computeVerdictHash(r.Verdict, r.PrevHash)
		if expected != r.Hash {
			status.BrokenAt = i
			status.Error = fmt.Sprintf("record %s has invalid hash", r.Verdict.ActionID)
			return status
		}
		prev = r.Hash
	}
	status.Valid = true
	return status
}

// storedRecord is the persisted shape common to both backends: a verdict
// plus its chain-link hashes.
type storedRecord struct {
	Verdict  *model.GovernanceVerdict `json:"verdict"`
	PrevHash string                   `json:"prev_hash"`
	Hash     string                   `json:"hash"`
}
