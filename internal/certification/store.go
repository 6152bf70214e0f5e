package certification

import (
	"sync"
	"time"
)

// Record is an immutable official certification bound to a score snapshot.
// Only Status and ExpiresAt change after issuance, and only on revocation.
type Record struct {
	ID              string            `json:"id"`
	ProjectID       string            `json:"project_id"`
	SnapshotID      string            `json:"snapshot_id"`
	SnapshotVersion int               `json:"snapshot_version"`
	FinalScore      float64           `json:"final_score"`
	Grade           string            `json:"grade"`
	RiskLevel       string            `json:"risk_level"`
	QuoteHash       string            `json:"quote_hash"`
	IssuedAt        time.Time         `json:"issued_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
	Status          string            `json:"status"`
	PublicToken     string            `json:"public_token"`
	IssuerSignature string            `json:"issuer_signature"`
	GradesMetadata  map[string]string `json:"grades_metadata,omitempty"`
	ScoreThresholds map[string]int    `json:"score_thresholds,omitempty"`
}

// TokenRef maps a public token back to its certificate.
type TokenRef struct {
	ProjectID string
	CertID    string
}

// Store abstracts the certification registry so a durable backing store
// can be substituted without touching call sites. Appends are atomic;
// per-project history is append-only and never truncated.
type Store interface {
	Append(record Record)
	Project(projectID string) []Record
	Get(projectID, certID string) (Record, bool)
	Lookup(token string) (TokenRef, bool)
	// Mutate applies fn to the stored record under the store's lock.
	// Returns false when the record does not exist.
	Mutate(projectID, certID string, fn func(*Record)) bool
	Projects() []string
	Clear()
}

// MemoryStore is the in-memory Store implementation. The score snapshot,
// not the certificate, is the durable system of record; certificates are
// an overlay that can be rebuilt from snapshots.
type MemoryStore struct {
	mu         sync.RWMutex
	byProject  map[string][]Record
	tokenIndex map[string]TokenRef
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byProject:  make(map[string][]Record),
		tokenIndex: make(map[string]TokenRef),
	}
}

func (s *MemoryStore) Append(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProject[record.ProjectID] = append(s.byProject[record.ProjectID], record)
	s.tokenIndex[record.PublicToken] = TokenRef{ProjectID: record.ProjectID, CertID: record.ID}
}

func (s *MemoryStore) Project(projectID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.byProject[projectID]...)
}

func (s *MemoryStore) Get(projectID, certID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.byProject[projectID] {
		if rec.ID == certID {
			return rec, true
		}
	}
	return Record{}, false
}

func (s *MemoryStore) Lookup(token string) (TokenRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.tokenIndex[token]
	return ref, ok
}

func (s *MemoryStore) Mutate(projectID, certID string, fn func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.byProject[projectID]
	for i := range records {
		if records[i].ID == certID {
			fn(&records[i])
			return true
		}
	}
	return false
}

func (s *MemoryStore) Projects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byProject))
	for id := range s.byProject {
		out = append(out, id)
	}
	return out
}

// Clear empties the registry. Test lifecycle only.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProject = make(map[string][]Record)
	s.tokenIndex = make(map[string]TokenRef)
}
