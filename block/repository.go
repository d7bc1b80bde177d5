package block

import (
	"sort"
	"sync"

	"github.com/SeamMoney/aptos-consensus-streamer/models"
)

const (
	DefaultCapacity    = 50
	RecentProposersCap = 20
)

// Repository is the in-memory block ledger: a deduplicated, height-ordered,
// capacity-bounded window of recent blocks.
type Repository struct {
	mu              sync.RWMutex
	capacity        int
	records         []*models.BlockRecord // descending by height
	recentProposers []string              // most recent first
}

func NewRepository(capacity int) *Repository {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Repository{capacity: capacity}
}

// Save inserts a block, keeping the ledger sorted descending and bounded.
// Inserting an already-known height is a no-op; the return value reports
// whether the record was actually stored.
func (r *Repository) Save(record *models.BlockRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.Height == record.Height {
			return false
		}
	}

	r.records = append(r.records, record)
	sort.Slice(r.records, func(i, j int) bool {
		return r.records[i].Height > r.records[j].Height
	})
	if len(r.records) > r.capacity {
		r.records = r.records[:r.capacity]
	}

	if record.Proposer != "" {
		r.pushProposer(record.Proposer)
	}
	return true
}

// pushProposer moves the proposer to the front of the recent list, never
// letting it appear twice. Caller holds the lock.
func (r *Repository) pushProposer(proposer string) {
	out := make([]string, 0, len(r.recentProposers)+1)
	out = append(out, proposer)
	for _, p := range r.recentProposers {
		if p != proposer {
			out = append(out, p)
		}
	}
	if len(out) > RecentProposersCap {
		out = out[:RecentProposersCap]
	}
	r.recentProposers = out
}

// Blocks returns a copy of the ledger, newest first.
func (r *Repository) Blocks() []*models.BlockRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.BlockRecord, len(r.records))
	for i, rec := range r.records {
		clone := *rec
		out[i] = &clone
	}
	return out
}

// LastHeight returns the newest known height, 0 when the ledger is empty.
func (r *Repository) LastHeight() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return 0
	}
	return r.records[0].Height
}

// TimestampAt looks up the timestamp of a specific height.
func (r *Repository) TimestampAt(height uint64) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Height == height {
			return rec.TimestampMicros, true
		}
	}
	return 0, false
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *Repository) RecentProposers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.recentProposers))
	copy(out, r.recentProposers)
	return out
}

// Reset drops all ledger state. Called on network switch.
func (r *Repository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.recentProposers = nil
}
