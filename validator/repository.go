package validator

import (
	"sync"

	"github.com/SeamMoney/aptos-consensus-streamer/models"
)

// Repository is the in-memory validator cache. The refresh service replaces
// the whole set at once; the only in-place mutation is the opportunistic
// last-proposed-height patch applied when a new block names a proposer.
type Repository struct {
	mu         sync.RWMutex
	validators []*models.ValidatorInfo
	byAddress  map[string]*models.ValidatorInfo
}

func NewRepository() *Repository {
	return &Repository{
		byAddress: make(map[string]*models.ValidatorInfo),
	}
}

// ReplaceAll swaps in a freshly fetched validator set. Known last-proposed
// heights are carried over so a refresh does not erase them.
func (r *Repository) ReplaceAll(validators []*models.ValidatorInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byAddress := make(map[string]*models.ValidatorInfo, len(validators))
	for _, v := range validators {
		if prev, ok := r.byAddress[v.Address]; ok && v.LastProposedBlockHeight == nil {
			v.LastProposedBlockHeight = prev.LastProposedBlockHeight
		}
		byAddress[v.Address] = v
	}
	r.validators = validators
	r.byAddress = byAddress
}

// SetLastProposed patches one validator's last proposed height in place.
// Unknown addresses are ignored.
func (r *Repository) SetLastProposed(address string, height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.byAddress[address]; ok {
		h := height
		v.LastProposedBlockHeight = &h
	}
}

// All returns a copy of the current set, ordered as fetched.
func (r *Repository) All() []*models.ValidatorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ValidatorInfo, len(r.validators))
	for i, v := range r.validators {
		clone := *v
		out[i] = &clone
	}
	return out
}

func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.validators)
}

func (r *Repository) TotalVotingPower() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total uint64
	for _, v := range r.validators {
		total += v.VotingPower
	}
	return total
}

// Reset drops the whole cache. Called on network switch.
func (r *Repository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators = nil
	r.byAddress = make(map[string]*models.ValidatorInfo)
}
