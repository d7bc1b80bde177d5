package models

// ConsensusSnapshot is the read-only consensus aggregate recomputed on every
// ledger change and handed to presentation as-is.
type ConsensusSnapshot struct {
	Epoch                    *uint64          `json:"epoch,omitempty"`
	Round                    *uint64          `json:"round,omitempty"`
	TotalValidators          int              `json:"total_validators"`
	ActiveValidators         int              `json:"active_validators"`
	TotalVotingPower         uint64           `json:"total_voting_power"`
	CurrentProposer          string           `json:"current_proposer,omitempty"`
	Validators               []*ValidatorInfo `json:"validators"`
	RecentProposers          []string         `json:"recent_proposers"`
	VoteParticipationPercent int              `json:"vote_participation_percent"`
	ValidatorVotes           []VoteRecord     `json:"validator_votes"`
}

// Stats is the snapshot object presentation consumes.
type Stats struct {
	BlockHeight    uint64             `json:"block_height"`
	Tps            int                `json:"tps"`
	AvgBlockTimeMs int                `json:"avg_block_time_ms"`
	RecentBlocks   []*BlockRecord     `json:"recent_blocks"`
	Consensus      *ConsensusSnapshot `json:"consensus"`
}

type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}
