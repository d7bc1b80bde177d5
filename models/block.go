package models

// GasStats summarizes the gas unit prices seen in one block's user
// transactions. Median is the element at floor(n/2) of the sorted samples,
// so for an even count it is the upper middle value.
type GasStats struct {
	Min    uint64 `json:"min"`
	Max    uint64 `json:"max"`
	Median uint64 `json:"median"`
	Count  int    `json:"count"`
}

type BlockRecord struct {
	Height                uint64    `json:"height"`
	TxCount               int       `json:"tx_count"`
	TimestampMicros       uint64    `json:"timestamp_micros"`
	BlockTimeMs           uint64    `json:"block_time_ms"`
	GasUsed               uint64    `json:"gas_used"`
	Proposer              string    `json:"proposer,omitempty"`
	Round                 *uint64   `json:"round,omitempty"`
	Epoch                 *uint64   `json:"epoch,omitempty"`
	VotesBitvecHex        string    `json:"votes_bitvec,omitempty"`
	FailedProposerIndices []int     `json:"failed_proposer_indices,omitempty"`
	GasStats              *GasStats `json:"gas_stats,omitempty"`
}
