package models

type ValidatorInfo struct {
	Address                 string  `json:"address"`
	VotingPower             uint64  `json:"voting_power"`
	IsActive                bool    `json:"is_active"`
	LastProposedBlockHeight *uint64 `json:"last_proposed_block_height,omitempty"`
}

// VoteRecord is the decoded participation of one validator in the most
// recent block's vote bitvector. Index is the bit position.
type VoteRecord struct {
	Index       int    `json:"index"`
	Voted       bool   `json:"voted"`
	Address     string `json:"address,omitempty"`
	VotingPower uint64 `json:"voting_power,omitempty"`
}
