package client

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// The fullnode REST API encodes most numbers as decimal strings.
type Uint64Str uint64

func (u *Uint64Str) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Some gateways return plain numbers.
		var n uint64
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return err
		}
		*u = Uint64Str(n)
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64Str(n)
	return nil
}

func (u Uint64Str) Value() uint64 {
	return uint64(u)
}

// LedgerInfo is the response of GET /v1.
type LedgerInfo struct {
	ChainID         int       `json:"chain_id"`
	Epoch           Uint64Str `json:"epoch"`
	LedgerVersion   Uint64Str `json:"ledger_version"`
	BlockHeight     Uint64Str `json:"block_height"`
	LedgerTimestamp Uint64Str `json:"ledger_timestamp"`
	NodeRole        string    `json:"node_role"`
}

// Block is the response of GET /v1/blocks/by_height/{height}.
type Block struct {
	BlockHeight    Uint64Str     `json:"block_height"`
	BlockHash      string        `json:"block_hash"`
	BlockTimestamp Uint64Str     `json:"block_timestamp"`
	FirstVersion   Uint64Str     `json:"first_version"`
	LastVersion    Uint64Str     `json:"last_version"`
	Transactions   []Transaction `json:"transactions"`
}

const (
	TxTypeBlockMetadata = "block_metadata_transaction"
	TxTypeUser          = "user_transaction"
)

// Transaction is one embedded transaction of a block response. Only the
// fields the extractor reads are decoded; the rest of the payload is dropped.
type Transaction struct {
	Type                     string          `json:"type"`
	Proposer                 string          `json:"proposer,omitempty"`
	Round                    *Uint64Str      `json:"round,omitempty"`
	Epoch                    *Uint64Str      `json:"epoch,omitempty"`
	PreviousBlockVotesBitvec json.RawMessage `json:"previous_block_votes_bitvec,omitempty"`
	FailedProposerIndices    []Uint64Str     `json:"failed_proposer_indices,omitempty"`
	GasUnitPrice             *Uint64Str      `json:"gas_unit_price,omitempty"`
	GasUsed                  *Uint64Str      `json:"gas_used,omitempty"`
	Timestamp                *Uint64Str      `json:"timestamp,omitempty"`
}

// VotesBitvecHex normalizes previous_block_votes_bitvec to a bare hex string.
// Nodes return it either as a hex string (possibly 0x-prefixed) or as a JSON
// array of byte values. Undecodable input yields "".
func (t *Transaction) VotesBitvecHex() string {
	raw := t.PreviousBlockVotesBitvec
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
			s = s[2:]
		}
		return s
	}
	var nums []uint16
	if err := json.Unmarshal(raw, &nums); err == nil {
		bytes := make([]byte, len(nums))
		for i, n := range nums {
			bytes[i] = byte(n)
		}
		return hex.EncodeToString(bytes)
	}
	return ""
}

// ValidatorSetResource is the 0x1::stake::ValidatorSet account resource.
type ValidatorSetResource struct {
	Type string           `json:"type"`
	Data ValidatorSetData `json:"data"`
}

type ValidatorSetData struct {
	ActiveValidators []ValidatorEntry `json:"active_validators"`
	TotalVotingPower Uint64Str        `json:"total_voting_power"`
}

type ValidatorEntry struct {
	Addr        string    `json:"addr"`
	VotingPower Uint64Str `json:"voting_power"`
}
