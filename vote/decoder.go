package vote

import (
	"encoding/hex"
	"math"
	"strings"

	"github.com/SeamMoney/aptos-consensus-streamer/models"
)

// DefaultValidatorCount sizes the vote list when no validator set is known
// yet (the mainnet active set hovers around this).
const DefaultValidatorCount = 138

// Decode converts a block's vote bitvector into per-validator participation.
// Bit i (least significant bit first within byte i/8) marks validator i as
// having voted.
//
// Unknown means optimistic here: an empty or malformed bitvector, an empty
// validator list, or a bitvector too short to cover a given index all count
// as "voted". The participation display depends on this fallback, so it must
// never be "fixed" to report unknowns.
func Decode(bitvecHex string, validators []*models.ValidatorInfo) (int, []models.VoteRecord) {
	total := len(validators)
	if total == 0 {
		total = DefaultValidatorCount
	}

	raw := strings.TrimPrefix(strings.TrimPrefix(bitvecHex, "0x"), "0X")
	bytes, err := hex.DecodeString(raw)
	if bitvecHex == "" || err != nil || len(validators) == 0 {
		return 100, allVoted(total, validators)
	}

	votes := make([]models.VoteRecord, 0, total)
	voted := 0
	for i := 0; i < total; i++ {
		v := models.VoteRecord{Index: i, Voted: true}
		byteIdx := i / 8
		if byteIdx < len(bytes) {
			v.Voted = bytes[byteIdx]&(1<<uint(i%8)) != 0
		}
		if i < len(validators) {
			v.Address = validators[i].Address
			v.VotingPower = validators[i].VotingPower
		}
		if v.Voted {
			voted++
		}
		votes = append(votes, v)
	}

	percent := int(math.Round(float64(voted) / float64(total) * 100))
	return percent, votes
}

func allVoted(total int, validators []*models.ValidatorInfo) []models.VoteRecord {
	votes := make([]models.VoteRecord, 0, total)
	for i := 0; i < total; i++ {
		v := models.VoteRecord{Index: i, Voted: true}
		if i < len(validators) {
			v.Address = validators[i].Address
			v.VotingPower = validators[i].VotingPower
		}
		votes = append(votes, v)
	}
	return votes
}
