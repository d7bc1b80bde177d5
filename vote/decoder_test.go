package vote

import (
	"fmt"
	"testing"

	"github.com/SeamMoney/aptos-consensus-streamer/models"
	"github.com/stretchr/testify/assert"
)

func makeValidators(n int) []*models.ValidatorInfo {
	out := make([]*models.ValidatorInfo, n)
	for i := 0; i < n; i++ {
		out[i] = &models.ValidatorInfo{
			Address:     fmt.Sprintf("0x%02x", i),
			VotingPower: uint64(100 + i),
			IsActive:    true,
		}
	}
	return out
}

func votedIndices(votes []models.VoteRecord) []int {
	var out []int
	for _, v := range votes {
		if v.Voted {
			out = append(out, v.Index)
		}
	}
	return out
}

func TestDecodeRoundTrip(t *testing.T) {
	// Bits 0, 3 and 8 set, LSB first within each byte: 0x09 0x01.
	validators := makeValidators(10)
	percent, votes := Decode("0901", validators)

	assert.Equal(t, []int{0, 3, 8}, votedIndices(votes))
	assert.Equal(t, 30, percent)
	assert.Len(t, votes, 10)
	assert.Equal(t, "0x00", votes[0].Address)
	assert.Equal(t, uint64(103), votes[3].VotingPower)
}

func TestDecodeAcceptsHexPrefix(t *testing.T) {
	validators := makeValidators(10)
	percent, votes := Decode("0x0901", validators)
	assert.Equal(t, 30, percent)
	assert.Equal(t, []int{0, 3, 8}, votedIndices(votes))
}

func TestDecodeRoundsHalfUp(t *testing.T) {
	// 3 of 8 voted: 37.5% rounds up to 38.
	validators := makeValidators(8)
	percent, _ := Decode("0b", validators) // bits 0,1,3
	assert.Equal(t, 38, percent)
}

func TestDecodeTruncatedBitvecAssumesVoted(t *testing.T) {
	// One byte covers indices 0-7; indices 8 and 9 fall past the end and
	// count as voted.
	validators := makeValidators(10)
	percent, votes := Decode("09", validators)

	assert.Equal(t, []int{0, 3, 8, 9}, votedIndices(votes))
	assert.Equal(t, 40, percent)
}

func TestDecodeEmptyBitvecAssumesAllVoted(t *testing.T) {
	validators := makeValidators(5)
	percent, votes := Decode("", validators)

	assert.Equal(t, 100, percent)
	assert.Len(t, votes, 5)
	for _, v := range votes {
		assert.True(t, v.Voted)
	}
}

func TestDecodeMalformedBitvecAssumesAllVoted(t *testing.T) {
	validators := makeValidators(5)
	percent, votes := Decode("not-hex", validators)

	assert.Equal(t, 100, percent)
	assert.Len(t, votes, 5)
	for _, v := range votes {
		assert.True(t, v.Voted)
	}
}

func TestDecodeEmptyValidatorListFallsBackToDefaultCount(t *testing.T) {
	percent, votes := Decode("0901", nil)

	assert.Equal(t, 100, percent)
	assert.Len(t, votes, DefaultValidatorCount)
	for _, v := range votes {
		assert.True(t, v.Voted)
		assert.Empty(t, v.Address)
	}
}

func TestDecodeFullParticipation(t *testing.T) {
	validators := makeValidators(8)
	percent, votes := Decode("ff", validators)
	assert.Equal(t, 100, percent)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, votedIndices(votes))
}
