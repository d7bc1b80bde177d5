package block

import (
	"fmt"
	"testing"

	"github.com/SeamMoney/aptos-consensus-streamer/models"
	"github.com/stretchr/testify/assert"
)

func record(height uint64, proposer string) *models.BlockRecord {
	return &models.BlockRecord{
		Height:          height,
		TimestampMicros: height * 94_000,
		BlockTimeMs:     94,
		Proposer:        proposer,
	}
}

func TestSaveIsIdempotentByHeight(t *testing.T) {
	repo := NewRepository(10)

	first := record(100, "0xaa")
	first.TxCount = 7
	assert.True(t, repo.Save(first))

	dup := record(100, "0xbb")
	dup.TxCount = 99
	assert.False(t, repo.Save(dup))

	blocks := repo.Blocks()
	assert.Len(t, blocks, 1)
	assert.Equal(t, 7, blocks[0].TxCount)
	assert.Equal(t, "0xaa", blocks[0].Proposer)
}

func TestBlocksAreSortedDescending(t *testing.T) {
	repo := NewRepository(10)
	for _, h := range []uint64{5, 9, 2, 7, 3} {
		repo.Save(record(h, ""))
	}

	blocks := repo.Blocks()
	for i := 1; i < len(blocks); i++ {
		assert.Greater(t, blocks[i-1].Height, blocks[i].Height)
	}
	assert.Equal(t, uint64(9), repo.LastHeight())
}

func TestCapacityEvictsOldest(t *testing.T) {
	repo := NewRepository(3)
	for h := uint64(1); h <= 5; h++ {
		repo.Save(record(h, ""))
	}

	blocks := repo.Blocks()
	assert.Len(t, blocks, 3)
	assert.Equal(t, uint64(5), blocks[0].Height)
	assert.Equal(t, uint64(3), blocks[2].Height)

	_, ok := repo.TimestampAt(1)
	assert.False(t, ok)
}

func TestRecentProposersMoveToFront(t *testing.T) {
	repo := NewRepository(10)
	repo.Save(record(1, "0xaa"))
	repo.Save(record(2, "0xbb"))
	repo.Save(record(3, "0xaa"))

	assert.Equal(t, []string{"0xaa", "0xbb"}, repo.RecentProposers())
}

func TestRecentProposersAreBounded(t *testing.T) {
	repo := NewRepository(100)
	for i := 0; i < RecentProposersCap+10; i++ {
		repo.Save(record(uint64(i+1), fmt.Sprintf("0x%02x", i)))
	}
	assert.Len(t, repo.RecentProposers(), RecentProposersCap)
}

func TestResetClearsEverything(t *testing.T) {
	repo := NewRepository(10)
	repo.Save(record(1, "0xaa"))
	repo.Reset()

	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, repo.RecentProposers())
	assert.Equal(t, uint64(0), repo.LastHeight())
}
