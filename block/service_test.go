package block

import (
	"testing"

	"github.com/SeamMoney/aptos-consensus-streamer/client"
	"github.com/SeamMoney/aptos-consensus-streamer/models"
	"github.com/SeamMoney/aptos-consensus-streamer/validator"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func newTestService(capacity int) (*Service, *Repository, *validator.Repository) {
	logger, _ := logtest.NewNullLogger()
	blockRepo := NewRepository(capacity)
	validatorRepo := validator.NewRepository()
	return NewBlockService(blockRepo, validatorRepo, logrus.NewEntry(logger)), blockRepo, validatorRepo
}

func u64(v uint64) client.Uint64Str {
	return client.Uint64Str(v)
}

func u64p(v uint64) *client.Uint64Str {
	u := client.Uint64Str(v)
	return &u
}

func metadataTx(proposer string, round, epoch uint64) client.Transaction {
	return client.Transaction{
		Type:     client.TxTypeBlockMetadata,
		Proposer: proposer,
		Round:    u64p(round),
		Epoch:    u64p(epoch),
	}
}

func userTx(gasPrice uint64) client.Transaction {
	return client.Transaction{
		Type:         client.TxTypeUser,
		GasUnitPrice: u64p(gasPrice),
		GasUsed:      u64p(10),
	}
}

func apiBlock(height, timestampMicros uint64, txs ...client.Transaction) *client.Block {
	return &client.Block{
		BlockHeight:    u64(height),
		BlockTimestamp: u64(timestampMicros),
		Transactions:   txs,
	}
}

func TestGasStatsOddCount(t *testing.T) {
	stats := gasStats([]uint64{100, 300, 200})
	assert.Equal(t, &models.GasStats{Min: 100, Max: 300, Median: 200, Count: 3}, stats)
}

func TestGasStatsEvenCountUsesUpperMiddle(t *testing.T) {
	// Element at floor(4/2)=2 of the sorted samples, not the average of the
	// two middle values.
	stats := gasStats([]uint64{100, 200, 300, 400})
	assert.Equal(t, uint64(300), stats.Median)
	assert.Equal(t, 4, stats.Count)
}

func TestGasStatsEmpty(t *testing.T) {
	assert.Nil(t, gasStats(nil))
}

func TestExtractMetadataFields(t *testing.T) {
	svc, repo, _ := newTestService(10)

	meta := metadataTx("0xproposer", 42, 7)
	meta.PreviousBlockVotesBitvec = []byte(`"0xff01"`)
	meta.FailedProposerIndices = []client.Uint64Str{3, 9}

	saved := svc.HandleBlockResponses([]*client.Block{
		apiBlock(100, 1_000_000, meta, userTx(100), userTx(200)),
	})
	assert.Equal(t, 1, saved)

	rec := repo.Blocks()[0]
	assert.Equal(t, "0xproposer", rec.Proposer)
	assert.Equal(t, uint64(42), *rec.Round)
	assert.Equal(t, uint64(7), *rec.Epoch)
	assert.Equal(t, "ff01", rec.VotesBitvecHex)
	assert.Equal(t, []int{3, 9}, rec.FailedProposerIndices)
	assert.Equal(t, 2, rec.TxCount)
	assert.Equal(t, uint64(20), rec.GasUsed)
}

func TestExtractMetadataAbsentMeansAbsent(t *testing.T) {
	svc, repo, _ := newTestService(10)

	svc.HandleBlockResponses([]*client.Block{
		apiBlock(100, 1_000_000, userTx(100)),
	})

	rec := repo.Blocks()[0]
	assert.Nil(t, rec.Round)
	assert.Nil(t, rec.Epoch)
	assert.Empty(t, rec.Proposer)
	assert.Empty(t, rec.VotesBitvecHex)
}

func TestBlockTimeFromBatchNeighbor(t *testing.T) {
	svc, repo, _ := newTestService(10)

	svc.HandleBlockResponses([]*client.Block{
		apiBlock(101, 1_100_000),
		apiBlock(100, 1_000_000),
	})

	blocks := repo.Blocks()
	assert.Equal(t, uint64(100), blocks[0].BlockTimeMs) // 100ms gap to height 100
	// Oldest batch member has no predecessor anywhere: nominal default.
	assert.Equal(t, uint64(NominalBlockTimeMs), blocks[1].BlockTimeMs)
}

func TestBlockTimeFromLedgerNeighbor(t *testing.T) {
	svc, repo, _ := newTestService(10)

	svc.HandleBlockResponses([]*client.Block{apiBlock(100, 1_000_000)})
	svc.HandleBlockResponses([]*client.Block{apiBlock(101, 1_050_000)})

	assert.Equal(t, uint64(50), repo.Blocks()[0].BlockTimeMs)
}

func TestBlockTimeFloorsAtOneMs(t *testing.T) {
	svc, repo, _ := newTestService(10)

	svc.HandleBlockResponses([]*client.Block{
		apiBlock(100, 1_000_000),
		apiBlock(101, 1_000_000), // zero delta
	})

	assert.Equal(t, uint64(1), repo.Blocks()[0].BlockTimeMs)
}

func TestHandleBlockResponsesPatchesLastProposed(t *testing.T) {
	svc, _, validatorRepo := newTestService(10)
	validatorRepo.ReplaceAll([]*models.ValidatorInfo{
		{Address: "0xproposer", VotingPower: 10, IsActive: true},
	})

	svc.HandleBlockResponses([]*client.Block{
		apiBlock(100, 1_000_000, metadataTx("0xproposer", 1, 1)),
	})

	v := validatorRepo.All()[0]
	if assert.NotNil(t, v.LastProposedBlockHeight) {
		assert.Equal(t, uint64(100), *v.LastProposedBlockHeight)
	}
}

func TestHandleBlockResponsesSkipsNilAndDuplicates(t *testing.T) {
	svc, repo, _ := newTestService(10)

	saved := svc.HandleBlockResponses([]*client.Block{
		nil,
		apiBlock(100, 1_000_000),
		apiBlock(100, 1_000_000),
	})

	assert.Equal(t, 1, saved)
	assert.Equal(t, 1, repo.Len())
}

func TestSnapshotEmptyLedger(t *testing.T) {
	svc, _, _ := newTestService(10)

	stats := svc.Snapshot()
	assert.Equal(t, uint64(0), stats.BlockHeight)
	assert.Equal(t, 0, stats.Tps)
	assert.Equal(t, NominalBlockTimeMs, stats.AvgBlockTimeMs)
	assert.Nil(t, stats.Consensus)
	assert.Empty(t, stats.RecentBlocks)
}

func TestSnapshotTpsAndAverages(t *testing.T) {
	svc, _, validatorRepo := newTestService(50)
	validatorRepo.ReplaceAll([]*models.ValidatorInfo{
		{Address: "0xaa", VotingPower: 60, IsActive: true},
		{Address: "0xbb", VotingPower: 40, IsActive: true},
	})

	// Five contiguous blocks, 100ms apart, 10 user transactions each.
	blocks := make([]*client.Block, 0, 5)
	for h := uint64(100); h < 105; h++ {
		txs := []client.Transaction{metadataTx("0xaa", h, 3)}
		for i := 0; i < 10; i++ {
			txs = append(txs, userTx(100))
		}
		blocks = append(blocks, apiBlock(h, h*100_000, txs...))
	}
	svc.HandleBlockResponses(blocks)

	stats := svc.Snapshot()
	assert.Equal(t, uint64(104), stats.BlockHeight)
	// 50 transactions over a 400ms span.
	assert.Equal(t, 125, stats.Tps)
	assert.Len(t, stats.RecentBlocks, 5)

	if assert.NotNil(t, stats.Consensus) {
		assert.Equal(t, 2, stats.Consensus.TotalValidators)
		assert.Equal(t, 2, stats.Consensus.ActiveValidators)
		assert.Equal(t, uint64(100), stats.Consensus.TotalVotingPower)
		assert.Equal(t, "0xaa", stats.Consensus.CurrentProposer)
		assert.Equal(t, uint64(104), *stats.Consensus.Round)
		assert.Equal(t, uint64(3), *stats.Consensus.Epoch)
		assert.Equal(t, []string{"0xaa"}, stats.Consensus.RecentProposers)
		// No bitvec on these blocks: optimistic 100%.
		assert.Equal(t, 100, stats.Consensus.VoteParticipationPercent)
	}
}

func TestSnapshotFewerThanTwoBlocksHasZeroTps(t *testing.T) {
	svc, _, _ := newTestService(10)
	svc.HandleBlockResponses([]*client.Block{apiBlock(100, 1_000_000, userTx(1))})

	assert.Equal(t, 0, svc.Snapshot().Tps)
}
