package block

import (
	"math"
	"sort"

	"github.com/SeamMoney/aptos-consensus-streamer/client"
	"github.com/SeamMoney/aptos-consensus-streamer/models"
	"github.com/SeamMoney/aptos-consensus-streamer/validator"
	"github.com/SeamMoney/aptos-consensus-streamer/vote"
	"github.com/sirupsen/logrus"
)

const (
	// NominalBlockTimeMs stands in for the block time when the preceding
	// height is unknown (mainnet produces a block roughly every 94ms).
	NominalBlockTimeMs = 94

	// StatsWindow is how many of the newest ledger entries feed the TPS and
	// average block time aggregates.
	StatsWindow = 20
)

type Service struct {
	blockRepository     *Repository
	validatorRepository *validator.Repository
	logger              *logrus.Entry
}

func NewBlockService(blockRepository *Repository, validatorRepository *validator.Repository, logger *logrus.Entry) *Service {
	return &Service{
		blockRepository:     blockRepository,
		validatorRepository: validatorRepository,
		logger:              logger,
	}
}

// HandleBlockResponses converts a fetched batch into ledger records and
// saves them oldest first, so block times inside the batch can be derived
// from the batch itself. Returns how many records were newly stored.
func (s *Service) HandleBlockResponses(responses []*client.Block) int {
	batch := make([]*client.Block, 0, len(responses))
	timestamps := make(map[uint64]uint64, len(responses))
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		batch = append(batch, resp)
		timestamps[resp.BlockHeight.Value()] = resp.BlockTimestamp.Value()
	}
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].BlockHeight.Value() < batch[j].BlockHeight.Value()
	})

	saved := 0
	for _, resp := range batch {
		record := s.buildRecord(resp, timestamps)
		if !s.blockRepository.Save(record) {
			continue
		}
		saved++
		if record.Proposer != "" {
			s.validatorRepository.SetLastProposed(record.Proposer, record.Height)
		}
	}
	if saved > 0 {
		s.logger.WithFields(logrus.Fields{
			"saved":       saved,
			"last_height": s.blockRepository.LastHeight(),
		}).Debug("Blocks stored")
	}
	return saved
}

func (s *Service) buildRecord(resp *client.Block, batchTimestamps map[uint64]uint64) *models.BlockRecord {
	record := &models.BlockRecord{
		Height:          resp.BlockHeight.Value(),
		TimestampMicros: resp.BlockTimestamp.Value(),
	}
	record.BlockTimeMs = s.blockTime(record.Height, record.TimestampMicros, batchTimestamps)
	s.extractMetadata(resp, record)
	return record
}

// blockTime derives the gap to the preceding height, from the ledger or the
// same batch, floored at 1ms so rate math never sees a non-positive delta.
func (s *Service) blockTime(height, timestampMicros uint64, batchTimestamps map[uint64]uint64) uint64 {
	if height == 0 {
		return NominalBlockTimeMs
	}
	prev, ok := batchTimestamps[height-1]
	if !ok {
		prev, ok = s.blockRepository.TimestampAt(height - 1)
	}
	if !ok {
		return NominalBlockTimeMs
	}
	if timestampMicros <= prev {
		return 1
	}
	deltaMs := (timestampMicros - prev) / 1000
	if deltaMs < 1 {
		return 1
	}
	return deltaMs
}

// extractMetadata scans the block's transactions once: the block metadata
// transaction supplies the consensus fields, user transactions supply the
// gas price samples and counts. A block without a metadata transaction keeps
// its consensus fields absent rather than zeroed.
func (s *Service) extractMetadata(resp *client.Block, record *models.BlockRecord) {
	var gasSamples []uint64
	for i := range resp.Transactions {
		tx := &resp.Transactions[i]
		switch tx.Type {
		case client.TxTypeBlockMetadata:
			record.Proposer = tx.Proposer
			if tx.Round != nil {
				round := tx.Round.Value()
				record.Round = &round
			}
			if tx.Epoch != nil {
				epoch := tx.Epoch.Value()
				record.Epoch = &epoch
			}
			record.VotesBitvecHex = tx.VotesBitvecHex()
			record.FailedProposerIndices = make([]int, 0, len(tx.FailedProposerIndices))
			for _, idx := range tx.FailedProposerIndices {
				record.FailedProposerIndices = append(record.FailedProposerIndices, int(idx.Value()))
			}
		case client.TxTypeUser:
			record.TxCount++
			if tx.GasUnitPrice != nil {
				gasSamples = append(gasSamples, tx.GasUnitPrice.Value())
			}
			if tx.GasUsed != nil {
				record.GasUsed += tx.GasUsed.Value()
			}
		}
	}
	record.GasStats = gasStats(gasSamples)
}

// gasStats keeps the upper-middle median for even sample counts. Downstream
// consumers rely on this exact tie-break, so it must not be averaged.
func gasStats(samples []uint64) *models.GasStats {
	if len(samples) == 0 {
		return nil
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return &models.GasStats{
		Min:    samples[0],
		Max:    samples[len(samples)-1],
		Median: samples[len(samples)/2],
		Count:  len(samples),
	}
}

// Snapshot assembles the read-only view presentation consumes. It is a pure
// function of the current ledger and validator cache.
func (s *Service) Snapshot() *models.Stats {
	blocks := s.blockRepository.Blocks()
	stats := &models.Stats{
		RecentBlocks:   blocks,
		AvgBlockTimeMs: NominalBlockTimeMs,
	}
	if len(blocks) == 0 {
		return stats
	}
	stats.BlockHeight = blocks[0].Height

	window := blocks
	if len(window) > StatsWindow {
		window = window[:StatsWindow]
	}
	stats.Tps = tpsOf(window)
	stats.AvgBlockTimeMs = avgBlockTimeOf(window)
	stats.Consensus = s.consensusSnapshot(blocks[0])
	return stats
}

func tpsOf(window []*models.BlockRecord) int {
	if len(window) < 2 {
		return 0
	}
	newest := window[0].TimestampMicros
	oldest := window[len(window)-1].TimestampMicros
	spanMs := (newest - oldest) / 1000
	if newest <= oldest || spanMs == 0 {
		return 0
	}
	totalTx := 0
	for _, rec := range window {
		totalTx += rec.TxCount
	}
	return int(math.Round(float64(totalTx) / float64(spanMs) * 1000))
}

func avgBlockTimeOf(window []*models.BlockRecord) int {
	if len(window) == 0 {
		return NominalBlockTimeMs
	}
	var sum uint64
	for _, rec := range window {
		sum += rec.BlockTimeMs
	}
	return int(math.Round(float64(sum) / float64(len(window))))
}

func (s *Service) consensusSnapshot(latest *models.BlockRecord) *models.ConsensusSnapshot {
	validators := s.validatorRepository.All()
	participation, votes := vote.Decode(latest.VotesBitvecHex, validators)

	active := 0
	for _, v := range validators {
		if v.IsActive {
			active++
		}
	}

	return &models.ConsensusSnapshot{
		Epoch:                    latest.Epoch,
		Round:                    latest.Round,
		TotalValidators:          len(validators),
		ActiveValidators:         active,
		TotalVotingPower:         s.validatorRepository.TotalVotingPower(),
		CurrentProposer:          latest.Proposer,
		Validators:               validators,
		RecentProposers:          s.blockRepository.RecentProposers(),
		VoteParticipationPercent: participation,
		ValidatorVotes:           votes,
	}
}
