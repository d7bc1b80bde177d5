package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SeamMoney/aptos-consensus-streamer/block"
	"github.com/SeamMoney/aptos-consensus-streamer/broadcast"
	"github.com/SeamMoney/aptos-consensus-streamer/client"
	"github.com/SeamMoney/aptos-consensus-streamer/metrics"
	"github.com/SeamMoney/aptos-consensus-streamer/models"
	"github.com/SeamMoney/aptos-consensus-streamer/validator"
	"github.com/SeamMoney/aptos-consensus-streamer/vote"
	"github.com/sirupsen/logrus"
)

const (
	// rateLimitFloor is the minimum poll interval after a 429.
	rateLimitFloor = 2 * time.Second
	// backoffCeiling caps the adaptive interval under sustained failure.
	backoffCeiling = 10 * time.Second
	// recentSuccessWindow: a 429 does not flip the connected flag while a
	// success this recent is still on screen.
	recentSuccessWindow = 10 * time.Second
	// watchdogInterval is the cadence of the staleness check.
	watchdogInterval = 5 * time.Second

	msgRateLimited = "Rate limited. Retrying in %ds..."
	msgErrored     = "Connection issues. Retrying..."
	msgStale       = "Data may be stale. Reconnecting..."
)

// Streamer owns all mutable polling state. One poll cycle runs at a time;
// every network switch bumps the generation so loops scheduled under the old
// selection exit without touching shared state.
type Streamer struct {
	env                 *models.StreamerEnvironment
	blockRepository     *block.Repository
	blockService        *block.Service
	validatorRepository *validator.Repository
	validatorService    *validator.Service
	broadcastService    *broadcast.Service
	metrics             *metrics.Metrics
	logger              *logrus.Entry

	mu                sync.Mutex
	api               *client.Client
	generation        uint64
	lastSeenHeight    uint64
	rateLimitedUntil  time.Time
	baseInterval      time.Duration
	consecutiveErrors int
	lastSuccess       time.Time
	isPolling         bool
	connected         bool
	lastError         string
	stats             *models.Stats
}

func NewStreamer(env *models.StreamerEnvironment, m *metrics.Metrics, logger *logrus.Entry) *Streamer {
	blockRepository := block.NewRepository(env.LedgerCapacity)
	validatorRepository := validator.NewRepository()

	return &Streamer{
		env:                 env,
		blockRepository:     blockRepository,
		blockService:        block.NewBlockService(blockRepository, validatorRepository, logger),
		validatorRepository: validatorRepository,
		validatorService:    validator.NewService(validatorRepository, logger),
		broadcastService:    broadcast.NewService(env, logger),
		metrics:             m,
		logger:              logger,
		baseInterval:        time.Duration(env.PollIntervalMs) * time.Millisecond,
	}
}

// Run selects the configured network and blocks on the staleness watchdog
// until the context is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.SwitchNetwork(ctx, s.env.Network); err != nil {
		return err
	}

	watchdog := time.NewTicker(watchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watchdog.C:
			s.checkStaleness()
		}
	}
}

// SwitchNetwork resets all ledger, validator and timing state and starts a
// poll loop under a new generation. Loops from the previous selection detect
// the bump and terminate without mutating anything.
func (s *Streamer) SwitchNetwork(ctx context.Context, network string) error {
	api, err := client.New(network, s.env.NodeApi, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.api = api
	s.lastSeenHeight = 0
	s.rateLimitedUntil = time.Time{}
	s.baseInterval = time.Duration(s.env.PollIntervalMs) * time.Millisecond
	s.consecutiveErrors = 0
	s.lastSuccess = time.Time{}
	s.connected = false
	s.lastError = ""
	s.stats = nil
	s.blockRepository.Reset()
	s.validatorRepository.Reset()
	s.validatorService.Reset()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"network":    network,
		"base_url":   api.BaseURL(),
		"generation": gen,
	}).Info("starting poll loop")

	go s.pollLoop(ctx, gen, api)
	return nil
}

func (s *Streamer) pollLoop(ctx context.Context, gen uint64, api *client.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.delay()):
		}
		if !s.isLive(gen) {
			return
		}
		if s.inCooldown() {
			continue
		}
		s.pollOnce(ctx, gen, api)
	}
}

func (s *Streamer) pollOnce(ctx context.Context, gen uint64, api *client.Client) {
	if !s.beginPoll(gen) {
		return
	}
	defer s.endPoll()

	s.metrics.PollsTotal.Inc()

	info, err := api.LedgerInfo(ctx)
	if err != nil {
		s.handleFailure(gen, err)
		return
	}

	heights := s.heightsToFetch(info.BlockHeight.Value())
	blocks, rateLimit := fetchBatch(ctx, api, heights)

	saved, live := s.ingest(gen, blocks, info.BlockHeight.Value())
	if !live {
		return
	}

	if rateLimit > 0 {
		// A mixed batch still changed the ledger; the snapshot follows
		// every ledger mutation, cooldown or not.
		if saved > 0 {
			s.publishSnapshot(gen)
		}
		s.handleRateLimit(gen, rateLimit)
		return
	}

	s.handleSuccess(gen)
	s.refreshValidators(ctx, gen, api)
	s.publishSnapshot(gen)
}

// heightsToFetch picks the batch for this cycle: a fixed backfill window on
// the first successful height, afterwards only the delta of new heights,
// capped so a long outage cannot trigger an unbounded burst.
func (s *Streamer) heightsToFetch(head uint64) []uint64 {
	s.mu.Lock()
	lastSeen := s.lastSeenHeight
	s.mu.Unlock()

	var from, to uint64
	if lastSeen == 0 {
		to = head
		batch := uint64(s.env.BackfillBatch)
		if to+1 > batch {
			from = to + 1 - batch
		} else {
			from = 1
		}
	} else {
		if head <= lastSeen {
			return nil
		}
		from = lastSeen + 1
		to = head
		limit := uint64(s.env.MaxDeltaPerCycle)
		if to-from+1 > limit {
			from = to + 1 - limit
		}
	}

	heights := make([]uint64, 0, to-from+1)
	for h := from; h <= to; h++ {
		heights = append(heights, h)
	}
	return heights
}

// fetchBatch fans the height batch out in parallel and joins on every
// request. Individual failures leave a nil slot; a 429 anywhere in the batch
// is reported back so the caller can start the cooldown.
func fetchBatch(ctx context.Context, api *client.Client, heights []uint64) ([]*client.Block, time.Duration) {
	if len(heights) == 0 {
		return nil, 0
	}

	results := make([]*client.Block, len(heights))
	var mu sync.Mutex
	var rateLimit time.Duration
	var wg sync.WaitGroup

	for i, height := range heights {
		wg.Add(1)
		go func(i int, height uint64) {
			defer wg.Done()
			b, err := api.BlockByHeight(ctx, height, true)
			if err != nil {
				if d, ok := client.IsRateLimited(err); ok {
					mu.Lock()
					if rateLimit == 0 {
						rateLimit = d
					}
					mu.Unlock()
				}
				return
			}
			results[i] = b
		}(i, height)
	}
	wg.Wait()

	return results, rateLimit
}

// ingest stores a fetched batch, unless the generation moved on while the
// requests were in flight. Holding the state lock makes the liveness check
// and the ledger mutation atomic with respect to SwitchNetwork.
func (s *Streamer) ingest(gen uint64, blocks []*client.Block, head uint64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return 0, false
	}
	saved := s.blockService.HandleBlockResponses(blocks)
	if head > s.lastSeenHeight {
		s.lastSeenHeight = head
	}
	if saved > 0 {
		s.logger.WithFields(logrus.Fields{
			"saved":  saved,
			"height": head,
		}).Debug("ledger updated")
	}
	return saved, true
}

func (s *Streamer) handleFailure(gen uint64, err error) {
	if d, ok := client.IsRateLimited(err); ok {
		s.handleRateLimit(gen, d)
		return
	}
	s.metrics.PollErrorsTotal.Inc()
	s.logger.Warn("poll cycle failed: ", err)
	s.onError(gen)
	s.publishStatus()
}

func (s *Streamer) handleRateLimit(gen uint64, d time.Duration) {
	s.metrics.RateLimitsTotal.Inc()
	s.onRateLimited(gen, d)
	s.publishStatus()
}

func (s *Streamer) handleSuccess(gen uint64) {
	s.onSuccess(gen)
	s.publishStatus()
}

// onSuccess resets the adaptive state to its configured defaults. Like every
// transition below, it re-checks the generation under the lock so a cycle in
// flight during a network switch cannot leak its outcome into fresh state.
func (s *Streamer) onSuccess(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.consecutiveErrors = 0
	s.lastSuccess = time.Now()
	s.baseInterval = time.Duration(s.env.PollIntervalMs) * time.Millisecond
	s.connected = true
	s.lastError = ""
	s.metrics.Connected.Set(1)
}

// onError grows the interval by half per consecutive failure, up to the
// ceiling, and flips the connected flag once the threshold is reached.
func (s *Streamer) onError(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.consecutiveErrors++
	s.baseInterval = s.baseInterval * 3 / 2
	if s.baseInterval > backoffCeiling {
		s.baseInterval = backoffCeiling
	}
	if s.consecutiveErrors >= s.env.ErrorThreshold {
		s.connected = false
		s.lastError = msgErrored
		s.metrics.Connected.Set(0)
	}
}

// onRateLimited starts the cooldown. Recent data keeps the UI in its
// connected state; the error only surfaces when the screen is already stale.
func (s *Streamer) onRateLimited(gen uint64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	now := time.Now()
	s.rateLimitedUntil = now.Add(d)
	if s.baseInterval < rateLimitFloor {
		s.baseInterval = rateLimitFloor
	}
	if s.lastSuccess.IsZero() || now.Sub(s.lastSuccess) > recentSuccessWindow {
		s.connected = false
		s.lastError = fmt.Sprintf(msgRateLimited, int(d.Seconds()))
		s.metrics.Connected.Set(0)
	}
}

// checkStaleness surfaces an advisory message when no poll has succeeded
// within the threshold and no cooldown explains the silence. The connected
// flag is left alone.
func (s *Streamer) checkStaleness() {
	s.mu.Lock()
	stale := !s.lastSuccess.IsZero() &&
		time.Since(s.lastSuccess) > time.Duration(s.env.StaleThresholdMs)*time.Millisecond &&
		time.Now().After(s.rateLimitedUntil)
	if stale {
		s.lastError = msgStale
	}
	s.mu.Unlock()
	if stale {
		s.logger.Warn("no successful poll within staleness threshold")
		s.publishStatus()
	}
}

// refreshValidators runs the throttled validator set refresh after a
// successful cycle. Failures never affect connection status; a 429 only
// records the cooldown.
func (s *Streamer) refreshValidators(ctx context.Context, gen uint64, api *client.Client) {
	if s.inCooldown() || !s.isLive(gen) {
		return
	}
	err := s.validatorService.Refresh(ctx, api)
	if err == nil {
		return
	}
	if d, ok := client.IsRateLimited(err); ok {
		s.mu.Lock()
		if s.generation == gen {
			s.rateLimitedUntil = time.Now().Add(d)
		}
		s.mu.Unlock()
	}
}

// publishSnapshot recomputes the read-only snapshot and pushes it out.
func (s *Streamer) publishSnapshot(gen uint64) {
	if !s.isLive(gen) {
		return
	}
	stats := s.blockService.Snapshot()

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.stats = stats
	s.mu.Unlock()

	s.metrics.BlockHeight.Set(float64(stats.BlockHeight))
	s.metrics.Tps.Set(float64(stats.Tps))
	s.broadcastService.PublishStats(stats)
}

func (s *Streamer) publishStatus() {
	status := s.Status()
	s.broadcastService.PublishStatus(&status)
}

// Stats returns the last published snapshot, or an empty one before the
// first successful cycle.
func (s *Streamer) Stats() *models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return &models.Stats{AvgBlockTimeMs: block.NominalBlockTimeMs}
	}
	return s.stats
}

func (s *Streamer) Status() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Status{
		Connected: s.connected,
		Error:     s.lastError,
	}
}

func (s *Streamer) delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseInterval
}

func (s *Streamer) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Streamer) isLive(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *Streamer) inCooldown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.rateLimitedUntil)
}

// beginPoll is the single-flight guard: one cycle at a time, never inside a
// cooldown, never under a stale generation.
func (s *Streamer) beginPoll(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isPolling || s.generation != gen || time.Now().Before(s.rateLimitedUntil) {
		return false
	}
	s.isPolling = true
	return true
}

func (s *Streamer) endPoll() {
	s.mu.Lock()
	s.isPolling = false
	s.mu.Unlock()
}

// ValidatorCount is a convenience for consumers sizing vote displays before
// the first validator refresh lands.
func (s *Streamer) ValidatorCount() int {
	if n := s.validatorRepository.Count(); n > 0 {
		return n
	}
	return vote.DefaultValidatorCount
}
