package validator

import (
	"context"
	"sync"
	"time"

	"github.com/SeamMoney/aptos-consensus-streamer/client"
	"github.com/SeamMoney/aptos-consensus-streamer/models"
	"github.com/sirupsen/logrus"
)

// RefreshInterval is the minimum gap between two validator set fetches.
// Validator churn is slow, so the cache cadence is decoupled from block
// polling.
const RefreshInterval = 60 * time.Second

type Service struct {
	repository *Repository
	logger     *logrus.Entry

	mu          sync.Mutex
	lastRefresh time.Time
}

func NewService(repository *Repository, logger *logrus.Entry) *Service {
	return &Service{
		repository: repository,
		logger:     logger,
	}
}

// Refresh fetches the active validator set and wholesale-replaces the cache.
// It is a no-op inside the throttle window. The returned error lets the poll
// engine record a rate-limit cooldown; callers otherwise swallow failures,
// since a stale validator set is not a connection problem.
func (s *Service) Refresh(ctx context.Context, api *client.Client) error {
	s.mu.Lock()
	if time.Since(s.lastRefresh) < RefreshInterval && !s.lastRefresh.IsZero() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	set, err := api.ValidatorSet(ctx)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"base_url": api.BaseURL(),
		}).Warn("validator set refresh failed: ", err)
		return err
	}

	validators := make([]*models.ValidatorInfo, 0, len(set.ActiveValidators))
	for _, entry := range set.ActiveValidators {
		validators = append(validators, &models.ValidatorInfo{
			Address:     entry.Addr,
			VotingPower: entry.VotingPower.Value(),
			IsActive:    true,
		})
	}
	s.repository.ReplaceAll(validators)

	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"validators": len(validators),
	}).Debug("validator set refreshed")
	return nil
}

// Reset clears the throttle window so the next refresh runs immediately.
// Called on network switch together with Repository.Reset.
func (s *Service) Reset() {
	s.mu.Lock()
	s.lastRefresh = time.Time{}
	s.mu.Unlock()
}
