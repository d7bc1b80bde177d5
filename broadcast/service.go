package broadcast

import (
	"context"
	"encoding/json"

	"github.com/SeamMoney/aptos-consensus-streamer/models"
	"github.com/centrifugal/gocent"
	"github.com/sirupsen/logrus"
)

const (
	StatsChannel  = "stats"
	StatusChannel = "status"
)

// Service pushes read-only snapshots to the Centrifugo hub the dashboard
// frontend subscribes to. With no hub configured every publish is a no-op,
// which keeps the streamer usable as an in-process library.
type Service struct {
	client *gocent.Client
	ctx    context.Context
	logger *logrus.Entry
}

func NewService(env *models.StreamerEnvironment, logger *logrus.Entry) *Service {
	s := &Service{
		ctx:    context.Background(),
		logger: logger,
	}
	if env.WsLink != "" {
		s.client = gocent.New(gocent.Config{
			Addr: env.WsLink,
			Key:  env.WsKey,
		})
	}
	return s
}

func (s *Service) PublishStats(stats *models.Stats) {
	if stats == nil {
		return
	}
	msg, err := json.Marshal(stats)
	if err != nil {
		s.logger.Error(err)
		return
	}
	s.publish(StatsChannel, msg)
}

func (s *Service) PublishStatus(status *models.Status) {
	if status == nil {
		return
	}
	msg, err := json.Marshal(status)
	if err != nil {
		s.logger.Error(err)
		return
	}
	s.publish(StatusChannel, msg)
}

func (s *Service) publish(ch string, msg []byte) {
	if s.client == nil {
		return
	}
	err := s.client.Publish(s.ctx, ch, msg)
	if err != nil {
		s.logger.Warn(err)
	}
}
