package services

import (
	"context"
	"time"

	"auction-trust/internal/domain"
	"auction-trust/pkg/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// CooldownSweeper periodically announces rejections whose cooldown has ended so
// downstream services can tell the user they may resubmit. Each expiry is
// announced once: the user document records when it was announced.
type CooldownSweeper struct {
	cron       *cron.Cron
	schedule   string
	store      domain.DocumentStore
	events     domain.EventPublisher
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger
	now        func() time.Time
}

func NewCooldownSweeper(store domain.DocumentStore, events domain.EventPublisher, schedule string,
	log logger.Logger) *CooldownSweeper {
	return &CooldownSweeper{
		cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		store:    store,
		events:   events,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLeaderElection restricts sweeps to the instance holding leadership.
// Without it every instance sweeps.
func (s *CooldownSweeper) SetLeaderElection(leader domain.LeaderElection, instanceID string) {
	s.leader = leader
	s.instanceID = instanceID
}

func (s *CooldownSweeper) SetClock(now func() time.Time) {
	s.now = now
}

func (s *CooldownSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting cooldown sweeper", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		if !s.shouldRun(ctx) {
			return
		}
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("Cooldown sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CooldownSweeper) Stop() error {
	s.log.Info("Stopping cooldown sweeper")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CooldownSweeper) shouldRun(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Warn("Leader check failed, skipping sweep", "instance_id", s.instanceID, "error", err)
		return false
	}
	return isLeader
}

// Sweep announces every expired, not yet announced cooldown on both tracks and
// returns how many were announced. A failure on one user does not stop the sweep;
// the first store error is returned after all tracks have been visited.
func (s *CooldownSweeper) Sweep(ctx context.Context) (int, error) {
	var firstErr error
	announced := 0

	for _, track := range domain.Tracks() {
		n, err := s.sweepTrack(ctx, track)
		announced += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if announced > 0 {
		s.log.Info("Cooldown sweep complete", "announced", announced)
	}
	return announced, firstErr
}

func (s *CooldownSweeper) sweepTrack(ctx context.Context, track domain.Track) (int, error) {
	fields, err := track.Fields()
	if err != nil {
		return 0, err
	}

	users, err := s.store.Query(ctx, domain.CollectionUsers, domain.Predicate{
		fields.Status: domain.StatusRejected,
	}, domain.ReadStrong)
	if err != nil {
		return 0, err
	}

	now := s.now()
	announced := 0
	var firstErr error

	for _, user := range users {
		end, ok := user.Data.Time(fields.CooldownEnd)
		if !ok || now.Before(end) {
			continue
		}
		if notified, ok := user.Data.Time(fields.CooldownNotifiedAt); ok && !notified.Before(end) {
			continue
		}

		if s.events != nil {
			cooldownEnd := end
			event := &domain.ModerationEvent{
				ID:          uuid.NewString(),
				Type:        domain.ModerationCooldownExpired,
				Track:       track,
				UserID:      user.ID,
				CooldownEnd: &cooldownEnd,
				Timestamp:   now,
			}
			if err := s.events.PublishModerationEvent(ctx, event); err != nil {
				s.log.Error("Failed to publish cooldown expiry", "user_id", user.ID, "track", track, "error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}

		err := s.store.Update(ctx, domain.CollectionUsers, user.ID, domain.Document{
			fields.CooldownNotifiedAt: domain.Timestamp(now),
		})
		if err != nil {
			s.log.Error("Failed to mark cooldown expiry announced", "user_id", user.ID, "track", track, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		announced++
	}

	return announced, firstErr
}
