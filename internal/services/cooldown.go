package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-trust/internal/domain"
	"auction-trust/internal/observability/metrics"
	"auction-trust/pkg/logger"

	"github.com/google/uuid"
)

// ModerationCooldownManager applies the escalating rejection cooldown to the
// verification and bidding tracks. Both tracks run through the same code and
// differ only in the field names returned by domain.Track.Fields.
//
// Resubmission checks fail closed: if the store cannot be read the user may not
// resubmit.
//
// RecordRejection reads the counter and writes counter+1 in two steps. Two
// moderators rejecting the same track at the same moment can both write N+1; the
// adapters make each write atomic but there is no compare-and-set across the read.
type ModerationCooldownManager struct {
	store  domain.DocumentStore
	events domain.EventPublisher
	policy domain.CooldownPolicy
	log    logger.Logger
	now    func() time.Time
}

func NewModerationCooldownManager(
	store domain.DocumentStore,
	events domain.EventPublisher,
	policy domain.CooldownPolicy,
	log logger.Logger,
) *ModerationCooldownManager {
	return &ModerationCooldownManager{
		store:  store,
		events: events,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *ModerationCooldownManager) SetClock(now func() time.Time) {
	m.now = now
}

// RecordRejection increments the track's rejection counter and starts a cooldown
// of counter*StepDays days from now.
func (m *ModerationCooldownManager) RecordRejection(ctx context.Context, userID string, track domain.Track) domain.RejectionOutcome {
	outcome := m.recordRejection(ctx, userID, track)
	metrics.ModerationActionsTotal.WithLabelValues(string(track), "reject", resultLabel(outcome.Success)).Inc()
	return outcome
}

func (m *ModerationCooldownManager) recordRejection(ctx context.Context, userID string, track domain.Track) domain.RejectionOutcome {
	fields, err := track.Fields()
	if err != nil {
		return domain.RejectionOutcome{Success: false, Message: "unknown moderation track"}
	}
	if strings.TrimSpace(userID) == "" {
		return domain.RejectionOutcome{Success: false, Message: "user document not found"}
	}

	doc, err := m.store.Get(ctx, domain.CollectionUsers, userID, domain.ReadStrong)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.RejectionOutcome{Success: false, Message: "user document not found"}
	}
	if err != nil {
		m.log.Error("Failed to read user for rejection",
			"user_id", userID,
			"track", track,
			"error", err)
		return domain.RejectionOutcome{Success: false, Message: "failed to record rejection"}
	}

	count := doc.Int(fields.RejectionCount)
	if count < 0 {
		count = 0
	}
	newCount := count + 1
	cooldownDays := m.policy.CooldownDays(newCount)
	now := m.now()
	cooldownEnd := now.Add(time.Duration(cooldownDays) * day)

	err = m.store.Update(ctx, domain.CollectionUsers, userID, domain.Document{
		fields.Status:         domain.StatusRejected,
		fields.RejectionCount: newCount,
		fields.CooldownEnd:    domain.Timestamp(cooldownEnd),
		fields.RejectedAt:     domain.Timestamp(now),
	})
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.RejectionOutcome{Success: false, Message: "user document not found"}
	}
	if err != nil {
		m.log.Error("Failed to persist rejection",
			"user_id", userID,
			"track", track,
			"rejection_count", newCount,
			"error", err)
		return domain.RejectionOutcome{Success: false, Message: "failed to record rejection"}
	}

	m.log.Info("Rejection recorded",
		"user_id", userID,
		"track", track,
		"rejection_count", newCount,
		"cooldown_days", cooldownDays,
		"cooldown_end", cooldownEnd)

	m.publish(ctx, domain.ModerationRejected, track, userID, &cooldownEnd)

	return domain.RejectionOutcome{
		Success:      true,
		CooldownDays: cooldownDays,
		Message:      fmt.Sprintf("Rejection recorded. Resubmission available in %d days", cooldownDays),
		CooldownEnd:  cooldownEnd,
	}
}

// CanResubmit reports whether the track's cooldown has ended. A user without a
// document has no history and is not restricted.
func (m *ModerationCooldownManager) CanResubmit(ctx context.Context, userID string, track domain.Track) bool {
	allowed, result := m.canResubmit(ctx, userID, track)
	metrics.ResubmissionChecksTotal.WithLabelValues(string(track), result).Inc()
	return allowed
}

func (m *ModerationCooldownManager) canResubmit(ctx context.Context, userID string, track domain.Track) (bool, string) {
	fields, err := track.Fields()
	if err != nil {
		return false, "error"
	}

	doc, err := m.store.Get(ctx, domain.CollectionUsers, userID, domain.ReadStrong)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return true, "allowed"
	}
	if err != nil {
		m.log.Error("Failed to read cooldown, denying resubmission",
			"user_id", userID,
			"track", track,
			"error", err)
		return false, "error"
	}

	if !m.cooldownOver(doc, fields) {
		return false, "cooling_down"
	}
	return true, "allowed"
}

// cooldownOver treats a missing cooldown end as the zero instant.
func (m *ModerationCooldownManager) cooldownOver(doc domain.Document, fields domain.TrackFields) bool {
	end, ok := doc.Time(fields.CooldownEnd)
	if !ok {
		return true
	}
	return !m.now().Before(end)
}

// RecordApproval marks the track approved. Rejection history is kept so a later
// rejection keeps escalating.
func (m *ModerationCooldownManager) RecordApproval(ctx context.Context, userID string, track domain.Track) domain.ApprovalOutcome {
	outcome := m.recordApproval(ctx, userID, track)
	metrics.ModerationActionsTotal.WithLabelValues(string(track), "approve", resultLabel(outcome.Success)).Inc()
	return outcome
}

func (m *ModerationCooldownManager) recordApproval(ctx context.Context, userID string, track domain.Track) domain.ApprovalOutcome {
	fields, err := track.Fields()
	if err != nil {
		return domain.ApprovalOutcome{Success: false, Message: "unknown moderation track"}
	}
	if strings.TrimSpace(userID) == "" {
		return domain.ApprovalOutcome{Success: false, Message: "user document not found"}
	}

	err = m.store.Update(ctx, domain.CollectionUsers, userID, domain.Document{
		fields.Status:     domain.StatusApproved,
		fields.ApprovedAt: domain.Timestamp(m.now()),
	})
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.ApprovalOutcome{Success: false, Message: "user document not found"}
	}
	if err != nil {
		m.log.Error("Failed to persist approval",
			"user_id", userID,
			"track", track,
			"error", err)
		return domain.ApprovalOutcome{Success: false, Message: "failed to record approval"}
	}

	m.log.Info("Approval recorded", "user_id", userID, "track", track)
	m.publish(ctx, domain.ModerationApproved, track, userID, nil)

	return domain.ApprovalOutcome{Success: true, Message: "Approval recorded"}
}

// TrackState returns the current moderation state of one track.
func (m *ModerationCooldownManager) TrackState(ctx context.Context, userID string, track domain.Track) (domain.TrackState, error) {
	fields, err := track.Fields()
	if err != nil {
		return domain.TrackState{}, err
	}

	doc, err := m.store.Get(ctx, domain.CollectionUsers, userID, domain.ReadStrong)
	if err != nil {
		return domain.TrackState{}, fmt.Errorf("failed to read user %s: %w", userID, err)
	}

	state := domain.TrackState{
		Track:          track,
		Status:         doc.String(fields.Status),
		RejectionCount: doc.Int(fields.RejectionCount),
		CanResubmit:    m.cooldownOver(doc, fields),
	}
	if state.Status == "" {
		state.Status = fields.InitialStatus
	}
	if end, ok := doc.Time(fields.CooldownEnd); ok {
		state.CooldownEnd = &end
	}
	if rejectedAt, ok := doc.Time(fields.RejectedAt); ok {
		state.RejectedAt = &rejectedAt
	}
	return state, nil
}

// publish is best effort: the moderation decision is already stored.
func (m *ModerationCooldownManager) publish(ctx context.Context, eventType domain.ModerationEventType, track domain.Track, userID string, cooldownEnd *time.Time) {
	if m.events == nil {
		return
	}
	event := &domain.ModerationEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Track:       track,
		UserID:      userID,
		CooldownEnd: cooldownEnd,
		Timestamp:   m.now(),
	}
	if err := m.events.PublishModerationEvent(ctx, event); err != nil {
		m.log.Warn("Failed to publish moderation event",
			"event_id", event.ID,
			"type", eventType,
			"user_id", userID,
			"error", err)
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
