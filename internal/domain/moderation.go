package domain

import (
	"fmt"
	"time"
)

// Track is one of the two independent moderation workflows. Both share the same
// escalation law and differ only in the user fields they touch.
type Track string

const (
	TrackVerification Track = "verification"
	TrackBidding      Track = "bidding"
)

const (
	StatusRejected = "rejected"
	StatusApproved = "approved"
)

// TrackFields names the users/{id} fields that belong to a track.
type TrackFields struct {
	Status             string
	InitialStatus      string
	RejectionCount     string
	CooldownEnd        string
	RejectedAt         string
	ApprovedAt         string
	CooldownNotifiedAt string
}

var trackFields = map[Track]TrackFields{
	TrackVerification: fieldsForPrefix(string(TrackVerification), FieldVerificationStatus, string(VerificationNotVerified)),
	TrackBidding:      fieldsForPrefix(string(TrackBidding), FieldBiddingApprovalStatus, string(BiddingNotApplied)),
}

func fieldsForPrefix(prefix, statusField, initialStatus string) TrackFields {
	return TrackFields{
		Status:             statusField,
		InitialStatus:      initialStatus,
		RejectionCount:     prefix + "RejectionCount",
		CooldownEnd:        prefix + "CooldownEnd",
		RejectedAt:         prefix + "RejectedAt",
		ApprovedAt:         prefix + "ApprovedAt",
		CooldownNotifiedAt: prefix + "CooldownNotifiedAt",
	}
}

func Tracks() []Track {
	return []Track{TrackVerification, TrackBidding}
}

func ParseTrack(s string) (Track, error) {
	t := Track(s)
	if _, ok := trackFields[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTrack, s)
	}
	return t, nil
}

func (t Track) Fields() (TrackFields, error) {
	f, ok := trackFields[t]
	if !ok {
		return TrackFields{}, fmt.Errorf("%w: %q", ErrUnknownTrack, string(t))
	}
	return f, nil
}

// CooldownPolicy: the n-th rejection on a track blocks resubmission for n*StepDays days.
type CooldownPolicy struct {
	StepDays int
}

func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{StepDays: 3}
}

func (p CooldownPolicy) CooldownDays(rejectionCount int) int {
	return rejectionCount * p.StepDays
}

type RejectionOutcome struct {
	Success      bool      `json:"success"`
	CooldownDays int       `json:"cooldown_days"`
	Message      string    `json:"message"`
	CooldownEnd  time.Time `json:"cooldown_end,omitempty"`
}

type ApprovalOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TrackState is a read view of one user's moderation track.
type TrackState struct {
	Track          Track      `json:"track"`
	Status         string     `json:"status"`
	RejectionCount int        `json:"rejection_count"`
	CooldownEnd    *time.Time `json:"cooldown_end,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
	CanResubmit    bool       `json:"can_resubmit"`
}

type ModerationEventType string

const (
	ModerationRejected        ModerationEventType = "rejected"
	ModerationApproved        ModerationEventType = "approved"
	ModerationCooldownExpired ModerationEventType = "cooldown_expired"
)

type ModerationEvent struct {
	ID          string              `json:"id"`
	Type        ModerationEventType `json:"type"`
	Track       Track               `json:"track"`
	UserID      string              `json:"user_id"`
	CooldownEnd *time.Time          `json:"cooldown_end,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}
