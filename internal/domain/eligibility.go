package domain

import "time"

type ReasonCode string

const (
	ReasonEligible                ReasonCode = "eligible"
	ReasonNotAuthenticated        ReasonCode = "not_authenticated"
	ReasonProfileNotFound         ReasonCode = "profile_not_found"
	ReasonVerificationPending     ReasonCode = "verification_pending"
	ReasonVerificationRejected    ReasonCode = "verification_rejected"
	ReasonVerificationRequired    ReasonCode = "verification_required"
	ReasonBiddingApprovalPending  ReasonCode = "bidding_approval_pending"
	ReasonBiddingApprovalRejected ReasonCode = "bidding_approval_rejected"
	ReasonBiddingBanned           ReasonCode = "bidding_banned"
	ReasonBiddingApprovalRequired ReasonCode = "bidding_approval_required"
	ReasonAccountTooNew           ReasonCode = "account_too_new"
	ReasonTooManyFailedBids       ReasonCode = "too_many_failed_bids"
	ReasonInsufficientActivity    ReasonCode = "insufficient_activity"
	ReasonCheckFailed             ReasonCode = "check_failed"

	ReasonItemNotFound ReasonCode = "item_not_found"
	ReasonOwnItem      ReasonCode = "own_item"
	ReasonUserBlocked  ReasonCode = "user_blocked"
	ReasonBiddingEnded ReasonCode = "bidding_ended"
	ReasonBidTooLow    ReasonCode = "bid_too_low"
)

// EligibilityResult is the verdict of an eligibility evaluation. DaysRemaining is
// set only for the account-age gate and RequiredBid only for a bid below minimum.
type EligibilityResult struct {
	Eligible                bool       `json:"eligible"`
	ReasonCode              ReasonCode `json:"reason_code"`
	ReasonMessage           string     `json:"reason_message"`
	RequiresVerification    bool       `json:"requires_verification"`
	RequiresBiddingApproval bool       `json:"requires_bidding_approval"`
	RequiresActivity        bool       `json:"requires_activity"`
	DaysRemaining           *int       `json:"days_remaining,omitempty"`
	RequiredBid             *float64   `json:"required_bid,omitempty"`
}

// EligibilityPolicy holds the numeric thresholds of the bidding policy chain.
type EligibilityPolicy struct {
	MinAccountAge      time.Duration
	MaxFailedBids      int
	MinMessages        int
	EnforceSellerBlock bool
}

func DefaultEligibilityPolicy() EligibilityPolicy {
	return EligibilityPolicy{
		MinAccountAge:      7 * 24 * time.Hour,
		MaxFailedBids:      5,
		MinMessages:        5,
		EnforceSellerBlock: true,
	}
}
