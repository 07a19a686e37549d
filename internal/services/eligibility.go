package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"auction-trust/internal/domain"
	"auction-trust/internal/observability/metrics"
	"auction-trust/pkg/logger"
)

const day = 24 * time.Hour

// EligibilityEvaluator decides whether a user may bid. Both entry points are total:
// policy failures, missing documents and store errors all come back as a
// non-eligible result, never as an error.
type EligibilityEvaluator struct {
	store  domain.DocumentStore
	blocks BlockChecker
	policy domain.EligibilityPolicy
	log    logger.Logger
	now    func() time.Time
}

func NewEligibilityEvaluator(
	store domain.DocumentStore,
	blocks BlockChecker,
	policy domain.EligibilityPolicy,
	log logger.Logger,
) *EligibilityEvaluator {
	return &EligibilityEvaluator{
		store:  store,
		blocks: blocks,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *EligibilityEvaluator) SetClock(now func() time.Time) {
	e.now = now
}

func (e *EligibilityEvaluator) EvaluateBiddingEligibility(ctx context.Context, userID string) domain.EligibilityResult {
	result := e.evaluateUser(ctx, userID)
	metrics.EligibilityDecisionsTotal.WithLabelValues("user", string(result.ReasonCode)).Inc()
	return result
}

// EvaluateItemBid runs the user chain and, if it passes, the listing checks for a
// bid of proposedBid on listingID.
func (e *EligibilityEvaluator) EvaluateItemBid(ctx context.Context, userID, listingID string, proposedBid float64) domain.EligibilityResult {
	result := e.evaluateItem(ctx, userID, listingID, proposedBid)
	metrics.EligibilityDecisionsTotal.WithLabelValues("item", string(result.ReasonCode)).Inc()
	return result
}

func (e *EligibilityEvaluator) evaluateUser(ctx context.Context, userID string) domain.EligibilityResult {
	if strings.TrimSpace(userID) == "" {
		return ineligible(domain.ReasonNotAuthenticated, "You must be signed in to bid")
	}

	doc, err := e.store.Get(ctx, domain.CollectionUsers, userID, domain.ReadDefault)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return ineligible(domain.ReasonProfileNotFound, "User profile not found")
	}
	if err != nil {
		e.log.Error("Failed to load user profile for eligibility",
			"user_id", userID,
			"error", err)
		return checkFailed()
	}

	return e.applyPolicy(domain.ProfileFromDocument(userID, doc))
}

// applyPolicy runs the ordered profile checks. The order matters: activity and
// abuse counters only mean something once the user is verified and authorized.
func (e *EligibilityEvaluator) applyPolicy(p domain.UserProfile) domain.EligibilityResult {
	if p.VerificationStatus != domain.VerificationApproved {
		var result domain.EligibilityResult
		switch p.VerificationStatus {
		case domain.VerificationPending:
			result = ineligible(domain.ReasonVerificationPending, "Your identity verification is pending admin review")
		case domain.VerificationRejected:
			result = ineligible(domain.ReasonVerificationRejected, "Your identity verification was rejected. Please resubmit your verification documents")
		default:
			result = ineligible(domain.ReasonVerificationRequired, "You must verify your identity before bidding")
		}
		result.RequiresVerification = true
		return result
	}

	if p.BiddingApprovalStatus != domain.BiddingApproved {
		var result domain.EligibilityResult
		switch p.BiddingApprovalStatus {
		case domain.BiddingPending:
			result = ineligible(domain.ReasonBiddingApprovalPending, "Your bidding application is pending admin review")
		case domain.BiddingRejected:
			result = ineligible(domain.ReasonBiddingApprovalRejected, "Your bidding application was rejected. You can reapply once your cooldown has ended")
		case domain.BiddingBanned:
			result = ineligible(domain.ReasonBiddingBanned, "You have been banned from bidding")
		default:
			result = ineligible(domain.ReasonBiddingApprovalRequired, "You must apply for bidding approval before placing bids")
		}
		result.RequiresBiddingApproval = true
		return result
	}

	// Profiles without a creation time predate the field and are not age gated.
	if p.AccountCreatedAt != nil {
		age := e.now().Sub(*p.AccountCreatedAt)
		if age < 0 {
			age = 0
		}
		if age < e.policy.MinAccountAge {
			minDays := int(e.policy.MinAccountAge / day)
			remaining := minDays - int(age/day)
			result := ineligible(domain.ReasonAccountTooNew,
				fmt.Sprintf("Your account must be at least %d days old to bid. %d day(s) remaining", minDays, remaining))
			result.DaysRemaining = &remaining
			return result
		}
	}

	// The legacy ban flag wins over an approved status.
	if p.BiddingBanned {
		result := ineligible(domain.ReasonBiddingBanned, "Your bidding privileges have been suspended")
		result.RequiresBiddingApproval = true
		return result
	}

	if p.FailedBidsCount > e.policy.MaxFailedBids {
		return ineligible(domain.ReasonTooManyFailedBids, "Too many failed bids on your account. Please contact support")
	}

	if p.PostsCount <= 0 && p.MessagesCount < e.policy.MinMessages {
		result := ineligible(domain.ReasonInsufficientActivity,
			fmt.Sprintf("Post an item or send at least %d messages before bidding", e.policy.MinMessages))
		result.RequiresActivity = true
		return result
	}

	return domain.EligibilityResult{
		Eligible:      true,
		ReasonCode:    domain.ReasonEligible,
		ReasonMessage: "All criteria met",
	}
}

func (e *EligibilityEvaluator) evaluateItem(ctx context.Context, userID, listingID string, proposedBid float64) domain.EligibilityResult {
	result := e.evaluateUser(ctx, userID)
	if !result.Eligible {
		return result
	}

	if strings.TrimSpace(listingID) == "" {
		return ineligible(domain.ReasonItemNotFound, "Item not found")
	}

	doc, err := e.store.Get(ctx, domain.CollectionListings, listingID, domain.ReadDefault)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return ineligible(domain.ReasonItemNotFound, "Item not found")
	}
	if err != nil {
		e.log.Error("Failed to load listing for eligibility",
			"user_id", userID,
			"listing_id", listingID,
			"error", err)
		return checkFailed()
	}
	listing := domain.ListingFromDocument(listingID, doc)

	if userID == listing.SellerID {
		return ineligible(domain.ReasonOwnItem, "You cannot bid on your own item")
	}

	if e.policy.EnforceSellerBlock && e.blocks != nil && listing.SellerID != "" && e.blocks.IsBlocked(ctx, userID, listing.SellerID) {
		return ineligible(domain.ReasonUserBlocked, "You cannot bid on this item")
	}

	if listing.BiddingEndTime != nil && e.now().After(*listing.BiddingEndTime) {
		return ineligible(domain.ReasonBiddingEnded, "Bidding has ended for this item")
	}

	if math.IsNaN(proposedBid) || math.IsInf(proposedBid, 0) {
		return ineligible(domain.ReasonBidTooLow, "Bid amount must be a finite number")
	}

	requiredBid := proposedBid + listing.BidIncrement
	if requiredBid < listing.MinimumBid {
		result := ineligible(domain.ReasonBidTooLow,
			fmt.Sprintf("Bid plus increment (%.2f) is below the minimum bid of %.2f", requiredBid, listing.MinimumBid))
		result.RequiredBid = &requiredBid
		return result
	}

	return domain.EligibilityResult{
		Eligible:      true,
		ReasonCode:    domain.ReasonEligible,
		ReasonMessage: "All criteria met",
	}
}

func ineligible(code domain.ReasonCode, message string) domain.EligibilityResult {
	return domain.EligibilityResult{
		Eligible:      false,
		ReasonCode:    code,
		ReasonMessage: message,
	}
}

func checkFailed() domain.EligibilityResult {
	return ineligible(domain.ReasonCheckFailed, "Error checking eligibility")
}
