package domain

import (
	"time"
)

// Store collections and field names. These are shared with the marketplace apps and
// must not be renamed.
const (
	CollectionUsers    = "users"
	CollectionListings = "posts"
	CollectionBlocks   = "blocks"

	FieldVerificationStatus    = "verificationStatus"
	FieldBiddingApprovalStatus = "biddingApprovalStatus"
	FieldAccountCreatedAt      = "accountCreatedAt"
	FieldPostsCount            = "postsCount"
	FieldMessagesCount         = "messagesCount"
	FieldFailedBidsCount       = "failedBidsCount"
	FieldBiddingBanned         = "biddingBanned"

	FieldSellerID       = "userId"
	FieldMinimumBid     = "minimumBid"
	FieldBidIncrement   = "bidIncrement"
	FieldBiddingEndTime = "biddingEndTime"

	FieldBlockerID     = "blockerId"
	FieldBlockedUserID = "blockedUserId"
	FieldCreatedAt     = "createdAt"
)

type VerificationStatus string

const (
	VerificationNotVerified VerificationStatus = "not_verified"
	VerificationPending     VerificationStatus = "pending"
	VerificationApproved    VerificationStatus = "approved"
	VerificationRejected    VerificationStatus = "rejected"
)

type BiddingApprovalStatus string

const (
	BiddingNotApplied BiddingApprovalStatus = "not_applied"
	BiddingPending    BiddingApprovalStatus = "pending"
	BiddingApproved   BiddingApprovalStatus = "approved"
	BiddingRejected   BiddingApprovalStatus = "rejected"
	BiddingBanned     BiddingApprovalStatus = "banned"
)

// UserProfile is the subset of users/{id} read by the eligibility chain.
// AccountCreatedAt is nil on legacy profiles.
type UserProfile struct {
	ID                    string
	VerificationStatus    VerificationStatus
	BiddingApprovalStatus BiddingApprovalStatus
	AccountCreatedAt      *time.Time
	PostsCount            int
	MessagesCount         int
	FailedBidsCount       int
	BiddingBanned         bool
}

// Listing is an auctioned item as stored in posts/{id}.
type Listing struct {
	ID             string
	SellerID       string
	MinimumBid     float64
	BidIncrement   float64
	BiddingEndTime *time.Time
}

// BlockEdge is one directed block. Only the blocker creates it.
type BlockEdge struct {
	ID            string
	BlockerID     string
	BlockedUserID string
	CreatedAt     time.Time
}

const defaultBidAmount = 1.0

// ProfileFromDocument decodes a users document. Missing or malformed fields take
// their zero value; statuses default to the "nothing submitted" value.
func ProfileFromDocument(id string, doc Document) UserProfile {
	p := UserProfile{
		ID:                    id,
		VerificationStatus:    VerificationStatus(doc.String(FieldVerificationStatus)),
		BiddingApprovalStatus: BiddingApprovalStatus(doc.String(FieldBiddingApprovalStatus)),
		PostsCount:            doc.Int(FieldPostsCount),
		MessagesCount:         doc.Int(FieldMessagesCount),
		FailedBidsCount:       doc.Int(FieldFailedBidsCount),
		BiddingBanned:         doc.Bool(FieldBiddingBanned),
	}
	if p.VerificationStatus == "" {
		p.VerificationStatus = VerificationNotVerified
	}
	if p.BiddingApprovalStatus == "" {
		p.BiddingApprovalStatus = BiddingNotApplied
	}
	if createdAt, ok := doc.Time(FieldAccountCreatedAt); ok {
		p.AccountCreatedAt = &createdAt
	}
	return p
}

// ListingFromDocument decodes a posts document, applying the 1.0 defaults for
// absent minimum bid and increment.
func ListingFromDocument(id string, doc Document) Listing {
	l := Listing{
		ID:           id,
		SellerID:     doc.String(FieldSellerID),
		MinimumBid:   doc.FloatOr(FieldMinimumBid, defaultBidAmount),
		BidIncrement: doc.FloatOr(FieldBidIncrement, defaultBidAmount),
	}
	if endTime, ok := doc.Time(FieldBiddingEndTime); ok {
		l.BiddingEndTime = &endTime
	}
	return l
}

func BlockEdgeFromSnapshot(s Snapshot) BlockEdge {
	e := BlockEdge{
		ID:            s.ID,
		BlockerID:     s.Data.String(FieldBlockerID),
		BlockedUserID: s.Data.String(FieldBlockedUserID),
	}
	if createdAt, ok := s.Data.Time(FieldCreatedAt); ok {
		e.CreatedAt = createdAt
	}
	return e
}

func (e BlockEdge) Document() Document {
	return Document{
		FieldBlockerID:     e.BlockerID,
		FieldBlockedUserID: e.BlockedUserID,
		FieldCreatedAt:     e.CreatedAt.UnixMilli(),
	}
}
