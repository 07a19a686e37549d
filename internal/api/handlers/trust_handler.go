package handlers

import (
	"errors"
	"net/http"
	"strings"

	"auction-trust/internal/domain"
	"auction-trust/internal/services"
	"auction-trust/pkg/logger"

	"github.com/labstack/echo/v4"
)

type TrustHandler struct {
	eligibility *services.EligibilityEvaluator
	blocks      *services.BlockRelationIndex
	cooldowns   *services.ModerationCooldownManager
	log         logger.Logger
}

type ItemBidRequest struct {
	BidAmount float64 `json:"bid_amount"`
}

type BlockRequest struct {
	BlockedUserID string `json:"blocked_user_id"`
}

type BlockStatusResponse struct {
	UserA   string `json:"user_a"`
	UserB   string `json:"user_b"`
	Blocked bool   `json:"blocked"`
}

type BlockListResponse struct {
	UserID        string   `json:"user_id"`
	BlockedByUser []string `json:"blocked_by_user"`
	BlockingUser  []string `json:"blocking_user"`
	AllRelated    []string `json:"all_related"`
}

func NewTrustHandler(
	eligibility *services.EligibilityEvaluator,
	blocks *services.BlockRelationIndex,
	cooldowns *services.ModerationCooldownManager,
	log logger.Logger,
) *TrustHandler {
	return &TrustHandler{
		eligibility: eligibility,
		blocks:      blocks,
		cooldowns:   cooldowns,
		log:         log,
	}
}

func (h *TrustHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/users/:id/eligibility", h.GetEligibility)
	api.POST("/users/:id/eligibility/listings/:listingId", h.CheckItemBid)

	api.GET("/blocks/:a/:b", h.GetBlockStatus)
	api.GET("/users/:id/blocks", h.ListBlocks)
	api.POST("/users/:id/blocks", h.CreateBlock)

	api.GET("/moderation/:track/users/:id", h.GetTrackState)
	api.POST("/moderation/:track/users/:id/reject", h.RejectSubmission)
	api.POST("/moderation/:track/users/:id/approve", h.ApproveSubmission)
}

// GetEligibility always answers 200; ineligibility is part of the result body.
func (h *TrustHandler) GetEligibility(c echo.Context) error {
	userID := c.Param("id")
	result := h.eligibility.EvaluateBiddingEligibility(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, result)
}

func (h *TrustHandler) CheckItemBid(c echo.Context) error {
	userID := c.Param("id")
	listingID := c.Param("listingId")

	var req ItemBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	result := h.eligibility.EvaluateItemBid(c.Request().Context(), userID, listingID, req.BidAmount)
	return c.JSON(http.StatusOK, result)
}

func (h *TrustHandler) GetBlockStatus(c echo.Context) error {
	userA, userB := c.Param("a"), c.Param("b")
	return c.JSON(http.StatusOK, BlockStatusResponse{
		UserA:   userA,
		UserB:   userB,
		Blocked: h.blocks.IsBlocked(c.Request().Context(), userA, userB),
	})
}

func (h *TrustHandler) ListBlocks(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("id")

	blockedByUser := h.blocks.BlockedByUser(ctx, userID)
	blockingUser := h.blocks.BlockingUser(ctx, userID)

	return c.JSON(http.StatusOK, BlockListResponse{
		UserID:        userID,
		BlockedByUser: blockedByUser,
		BlockingUser:  blockingUser,
		AllRelated:    h.blocks.AllRelatedBlocks(ctx, userID),
	})
}

func (h *TrustHandler) CreateBlock(c echo.Context) error {
	blockerID := c.Param("id")

	var req BlockRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	err := h.blocks.Block(c.Request().Context(), blockerID, strings.TrimSpace(req.BlockedUserID))
	if errors.Is(err, domain.ErrInvalidBlock) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		h.log.Error("Failed to create block", "blocker_id", blockerID, "blocked_user_id", req.BlockedUserID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create block"})
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message":         "User blocked",
		"blocker_id":      blockerID,
		"blocked_user_id": req.BlockedUserID,
	})
}

func (h *TrustHandler) GetTrackState(c echo.Context) error {
	track, err := domain.ParseTrack(c.Param("track"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	userID := c.Param("id")

	state, err := h.cooldowns.TrackState(c.Request().Context(), userID, track)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}
	if err != nil {
		h.log.Error("Failed to read moderation state", "user_id", userID, "track", track, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read moderation state"})
	}

	return c.JSON(http.StatusOK, state)
}

func (h *TrustHandler) RejectSubmission(c echo.Context) error {
	track, err := domain.ParseTrack(c.Param("track"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	outcome := h.cooldowns.RecordRejection(c.Request().Context(), c.Param("id"), track)
	if !outcome.Success {
		return c.JSON(http.StatusUnprocessableEntity, outcome)
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *TrustHandler) ApproveSubmission(c echo.Context) error {
	track, err := domain.ParseTrack(c.Param("track"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	outcome := h.cooldowns.RecordApproval(c.Request().Context(), c.Param("id"), track)
	if !outcome.Success {
		return c.JSON(http.StatusUnprocessableEntity, outcome)
	}
	return c.JSON(http.StatusOK, outcome)
}
