package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"solana-token-transfer/internal/session"
	"solana-token-transfer/internal/transfer"
	"solana-token-transfer/internal/wallet"
)

// HoldingsResponse is the body of GET /api/holdings.
type HoldingsResponse struct {
	Identity   string        `json:"identity"`
	Generation uint64        `json:"generation"`
	Loaded     bool          `json:"loaded"`
	Selected   int           `json:"selected"`
	Holdings   []HoldingView `json:"holdings"`
}

type selectRequest struct {
	Index *int `json:"index" binding:"required"`
}

type transferRequest struct {
	Destination string `json:"destination" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

type identityRequest struct {
	Owner string `json:"owner" binding:"required"`
}

// TransferResponse is the body of a successful POST /api/transfer.
type TransferResponse struct {
	ID                 string `json:"id"`
	Signature          string `json:"signature"`
	SourceAccount      string `json:"source_account"`
	DestinationAccount string `json:"destination_account"`
	Amount             string `json:"amount"`
	CreatedDestination bool   `json:"created_destination"`
}

func (h *Handler) holdingsResponse() HoldingsResponse {
	snap := h.session.Snapshot()
	return HoldingsResponse{
		Identity:   snap.Identity,
		Generation: snap.Generation,
		Loaded:     snap.Loaded,
		Selected:   snap.Selected,
		Holdings:   h.holdingViews(snap.Holdings, snap.Selected),
	}
}

// GetHoldings returns the current holdings list without refreshing it.
func (h *Handler) GetHoldings(c *gin.Context) {
	c.JSON(http.StatusOK, h.holdingsResponse())
}

// Refresh re-runs discovery and enrichment.
func (h *Handler) Refresh(c *gin.Context) {
	if _, err := h.session.Refresh(c.Request.Context()); err != nil {
		h.newErrorResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, h.holdingsResponse())
}

// Select marks a holding as the transfer source.
func (h *Handler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.newErrorResponse(c, http.StatusBadRequest, err)
		return
	}
	if _, err := h.session.Select(*req.Index); err != nil {
		h.newErrorResponse(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, h.holdingsResponse())
}

// Transfer sends the selected token.
func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.newErrorResponse(c, http.StatusBadRequest, err)
		return
	}

	res, err := h.doTransfer(c, req.Destination, req.Amount)
	// The API reports the outcome directly; drop the page notification.
	h.session.TakeNotification()
	if err != nil {
		h.newErrorResponse(c, statusFor(err), err)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{
		ID:                 res.ID,
		Signature:          res.Signature,
		SourceAccount:      res.SourceAccount,
		DestinationAccount: res.DestinationAccount,
		Amount:             formatBaseUnits(res.Amount),
		CreatedDestination: res.CreatedDestination,
	})
}

// doTransfer reports a missing signer or selection before looking at the
// submitted fields.
func (h *Handler) doTransfer(c *gin.Context, destination, amount string) (*transfer.Result, error) {
	if !h.cfg.CanSign || h.session.Identity() == "" {
		return nil, transfer.ErrNoIdentity
	}
	if h.session.Selected() == nil {
		return nil, transfer.ErrNoSelection
	}
	parsed, err := transfer.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	return h.session.Transfer(c.Request.Context(), destination, parsed)
}

// GetTransfers lists recent transfers sent by the current identity.
func (h *Handler) GetTransfers(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"transfers": []interface{}{}})
		return
	}
	owner := h.session.Identity()
	if owner == "" {
		h.newErrorResponse(c, http.StatusUnauthorized, transfer.ErrNoIdentity)
		return
	}

	records, err := h.history.ListByOwner(c.Request.Context(), owner, 50)
	if err != nil {
		h.newErrorResponse(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": records})
}

// SetIdentity switches the viewed wallet in read-only mode.
func (h *Handler) SetIdentity(c *gin.Context) {
	if !h.cfg.AllowIdentityChange {
		h.newErrorResponse(c, http.StatusForbidden, errors.New("identity is fixed by the configured keypair"))
		return
	}

	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.newErrorResponse(c, http.StatusBadRequest, err)
		return
	}
	owner, err := wallet.ParseIdentity(req.Owner)
	if err != nil {
		h.newErrorResponse(c, http.StatusBadRequest, err)
		return
	}

	h.session.SetIdentity(owner.String())
	c.JSON(http.StatusOK, h.holdingsResponse())
}

// errorMessage returns a page-friendly message for err.
func errorMessage(err error) string {
	if errors.Is(err, session.ErrStaleGeneration) {
		return "The wallet changed while loading. Please refresh."
	}
	return err.Error()
}
