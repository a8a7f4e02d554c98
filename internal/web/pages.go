package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solana-token-transfer/internal/session"
)

// Button labels for the transfer form.
const (
	buttonConnected    = "Transfer"
	buttonNotConnected = "Please Connect Wallet!"
)

type transferPage struct {
	Title        string
	Identity     string
	Connected    bool
	ButtonLabel  string
	Loaded       bool
	Holdings     []HoldingView
	Selected     *HoldingView
	Notification *session.Notification
}

// Landing renders the home page.
func (h *Handler) Landing(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":    "Solana Token Editor",
		"Identity": h.session.Identity(),
	})
}

// TransferPage renders the holdings list and transfer form. The list is
// loaded on first view for the current identity.
func (h *Handler) TransferPage(c *gin.Context) {
	snap := h.session.Snapshot()
	if snap.Identity != "" && !snap.Loaded {
		if _, err := h.session.Refresh(c.Request.Context()); err != nil {
			h.renderTransferPage(c, statusFor(err), errorNotification(err))
			return
		}
	}
	h.renderTransferPage(c, http.StatusOK, nil)
}

// SelectForm handles a click on a holding.
func (h *Handler) SelectForm(c *gin.Context) {
	index, err := strconv.Atoi(c.PostForm("index"))
	if err != nil {
		h.renderTransferPage(c, http.StatusBadRequest, &session.Notification{
			Type:    session.NotifyError,
			Message: "Invalid selection",
		})
		return
	}
	if _, err := h.session.Select(index); err != nil {
		h.renderTransferPage(c, statusFor(err), errorNotification(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/transfer")
}

// SubmitTransfer handles the transfer form.
func (h *Handler) SubmitTransfer(c *gin.Context) {
	_, err := h.doTransfer(c, c.PostForm("destination"), c.PostForm("amount"))
	if err != nil {
		// Session failures leave a notification for the next page view.
		n := h.session.TakeNotification()
		if n == nil {
			n = session.FailureNotification(err)
		}
		h.renderTransferPage(c, statusFor(err), n)
		return
	}
	c.Redirect(http.StatusSeeOther, "/transfer")
}

// RefreshForm reloads the holdings list.
func (h *Handler) RefreshForm(c *gin.Context) {
	if _, err := h.session.Refresh(c.Request.Context()); err != nil {
		h.renderTransferPage(c, statusFor(err), errorNotification(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/transfer")
}

func (h *Handler) renderTransferPage(c *gin.Context, status int, n *session.Notification) {
	snap := h.session.Snapshot()
	if n == nil {
		n = h.session.TakeNotification()
	}

	page := transferPage{
		Title:        "Token Transfer",
		Identity:     snap.Identity,
		Connected:    h.cfg.CanSign,
		ButtonLabel:  buttonNotConnected,
		Loaded:       snap.Loaded,
		Holdings:     h.holdingViews(snap.Holdings, snap.Selected),
		Notification: n,
	}
	if page.Connected {
		page.ButtonLabel = buttonConnected
	}
	if snap.Selected != session.NoSelection {
		page.Selected = &page.Holdings[snap.Selected]
	}

	c.HTML(status, "transfer.html", page)
}

func errorNotification(err error) *session.Notification {
	return &session.Notification{
		Type:    session.NotifyError,
		Message: errorMessage(err),
	}
}
