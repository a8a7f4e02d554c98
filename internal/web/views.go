package web

import (
	"net/url"
	"strconv"
	"strings"

	"solana-token-transfer/internal/domain"
)

// imageAllowlist restricts which hosts logos may be loaded from.
type imageAllowlist map[string]struct{}

func newImageAllowlist(domains []string) imageAllowlist {
	if len(domains) == 0 {
		return nil
	}
	a := make(imageAllowlist, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			a[d] = struct{}{}
		}
	}
	return a
}

// allows reports whether rawURL may be rendered. A nil list allows any
// http(s) URL.
func (a imageAllowlist) allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if a == nil {
		return true
	}
	_, ok := a[strings.ToLower(u.Hostname())]
	return ok
}

// HoldingView is the display form of a holding.
type HoldingView struct {
	Index    int    `json:"index"`
	Address  string `json:"address"`
	Mint     string `json:"mint"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Label    string `json:"label"`
	Logo     string `json:"logo,omitempty"`
	Amount   string `json:"amount"`    // base units
	UIAmount string `json:"ui_amount"` // amount / 10^9
	Selected bool   `json:"selected"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) holdingViews(holdings []domain.Holding, selected int) []HoldingView {
	views := make([]HoldingView, len(holdings))
	for i := range holdings {
		hd := &holdings[i]
		v := HoldingView{
			Index:    i,
			Address:  hd.Address,
			Mint:     hd.Mint,
			Label:    hd.DisplayName(),
			Amount:   formatBaseUnits(hd.Amount),
			UIAmount: hd.UIAmount().String(),
			Selected: i == selected,
			Error:    hd.DecodeErr,
		}
		if hd.Name != nil {
			v.Name = *hd.Name
		}
		if hd.Symbol != nil {
			v.Symbol = *hd.Symbol
		}
		if hd.Logo != nil && h.images.allows(*hd.Logo) {
			v.Logo = *hd.Logo
		}
		if hd.DecodeErr != "" {
			v.Label = hd.Address
		}
		views[i] = v
	}
	return views
}

func formatBaseUnits(amount uint64) string {
	return strconv.FormatUint(amount, 10)
}
