// README: Billing handlers: commission rate setting, ledger aggregate and spreadsheet export.
package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staybook/internal/modules/ledger"
	"staybook/internal/modules/settings"
	"staybook/internal/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SettingsService interface {
	CommissionRate(ctx context.Context) (types.Rate, error)
	SetCommissionRate(ctx context.Context, actorID types.ID, rate types.Rate) (*settings.Setting, error)
	List(ctx context.Context) ([]*settings.Setting, error)
}

type LedgerService interface {
	Aggregate(ctx context.Context, f ledger.Filter) (ledger.Summary, error)
	ExportXLSX(ctx context.Context, f ledger.Filter, w io.Writer) error
}

type BillingHandler struct {
	settings SettingsService
	ledger   LedgerService
	now      func() time.Time
}

func NewBillingHandler(st SettingsService, l LedgerService) *BillingHandler {
	return &BillingHandler{settings: st, ledger: l, now: time.Now}
}

type commissionRateReq struct {
	Rate types.Rate `json:"rate"`
}

func (h *BillingHandler) CommissionRate(c *gin.Context) {
	rate, err := h.settings.CommissionRate(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rate": rate})
}

func (h *BillingHandler) SetCommissionRate(c *gin.Context) {
	var req commissionRateReq
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.settings.SetCommissionRate(c.Request.Context(), caller(c).ID, req.Rate)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (h *BillingHandler) ListSettings(c *gin.Context) {
	sts, err := h.settings.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(sts))
}

// ledgerFilter reads from/to (inclusive dates), provider_id, status and payment_status.
func ledgerFilter(c *gin.Context) (ledger.Filter, error) {
	f := ledger.Filter{
		ProviderID:    types.ID(c.Query("provider_id")),
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
	}
	if v := c.Query("from"); v != "" {
		from, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("%w: from must be YYYY-MM-DD", types.ErrValidation)
		}
		f.From = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("%w: to must be YYYY-MM-DD", types.ErrValidation)
		}
		to = to.AddDate(0, 0, 1)
		f.To = &to
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, fmt.Errorf("%w: from must not be after to", types.ErrValidation)
	}
	return f, nil
}

func (h *BillingHandler) Ledger(c *gin.Context) {
	f, err := ledgerFilter(c)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	sum, err := h.ledger.Aggregate(c.Request.Context(), f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sum)
}

func (h *BillingHandler) ExportLedger(c *gin.Context) {
	f, err := ledgerFilter(c)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := h.ledger.ExportXLSX(c.Request.Context(), f, &buf); err != nil {
		writeServiceError(c, err)
		return
	}
	name := fmt.Sprintf("ledger-%s.xlsx", h.now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
