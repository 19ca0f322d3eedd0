// README: Ledger service; computes commission at order creation and aggregates frozen values.
package ledger

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"staybook/internal/types"
)

type RateSource interface {
	CommissionRate(ctx context.Context) (types.Rate, error)
}

type Repository interface {
	Entries(ctx context.Context, f Filter) ([]Entry, error)
}

type Service struct {
	rates RateSource
	store Repository
	log   zerolog.Logger
}

func NewService(rates RateSource, store Repository, log zerolog.Logger) *Service {
	return &Service{rates: rates, store: store, log: log.With().Str("module", "ledger").Logger()}
}

// ComputeCommission captures the current rate and splits total with it.
func (s *Service) ComputeCommission(ctx context.Context, total types.Money) (Split, error) {
	rate, err := s.rates.CommissionRate(ctx)
	if err != nil {
		return Split{}, fmt.Errorf("read commission rate: %w", err)
	}
	return Compute(total, rate), nil
}

func (s *Service) Aggregate(ctx context.Context, f Filter) (Summary, error) {
	entries, err := s.store.Entries(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(entries), nil
}

// ExportXLSX writes a workbook with a per-provider summary sheet and an order-level sheet.
func (s *Service) ExportXLSX(ctx context.Context, f Filter, w io.Writer) error {
	entries, err := s.store.Entries(ctx, f)
	if err != nil {
		return err
	}
	sum := Summarize(entries)

	book := excelize.NewFile()
	defer book.Close()

	const summarySheet, ordersSheet = "Summary", "Orders"
	if err := book.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := book.NewSheet(ordersSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	rows := [][]any{
		{"Provider", "Provider ID", "Orders", "Gross", "Platform fees", "Provider payouts"},
	}
	for _, p := range sum.ByProvider {
		rows = append(rows, []any{p.ProviderName, string(p.ProviderID), p.Orders, p.Gross.String(), p.PlatformFees.String(), p.ProviderPayouts.String()})
	}
	rows = append(rows, []any{"TOTAL", "", sum.Orders, sum.Gross.String(), sum.PlatformFees.String(), sum.ProviderPayouts.String()})
	if err := writeRows(book, summarySheet, rows); err != nil {
		return err
	}

	rows = [][]any{
		{"Order code", "Provider", "Status", "Payment", "Rate %", "Total", "Platform fee", "Provider amount", "Created"},
	}
	for _, e := range entries {
		rows = append(rows, []any{e.OrderCode, e.ProviderName, e.Status, e.PaymentStatus, e.Rate.String(),
			e.Total.String(), e.PlatformFee.String(), e.ProviderAmount.String(), e.CreatedAt.UTC().Format("2006-01-02 15:04")})
	}
	if err := writeRows(book, ordersSheet, rows); err != nil {
		return err
	}

	style, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = book.SetCellStyle(summarySheet, "A1", "F1", style)
		_ = book.SetCellStyle(ordersSheet, "A1", "I1", style)
	}
	_ = book.SetColWidth(summarySheet, "A", "F", 20)
	_ = book.SetColWidth(ordersSheet, "A", "I", 18)

	if err := book.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.log.Info().Int("orders", sum.Orders).Msg("ledger exported")
	return nil
}

func writeRows(book *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := book.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
