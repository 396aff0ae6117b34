package dayclose

import (
	"bytes"
	"context"
	"fmt"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phpdave11/gofpdf"
)

func (e *Engine) Report(ctx context.Context, tenantID int64, reportID int64) (*DayReport, *apperr.Error) {
	report := &DayReport{TenantID: tenantID}
	var revenue pgtype.Numeric
	err := e.DB.QueryRow(ctx, `
		select id, report_date, cashier_name, cashier_shift, cashier_notes,
		       total_orders, total_revenue, total_payments, total_waiter_calls,
		       most_ordered_items, most_active_table, status, created_at
		from day_reports
		where id = $1 and tenant_id = $2
	`, reportID, tenantID).Scan(
		&report.ID, &report.Date, &report.Cashier.Name, &report.Cashier.Shift, &report.Cashier.Notes,
		&report.TotalOrders, &revenue, &report.TotalPayments, &report.TotalWaiterCalls,
		&report.MostOrderedItems, &report.MostActiveTable, &report.Status, &report.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("Day report not found")
	}
	if err != nil {
		return nil, apperr.Dependency("Failed to load day report", err)
	}
	report.TotalRevenue = utils.NumericToFloat64(revenue)
	return report, nil
}

// ReportPDF renders a closing report for printing or archiving.
func (e *Engine) ReportPDF(ctx context.Context, tenantID int64, reportID int64) ([]byte, *apperr.Error) {
	report, appErr := e.Report(ctx, tenantID, reportID)
	if appErr != nil {
		return nil, appErr
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Day Report %s", report.Date), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}

	cashier := report.Cashier.Name
	if report.Cashier.Shift != "" {
		cashier = fmt.Sprintf("%s (%s)", cashier, report.Cashier.Shift)
	}
	line("Cashier", cashier)
	line("Total orders", fmt.Sprintf("%d", report.TotalOrders))
	line("Total revenue", fmt.Sprintf("%.2f", report.TotalRevenue))
	line("Paid orders", fmt.Sprintf("%d", report.TotalPayments))
	line("Waiter calls", fmt.Sprintf("%d", report.TotalWaiterCalls))
	if report.MostActiveTable != "" {
		line("Busiest table", report.MostActiveTable)
	}

	if len(report.MostOrderedItems) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Top items", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for i, item := range report.MostOrderedItems {
			pdf.CellFormat(0, 6, fmt.Sprintf("%d. %s x%d", i+1, item.Name, item.Quantity), "", 1, "L", false, 0, "")
		}
	}

	if report.Cashier.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, report.Cashier.Notes, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperr.Dependency("Failed to render day report PDF", err)
	}
	return buf.Bytes(), nil
}
