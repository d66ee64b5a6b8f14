package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

var exportHeader = []interface{}{
	"id",
	"supplier_id",
	"plan",
	"status",
	"start_date",
	"end_date",
	"auto_renew",
	"amount",
	"cancelled_at",
	"cancel_reason",
}

// Export renders the subscriptions matching f as an XLSX workbook and
// returns it with a suggested file name.
func (s *SubscriptionService) Export(ctx context.Context, f models.SubscriptionFilter) ([]byte, string, error) {
	items, err := s.subs.ListAll(ctx, f)
	if err != nil {
		return nil, "", utils.Internal(err)
	}

	data, err := buildSubscriptionWorkbook(items)
	if err != nil {
		return nil, "", utils.Internal(err)
	}
	name := fmt.Sprintf("subscriptions_%s.xlsx", s.now().Format("20060102_150405"))
	return data, name, nil
}

func buildSubscriptionWorkbook(items []*models.Subscription) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := exportHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, sub := range items {
		cancelledAt, cancelReason := "", ""
		if sub.CancelledAt != nil {
			cancelledAt = sub.CancelledAt.Format(time.RFC3339)
		}
		if sub.CancelReason != nil {
			cancelReason = *sub.CancelReason
		}
		excelRow := []interface{}{
			sub.ID,
			sub.SupplierID,
			sub.Plan,
			string(sub.Status),
			sub.StartDate.Format("2006-01-02"),
			sub.EndDate.Format("2006-01-02"),
			sub.AutoRenew,
			sub.Amount,
			cancelledAt,
			cancelReason,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
