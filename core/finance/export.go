package finance

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/kcci/portal/core/reviewer"
)

const (
	dateLayout      = "2006-01-02"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	amountFormat    = 4 // #,##0.00
)

type workbook struct {
	*excelize.File
	header int
	amount int
}

func newWorkbook(firstSheet string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", firstSheet); err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: amountFormat})
	if err != nil {
		return nil, err
	}
	return &workbook{File: f, header: header, amount: amount}, nil
}

// writeTable writes the header and the rows of a sheet starting at A1.
// Columns listed in amountCols are formatted as amounts.
func (wb *workbook) writeTable(sheet string, header []interface{}, rows [][]interface{}, amountCols ...int) error {
	idx, err := wb.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx < 0 {
		if _, err := wb.NewSheet(sheet); err != nil {
			return err
		}
	}

	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := wb.SetCellStyle(sheet, "A1", lastCol+"1", wb.header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		for _, col := range amountCols {
			name, _ := excelize.ColumnNumberToName(col)
			if err := wb.SetCellStyle(sheet, name+"2", name+strconv.Itoa(len(rows)+1), wb.amount); err != nil {
				return err
			}
		}
	}
	return wb.SetColWidth(sheet, "A", lastCol, 18)
}

// ExportDashboard writes the dashboard of the period as an xlsx workbook with a summary sheet
// and one sheet per item kind.
func (svc *Service) ExportDashboard(ctx context.Context, from, to time.Time, w io.Writer) error {
	dash, err := svc.Dashboard(ctx, from, to)
	if err != nil {
		return err
	}

	wb, err := newWorkbook("Summary")
	if err != nil {
		return errors.Wrap(err, "creating workbook")
	}
	defer wb.Close()

	var summary, revenues, costs [][]interface{}
	for _, yg := range dash.Years {
		for _, mg := range yg.Months {
			for _, cg := range mg.Categories {
				summary = append(summary, []interface{}{
					mg.Label, cg.Kind, cg.Category, cg.Summary.Count,
					cg.Summary.Total.InexactFloat64(), cg.Summary.Paid.InexactFloat64(),
					cg.Summary.Unpaid.InexactFloat64(), cg.Net.InexactFloat64(),
				})
				for _, li := range cg.Items {
					row := []interface{}{
						li.Date.Format(dateLayout), li.Category, li.PartyName, li.Description,
						li.Amount.InexactFloat64(), string(li.Status), formatNullTime(li),
					}
					if li.Kind == KindRevenue {
						revenues = append(revenues, row)
					} else {
						costs = append(costs, row)
					}
				}
			}
		}
	}
	summary = append(summary, []interface{}{
		"Total", "", "", dash.Totals.Revenue.Count + dash.Totals.Cost.Count,
		dash.Totals.Revenue.Total.InexactFloat64(), dash.Totals.Revenue.Paid.Add(dash.Totals.Cost.Paid).InexactFloat64(),
		dash.Totals.Revenue.Unpaid.Add(dash.Totals.Cost.Unpaid).InexactFloat64(), dash.Totals.Net.InexactFloat64(),
	})

	if err := wb.writeTable("Summary",
		[]interface{}{"Month", "Kind", "Category", "Count", "Total (" + dash.Currency + ")", "Paid", "Unpaid", "Net"},
		summary, 5, 6, 7, 8,
	); err != nil {
		return errors.Wrap(err, "writing summary sheet")
	}
	itemHeader := []interface{}{"Date", "Category", "Party", "Description", "Amount (" + dash.Currency + ")", "Status", "Paid at"}
	if err := wb.writeTable("Revenues", itemHeader, revenues, 5); err != nil {
		return errors.Wrap(err, "writing revenues sheet")
	}
	if err := wb.writeTable("Costs", itemHeader, costs, 5); err != nil {
		return errors.Wrap(err, "writing costs sheet")
	}
	return wb.Write(w)
}

// ExportSettlement writes the statement of a settlement as an xlsx workbook.
func (svc *Service) ExportSettlement(ctx context.Context, id string, w io.Writer) error {
	stl, err := svc.GetSettlement(ctx, id)
	if err != nil {
		return err
	}
	rev, err := svc.Reviewers.Get(ctx, stl.ReviewerID)
	if err != nil {
		return err
	}
	return svc.writeSettlement(w, stl, rev)
}

func (svc *Service) writeSettlement(w io.Writer, stl Settlement, rev reviewer.Reviewer) error {
	wb, err := newWorkbook("Statement")
	if err != nil {
		return errors.Wrap(err, "creating workbook")
	}
	defer wb.Close()

	rows := [][]interface{}{
		{"Reviewer", rev.Name},
		{"Affiliation", rev.Affiliation},
		{"Period", stl.PeriodFrom.Format(dateLayout) + " ~ " + stl.PeriodTo.Format(dateLayout)},
		{"Settled at", stl.SettledAt.Format(dateLayout)},
		{"Items", stl.ItemCount},
		{"Total (" + svc.Currency + ")", stl.Total.InexactFloat64()},
		{"Note", stl.Note},
	}
	if err := wb.writeTable("Statement", []interface{}{"Settlement", stl.ID}, rows); err != nil {
		return errors.Wrap(err, "writing statement sheet")
	}
	if err := wb.SetCellStyle("Statement", "B7", "B7", wb.amount); err != nil {
		return errors.Wrap(err, "writing statement sheet")
	}

	items := make([][]interface{}, 0, len(stl.Items))
	for _, item := range stl.Items {
		items = append(items, []interface{}{
			item.IncurredOn.Format(dateLayout), string(item.Category), item.Description, item.Amount.InexactFloat64(),
		})
	}
	if err := wb.writeTable("Items", []interface{}{"Date", "Category", "Description", "Amount (" + svc.Currency + ")"}, items, 4); err != nil {
		return errors.Wrap(err, "writing items sheet")
	}
	return wb.Write(w)
}

func formatNullTime(li LineItem) string {
	if !li.PaidAt.Valid {
		return ""
	}
	return li.PaidAt.Time.Format(dateLayout)
}
