package finance

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/shuleapp/shule/core/learner"
)

const invoicesSheet = "Invoices"

// ExportInvoices returns the invoices matching filter as an xlsx workbook and its file name.
func (svc *Service) ExportInvoices(ctx context.Context, filter *InvoiceFilter) (*bytes.Buffer, string, error) {
	invs, err := svc.repo.QueryInvoices(ctx, filter)
	if err != nil {
		return nil, "", errors.Wrap(err, "querying invoices")
	}

	learners := make(map[string]learner.Learner)
	if len(invs) > 0 {
		ids := make([]string, 0, len(invs))
		for _, inv := range invs {
			ids = append(ids, inv.LearnerID)
		}
		ls, err := svc.learnerRepo.QueryLearners(ctx, &learner.QueryFilter{IDs: ids}, nil)
		if err != nil {
			return nil, "", errors.Wrap(err, "querying learners")
		}
		for _, l := range ls {
			learners[l.ID] = l
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err = f.SetSheetName("Sheet1", invoicesSheet); err != nil {
		return nil, "", errors.Wrap(err, "renaming sheet")
	}

	header := []interface{}{
		"Invoice", "Adm. No", "Learner", "Year", "Term", "Description",
		"Amount", "Paid", "Balance", "Status", "Due date", "Created",
	}
	if err = f.SetSheetRow(invoicesSheet, "A1", &header); err != nil {
		return nil, "", errors.Wrap(err, "writing header")
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, "", errors.Wrap(err, "creating header style")
	}
	lastCell, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err = f.SetCellStyle(invoicesSheet, "A1", lastCell, style); err != nil {
		return nil, "", errors.Wrap(err, "styling header")
	}

	var billed, paid, balance float64
	for i, inv := range invs {
		l := learners[inv.LearnerID]
		dueDate := ""
		if !inv.DueDate.IsZero() {
			dueDate = inv.DueDate.String()
		}
		row := []interface{}{
			inv.InvoiceNumber, l.AdmissionNumber, l.FullName(), inv.AcademicYear, inv.Term, inv.Description,
			inv.Amount, inv.AmountPaid, inv.Balance, inv.Status, dueDate, inv.CreatedAt.Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err = f.SetSheetRow(invoicesSheet, cell, &row); err != nil {
			return nil, "", errors.Wrap(err, "writing invoice row")
		}
		if inv.Status != StatusCancelled {
			billed += inv.Amount
			paid += inv.AmountPaid
			balance += inv.Balance
		}
	}

	totals := []interface{}{"Total", "", "", "", "", "", billed, paid, balance}
	cell, _ := excelize.CoordinatesToCellName(1, len(invs)+3)
	if err = f.SetSheetRow(invoicesSheet, cell, &totals); err != nil {
		return nil, "", errors.Wrap(err, "writing totals")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", errors.Wrap(err, "writing workbook")
	}
	return buf, fmt.Sprintf("invoices-%s.xlsx", time.Now().Format("20060102")), nil
}
