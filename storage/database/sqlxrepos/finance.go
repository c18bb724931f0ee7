package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/finance"
)

const (
	feeStructuresTable = "fee_structures"
	invoicesTable      = "invoices"
	paymentsTable      = "payments"
)

var (
	feeStructureColumns = []string{"id", "grade_id", "academic_year", "term", "name", "amount", "due_date", "created_at", "updated_at"}
	invoiceColumns      = []string{
		"id", "invoice_number", "learner_id", "grade_id", "fee_structure_id", "academic_year", "term", "description",
		"amount", "amount_paid", "balance", "status", "due_date", "created_at", "updated_at",
	}
	paymentColumns = []string{
		"id", "receipt_number", "invoice_id", "learner_id", "amount", "method", "reference", "paid_at", "recorded_by", "created_at",
	}
)

type feeStructureRow struct {
	ID           string    `db:"id"`
	GradeID      string    `db:"grade_id"`
	AcademicYear int       `db:"academic_year"`
	Term         int       `db:"term"`
	Name         string    `db:"name"`
	Amount       float64   `db:"amount"`
	DueDate      core.Date `db:"due_date"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type invoiceRow struct {
	ID             string      `db:"id"`
	InvoiceNumber  string      `db:"invoice_number"`
	LearnerID      string      `db:"learner_id"`
	GradeID        string      `db:"grade_id"`
	FeeStructureID null.String `db:"fee_structure_id"`
	AcademicYear   int         `db:"academic_year"`
	Term           int         `db:"term"`
	Description    string      `db:"description"`
	Amount         float64     `db:"amount"`
	AmountPaid     float64     `db:"amount_paid"`
	Balance        float64     `db:"balance"`
	Status         string      `db:"status"`
	DueDate        core.Date   `db:"due_date"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

type paymentRow struct {
	ID            string      `db:"id"`
	ReceiptNumber string      `db:"receipt_number"`
	InvoiceID     string      `db:"invoice_id"`
	LearnerID     string      `db:"learner_id"`
	Amount        float64     `db:"amount"`
	Method        string      `db:"method"`
	Reference     string      `db:"reference"`
	PaidAt        time.Time   `db:"paid_at"`
	RecordedBy    null.String `db:"recorded_by"`
	CreatedAt     time.Time   `db:"created_at"`
}

type financeRepository struct {
	repo
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(exec core.DBExecutor) *financeRepository {
	return &financeRepository{repo{exec: exec}}
}

// Fee structures

func (r financeRepository) fromFeeStructureRow(row feeStructureRow) finance.FeeStructure {
	return finance.FeeStructure{
		ID:           row.ID,
		GradeID:      row.GradeID,
		AcademicYear: row.AcademicYear,
		Term:         row.Term,
		Name:         row.Name,
		Amount:       row.Amount,
		DueDate:      row.DueDate,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (r financeRepository) CreateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	fs.ID = uuid.New().String()
	q := psql.Insert(feeStructuresTable).Columns(feeStructureColumns...).
		Values(fs.ID, fs.GradeID, fs.AcademicYear, fs.Term, fs.Name, fs.Amount, fs.DueDate, fs.CreatedAt.UTC(), fs.UpdatedAt.UTC())
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return finance.FeeStructure{}, trapErr(err, finance.ErrFeeStructureNotFound, "inserting fee structure")
	}
	return fs, nil
}

func (r financeRepository) GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	if !validID(id) {
		return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
	}
	row, err := selectOne[feeStructureRow](ctx, r.getExec(exec),
		psql.Select(feeStructureColumns...).From(feeStructuresTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return finance.FeeStructure{}, trapErr(err, finance.ErrFeeStructureNotFound, "finding fee structure")
	}
	return r.fromFeeStructureRow(row), nil
}

func (r financeRepository) QueryFeeStructures(ctx context.Context, filter *finance.FeeStructureFilter, exec ...core.DBExecutor) ([]finance.FeeStructure, error) {
	q := psql.Select(feeStructureColumns...).From(feeStructuresTable).OrderBy("academic_year DESC", "term DESC", "name ASC")
	if filter != nil {
		if filter.GradeID != "" {
			q = q.Where(sq.Eq{"grade_id": filter.GradeID})
		}
		if filter.AcademicYear != 0 {
			q = q.Where(sq.Eq{"academic_year": filter.AcademicYear})
		}
		if filter.Term != 0 {
			q = q.Where(sq.Eq{"term": filter.Term})
		}
	}
	var rows []feeStructureRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	structures := make([]finance.FeeStructure, 0, len(rows))
	for _, row := range rows {
		structures = append(structures, r.fromFeeStructureRow(row))
	}
	return structures, nil
}

func (r financeRepository) UpdateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	q := psql.Update(feeStructuresTable).
		SetMap(map[string]interface{}{
			"grade_id":      fs.GradeID,
			"academic_year": fs.AcademicYear,
			"term":          fs.Term,
			"name":          fs.Name,
			"amount":        fs.Amount,
			"due_date":      fs.DueDate,
			"updated_at":    fs.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": fs.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return finance.FeeStructure{}, trapErr(err, finance.ErrFeeStructureNotFound, "updating fee structure")
	}
	return fs, nil
}

func (r financeRepository) DeleteFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return finance.ErrFeeStructureNotFound
	}
	return trapErr(execAffecting(ctx, r.getExec(exec), psql.Delete(feeStructuresTable).Where(sq.Eq{"id": id})),
		finance.ErrFeeStructureNotFound, "deleting fee structure")
}

// Invoices

func (r financeRepository) fromInvoiceRow(row invoiceRow) finance.Invoice {
	return finance.Invoice{
		ID:             row.ID,
		InvoiceNumber:  row.InvoiceNumber,
		LearnerID:      row.LearnerID,
		GradeID:        row.GradeID,
		FeeStructureID: row.FeeStructureID.Ptr(),
		AcademicYear:   row.AcademicYear,
		Term:           row.Term,
		Description:    row.Description,
		Amount:         row.Amount,
		AmountPaid:     row.AmountPaid,
		Balance:        row.Balance,
		Status:         row.Status,
		DueDate:        row.DueDate,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func (r financeRepository) CreateInvoice(ctx context.Context, inv finance.Invoice, exec ...core.DBExecutor) (finance.Invoice, error) {
	inv.ID = uuid.New().String()
	q := psql.Insert(invoicesTable).Columns(invoiceColumns...).
		Values(
			inv.ID, inv.InvoiceNumber, inv.LearnerID, inv.GradeID, null.StringFromPtr(inv.FeeStructureID), inv.AcademicYear,
			inv.Term, inv.Description, inv.Amount, inv.AmountPaid, inv.Balance, inv.Status, inv.DueDate,
			inv.CreatedAt.UTC(), inv.UpdatedAt.UTC(),
		)
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return finance.Invoice{}, trapErr(err, finance.ErrInvoiceNotFound, "inserting invoice")
	}
	return inv, nil
}

func (r financeRepository) GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Invoice, error) {
	if !validID(id) {
		return finance.Invoice{}, finance.ErrInvoiceNotFound
	}
	row, err := selectOne[invoiceRow](ctx, r.getExec(exec), invoiceByID(id))
	if err != nil {
		return finance.Invoice{}, trapErr(err, finance.ErrInvoiceNotFound, "finding invoice")
	}
	return r.fromInvoiceRow(row), nil
}

func (r financeRepository) LockInvoice(ctx context.Context, id string, exec core.DBExecutor) (finance.Invoice, error) {
	if !validID(id) {
		return finance.Invoice{}, finance.ErrInvoiceNotFound
	}
	row, err := selectOne[invoiceRow](ctx, r.getExec([]core.DBExecutor{exec}), forUpdate(invoiceByID(id)))
	if err != nil {
		return finance.Invoice{}, trapErr(err, finance.ErrInvoiceNotFound, "locking invoice")
	}
	return r.fromInvoiceRow(row), nil
}

func invoiceByID(id string) sq.SelectBuilder {
	return psql.Select(invoiceColumns...).From(invoicesTable).Where(sq.Eq{"id": id})
}

func (r financeRepository) QueryInvoices(ctx context.Context, filter *finance.InvoiceFilter, exec ...core.DBExecutor) ([]finance.Invoice, error) {
	q := psql.Select(invoiceColumns...).From(invoicesTable).OrderBy("created_at DESC", "invoice_number DESC")
	if filter != nil {
		if filter.Search != "" {
			q = q.Where(ilike(filter.Search, "invoice_number", "description"))
		}
		eq := sq.Eq{}
		if filter.LearnerID != "" {
			eq["learner_id"] = filter.LearnerID
		}
		if filter.GradeID != "" {
			eq["grade_id"] = filter.GradeID
		}
		if filter.FeeStructureID != "" {
			eq["fee_structure_id"] = filter.FeeStructureID
		}
		if filter.AcademicYear != 0 {
			eq["academic_year"] = filter.AcademicYear
		}
		if filter.Term != 0 {
			eq["term"] = filter.Term
		}
		if filter.Status != "" {
			eq["status"] = filter.Status
		}
		if len(eq) > 0 {
			q = q.Where(eq)
		}
	}
	var rows []invoiceRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying invoices")
	}
	invs := make([]finance.Invoice, 0, len(rows))
	for _, row := range rows {
		invs = append(invs, r.fromInvoiceRow(row))
	}
	return invs, nil
}

func (r financeRepository) UpdateInvoice(ctx context.Context, inv finance.Invoice, exec ...core.DBExecutor) (finance.Invoice, error) {
	q := psql.Update(invoicesTable).
		SetMap(map[string]interface{}{
			"description": inv.Description,
			"amount":      inv.Amount,
			"amount_paid": inv.AmountPaid,
			"balance":     inv.Balance,
			"status":      inv.Status,
			"due_date":    inv.DueDate,
			"updated_at":  inv.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": inv.ID})
	if err := execAffecting(ctx, r.getExec(exec), q); err != nil {
		return finance.Invoice{}, trapErr(err, finance.ErrInvoiceNotFound, "updating invoice")
	}
	return inv, nil
}

// Payments

func (r financeRepository) fromPaymentRow(row paymentRow) finance.Payment {
	return finance.Payment{
		ID:            row.ID,
		ReceiptNumber: row.ReceiptNumber,
		InvoiceID:     row.InvoiceID,
		LearnerID:     row.LearnerID,
		Amount:        row.Amount,
		Method:        row.Method,
		Reference:     row.Reference,
		PaidAt:        row.PaidAt.UTC(),
		RecordedBy:    row.RecordedBy.Ptr(),
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

func (r financeRepository) CreatePayment(ctx context.Context, p finance.Payment, exec ...core.DBExecutor) (finance.Payment, error) {
	p.ID = uuid.New().String()
	q := psql.Insert(paymentsTable).Columns(paymentColumns...).
		Values(
			p.ID, p.ReceiptNumber, p.InvoiceID, p.LearnerID, p.Amount, p.Method, p.Reference,
			p.PaidAt.UTC(), null.StringFromPtr(p.RecordedBy), p.CreatedAt.UTC(),
		)
	if _, err := execQuery(ctx, r.getExec(exec), q); err != nil {
		return finance.Payment{}, trapErr(err, finance.ErrPaymentNotFound, "inserting payment")
	}
	return p, nil
}

func (r financeRepository) GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (finance.Payment, error) {
	if !validID(id) {
		return finance.Payment{}, finance.ErrPaymentNotFound
	}
	row, err := selectOne[paymentRow](ctx, r.getExec(exec), psql.Select(paymentColumns...).From(paymentsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return finance.Payment{}, trapErr(err, finance.ErrPaymentNotFound, "finding payment")
	}
	return r.fromPaymentRow(row), nil
}

func (r financeRepository) QueryPayments(ctx context.Context, filter *finance.PaymentFilter, exec ...core.DBExecutor) ([]finance.Payment, error) {
	q := psql.Select(paymentColumns...).From(paymentsTable).OrderBy("paid_at ASC", "receipt_number ASC")
	if filter != nil {
		if filter.InvoiceID != "" {
			q = q.Where(sq.Eq{"invoice_id": filter.InvoiceID})
		}
		if filter.LearnerID != "" {
			q = q.Where(sq.Eq{"learner_id": filter.LearnerID})
		}
	}
	var rows []paymentRow
	if err := selectAll(ctx, r.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]finance.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, r.fromPaymentRow(row))
	}
	return payments, nil
}
