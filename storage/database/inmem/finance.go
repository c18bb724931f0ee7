package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/finance"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil)

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db}
}

// Fee structures

func (repo *financeRepository) CreateFeeStructure(_ context.Context, fs finance.FeeStructure, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.t.feeStructures {
		if other.GradeID == fs.GradeID && other.AcademicYear == fs.AcademicYear && other.Term == fs.Term {
			return finance.FeeStructure{}, errConflict
		}
	}
	fs.ID = uuid.New().String()
	repo.db.t.feeStructures[fs.ID] = fs
	return fs, nil
}

func (repo *financeRepository) GetFeeStructure(_ context.Context, id string, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if fs, ok := repo.db.t.feeStructures[id]; ok {
		return fs, nil
	}
	return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
}

func (repo *financeRepository) QueryFeeStructures(_ context.Context, filter *finance.FeeStructureFilter, _ ...core.DBExecutor) ([]finance.FeeStructure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(fs finance.FeeStructure) bool {
		if filter == nil {
			return true
		}
		return (filter.GradeID == "" || fs.GradeID == filter.GradeID) &&
			(filter.AcademicYear == 0 || fs.AcademicYear == filter.AcademicYear) &&
			(filter.Term == 0 || fs.Term == filter.Term)
	}
	less := func(a, b finance.FeeStructure) bool {
		if a.AcademicYear != b.AcademicYear {
			return a.AcademicYear > b.AcademicYear
		}
		if a.Term != b.Term {
			return a.Term > b.Term
		}
		return a.Name < b.Name
	}
	return values(repo.db.t.feeStructures, keep, less), nil
}

func (repo *financeRepository) UpdateFeeStructure(_ context.Context, fs finance.FeeStructure, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.feeStructures[fs.ID]; !ok {
		return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
	}
	for _, other := range repo.db.t.feeStructures {
		if other.ID != fs.ID && other.GradeID == fs.GradeID && other.AcademicYear == fs.AcademicYear && other.Term == fs.Term {
			return finance.FeeStructure{}, errConflict
		}
	}
	repo.db.t.feeStructures[fs.ID] = fs
	return fs, nil
}

func (repo *financeRepository) DeleteFeeStructure(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.feeStructures[id]; !ok {
		return finance.ErrFeeStructureNotFound
	}
	for _, inv := range repo.db.t.invoices {
		if strPtrEq(inv.FeeStructureID, id) {
			return errInUse
		}
	}
	delete(repo.db.t.feeStructures, id)
	return nil
}

// Invoices

func (repo *financeRepository) CreateInvoice(_ context.Context, inv finance.Invoice, _ ...core.DBExecutor) (finance.Invoice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.t.invoices {
		if other.InvoiceNumber == inv.InvoiceNumber {
			return finance.Invoice{}, errConflict
		}
	}
	inv.ID = uuid.New().String()
	repo.db.t.invoices[inv.ID] = inv
	return inv, nil
}

func (repo *financeRepository) GetInvoice(_ context.Context, id string, _ ...core.DBExecutor) (finance.Invoice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inv, ok := repo.db.t.invoices[id]; ok {
		return inv, nil
	}
	return finance.Invoice{}, finance.ErrInvoiceNotFound
}

// LockInvoice needs no row lock, the transactor runs one transaction at a time.
func (repo *financeRepository) LockInvoice(ctx context.Context, id string, _ core.DBExecutor) (finance.Invoice, error) {
	return repo.GetInvoice(ctx, id)
}

func invoiceMatches(inv finance.Invoice, filter *finance.InvoiceFilter) bool {
	if filter == nil {
		return true
	}
	return (filter.Search == "" || containsAny(filter.Search, inv.InvoiceNumber, inv.Description)) &&
		(filter.LearnerID == "" || inv.LearnerID == filter.LearnerID) &&
		(filter.GradeID == "" || inv.GradeID == filter.GradeID) &&
		(filter.FeeStructureID == "" || strPtrEq(inv.FeeStructureID, filter.FeeStructureID)) &&
		(filter.AcademicYear == 0 || inv.AcademicYear == filter.AcademicYear) &&
		(filter.Term == 0 || inv.Term == filter.Term) &&
		(filter.Status == "" || inv.Status == filter.Status)
}

func (repo *financeRepository) QueryInvoices(_ context.Context, filter *finance.InvoiceFilter, _ ...core.DBExecutor) ([]finance.Invoice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(inv finance.Invoice) bool { return invoiceMatches(inv, filter) }
	less := func(a, b finance.Invoice) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.InvoiceNumber > b.InvoiceNumber
	}
	return values(repo.db.t.invoices, keep, less), nil
}

func (repo *financeRepository) UpdateInvoice(_ context.Context, inv finance.Invoice, _ ...core.DBExecutor) (finance.Invoice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.invoices[inv.ID]; !ok {
		return finance.Invoice{}, finance.ErrInvoiceNotFound
	}
	repo.db.t.invoices[inv.ID] = inv
	return inv, nil
}

// Payments

func (repo *financeRepository) CreatePayment(_ context.Context, p finance.Payment, _ ...core.DBExecutor) (finance.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.invoices[p.InvoiceID]; !ok {
		return finance.Payment{}, errInUse
	}
	for _, other := range repo.db.t.payments {
		if other.ReceiptNumber == p.ReceiptNumber {
			return finance.Payment{}, errConflict
		}
	}
	p.ID = uuid.New().String()
	repo.db.t.payments[p.ID] = p
	return p, nil
}

func (repo *financeRepository) GetPayment(_ context.Context, id string, _ ...core.DBExecutor) (finance.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.t.payments[id]; ok {
		return p, nil
	}
	return finance.Payment{}, finance.ErrPaymentNotFound
}

func (repo *financeRepository) QueryPayments(_ context.Context, filter *finance.PaymentFilter, _ ...core.DBExecutor) ([]finance.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(p finance.Payment) bool {
		if filter == nil {
			return true
		}
		return (filter.InvoiceID == "" || p.InvoiceID == filter.InvoiceID) &&
			(filter.LearnerID == "" || p.LearnerID == filter.LearnerID)
	}
	less := func(a, b finance.Payment) bool {
		if !a.PaidAt.Equal(b.PaidAt) {
			return a.PaidAt.Before(b.PaidAt)
		}
		return a.ReceiptNumber < b.ReceiptNumber
	}
	return values(repo.db.t.payments, keep, less), nil
}
