package finance

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/divan/num2words"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/school"
)

const currencyWord = "shillings"

var (
	// errors
	ErrFeeStructureNotFound = core.NewNotFoundError("fee structure not found")
	ErrInvoiceNotFound      = core.NewNotFoundError("invoice not found")
	ErrPaymentNotFound      = core.NewNotFoundError("payment not found")
	ErrFeeStructureExists   = core.NewConflictError("a fee structure already exists for this grade and term")
	ErrFeeStructureInUse    = core.NewConflictError("invoices were generated from this fee structure")
	ErrInvoiceCancelled     = core.NewConflictError("the invoice is cancelled")
	ErrInvoiceHasPayments   = core.NewConflictError("an invoice with payments cannot be cancelled")
	ErrOverpayment          = core.NewConflictError("the payment exceeds the invoice balance")
)

type (
	Repository interface {
		CreateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (FeeStructure, error)
		// QueryFeeStructures returns fee structures ordered by year, term & name.
		QueryFeeStructures(ctx context.Context, filter *FeeStructureFilter, exec ...core.DBExecutor) ([]FeeStructure, error)
		UpdateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		DeleteFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)
		GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (Invoice, error)
		// LockInvoice reads an invoice and holds its row until exec's transaction ends.
		LockInvoice(ctx context.Context, id string, exec core.DBExecutor) (Invoice, error)
		// QueryInvoices returns the most recent invoices first.
		QueryInvoices(ctx context.Context, filter *InvoiceFilter, exec ...core.DBExecutor) ([]Invoice, error)
		UpdateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (Payment, error)
		// QueryPayments returns payments ordered by payment date.
		QueryPayments(ctx context.Context, filter *PaymentFilter, exec ...core.DBExecutor) ([]Payment, error)
	}

	Service struct {
		tx          core.Transactor
		repo        Repository
		learnerRepo learner.Repository
		schoolRepo  school.Repository
		seq         core.Sequencer
		events      core.EventPublisher
		printer     *core.Printer
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	learnerRepo learner.Repository,
	schoolRepo school.Repository,
	seq core.Sequencer,
	events core.EventPublisher,
	printer *core.Printer,
) *Service {
	return &Service{
		tx:          tx,
		repo:        repo,
		learnerRepo: learnerRepo,
		schoolRepo:  schoolRepo,
		seq:         seq,
		events:      events,
		printer:     printer,
	}
}

// Fee structures

func (svc *Service) checkFeeStructure(ctx context.Context, in FeeStructureInput, excludeID string) error {
	if _, err := svc.schoolRepo.GetGrade(ctx, in.GradeID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("grade_id", school.ErrGradeNotFound.Error())
		}
		return errors.Wrap(err, "finding grade")
	}
	existing, err := svc.repo.QueryFeeStructures(ctx, &FeeStructureFilter{
		GradeID:      in.GradeID,
		AcademicYear: in.AcademicYear,
		Term:         in.Term,
	})
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	for _, fs := range existing {
		if fs.ID != excludeID {
			return ErrFeeStructureExists
		}
	}
	return nil
}

func (svc *Service) CreateFeeStructure(ctx context.Context, in FeeStructureInput) (FeeStructure, error) {
	if err := svc.checkFeeStructure(ctx, in, ""); err != nil {
		return FeeStructure{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateFeeStructure(ctx, FeeStructure{
		GradeID:      in.GradeID,
		AcademicYear: in.AcademicYear,
		Term:         in.Term,
		Name:         in.Name,
		Amount:       core.Round2(*in.Amount),
		DueDate:      in.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) GetFeeStructure(ctx context.Context, id string) (FeeStructure, error) {
	return svc.repo.GetFeeStructure(ctx, id)
}

func (svc *Service) QueryFeeStructures(ctx context.Context, filter *FeeStructureFilter) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx, filter)
}

// UpdateFeeStructure does not touch invoices already generated from fs.
func (svc *Service) UpdateFeeStructure(ctx context.Context, fs FeeStructure, in FeeStructureInput) (FeeStructure, error) {
	if err := svc.checkFeeStructure(ctx, in, fs.ID); err != nil {
		return FeeStructure{}, err
	}
	fs.GradeID = in.GradeID
	fs.AcademicYear = in.AcademicYear
	fs.Term = in.Term
	fs.Name = in.Name
	fs.Amount = core.Round2(*in.Amount)
	fs.DueDate = in.DueDate
	fs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateFeeStructure(ctx, fs)
}

func (svc *Service) DeleteFeeStructure(ctx context.Context, id string) error {
	invs, err := svc.repo.QueryInvoices(ctx, &InvoiceFilter{FeeStructureID: id})
	if err != nil {
		return errors.Wrap(err, "querying invoices")
	}
	if len(invs) > 0 {
		return ErrFeeStructureInUse
	}
	return svc.repo.DeleteFeeStructure(ctx, id)
}

// Invoices

// NewInvoiceNumber formats the n-th invoice of year.
func NewInvoiceNumber(year, n int) string {
	return fmt.Sprintf("INV-%d-%05d", year, n)
}

// NewReceiptNumber formats the n-th receipt of year.
func NewReceiptNumber(year, n int) string {
	return fmt.Sprintf("RCT-%d-%05d", year, n)
}

func (svc *Service) newInvoice(ctx context.Context, inv Invoice, exec core.DBExecutor) (Invoice, error) {
	n, err := svc.seq.Next(ctx, fmt.Sprintf("invoice:%d", inv.AcademicYear), exec)
	if err != nil {
		return Invoice{}, errors.Wrap(err, "getting next invoice sequence")
	}
	now := time.Now().UTC()
	inv.InvoiceNumber = NewInvoiceNumber(inv.AcademicYear, n)
	inv.Amount = core.Round2(inv.Amount)
	inv.AmountPaid = 0
	inv.Balance = inv.Amount
	inv.Status = StatusPending
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return svc.repo.CreateInvoice(ctx, inv, exec)
}

// GenerateInvoices bills every active learner of the fee structure's grade.
// Learners already holding a (non cancelled) invoice for it are skipped, so it is safe to run again.
func (svc *Service) GenerateInvoices(ctx context.Context, feeStructureID string) (GenerationResult, error) {
	res := GenerationResult{Created: []Invoice{}}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		fs, err := svc.repo.GetFeeStructure(ctx, feeStructureID, exec)
		if err != nil {
			return err
		}
		learners, err := svc.learnerRepo.QueryLearners(ctx, &learner.QueryFilter{
			GradeID: fs.GradeID,
			Status:  learner.StatusActive,
		}, nil, exec)
		if err != nil {
			return errors.Wrap(err, "querying learners")
		}
		existing, err := svc.repo.QueryInvoices(ctx, &InvoiceFilter{FeeStructureID: fs.ID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying invoices")
		}
		invoiced := make(map[string]bool, len(existing))
		for _, inv := range existing {
			if inv.Status != StatusCancelled {
				invoiced[inv.LearnerID] = true
			}
		}

		res.Learners = len(learners)
		for _, l := range learners {
			if invoiced[l.ID] {
				res.Skipped++
				continue
			}
			inv, err := svc.newInvoice(ctx, Invoice{
				LearnerID:      l.ID,
				GradeID:        fs.GradeID,
				FeeStructureID: &fs.ID,
				AcademicYear:   fs.AcademicYear,
				Term:           fs.Term,
				Description:    fs.Name,
				Amount:         fs.Amount,
				DueDate:        fs.DueDate,
			}, exec)
			if err != nil {
				return errors.Wrap(err, "creating invoice")
			}
			res.Created = append(res.Created, inv)
		}
		return nil
	})
	if err != nil {
		return GenerationResult{}, err
	}
	return res, nil
}

func (svc *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (Invoice, error) {
	var inv Invoice
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		l, err := svc.learnerRepo.GetLearner(ctx, in.LearnerID, exec)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("learner_id", learner.ErrNotFound.Error())
			}
			return errors.Wrap(err, "finding learner")
		}
		inv, err = svc.newInvoice(ctx, Invoice{
			LearnerID:    l.ID,
			GradeID:      l.GradeID,
			AcademicYear: in.AcademicYear,
			Term:         in.Term,
			Description:  in.Description,
			Amount:       *in.Amount,
			DueDate:      in.DueDate,
		}, exec)
		return err
	})
	return inv, err
}

func (svc *Service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	return svc.repo.GetInvoice(ctx, id)
}

func (svc *Service) QueryInvoices(ctx context.Context, filter *InvoiceFilter) ([]Invoice, error) {
	return svc.repo.QueryInvoices(ctx, filter)
}

// CancelInvoice cancels an invoice without payments. Its balance is cleared.
func (svc *Service) CancelInvoice(ctx context.Context, id string) (Invoice, error) {
	var inv Invoice
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if inv, err = svc.repo.LockInvoice(ctx, id, exec); err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return ErrInvoiceCancelled
		}
		if inv.AmountPaid > 0 {
			return ErrInvoiceHasPayments
		}
		inv.Status = StatusCancelled
		inv.Balance = 0
		inv.UpdatedAt = time.Now().UTC()
		inv, err = svc.repo.UpdateInvoice(ctx, inv, exec)
		return err
	})
	return inv, err
}

// Payments

// RecordPayment saves a payment against an invoice and updates its balance & status, atomically.
func (svc *Service) RecordPayment(ctx context.Context, recordedBy string, in PaymentInput) (Payment, Invoice, error) {
	var (
		p   Payment
		inv Invoice
	)
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if inv, err = svc.repo.LockInvoice(ctx, in.InvoiceID, exec); err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("invoice_id", ErrInvoiceNotFound.Error())
			}
			return errors.Wrap(err, "finding invoice")
		}
		if inv.Status == StatusCancelled {
			return ErrInvoiceCancelled
		}
		amount := core.Round2(*in.Amount)
		if amount > inv.Balance {
			return ErrOverpayment
		}

		now := time.Now().UTC()
		paidAt := in.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}
		n, err := svc.seq.Next(ctx, fmt.Sprintf("receipt:%d", paidAt.Year()), exec)
		if err != nil {
			return errors.Wrap(err, "getting next receipt sequence")
		}

		p, err = svc.repo.CreatePayment(ctx, Payment{
			ReceiptNumber: NewReceiptNumber(paidAt.Year(), n),
			InvoiceID:     inv.ID,
			LearnerID:     inv.LearnerID,
			Amount:        amount,
			Method:        in.Method,
			Reference:     in.Reference,
			PaidAt:        paidAt.UTC(),
			RecordedBy:    core.StringPtr(recordedBy),
			CreatedAt:     now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating payment")
		}

		inv.applyPayment(amount)
		inv.UpdatedAt = now
		inv, err = svc.repo.UpdateInvoice(ctx, inv, exec)
		return errors.Wrap(err, "updating invoice")
	})
	if err != nil {
		return Payment{}, Invoice{}, err
	}

	svc.events.Publish(core.NewEvent(core.EventPaymentRecorded, map[string]interface{}{
		"payment_id":     p.ID,
		"invoice_number": inv.InvoiceNumber,
		"amount":         p.Amount,
		"balance":        inv.Balance,
	}))
	return p, inv, nil
}

func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) QueryPayments(ctx context.Context, filter *PaymentFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

// AmountInWords spells out amount, e.g. "one thousand shillings and fifty cents".
func AmountInWords(amount float64) string {
	whole := int(amount)
	cents := int(math.Round((amount - float64(whole)) * 100))
	words := fmt.Sprintf("%s %s", num2words.Convert(whole), currencyWord)
	if cents > 0 {
		words += fmt.Sprintf(" and %s cents", num2words.Convert(cents))
	}
	return words
}

func (svc *Service) Receipt(ctx context.Context, paymentID string) (Receipt, error) {
	p, err := svc.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return Receipt{}, err
	}
	inv, err := svc.repo.GetInvoice(ctx, p.InvoiceID)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "finding invoice")
	}
	l, err := svc.learnerRepo.GetLearner(ctx, p.LearnerID)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "finding learner")
	}
	return Receipt{
		ReceiptNumber:   p.ReceiptNumber,
		Payment:         p,
		InvoiceNumber:   inv.InvoiceNumber,
		LearnerName:     l.FullName(),
		AdmissionNumber: l.AdmissionNumber,
		AmountInWords:   AmountInWords(p.Amount),
		Balance:         inv.Balance,
	}, nil
}

// PrintReceipt writes the printable HTML receipt of a payment to w.
func (svc *Service) PrintReceipt(ctx context.Context, paymentID string, w io.Writer) error {
	rct, err := svc.Receipt(ctx, paymentID)
	if err != nil {
		return err
	}
	return svc.printer.Render(w, "receipt", core.PrintData{Receipt: rct})
}

// Reporting

func (svc *Service) LearnerStatement(ctx context.Context, learnerID string) (Statement, error) {
	l, err := svc.learnerRepo.GetLearner(ctx, learnerID)
	if err != nil {
		return Statement{}, err
	}
	invs, err := svc.repo.QueryInvoices(ctx, &InvoiceFilter{LearnerID: l.ID})
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying invoices")
	}
	payments, err := svc.repo.QueryPayments(ctx, &PaymentFilter{LearnerID: l.ID})
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying payments")
	}

	st := Statement{Learner: l, Invoices: invs, Payments: payments}
	for _, inv := range invs {
		if inv.Status == StatusCancelled {
			continue
		}
		st.TotalBilled += inv.Amount
		st.Balance += inv.Balance
	}
	for _, p := range payments {
		st.TotalPaid += p.Amount
	}
	st.TotalBilled = core.Round2(st.TotalBilled)
	st.TotalPaid = core.Round2(st.TotalPaid)
	st.Balance = core.Round2(st.Balance)
	return st, nil
}

// Summary totals billed, collected & outstanding amounts. Cancelled invoices are only counted per status.
func (svc *Service) Summary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	invs, err := svc.repo.QueryInvoices(ctx, &InvoiceFilter{
		AcademicYear: filter.AcademicYear,
		Term:         filter.Term,
		GradeID:      filter.GradeID,
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying invoices")
	}

	sum := Summary{ByStatus: make(map[string]int, len(InvoiceStatuses))}
	for _, s := range InvoiceStatuses {
		sum.ByStatus[s] = 0
	}
	for _, inv := range invs {
		sum.ByStatus[inv.Status]++
		if inv.Status == StatusCancelled {
			continue
		}
		sum.Invoices++
		sum.Billed += inv.Amount
		sum.Collected += inv.AmountPaid
		sum.Outstanding += inv.Balance
	}
	sum.Billed = core.Round2(sum.Billed)
	sum.Collected = core.Round2(sum.Collected)
	sum.Outstanding = core.Round2(sum.Outstanding)
	return sum, nil
}
