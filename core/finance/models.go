package finance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
)

// Invoice statuses
const (
	StatusPending   = "pending"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

var InvoiceStatuses = []string{StatusPending, StatusPartial, StatusPaid, StatusCancelled}

// Payment methods
const (
	MethodCash   = "cash"
	MethodMpesa  = "mpesa"
	MethodBank   = "bank"
	MethodCheque = "cheque"
)

var PaymentMethods = []string{MethodCash, MethodMpesa, MethodBank, MethodCheque}

// FeeStructure is the fee billed to every learner of a grade for a term.
type FeeStructure struct {
	ID           string    `json:"id"`
	GradeID      string    `json:"grade_id"`
	AcademicYear int       `json:"academic_year"`
	Term         int       `json:"term"`
	Name         string    `json:"name"`
	Amount       float64   `json:"amount"`
	DueDate      core.Date `json:"due_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Invoice struct {
	ID             string    `json:"id"`
	InvoiceNumber  string    `json:"invoice_number"`
	LearnerID      string    `json:"learner_id"`
	GradeID        string    `json:"grade_id"`
	FeeStructureID *string   `json:"fee_structure_id"`
	AcademicYear   int       `json:"academic_year"`
	Term           int       `json:"term"`
	Description    string    `json:"description"`
	Amount         float64   `json:"amount"`
	AmountPaid     float64   `json:"amount_paid"`
	Balance        float64   `json:"balance"`
	Status         string    `json:"status"`
	DueDate        core.Date `json:"due_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// applyPayment adds amount to the paid amount and refreshes the balance & status.
func (inv *Invoice) applyPayment(amount float64) {
	inv.AmountPaid = core.Round2(inv.AmountPaid + amount)
	inv.Balance = core.Round2(inv.Amount - inv.AmountPaid)
	switch {
	case inv.Balance <= 0:
		inv.Status = StatusPaid
	case inv.AmountPaid > 0:
		inv.Status = StatusPartial
	default:
		inv.Status = StatusPending
	}
}

type Payment struct {
	ID            string    `json:"id"`
	ReceiptNumber string    `json:"receipt_number"`
	InvoiceID     string    `json:"invoice_id"`
	LearnerID     string    `json:"learner_id"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	Reference     string    `json:"reference"`
	PaidAt        time.Time `json:"paid_at"`
	RecordedBy    *string   `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type FeeStructureInput struct {
	GradeID      string    `json:"grade_id" validate:"required,uuid"`
	AcademicYear int       `json:"academic_year" validate:"required,min=2000,max=2100"`
	Term         int       `json:"term" validate:"required,term"`
	Name         string    `json:"name" validate:"required,notblank,max=100"`
	Amount       *float64  `json:"amount" validate:"required,gt=0"`
	DueDate      core.Date `json:"due_date"`
}

func (in *FeeStructureInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

type InvoiceInput struct {
	LearnerID    string    `json:"learner_id" validate:"required,uuid"`
	AcademicYear int       `json:"academic_year" validate:"required,min=2000,max=2100"`
	Term         int       `json:"term" validate:"required,term"`
	Description  string    `json:"description" validate:"required,notblank,max=200"`
	Amount       *float64  `json:"amount" validate:"required,gt=0"`
	DueDate      core.Date `json:"due_date"`
}

func (in *InvoiceInput) Validate(validate *validator.Validate) error {
	in.Description = core.CleanString(in.Description)
	return validate.Struct(in)
}

type PaymentInput struct {
	InvoiceID string    `json:"invoice_id" validate:"required,uuid"`
	Amount    *float64  `json:"amount" validate:"required,gt=0"`
	Method    string    `json:"method" validate:"required,paymethod"`
	Reference string    `json:"reference" validate:"max=50"`
	PaidAt    time.Time `json:"paid_at"` // defaults to now
}

func (in *PaymentInput) Validate(validate *validator.Validate) error {
	in.Method = core.CleanString(in.Method, true /* lower */)
	in.Reference = core.CleanString(in.Reference)
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.PaidAt.After(time.Now().Add(time.Minute)) {
		return core.NewFieldError("paid_at", "payment date cannot be in the future")
	}
	return nil
}

type FeeStructureFilter struct {
	GradeID      string
	AcademicYear int
	Term         int
}

type InvoiceFilter struct {
	Search         string // matches the invoice number
	LearnerID      string
	GradeID        string
	FeeStructureID string
	AcademicYear   int
	Term           int
	Status         string
}

func (qf *InvoiceFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

type PaymentFilter struct {
	InvoiceID string
	LearnerID string
}

// GenerationResult summarizes a GenerateInvoices run.
type GenerationResult struct {
	Created  []Invoice `json:"created"`
	Skipped  int       `json:"skipped"` // learners already invoiced
	Learners int       `json:"learners"`
}

type Receipt struct {
	ReceiptNumber   string  `json:"receipt_number"`
	Payment         Payment `json:"payment"`
	InvoiceNumber   string  `json:"invoice_number"`
	LearnerName     string  `json:"learner_name"`
	AdmissionNumber string  `json:"admission_number"`
	AmountInWords   string  `json:"amount_in_words"`
	Balance         float64 `json:"balance"`
}

type Statement struct {
	Learner     learner.Learner `json:"learner"`
	Invoices    []Invoice       `json:"invoices"`
	Payments    []Payment       `json:"payments"`
	TotalBilled float64         `json:"total_billed"`
	TotalPaid   float64         `json:"total_paid"`
	Balance     float64         `json:"balance"`
}

// SummaryFilter narrows Summary to a period or grade. Zero values match everything.
type SummaryFilter struct {
	AcademicYear int
	Term         int
	GradeID      string
}

type Summary struct {
	Billed      float64        `json:"billed"`
	Collected   float64        `json:"collected"`
	Outstanding float64        `json:"outstanding"`
	Invoices    int            `json:"invoices"`
	ByStatus    map[string]int `json:"by_status"`
}
