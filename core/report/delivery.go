package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
)

const reportCardTemplate = "report_card"

const (
	errNoRecords    = "no performance records for this period"
	errNotDelivered = "the report card could not be delivered, try again later"
)

// PrintReportCard writes the printable HTML report card to w.
func (svc *Service) PrintReportCard(ctx context.Context, q ReportCardQuery, w io.Writer) error {
	card, err := svc.ReportCard(ctx, q)
	if err != nil {
		return err
	}
	return svc.printer.Render(w, reportCardTemplate, core.PrintData{Card: card})
}

// SendReportCardEmail emails the report card of a learner, with the printable version attached.
// Problems the user can fix (unknown learner, empty period, missing recipient) and delivery failures
// are reported in the result, not as errors.
func (svc *Service) SendReportCardEmail(ctx context.Context, req SendReportCardRequest) (SendResult, error) {
	card, err := svc.ReportCard(ctx, ReportCardQuery{
		LearnerID:    req.LearnerID,
		AcademicYear: req.AcademicYear,
		Term:         req.Term,
		ExamType:     req.ExamType,
	})
	if err != nil {
		if core.IsNotFound(err) {
			return SendResult{Message: err.Error()}, nil
		}
		return SendResult{}, err
	}
	if len(card.Subjects) == 0 {
		return SendResult{Message: errNoRecords}, nil
	}

	to := mail.Address{Address: req.RecipientEmail}
	if to.Address == "" {
		if card.Learner.ParentID == nil {
			return SendResult{Message: "the learner has no parent on record; provide a recipient email"}, nil
		}
		parent, err := svc.learnerRepo.GetParent(ctx, *card.Learner.ParentID)
		if err != nil {
			if core.IsNotFound(err) {
				return SendResult{Message: "the learner has no parent on record; provide a recipient email"}, nil
			}
			return SendResult{}, errors.Wrap(err, "finding parent")
		}
		if parent.Email == "" {
			return SendResult{Message: "the parent has no email address; provide a recipient email"}, nil
		}
		to = mail.Address{Name: parent.Name, Address: parent.Email}
	}

	subject := fmt.Sprintf("Report card: %s, %d term %d", card.Learner.FullName(), card.AcademicYear, card.Term)
	msg := &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      subject,
		TemplateName: reportCardTemplate,
		TemplateData: card,
	}

	var buf bytes.Buffer
	if err := svc.printer.Render(&buf, reportCardTemplate, core.PrintData{Card: card}); err != nil {
		return SendResult{}, err
	}
	fname := fmt.Sprintf("report-card-%s-%d-term%d.html", card.Learner.AdmissionNumber, card.AcademicYear, card.Term)
	if err := msg.Attach(&buf, sanitizeFilename(fname), "text/html"); err != nil {
		return SendResult{}, errors.Wrap(err, "attaching report card")
	}

	if err := svc.mailSvc.SendMessage(ctx, msg); err != nil {
		svc.logger.Error(fmt.Sprintf("sending report card of %s to %s: %v", card.Learner.AdmissionNumber, to.Address, err), err)
		return SendResult{Message: errNotDelivered}, nil
	}
	svc.logger.Info(fmt.Sprintf("report card of %s sent to %s", card.Learner.AdmissionNumber, to.Address))
	return SendResult{Success: true, Message: fmt.Sprintf("Report card sent to %s", to.Address)}, nil
}

func sanitizeFilename(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c == '/' || c == '\\' || c == ' ' {
			b[i] = '-'
		}
	}
	return string(b)
}
