package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/shuleapp/shule/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	sendgridAttempts = 3
	sendgridTimeout  = 30 * time.Second
)

// sendgridBackoff is the wait before retry n (1-based).
var sendgridBackoff = func(n int) time.Duration { return time.Duration(n) * time.Second }

type sendgridService struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	client     *rest.Client
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		host:       sendgridHost,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		client:     sendgrid.DefaultClient,
		logger:     logger,
	}
}

// SendMessages sends every message in its own goroutine. Undelivered messages are logged.
func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sendgridTimeout)
			defer cancel()

			if err := svc.SendMessage(ctx, msg); err != nil && !errors.Is(err, core.ErrNothingToSend) {
				svc.logger.Error(
					fmt.Sprintf("email %q to %s not delivered: %v", msg.Subject, joinRecipients(msg.To), err),
					err,
				)
			}
		}()
	}
}

// SendMessage posts msg to sendgrid, retrying rate limited and 5xx responses.
func (svc *sendgridService) SendMessage(ctx context.Context, msg *core.EmailMessage) error {
	if err := msg.Prepare(); err != nil {
		return err
	}
	body := sgmail.GetRequestBody(svc.prepare(*msg))

	var lastErr error
	for attempt := 1; attempt <= sendgridAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "sending email")
			case <-time.After(sendgridBackoff(attempt - 1)):
			}
		}

		res, err := svc.post(ctx, body)
		switch {
		case err != nil:
			lastErr = errors.Wrap(err, "sending email")
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			lastErr = errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("sendgrid rejected email, status %d: %s", res.StatusCode, res.Body)
		default:
			return nil
		}
	}
	return lastErr
}

func (svc *sendgridService) post(ctx context.Context, body []byte) (*rest.Response, error) {
	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, svc.host)
	req.Method = rest.Post
	req.Body = body

	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, err
	}
	httpRes, err := svc.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return rest.BuildResponse(httpRes)
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgAddress(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgAddress(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgAddress(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	// report cards and receipts travel as attachments
	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     a.Content.String(),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func sgAddress(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func joinRecipients(addrs []mail.Address) string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.Address)
	}
	return strings.Join(list, ", ")
}
