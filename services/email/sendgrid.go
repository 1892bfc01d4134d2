package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridMailPath = "/v3/mail/send"
)

type sendgridService struct {
	conf   *core.Config
	logger core.Logger
	host   string
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService returns an email service delivering messages through the SendGrid v3 API.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{conf: conf, logger: logger, host: sendgridHost}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *sendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email: %v", err), errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if err := svc.post(svc.newMail(msg)); err != nil {
		svc.logger.Error(fmt.Sprintf("sending email %q: %v", msg.Subject, err), err)
	}
}

// newMail builds the v3 payload; empty content blocks are left out as the API rejects them.
func (svc *sendgridService) newMail(msg *core.EmailMessage) *sgmail.SGMailV3 {
	rcpt := sgmail.NewPersonalization()
	rcpt.Subject = "[" + svc.conf.AppName + "] " + msg.Subject
	for _, list := range []struct {
		add   func(...*sgmail.Email)
		addrs []mail.Address
	}{{rcpt.AddTos, msg.To}, {rcpt.AddCCs, msg.Cc}, {rcpt.AddBCCs, msg.Bcc}} {
		for _, a := range list.addrs {
			list.add(sgmail.NewEmail(a.Name, a.Address))
		}
	}

	from := svc.conf.DefaultFromEmail
	m := sgmail.NewV3Mail().
		SetFrom(sgmail.NewEmail(from.Name, from.Address)).
		AddPersonalizations(rcpt)
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(sgmail.NewAttachment().
			SetContent(at.Content.String()). // already base64
			SetType(at.ContentType).
			SetFilename(at.Filename).
			SetDisposition("attachment"))
	}
	return m
}

func (svc *sendgridService) post(m *sgmail.SGMailV3) error {
	req := sendgrid.GetRequest(svc.conf.SendgridApiKey, sendgridMailPath, svc.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequest(req)
	if err != nil {
		return errors.Wrap(err, "calling sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
