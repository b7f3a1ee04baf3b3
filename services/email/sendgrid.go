package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/kcci/portal/core"
)

const (
	sendgridEndpoint = "/v3/mail/send"
	sendgridTimeout  = 15 * time.Second

	// mails are tagged with their template so that delivery stats can be grouped per notification
	categoryPrefix = "portal:"
)

type sendgridService struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	sandbox    bool
	client     *rest.Client
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService returns an EmailService backed by the SendGrid v3 API.
// Mails are accepted but not delivered in TEST mode (sandbox).
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		host:       conf.SendgridHost,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		sandbox:    conf.TestMode,
		client:     &rest.Client{HTTPClient: &http.Client{Timeout: sendgridTimeout}},
		logger:     logger,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc *sendgridService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email: %v", err), errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if err := svc.send(*msg); err != nil {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err, map[string]interface{}{
			"template":    msg.TemplateName,
			"subject":     msg.Subject,
			"recipients":  len(msg.To) + len(msg.Cc) + len(msg.Bcc),
			"attachments": len(msg.Attachments),
		})
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	// SendGrid rejects a mail listing the same address twice across to, cc and bcc
	seen := make(map[string]bool)
	recipients := func(addrs []mail.Address, add func(...*sgmail.Email)) {
		for _, addr := range addrs {
			key := strings.ToLower(addr.Address)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			add(sgmail.NewEmail(addr.Name, addr.Address))
		}
	}
	recipients(msg.To, p.AddTos)
	recipients(msg.Cc, p.AddCCs)
	recipients(msg.Bcc, p.AddBCCs)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	// a text/plain part is mandatory and cannot be empty
	text := msg.TextContent
	if text == "" {
		text = msg.Subject
	}
	m.AddContent(sgmail.NewContent("text/plain", text))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(), // already base64
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}

	if msg.TemplateName != "" {
		m.AddCategories(categoryPrefix + msg.TemplateName)
	}
	if svc.sandbox {
		m.SetMailSettings(sgmail.NewMailSettings().SetSandboxMode(sgmail.NewSetting(true)))
	}
	return m
}

func (svc *sendgridService) send(msg core.EmailMessage) error {
	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, svc.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := svc.client.Send(req)
	if err != nil {
		return errors.Wrap(err, "calling sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
