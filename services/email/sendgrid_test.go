package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kcci/portal/core"
	logsvc "github.com/kcci/portal/services/logger"
)

type (
	sgAddress struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	sgRequest struct {
		From             sgAddress `json:"from"`
		Personalizations []struct {
			To      []sgAddress `json:"to"`
			CC      []sgAddress `json:"cc"`
			BCC     []sgAddress `json:"bcc"`
			Subject string      `json:"subject"`
		} `json:"personalizations"`
		Content []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"content"`
		Attachments []struct {
			Content     string `json:"content"`
			Type        string `json:"type"`
			Filename    string `json:"filename"`
			Disposition string `json:"disposition"`
		} `json:"attachments"`
		Categories   []string `json:"categories"`
		MailSettings *struct {
			SandboxMode struct {
				Enable bool `json:"enable"`
			} `json:"sandbox_mode"`
		} `json:"mail_settings"`
	}
)

// sendgridStub records the mails posted to it and answers with status.
type sendgridStub struct {
	mu       sync.Mutex
	status   int
	auth     string
	path     string
	requests []sgRequest
}

func (st *sendgridStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req sgRequest
	_ = json.Unmarshal(body, &req)

	st.mu.Lock()
	st.auth = r.Header.Get("Authorization")
	st.path = r.URL.Path
	st.requests = append(st.requests, req)
	status := st.status
	st.mu.Unlock()

	w.WriteHeader(status)
	if status >= http.StatusBadRequest {
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid"}]}`))
	}
}

func newSendgridTest(t *testing.T, status int) (*sendgridService, *sendgridStub) {
	stub := &sendgridStub{status: status}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	conf := &core.Config{
		AppName:        "KCCI",
		Env:            "TEST",
		TestMode:       true,
		SendgridApiKey: "SG.key",
		SendgridHost:   srv.URL,
	}
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)
	require.NoError(t, core.ParseEmailTemplates(conf, logger))

	svc := NewSendgridService(conf, logger).(*sendgridService)
	svc.from.Name, svc.from.Address = "KCCI", "noreply@kcci.test"
	return svc, stub
}

func TestSendgridService_send(t *testing.T) {
	svc, stub := newSendgridTest(t, http.StatusAccepted)

	msg := core.EmailMessage{
		To:           []mail.Address{{Name: "Kim Seo", Address: "seo@kcci.test"}},
		Cc:           []mail.Address{{Address: "finance@kcci.test"}, {Address: "SEO@kcci.test"}},
		Bcc:          []mail.Address{{Address: "finance@kcci.test"}, {Address: "audit@kcci.test"}},
		Subject:      "Settlement statement",
		TemplateName: "settlement_created",
		TemplateData: map[string]interface{}{
			"Name":       "Kim Seo",
			"PeriodFrom": "2026-03-01",
			"PeriodTo":   "2026-03-31",
			"ItemCount":  2,
			"Total":      "182000.00",
			"Currency":   "KRW",
		},
	}
	xlsx := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	require.NoError(t, msg.Attach(strings.NewReader("PK\x03\x04statement"), "settlement-2026-03.xlsx", xlsx))
	require.NoError(t, msg.Render())

	require.NoError(t, svc.send(msg))

	assert.Equal(t, "/v3/mail/send", stub.path)
	assert.Equal(t, "Bearer SG.key", stub.auth)
	require.Len(t, stub.requests, 1)
	req := stub.requests[0]

	assert.Equal(t, sgAddress{Name: "KCCI", Email: "noreply@kcci.test"}, req.From)
	require.Len(t, req.Personalizations, 1)
	p := req.Personalizations[0]
	assert.Equal(t, "[KCCI] Settlement statement", p.Subject)
	assert.Equal(t, []sgAddress{{Name: "Kim Seo", Email: "seo@kcci.test"}}, p.To)
	assert.Equal(t, []sgAddress{{Email: "finance@kcci.test"}}, p.CC)
	assert.Equal(t, []sgAddress{{Email: "audit@kcci.test"}}, p.BCC)

	if assert.Len(t, req.Content, 2) {
		assert.Equal(t, "text/plain", req.Content[0].Type)
		assert.Contains(t, req.Content[0].Value, "182000.00")
		assert.Equal(t, "text/html", req.Content[1].Type)
	}
	if assert.Len(t, req.Attachments, 1) {
		at := req.Attachments[0]
		assert.Equal(t, "settlement-2026-03.xlsx", at.Filename)
		assert.Equal(t, xlsx, at.Type)
		assert.Equal(t, "attachment", at.Disposition)
		assert.Equal(t, msg.Attachments[0].Content.String(), at.Content)
	}
	assert.Equal(t, []string{"portal:settlement_created"}, req.Categories)
	require.NotNil(t, req.MailSettings)
	assert.True(t, req.MailSettings.SandboxMode.Enable)
}

func TestSendgridService_sendPlain(t *testing.T) {
	svc, stub := newSendgridTest(t, http.StatusAccepted)
	svc.sandbox = false

	msg := core.EmailMessage{
		To:      []mail.Address{{Address: "kim@kcci.test"}},
		Subject: "Export ready",
	}
	require.NoError(t, svc.send(msg))

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	if assert.Len(t, req.Content, 1) {
		assert.Equal(t, "Export ready", req.Content[0].Value)
	}
	assert.Empty(t, req.Categories)
	assert.Nil(t, req.MailSettings)
}

func TestSendgridService_sendRejected(t *testing.T) {
	svc, _ := newSendgridTest(t, http.StatusBadRequest)

	err := svc.send(core.EmailMessage{To: []mail.Address{{Address: "kim@kcci.test"}}, TextContent: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendgrid responded 400")
}
