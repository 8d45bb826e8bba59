package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplatesRender(t *testing.T) {
	tpl, err := LoadTemplates()
	require.NoError(t, err)

	msg, err := tpl.Render(TemplateVerificationCode, Recipient{Name: "Ada", Email: "ada@example.com"}, map[string]any{
		"Name": "Ada", "Code": "123456", "ExpiresIn": "10m0s",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your verification code", msg.Subject)
	assert.Contains(t, msg.HTML, "123456")
	assert.Equal(t, "ada@example.com", msg.To[0].Email)

	msg, err = tpl.Render(TemplateConfirmationLink, Recipient{Email: "ada@example.com"}, map[string]any{
		"Name": "<b>Ada</b>", "Link": "http://localhost/v1/auth/confirm-email/abc", "ExpiresIn": "24h0m0s",
	})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "http://localhost/v1/auth/confirm-email/abc")
	assert.NotContains(t, msg.HTML, "<b>Ada</b>")

	_, err = tpl.Render("nope", Recipient{Email: "a@b.co"}, nil)
	assert.Error(t, err)

	_, err = tpl.Render(TemplateVerificationCode, Recipient{Email: "a@b.co"}, map[string]any{"Name": "x"})
	assert.Error(t, err)
}

func TestParseTemplatesRejectsBadInput(t *testing.T) {
	_, err := ParseTemplates([]byte("not: [valid"))
	assert.Error(t, err)
	_, err = ParseTemplates([]byte("x:\n  subject: s\n  html: \"{{.Broken\"\n"))
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := &LogMailer{Out: &buf}
	err := m.Send(context.Background(), Message{
		To:      []Recipient{{Email: "ada@example.com"}},
		Subject: "Hi",
		HTML:    "<p>body</p>",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "To: ada@example.com")
	assert.Contains(t, buf.String(), "Subject: Hi")
	assert.Contains(t, buf.String(), "<p>body</p>")
}

func TestHTTPMailer(t *testing.T) {
	var got apiRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"1"}`))
	}))
	defer srv.Close()

	m := NewHTTPMailer(srv.URL, "k3y", Recipient{Name: "Maintenance", Email: "no-reply@example.com"}, time.Second)
	err := m.Send(context.Background(), Message{
		To:      []Recipient{{Name: "Ada", Email: "ada@example.com"}},
		Subject: "Hi",
		HTML:    "<p>x</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "k3y", apiKey)
	assert.Equal(t, "no-reply@example.com", got.Sender.Email)
	assert.Equal(t, "ada@example.com", got.To[0].Email)
	assert.Equal(t, "<p>x</p>", got.HTMLContent)
}

func TestHTTPMailerFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	defer srv.Close()

	m := NewHTTPMailer(srv.URL, "k", Recipient{Email: "no-reply@example.com"}, time.Second)
	err := m.Send(context.Background(), Message{To: []Recipient{{Email: "ada@example.com"}}})
	assert.ErrorIs(t, err, ErrNotSent)
	assert.Contains(t, err.Error(), "400")

	err = m.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNotSent)

	srv.Close()
	err = m.Send(context.Background(), Message{To: []Recipient{{Email: "ada@example.com"}}})
	assert.ErrorIs(t, err, ErrNotSent)
}
