package emailsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	testutil "github.com/shuleapp/shule/tests"
)

func newTestSendgrid(t *testing.T, statuses ...int) (*sendgridService, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, sendgridEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "personalizations")

		status := statuses[len(statuses)-1]
		if int(n) <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"errors":[]}`))
	}))
	t.Cleanup(srv.Close)

	orig := sendgridBackoff
	sendgridBackoff = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(func() { sendgridBackoff = orig })

	conf := core.NewTestConfig()
	conf.SendgridApiKey = "test-key"
	svc := NewSendgridService(conf, testutil.NopLogger{})
	svc.host = srv.URL
	return svc, &calls
}

func newTestMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:      []mail.Address{{Name: "Mama Amina", Address: "mama.amina@test.ke"}},
		Subject: "Fee reminder",
		BodyStr: "Term 1 fees are due.",
	}
}

func TestSendgridService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		svc, calls := newTestSendgrid(t, http.StatusAccepted)
		assert.NoError(t, svc.SendMessage(ctx, newTestMessage()))
		assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	})

	t.Run("retries server errors", func(t *testing.T) {
		svc, calls := newTestSendgrid(t, http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusAccepted)
		assert.NoError(t, svc.SendMessage(ctx, newTestMessage()))
		assert.EqualValues(t, 3, atomic.LoadInt32(calls))
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		svc, calls := newTestSendgrid(t, http.StatusBadGateway)
		err := svc.SendMessage(ctx, newTestMessage())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sendgrid status 502")
		assert.EqualValues(t, sendgridAttempts, atomic.LoadInt32(calls))
	})

	t.Run("rejected", func(t *testing.T) {
		svc, calls := newTestSendgrid(t, http.StatusBadRequest)
		err := svc.SendMessage(ctx, newTestMessage())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
		assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	})

	t.Run("nothing to send", func(t *testing.T) {
		svc, calls := newTestSendgrid(t, http.StatusAccepted)
		msg := newTestMessage()
		msg.To = nil
		assert.Equal(t, core.ErrNothingToSend, svc.SendMessage(ctx, msg))
		assert.EqualValues(t, 0, atomic.LoadInt32(calls))
	})
}
