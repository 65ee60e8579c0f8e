package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type fakePipeline struct {
	reply string
	err   error
	calls []string
}

func (f *fakePipeline) HandleMessage(ctx context.Context, phone, profileName, text string) (string, error) {
	f.calls = append(f.calls, phone+"|"+text)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) error {
	f.sent = append(f.sent, to+"|"+body)
	return f.err
}

func newTestHandler(t *testing.T, pipeline *fakePipeline, sender *fakeSender) http.Handler {
	t.Helper()
	h, err := NewHandler(pipeline, sender, "sesame", "")
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return NewRouter(h)
}

func inboundBody(from, text string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "972500000000", "phone_number_id": "42"},
					"contacts": [{"profile": {"name": "Dana"}, "wa_id": %q}],
					"messages": [{"from": %q, "id": "wamid.1", "timestamp": "0", "type": "text", "text": {"body": %q}}]
				}
			}]
		}]
	}`, from, from, text)
}

func TestVerificationEchoesChallenge(t *testing.T) {
	t.Parallel()

	router := newTestHandler(t, &fakePipeline{reply: "ok"}, &fakeSender{})

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "sesame")
	q.Set("hub.challenge", "challenge-123")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+q.Encode(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "challenge-123" {
		t.Fatalf("challenge = %q", got)
	}
}

func TestVerificationRejectsWrongToken(t *testing.T) {
	t.Parallel()

	router := newTestHandler(t, &fakePipeline{reply: "ok"}, &fakeSender{})

	q := url.Values{}
	q.Set("hub.mode", "subscribe")
	q.Set("hub.verify_token", "wrong")
	q.Set("hub.challenge", "challenge-123")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+q.Encode(), nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestEventProcessedAndReplyDelivered(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{reply: "see you Saturday"}
	sender := &fakeSender{}
	router := newTestHandler(t, pipeline, sender)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(inboundBody("972501234567", "are we playing Sat?")))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(pipeline.calls) != 1 || pipeline.calls[0] != "972501234567|are we playing Sat?" {
		t.Fatalf("pipeline calls = %v", pipeline.calls)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "972501234567|see you Saturday" {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestMalformedPayloadHasNoSideEffects(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{reply: "ok"}
	sender := &fakeSender{}
	router := newTestHandler(t, pipeline, sender)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(pipeline.calls) != 0 || len(sender.sent) != 0 {
		t.Fatal("rejected payload must cause no side effects")
	}
}

func TestStatusOnlyDeliveryIsAcked(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{reply: "ok"}
	sender := &fakeSender{}
	router := newTestHandler(t, pipeline, sender)

	body := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","metadata":{"phone_number_id":"42"},"statuses":[{"id":"wamid.1","status":"delivered"}]}}]}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(pipeline.calls) != 0 {
		t.Fatal("status updates must not reach the pipeline")
	}
}

func TestPipelineFailureDegradesToPoliteReply(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{err: fmt.Errorf("boom")}
	sender := &fakeSender{}
	router := newTestHandler(t, pipeline, sender)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(inboundBody("972501234567", "hi"))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one fallback delivery, got %v", sender.sent)
	}
	if strings.Contains(sender.sent[0], "boom") {
		t.Fatal("internal error leaked to the player")
	}
}

func TestSignatureValidation(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{reply: "ok"}
	h, err := NewHandler(pipeline, &fakeSender{}, "sesame", "app-secret")
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	router := NewRouter(h)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(inboundBody("972501234567", "hi")))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(pipeline.calls) != 0 {
		t.Fatal("invalid signature must cause no side effects")
	}
}
