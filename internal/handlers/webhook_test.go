package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/soundloom/companion-bot/internal/platform/logger"
)

func newWebhookRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	h := NewWebhookHandler(log, nil, secret)
	r := gin.New()
	r.POST("/webhook", h.HandleUpdate)
	return r
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	r := newWebhookRouter(t, "expected-secret")

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong", header: "other-secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
			if tc.header != "" {
				req.Header.Set(secretTokenHeader, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d, want 401", w.Code)
			}
		})
	}
}

func TestWebhookMalformedPayloadStillAnswers200(t *testing.T) {
	r := newWebhookRouter(t, "expected-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{not json`))
	req.Header.Set(secretTokenHeader, "expected-secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// A non-2xx would make the platform redeliver the same broken payload.
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
}

func TestWebhookNoSecretSkipsAuth(t *testing.T) {
	r := newWebhookRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
}
