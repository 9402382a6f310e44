package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundloom/companion-bot/internal/clients/botapi"
	pkgerrors "github.com/soundloom/companion-bot/internal/pkg/errors"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/session"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type WebhookHandler struct {
	log    *logger.Logger
	svc    *session.Service
	secret string
}

func NewWebhookHandler(baseLog *logger.Logger, svc *session.Service, secret string) *WebhookHandler {
	return &WebhookHandler{
		log:    baseLog.With("handler", "WebhookHandler"),
		svc:    svc,
		secret: secret,
	}
}

// HandleUpdate receives one update per delivery. Anything but an auth failure
// answers 200: a non-2xx makes the platform redeliver, and a malformed or
// unhandleable update will not get better on retry.
func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			RespondError(c, http.StatusUnauthorized, "bad_secret", pkgerrors.ErrInvalidArgument)
			return
		}
	}

	var upd botapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.log.Warn("Malformed webhook payload", "error", err)
		RespondOK(c, gin.H{"ok": true})
		return
	}

	h.svc.HandleUpdate(c.Request.Context(), upd)
	RespondOK(c, gin.H{"ok": true})
}
