package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "ouralink/internal/errors"
	"ouralink/internal/model"
	"ouralink/internal/scheduler"
)

// dataTypeCategories maps Oura webhook data types to refresh categories.
// Readiness events also refresh the temperature view, which is derived from
// readiness data.
var dataTypeCategories = map[string][]model.Category{
	"daily_sleep":     {model.CategorySleep},
	"sleep":           {model.CategorySleep},
	"daily_readiness": {model.CategoryReadiness, model.CategoryTemperature},
	"daily_activity":  {model.CategoryActivity},
	"workout":         {model.CategoryWorkouts},
	"daily_stress":    {model.CategoryStress},
	"daily_spo2":      {model.CategorySpO2},
}

type WebhookHandler struct {
	id        string
	secret    string
	userID    string
	scheduler *scheduler.Scheduler
	log       *zap.SugaredLogger
}

// NewWebhookHandler mints a fresh webhook id on startup; the operator
// registers the resulting URL with the Oura developer portal.
func NewWebhookHandler(secret, userID string, sched *scheduler.Scheduler, log *zap.SugaredLogger) *WebhookHandler {
	id := "oura_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	log.Infow("webhook endpoint ready", "path", "/api/webhook/"+id)
	return &WebhookHandler{
		id:        id,
		secret:    secret,
		userID:    userID,
		scheduler: sched,
		log:       log,
	}
}

func (h *WebhookHandler) ID() string { return h.id }

type webhookEvent struct {
	EventType string `json:"event_type"`
	DataType  string `json:"data_type"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	if c.Param("id") != h.id {
		writeError(c, apperrors.NotFound("unknown_webhook", "unknown webhook id"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, apperrors.BadRequest("invalid_body", "could not read request body"))
		return
	}

	if !h.verifySignature(c.GetHeader("x-oura-signature"), body) {
		h.log.Warnw("webhook signature verification failed")
		writeError(c, apperrors.Unauthorized("signature verification failed"))
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid webhook payload"))
		return
	}

	h.process(event)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// process is best-effort: events for other users or unhandled types are
// acknowledged and dropped, matching upstream delivery expectations.
func (h *WebhookHandler) process(event webhookEvent) {
	if h.userID != "" && event.UserID != h.userID {
		h.log.Warnw("webhook for different user", "user_id", event.UserID)
		return
	}

	operation, dataType, ok := strings.Cut(event.EventType, ".")
	if !ok || (operation != "create" && operation != "update") {
		h.log.Debugw("unhandled webhook event type", "event_type", event.EventType)
		return
	}
	if dataType == "" {
		dataType = event.DataType
	}

	categories, ok := dataTypeCategories[dataType]
	if !ok {
		h.log.Debugw("unhandled webhook data type", "data_type", dataType)
		return
	}

	h.log.Infow("webhook event accepted",
		"event_type", event.EventType, "categories", categories)
	for _, category := range categories {
		h.scheduler.KickCategory(category)
	}
}

// verifySignature checks the HMAC-SHA256 hex digest of the body. Deliveries
// without a signature pass when no secret is configured.
func (h *WebhookHandler) verifySignature(header string, body []byte) bool {
	if header == "" || h.secret == "" {
		return true
	}

	signature := strings.TrimPrefix(header, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
