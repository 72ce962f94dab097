package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradejournal/broker-live-sync/internal/api/http/middleware"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/domain"
	"github.com/tradejournal/broker-live-sync/internal/broker_live_state/ingest"
)

const maxBodyBytes = 1 << 20

// Ingester stores a decoded payload.
type Ingester interface {
	Ingest(ctx context.Context, p ingest.Payload) (*domain.BrokerLiveState, error)
}

// Handler serves the broker live-state sync endpoint.
type Handler struct {
	ingester Ingester
	keys     keyVerifier
	logger   *slog.Logger
}

func New(ingester Ingester, internalKey string, logger *slog.Logger) *Handler {
	return &Handler{
		ingester: ingester,
		keys:     newKeyVerifier(internalKey),
		logger:   logger,
	}
}

// Sync accepts one account snapshot from the sync process and upserts it.
func (h *Handler) Sync(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		fail(c, http.StatusMethodNotAllowed, domain.CodeMethodNotAllowed, nil)
		return
	}

	if !h.keys.configured {
		h.logger.ErrorContext(c.Request.Context(), "TJ_INTERNAL_KEY is not configured; rejecting request",
			"request_id", middleware.GetRequestID(c.Request.Context()),
		)
		fail(c, http.StatusUnauthorized, domain.CodeUnauthorized, nil)
		return
	}
	if !h.keys.verify(c.GetHeader(InternalKeyHeader)) {
		fail(c, http.StatusUnauthorized, domain.CodeUnauthorized, nil)
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := ingest.Decode(body)
	if err != nil {
		fail(c, http.StatusBadRequest, domain.CodeInvalidJSON, nil)
		return
	}

	_, err = h.ingester.Ingest(c.Request.Context(), payload)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, domain.ErrMissingFields):
		fail(c, http.StatusBadRequest, domain.CodeMissingFields, gin.H{"required": domain.RequiredFields})
	default:
		fail(c, http.StatusInternalServerError, domain.CodeUpsertFailed, nil)
	}
}

// MethodNotAllowed is installed as the engine's NoMethod handler so methods
// gin does not route still get the JSON error shape.
func MethodNotAllowed(c *gin.Context) {
	fail(c, http.StatusMethodNotAllowed, domain.CodeMethodNotAllowed, nil)
}

func fail(c *gin.Context, status int, code domain.ErrorCode, details gin.H) {
	body := gin.H{"ok": false, "error": code}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}
