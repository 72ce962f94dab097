package http

import "github.com/gin-gonic/gin"

const (
	SyncPath   = "/functions/v1/broker-live-sync"
	SyncPathV1 = "/api/v1/broker-live-state"
)

// Register mounts the sync endpoint. Every method is routed to Sync, which
// answers OPTIONS itself and rejects everything but POST.
func (h *Handler) Register(r gin.IRoutes) {
	r.Any(SyncPath, h.Sync)
	r.Any(SyncPathV1, h.Sync)
}
