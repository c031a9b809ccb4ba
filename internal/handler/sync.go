package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockroom/internal/models"
	"stockroom/internal/repository"
	"stockroom/internal/service"
)

type SyncHandler struct {
	Ingest      *service.IngestService
	Fulfillment *service.FulfillmentService
	Repo        repository.Repository
	Logger      *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	group := r.Group("/api/sync")
	group.POST("/:entity", h.runSync)
	group.POST("/articles/:sku", h.importArticle)
	group.POST("/orders/:external_id", h.importOrder)
	group.GET("/cursors", h.listCursors)
	group.GET("/history", h.listHistory)
	group.GET("/failures", h.listFailures)
}

func normalizeEntity(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "article", "articles", "product", "products":
		return models.EntityArticle, true
	case "category", "categories":
		return models.EntityCategory, true
	case "attribute", "attributes":
		return models.EntityAttribute, true
	case "order", "orders":
		return models.EntityOrder, true
	default:
		return "", false
	}
}

// @Summary Run an ingestion stream
// @Tags sync
// @Param entity path string true "entity kind (articles|categories|attributes|orders)"
// @Success 200 {object} apiResponse
// @Router /api/sync/{entity} [post]
func (h *SyncHandler) runSync(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	entity, ok := normalizeEntity(c.Param("entity"))
	if !ok {
		Error(c, http.StatusBadRequest, "unknown entity kind", nil)
		return
	}
	report, err := h.Ingest.RunIngestion(c.Request.Context(), entity)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("sync run failed", zap.String("entity", entity), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, nil)
}

// @Summary Import a single article by SKU
// @Tags sync
// @Param sku path string true "article sku"
// @Success 200 {object} apiResponse
// @Router /api/sync/articles/{sku} [post]
func (h *SyncHandler) importArticle(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	sku := strings.TrimSpace(c.Param("sku"))
	if sku == "" {
		Error(c, http.StatusBadRequest, "sku required", nil)
		return
	}
	if err := h.Ingest.ImportSingleArticle(c.Request.Context(), sku); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"sku": sku}, nil)
}

// @Summary Import a single order and allocate it immediately
// @Tags sync
// @Param external_id path string true "platform order increment id"
// @Success 200 {object} apiResponse
// @Router /api/sync/orders/{external_id} [post]
func (h *SyncHandler) importOrder(c *gin.Context) {
	if h.Ingest == nil || h.Fulfillment == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	externalID := strings.TrimSpace(c.Param("external_id"))
	if externalID == "" {
		Error(c, http.StatusBadRequest, "external_id required", nil)
		return
	}
	order, err := h.Ingest.ImportSingleOrder(c.Request.Context(), externalID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	outcome, err := h.Fulfillment.Allocate(c.Request.Context(), order.ID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("allocation after import failed",
				zap.Uint64("order_id", order.ID), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, outcome, nil)
}

// @Summary List sync cursors
// @Tags sync
// @Param action query string false "action kind"
// @Param entity query string false "entity kind"
// @Param limit query int false "limit"
// @Success 200 {object} apiResponse
// @Router /api/sync/cursors [get]
func (h *SyncHandler) listCursors(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	entity := ""
	if raw := c.Query("entity"); raw != "" {
		normalized, ok := normalizeEntity(raw)
		if !ok {
			Error(c, http.StatusBadRequest, "unknown entity kind", nil)
			return
		}
		entity = normalized
	}
	cursors, err := h.Repo.ListSyncCursors(c.Request.Context(), repository.ListCursorsParams{
		ActionKind: strings.TrimSpace(c.Query("action")),
		EntityKind: entity,
		Limit:      intQuery(c, "limit", 50),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, cursors, nil)
}

// @Summary List per-entity sync history
// @Tags sync
// @Success 200 {object} apiResponse
// @Router /api/sync/history [get]
func (h *SyncHandler) listHistory(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	histories, err := h.Repo.ListSyncHistories(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, histories, nil)
}

// @Summary List crawl failures
// @Tags sync
// @Param entity query string false "entity kind"
// @Success 200 {object} apiResponse
// @Router /api/sync/failures [get]
func (h *SyncHandler) listFailures(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	entity := ""
	if raw := c.Query("entity"); raw != "" {
		normalized, ok := normalizeEntity(raw)
		if !ok {
			Error(c, http.StatusBadRequest, "unknown entity kind", nil)
			return
		}
		entity = normalized
	}
	failures, err := h.Repo.ListCrawlFailures(c.Request.Context(), entity)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, failures, nil)
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}
