package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"farm-advisor/internal/services"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// KnowledgeHandler serves the knowledge hub
type KnowledgeHandler struct {
	responder
	knowledge *services.KnowledgeService
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(knowledge *services.KnowledgeService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *KnowledgeHandler {
	return &KnowledgeHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		knowledge: knowledge,
	}
}

// KnowledgeListResponse is the article index
type KnowledgeListResponse struct {
	Categories []string           `json:"categories"`
	Articles   []services.Article `json:"articles"`
}

// ListArticles handles GET /api/knowledge
func (h *KnowledgeHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, KnowledgeListResponse{
		Categories: h.knowledge.Categories(),
		Articles:   h.knowledge.List(r.URL.Query().Get("category")),
	}, http.StatusOK)
}

// GetArticle handles GET /api/knowledge/{slug}
func (h *KnowledgeHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.knowledge.Get(mux.Vars(r)["slug"])
	if err != nil {
		h.sendServiceError(w, r, "[API_KNOWLEDGE_ERROR]", err)
		return
	}
	h.sendJSON(w, article, http.StatusOK)
}

// RegisterRoutes registers the knowledge hub routes
func (h *KnowledgeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/knowledge", h.ListArticles).Methods("GET")
	router.HandleFunc("/api/knowledge/{slug}", h.GetArticle).Methods("GET")
}
