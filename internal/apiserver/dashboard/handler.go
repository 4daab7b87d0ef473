// Package dashboard 仪表盘 - HTTP 处理
package dashboard

import (
	"encoding/json"
	"log"
	"net/http"

	"leads-admin/internal/apiserver/auth"
	"leads-admin/internal/apiserver/lead"
	"leads-admin/internal/apiserver/policy"
	"leads-admin/internal/shared/storage"
)

// recentLeadLimit 仪表盘最近线索条数
const recentLeadLimit = 10

// Handler 仪表盘处理器
//
// 统计口径复用 lead.Handler.CollectStats，保证与 /leads/stats/summary 一致。
type Handler struct {
	store storage.PersistentStore
	leads *lead.Handler
}

// NewHandler 创建仪表盘处理器
func NewHandler(store storage.PersistentStore, leads *lead.Handler) *Handler {
	return &Handler{store: store, leads: leads}
}

// RegisterRoutes 注册仪表盘路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard", h.Dashboard)
}

// Dashboard 角色范围内的统计 + 最近线索
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	stats, err := h.leads.CollectStats(r.Context(), user)
	if err != nil {
		log.Printf("[dashboard] CollectStats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	recent, err := h.store.ListLeads(r.Context(), policy.ScopeFor(user), recentLeadLimit)
	if err != nil {
		log.Printf("[dashboard] ListLeads error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list recent leads")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":        stats,
		"recent_leads": recent,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
