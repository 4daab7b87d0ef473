// Package server 路由配置与核心基础设施
//
// 本包把各领域独立包（auth/lead/file/dashboard）的路由装配为一个
// http.Handler，并套上指标、认证、恢复、CORS 中间件。
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"

	"leads-admin/internal/apiserver/auth"
	"leads-admin/internal/apiserver/dashboard"
	"leads-admin/internal/apiserver/file"
	"leads-admin/internal/apiserver/lead"
	"leads-admin/internal/shared/blob"
	"leads-admin/internal/shared/cache"
	"leads-admin/internal/shared/storage"
)

// Handler API 入口
//
// 负责装配路由并持有各领域处理器的共享依赖：
//   - store: 持久化存储层（用户/线索/文件元数据）
//   - blobs: 文档 blob 存储（本地磁盘或 MinIO）
//   - stats: 统计计数缓存（内存或 Redis）
type Handler struct {
	store   storage.PersistentStore
	blobs   blob.Store
	stats   cache.StatsCache
	authCfg auth.Config
	metrics *Metrics
}

// NewHandler 创建 Handler 实例
func NewHandler(store storage.PersistentStore, blobs blob.Store, stats cache.StatsCache, authCfg auth.Config) *Handler {
	return &Handler{
		store:   store,
		blobs:   blobs,
		stats:   stats,
		authCfg: authCfg,
		metrics: NewMetrics("leads"),
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET  /health  - 服务健康检查
//   - GET  /metrics - Prometheus 指标
//
// 认证 (Auth，公开):
//   - GET/POST /auth/login    - 登录
//   - GET/POST /auth/register - 注册
//   - GET      /auth/logout   - 登出
//
// 线索管理 (Lead):
//   - GET    /leads               - 列表（按角色范围）
//   - GET    /leads/create        - 创建表单支撑数据
//   - POST   /leads/create        - 创建线索
//   - GET    /leads/{id}          - 详情（含文件列表）
//   - GET    /leads/edit/{id}     - 编辑表单支撑数据
//   - POST   /leads/edit/{id}     - 更新线索
//   - POST   /leads/{id}/notes    - 追加备注
//   - DELETE /leads/{id}          - 删除线索（admin，级联）
//   - GET    /leads/stats/summary - 统计
//
// 文件管理 (File):
//   - POST   /files/upload/{leadId}   - 上传文档
//   - GET    /files/download/{fileId} - 下载文档
//   - GET    /files/lead/{leadId}     - 线索文档列表
//   - DELETE /files/{fileId}          - 删除文档
//
// 仪表盘:
//   - GET /dashboard - 统计 + 最近线索
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Auth 路由（login/register/logout 在认证中间件的公开名单里）
	authHandler := auth.NewHandler(h.store, h.authCfg)
	authHandler.SetMetrics(h.metrics)
	authHandler.RegisterRoutes(mux)

	// Lead 接口
	leadHandler := lead.NewHandler(h.store, h.blobs, h.stats)
	leadHandler.SetMetrics(h.metrics)
	leadHandler.RegisterRoutes(mux)

	// File 接口
	fileHandler := file.NewHandler(h.store, h.blobs)
	fileHandler.SetMetrics(h.metrics)
	fileHandler.RegisterRoutes(mux)

	// 仪表盘（统计口径复用 lead 包）
	dashHandler := dashboard.NewHandler(h.store, leadHandler)
	dashHandler.RegisterRoutes(mux)

	// 应用指标中间件
	metered := h.metrics.MetricsMiddleware(mux)

	// 应用认证中间件（公开路由除外，逐请求重新加载用户并校验启用状态）
	authed := auth.Middleware(h.authCfg, h.store)(metered)

	// 应用 CORS 中间件
	corsed := corsMiddleware(authed)

	// 最外层 panic 恢复，泄漏的 panic 以通用 500 响应
	return recoverMiddleware(corsed)
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recoverMiddleware 捕获 handler panic，记录堆栈并返回通用 500
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[server] panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
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
