// Package lead 线索领域 - HTTP 处理
package lead

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"leads-admin/internal/apiserver/auth"
	"leads-admin/internal/apiserver/policy"
	"leads-admin/internal/shared/blob"
	"leads-admin/internal/shared/cache"
	"leads-admin/internal/shared/model"
	"leads-admin/internal/shared/storage"
)

// statsCacheTTL 统计计数缓存时长，过期即重新计数，不做主动失效
const statsCacheTTL = 30 * time.Second

// StatsMetrics 线索数量指标回调
type StatsMetrics interface {
	SetLeadsCount(status string, count int64)
}

// Handler 线索领域 HTTP 处理器
//
// blobs 用于删除线索时级联清理文档 blob；
// stats 为统计计数的短 TTL 缓存，可为 nil（不缓存）。
type Handler struct {
	store   storage.PersistentStore
	blobs   blob.Store
	stats   cache.StatsCache
	metrics StatsMetrics
}

// NewHandler 创建线索处理器
func NewHandler(store storage.PersistentStore, blobs blob.Store, stats cache.StatsCache) *Handler {
	return &Handler{store: store, blobs: blobs, stats: stats}
}

// SetMetrics 注入指标回调（可选）
func (h *Handler) SetMetrics(m StatsMetrics) {
	h.metrics = m
}

// RegisterRoutes 注册线索相关路由
//
// "POST /leads/edit/{id}" 与 "POST /leads/{id}/notes" 对 ServeMux 是
// 冲突模式（都匹配 /leads/edit/notes，互不更特定，注册即 panic），
// 两条路由合并为一个 POST 子树分发入口。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /leads", h.List)
	mux.HandleFunc("GET /leads/create", h.CreateForm)
	mux.HandleFunc("POST /leads/create", h.Create)
	mux.HandleFunc("GET /leads/stats/summary", h.Stats)
	mux.HandleFunc("GET /leads/{id}", h.Get)
	mux.HandleFunc("GET /leads/edit/{id}", h.EditForm)
	mux.HandleFunc("POST /leads/", h.dispatchPost)
	mux.HandleFunc("DELETE /leads/{id}", auth.AdminOnly(h.Delete))
}

// dispatchPost 分发 POST /leads/edit/{id} 和 POST /leads/{id}/notes
func (h *Handler) dispatchPost(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/leads/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "edit" && parts[1] != "":
		h.Update(w, r, parts[1])
	case len(parts) == 2 && parts[1] == "notes" && parts[0] != "":
		h.AddNote(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// ============================================================================
// 请求/响应类型
// ============================================================================

// CreateRequest 创建线索请求
type CreateRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Country       string `json:"country"`
	VisaType      string `json:"visa_type"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	AssignedTo    string `json:"assigned_to"`
}

// UpdateRequest 更新线索请求（nil 字段不修改）
type UpdateRequest struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Country       *string `json:"country,omitempty"`
	VisaType      *string `json:"visa_type,omitempty"`
	Status        *string `json:"status,omitempty"`
	PaymentStatus *string `json:"payment_status,omitempty"`
	AssignedTo    *string `json:"assigned_to,omitempty"`
}

// formOptions 创建/编辑表单支撑数据（枚举值 + 可分配用户）
type formOptions struct {
	VisaTypes       []model.VisaType      `json:"visa_types"`
	Statuses        []model.LeadStatus    `json:"statuses"`
	PaymentStatuses []model.PaymentStatus `json:"payment_statuses"`
	Users           []*model.User         `json:"users"`
}

// Stats 线索统计计数
type Stats struct {
	Total      int64 `json:"total"`
	New        int64 `json:"new"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Paid       int64 `json:"paid"`
	Partial    int64 `json:"partial"`
	NotPaid    int64 `json:"not_paid"`
}

// ============================================================================
// Handlers
// ============================================================================

// List 获取线索列表（admin 全量，agent 仅本人名下，创建时间倒序）
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	leads, err := h.store.ListLeads(r.Context(), policy.ScopeFor(user), 0)
	if err != nil {
		log.Printf("[lead] ListLeads error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"leads": leads})
}

// CreateForm 创建表单支撑数据
func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	opts, err := h.loadFormOptions(r)
	if err != nil {
		log.Printf("[lead] ListActiveUsers error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load form options")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// Create 创建线索，createdBy 固定为当前用户
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now()
	lead := &model.Lead{
		ID:            generateID("lead"),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Country:       strings.TrimSpace(req.Country),
		VisaType:      model.VisaType(req.VisaType),
		Status:        model.LeadStatus(req.Status),
		PaymentStatus: model.PaymentStatus(req.PaymentStatus),
		AssignedTo:    req.AssignedTo,
		CreatedBy:     user.ID,
		Notes:         []model.LeadNote{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	if lead.PaymentStatus == "" {
		lead.PaymentStatus = model.PaymentStatusNotPaid
	}

	// 校验失败不落库
	if err := lead.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateLead(r.Context(), lead); err != nil {
		log.Printf("[lead] CreateLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create lead")
		return
	}

	log.Printf("[lead] Lead created: %s by %s", lead.ID, user.ID)
	writeJSON(w, http.StatusCreated, lead)
}

// Get 线索详情（含文件列表）
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := r.PathValue("id")

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		log.Printf("[lead] GetLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if !policy.CanAccessLead(user, lead) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	files, err := h.store.ListFilesByLead(r.Context(), id)
	if err != nil {
		log.Printf("[lead] ListFilesByLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"lead": lead, "files": files})
}

// EditForm 编辑表单支撑数据（线索 + 枚举 + 可分配用户）
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := r.PathValue("id")

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if !policy.CanAccessLead(user, lead) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	opts, err := h.loadFormOptions(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load form options")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lead": lead, "options": opts})
}

// Update 更新线索（属主检查后部分更新）
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if !policy.CanAccessLead(user, lead) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FirstName != nil {
		lead.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		lead.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		lead.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		lead.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Country != nil {
		lead.Country = strings.TrimSpace(*req.Country)
	}
	if req.VisaType != nil {
		lead.VisaType = model.VisaType(*req.VisaType)
	}
	if req.Status != nil {
		lead.Status = model.LeadStatus(*req.Status)
	}
	if req.PaymentStatus != nil {
		lead.PaymentStatus = model.PaymentStatus(*req.PaymentStatus)
	}
	if req.AssignedTo != nil {
		lead.AssignedTo = *req.AssignedTo
	}
	lead.UpdatedAt = time.Now()

	if err := lead.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdateLead(r.Context(), lead); err != nil {
		log.Printf("[lead] UpdateLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update lead")
		return
	}

	log.Printf("[lead] Lead updated: %s by %s", id, user.ID)
	writeJSON(w, http.StatusOK, lead)
}

// Delete 删除线索（admin 专属）
//
// 级联顺序：先删文件 blob（缺失容忍并记录），再删文件元数据，最后删线索。
// blob 删除失败不阻断——元数据删除后漂移的孤儿 blob 好过悬空元数据。
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	files, err := h.store.ListFilesByLead(r.Context(), id)
	if err != nil {
		log.Printf("[lead] ListFilesByLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	for _, f := range files {
		if err := h.blobs.Delete(r.Context(), f.StorageKey); err != nil {
			log.Printf("[lead] delete blob %s: %v (continuing)", f.StorageKey, err)
		}
	}
	if err := h.store.DeleteFilesByLead(r.Context(), id); err != nil {
		log.Printf("[lead] DeleteFilesByLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete lead files")
		return
	}

	if err := h.store.DeleteLead(r.Context(), id); err != nil {
		log.Printf("[lead] DeleteLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete lead")
		return
	}

	log.Printf("[lead] Lead deleted: %s (%d files)", id, len(files))
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "lead deleted"})
}

// AddNote 追加备注
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request, id string) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if !policy.CanAccessLead(user, lead) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "note content is required")
		return
	}

	note := model.LeadNote{
		Content:   content,
		CreatedBy: user.ID,
		CreatedAt: time.Now(),
	}
	if err := h.store.AppendLeadNote(r.Context(), id, note); err != nil {
		log.Printf("[lead] AppendLeadNote error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add note")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "note added", "note": note})
}

// Stats 线索统计（角色范围内，跨 status 和 payment_status 维度）
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	stats, err := h.CollectStats(r.Context(), user)
	if err != nil {
		log.Printf("[lead] CollectStats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// ============================================================================
// 统计收集
// ============================================================================

// CollectStats 按用户范围收集统计计数，短 TTL 缓存削减计数查询
// （仪表盘也复用此入口，两处口径一致）
func (h *Handler) CollectStats(ctx context.Context, user *model.User) (*Stats, error) {
	scope := policy.ScopeFor(user)

	cacheKey := "leads:stats:all"
	if scope.AssignedTo != "" {
		cacheKey = "leads:stats:" + scope.AssignedTo
	}
	if h.stats != nil {
		if data, ok, err := h.stats.Get(ctx, cacheKey); err == nil && ok {
			var s Stats
			if err := json.Unmarshal(data, &s); err == nil {
				return &s, nil
			}
		}
	}

	var s Stats
	counts := []struct {
		dst    *int64
		filter storage.LeadCountFilter
	}{
		{&s.Total, storage.LeadCountFilter{}},
		{&s.New, storage.LeadCountFilter{Status: model.LeadStatusNew}},
		{&s.InProgress, storage.LeadCountFilter{Status: model.LeadStatusInProgress}},
		{&s.Completed, storage.LeadCountFilter{Status: model.LeadStatusCompleted}},
		{&s.Paid, storage.LeadCountFilter{PaymentStatus: model.PaymentStatusFull}},
		{&s.Partial, storage.LeadCountFilter{PaymentStatus: model.PaymentStatusPartial}},
		{&s.NotPaid, storage.LeadCountFilter{PaymentStatus: model.PaymentStatusNotPaid}},
	}
	for _, c := range counts {
		n, err := h.store.CountLeads(ctx, scope, c.filter)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	// 全量口径时顺带刷新状态 gauge（缓存命中期间保持上次值）
	if h.metrics != nil && scope.AssignedTo == "" {
		h.metrics.SetLeadsCount("total", s.Total)
		h.metrics.SetLeadsCount(string(model.LeadStatusNew), s.New)
		h.metrics.SetLeadsCount(string(model.LeadStatusInProgress), s.InProgress)
		h.metrics.SetLeadsCount(string(model.LeadStatusCompleted), s.Completed)
	}

	if h.stats != nil {
		if data, err := json.Marshal(&s); err == nil {
			if err := h.stats.Set(ctx, cacheKey, data, statsCacheTTL); err != nil {
				log.Printf("[lead] stats cache set error: %v", err)
			}
		}
	}
	return &s, nil
}

// ============================================================================
// 工具函数
// ============================================================================

func (h *Handler) loadFormOptions(r *http.Request) (*formOptions, error) {
	users, err := h.store.ListActiveUsers(r.Context())
	if err != nil {
		return nil, err
	}
	return &formOptions{
		VisaTypes:       model.VisaTypes(),
		Statuses:        model.LeadStatuses(),
		PaymentStatuses: model.PaymentStatuses(),
		Users:           users,
	}, nil
}

func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
