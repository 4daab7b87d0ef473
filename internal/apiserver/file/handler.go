// Package file 线索文档上传/下载 - HTTP 处理
package file

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"leads-admin/internal/apiserver/auth"
	"leads-admin/internal/apiserver/policy"
	"leads-admin/internal/shared/blob"
	"leads-admin/internal/shared/model"
	"leads-admin/internal/shared/storage"
)

// maxUploadSize 单文件上限 10 MiB（恰好 10 MiB 的文件允许）
const maxUploadSize = 10 << 20

// multipartOverhead 请求体整体上限要给 multipart 边界、part 头和
// description 字段留余量，文件大小本身按 part 检查
const multipartOverhead = 1 << 20

// 扩展名与 MIME 双重白名单，任一不过即拒绝
var (
	allowedExtensions = map[string]bool{
		".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
		".pdf": true, ".doc": true, ".docx": true, ".txt": true,
		".xlsx": true, ".xls": true,
	}
	allowedMimeTypes = map[string]bool{
		"image/jpeg":      true,
		"image/png":       true,
		"image/gif":       true,
		"application/pdf": true,
		"application/msword": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
		"text/plain":                true,
		"application/vnd.ms-excel":  true,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	}
)

// UploadMetrics 上传结果指标回调
type UploadMetrics interface {
	RecordUpload(result string, bytes int64)
}

// Handler 文件领域 HTTP 处理器
//
// 写入顺序：先写 blob 再提交元数据，元数据失败时回收孤儿 blob；
// 读取时元数据在而 blob 缺失（存储漂移）以 404 暴露。
type Handler struct {
	store   storage.PersistentStore
	blobs   blob.Store
	metrics UploadMetrics
}

// NewHandler 创建文件处理器
func NewHandler(store storage.PersistentStore, blobs blob.Store) *Handler {
	return &Handler{store: store, blobs: blobs}
}

// SetMetrics 注入指标回调（可选）
func (h *Handler) SetMetrics(m UploadMetrics) {
	h.metrics = m
}

func (h *Handler) recordUpload(result string, bytes int64) {
	if h.metrics != nil {
		h.metrics.RecordUpload(result, bytes)
	}
}

// RegisterRoutes 注册文件相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /files/upload/{leadId}", h.Upload)
	mux.HandleFunc("GET /files/download/{fileId}", h.Download)
	mux.HandleFunc("GET /files/lead/{leadId}", h.ListByLead)
	mux.HandleFunc("DELETE /files/{fileId}", h.Delete)
}

// Upload 上传文档并挂到线索
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	leadID := r.PathValue("leadId")

	// 先做访问检查，再碰请求体
	lead, err := h.store.GetLead(r.Context(), leadID)
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

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		// MaxBytesReader 的错误可能被 multipart 读取层转述而非包装
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			h.recordUpload("rejected", 0)
			writeError(w, http.StatusBadRequest, "file exceeds 10MB limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer src.Close()

	if header.Size > maxUploadSize {
		h.recordUpload("rejected", 0)
		writeError(w, http.StatusBadRequest, "file exceeds 10MB limit")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mimeType := header.Header.Get("Content-Type")
	if !allowedExtensions[ext] || !allowedMimeTypes[mimeType] {
		h.recordUpload("rejected", 0)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file type not allowed: %s (%s)", ext, mimeType))
		return
	}

	key := blob.NewKey(leadID, "file", ext)
	if err := h.blobs.Save(r.Context(), key, src, header.Size, mimeType); err != nil {
		log.Printf("[file] blob save error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	f := &model.File{
		ID:           generateID("file"),
		Filename:     filepath.Base(key),
		OriginalName: header.Filename,
		StorageKey:   key,
		Size:         header.Size,
		MimeType:     mimeType,
		LeadID:       leadID,
		UploadedBy:   user.ID,
		Description:  strings.TrimSpace(r.FormValue("description")),
		CreatedAt:    time.Now(),
	}
	if err := h.store.CreateFile(r.Context(), f); err != nil {
		// 元数据提交失败，回收刚写的 blob
		if derr := h.blobs.Delete(r.Context(), key); derr != nil {
			log.Printf("[file] orphan blob cleanup %s: %v", key, derr)
		}
		log.Printf("[file] CreateFile error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save file record")
		return
	}

	h.recordUpload("accepted", f.Size)
	log.Printf("[file] Uploaded %s (%d bytes) to lead %s by %s", f.ID, f.Size, leadID, user.ID)
	writeJSON(w, http.StatusCreated, f)
}

// Download 下载文档（带属主线索访问检查）
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	fileID := r.PathValue("fileId")

	f, status, msg := h.resolveFile(r, user, fileID)
	if f == nil {
		writeError(w, status, msg)
		return
	}

	rc, err := h.blobs.Open(r.Context(), f.StorageKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotExist) {
			log.Printf("[file] blob missing for %s (key %s)", f.ID, f.StorageKey)
			writeError(w, http.StatusNotFound, "file content not found")
			return
		}
		log.Printf("[file] blob open error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.OriginalName))
	if f.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", f.Size))
	}
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("[file] download stream error: %v", err)
	}
}

// ListByLead 线索下的文档列表（创建时间倒序）
func (h *Handler) ListByLead(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	leadID := r.PathValue("leadId")

	lead, err := h.store.GetLead(r.Context(), leadID)
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

	files, err := h.store.ListFilesByLead(r.Context(), leadID)
	if err != nil {
		log.Printf("[file] ListFilesByLead error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// Delete 删除文档：先 blob 后元数据，blob 缺失容忍
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	fileID := r.PathValue("fileId")

	f, status, msg := h.resolveFile(r, user, fileID)
	if f == nil {
		writeError(w, status, msg)
		return
	}

	if err := h.blobs.Delete(r.Context(), f.StorageKey); err != nil {
		log.Printf("[file] delete blob %s: %v (continuing)", f.StorageKey, err)
	}
	if err := h.store.DeleteFile(r.Context(), fileID); err != nil {
		log.Printf("[file] DeleteFile error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete file record")
		return
	}

	log.Printf("[file] Deleted %s from lead %s by %s", fileID, f.LeadID, user.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "file deleted"})
}

// resolveFile 加载文件元数据并对属主线索做访问检查
//
// f 为 nil 时 status/msg 描述应返回的错误。
func (h *Handler) resolveFile(r *http.Request, user *model.User, fileID string) (*model.File, int, string) {
	f, err := h.store.GetFile(r.Context(), fileID)
	if err != nil {
		log.Printf("[file] GetFile error: %v", err)
		return nil, http.StatusInternalServerError, "failed to get file"
	}
	if f == nil {
		return nil, http.StatusNotFound, "file not found"
	}

	lead, err := h.store.GetLead(r.Context(), f.LeadID)
	if err != nil {
		return nil, http.StatusInternalServerError, "failed to get lead"
	}
	if lead == nil {
		// 元数据指向已删除线索，按不存在处理
		return nil, http.StatusNotFound, "file not found"
	}
	if !policy.CanAccessLead(user, lead) {
		return nil, http.StatusForbidden, "access denied"
	}
	return f, 0, ""
}

// ============================================================================
// 工具函数
// ============================================================================

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
