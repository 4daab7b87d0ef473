package model

import "time"

// File 上传文档的元数据
//
// StorageKey 指向 blob 存储中的对象（本地磁盘相对路径或 MinIO key）。
// File 记录存在期间 StorageKey 应可解析到实际 blob；
// 元数据与 blob 的漂移在下载时暴露为 404，不做静默兜底。
type File struct {
	ID           string    `json:"id" bson:"_id"`
	Filename     string    `json:"filename" bson:"filename"`
	OriginalName string    `json:"original_name" bson:"original_name"`
	StorageKey   string    `json:"storage_key" bson:"storage_key"`
	Size         int64     `json:"size" bson:"size"`
	MimeType     string    `json:"mime_type" bson:"mime_type"`
	LeadID       string    `json:"lead_id" bson:"lead_id"`
	UploadedBy   string    `json:"uploaded_by" bson:"uploaded_by"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
