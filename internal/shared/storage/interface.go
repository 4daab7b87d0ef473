package storage

import (
	"context"

	"leads-admin/internal/shared/model"
)

// LeadScope 线索查询范围
//
// AssignedTo 为空表示不限范围（admin）；非空则只匹配分配给该用户的线索。
// 由 policy 包统一构造，list/dashboard/stats 不得各自拼过滤条件。
type LeadScope struct {
	AssignedTo string
}

// LeadCountFilter 线索计数过滤条件（零值字段不参与过滤）
type LeadCountFilter struct {
	Status        model.LeadStatus
	PaymentStatus model.PaymentStatus
}

// PersistentStore 持久化存储层接口
//
// 设计原则：依赖倒置，调用方只依赖接口；
// 具体实现在子包 mongostore/ 中，测试使用本包的 MemStore。
type PersistentStore interface {
	// 用户
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByLogin 按 username 或 email 查找（登录入口两者皆可）
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	ListActiveUsers(ctx context.Context) ([]*model.User, error)
	SetUserActive(ctx context.Context, id string, active bool) error

	// 线索
	CreateLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	// ListLeads 按创建时间倒序返回范围内的线索，limit<=0 表示不限
	ListLeads(ctx context.Context, scope LeadScope, limit int) ([]*model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	DeleteLead(ctx context.Context, id string) error
	// AppendLeadNote 原子追加备注（$push），保持插入顺序
	AppendLeadNote(ctx context.Context, id string, note model.LeadNote) error
	CountLeads(ctx context.Context, scope LeadScope, f LeadCountFilter) (int64, error)

	// 文件元数据
	CreateFile(ctx context.Context, file *model.File) error
	GetFile(ctx context.Context, id string) (*model.File, error)
	ListFilesByLead(ctx context.Context, leadID string) ([]*model.File, error)
	DeleteFile(ctx context.Context, id string) error
	DeleteFilesByLead(ctx context.Context, leadID string) error

	Close() error
}
