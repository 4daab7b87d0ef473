// Package storage 提供存储层抽象
//
// mock.go 提供用于测试的内存实现
package storage

import (
	"context"
	"sort"
	"sync"

	"leads-admin/internal/shared/model"
)

// MemStore PersistentStore 的内存实现（用于测试）
//
// 行为与 mongostore 对齐：不存在返回 (nil, nil) 或 ErrNotFound，
// 唯一键冲突返回 ErrDuplicate，列表按 created_at 倒序。
type MemStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
	leads map[string]*model.Lead
	files map[string]*model.File
}

// NewMemStore 创建内存存储实例
func NewMemStore() *MemStore {
	return &MemStore{
		users: make(map[string]*model.User),
		leads: make(map[string]*model.Lead),
		files: make(map[string]*model.File),
	}
}

// Close 关闭存储
func (s *MemStore) Close() error { return nil }

// ============================================================================
// 用户
// ============================================================================

func (s *MemStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrDuplicate
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == login || u.Email == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListActiveUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []*model.User{}
	for _, u := range s.users {
		if u.IsActive {
			cp := *u
			users = append(users, &cp)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemStore) SetUserActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	return nil
}

// ============================================================================
// 线索
// ============================================================================

func (s *MemStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[lead.ID]; ok {
		return ErrDuplicate
	}
	cp := cloneLead(lead)
	s.leads[lead.ID] = cp
	return nil
}

func (s *MemStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, nil
	}
	return cloneLead(l), nil
}

func (s *MemStore) ListLeads(ctx context.Context, scope LeadScope, limit int) ([]*model.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leads := []*model.Lead{}
	for _, l := range s.leads {
		if scope.AssignedTo != "" && l.AssignedTo != scope.AssignedTo {
			continue
		}
		leads = append(leads, cloneLead(l))
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

func (s *MemStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[lead.ID]; !ok {
		return ErrNotFound
	}
	s.leads[lead.ID] = cloneLead(lead)
	return nil
}

func (s *MemStore) DeleteLead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[id]; !ok {
		return ErrNotFound
	}
	delete(s.leads, id)
	return nil
}

func (s *MemStore) AppendLeadNote(ctx context.Context, id string, note model.LeadNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return ErrNotFound
	}
	l.Notes = append(l.Notes, note)
	l.UpdatedAt = note.CreatedAt
	return nil
}

func (s *MemStore) CountLeads(ctx context.Context, scope LeadScope, f LeadCountFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, l := range s.leads {
		if scope.AssignedTo != "" && l.AssignedTo != scope.AssignedTo {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && l.PaymentStatus != f.PaymentStatus {
			continue
		}
		n++
	}
	return n, nil
}

// ============================================================================
// 文件元数据
// ============================================================================

func (s *MemStore) CreateFile(ctx context.Context, file *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; ok {
		return ErrDuplicate
	}
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *MemStore) GetFile(ctx context.Context, id string) (*model.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (s *MemStore) ListFilesByLead(ctx context.Context, leadID string) ([]*model.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := []*model.File{}
	for _, f := range s.files {
		if f.LeadID == leadID {
			cp := *f
			files = append(files, &cp)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })
	return files, nil
}

func (s *MemStore) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *MemStore) DeleteFilesByLead(ctx context.Context, leadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.files {
		if f.LeadID == leadID {
			delete(s.files, id)
		}
	}
	return nil
}

func cloneLead(l *model.Lead) *model.Lead {
	cp := *l
	cp.Notes = append([]model.LeadNote(nil), l.Notes...)
	return &cp
}

// 确保 MemStore 实现了 PersistentStore 接口
var _ PersistentStore = (*MemStore)(nil)
