package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"leads-admin/internal/shared/model"
	"leads-admin/internal/shared/storage"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	dbName := "leads_admin_test"
	s, err := NewStore(uri, dbName)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	// 清空测试数据库
	ctx := context.Background()
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	// 重新创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

// Compile-time interface check
var _ storage.PersistentStore = (*Store)(nil)

func testLead(id, assignedTo string) *model.Lead {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Lead{
		ID:            id,
		FirstName:     "Li",
		LastName:      "Wei",
		Email:         "li.wei@example.com",
		Phone:         "+86-1380000",
		Country:       "CN",
		VisaType:      model.VisaTypeStudent,
		Status:        model.LeadStatusNew,
		PaymentStatus: model.PaymentStatusNotPaid,
		AssignedTo:    assignedTo,
		CreatedBy:     "usr-admin",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestUserCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	user := &model.User{
		ID:           "usr-001",
		Username:     "agent1",
		Email:        "agent1@example.com",
		PasswordHash: "$2a$12$fake",
		Role:         model.UserRoleAgent,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// 用户名唯一索引
	dup := *user
	dup.ID = "usr-002"
	dup.Email = "other@example.com"
	if err := s.CreateUser(ctx, &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate username: err = %v, want ErrDuplicate", err)
	}

	// 按 username 和 email 均可查找
	got, err := s.GetUserByLogin(ctx, "agent1")
	if err != nil || got == nil {
		t.Fatalf("GetUserByLogin(username) = %v, %v", got, err)
	}
	got, err = s.GetUserByLogin(ctx, "agent1@example.com")
	if err != nil || got == nil {
		t.Fatalf("GetUserByLogin(email) = %v, %v", got, err)
	}
	if got.ID != user.ID {
		t.Errorf("GetUserByLogin ID = %s, want %s", got.ID, user.ID)
	}

	// 停用后不出现在 ListActiveUsers
	if err := s.SetUserActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	active, err := s.ListActiveUsers(ctx)
	if err != nil {
		t.Fatalf("ListActiveUsers: %v", err)
	}
	for _, u := range active {
		if u.ID == user.ID {
			t.Errorf("deactivated user still listed as active")
		}
	}
}

func TestLeadCRUDAndScope(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	l1 := testLead("lead-001", "usr-a")
	l2 := testLead("lead-002", "usr-b")
	l2.Status = model.LeadStatusInProgress
	for _, l := range []*model.Lead{l1, l2} {
		if err := s.CreateLead(ctx, l); err != nil {
			t.Fatalf("CreateLead(%s): %v", l.ID, err)
		}
	}

	// 不限范围
	all, err := s.ListLeads(ctx, storage.LeadScope{}, 0)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListLeads = %d leads, want 2", len(all))
	}

	// 范围过滤
	scoped, err := s.ListLeads(ctx, storage.LeadScope{AssignedTo: "usr-a"}, 0)
	if err != nil {
		t.Fatalf("ListLeads scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != "lead-001" {
		t.Errorf("scoped list = %+v, want only lead-001", scoped)
	}

	// 计数
	n, err := s.CountLeads(ctx, storage.LeadScope{}, storage.LeadCountFilter{Status: model.LeadStatusInProgress})
	if err != nil {
		t.Fatalf("CountLeads: %v", err)
	}
	if n != 1 {
		t.Errorf("CountLeads(InProgress) = %d, want 1", n)
	}

	// 更新
	l1.Status = model.LeadStatusApproved
	l1.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if err := s.UpdateLead(ctx, l1); err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}
	got, _ := s.GetLead(ctx, "lead-001")
	if got.Status != model.LeadStatusApproved {
		t.Errorf("status after update = %s, want Approved", got.Status)
	}

	// 删除
	if err := s.DeleteLead(ctx, "lead-001"); err != nil {
		t.Fatalf("DeleteLead: %v", err)
	}
	if err := s.DeleteLead(ctx, "lead-001"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
	if got, _ := s.GetLead(ctx, "lead-001"); got != nil {
		t.Errorf("GetLead after delete = %+v, want nil", got)
	}
}

// TestAppendLeadNote 备注按追加顺序可见，带作者和时间戳
func TestAppendLeadNote(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	lead := testLead("lead-notes", "usr-a")
	if err := s.CreateLead(ctx, lead); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, content := range []string{"first", "second", "third"} {
		note := model.LeadNote{
			Content:   content,
			CreatedBy: "usr-a",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendLeadNote(ctx, lead.ID, note); err != nil {
			t.Fatalf("AppendLeadNote(%q): %v", content, err)
		}
	}

	got, err := s.GetLead(ctx, lead.ID)
	if err != nil || got == nil {
		t.Fatalf("GetLead: %v, %v", got, err)
	}
	if len(got.Notes) != 3 {
		t.Fatalf("notes = %d, want 3", len(got.Notes))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got.Notes[i].Content != want {
			t.Errorf("notes[%d] = %q, want %q", i, got.Notes[i].Content, want)
		}
		if got.Notes[i].CreatedBy != "usr-a" {
			t.Errorf("notes[%d].CreatedBy = %q, want usr-a", i, got.Notes[i].CreatedBy)
		}
	}

	// 不存在的线索
	if err := s.AppendLeadNote(ctx, "lead-missing", model.LeadNote{Content: "x", CreatedBy: "usr-a", CreatedAt: base}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("append to missing lead: err = %v, want ErrNotFound", err)
	}
}

func TestFileMetadata(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	f1 := &model.File{
		ID: "file-001", Filename: "file-1.pdf", OriginalName: "passport.pdf",
		StorageKey: "lead-001/file-1.pdf", Size: 1024, MimeType: "application/pdf",
		LeadID: "lead-001", UploadedBy: "usr-a", CreatedAt: now,
	}
	f2 := &model.File{
		ID: "file-002", Filename: "file-2.png", OriginalName: "photo.png",
		StorageKey: "lead-001/file-2.png", Size: 2048, MimeType: "image/png",
		LeadID: "lead-001", UploadedBy: "usr-a", CreatedAt: now.Add(time.Second),
	}
	for _, f := range []*model.File{f1, f2} {
		if err := s.CreateFile(ctx, f); err != nil {
			t.Fatalf("CreateFile(%s): %v", f.ID, err)
		}
	}

	files, err := s.ListFilesByLead(ctx, "lead-001")
	if err != nil {
		t.Fatalf("ListFilesByLead: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	// created_at 倒序
	if files[0].ID != "file-002" {
		t.Errorf("files[0] = %s, want file-002 (newest first)", files[0].ID)
	}

	// 级联删除
	if err := s.DeleteFilesByLead(ctx, "lead-001"); err != nil {
		t.Fatalf("DeleteFilesByLead: %v", err)
	}
	files, _ = s.ListFilesByLead(ctx, "lead-001")
	if len(files) != 0 {
		t.Errorf("files after cascade = %d, want 0", len(files))
	}

	// 无匹配不视为错误
	if err := s.DeleteFilesByLead(ctx, "lead-001"); err != nil {
		t.Errorf("DeleteFilesByLead empty: %v", err)
	}
}
