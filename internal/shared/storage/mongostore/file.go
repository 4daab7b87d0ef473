package mongostore

import (
	"context"

	"leads-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// FileStore
// ============================================================================

func (s *Store) CreateFile(ctx context.Context, file *model.File) error {
	return insertOne(ctx, s.col(ColFiles), file)
}

func (s *Store) GetFile(ctx context.Context, id string) (*model.File, error) {
	return findOne[model.File](ctx, s.col(ColFiles), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListFilesByLead(ctx context.Context, leadID string) ([]*model.File, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.File](ctx, s.col(ColFiles), bson.D{{Key: "lead_id", Value: leadID}}, opts)
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColFiles), id)
}

// DeleteFilesByLead 删除线索的全部文件元数据（级联删除用，0 条匹配不视为错误）
func (s *Store) DeleteFilesByLead(ctx context.Context, leadID string) error {
	_, err := s.col(ColFiles).DeleteMany(ctx, bson.D{{Key: "lead_id", Value: leadID}})
	return wrapError(err)
}
