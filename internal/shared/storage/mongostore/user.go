package mongostore

import (
	"context"
	"time"

	"leads-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

// GetUserByLogin 按 username 或 email 查找（登录入口两者皆可）
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: login}},
		bson.D{{Key: "email", Value: login}},
	}}}
	return findOne[model.User](ctx, s.col(ColUsers), filter)
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]*model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	return findMany[model.User](ctx, s.col(ColUsers), bson.D{{Key: "is_active", Value: true}}, opts)
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "is_active", Value: active},
		{Key: "updated_at", Value: time.Now()},
	})
}
