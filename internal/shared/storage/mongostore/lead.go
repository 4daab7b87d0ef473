package mongostore

import (
	"context"

	"leads-admin/internal/shared/model"
	"leads-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// LeadStore
// ============================================================================

// scopeFilter 将 LeadScope 转换为 bson 过滤条件
func scopeFilter(scope storage.LeadScope) bson.D {
	filter := bson.D{}
	if scope.AssignedTo != "" {
		filter = append(filter, bson.E{Key: "assigned_to", Value: scope.AssignedTo})
	}
	return filter
}

func (s *Store) CreateLead(ctx context.Context, lead *model.Lead) error {
	return insertOne(ctx, s.col(ColLeads), lead)
}

func (s *Store) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return findOne[model.Lead](ctx, s.col(ColLeads), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListLeads(ctx context.Context, scope storage.LeadScope, limit int) ([]*model.Lead, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findMany[model.Lead](ctx, s.col(ColLeads), scopeFilter(scope), opts)
}

// UpdateLead 更新线索的全部可变字段（notes 除外，见 AppendLeadNote）
func (s *Store) UpdateLead(ctx context.Context, lead *model.Lead) error {
	return updateFields(ctx, s.col(ColLeads), lead.ID, bson.D{
		{Key: "first_name", Value: lead.FirstName},
		{Key: "last_name", Value: lead.LastName},
		{Key: "email", Value: lead.Email},
		{Key: "phone", Value: lead.Phone},
		{Key: "country", Value: lead.Country},
		{Key: "visa_type", Value: lead.VisaType},
		{Key: "status", Value: lead.Status},
		{Key: "payment_status", Value: lead.PaymentStatus},
		{Key: "assigned_to", Value: lead.AssignedTo},
		{Key: "updated_at", Value: lead.UpdatedAt},
	})
}

func (s *Store) DeleteLead(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColLeads), id)
}

// AppendLeadNote 原子追加备注
//
// 使用 $push 而非整文档替换：并发追加互不覆盖，插入顺序由文档级
// 原子性保证。
func (s *Store) AppendLeadNote(ctx context.Context, id string, note model.LeadNote) error {
	res, err := s.col(ColLeads).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$push", Value: bson.D{{Key: "notes", Value: note}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: note.CreatedAt}}},
		})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CountLeads(ctx context.Context, scope storage.LeadScope, f storage.LeadCountFilter) (int64, error) {
	filter := scopeFilter(scope)
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	if f.PaymentStatus != "" {
		filter = append(filter, bson.E{Key: "payment_status", Value: f.PaymentStatus})
	}
	n, err := s.col(ColLeads).CountDocuments(ctx, filter)
	if err != nil {
		return 0, wrapError(err)
	}
	return n, nil
}
