// Package policy 统一访问控制策略
//
// 所有触及线索及其文件的读写都经过本包，list/stats/详情访问共用同一条
// 规则，避免各 handler 自行拼角色过滤条件导致口径漂移：
//   - admin 可见全部
//   - agent 仅可见 assigned_to 等于自己的线索
package policy

import (
	"leads-admin/internal/shared/model"
	"leads-admin/internal/shared/storage"
)

// CanAccessLead 判定用户能否访问线索（读、改、备注、上传、下载、删文件）
func CanAccessLead(user *model.User, lead *model.Lead) bool {
	if user == nil || lead == nil {
		return false
	}
	if user.Role == model.UserRoleAdmin {
		return true
	}
	return lead.AssignedTo != "" && lead.AssignedTo == user.ID
}

// ScopeFor 返回用户的线索查询范围
//
// 列表、仪表盘、统计统一用此范围过滤，与 CanAccessLead 保持同一口径。
func ScopeFor(user *model.User) storage.LeadScope {
	if user.Role == model.UserRoleAdmin {
		return storage.LeadScope{}
	}
	return storage.LeadScope{AssignedTo: user.ID}
}
