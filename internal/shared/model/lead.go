package model

import (
	"fmt"
	"time"
)

// VisaType 签证类型
type VisaType string

const (
	VisaTypeTourist  VisaType = "Tourist"
	VisaTypeStudent  VisaType = "Student"
	VisaTypeWork     VisaType = "Work"
	VisaTypeFamily   VisaType = "Family"
	VisaTypeBusiness VisaType = "Business"
	VisaTypeOther    VisaType = "Other"
)

// LeadStatus 线索处理状态
type LeadStatus string

const (
	LeadStatusNew              LeadStatus = "New"
	LeadStatusInProgress       LeadStatus = "In Progress"
	LeadStatusDocumentsPending LeadStatus = "Documents Pending"
	LeadStatusApproved         LeadStatus = "Approved"
	LeadStatusRejected         LeadStatus = "Rejected"
	LeadStatusCompleted        LeadStatus = "Completed"
)

// PaymentStatus 付款状态
type PaymentStatus string

const (
	PaymentStatusNotPaid PaymentStatus = "Not Paid"
	PaymentStatusPartial PaymentStatus = "Partial"
	PaymentStatusFull    PaymentStatus = "Full"
)

// VisaTypes 所有签证类型（表单选项用）
func VisaTypes() []VisaType {
	return []VisaType{VisaTypeTourist, VisaTypeStudent, VisaTypeWork,
		VisaTypeFamily, VisaTypeBusiness, VisaTypeOther}
}

// LeadStatuses 所有线索状态（表单选项用）
func LeadStatuses() []LeadStatus {
	return []LeadStatus{LeadStatusNew, LeadStatusInProgress, LeadStatusDocumentsPending,
		LeadStatusApproved, LeadStatusRejected, LeadStatusCompleted}
}

// PaymentStatuses 所有付款状态（表单选项用）
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusNotPaid, PaymentStatusPartial, PaymentStatusFull}
}

// LeadNote 线索备注（嵌入式子文档，无独立生命周期）
type LeadNote struct {
	Content   string    `json:"content" bson:"content"`
	CreatedBy string    `json:"created_by" bson:"created_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Lead 签证申请线索
//
// CreatedBy 必填；AssignedTo 可为空（未分配）。
// Notes 仅通过 $push 追加，保持插入顺序。
type Lead struct {
	ID            string        `json:"id" bson:"_id"`
	FirstName     string        `json:"first_name" bson:"first_name"`
	LastName      string        `json:"last_name" bson:"last_name"`
	Email         string        `json:"email" bson:"email"`
	Phone         string        `json:"phone" bson:"phone"`
	Country       string        `json:"country" bson:"country"`
	VisaType      VisaType      `json:"visa_type" bson:"visa_type"`
	Status        LeadStatus    `json:"status" bson:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" bson:"payment_status"`
	AssignedTo    string        `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	CreatedBy     string        `json:"created_by" bson:"created_by"`
	Notes         []LeadNote    `json:"notes" bson:"notes"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}

// Validate 校验必填字段和枚举值
func (l *Lead) Validate() error {
	switch {
	case l.FirstName == "":
		return fmt.Errorf("first_name is required")
	case l.LastName == "":
		return fmt.Errorf("last_name is required")
	case l.Email == "":
		return fmt.Errorf("email is required")
	case l.Phone == "":
		return fmt.Errorf("phone is required")
	case l.Country == "":
		return fmt.Errorf("country is required")
	case l.CreatedBy == "":
		return fmt.Errorf("created_by is required")
	}
	if !validVisaType(l.VisaType) {
		return fmt.Errorf("invalid visa_type: %q", l.VisaType)
	}
	if !validLeadStatus(l.Status) {
		return fmt.Errorf("invalid status: %q", l.Status)
	}
	if !validPaymentStatus(l.PaymentStatus) {
		return fmt.Errorf("invalid payment_status: %q", l.PaymentStatus)
	}
	return nil
}

func validVisaType(v VisaType) bool {
	for _, t := range VisaTypes() {
		if v == t {
			return true
		}
	}
	return false
}

func validLeadStatus(v LeadStatus) bool {
	for _, s := range LeadStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

func validPaymentStatus(v PaymentStatus) bool {
	for _, p := range PaymentStatuses() {
		if v == p {
			return true
		}
	}
	return false
}
