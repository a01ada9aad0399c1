package repository

import (
	"storefront/internal/domain/payment/model"

	"gorm.io/gorm"
)

// AuditRepository 收款审计流水
type AuditRepository interface {
	Create(audit *model.PaymentAudit) error
	// ExistsForSession 同一会话是否已记过账，保证重复验证不重复记账
	ExistsForSession(sessionID string) (bool, error)
	List(offset, limit int) ([]model.PaymentAudit, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(audit *model.PaymentAudit) error {
	return r.db.Create(audit).Error
}

func (r *auditRepository) ExistsForSession(sessionID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.PaymentAudit{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count > 0, err
}

func (r *auditRepository) List(offset, limit int) ([]model.PaymentAudit, int64, error) {
	var (
		audits []model.PaymentAudit
		total  int64
	)

	if err := r.db.Model(&model.PaymentAudit{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Order("paid_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&audits).Error
	return audits, total, err
}
