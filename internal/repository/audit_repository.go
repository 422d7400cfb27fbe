package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bluelught/doctor-apt/internal/domain"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	return wrapDBErr("inserting audit log", r.db.WithContext(ctx).Create(entry).Error)
}
