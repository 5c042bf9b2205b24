package model

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Base holds the identity and audit columns shared by all tenant owned entities. Every entity
// embedding Base also declares its own Tenant column so it can be part of the entities unique
// indexes.
type Base struct {
	ID             uint `gorm:"primarykey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreatedBy      string `gorm:"size:64"`
	LastModifiedBy string `gorm:"size:64"`
}

var errMissingUser = errors.New("no user found in context")

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	user, ok := GetUserFromContext(tx.Statement.Context)
	if !ok {
		return errMissingUser
	}

	b.CreatedBy = user.Username
	b.LastModifiedBy = user.Username
	tx.Statement.SetColumn("Tenant", user.Tenant)
	return nil
}

func (b *Base) BeforeUpdate(tx *gorm.DB) error {
	user, ok := GetUserFromContext(tx.Statement.Context)
	if !ok {
		return errMissingUser
	}

	tx.Statement.SetColumn("LastModifiedBy", user.Username)
	return nil
}

// TenantScope restricts a query to the entities of the tenant of the user found in ctx.
func TenantScope(ctx context.Context) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		user, ok := GetUserFromContext(ctx)
		if !ok {
			_ = db.AddError(errMissingUser)
			return db
		}
		return db.Where("tenant = ?", user.Tenant)
	}
}

// TenantFromContext returns the tenant of the user found in ctx.
func TenantFromContext(ctx context.Context) (string, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok {
		return "", errMissingUser
	}
	return user.Tenant, nil
}

// Millis returns t as milliseconds since the epoch, the time representation of the REST API.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// MillisPtr returns nil for a nil t and t in milliseconds since the epoch otherwise.
func MillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
