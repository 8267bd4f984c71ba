package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"family-tasks/internal/model"
)

// DefaultMembers is the roster a new household starts with.
var DefaultMembers = []model.Member{
	{Name: "Mom", Email: "mom@example.com"},
	{Name: "Dad", Email: "dad@example.com"},
	{Name: "Emma", Email: "emma@example.com"},
	{Name: "Jack", Email: "jack@example.com"},
}

// MemberRepository manages the family roster.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) List(ctx context.Context) ([]model.Member, error) {
	var members []model.Member
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// FindByName matches case-insensitively.
func (r *MemberRepository) FindByName(ctx context.Context, name string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetOrCreate returns the member with this name, adding them if missing.
func (r *MemberRepository) GetOrCreate(ctx context.Context, name, email string) (*model.Member, error) {
	member, err := r.FindByName(ctx, name)
	switch {
	case err == nil:
		return member, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := model.Member{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
		if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
			return nil, fmt.Errorf("create member: %w", err)
		}
		return &created, nil
	default:
		return nil, fmt.Errorf("find member: %w", err)
	}
}

// Delete removes a member by name. Their tasks are left alone.
func (r *MemberRepository) Delete(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).Delete(&model.Member{})
	if res.Error != nil {
		return fmt.Errorf("delete member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SeedDefaults fills an empty roster with DefaultMembers.
func (r *MemberRepository) SeedDefaults(ctx context.Context) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Member{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, m := range DefaultMembers {
		if _, err := r.GetOrCreate(ctx, m.Name, m.Email); err != nil {
			return err
		}
	}
	return nil
}
