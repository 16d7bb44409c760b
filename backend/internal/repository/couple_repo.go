package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"couple-app/backend/internal/model"
)

// CoupleRepository 情侣空间数据访问接口
// 除 CodeExists 外的读取均只返回 is_active = true 的记录
type CoupleRepository interface {
	Create(ctx context.Context, couple *model.Couple) error
	GetActiveByID(ctx context.Context, id string) (*model.Couple, error)
	GetActiveByCode(ctx context.Context, code string) (*model.Couple, error)
	// CodeExists 在全部记录（含已停用）中检查邀请码是否已被占用
	CodeExists(ctx context.Context, code string) (bool, error)
	// ListActiveByMember 列出用户持有活跃成员关系的全部空间
	ListActiveByMember(ctx context.Context, userID string) ([]model.Couple, error)
	// UpdateFields 只写入给定列，且仅作用于活跃空间；无匹配行返回 ErrRecordNotFound
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// LockByID 在当前事务内对空间行加 FOR UPDATE 锁，串行化成员变更
	LockByID(ctx context.Context, id string) error
}

type coupleRepo struct {
	db *gorm.DB
}

// NewCoupleRepo 创建 CoupleRepository 实例
func NewCoupleRepo(db *gorm.DB) CoupleRepository {
	return &coupleRepo{db: db}
}

func (r *coupleRepo) Create(ctx context.Context, couple *model.Couple) error {
	return r.db.WithContext(ctx).Create(couple).Error
}

func (r *coupleRepo) GetActiveByID(ctx context.Context, id string) (*model.Couple, error) {
	var couple model.Couple
	err := r.db.WithContext(ctx).
		Where("couple_id = ? AND is_active = ?", id, true).
		First(&couple).Error
	if err != nil {
		return nil, err
	}
	return &couple, nil
}

func (r *coupleRepo) GetActiveByCode(ctx context.Context, code string) (*model.Couple, error) {
	var couple model.Couple
	err := r.db.WithContext(ctx).
		Where("couple_code = ? AND is_active = ?", code, true).
		First(&couple).Error
	if err != nil {
		return nil, err
	}
	return &couple, nil
}

func (r *coupleRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Couple{}).
		Where("couple_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *coupleRepo) ListActiveByMember(ctx context.Context, userID string) ([]model.Couple, error) {
	var couples []model.Couple
	err := r.db.WithContext(ctx).
		Joins("JOIN couple_members cm ON cm.couple_id = couples.couple_id").
		Where("cm.user_id = ? AND cm.status = ? AND couples.is_active = ?", userID, model.MemberStatusActive, true).
		Find(&couples).Error
	return couples, err
}

func (r *coupleRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Couple{}).
		Where("couple_id = ? AND is_active = ?", id, true).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *coupleRepo) LockByID(ctx context.Context, id string) error {
	var couple model.Couple
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("couple_id").
		Where("couple_id = ?", id).
		First(&couple).Error
}
