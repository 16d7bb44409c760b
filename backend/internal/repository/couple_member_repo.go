package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"couple-app/backend/internal/model"
)

// CoupleMemberRepository 成员关系数据访问接口
// 列表查询均预加载 User；用户已注销的成员关系 User 为 nil
type CoupleMemberRepository interface {
	Create(ctx context.Context, member *model.CoupleMember) error
	GetByID(ctx context.Context, id string) (*model.CoupleMember, error)
	// GetByCoupleAndUser 按 (couple, user) 查询任意状态的成员关系
	GetByCoupleAndUser(ctx context.Context, coupleID, userID string) (*model.CoupleMember, error)
	ListByCouple(ctx context.Context, coupleID string) ([]model.CoupleMember, error)
	ListByCouples(ctx context.Context, coupleIDs []string) ([]model.CoupleMember, error)
	ListActiveByCouple(ctx context.Context, coupleID string) ([]model.CoupleMember, error)
	CountActive(ctx context.Context, coupleID string) (int64, error)
	// MarkLeft 将活跃成员关系置为 left；目标已非活跃时返回 gorm.ErrRecordNotFound
	MarkLeft(ctx context.Context, memberID string, leftAt time.Time) error
}

type coupleMemberRepo struct {
	db *gorm.DB
}

// NewCoupleMemberRepo 创建 CoupleMemberRepository 实例
func NewCoupleMemberRepo(db *gorm.DB) CoupleMemberRepository {
	return &coupleMemberRepo{db: db}
}

func (r *coupleMemberRepo) Create(ctx context.Context, member *model.CoupleMember) error {
	return r.db.WithContext(ctx).Omit("User").Create(member).Error
}

func (r *coupleMemberRepo) GetByID(ctx context.Context, id string) (*model.CoupleMember, error) {
	var member model.CoupleMember
	err := r.db.WithContext(ctx).
		Where("member_id = ?", id).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *coupleMemberRepo) GetByCoupleAndUser(ctx context.Context, coupleID, userID string) (*model.CoupleMember, error) {
	var member model.CoupleMember
	err := r.db.WithContext(ctx).
		Where("couple_id = ? AND user_id = ?", coupleID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *coupleMemberRepo) ListByCouple(ctx context.Context, coupleID string) ([]model.CoupleMember, error) {
	return r.ListByCouples(ctx, []string{coupleID})
}

func (r *coupleMemberRepo) ListByCouples(ctx context.Context, coupleIDs []string) ([]model.CoupleMember, error) {
	var members []model.CoupleMember
	if len(coupleIDs) == 0 {
		return members, nil
	}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("couple_id IN ?", coupleIDs).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

func (r *coupleMemberRepo) ListActiveByCouple(ctx context.Context, coupleID string) ([]model.CoupleMember, error) {
	var members []model.CoupleMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("couple_id = ? AND status = ?", coupleID, model.MemberStatusActive).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

func (r *coupleMemberRepo) CountActive(ctx context.Context, coupleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CoupleMember{}).
		Where("couple_id = ? AND status = ?", coupleID, model.MemberStatusActive).
		Count(&count).Error
	return count, err
}

func (r *coupleMemberRepo) MarkLeft(ctx context.Context, memberID string, leftAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.CoupleMember{}).
		Where("member_id = ? AND status = ?", memberID, model.MemberStatusActive).
		Updates(map[string]interface{}{
			"status":  model.MemberStatusLeft,
			"left_at": leftAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
