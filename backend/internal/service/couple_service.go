package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"couple-app/backend/config"
	"couple-app/backend/internal/dto"
	"couple-app/backend/internal/model"
	"couple-app/backend/internal/repository"
	apperrors "couple-app/backend/pkg/errors"
)

// ── 情侣空间模块业务错误 ──

var (
	ErrCoupleNotFound          = apperrors.New(apperrors.ErrNotFound, "情侣空间不存在")
	ErrInvalidCoupleCode       = apperrors.New(apperrors.ErrNotFound, "邀请码无效或已失效")
	ErrAlreadyMember           = apperrors.New(apperrors.ErrConflict, "你已是该空间的成员")
	ErrNotCoupleMember         = apperrors.New(apperrors.ErrAccessDenied, "你不是该空间的成员")
	ErrOnlyCreatorCanUpdate    = apperrors.New(apperrors.ErrForbidden, "只有创建者可以修改空间设置")
	ErrOnlyCreatorCanRemove    = apperrors.New(apperrors.ErrForbidden, "只有创建者可以移除成员")
	ErrCannotRemoveCreator     = apperrors.New(apperrors.ErrForbidden, "不能移除创建者")
	ErrMemberNotFound          = apperrors.New(apperrors.ErrNotFound, "成员不存在")
	ErrMemberAlreadyLeft       = apperrors.New(apperrors.ErrConflict, "该成员已离开空间")
	ErrNotActiveMember         = apperrors.New(apperrors.ErrNotFound, "你不是该空间的活跃成员")
	ErrCreatorCannotLeave      = apperrors.New(apperrors.ErrConflict, "空间仍有其他活跃成员，创建者不能离开，请先移除其他成员")
	ErrCodeGenerationExhausted = apperrors.New(apperrors.ErrConflict, "邀请码生成失败，请稍后重试")
)

// CoupleService 情侣空间业务接口
type CoupleService interface {
	Create(ctx context.Context, userID string, req *dto.CreateCoupleRequest) (*dto.CoupleResponse, error)
	JoinByCode(ctx context.Context, userID string, req *dto.JoinCoupleRequest) (*dto.MemberResponse, error)
	ListForUser(ctx context.Context, userID string) ([]dto.CoupleWithMembersResponse, error)
	// GetByID 非活跃成员与不存在的空间一样返回 ErrCoupleNotFound
	GetByID(ctx context.Context, coupleID, userID string) (*dto.CoupleWithMembersResponse, error)
	// ListMembers 非活跃成员返回 ErrNotCoupleMember
	ListMembers(ctx context.Context, coupleID, userID string) ([]dto.MemberResponse, error)
	Update(ctx context.Context, coupleID, userID string, req *dto.UpdateCoupleRequest) (*dto.CoupleResponse, error)
	RemoveMember(ctx context.Context, coupleID, memberID, userID string) error
	Leave(ctx context.Context, coupleID, userID string) error
}

type coupleService struct {
	repo            *repository.Repository
	logger          *zap.Logger
	maxCodeAttempts int
	timeout         time.Duration
	genCode         func() (string, error)
}

// NewCoupleService 创建 CoupleService 实例
func NewCoupleService(cfg *config.CoupleConfig, repo *repository.Repository, logger *zap.Logger) CoupleService {
	attempts := cfg.MaxCodeAttempts
	if attempts < 1 {
		attempts = 20
	}
	return &coupleService{
		repo:            repo,
		logger:          logger,
		maxCodeAttempts: attempts,
		timeout:         cfg.OperationTimeout,
		genCode:         generateInviteCode,
	}
}

// ────────────────────── Create ──────────────────────

func (s *coupleService) Create(ctx context.Context, userID string, req *dto.CreateCoupleRequest) (*dto.CoupleResponse, error) {
	// 所有校验在写入前完成
	if err := validateName("名称", req.Name); err != nil {
		return nil, err
	}
	if req.Description != nil {
		if err := validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}
	if req.AvatarURL != nil {
		if err := validateAvatarURL(*req.AvatarURL); err != nil {
			return nil, err
		}
	}
	privacy := req.PrivacyLevel
	if privacy == "" {
		privacy = model.PrivacyPrivate
	}
	if err := validatePrivacyLevel(privacy); err != nil {
		return nil, err
	}
	var anniversary *time.Time
	if req.AnniversaryDate != nil {
		d, err := parseDate(*req.AnniversaryDate)
		if err != nil {
			return nil, err
		}
		anniversary = d
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	for attempt := 1; attempt <= s.maxCodeAttempts; attempt++ {
		code, err := s.genCode()
		if err != nil {
			s.logger.Error("生成邀请码失败", zap.Error(err))
			return nil, apperrors.New(apperrors.ErrInternal, "生成邀请码失败")
		}

		exists, err := s.repo.Couple.CodeExists(ctx, code)
		if err != nil {
			return nil, storeError(ctx, s.logger, "检查邀请码失败", err)
		}
		if exists {
			continue
		}

		now := time.Now().UTC()
		couple := &model.Couple{
			Name:            req.Name,
			CoupleCode:      code,
			Description:     req.Description,
			AvatarURL:       req.AvatarURL,
			AnniversaryDate: anniversary,
			PrivacyLevel:    privacy,
			IsActive:        true,
			CreatorID:       userID,
			BaseModel:       model.BaseModel{CreatedAt: now, UpdatedAt: now},
		}

		err = s.insertWithCreator(ctx, couple, now)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发创建抢占了同一邀请码，以唯一索引为准重新生成
			s.logger.Info("邀请码插入冲突，重新生成", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, storeError(ctx, s.logger, "创建情侣空间失败", err, zap.String("user_id", userID))
		}

		return toCoupleResponse(couple), nil
	}

	s.logger.Warn("邀请码重试次数耗尽", zap.Int("attempts", s.maxCodeAttempts))
	return nil, ErrCodeGenerationExhausted
}

// insertWithCreator 在同一事务中写入空间与创建者成员关系
func (s *coupleService) insertWithCreator(ctx context.Context, couple *model.Couple, now time.Time) error {
	return s.inTx(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Couple.Create(ctx, couple); err != nil {
			return err
		}
		return txRepo.Member.Create(ctx, &model.CoupleMember{
			CoupleID: couple.CoupleID,
			UserID:   couple.CreatorID,
			Role:     model.RoleCreator,
			Status:   model.MemberStatusActive,
			JoinedAt: now,
		})
	})
}

// inTx 在事务中执行 fn，fn 返回错误或 panic 时回滚
func (s *coupleService) inTx(ctx context.Context, fn func(txRepo *repository.Repository) error) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(s.repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			return err
		}
	}
	return nil
}

// ────────────────────── JoinByCode ──────────────────────

func (s *coupleService) JoinByCode(ctx context.Context, userID string, req *dto.JoinCoupleRequest) (*dto.MemberResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !validInviteCode(code) {
		return nil, ErrInvalidCoupleCode
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	couple, err := s.repo.Couple.GetActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCoupleCode
		}
		return nil, storeError(ctx, s.logger, "按邀请码查询空间失败", err)
	}

	member := &model.CoupleMember{
		CoupleID: couple.CoupleID,
		UserID:   userID,
		Role:     model.RoleMember,
		Status:   model.MemberStatusActive,
		JoinedAt: time.Now().UTC(),
	}

	// 锁住空间行，与创建者离开互斥
	err = s.inTx(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Couple.LockByID(ctx, couple.CoupleID); err != nil {
			return err
		}
		// 任意状态的既有记录都拒绝（离开后不能重新加入）
		if _, err := txRepo.Member.GetByCoupleAndUser(ctx, couple.CoupleID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return txRepo.Member.Create(ctx, member)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, gorm.ErrDuplicatedKey):
		// 并发加入由 (couple_id, user_id) 唯一索引裁决
		return nil, ErrAlreadyMember
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrInvalidCoupleCode
	default:
		return nil, storeError(ctx, s.logger, "加入空间失败", err, zap.String("couple_id", couple.CoupleID))
	}

	s.logger.Info("用户加入空间",
		zap.String("couple_id", couple.CoupleID),
		zap.String("user_id", userID),
	)

	resp := toMemberResponse(member)
	return &resp, nil
}

// ────────────────────── ListForUser ──────────────────────

func (s *coupleService) ListForUser(ctx context.Context, userID string) ([]dto.CoupleWithMembersResponse, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	couples, err := s.repo.Couple.ListActiveByMember(ctx, userID)
	if err != nil {
		return nil, storeError(ctx, s.logger, "列出用户空间失败", err, zap.String("user_id", userID))
	}

	ids := make([]string, 0, len(couples))
	for _, c := range couples {
		ids = append(ids, c.CoupleID)
	}

	members, err := s.repo.Member.ListByCouples(ctx, ids)
	if err != nil {
		return nil, storeError(ctx, s.logger, "查询空间成员失败", err, zap.String("user_id", userID))
	}

	byCouple := make(map[string][]model.CoupleMember, len(couples))
	for _, m := range members {
		byCouple[m.CoupleID] = append(byCouple[m.CoupleID], m)
	}

	result := make([]dto.CoupleWithMembersResponse, 0, len(couples))
	for i := range couples {
		result = append(result, *toCoupleWithMembers(&couples[i], byCouple[couples[i].CoupleID]))
	}
	return result, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *coupleService) GetByID(ctx context.Context, coupleID, userID string) (*dto.CoupleWithMembersResponse, error) {
	if !validID(coupleID) {
		return nil, ErrCoupleNotFound
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	ok, err := isActiveMember(ctx, s.repo, s.logger, coupleID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCoupleNotFound
	}

	couple, err := s.repo.Couple.GetActiveByID(ctx, coupleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCoupleNotFound
		}
		return nil, storeError(ctx, s.logger, "查询空间失败", err, zap.String("couple_id", coupleID))
	}

	members, err := s.repo.Member.ListByCouple(ctx, coupleID)
	if err != nil {
		return nil, storeError(ctx, s.logger, "查询空间成员失败", err, zap.String("couple_id", coupleID))
	}

	return toCoupleWithMembers(couple, members), nil
}

// ────────────────────── ListMembers ──────────────────────

func (s *coupleService) ListMembers(ctx context.Context, coupleID, userID string) ([]dto.MemberResponse, error) {
	if !validID(coupleID) {
		return nil, ErrNotCoupleMember
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	ok, err := isActiveMember(ctx, s.repo, s.logger, coupleID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCoupleMember
	}

	if _, err := s.repo.Couple.GetActiveByID(ctx, coupleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotCoupleMember
		}
		return nil, storeError(ctx, s.logger, "查询空间失败", err, zap.String("couple_id", coupleID))
	}

	members, err := s.repo.Member.ListActiveByCouple(ctx, coupleID)
	if err != nil {
		return nil, storeError(ctx, s.logger, "查询活跃成员失败", err, zap.String("couple_id", coupleID))
	}

	result := make([]dto.MemberResponse, 0, len(members))
	for _, m := range members {
		// 用户已注销的成员关系不出现在成员列表中
		if m.User == nil {
			continue
		}
		result = append(result, toMemberResponse(&m))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *coupleService) Update(ctx context.Context, coupleID, userID string, req *dto.UpdateCoupleRequest) (*dto.CoupleResponse, error) {
	if req.Name != nil {
		if err := validateName("名称", *req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if err := validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}
	if req.AvatarURL != nil && *req.AvatarURL != "" {
		if err := validateAvatarURL(*req.AvatarURL); err != nil {
			return nil, err
		}
	}
	if req.PrivacyLevel != nil {
		if err := validatePrivacyLevel(*req.PrivacyLevel); err != nil {
			return nil, err
		}
	}
	var anniversary *time.Time
	if req.AnniversaryDate != nil {
		d, err := parseDate(*req.AnniversaryDate)
		if err != nil {
			return nil, err
		}
		anniversary = d
	}

	if !validID(coupleID) {
		return nil, ErrOnlyCreatorCanUpdate
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if _, err := s.creatorOwnedCouple(ctx, coupleID, userID, ErrOnlyCreatorCanUpdate); err != nil {
		return nil, err
	}

	// 只写入请求中出现的列；空字符串表示清空可选字段
	fields := map[string]interface{}{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = optionalString(*req.Description)
	}
	if req.AvatarURL != nil {
		fields["avatar_url"] = optionalString(*req.AvatarURL)
	}
	if req.PrivacyLevel != nil {
		fields["privacy_level"] = *req.PrivacyLevel
	}
	if req.AnniversaryDate != nil {
		fields["anniversary_date"] = anniversary
	}

	if err := s.repo.Couple.UpdateFields(ctx, coupleID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOnlyCreatorCanUpdate
		}
		return nil, storeError(ctx, s.logger, "更新空间失败", err, zap.String("couple_id", coupleID))
	}

	couple, err := s.repo.Couple.GetActiveByID(ctx, coupleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOnlyCreatorCanUpdate
		}
		return nil, storeError(ctx, s.logger, "查询空间失败", err, zap.String("couple_id", coupleID))
	}

	return toCoupleResponse(couple), nil
}

// ────────────────────── RemoveMember ──────────────────────

func (s *coupleService) RemoveMember(ctx context.Context, coupleID, memberID, userID string) error {
	if !validID(coupleID) {
		return ErrOnlyCreatorCanRemove
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if _, err := s.creatorOwnedCouple(ctx, coupleID, userID, ErrOnlyCreatorCanRemove); err != nil {
		return err
	}

	if !validID(memberID) {
		return ErrMemberNotFound
	}
	target, err := s.repo.Member.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return storeError(ctx, s.logger, "查询成员失败", err, zap.String("member_id", memberID))
	}
	if target.CoupleID != coupleID {
		return ErrMemberNotFound
	}
	if target.Role == model.RoleCreator {
		return ErrCannotRemoveCreator
	}
	if !target.IsActive() {
		return ErrMemberAlreadyLeft
	}

	if err := s.repo.Member.MarkLeft(ctx, memberID, time.Now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberAlreadyLeft
		}
		return storeError(ctx, s.logger, "移除成员失败", err, zap.String("member_id", memberID))
	}

	s.logger.Info("创建者移除成员",
		zap.String("couple_id", coupleID),
		zap.String("member_id", memberID),
	)
	return nil
}

// ────────────────────── Leave ──────────────────────

func (s *coupleService) Leave(ctx context.Context, coupleID, userID string) error {
	if !validID(coupleID) {
		return ErrNotActiveMember
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	membership, err := s.repo.Member.GetByCoupleAndUser(ctx, coupleID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotActiveMember
		}
		return storeError(ctx, s.logger, "查询成员关系失败", err, zap.String("couple_id", coupleID))
	}
	if !membership.IsActive() {
		return ErrNotActiveMember
	}

	now := time.Now().UTC()
	if membership.Role != model.RoleCreator {
		if err := s.repo.Member.MarkLeft(ctx, membership.MemberID, now); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotActiveMember
			}
			return storeError(ctx, s.logger, "离开空间失败", err, zap.String("couple_id", coupleID))
		}
	} else {
		// 创建者只能在没有其他活跃成员时离开；计数与更新在空间行锁内完成，避免期间有人加入
		err = s.inTx(ctx, func(txRepo *repository.Repository) error {
			if err := txRepo.Couple.LockByID(ctx, coupleID); err != nil {
				return err
			}
			active, err := txRepo.Member.CountActive(ctx, coupleID)
			if err != nil {
				return err
			}
			if active > 1 {
				return ErrCreatorCannotLeave
			}
			return txRepo.Member.MarkLeft(ctx, membership.MemberID, now)
		})
		switch {
		case err == nil:
		case errors.Is(err, ErrCreatorCannotLeave):
			return err
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrNotActiveMember
		default:
			return storeError(ctx, s.logger, "离开空间失败", err, zap.String("couple_id", coupleID))
		}
	}

	s.logger.Info("用户离开空间",
		zap.String("couple_id", coupleID),
		zap.String("user_id", userID),
	)
	return nil
}

// ────────────────────── helpers ──────────────────────

// isActiveMember 用户是否持有该空间的活跃成员关系
func isActiveMember(ctx context.Context, repo *repository.Repository, logger *zap.Logger, coupleID, userID string) (bool, error) {
	m, err := repo.Member.GetByCoupleAndUser(ctx, coupleID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, storeError(ctx, logger, "查询成员关系失败", err, zap.String("couple_id", coupleID))
	}
	return m.IsActive(), nil
}

// creatorOwnedCouple 空间不存在与非创建者返回同一个 denied 错误
func (s *coupleService) creatorOwnedCouple(ctx context.Context, coupleID, userID string, denied error) (*model.Couple, error) {
	couple, err := s.repo.Couple.GetActiveByID(ctx, coupleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, denied
		}
		return nil, storeError(ctx, s.logger, "查询空间失败", err, zap.String("couple_id", coupleID))
	}
	if couple.CreatorID != userID {
		return nil, denied
	}
	return couple, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toCoupleResponse(c *model.Couple) *dto.CoupleResponse {
	resp := &dto.CoupleResponse{
		ID:           c.CoupleID,
		Name:         c.Name,
		CoupleCode:   c.CoupleCode,
		Description:  c.Description,
		AvatarURL:    c.AvatarURL,
		PrivacyLevel: c.PrivacyLevel,
		IsActive:     c.IsActive,
		CreatorID:    c.CreatorID,
		CreatedAt:    formatTime(c.CreatedAt),
		UpdatedAt:    formatTime(c.UpdatedAt),
	}
	if c.AnniversaryDate != nil {
		d := c.AnniversaryDate.Format(dateLayout)
		resp.AnniversaryDate = &d
	}
	return resp
}

func toMemberResponse(m *model.CoupleMember) dto.MemberResponse {
	resp := dto.MemberResponse{
		ID:       m.MemberID,
		CoupleID: m.CoupleID,
		UserID:   m.UserID,
		Role:     m.Role,
		Status:   m.Status,
		JoinedAt: formatTime(m.JoinedAt),
	}
	if m.LeftAt != nil {
		l := formatTime(*m.LeftAt)
		resp.LeftAt = &l
	}
	if m.User != nil {
		resp.User = toUserPublic(m.User)
	}
	return resp
}

func toCoupleWithMembers(c *model.Couple, members []model.CoupleMember) *dto.CoupleWithMembersResponse {
	list := make([]dto.MemberResponse, 0, len(members))
	for i := range members {
		list = append(list, toMemberResponse(&members[i]))
	}
	return &dto.CoupleWithMembersResponse{
		CoupleResponse: *toCoupleResponse(c),
		Members:        list,
		MemberCount:    len(list),
	}
}
