package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"couple-app/backend/internal/model"
	"couple-app/backend/internal/repository"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User

	// createErr 非 nil 时 Create 直接返回该错误（模拟并发创建冲突）
	createErr error
	// lastFields 最近一次 UpdateFields 写入的列
	lastFields map[string]interface{}
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.FirebaseUID == user.FirebaseUID || u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByFirebaseUID(_ context.Context, uid string) (*model.User, error) {
	for _, u := range m.users {
		if u.FirebaseUID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.lastFields = fields
	for col, v := range fields {
		switch col {
		case "name":
			u.Name = v.(string)
		case "avatar_url":
			u.AvatarURL = v.(*string)
		case "updated_at":
			u.UpdatedAt = v.(time.Time)
		default:
			panic("mockUserRepo: unexpected column " + col)
		}
	}
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.users, id)
	return nil
}

// addUser 直接写入一个测试用户
func (m *mockUserRepo) addUser(id, name string) *model.User {
	u := &model.User{
		UserID:      id,
		FirebaseUID: "uid-" + id,
		Email:       id + "@example.com",
		Name:        name,
	}
	m.users[id] = u
	return u
}

// ── Mock CoupleRepository ──

type mockCoupleRepo struct {
	couples map[string]*model.Couple
	members *mockMemberRepo

	// hiddenCodes 中的邀请码 CodeExists 返回 false，但插入仍触发唯一冲突（模拟并发抢占）
	hiddenCodes map[string]bool
	// lastFields 最近一次 UpdateFields 写入的列
	lastFields map[string]interface{}
	// locked 记录 LockByID 调用过的空间
	locked []string
}

func newMockCoupleRepo(members *mockMemberRepo) *mockCoupleRepo {
	return &mockCoupleRepo{
		couples:     make(map[string]*model.Couple),
		members:     members,
		hiddenCodes: make(map[string]bool),
	}
}

func (m *mockCoupleRepo) Create(_ context.Context, couple *model.Couple) error {
	if m.hiddenCodes[couple.CoupleCode] {
		return gorm.ErrDuplicatedKey
	}
	for _, c := range m.couples {
		if c.CoupleCode == couple.CoupleCode {
			return gorm.ErrDuplicatedKey
		}
	}
	if couple.CoupleID == "" {
		couple.CoupleID = uuid.NewString()
	}
	cp := *couple
	m.couples[couple.CoupleID] = &cp
	return nil
}

func (m *mockCoupleRepo) GetActiveByID(_ context.Context, id string) (*model.Couple, error) {
	if c, ok := m.couples[id]; ok && c.IsActive {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCoupleRepo) GetActiveByCode(_ context.Context, code string) (*model.Couple, error) {
	for _, c := range m.couples {
		if c.CoupleCode == code && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCoupleRepo) CodeExists(_ context.Context, code string) (bool, error) {
	if m.hiddenCodes[code] {
		return false, nil
	}
	for _, c := range m.couples {
		if c.CoupleCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCoupleRepo) ListActiveByMember(_ context.Context, userID string) ([]model.Couple, error) {
	var result []model.Couple
	for _, mem := range m.members.members {
		if mem.UserID != userID || mem.Status != model.MemberStatusActive {
			continue
		}
		if c, ok := m.couples[mem.CoupleID]; ok && c.IsActive {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockCoupleRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	c, ok := m.couples[id]
	if !ok || !c.IsActive {
		return gorm.ErrRecordNotFound
	}
	m.lastFields = fields
	for col, v := range fields {
		switch col {
		case "name":
			c.Name = v.(string)
		case "description":
			c.Description = v.(*string)
		case "avatar_url":
			c.AvatarURL = v.(*string)
		case "privacy_level":
			c.PrivacyLevel = v.(string)
		case "anniversary_date":
			c.AnniversaryDate = v.(*time.Time)
		case "updated_at":
			c.UpdatedAt = v.(time.Time)
		default:
			panic("mockCoupleRepo: unexpected column " + col)
		}
	}
	return nil
}

func (m *mockCoupleRepo) LockByID(_ context.Context, id string) error {
	if _, ok := m.couples[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.locked = append(m.locked, id)
	return nil
}

// ── Mock CoupleMemberRepository ──

type mockMemberRepo struct {
	members map[string]*model.CoupleMember
	users   *mockUserRepo
}

func newMockMemberRepo(users *mockUserRepo) *mockMemberRepo {
	return &mockMemberRepo{members: make(map[string]*model.CoupleMember), users: users}
}

func (m *mockMemberRepo) Create(_ context.Context, member *model.CoupleMember) error {
	for _, e := range m.members {
		if e.CoupleID == member.CoupleID && e.UserID == member.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	if member.MemberID == "" {
		member.MemberID = uuid.NewString()
	}
	cp := *member
	cp.User = nil
	m.members[member.MemberID] = &cp
	return nil
}

func (m *mockMemberRepo) GetByID(_ context.Context, id string) (*model.CoupleMember, error) {
	if e, ok := m.members[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) GetByCoupleAndUser(_ context.Context, coupleID, userID string) (*model.CoupleMember, error) {
	for _, e := range m.members {
		if e.CoupleID == coupleID && e.UserID == userID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// withUser 模拟 Preload("User")，用户已删除时 User 为 nil
func (m *mockMemberRepo) withUser(e *model.CoupleMember) model.CoupleMember {
	cp := *e
	cp.User = nil
	if u, ok := m.users.users[e.UserID]; ok {
		uc := *u
		cp.User = &uc
	}
	return cp
}

func (m *mockMemberRepo) list(filter func(*model.CoupleMember) bool) []model.CoupleMember {
	var result []model.CoupleMember
	for _, e := range m.members {
		if filter(e) {
			result = append(result, m.withUser(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result
}

func (m *mockMemberRepo) ListByCouple(_ context.Context, coupleID string) ([]model.CoupleMember, error) {
	return m.list(func(e *model.CoupleMember) bool { return e.CoupleID == coupleID }), nil
}

func (m *mockMemberRepo) ListByCouples(_ context.Context, coupleIDs []string) ([]model.CoupleMember, error) {
	set := make(map[string]bool, len(coupleIDs))
	for _, id := range coupleIDs {
		set[id] = true
	}
	return m.list(func(e *model.CoupleMember) bool { return set[e.CoupleID] }), nil
}

func (m *mockMemberRepo) ListActiveByCouple(_ context.Context, coupleID string) ([]model.CoupleMember, error) {
	return m.list(func(e *model.CoupleMember) bool {
		return e.CoupleID == coupleID && e.Status == model.MemberStatusActive
	}), nil
}

func (m *mockMemberRepo) CountActive(_ context.Context, coupleID string) (int64, error) {
	var n int64
	for _, e := range m.members {
		if e.CoupleID == coupleID && e.Status == model.MemberStatusActive {
			n++
		}
	}
	return n, nil
}

func (m *mockMemberRepo) MarkLeft(_ context.Context, memberID string, leftAt time.Time) error {
	e, ok := m.members[memberID]
	if !ok || e.Status != model.MemberStatusActive {
		return gorm.ErrRecordNotFound
	}
	e.Status = model.MemberStatusLeft
	e.LeftAt = &leftAt
	return nil
}

// ── Mock 聚合 ──

type mockRepos struct {
	users   *mockUserRepo
	couples *mockCoupleRepo
	members *mockMemberRepo
	repo    *repository.Repository
}

func newMockRepos() *mockRepos {
	users := newMockUserRepo()
	members := newMockMemberRepo(users)
	couples := newMockCoupleRepo(members)
	return &mockRepos{
		users:   users,
		couples: couples,
		members: members,
		repo: &repository.Repository{
			User:   users,
			Couple: couples,
			Member: members,
		},
	}
}
