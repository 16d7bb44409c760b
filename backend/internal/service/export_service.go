package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"couple-app/backend/config"
	"couple-app/backend/internal/model"
	"couple-app/backend/internal/repository"
	apperrors "couple-app/backend/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrNoAnniversary      = apperrors.New(apperrors.ErrNotFound, "该空间尚未设置纪念日")
	ErrExportGenerateFail = apperrors.New(apperrors.ErrInternal, "生成导出文件失败")
)

const calendarProductID = "-//couple-app//anniversary//ZH"

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// AnniversaryCalendar 纪念日日历（每年重复的全天事件），访问控制同 CoupleService.GetByID
	AnniversaryCalendar(ctx context.Context, coupleID, userID string) (*bytes.Buffer, string, error)
	// MembershipHistory 成员关系历史（含已离开），非活跃成员返回 ErrNotCoupleMember
	MembershipHistory(ctx context.Context, coupleID, userID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo    *repository.Repository
	logger  *zap.Logger
	timeout time.Duration
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.CoupleConfig, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, timeout: cfg.OperationTimeout}
}

// ═══════════════════════════════════════════════════════════
// AnniversaryCalendar：导出纪念日为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) AnniversaryCalendar(ctx context.Context, coupleID, userID string) (*bytes.Buffer, string, error) {
	if !validID(coupleID) {
		return nil, "", ErrCoupleNotFound
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	ok, err := isActiveMember(ctx, s.repo, s.logger, coupleID, userID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrCoupleNotFound
	}

	couple, err := s.repo.Couple.GetActiveByID(ctx, coupleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrCoupleNotFound
		}
		return nil, "", storeError(ctx, s.logger, "查询空间失败", err, zap.String("couple_id", coupleID))
	}
	if couple.AnniversaryDate == nil {
		return nil, "", ErrNoAnniversary
	}

	cal := buildAnniversaryCalendar(couple, time.Now().UTC())

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, fmt.Sprintf("anniversary_%s.ics", couple.CoupleCode), nil
}

// buildAnniversaryCalendar 一个全天事件，按年重复
func buildAnniversaryCalendar(couple *model.Couple, now time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)

	d := *couple.AnniversaryDate
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)

	event := cal.AddEvent(fmt.Sprintf("anniversary-%s@couple-app", couple.CoupleID))
	event.SetDtStampTime(now)
	event.SetSummary(fmt.Sprintf("%s 纪念日", couple.Name))
	if couple.Description != nil {
		event.SetDescription(*couple.Description)
	}
	event.SetAllDayStartAt(start)
	event.SetAllDayEndAt(start.AddDate(0, 0, 1))
	event.SetProperty(ics.ComponentPropertyRrule, anniversaryRule(d))
	return cal
}

// anniversaryRule 2 月 29 日的纪念日在平年落到 2 月最后一天
func anniversaryRule(d time.Time) string {
	if d.Month() == time.February && d.Day() == 29 {
		return "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=-1"
	}
	return "FREQ=YEARLY"
}

// ═══════════════════════════════════════════════════════════
// MembershipHistory：导出成员关系历史为 Excel
// ═══════════════════════════════════════════════════════════
//
// 表头: | 昵称 | 邮箱 | 角色 | 状态 | 加入时间 | 离开时间 |
// 用户已注销的成员显示为 "已注销"

func (s *exportService) MembershipHistory(ctx context.Context, coupleID, userID string) (*bytes.Buffer, string, error) {
	if !validID(coupleID) {
		return nil, "", ErrNotCoupleMember
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	ok, err := isActiveMember(ctx, s.repo, s.logger, coupleID, userID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrNotCoupleMember
	}

	couple, err := s.repo.Couple.GetActiveByID(ctx, coupleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotCoupleMember
		}
		return nil, "", storeError(ctx, s.logger, "查询空间失败", err, zap.String("couple_id", coupleID))
	}

	members, err := s.repo.Member.ListByCouple(ctx, coupleID)
	if err != nil {
		return nil, "", storeError(ctx, s.logger, "查询空间成员失败", err, zap.String("couple_id", coupleID))
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "成员记录"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 18)
	f.SetColWidth(sheetName, "B", "B", 28)
	f.SetColWidth(sheetName, "C", "D", 10)
	f.SetColWidth(sheetName, "E", "F", 22)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F4B6C2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"昵称", "邮箱", "角色", "状态", "加入时间", "离开时间"}
	for i, h := range headers {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, c, h)
	}
	f.SetCellStyle(sheetName, "A1", "F1", headerStyle)

	for i, m := range members {
		row := i + 2
		name, email := "已注销", "-"
		if m.User != nil {
			name, email = m.User.Name, m.User.Email
		}
		leftAt := "-"
		if m.LeftAt != nil {
			leftAt = m.LeftAt.UTC().Format("2006-01-02 15:04")
		}
		values := []interface{}{
			name,
			email,
			roleLabel(m.Role),
			statusLabel(m.Status),
			m.JoinedAt.UTC().Format("2006-01-02 15:04"),
			leftAt,
		}
		for col, v := range values {
			c, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, c, v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, fmt.Sprintf("members_%s.xlsx", couple.CoupleCode), nil
}

func roleLabel(role string) string {
	if role == model.RoleCreator {
		return "创建者"
	}
	return "成员"
}

func statusLabel(status string) string {
	switch status {
	case model.MemberStatusActive:
		return "活跃"
	case model.MemberStatusPending:
		return "待确认"
	case model.MemberStatusLeft:
		return "已离开"
	}
	return status
}
