package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"couple-app/backend/config"
	"couple-app/backend/internal/dto"
)

// ── 测试辅助 ──

func setupTestExportService() (ExportService, CoupleService, *mockRepos) {
	m := newMockRepos()
	m.users.addUser("creator-1", "小明")
	m.users.addUser("user-2", "小红")
	cfg := &config.CoupleConfig{MaxCodeAttempts: 5, OperationTimeout: time.Second}
	return NewExportService(cfg, m.repo, zap.NewNop()), NewCoupleService(cfg, m.repo, zap.NewNop()), m
}

// ── AnniversaryCalendar 测试 ──

func TestExportService_AnniversaryCalendar_Success(t *testing.T) {
	exp, couples, _ := setupTestExportService()
	ctx := context.Background()

	c, err := couples.Create(ctx, "creator-1", &dto.CreateCoupleRequest{
		Name:            "我们",
		AnniversaryDate: strPtr("2023-05-20"),
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	buf, filename, err := exp.AnniversaryCalendar(ctx, c.ID, "creator-1")
	if err != nil {
		t.Fatalf("AnniversaryCalendar 应成功: %v", err)
	}
	if !strings.HasSuffix(filename, ".ics") {
		t.Errorf("文件名应以 .ics 结尾: %s", filename)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("生成的日历应可解析: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("期望 1 个事件，实际 %d", len(events))
	}

	rrule := events[0].GetProperty(ics.ComponentPropertyRrule)
	if rrule == nil || rrule.Value != "FREQ=YEARLY" {
		t.Errorf("期望按年重复，实际 %v", rrule)
	}
	start := events[0].GetProperty(ics.ComponentPropertyDtStart)
	if start == nil || start.Value != "20230520" {
		t.Errorf("期望全天事件 20230520，实际 %v", start)
	}
	summary := events[0].GetProperty(ics.ComponentPropertySummary)
	if summary == nil || !strings.Contains(summary.Value, "我们") {
		t.Errorf("事件标题应包含空间名称，实际 %v", summary)
	}
}

func TestExportService_AnniversaryCalendar_LeapDay(t *testing.T) {
	exp, couples, _ := setupTestExportService()
	ctx := context.Background()

	c, err := couples.Create(ctx, "creator-1", &dto.CreateCoupleRequest{
		Name:            "闰日",
		AnniversaryDate: strPtr("2024-02-29"),
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	buf, _, err := exp.AnniversaryCalendar(ctx, c.ID, "creator-1")
	if err != nil {
		t.Fatalf("AnniversaryCalendar 应成功: %v", err)
	}
	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("生成的日历应可解析: %v", err)
	}

	event := cal.Events()[0]
	rrule := event.GetProperty(ics.ComponentPropertyRrule)
	if rrule == nil || rrule.Value != "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=-1" {
		t.Errorf("闰日纪念日应在平年落到 2 月最后一天，实际 %v", rrule)
	}
	start := event.GetProperty(ics.ComponentPropertyDtStart)
	if start == nil || start.Value != "20240229" {
		t.Errorf("期望全天事件 20240229，实际 %v", start)
	}
}

func TestAnniversaryRule(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-02-29", "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=-1"},
		{"2023-02-28", "FREQ=YEARLY"},
		{"2023-05-20", "FREQ=YEARLY"},
	}
	for _, tt := range tests {
		d, _ := time.Parse("2006-01-02", tt.date)
		if got := anniversaryRule(d); got != tt.want {
			t.Errorf("%s: 期望 %s，实际 %s", tt.date, tt.want, got)
		}
	}
}

func TestExportService_AnniversaryCalendar_NoDate(t *testing.T) {
	exp, couples, _ := setupTestExportService()
	c := mustCreate(t, couples, "creator-1", "我们")

	_, _, err := exp.AnniversaryCalendar(context.Background(), c.ID, "creator-1")
	if !errors.Is(err, ErrNoAnniversary) {
		t.Errorf("期望 ErrNoAnniversary，实际: %v", err)
	}
}

func TestExportService_AnniversaryCalendar_NonMemberMasked(t *testing.T) {
	exp, couples, _ := setupTestExportService()
	c, _ := couples.Create(context.Background(), "creator-1", &dto.CreateCoupleRequest{
		Name:            "我们",
		AnniversaryDate: strPtr("2023-05-20"),
	})

	_, _, err := exp.AnniversaryCalendar(context.Background(), c.ID, "user-2")
	if !errors.Is(err, ErrCoupleNotFound) {
		t.Errorf("非成员期望 ErrCoupleNotFound，实际: %v", err)
	}
}

// ── MembershipHistory 测试 ──

func TestExportService_MembershipHistory_Success(t *testing.T) {
	exp, couples, m := setupTestExportService()
	ctx := context.Background()

	c := mustCreate(t, couples, "creator-1", "我们")
	mustJoin(t, couples, "user-2", c.CoupleCode)
	if err := couples.Leave(ctx, c.ID, "user-2"); err != nil {
		t.Fatalf("Leave 应成功: %v", err)
	}
	delete(m.users.users, "user-2")

	buf, filename, err := exp.MembershipHistory(ctx, c.ID, "creator-1")
	if err != nil {
		t.Fatalf("MembershipHistory 应成功: %v", err)
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名应以 .xlsx 结尾: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("生成的 Excel 应可打开: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("成员记录")
	if err != nil {
		t.Fatalf("读取 Sheet 失败: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("期望表头 + 2 行，实际 %d 行", len(rows))
	}
	if rows[0][0] != "昵称" {
		t.Errorf("表头不符: %v", rows[0])
	}

	var sawCreator, sawLeft bool
	for _, r := range rows[1:] {
		if r[0] == "小明" && r[2] == "创建者" {
			sawCreator = true
		}
		if r[0] == "已注销" && r[3] == "已离开" && r[5] != "-" {
			sawLeft = true
		}
	}
	if !sawCreator || !sawLeft {
		t.Errorf("行内容不符: %v", rows[1:])
	}
}

func TestExportService_MembershipHistory_AccessDenied(t *testing.T) {
	exp, couples, _ := setupTestExportService()
	c := mustCreate(t, couples, "creator-1", "我们")

	_, _, err := exp.MembershipHistory(context.Background(), c.ID, "user-2")
	if !errors.Is(err, ErrNotCoupleMember) {
		t.Errorf("期望 ErrNotCoupleMember，实际: %v", err)
	}
}
