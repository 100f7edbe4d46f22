package export

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		count int64
		limit int
		want  string
	}{
		{0, 4, StatusNotStarted},
		{1, 4, StatusNotStarted},
		{2, 4, StatusInProgress},
		{3, 4, StatusInProgress},
		{4, 4, StatusDone},
		{7, 4, StatusDone},
		{1, 2, StatusInProgress},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.count, tt.limit); got != tt.want {
			t.Errorf("StatusFor(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}

func TestStatsWorkbook(t *testing.T) {
	counters := []store.DailyCounter{
		{Date: "2025-03-09", GroupID: "-100", UserName: "Ali", Count: 4,
			LastUpdated: time.Date(2025, 3, 9, 18, 45, 0, 0, time.UTC)},
		{Date: "2025-03-09", GroupID: "-200", UserName: "Vali", Count: 1},
	}
	groups := []store.Group{
		{ChatID: "-100", Name: "Birinchi guruh", Link: "https://t.me/g1", TrackedUserID: "777", DailyLimit: 4},
	}
	users := []store.User{
		{TelegramID: "777", Name: "Alisher", Link: "https://t.me/alisher"},
	}

	buf, err := StatsWorkbook(counters, groups, users)
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue("Statistika", ref)
		if err != nil {
			t.Fatalf("cell %s: %v", ref, err)
		}
		return v
	}

	if got := cell("A1"); got != "Guruh" {
		t.Fatalf("header A1: %q", got)
	}
	if got := cell("A2"); got != "Birinchi guruh" {
		t.Fatalf("group name: %q", got)
	}
	// User doc name wins over the counter snapshot.
	if got := cell("C2"); got != "Alisher" {
		t.Fatalf("user name: %q", got)
	}
	if got := cell("G2"); got != StatusDone {
		t.Fatalf("status row 2: %q", got)
	}

	// Unknown group: placeholder name, fallback limit of 4, 1/4 not started.
	if got := cell("A3"); got != "Noma'lum" {
		t.Fatalf("unknown group name: %q", got)
	}
	if got := cell("F3"); got != "4" {
		t.Fatalf("fallback limit: %q", got)
	}
	if got := cell("G3"); got != StatusNotStarted {
		t.Fatalf("status row 3: %q", got)
	}
}
