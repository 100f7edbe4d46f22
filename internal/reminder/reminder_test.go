package reminder

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/clock"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

// Monday 2025-03-10 09:00 UTC.
var monday9 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type recordedSend struct {
	to, text, mode string
}

type fakeSender struct {
	mu    sync.Mutex
	sends []recordedSend
	fail  map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, to, text, mode string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, recordedSend{to, text, mode})
	return !f.fail[to]
}

func (f *fakeSender) sentTo(to string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sends {
		if s.to == to {
			n++
		}
	}
	return n
}

func newService(t *testing.T, cfg Config, at time.Time) (*Service, *store.Memory, *fakeSender) {
	t.Helper()
	mem := store.NewMemory()
	fs := &fakeSender{fail: map[string]bool{}}
	svc := New(cfg, mem, clock.NewAt(0, at), fs, logx.Nop())
	return svc, mem, fs
}

func TestGroupReminderMatch(t *testing.T) {
	ctx := context.Background()
	svc, mem, fs := newService(t, Config{}, monday9)

	_ = mem.PutGroup(ctx, store.Group{
		ChatID: "-100", Name: "Guruh A", TrackedUserID: "777",
		IsActive: true, Days: []int{1, 3}, Times: []string{"09:00", "18:00"},
	})
	// Same times but Monday missing from days.
	_ = mem.PutGroup(ctx, store.Group{
		ChatID: "-200", Name: "Guruh B", TrackedUserID: "888",
		IsActive: true, Days: []int{2}, Times: []string{"09:00"},
	})
	// Day matches but not the minute.
	_ = mem.PutGroup(ctx, store.Group{
		ChatID: "-300", Name: "Guruh C", TrackedUserID: "999",
		IsActive: true, Days: []int{1}, Times: []string{"09:01"},
	})
	// Matching but inactive.
	_ = mem.PutGroup(ctx, store.Group{
		ChatID: "-400", Name: "Guruh D", TrackedUserID: "555",
		IsActive: false, Days: []int{1}, Times: []string{"09:00"},
	})
	_ = mem.PutUser(ctx, store.User{TelegramID: "777", Name: "Alisher"})

	svc.Tick(ctx)

	if len(fs.sends) != 1 {
		t.Fatalf("want 1 send, got %d: %+v", len(fs.sends), fs.sends)
	}
	got := fs.sends[0]
	if got.to != "777" {
		t.Fatalf("recipient: %q", got.to)
	}
	if !strings.Contains(got.text, "Alisher ustoz") {
		t.Fatalf("user doc name must win: %q", got.text)
	}
	if got.mode != "" {
		t.Fatalf("reminders are plain text, got mode %q", got.mode)
	}
}

func TestGroupReminderFallsBackToGroupName(t *testing.T) {
	ctx := context.Background()
	svc, mem, fs := newService(t, Config{}, monday9)
	_ = mem.PutGroup(ctx, store.Group{
		ChatID: "-100", Name: "Guruh A", TrackedUserID: "777",
		IsActive: true, Days: []int{1}, Times: []string{"09:00"},
	})

	svc.Tick(ctx)

	if len(fs.sends) != 1 || !strings.Contains(fs.sends[0].text, "Guruh A ustoz") {
		t.Fatalf("sends: %+v", fs.sends)
	}
}

func TestLegacyScheduleMatch(t *testing.T) {
	ctx := context.Background()
	svc, mem, fs := newService(t, Config{}, monday9)
	_ = mem.PutSchedule(ctx, store.Schedule{
		ID: "s1", UserID: "777", UserName: "Vali", Times: []string{"09:00"}, IsActive: true,
	})
	_ = mem.PutSchedule(ctx, store.Schedule{
		ID: "s2", UserID: "888", UserName: "G'ani", Times: []string{"09:00"}, IsActive: false,
	})

	svc.Tick(ctx)

	if fs.sentTo("777") != 1 || fs.sentTo("888") != 0 {
		t.Fatalf("sends: %+v", fs.sends)
	}
}

func TestOneTimeBroadcastFiresOnceEver(t *testing.T) {
	ctx := context.Background()
	svc, mem, fs := newService(t, Config{}, monday9)
	// Day and time deliberately off: one-time ignores both.
	_ = mem.PutBroadcast(ctx, store.Broadcast{
		ID: "b1", UserIDs: []string{"1", "2"}, Message: "salom",
		IsActive: true, IsOneTime: true, Days: []int{5}, ScheduledTime: "23:59",
	})

	svc.Tick(ctx)
	if fs.sentTo("1") != 1 || fs.sentTo("2") != 1 {
		t.Fatalf("first tick sends: %+v", fs.sends)
	}
	b, _ := mem.GetBroadcast(ctx, "b1")
	if b.LastSentDate != "2025-03-10" {
		t.Fatalf("watermark: %q", b.LastSentDate)
	}

	svc.Tick(ctx)
	if len(fs.sends) != 2 {
		t.Fatalf("one-time resent: %+v", fs.sends)
	}
}

func TestRecurringBroadcastDedup(t *testing.T) {
	ctx := context.Background()
	svc, mem, fs := newService(t, Config{}, monday9)
	_ = mem.PutBroadcast(ctx, store.Broadcast{
		ID: "b1", UserIDs: []string{"1"}, Message: "haftalik",
		IsActive: true, Days: []int{1}, ScheduledTime: "09:00",
	})

	svc.Tick(ctx)
	svc.Tick(ctx)
	if fs.sentTo("1") != 1 {
		t.Fatalf("same-day duplicate: %+v", fs.sends)
	}

	// A week later the watermark no longer blocks it.
	next := New(Config{}, mem, clock.NewAt(0, monday9.AddDate(0, 0, 7)), fs, logx.Nop())
	next.Tick(ctx)
	if fs.sentTo("1") != 2 {
		t.Fatalf("next week send missing: %+v", fs.sends)
	}
}

func TestRecurringBroadcastRequiresDayAndTime(t *testing.T) {
	ctx := context.Background()
	svc, mem, fs := newService(t, Config{}, monday9)
	_ = mem.PutBroadcast(ctx, store.Broadcast{
		ID: "b1", UserIDs: []string{"1"}, Message: "x",
		IsActive: true, Days: []int{2}, ScheduledTime: "09:00",
	})
	_ = mem.PutBroadcast(ctx, store.Broadcast{
		ID: "b2", UserIDs: []string{"2"}, Message: "x",
		IsActive: true, Days: []int{1}, ScheduledTime: "09:30",
	})
	_ = mem.PutBroadcast(ctx, store.Broadcast{
		ID: "b3", UserIDs: []string{"3"}, Message: "x",
		IsActive: false, Days: []int{1}, ScheduledTime: "09:00",
	})

	svc.Tick(ctx)
	if len(fs.sends) != 0 {
		t.Fatalf("nothing was due: %+v", fs.sends)
	}
}

func TestBroadcastPartialFailureSingleWatermark(t *testing.T) {
	ctx := context.Background()
	svc, mem, fs := newService(t, Config{}, monday9)
	fs.fail["2"] = true
	_ = mem.PutBroadcast(ctx, store.Broadcast{
		ID: "b1", UserIDs: []string{"1", "2", "3"}, Message: "salom",
		IsActive: true, Days: []int{1}, ScheduledTime: "09:00",
	})

	svc.Tick(ctx)

	// Every recipient is attempted despite the middle failure.
	for _, to := range []string{"1", "2", "3"} {
		if fs.sentTo(to) != 1 {
			t.Fatalf("recipient %s attempts: %d", to, fs.sentTo(to))
		}
	}
	b, _ := mem.GetBroadcast(ctx, "b1")
	if b.LastSentDate != "2025-03-10" {
		t.Fatalf("watermark after partial failure: %q", b.LastSentDate)
	}
	svc.Tick(ctx)
	if len(fs.sends) != 3 {
		t.Fatalf("partial failure must not retrigger: %+v", fs.sends)
	}
}

func TestBroadcastExportLink(t *testing.T) {
	ctx := context.Background()

	t.Run("appended for public base url", func(t *testing.T) {
		svc, mem, fs := newService(t, Config{BaseURL: "https://bot.example.com/"}, monday9)
		_ = mem.PutBroadcast(ctx, store.Broadcast{
			ID: "b1", UserIDs: []string{"1"}, Message: "hisobot",
			IsActive: true, IsOneTime: true, AttachExport: true,
		})
		svc.Tick(ctx)
		if len(fs.sends) != 1 || !strings.Contains(fs.sends[0].text, "https://bot.example.com/api/export/excel") {
			t.Fatalf("sends: %+v", fs.sends)
		}
	})

	t.Run("suppressed for localhost", func(t *testing.T) {
		svc, mem, fs := newService(t, Config{BaseURL: "http://localhost:3000"}, monday9)
		_ = mem.PutBroadcast(ctx, store.Broadcast{
			ID: "b1", UserIDs: []string{"1"}, Message: "hisobot",
			IsActive: true, IsOneTime: true, AttachExport: true,
		})
		svc.Tick(ctx)
		if len(fs.sends) != 1 || fs.sends[0].text != "hisobot" {
			t.Fatalf("sends: %+v", fs.sends)
		}
	})
}

func TestExportLink(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"http://localhost:3000", ""},
		{"http://127.0.0.1", ""},
		{"not a url", ""},
		{"https://bot.example.com", "https://bot.example.com/api/export/excel"},
		{"https://bot.example.com/", "https://bot.example.com/api/export/excel"},
	}
	for _, tt := range tests {
		if got := exportLink(tt.base); got != tt.want {
			t.Errorf("exportLink(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

type blockingSender struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingSender) Send(ctx context.Context, to, text, mode string) bool {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}
	<-b.release
	return true
}

func TestTickOverlapSkipped(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.PutSchedule(ctx, store.Schedule{
		ID: "s1", UserID: "777", UserName: "Ali", Times: []string{"09:00"}, IsActive: true,
	})
	bs := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	svc := New(Config{}, mem, clock.NewAt(0, monday9), bs, logx.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Tick(ctx)
	}()
	<-bs.started

	// Second tick arrives while the first is mid-send.
	svc.Tick(ctx)

	close(bs.release)
	wg.Wait()

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.calls != 1 {
		t.Fatalf("overlapping tick ran: %d sends", bs.calls)
	}
}
