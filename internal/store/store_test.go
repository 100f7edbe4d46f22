package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sl, err := openSQLite(ctx, config.StorageConfig{
		Path: filepath.Join(t.TempDir(), "bot.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sl.Close(ctx) })

	return map[string]Store{
		"sqlite": sl,
		"memory": NewMemory(),
	}
}

func TestGroupCRUD(t *testing.T) {
	ctx := context.Background()
	for name, s := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetGroup(ctx, "-100"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get missing: want ErrNotFound, got %v", err)
			}

			g := Group{
				ChatID:        "-1001234567890",
				Name:          "Test guruh",
				TrackedUserID: "777",
				DailyLimit:    4,
				IsActive:      true,
				Days:          []int{1, 3, 5},
				Times:         []string{"09:00", "18:30"},
				CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			}
			if err := s.PutGroup(ctx, g); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := s.GetGroup(ctx, g.ChatID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Name != g.Name || got.TrackedUserID != g.TrackedUserID || got.DailyLimit != 4 || !got.IsActive {
				t.Fatalf("round trip mismatch: %+v", got)
			}
			if len(got.Days) != 3 || got.Days[1] != 3 {
				t.Fatalf("days mismatch: %v", got.Days)
			}
			if len(got.Times) != 2 || got.Times[1] != "18:30" {
				t.Fatalf("times mismatch: %v", got.Times)
			}

			g.IsActive = false
			if err := s.PutGroup(ctx, g); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, _ = s.GetGroup(ctx, g.ChatID)
			if got.IsActive {
				t.Fatal("update did not stick")
			}

			list, err := s.ListGroups(ctx)
			if err != nil || len(list) != 1 {
				t.Fatalf("list: %v, n=%d", err, len(list))
			}

			if err := s.DeleteGroup(ctx, g.ChatID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.DeleteGroup(ctx, g.ChatID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("delete missing: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestIncrementCounter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	for name, s := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			for want := int64(1); want <= 3; want++ {
				got, err := s.IncrementCounter(ctx, "2025-03-09", "-100", "777", "Ali", now)
				if err != nil {
					t.Fatalf("increment %d: %v", want, err)
				}
				if got != want {
					t.Fatalf("increment: want %d, got %d", want, got)
				}
			}

			// A different date starts its own row.
			got, err := s.IncrementCounter(ctx, "2025-03-10", "-100", "777", "Ali", now)
			if err != nil || got != 1 {
				t.Fatalf("new date: want 1, got %d (%v)", got, err)
			}

			c, err := s.GetCounter(ctx, "2025-03-09", "-100")
			if err != nil {
				t.Fatalf("get counter: %v", err)
			}
			if c.Count != 3 || c.UserName != "Ali" {
				t.Fatalf("counter state: %+v", c)
			}

			list, err := s.ListCounters(ctx, "2025-03-09")
			if err != nil || len(list) != 1 {
				t.Fatalf("list counters: %v, n=%d", err, len(list))
			}
		})
	}
}

func TestIncrementCounterConcurrent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	for name, s := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 16
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.IncrementCounter(ctx, "2025-04-01", "-200", "777", "Ali", now); err != nil {
						t.Errorf("increment: %v", err)
					}
				}()
			}
			wg.Wait()

			c, err := s.GetCounter(ctx, "2025-04-01", "-200")
			if err != nil {
				t.Fatalf("get counter: %v", err)
			}
			if c.Count != workers {
				t.Fatalf("lost updates: want %d, got %d", workers, c.Count)
			}
		})
	}
}

func TestBroadcastLastSent(t *testing.T) {
	ctx := context.Background()
	for name, s := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			b := Broadcast{
				ID:            "b1",
				Name:          "Haftalik xabar",
				UserIDs:       []string{"1", "2"},
				Message:       "salom",
				IsActive:      true,
				Days:          []int{1},
				ScheduledTime: "09:00",
			}
			if err := s.PutBroadcast(ctx, b); err != nil {
				t.Fatalf("put: %v", err)
			}

			if err := s.SetBroadcastLastSent(ctx, "b1", "2025-03-09"); err != nil {
				t.Fatalf("set last sent: %v", err)
			}
			got, err := s.GetBroadcast(ctx, "b1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.LastSentDate != "2025-03-09" {
				t.Fatalf("last sent: got %q", got.LastSentDate)
			}
			if len(got.UserIDs) != 2 || got.UserIDs[0] != "1" {
				t.Fatalf("user ids mismatch: %v", got.UserIDs)
			}

			if err := s.SetBroadcastLastSent(ctx, "nope", "2025-03-09"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing broadcast: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetSettings(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("empty settings: want ErrNotFound, got %v", err)
			}
			if err := s.PutSettings(ctx, Settings{DefaultDailyLimit: 7, Timezone: "UTC+5"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := s.GetSettings(ctx)
			if err != nil || got.DefaultDailyLimit != 7 || got.Timezone != "UTC+5" {
				t.Fatalf("round trip: %+v (%v)", got, err)
			}
			// Upsert overwrites in place.
			if err := s.PutSettings(ctx, Settings{DefaultDailyLimit: 10, Timezone: "UTC"}); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = s.GetSettings(ctx)
			if got.DefaultDailyLimit != 10 {
				t.Fatalf("overwrite did not stick: %+v", got)
			}
		})
	}
}

func TestUserAndScheduleCRUD(t *testing.T) {
	ctx := context.Background()
	for name, s := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			u := User{TelegramID: "777", Name: "Ali", DailyLimit: 5, CreatedAt: time.Now().UTC()}
			if err := s.PutUser(ctx, u); err != nil {
				t.Fatalf("put user: %v", err)
			}
			got, err := s.GetUser(ctx, "777")
			if err != nil || got.Name != "Ali" || got.DailyLimit != 5 {
				t.Fatalf("get user: %+v (%v)", got, err)
			}

			sc := Schedule{ID: "s1", UserID: "777", UserName: "Ali", Times: []string{"08:00"}, IsActive: true}
			if err := s.PutSchedule(ctx, sc); err != nil {
				t.Fatalf("put schedule: %v", err)
			}
			scs, err := s.ListSchedules(ctx)
			if err != nil || len(scs) != 1 || scs[0].Times[0] != "08:00" {
				t.Fatalf("list schedules: %v (%v)", scs, err)
			}
			if err := s.DeleteSchedule(ctx, "s1"); err != nil {
				t.Fatalf("delete schedule: %v", err)
			}
			if _, err := s.GetSchedule(ctx, "s1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("deleted schedule: want ErrNotFound, got %v", err)
			}
		})
	}
}
