package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg config.StorageConfig, log logx.Logger) (Store, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers anyway; a single connection keeps
	// the UPSERT increment free of SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("sqlite ready", logx.String("path", cfg.Path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

// ---- groups ----

func (s *sqliteStore) PutGroup(ctx context.Context, g Group) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups(chat_id, name, link, tracked_user_id, daily_limit, is_active, days, times, created_at)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name=excluded.name, link=excluded.link, tracked_user_id=excluded.tracked_user_id,
			daily_limit=excluded.daily_limit, is_active=excluded.is_active,
			days=excluded.days, times=excluded.times, created_at=excluded.created_at`,
		g.ChatID, g.Name, g.Link, g.TrackedUserID, g.DailyLimit, boolInt(g.IsActive),
		jsonText(g.Days), jsonText(g.Times), timeText(g.CreatedAt))
	return err
}

func (s *sqliteStore) GetGroup(ctx context.Context, chatID string) (Group, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chat_id, name, link, tracked_user_id, daily_limit, is_active, days, times, created_at
		FROM groups WHERE chat_id = ?`, chatID)
	return scanGroup(row)
}

func (s *sqliteStore) DeleteGroup(ctx context.Context, chatID string) error {
	return s.deleteOne(ctx, `DELETE FROM groups WHERE chat_id = ?`, chatID)
}

func (s *sqliteStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, name, link, tracked_user_id, daily_limit, is_active, days, times, created_at
		FROM groups ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGroup(row scanner) (Group, error) {
	var (
		g           Group
		active      int
		days, times string
		created     string
	)
	err := row.Scan(&g.ChatID, &g.Name, &g.Link, &g.TrackedUserID, &g.DailyLimit, &active, &days, &times, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, err
	}
	g.IsActive = active != 0
	if err := json.Unmarshal([]byte(days), &g.Days); err != nil {
		return Group{}, err
	}
	if err := json.Unmarshal([]byte(times), &g.Times); err != nil {
		return Group{}, err
	}
	g.CreatedAt = parseTimeText(created)
	return g, nil
}

// ---- users ----

func (s *sqliteStore) PutUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users(telegram_id, name, link, daily_limit, created_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			name=excluded.name, link=excluded.link,
			daily_limit=excluded.daily_limit, created_at=excluded.created_at`,
		u.TelegramID, u.Name, u.Link, u.DailyLimit, timeText(u.CreatedAt))
	return err
}

func (s *sqliteStore) GetUser(ctx context.Context, telegramID string) (User, error) {
	var (
		u       User
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, name, link, daily_limit, created_at FROM users WHERE telegram_id = ?`,
		telegramID).Scan(&u.TelegramID, &u.Name, &u.Link, &u.DailyLimit, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTimeText(created)
	return u, nil
}

func (s *sqliteStore) DeleteUser(ctx context.Context, telegramID string) error {
	return s.deleteOne(ctx, `DELETE FROM users WHERE telegram_id = ?`, telegramID)
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT telegram_id, name, link, daily_limit, created_at FROM users ORDER BY telegram_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var (
			u       User
			created string
		)
		if err := rows.Scan(&u.TelegramID, &u.Name, &u.Link, &u.DailyLimit, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTimeText(created)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ---- schedules ----

func (s *sqliteStore) PutSchedule(ctx context.Context, sc Schedule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules(id, user_id, user_name, times, is_active, created_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			user_id=excluded.user_id, user_name=excluded.user_name,
			times=excluded.times, is_active=excluded.is_active, created_at=excluded.created_at`,
		sc.ID, sc.UserID, sc.UserName, jsonText(sc.Times), boolInt(sc.IsActive), timeText(sc.CreatedAt))
	return err
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, user_name, times, is_active, created_at FROM schedules WHERE id = ?`, id)
	return scanSchedule(row)
}

func (s *sqliteStore) DeleteSchedule(ctx context.Context, id string) error {
	return s.deleteOne(ctx, `DELETE FROM schedules WHERE id = ?`, id)
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_name, times, is_active, created_at FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanSchedule(row scanner) (Schedule, error) {
	var (
		sc      Schedule
		times   string
		active  int
		created string
	)
	err := row.Scan(&sc.ID, &sc.UserID, &sc.UserName, &times, &active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, ErrNotFound
	}
	if err != nil {
		return Schedule{}, err
	}
	if err := json.Unmarshal([]byte(times), &sc.Times); err != nil {
		return Schedule{}, err
	}
	sc.IsActive = active != 0
	sc.CreatedAt = parseTimeText(created)
	return sc, nil
}

// ---- broadcasts ----

func (s *sqliteStore) PutBroadcast(ctx context.Context, b Broadcast) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broadcasts(id, name, user_ids, message, is_active, is_one_time, days, scheduled_time, last_sent_date, attach_export, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, user_ids=excluded.user_ids, message=excluded.message,
			is_active=excluded.is_active, is_one_time=excluded.is_one_time, days=excluded.days,
			scheduled_time=excluded.scheduled_time, last_sent_date=excluded.last_sent_date,
			attach_export=excluded.attach_export, created_at=excluded.created_at`,
		b.ID, b.Name, jsonText(b.UserIDs), b.Message, boolInt(b.IsActive), boolInt(b.IsOneTime),
		jsonText(b.Days), b.ScheduledTime, b.LastSentDate, boolInt(b.AttachExport), timeText(b.CreatedAt))
	return err
}

func (s *sqliteStore) GetBroadcast(ctx context.Context, id string) (Broadcast, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, user_ids, message, is_active, is_one_time, days, scheduled_time, last_sent_date, attach_export, created_at
		FROM broadcasts WHERE id = ?`, id)
	return scanBroadcast(row)
}

func (s *sqliteStore) DeleteBroadcast(ctx context.Context, id string) error {
	return s.deleteOne(ctx, `DELETE FROM broadcasts WHERE id = ?`, id)
}

func (s *sqliteStore) ListBroadcasts(ctx context.Context) ([]Broadcast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, user_ids, message, is_active, is_one_time, days, scheduled_time, last_sent_date, attach_export, created_at
		FROM broadcasts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Broadcast{}
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBroadcast(row scanner) (Broadcast, error) {
	var (
		b               Broadcast
		userIDs, days   string
		active, oneTime int
		attach          int
		created         string
	)
	err := row.Scan(&b.ID, &b.Name, &userIDs, &b.Message, &active, &oneTime, &days,
		&b.ScheduledTime, &b.LastSentDate, &attach, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Broadcast{}, ErrNotFound
	}
	if err != nil {
		return Broadcast{}, err
	}
	if err := json.Unmarshal([]byte(userIDs), &b.UserIDs); err != nil {
		return Broadcast{}, err
	}
	if err := json.Unmarshal([]byte(days), &b.Days); err != nil {
		return Broadcast{}, err
	}
	b.IsActive = active != 0
	b.IsOneTime = oneTime != 0
	b.AttachExport = attach != 0
	b.CreatedAt = parseTimeText(created)
	return b, nil
}

func (s *sqliteStore) SetBroadcastLastSent(ctx context.Context, id, date string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE broadcasts SET last_sent_date = ? WHERE id = ?`, date, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- settings ----

func (s *sqliteStore) GetSettings(ctx context.Context) (Settings, error) {
	var set Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT default_daily_limit, timezone FROM settings WHERE id = 'global'`).
		Scan(&set.DefaultDailyLimit, &set.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	return set, err
}

func (s *sqliteStore) PutSettings(ctx context.Context, set Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings(id, default_daily_limit, timezone) VALUES('global',?,?)
		ON CONFLICT(id) DO UPDATE SET
			default_daily_limit=excluded.default_daily_limit, timezone=excluded.timezone`,
		set.DefaultDailyLimit, set.Timezone)
	return err
}

// ---- counters ----

func (s *sqliteStore) IncrementCounter(ctx context.Context, date, groupID, userID, userName string, now time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stats(date, group_id, user_id, user_name, count, last_updated)
		VALUES(?,?,?,?,1,?)
		ON CONFLICT(date, group_id) DO UPDATE SET
			count = count + 1,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			last_updated = excluded.last_updated
		RETURNING count`,
		date, groupID, userID, userName, timeText(now)).Scan(&count)
	return count, err
}

func (s *sqliteStore) GetCounter(ctx context.Context, date, groupID string) (DailyCounter, error) {
	var (
		c       DailyCounter
		updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT date, group_id, user_id, user_name, count, last_updated
		FROM stats WHERE date = ? AND group_id = ?`, date, groupID).
		Scan(&c.Date, &c.GroupID, &c.UserID, &c.UserName, &c.Count, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return DailyCounter{}, ErrNotFound
	}
	if err != nil {
		return DailyCounter{}, err
	}
	c.LastUpdated = parseTimeText(updated)
	return c, nil
}

func (s *sqliteStore) ListCounters(ctx context.Context, date string) ([]DailyCounter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, group_id, user_id, user_name, count, last_updated
		FROM stats WHERE date = ? ORDER BY group_id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DailyCounter{}
	for rows.Next() {
		var (
			c       DailyCounter
			updated string
		)
		if err := rows.Scan(&c.Date, &c.GroupID, &c.UserID, &c.UserName, &c.Count, &updated); err != nil {
			return nil, err
		}
		c.LastUpdated = parseTimeText(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- helpers ----

type scanner interface {
	Scan(dest ...any) error
}

func (s *sqliteStore) deleteOne(ctx context.Context, query string, arg any) error {
	res, err := s.db.ExecContext(ctx, query, arg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeText(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
