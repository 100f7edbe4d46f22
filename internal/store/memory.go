package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a map-backed Store used by tests and local development.
type Memory struct {
	mu         sync.Mutex
	groups     map[string]Group
	users      map[string]User
	schedules  map[string]Schedule
	broadcasts map[string]Broadcast
	counters   map[string]DailyCounter
	settings   *Settings
}

func NewMemory() *Memory {
	return &Memory{
		groups:     map[string]Group{},
		users:      map[string]User{},
		schedules:  map[string]Schedule{},
		broadcasts: map[string]Broadcast{},
		counters:   map[string]DailyCounter{},
	}
}

func (m *Memory) Close(ctx context.Context) error { return nil }

func counterKey(date, groupID string) string { return date + "/" + groupID }

func (m *Memory) PutGroup(ctx context.Context, g Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ChatID] = g
	return nil
}

func (m *Memory) GetGroup(ctx context.Context, chatID string) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[chatID]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (m *Memory) DeleteGroup(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[chatID]; !ok {
		return ErrNotFound
	}
	delete(m.groups, chatID)
	return nil
}

func (m *Memory) ListGroups(ctx context.Context) ([]Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (m *Memory) PutUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.TelegramID] = u
	return nil
}

func (m *Memory) GetUser(ctx context.Context, telegramID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[telegramID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) DeleteUser(ctx context.Context, telegramID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[telegramID]; !ok {
		return ErrNotFound
	}
	delete(m.users, telegramID)
	return nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out, nil
}

func (m *Memory) PutSchedule(ctx context.Context, sc Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[sc.ID] = sc
	return nil
}

func (m *Memory) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.schedules[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return sc, nil
}

func (m *Memory) DeleteSchedule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *Memory) ListSchedules(ctx context.Context) ([]Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Schedule, 0, len(m.schedules))
	for _, sc := range m.schedules {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutBroadcast(ctx context.Context, b Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts[b.ID] = b
	return nil
}

func (m *Memory) GetBroadcast(ctx context.Context, id string) (Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok {
		return Broadcast{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) DeleteBroadcast(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.broadcasts[id]; !ok {
		return ErrNotFound
	}
	delete(m.broadcasts, id)
	return nil
}

func (m *Memory) ListBroadcasts(ctx context.Context) ([]Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Broadcast, 0, len(m.broadcasts))
	for _, b := range m.broadcasts {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetBroadcastLastSent(ctx context.Context, id, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok {
		return ErrNotFound
	}
	b.LastSentDate = date
	m.broadcasts[id] = b
	return nil
}

func (m *Memory) GetSettings(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return Settings{}, ErrNotFound
	}
	return *m.settings, nil
}

func (m *Memory) PutSettings(ctx context.Context, set Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &set
	return nil
}

func (m *Memory) IncrementCounter(ctx context.Context, date, groupID, userID, userName string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := counterKey(date, groupID)
	c, ok := m.counters[key]
	if !ok {
		c = DailyCounter{Date: date, GroupID: groupID}
	}
	c.Count++
	c.UserID = userID
	c.UserName = userName
	c.LastUpdated = now
	m.counters[key] = c
	return c.Count, nil
}

func (m *Memory) GetCounter(ctx context.Context, date, groupID string) (DailyCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[counterKey(date, groupID)]
	if !ok {
		return DailyCounter{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListCounters(ctx context.Context, date string) ([]DailyCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []DailyCounter{}
	for _, c := range m.counters {
		if c.Date == date {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}
