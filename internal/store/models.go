package store

import "time"

// All external identifiers (Telegram chat ids, user ids) are canonical
// strings at this boundary. No numeric coercion happens inside the core.

// Group is a registered Telegram group whose video activity is tracked.
type Group struct {
	ChatID string `json:"chatId" bson:"_id"`
	Name   string `json:"name" bson:"name"`
	Link   string `json:"link,omitempty" bson:"link,omitempty"`
	// TrackedUserID is the single user whose videos count toward the
	// group's daily total. Empty means every sender counts.
	TrackedUserID string `json:"trackedUserId,omitempty" bson:"trackedUserId,omitempty"`
	// DailyLimit overrides the global default; 0 means unset.
	DailyLimit int  `json:"dailyLimit,omitempty" bson:"dailyLimit,omitempty"`
	IsActive   bool `json:"isActive" bson:"isActive"`
	// Days holds ISO weekdays (1=Mon..7=Sun) and Times "HH:MM" strings for
	// the group's reminder schedule.
	Days      []int     `json:"days,omitempty" bson:"days,omitempty"`
	Times     []string  `json:"times,omitempty" bson:"times,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// User is a tracked Telegram user (independent of group lifecycle).
type User struct {
	TelegramID string `json:"telegramId" bson:"_id"`
	Name       string `json:"name" bson:"name"`
	Link       string `json:"link,omitempty" bson:"link,omitempty"`
	// DailyLimit overrides group and global limits; 0 means unset.
	DailyLimit int       `json:"dailyLimit,omitempty" bson:"dailyLimit,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// DailyCounter accumulates qualifying video events for one group on one day.
// Exactly one document exists per (date, group); it is created lazily on the
// first qualifying event and never deleted.
type DailyCounter struct {
	Date     string `json:"date" bson:"date"` // "YYYY-MM-DD"
	GroupID  string `json:"groupId" bson:"groupId"`
	UserID   string `json:"userId" bson:"userId"`
	UserName string `json:"userName" bson:"userName"`
	Count    int64  `json:"count" bson:"count"`
	// LastUpdated is the timestamp of the latest increment.
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

// Schedule is the legacy standalone reminder: a user pinged at fixed times
// every day, with no weekday filter.
type Schedule struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	UserName  string    `json:"userName" bson:"userName"`
	Times     []string  `json:"times" bson:"times"` // "HH:MM"
	IsActive  bool      `json:"isActive" bson:"isActive"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Broadcast is an admin-configured message delivered to a recipient list,
// either once ever (IsOneTime) or on a recurring day/time schedule.
type Broadcast struct {
	ID        string   `json:"id" bson:"_id"`
	Name      string   `json:"name,omitempty" bson:"name,omitempty"`
	UserIDs   []string `json:"userIds" bson:"userIds"`
	Message   string   `json:"message" bson:"message"`
	IsActive  bool     `json:"isActive" bson:"isActive"`
	IsOneTime bool     `json:"isOneTime" bson:"isOneTime"`
	// Days/ScheduledTime apply to recurring broadcasts only.
	Days          []int  `json:"days,omitempty" bson:"days,omitempty"`
	ScheduledTime string `json:"scheduledTime,omitempty" bson:"scheduledTime,omitempty"` // "HH:MM"
	// LastSentDate is the dedup watermark: "already sent today" for
	// recurring broadcasts, "already sent ever" for one-time ones (it is
	// set once and never cleared).
	LastSentDate string `json:"lastSentDate,omitempty" bson:"lastSentDate,omitempty"`
	// AttachExport appends the stats export link to the message when a
	// public base URL is configured.
	AttachExport bool      `json:"attachExport,omitempty" bson:"attachExport,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Settings is the single global settings document.
type Settings struct {
	DefaultDailyLimit int    `json:"defaultDailyLimit" bson:"defaultDailyLimit"`
	Timezone          string `json:"timezone,omitempty" bson:"timezone,omitempty"`
}
