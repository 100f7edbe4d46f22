package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/export"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
)

// ---- groups ----

type groupCreate struct {
	ChatID        string   `json:"chatId" binding:"required"`
	Name          string   `json:"name"`
	Link          string   `json:"link"`
	TrackedUserID string   `json:"trackedUserId"`
	DailyLimit    int      `json:"dailyLimit"`
	Days          []int    `json:"days"`
	Times         []string `json:"times"`
}

type groupUpdate struct {
	Name          *string   `json:"name"`
	Link          *string   `json:"link"`
	TrackedUserID *string   `json:"trackedUserId"`
	DailyLimit    *int      `json:"dailyLimit"`
	IsActive      *bool     `json:"isActive"`
	Days          *[]int    `json:"days"`
	Times         *[]string `json:"times"`
}

func (s *Server) listGroups(c *gin.Context) {
	groups, err := s.store.ListGroups(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) createGroup(c *gin.Context) {
	var req groupCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g := store.Group{
		ChatID:        req.ChatID,
		Name:          req.Name,
		Link:          req.Link,
		TrackedUserID: req.TrackedUserID,
		DailyLimit:    req.DailyLimit,
		IsActive:      true,
		Days:          req.Days,
		Times:         req.Times,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.PutGroup(c.Request.Context(), g); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": g.ChatID})
}

func (s *Server) getGroup(c *gin.Context) {
	g, err := s.store.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) updateGroup(c *gin.Context) {
	var req groupUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	g, err := s.store.GetGroup(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.Name != nil {
		g.Name = *req.Name
	}
	if req.Link != nil {
		g.Link = *req.Link
	}
	if req.TrackedUserID != nil {
		g.TrackedUserID = *req.TrackedUserID
	}
	if req.DailyLimit != nil {
		g.DailyLimit = *req.DailyLimit
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}
	if req.Days != nil {
		g.Days = *req.Days
	}
	if req.Times != nil {
		g.Times = *req.Times
	}
	if err := s.store.PutGroup(ctx, g); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteGroup(c *gin.Context) {
	if err := s.store.DeleteGroup(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- users ----

type userCreate struct {
	TelegramID string `json:"telegramId" binding:"required"`
	Name       string `json:"name"`
	Link       string `json:"link"`
	DailyLimit int    `json:"dailyLimit"`
}

type userUpdate struct {
	Name       *string `json:"name"`
	Link       *string `json:"link"`
	DailyLimit *int    `json:"dailyLimit"`
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var req userCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u := store.User{
		TelegramID: req.TelegramID,
		Name:       req.Name,
		Link:       req.Link,
		DailyLimit: req.DailyLimit,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.store.PutUser(c.Request.Context(), u); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": u.TelegramID})
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) updateUser(c *gin.Context) {
	var req userUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	u, err := s.store.GetUser(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Link != nil {
		u.Link = *req.Link
	}
	if req.DailyLimit != nil {
		u.DailyLimit = *req.DailyLimit
	}
	if err := s.store.PutUser(ctx, u); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.store.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- schedules ----

type scheduleCreate struct {
	UserID   string   `json:"userId" binding:"required"`
	UserName string   `json:"userName"`
	Times    []string `json:"times"`
}

type scheduleUpdate struct {
	UserID   *string   `json:"userId"`
	UserName *string   `json:"userName"`
	Times    *[]string `json:"times"`
	IsActive *bool     `json:"isActive"`
}

func (s *Server) listSchedules(c *gin.Context) {
	schedules, err := s.store.ListSchedules(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

func (s *Server) createSchedule(c *gin.Context) {
	var req scheduleCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sc := store.Schedule{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		UserName:  req.UserName,
		Times:     req.Times,
		IsActive:  true,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.PutSchedule(c.Request.Context(), sc); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": sc.ID})
}

func (s *Server) getSchedule(c *gin.Context) {
	sc, err := s.store.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) updateSchedule(c *gin.Context) {
	var req scheduleUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	sc, err := s.store.GetSchedule(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.UserID != nil {
		sc.UserID = *req.UserID
	}
	if req.UserName != nil {
		sc.UserName = *req.UserName
	}
	if req.Times != nil {
		sc.Times = *req.Times
	}
	if req.IsActive != nil {
		sc.IsActive = *req.IsActive
	}
	if err := s.store.PutSchedule(ctx, sc); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteSchedule(c *gin.Context) {
	if err := s.store.DeleteSchedule(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- broadcasts ----

type broadcastCreate struct {
	Name          string   `json:"name"`
	UserIDs       []string `json:"userIds" binding:"required"`
	Message       string   `json:"message" binding:"required"`
	IsOneTime     bool     `json:"isOneTime"`
	Days          []int    `json:"days"`
	ScheduledTime string   `json:"scheduledTime"`
	AttachExport  bool     `json:"attachExport"`
}

type broadcastUpdate struct {
	Name          *string   `json:"name"`
	UserIDs       *[]string `json:"userIds"`
	Message       *string   `json:"message"`
	IsActive      *bool     `json:"isActive"`
	IsOneTime     *bool     `json:"isOneTime"`
	Days          *[]int    `json:"days"`
	ScheduledTime *string   `json:"scheduledTime"`
	AttachExport  *bool     `json:"attachExport"`
}

func (s *Server) listBroadcasts(c *gin.Context) {
	broadcasts, err := s.store.ListBroadcasts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, broadcasts)
}

func (s *Server) createBroadcast(c *gin.Context) {
	var req broadcastCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b := store.Broadcast{
		ID:            uuid.NewString(),
		Name:          req.Name,
		UserIDs:       req.UserIDs,
		Message:       req.Message,
		IsActive:      true,
		IsOneTime:     req.IsOneTime,
		Days:          req.Days,
		ScheduledTime: req.ScheduledTime,
		AttachExport:  req.AttachExport,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.PutBroadcast(c.Request.Context(), b); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": b.ID})
}

func (s *Server) getBroadcast(c *gin.Context) {
	b, err := s.store.GetBroadcast(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) updateBroadcast(c *gin.Context) {
	var req broadcastUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	b, err := s.store.GetBroadcast(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.UserIDs != nil {
		b.UserIDs = *req.UserIDs
	}
	if req.Message != nil {
		b.Message = *req.Message
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if req.IsOneTime != nil {
		b.IsOneTime = *req.IsOneTime
	}
	if req.Days != nil {
		b.Days = *req.Days
	}
	if req.ScheduledTime != nil {
		b.ScheduledTime = *req.ScheduledTime
	}
	if req.AttachExport != nil {
		b.AttachExport = *req.AttachExport
	}
	if err := s.store.PutBroadcast(ctx, b); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteBroadcast(c *gin.Context) {
	if err := s.store.DeleteBroadcast(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- stats ----

type statRow struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	store.DailyCounter
}

func (s *Server) statsToday(c *gin.Context) {
	s.renderStats(c, s.clock.Today())
}

func (s *Server) statsByDate(c *gin.Context) {
	s.renderStats(c, c.Param("date"))
}

func (s *Server) renderStats(c *gin.Context, date string) {
	ctx := c.Request.Context()
	counters, err := s.store.ListCounters(ctx, date)
	if err != nil {
		s.fail(c, err)
		return
	}
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	names := make(map[string]string, len(groups))
	for _, g := range groups {
		names[g.ChatID] = g.Name
	}

	rows := make([]statRow, 0, len(counters))
	for _, cnt := range counters {
		name := names[cnt.GroupID]
		if name == "" {
			name = "Unknown"
		}
		rows = append(rows, statRow{GroupID: cnt.GroupID, GroupName: name, DailyCounter: cnt})
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "stats": rows})
}

// ---- settings ----

func (s *Server) getSettings(c *gin.Context) {
	set, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		// Absent settings read as the documented defaults.
		set = store.Settings{DefaultDailyLimit: 10, Timezone: "UTC+5"}
	}
	c.JSON(http.StatusOK, set)
}

type settingsUpdate struct {
	DefaultDailyLimit *int    `json:"defaultDailyLimit"`
	Timezone          *string `json:"timezone"`
}

func (s *Server) putSettings(c *gin.Context) {
	var req settingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	set, err := s.store.GetSettings(ctx)
	if err != nil {
		set = store.Settings{DefaultDailyLimit: 10, Timezone: "UTC+5"}
	}
	if req.DefaultDailyLimit != nil {
		set.DefaultDailyLimit = *req.DefaultDailyLimit
	}
	if req.Timezone != nil {
		set.Timezone = *req.Timezone
	}
	if err := s.store.PutSettings(ctx, set); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- export ----

func (s *Server) exportExcel(c *gin.Context) {
	ctx := c.Request.Context()
	date := c.Query("date")
	if date == "" {
		date = s.clock.Today()
	}

	counters, err := s.store.ListCounters(ctx, date)
	if err != nil {
		s.fail(c, err)
		return
	}
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	buf, err := export.StatsWorkbook(counters, groups, users)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="statistika_`+date+`.xlsx"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
