// Package export renders daily statistics as an xlsx workbook.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
)

const sheetName = "Statistika"

// fallbackLimit applies to rows whose group carries no limit of its own.
const fallbackLimit = 4

// Status labels shown in the workbook.
const (
	StatusDone       = "Tugallangan"
	StatusInProgress = "Jarayonda"
	StatusNotStarted = "Boshlanmagan"
)

var headers = []string{
	"Guruh", "Guruh Link", "Hodim", "Hodim Link",
	"Videolar", "Limit", "Status", "Oxirgi yangilanish",
}

var colWidths = []float64{25, 35, 25, 35, 12, 10, 15, 20}

// StatusFor classifies a count against a limit.
func StatusFor(count int64, limit int) string {
	switch {
	case count >= int64(limit):
		return StatusDone
	case count > 0 && float64(count) >= float64(limit)/2:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// StatsWorkbook builds the statistics sheet: one row per counter, joined
// with the group and its tracked user.
func StatsWorkbook(counters []store.DailyCounter, groups []store.Group, users []store.User) (*bytes.Buffer, error) {
	groupByID := make(map[string]store.Group, len(groups))
	for _, g := range groups {
		groupByID[g.ChatID] = g
	}
	userByID := make(map[string]store.User, len(users))
	for _, u := range users {
		userByID[u.TelegramID] = u
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4A90D9"}},
	})
	if err != nil {
		return nil, err
	}
	statusStyles := map[string]int{}
	for label, color := range map[string]string{
		StatusDone:       "28A745",
		StatusInProgress: "FFC107",
		StatusNotStarted: "6C757D",
	} {
		id, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: color},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return nil, err
		}
		statusStyles[label] = id
	}
	linkStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "0066CC", Underline: "single"},
	})
	if err != nil {
		return nil, err
	}

	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &row); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", "H1", headerStyle); err != nil {
		return nil, err
	}

	for i, c := range counters {
		g, hasGroup := groupByID[c.GroupID]
		u, hasUser := userByID[g.TrackedUserID]

		limit := g.DailyLimit
		if limit <= 0 {
			limit = fallbackLimit
		}
		status := StatusFor(c.Count, limit)

		groupName := "Noma'lum"
		if hasGroup && g.Name != "" {
			groupName = g.Name
		}
		userName := c.UserName
		if hasUser && u.Name != "" {
			userName = u.Name
		}
		if userName == "" {
			userName = "-"
		}
		lastUpdated := "-"
		if !c.LastUpdated.IsZero() {
			lastUpdated = c.LastUpdated.Format("02.01.2006, 15:04:05")
		}

		n := i + 2
		cells := []any{
			groupName, orDash(g.Link), userName, orDash(u.Link),
			c.Count, limit, status, lastUpdated,
		}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", n), &cells); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("G%d", n), fmt.Sprintf("G%d", n), statusStyles[status]); err != nil {
			return nil, err
		}
		if g.Link != "" {
			if err := f.SetCellStyle(sheetName, fmt.Sprintf("B%d", n), fmt.Sprintf("B%d", n), linkStyle); err != nil {
				return nil, err
			}
		}
		if u.Link != "" {
			if err := f.SetCellStyle(sheetName, fmt.Sprintf("D%d", n), fmt.Sprintf("D%d", n), linkStyle); err != nil {
				return nil, err
			}
		}
	}

	return f.WriteToBuffer()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
