package store

import (
	"math"
	"time"

	"dispatch/models"
)

// Report aggregates a team's chat activity over a date range. Durations
// are reported in minutes because that is the resolution the dashboard
// renders.
type Report struct {
	Totals   Totals          `json:"totals"`
	Timeline []TimelinePoint `json:"timeline"`
	Hourly   [24]int         `json:"hourly"`

	// Percent change in conversation volume against the previous
	// period of equal length. Nil when the previous period was empty.
	Comparison *int `json:"comparison,omitempty"`

	AvgFirstReplyMinutes float64 `json:"avgFirstReply"`
	AvgResolutionMinutes float64 `json:"avgResolutionTime"`
}

type Totals struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// TimelinePoint is one day's session counts in the requested timezone.
type TimelinePoint struct {
	Date   string `json:"date"`
	Total  int    `json:"total"`
	Closed int    `json:"closed"`
}

// Analytics builds the report for the last rangeDays days. Bucketing
// uses the caller's timezone so day boundaries match what the agent
// sees on their calendar.
func (s *Store) Analytics(teamID string, rangeDays int, loc *time.Location) (*Report, error) {
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(rangeDays - 1))

	var sessions []models.Session
	err := s.DB.Where("team_id = ? AND created_at >= ?", teamID, start).
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	report := &Report{
		Timeline: make([]TimelinePoint, rangeDays),
	}
	dayIndex := make(map[string]int, rangeDays)
	for i := 0; i < rangeDays; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		report.Timeline[i].Date = day
		dayIndex[day] = i
	}

	sessionIDs := make([]string, 0, len(sessions))
	createdAt := make(map[string]time.Time, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
		createdAt[session.ID] = session.CreatedAt

		report.Totals.Total++
		if session.Status == models.SessionClosed {
			report.Totals.Closed++
		} else {
			report.Totals.Open++
		}

		day := session.CreatedAt.In(loc).Format("2006-01-02")
		if i, ok := dayIndex[day]; ok {
			report.Timeline[i].Total++
			if session.Status == models.SessionClosed {
				report.Timeline[i].Closed++
			}
		}

		if session.ClosedAt != nil {
			report.AvgResolutionMinutes += session.ClosedAt.Sub(session.CreatedAt).Minutes()
		}
	}
	if report.Totals.Closed > 0 {
		report.AvgResolutionMinutes /= float64(report.Totals.Closed)
	}

	var previous int64
	err = s.DB.Model(&models.Session{}).
		Where("team_id = ? AND created_at >= ? AND created_at < ?",
			teamID, start.AddDate(0, 0, -rangeDays), start).
		Count(&previous).Error
	if err != nil {
		return nil, err
	}
	if previous > 0 {
		change := int(math.Round(float64(report.Totals.Total-int(previous)) / float64(previous) * 100))
		report.Comparison = &change
	}

	if len(sessionIDs) == 0 {
		return report, nil
	}

	var messages []models.Message
	err = s.DB.Where("session_id IN ?", sessionIDs).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	firstReply := make(map[string]time.Time)
	for _, msg := range messages {
		report.Hourly[msg.CreatedAt.In(loc).Hour()]++

		if msg.SenderID != nil {
			if _, seen := firstReply[msg.SessionID]; !seen {
				firstReply[msg.SessionID] = msg.CreatedAt
			}
		}
	}

	if len(firstReply) > 0 {
		var total float64
		for sessionID, replied := range firstReply {
			total += replied.Sub(createdAt[sessionID]).Minutes()
		}
		report.AvgFirstReplyMinutes = total / float64(len(firstReply))
	}
	return report, nil
}
