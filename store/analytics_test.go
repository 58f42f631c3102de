package store

import (
	"testing"
	"time"

	"dispatch/models"
)

func TestAnalyticsReport(t *testing.T) {
	st, _ := setupStore(t)
	seedTeam(t, st.DB, "team1")
	seedTeam(t, st.DB, "team2")

	open, _ := st.CreateSession("team1")
	closed, _ := st.CreateSession("team1")
	foreign, _ := st.CreateSession("team2")

	visitor := visitorIdentity(open.ID, "team1")
	if _, err := st.AppendMessage(visitor, open.ID, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := st.AppendMessage(agentIdentity("team1"), open.ID, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := st.SetStatus(closed.ID, models.SessionClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	report, err := st.Analytics("team1", 7, time.UTC)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}

	if report.Totals.Total != 2 || report.Totals.Open != 1 || report.Totals.Closed != 1 {
		t.Errorf("totals = %+v, want 2 total / 1 open / 1 closed", report.Totals)
	}
	if len(report.Timeline) != 7 {
		t.Fatalf("timeline length = %d, want 7", len(report.Timeline))
	}

	today := report.Timeline[len(report.Timeline)-1]
	if today.Total != 2 || today.Closed != 1 {
		t.Errorf("today = %+v, want 2 total / 1 closed", today)
	}

	var hourly int
	for _, n := range report.Hourly {
		hourly += n
	}
	if hourly != 2 {
		t.Errorf("hourly messages = %d, want 2", hourly)
	}

	// Sessions of other teams never count
	_ = foreign
	other, err := st.Analytics("team2", 7, time.UTC)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if other.Totals.Total != 1 || other.Totals.Open != 1 || other.Totals.Closed != 0 {
		t.Errorf("team2 totals = %+v, want 1 open / 0 closed", other.Totals)
	}
}

func TestAnalyticsComparison(t *testing.T) {
	st, _ := setupStore(t)
	seedTeam(t, st.DB, "team1")

	// One session this period, none the period before
	if _, err := st.CreateSession("team1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	report, err := st.Analytics("team1", 7, time.UTC)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if report.Comparison != nil {
		t.Errorf("comparison = %d, want nil with empty previous period", *report.Comparison)
	}

	// Backdate a session into the previous period
	session, err := st.CreateSession("team1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	backdated := time.Now().UTC().AddDate(0, 0, -8)
	err = st.DB.Model(&models.Session{}).
		Where("id = ?", session.ID).
		Update("created_at", backdated).Error
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}

	report, err = st.Analytics("team1", 7, time.UTC)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if report.Comparison == nil {
		t.Fatal("comparison missing with a non-empty previous period")
	}
	// 1 session now vs 1 before
	if *report.Comparison != 0 {
		t.Errorf("comparison = %d, want 0", *report.Comparison)
	}
}
