package worker

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"dispatch/config"
	"dispatch/models"
	"dispatch/utils"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSweep(t *testing.T) {
	db := setupDB(t)

	user := models.User{Name: "Dana", Email: "dana@example.com", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	team := models.Team{ID: "team1", Name: "Support"}
	if err := db.Create(&team).Error; err != nil {
		t.Fatalf("create team: %v", err)
	}

	tokens := []models.AuthToken{
		{Token: "live-auth", UserID: user.ID, Purpose: models.TokenAuth},
		{Token: "live-reset", UserID: user.ID, Purpose: models.TokenReset, ExpiresAt: utils.Pointer(time.Now().Add(time.Hour))},
		{Token: "dead-reset", UserID: user.ID, Purpose: models.TokenReset, ExpiresAt: utils.Pointer(time.Now().Add(-time.Hour))},
	}
	for _, token := range tokens {
		if err := db.Create(&token).Error; err != nil {
			t.Fatalf("create token: %v", err)
		}
	}

	invites := []models.Invite{
		{ID: "inv1", Token: "a", TeamID: "team1", Email: "x@example.com", ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "inv2", Token: "b", TeamID: "team1", Email: "y@example.com", ExpiresAt: time.Now().Add(-time.Hour)},
	}
	for _, invite := range invites {
		if err := db.Create(&invite).Error; err != nil {
			t.Fatalf("create invite: %v", err)
		}
	}

	cw := NewCleanupWorker(db, log.New(io.Discard, "", 0))
	cw.Sweep()

	var remaining []models.AuthToken
	db.Find(&remaining)
	if len(remaining) != 2 {
		t.Errorf("tokens left = %d, want 2", len(remaining))
	}
	for _, token := range remaining {
		if token.Token == "dead-reset" {
			t.Error("expired reset token survived the sweep")
		}
	}

	var inviteCount int64
	db.Model(&models.Invite{}).Count(&inviteCount)
	if inviteCount != 1 {
		t.Errorf("invites left = %d, want 1", inviteCount)
	}
}
