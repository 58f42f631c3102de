package routes

import (
	"io"
	"log"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"dispatch/config"
	"dispatch/realtime"
	"dispatch/store"
)

func TestHealthEndpoint(t *testing.T) {
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

	hub := realtime.NewHub(log.New(io.Discard, "", 0))
	st := store.New(db, hub, log.New(io.Discard, "", 0))

	app := fiber.New()
	SetupRoutes(app, db, hub, st)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	// No second status route; anything unregistered falls through to 404
	resp, err = app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("root status = %d, want 404", resp.StatusCode)
	}
}
