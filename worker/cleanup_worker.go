package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"dispatch/models"
)

// CleanupWorker periodically removes expired credentials and
// invitations. Lookups already treat expired rows as absent; the
// sweep only keeps the tables from growing without bound.
type CleanupWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCleanupWorker(db *gorm.DB, logger *log.Logger) *CleanupWorker {
	return &CleanupWorker{
		DB:     db,
		Logger: logger,
	}
}

func (cw *CleanupWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	cw.Logger.Println("Cleanup worker started")

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Println("Cleanup worker shutting down...")
			return
		case <-ticker.C:
			cw.Sweep()
		}
	}
}

// Sweep deletes everything past its expiry.
func (cw *CleanupWorker) Sweep() {
	now := time.Now()

	res := cw.DB.Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.AuthToken{})
	if res.Error != nil {
		cw.Logger.Printf("Error sweeping expired tokens: %v", res.Error)
	} else if res.RowsAffected > 0 {
		cw.Logger.Printf("Removed %d expired tokens", res.RowsAffected)
	}

	res = cw.DB.Where("expires_at < ?", now).Delete(&models.Invite{})
	if res.Error != nil {
		cw.Logger.Printf("Error sweeping expired invites: %v", res.Error)
	} else if res.RowsAffected > 0 {
		cw.Logger.Printf("Removed %d expired invites", res.RowsAffected)
	}
}
