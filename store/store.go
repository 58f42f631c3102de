// Package store is the single source of truth for chat sessions. Both
// the REST controllers and the realtime layer mutate sessions through
// it, so every write emits its events from exactly one place.
package store

import (
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"dispatch/gate"
	"dispatch/models"
	"dispatch/utils"
)

// Events emitted by session writes.
const (
	EventNewSession    = "new_session"
	EventNewMessage    = "new_message"
	EventSessionUpdate = "session_update"
	EventSessionDelete = "session_delete"
	EventMessagesRead  = "messages_read"
)

const maxMessageLength = 500

var (
	ErrTeamNotFound    = errors.New("chat is not set up for this workspace")
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyUpdated  = errors.New("session already updated")
	ErrSessionClosed   = errors.New("this conversation has been resolved")
	ErrBadContent      = errors.New("message must be between 1 and 500 characters")
	ErrBadStatus       = errors.New("status must be open or closed")
)

// Emitter delivers session events to connected clients. Emission is
// fire-and-forget: a failed delivery never rolls back a committed
// write.
type Emitter interface {
	BroadcastTeam(teamID, event string, data interface{})
	BroadcastVisitor(sessionID, event string, data interface{})
	DisconnectVisitor(sessionID string)
}

type Store struct {
	DB      *gorm.DB
	Emitter Emitter
	Logger  *log.Logger
}

func New(db *gorm.DB, emitter Emitter, logger *log.Logger) *Store {
	return &Store{
		DB:      db,
		Emitter: emitter,
		Logger:  logger,
	}
}

// CreateSession opens a fresh visitor session against a team. The
// returned session carries the visitor token; the broadcast copy does
// not.
func (s *Store) CreateSession(teamID string) (*models.Session, error) {
	var team models.Team
	if err := s.DB.First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	id, err := utils.GenerateID()
	if err != nil {
		return nil, err
	}
	token, err := utils.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	session := models.Session{
		ID:     id,
		Token:  token,
		TeamID: team.ID,
		Status: models.SessionOpen,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, err
	}

	utils.LogEvent("session_created", map[string]interface{}{
		"session_id": session.ID,
		"team_id":    team.ID,
	})
	s.Emitter.BroadcastTeam(team.ID, EventNewSession, session)
	return &session, nil
}

// ListSessions returns a team's sessions, newest first, each decorated
// with its latest message.
func (s *Store) ListSessions(teamID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.DB.Where("team_id = ?", teamID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]string, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}

	var messages []models.Message
	err = s.DB.Where("session_id IN ?", ids).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.Message, len(sessions))
	for _, msg := range messages {
		latest[msg.SessionID] = msg
	}
	for i := range sessions {
		if msg, ok := latest[sessions[i].ID]; ok {
			msg.AttachSender()
			sessions[i].LatestMessage = &msg
		}
	}
	return sessions, nil
}

// GetSession loads a session with its full transcript. Fetching doubles
// as a read receipt: messages from the other party are marked read and
// the other party is notified.
func (s *Store) GetSession(identity *gate.Identity, sessionID string) (*models.Session, error) {
	session, err := s.loadSession(identity, sessionID)
	if err != nil {
		return nil, err
	}

	err = s.DB.Where("session_id = ?", session.ID).
		Order("created_at ASC").
		Find(&session.Messages).Error
	if err != nil {
		return nil, err
	}

	if err := s.markRead(identity, session); err != nil {
		return nil, err
	}

	agent := identity.IsAgent()
	for i := range session.Messages {
		session.Messages[i].AttachSender()
		// Reflect the receipt we just recorded
		if agent == (session.Messages[i].SenderID == nil) {
			session.Messages[i].Read = true
		}
	}
	return session, nil
}

// AcknowledgeRead records that the caller has seen the other party's
// messages in a session. This is the realtime path for receipts on
// messages that arrived after the initial fetch.
func (s *Store) AcknowledgeRead(identity *gate.Identity, sessionID string) error {
	session, err := s.loadSession(identity, sessionID)
	if err != nil {
		return err
	}
	return s.markRead(identity, session)
}

// markRead flips the other party's unread messages and notifies them.
// Agents reading visitor messages tell the visitor; visitors reading
// agent messages tell the whole team.
func (s *Store) markRead(identity *gate.Identity, session *models.Session) error {
	query := s.DB.Model(&models.Message{}).
		Where("session_id = ? AND read = ?", session.ID, false)
	if identity.IsAgent() {
		query = query.Where("sender_id IS NULL")
	} else {
		query = query.Where("sender_id IS NOT NULL")
	}
	res := query.Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	// Nothing flipped, nothing to announce
	if res.RowsAffected == 0 {
		return nil
	}

	if identity.IsAgent() {
		s.Emitter.BroadcastVisitor(session.ID, EventMessagesRead, nil)
	} else {
		s.Emitter.BroadcastTeam(session.TeamID, EventMessagesRead, map[string]string{"id": session.ID})
	}
	return nil
}

// SetStatus transitions a session between open and closed. The update
// is conditional on the status actually changing, so two racing closes
// cannot both report success.
func (s *Store) SetStatus(sessionID, status string) (*models.Session, error) {
	if status != models.SessionOpen && status != models.SessionClosed {
		return nil, ErrBadStatus
	}

	updates := map[string]interface{}{
		"status":    status,
		"closed_at": nil,
	}
	if status == models.SessionClosed {
		updates["closed_at"] = time.Now()
	}

	res := s.DB.Model(&models.Session{}).
		Where("id = ? AND status <> ?", sessionID, status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyUpdated
	}

	utils.LogEvent("session_status", map[string]interface{}{
		"session_id": session.ID,
		"status":     status,
	})
	update := map[string]interface{}{
		"id":       session.ID,
		"status":   session.Status,
		"closedAt": session.ClosedAt,
	}
	s.Emitter.BroadcastTeam(session.TeamID, EventSessionUpdate, update)
	s.Emitter.BroadcastVisitor(session.ID, EventSessionUpdate, update)
	return &session, nil
}

// DeleteSession removes a session and its transcript, then kicks the
// visitor off the socket.
func (s *Store) DeleteSession(sessionID string) error {
	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", session.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
	if err != nil {
		return err
	}

	utils.LogEvent("session_deleted", map[string]interface{}{
		"session_id": session.ID,
		"team_id":    session.TeamID,
	})
	payload := map[string]string{"id": session.ID}
	s.Emitter.BroadcastTeam(session.TeamID, EventSessionDelete, payload)
	s.Emitter.BroadcastVisitor(session.ID, EventSessionDelete, payload)
	s.Emitter.DisconnectVisitor(session.ID)
	return nil
}

// AppendMessage adds a message to a session's transcript. Visitors
// cannot write to a closed session; agents can, which is what makes
// send-and-close work.
func (s *Store) AppendMessage(identity *gate.Identity, sessionID, content string) (*models.Message, error) {
	if n := utf8.RuneCountInString(content); n < 1 || n > maxMessageLength {
		return nil, ErrBadContent
	}

	session, err := s.loadSession(identity, sessionID)
	if err != nil {
		return nil, err
	}
	if !identity.IsAgent() && session.Status == models.SessionClosed {
		return nil, ErrSessionClosed
	}

	id, err := utils.GenerateID()
	if err != nil {
		return nil, err
	}

	message := models.Message{
		ID:        id,
		SessionID: session.ID,
		Content:   content,
	}
	if identity.IsAgent() {
		message.SenderID = utils.Pointer(identity.UserID)
		message.SenderName = utils.Pointer(identity.UserName)
	}

	if err := s.DB.Create(&message).Error; err != nil {
		return nil, err
	}
	message.AttachSender()

	s.Emitter.BroadcastTeam(session.TeamID, EventNewMessage, message)
	s.Emitter.BroadcastVisitor(session.ID, EventNewMessage, message)
	return &message, nil
}

// loadSession fetches a session and checks it against the caller's
// identity. Visitors only ever see their own session; agents only see
// sessions of the team their identity was resolved for.
func (s *Store) loadSession(identity *gate.Identity, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	switch identity.Kind {
	case gate.ActorVisitor:
		if identity.SessionID != session.ID {
			return nil, ErrSessionNotFound
		}
	case gate.ActorAgent:
		if identity.TeamID != session.TeamID {
			return nil, ErrSessionNotFound
		}
	}
	return &session, nil
}
