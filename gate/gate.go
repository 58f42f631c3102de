// Package gate resolves caller credentials into identities. Every
// request that touches a session or a workspace goes through here
// first; nothing downstream looks at raw tokens.
package gate

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"dispatch/models"
)

// Actor kinds
const (
	ActorAgent   = "agent"
	ActorVisitor = "visitor"
)

var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrNoAccess        = errors.New("you do not have access to this workspace")
	ErrSessionNotFound = errors.New("session not found")
)

// Identity is the resolved caller. Kind selects which field group is
// meaningful: agents carry UserID/UserName, visitors carry SessionID.
// TeamID is set for both.
type Identity struct {
	Kind string

	UserID   uint
	UserName string

	SessionID string

	TeamID string
}

// IsAgent reports whether the identity belongs to an authenticated agent.
func (id *Identity) IsAgent() bool {
	return id.Kind == ActorAgent
}

// ResolveUser authenticates an opaque bearer token and returns its
// user. Expired tokens are purged on sight so the table never serves
// a stale credential twice.
func ResolveUser(db *gorm.DB, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var authToken models.AuthToken
	err := db.Preload("User").
		Where("token = ? AND purpose = ?", token, models.TokenAuth).
		First(&authToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if authToken.Expired(time.Now()) {
		db.Delete(&authToken)
		return nil, ErrInvalidToken
	}

	return &authToken.User, nil
}

// ResolveAgent authenticates a token and checks membership of the
// given team. The returned identity is what the store trusts for
// agent-side operations.
func ResolveAgent(db *gorm.DB, token, teamID string) (*Identity, error) {
	user, err := ResolveUser(db, token)
	if err != nil {
		return nil, err
	}

	var membership models.TeamMember
	err = db.Where("team_id = ? AND user_id = ?", teamID, user.ID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoAccess
		}
		return nil, err
	}

	return &Identity{
		Kind:     ActorAgent,
		UserID:   user.ID,
		UserName: user.Name,
		TeamID:   teamID,
	}, nil
}

// ResolveVisitor authenticates the (session id, session token) pair. A
// wrong token and a missing session are indistinguishable to the
// caller on purpose.
func ResolveVisitor(db *gorm.DB, sessionID, token string) (*Identity, error) {
	if sessionID == "" || token == "" {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := db.Where("id = ? AND token = ?", sessionID, token).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &Identity{
		Kind:      ActorVisitor,
		SessionID: session.ID,
		TeamID:    session.TeamID,
	}, nil
}
