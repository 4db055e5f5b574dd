package session

import (
	"context"
	"net/http"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/utils"
	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
)

// CookieName carries the signed session token.
const CookieName = "storyline_session"

// Session is a loaded server-side session.
type Session struct {
	ID string
	Data
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}

func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Role == string(models.RoleAdmin)
}

// VerifyCSRF compares a submitted token with the session's token in constant time.
func (s *Session) VerifyCSRF(token string) bool {
	if s == nil {
		return false
	}
	return utils.TokensEqual(s.CSRF, token)
}

// Manager issues, loads and destroys sessions. The cookie holds an HS256 JWT
// naming the session id; the session itself lives in Redis.
type Manager struct {
	store  *RedisStore
	secret string
	ttl    time.Duration
	secure bool
}

func NewManager(store *RedisStore, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:  store,
		secret: secret,
		ttl:    ttl,
		secure: secure,
	}
}

// Load resolves the session named by the request cookie. Missing, forged,
// expired or evicted sessions yield nil without an error.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	claims, err := utils.ValidateSessionToken(cookie.Value, m.secret)
	if err != nil {
		logger.Log.Debug("Rejected session cookie", zap.Error(err))
		return nil, nil
	}

	data, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return &Session{ID: claims.SessionID, Data: *data}, nil
}

// Start opens an anonymous session and writes its cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter) (*Session, error) {
	return m.create(ctx, w, 0, "")
}

// Rotate replaces old (which may be nil) with a fresh session bound to the
// user. The id and CSRF token both change.
func (m *Manager) Rotate(ctx context.Context, w http.ResponseWriter, old *Session, userID uint, role models.Role) (*Session, error) {
	if old != nil {
		if err := m.store.Delete(ctx, old.ID); err != nil {
			logger.Log.Warn("Failed to drop previous session", zap.Error(err))
		}
	}
	return m.create(ctx, w, userID, role)
}

// Destroy removes the session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if s == nil {
		return nil
	}
	return m.store.Delete(ctx, s.ID)
}

func (m *Manager) create(ctx context.Context, w http.ResponseWriter, userID uint, role models.Role) (*Session, error) {
	id, err := utils.RandomHex(32)
	if err != nil {
		return nil, err
	}
	csrf, err := utils.RandomHex(16)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID: id,
		Data: Data{
			UserID:    userID,
			Role:      string(role),
			CSRF:      csrf,
			CreatedAt: time.Now().UTC(),
		},
	}
	if err := m.store.Save(ctx, id, &s.Data, m.ttl); err != nil {
		return nil, err
	}

	token, err := utils.GenerateSessionToken(id, m.secret, m.ttl)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}
