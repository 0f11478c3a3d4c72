package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCredentials = errors.New("username and password are required")
	ErrInvalidToken       = errors.New("invalid session token")
)

const issuer = "practice-judge"

type claims struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	JoinedAt int64  `json:"joined_at"`
	jwt.RegisteredClaims
}

// Manager logs users in and converts sessions to and from bearer tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a token manager. With an empty secret a random one is
// generated, so tokens do not survive a restart.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	key := []byte(secret)
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
		key = []byte(hex.EncodeToString(buf))
		log.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: key, ttl: ttl, now: time.Now}, nil
}

// returningJoinDate is the join date reported for every returning user,
// since accounts are not persisted.
var returningJoinDate = time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)

// Login accepts any non-empty username and password.
func (m *Manager) Login(username, password string) (Session, error) {
	s, err := m.Register(username, "", password)
	if err != nil {
		return s, err
	}
	s.JoinedAt = returningJoinDate
	return s, nil
}

// Register creates a session for a new user joining now.
func (m *Manager) Register(username, email, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Anonymous(), ErrInvalidCredentials
	}
	return Session{
		UserID:        UserID(username),
		Username:      username,
		Email:         strings.TrimSpace(email),
		JoinedAt:      m.now().UTC().Truncate(time.Second),
		Authenticated: true,
	}, nil
}

// Issue signs s into a bearer token.
func (m *Manager) Issue(s Session) (string, error) {
	if !Authorized(s) {
		return "", fmt.Errorf("%w: session is not authenticated", ErrInvalidToken)
	}
	now := m.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: s.Username,
		Email:    s.Email,
		JoinedAt: s.JoinedAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	return tok.SignedString(m.secret)
}

// Parse verifies a bearer token and returns the session it carries.
func (m *Manager) Parse(token string) (Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Anonymous(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Anonymous(), fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Session{
		UserID:        c.Subject,
		Username:      c.Username,
		Email:         c.Email,
		JoinedAt:      time.Unix(c.JoinedAt, 0).UTC(),
		Authenticated: true,
	}, nil
}
