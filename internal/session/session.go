// Package session implements cookie sessions backed by Redis.
//
// A session is a pair of cookies. The access cookie carries a short-lived
// HS256 token naming the user and the session. The refresh cookie carries an
// opaque secret whose hash is stored next to the session record. Both Redis
// keys expire after SessionTTL and are pushed forward whenever the session is
// read (sliding expiry), so every successful read re-issues the cookies with
// new expiry attributes.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/me/folio/pkg/model"
	"github.com/redis/go-redis/v9"
)

const (
	// AccessCookieName holds the signed access token.
	AccessCookieName = "folio-access-token"
	// RefreshCookieName holds the opaque refresh secret.
	RefreshCookieName = "folio-refresh-token"

	keyPrefix = "folio:"

	// reuseWindow keeps a rotated refresh secret valid briefly so that
	// parallel requests carrying the old cookie are not logged out.
	reuseWindow = 10 * time.Second
)

// ErrMisconfigured wraps failures to obtain a backend client at all, as
// opposed to failures of an individual backend call.
var ErrMisconfigured = errors.New("session backend misconfigured")

// RedisSource hands out the backend client.
type RedisSource interface {
	Redis() (*redis.Client, error)
}

// Config controls token lifetimes and cookie attributes.
type Config struct {
	Key        []byte        // HMAC key for access tokens
	Issuer     string        // iss claim; defaults to "folio"
	AccessTTL  time.Duration // lifetime of an access token
	SessionTTL time.Duration // sliding lifetime of the session
	Secure     bool          // set the Secure cookie attribute
}

// Tokens is the credential pair issued for a session.
type Tokens struct {
	SessionID     string
	Access        string
	AccessExpiry  time.Time
	Refresh       string
	SessionExpiry time.Time
}

// record is the session as stored in Redis.
type record struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	RefreshHash string    `json:"refresh_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

type accessClaims struct {
	Email string `json:"email"`
	SID   string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager creates, reads, refreshes and revokes sessions.
type Manager struct {
	backend RedisSource
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a session manager. The key must be non-empty.
func NewManager(backend RedisSource, cfg Config, logger *slog.Logger) (*Manager, error) {
	if len(cfg.Key) == 0 {
		return nil, fmt.Errorf("%w: empty signing key", ErrMisconfigured)
	}
	if cfg.AccessTTL <= 0 || cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("%w: non-positive TTL", ErrMisconfigured)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "folio"
	}
	return &Manager{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With("component", "session"),
		now:     time.Now,
	}, nil
}

// Create starts a session for id and returns the tokens plus the cookies
// that carry them.
func (m *Manager) Create(ctx context.Context, id *model.Identity) (*Tokens, []*http.Cookie, error) {
	rdb, err := m.client()
	if err != nil {
		return nil, nil, err
	}

	refresh, err := newRefreshSecret()
	if err != nil {
		return nil, nil, fmt.Errorf("generate refresh secret: %w", err)
	}
	sid := uuid.New().String()
	rec := record{
		UserID:      id.UserID,
		Email:       id.Email,
		RefreshHash: hashSecret(refresh),
		CreatedAt:   m.now().UTC(),
	}
	if err := m.save(ctx, rdb, sid, rec); err != nil {
		return nil, nil, fmt.Errorf("store session: %w", err)
	}

	tokens, err := m.issue(sid, rec, refresh)
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("session created", "user_id", id.UserID, "session", sid)
	return tokens, m.cookies(tokens), nil
}

// GetUser resolves the identity carried by cookies. It may refresh the
// session as a side effect; the returned cookies must be written to the
// client whatever the outcome, including when the identity is nil.
//
// A nil identity with a nil error means the request is unauthenticated.
// An error means the backend could not be consulted.
func (m *Manager) GetUser(ctx context.Context, cookies []*http.Cookie) (*model.Identity, []*http.Cookie, error) {
	access := cookieValue(cookies, AccessCookieName)
	refresh := cookieValue(cookies, RefreshCookieName)
	if access == "" && refresh == "" {
		return nil, nil, nil
	}

	rdb, err := m.client()
	if err != nil {
		return nil, nil, err
	}

	if access != "" {
		claims, err := m.parseAccess(access)
		if err == nil {
			return m.touch(ctx, rdb, claims, refresh, access)
		}
		m.logger.Debug("access token rejected", "error", err)
	}

	if refresh == "" {
		return nil, m.ClearCookies(), nil
	}
	return m.rotate(ctx, rdb, refresh)
}

// Revoke ends the session named by cookies and returns cookies that clear
// the client's copy. Unknown or already-expired sessions are not an error.
func (m *Manager) Revoke(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error) {
	rdb, err := m.client()
	if err != nil {
		return m.ClearCookies(), err
	}

	var sid string
	if access := cookieValue(cookies, AccessCookieName); access != "" {
		if claims, err := m.parseAccess(access); err == nil {
			sid = claims.SID
		}
	}
	refresh := cookieValue(cookies, RefreshCookieName)
	if sid == "" && refresh != "" {
		sid, err = rdb.Get(ctx, refreshKey(hashSecret(refresh))).Result()
		if err != nil && err != redis.Nil {
			return m.ClearCookies(), fmt.Errorf("lookup refresh: %w", err)
		}
	}
	if sid == "" {
		return m.ClearCookies(), nil
	}

	rec, err := m.load(ctx, rdb, sid)
	if err != nil {
		return m.ClearCookies(), err
	}
	keys := []string{sessionKey(sid)}
	if rec != nil {
		keys = append(keys, refreshKey(rec.RefreshHash))
	}
	if refresh != "" {
		keys = append(keys, refreshKey(hashSecret(refresh)))
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return m.ClearCookies(), fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("session revoked", "session", sid)
	return m.ClearCookies(), nil
}

// ClearCookies returns cookies that delete both session cookies.
func (m *Manager) ClearCookies() []*http.Cookie {
	return []*http.Cookie{
		m.cookie(AccessCookieName, "", -1, time.Unix(0, 0)),
		m.cookie(RefreshCookieName, "", -1, time.Unix(0, 0)),
	}
}

// touch handles a request with a valid access token: the session must still
// exist, its TTL slides forward, and the cookies are re-issued.
func (m *Manager) touch(ctx context.Context, rdb *redis.Client, claims *accessClaims, refresh, access string) (*model.Identity, []*http.Cookie, error) {
	rec, err := m.load(ctx, rdb, claims.SID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil || rec.UserID != claims.Subject {
		// Revoked or expired server-side.
		return nil, m.ClearCookies(), nil
	}

	ttl := m.cfg.SessionTTL
	if _, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Expire(ctx, sessionKey(claims.SID), ttl)
		p.Expire(ctx, refreshKey(rec.RefreshHash), ttl)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("slide session: %w", err)
	}

	now := m.now()
	sessionExpiry := now.Add(ttl)
	var out []*http.Cookie

	accessExp := claims.ExpiresAt.Time
	if accessExp.Sub(now) < m.cfg.AccessTTL/2 {
		var err error
		access, accessExp, err = m.sign(claims.SID, *rec, now)
		if err != nil {
			return nil, nil, err
		}
	}
	out = append(out, m.cookie(AccessCookieName, access, int(accessExp.Sub(now).Seconds()), accessExp))
	if refresh != "" && hashSecret(refresh) == rec.RefreshHash {
		out = append(out, m.cookie(RefreshCookieName, refresh, int(ttl.Seconds()), sessionExpiry))
	}

	return &model.Identity{UserID: rec.UserID, Email: rec.Email}, out, nil
}

// rotate exchanges a refresh secret for a new token pair.
func (m *Manager) rotate(ctx context.Context, rdb *redis.Client, refresh string) (*model.Identity, []*http.Cookie, error) {
	oldHash := hashSecret(refresh)
	sid, err := rdb.Get(ctx, refreshKey(oldHash)).Result()
	if err == redis.Nil {
		return nil, m.ClearCookies(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup refresh: %w", err)
	}

	var (
		identity *model.Identity
		cookies  []*http.Cookie
	)
	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := m.load(ctx, tx, sid)
		if err != nil {
			return err
		}
		if rec == nil {
			cookies = m.ClearCookies()
			return nil
		}
		identity = &model.Identity{UserID: rec.UserID, Email: rec.Email}

		if rec.RefreshHash != oldHash {
			// Rotated by a concurrent request within the reuse window:
			// hand out an access token only.
			access, exp, err := m.sign(sid, *rec, m.now())
			if err != nil {
				return err
			}
			cookies = []*http.Cookie{m.cookie(AccessCookieName, access, int(exp.Sub(m.now()).Seconds()), exp)}
			return nil
		}

		next, err := newRefreshSecret()
		if err != nil {
			return fmt.Errorf("generate refresh secret: %w", err)
		}
		rec.RefreshHash = hashSecret(next)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		ttl := m.cfg.SessionTTL
		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, sessionKey(sid), data, ttl)
			p.Set(ctx, refreshKey(rec.RefreshHash), sid, ttl)
			p.Expire(ctx, refreshKey(oldHash), reuseWindow)
			return nil
		}); err != nil {
			return err
		}

		tokens, err := m.issue(sid, *rec, next)
		if err != nil {
			return err
		}
		cookies = m.cookies(tokens)
		return nil
	}, sessionKey(sid))
	if errors.Is(err, redis.TxFailedErr) {
		// Lost a race with another rotation; the caller's old secret is still
		// inside the reuse window, so it resolves on the next request.
		return nil, nil, fmt.Errorf("refresh contended: %w", err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("rotate refresh: %w", err)
	}
	if identity != nil {
		m.logger.Debug("session refreshed", "session", sid, "user_id", identity.UserID)
	}
	return identity, cookies, nil
}

func (m *Manager) client() (*redis.Client, error) {
	if m.backend == nil {
		return nil, fmt.Errorf("%w: no backend", ErrMisconfigured)
	}
	rdb, err := m.backend.Redis()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}
	return rdb, nil
}

func (m *Manager) save(ctx context.Context, rdb *redis.Client, sid string, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(sid), data, m.cfg.SessionTTL)
		p.Set(ctx, refreshKey(rec.RefreshHash), sid, m.cfg.SessionTTL)
		return nil
	})
	return err
}

func (m *Manager) load(ctx context.Context, c redis.Cmdable, sid string) (*record, error) {
	data, err := c.Get(ctx, sessionKey(sid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Warn("corrupt session record", "session", sid, "error", err)
		return nil, nil
	}
	return &rec, nil
}

func (m *Manager) issue(sid string, rec record, refresh string) (*Tokens, error) {
	now := m.now()
	access, exp, err := m.sign(sid, rec, now)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		SessionID:     sid,
		Access:        access,
		AccessExpiry:  exp,
		Refresh:       refresh,
		SessionExpiry: now.Add(m.cfg.SessionTTL),
	}, nil
}

func (m *Manager) sign(sid string, rec record, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.cfg.AccessTTL)
	claims := accessClaims{
		Email: rec.Email,
		SID:   sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   rec.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

func (m *Manager) parseAccess(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.cfg.Key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.SID == "" || claims.Subject == "" {
		return nil, errors.New("access token missing sid or sub")
	}
	return claims, nil
}

func (m *Manager) cookies(t *Tokens) []*http.Cookie {
	now := m.now()
	return []*http.Cookie{
		m.cookie(AccessCookieName, t.Access, int(t.AccessExpiry.Sub(now).Seconds()), t.AccessExpiry),
		m.cookie(RefreshCookieName, t.Refresh, int(t.SessionExpiry.Sub(now).Seconds()), t.SessionExpiry),
	}
}

func (m *Manager) cookie(name, value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
		Expires:  expires.UTC(),
	}
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func newRefreshSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashSecret(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sessionKey(sid string) string { return keyPrefix + "sess:" + sid }
func refreshKey(hash string) string { return keyPrefix + "refresh:" + hash }
