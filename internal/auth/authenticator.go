package auth

import (
	"context"
	"errors"
	"net/http"
	apperrors "otithi/pkg/errors"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"otithi/pkg/middleware"
	"otithi/pkg/model"
	"slices"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const DefaultCookieName = "otithi_session"

type principalKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Role      string
	Verified  bool
	SessionID string
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == model.RoleAdmin }
func (p *Principal) IsHost() bool  { return p != nil && p.Role == model.RoleHost }

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by a gate, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

type Authenticator struct {
	tokens       *TokenManager
	sessions     SessionStore
	cookieName   string
	cookieSecure bool
	clientKey    middleware.KeyExtractor
	log          *logger.Logger
}

func NewAuthenticator(tokens *TokenManager, sessions SessionStore, cookieName string, cookieSecure bool, log *logger.Logger) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Authenticator{
		tokens:       tokens,
		sessions:     sessions,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
		clientKey:    middleware.RemoteIP,
		log:          log,
	}
}

// WithClientKey sets how anonymous callers are keyed, e.g. by
// middleware.ClientIP behind a proxy.
func (a *Authenticator) WithClientKey(fn middleware.KeyExtractor) *Authenticator {
	if fn != nil {
		a.clientKey = fn
	}
	return a
}

func (a *Authenticator) Tokens() *TokenManager  { return a.tokens }
func (a *Authenticator) Sessions() SessionStore { return a.sessions }

// StartSession issues a token for user and registers its session.
func (a *Authenticator) StartSession(ctx context.Context, user *model.User) (*model.AuthResult, error) {
	token, claims, err := a.tokens.Issue(user.ID, user.Role, user.Verified)
	if err != nil {
		return nil, err
	}
	if err := a.sessions.Create(ctx, claims.SessionID, user.ID, a.tokens.TTL()); err != nil {
		return nil, err
	}
	return &model.AuthResult{
		User:      user,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (a *Authenticator) tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// Authenticate resolves the principal from the session cookie or a Bearer
// token. A missing credential yields a nil principal and a nil error.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	token := a.tokenFrom(r)
	if token == "" {
		return nil, nil
	}

	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}

	ok, err := a.sessions.Exists(r.Context(), claims.SessionID)
	if err != nil {
		a.log.Error("Failed to check session",
			"user_id", claims.UserID,
			"error", err,
		)
		return nil, apperrors.Unavailable("session store")
	}
	if !ok {
		return nil, apperrors.Unauthorized("Session has been revoked")
	}

	return &Principal{
		UserID:    claims.UserID,
		Role:      claims.Role,
		Verified:  claims.Verified,
		SessionID: claims.SessionID,
	}, nil
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusForbidden {
		a.log.Warn("Access denied",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFrom(r.Context()),
		)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		a.log.Error("failed to write error response", "handler", "auth", "operation", "WriteError", "error", writeErr)
	}
}

func (a *Authenticator) authenticated(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	p, err := a.Authenticate(r)
	if err != nil {
		a.reject(w, r, err)
		return nil, false
	}
	if p == nil {
		a.reject(w, r, apperrors.Unauthorized("Authentication required"))
		return nil, false
	}
	return p, true
}

func (a *Authenticator) Authenticated(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p, ok := a.authenticated(w, r)
		if !ok {
			return
		}
		h(w, r.WithContext(WithPrincipal(r.Context(), p)), ps)
	}
}

// RequireRole admits principals whose role is listed.
func (a *Authenticator) RequireRole(h httprouter.Handle, roles ...string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p, ok := a.authenticated(w, r)
		if !ok {
			return
		}
		if !slices.Contains(roles, p.Role) {
			a.reject(w, r, apperrors.Forbidden("Insufficient role for this action"))
			return
		}
		h(w, r.WithContext(WithPrincipal(r.Context(), p)), ps)
	}
}

// RequireVerifiedHost admits admins and verified hosts.
func (a *Authenticator) RequireVerifiedHost(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p, ok := a.authenticated(w, r)
		if !ok {
			return
		}
		switch {
		case p.IsAdmin():
		case p.IsHost() && p.Verified:
		case p.IsHost():
			a.reject(w, r, apperrors.Forbidden("Host account must be verified"))
			return
		default:
			a.reject(w, r, apperrors.Forbidden("Only hosts can perform this action"))
			return
		}
		h(w, r.WithContext(WithPrincipal(r.Context(), p)), ps)
	}
}

// Optional attaches the principal when a valid session is present and never
// rejects.
func (a *Authenticator) Optional(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if p, err := a.Authenticate(r); err == nil && p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		h(w, r, ps)
	}
}

func (a *Authenticator) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Authenticator) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RateLimitKey scopes rate limiting and idempotency to the user when the
// request carries a well-formed token, falling back to the client address.
// The session is not checked here.
func (a *Authenticator) RateLimitKey(r *http.Request) string {
	if token := a.tokenFrom(r); token != "" {
		if claims, err := a.tokens.Parse(token); err == nil {
			return "user:" + claims.UserID
		}
	}
	return a.clientKey(r)
}
