package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"portal-api/internal/infrastructure/auth"
	"portal-api/internal/infrastructure/session"
	"portal-api/internal/utils/idgen"
	"portal-api/internal/utils/platformerrors"
)

const (
	// SessionCookieName carries the server-side session id.
	SessionCookieName = "portal_sid"
	// AuthCookieName carries the signed auth token.
	AuthCookieName = "portal_auth"

	principalContextKey = "principal"
)

// CookieSettings controls the attributes of the identity cookies.
type CookieSettings struct {
	Secure     bool
	SessionTTL time.Duration
}

// Identity resolves the caller on every request and owns the identity cookies.
type Identity struct {
	resolver *auth.Resolver
	cookies  CookieSettings
	log      zerolog.Logger
}

// NewIdentity wires the identity middleware.
func NewIdentity(resolver *auth.Resolver, cookies CookieSettings, log zerolog.Logger) *Identity {
	return &Identity{
		resolver: resolver,
		cookies:  cookies,
		log:      log.With().Str("component", "identity").Logger(),
	}
}

// Middleware resolves the principal and stores it on the gin context. It never
// rejects a request for bad credentials.
func (i *Identity) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, _ := c.Cookie(SessionCookieName)
		token, _ := c.Cookie(AuthCookieName)

		principal, err := i.resolver.Resolve(c.Request.Context(), sessionID, token)
		if err != nil {
			platformerrors.WriteError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "session store unavailable", err), i.log)
			return
		}
		if principal.HasSession && principal.SessionID != sessionID {
			i.setSessionCookie(c, principal.SessionID)
		}
		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the resolved principal; anonymous when the
// identity middleware did not run.
func PrincipalFromContext(c *gin.Context) auth.Principal {
	if val, ok := c.Get(principalContextKey); ok {
		if p, ok := val.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}

// UpdateSession applies mutate to the caller's session record and saves it,
// creating the session when the caller has none.
func (i *Identity) UpdateSession(c *gin.Context, mutate func(rec *session.Record)) (auth.Principal, error) {
	p := PrincipalFromContext(c)
	if !p.HasSession {
		id, err := idgen.SessionID()
		if err != nil {
			return auth.Principal{}, err
		}
		p.SessionID = id
		p.Session = session.Record{}
	}
	return i.save(c, p, mutate)
}

// SignIn binds userID to a fresh session id and sets the auth cookie. Chat
// state of the previous session is carried over.
func (i *Identity) SignIn(c *gin.Context, userID int64) error {
	ctx := c.Request.Context()
	token, expiresAt, err := i.resolver.Tokens().Issue(userID)
	if err != nil {
		return err
	}

	previous := PrincipalFromContext(c)
	freshID, err := idgen.SessionID()
	if err != nil {
		return err
	}
	next := auth.Principal{SessionID: freshID, Session: previous.Session}
	if _, err := i.save(c, next, func(rec *session.Record) { rec.UserID = &userID }); err != nil {
		return err
	}
	if previous.HasSession {
		if err := i.resolver.Sessions().Delete(ctx, previous.SessionID); err != nil {
			i.log.Warn().Err(err).Msg("failed to drop previous session")
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AuthCookieName, token, maxAge(time.Until(expiresAt)), "/", "", i.cookies.Secure, true)
	return nil
}

// SignOut destroys the session and clears both cookies.
func (i *Identity) SignOut(c *gin.Context) error {
	p := PrincipalFromContext(c)
	if p.HasSession {
		if err := i.resolver.Sessions().Delete(c.Request.Context(), p.SessionID); err != nil {
			return err
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", i.cookies.Secure, true)
	c.SetCookie(AuthCookieName, "", -1, "/", "", i.cookies.Secure, true)
	c.Set(principalContextKey, auth.Principal{})
	return nil
}

func (i *Identity) save(c *gin.Context, p auth.Principal, mutate func(rec *session.Record)) (auth.Principal, error) {
	rec := p.Session
	mutate(&rec)
	saved, err := i.resolver.Sessions().Save(c.Request.Context(), p.SessionID, rec)
	if err != nil {
		return auth.Principal{}, err
	}
	p.Session = saved
	p.HasSession = true
	p.UserID = saved.UserID
	c.Set(principalContextKey, p)
	i.setSessionCookie(c, p.SessionID)
	return p, nil
}

func (i *Identity) setSessionCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, id, maxAge(i.cookies.SessionTTL), "/", "", i.cookies.Secure, true)
}

func maxAge(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
