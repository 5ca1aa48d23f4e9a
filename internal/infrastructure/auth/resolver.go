package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"portal-api/internal/infrastructure/session"
	"portal-api/internal/utils/idgen"
)

// Principal is the caller as seen by one request.
type Principal struct {
	SessionID  string
	Session    session.Record
	HasSession bool
	UserID     *int64
}

// Authenticated reports whether a user id was resolved.
func (p Principal) Authenticated() bool {
	return p.UserID != nil
}

// Resolver turns the two request credentials into a Principal.
// The session is consulted first; the token only when the session carries no user.
type Resolver struct {
	sessions session.Store
	tokens   *Tokens
	log      zerolog.Logger
}

// NewResolver wires the resolver.
func NewResolver(sessions session.Store, tokens *Tokens, log zerolog.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		tokens:   tokens,
		log:      log.With().Str("component", "identity-resolver").Logger(),
	}
}

// Sessions exposes the underlying store.
func (r *Resolver) Sessions() session.Store {
	return r.sessions
}

// Tokens exposes the token signer.
func (r *Resolver) Tokens() *Tokens {
	return r.tokens
}

// Resolve never fails on bad credentials; they resolve to anonymous.
// A valid token without a session user backfills the session, creating one
// when none existed.
func (r *Resolver) Resolve(ctx context.Context, sessionID, token string) (Principal, error) {
	p := Principal{}

	if sessionID != "" {
		rec, err := r.sessions.Get(ctx, sessionID)
		switch {
		case err == nil:
			p.SessionID = sessionID
			p.Session = rec
			p.HasSession = true
		case errors.Is(err, session.ErrNotFound):
		default:
			return Principal{}, err
		}
	}

	if p.Session.UserID != nil {
		p.UserID = p.Session.UserID
		return p, nil
	}

	if token == "" {
		return p, nil
	}
	userID, err := r.tokens.Verify(token)
	if err != nil {
		r.log.Debug().Err(err).Msg("ignoring auth token")
		return p, nil
	}

	if !p.HasSession {
		if p.SessionID, err = idgen.SessionID(); err != nil {
			return Principal{}, err
		}
	}
	p.Session.UserID = &userID
	saved, err := r.sessions.Save(ctx, p.SessionID, p.Session)
	if err != nil {
		return Principal{}, err
	}
	p.Session = saved
	p.HasSession = true
	p.UserID = &userID
	return p, nil
}
