package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
)

// Actor is the authenticated principal for a request. Handlers never take an
// actor id from the request body; they read it from context.
type Actor struct {
	ID   primitive.ObjectID
	Name string
}

// ActorSource confirms that an id names an active user.
type ActorSource interface {
	ActiveActor(ctx context.Context, id primitive.ObjectID) (Actor, error)
}

// ErrUnknownActor is returned by ActorSource implementations for missing or
// disabled users.
var ErrUnknownActor = errors.New("unknown or inactive user")

type ctxKey string

const currentActorKey ctxKey = "currentActor"

// SessionManager resolves the actor from a bearer token or a session cookie.
type SessionManager struct {
	store     *sessions.CookieStore
	name      string
	jwtSecret []byte
	jwtIssuer string
	source    ActorSource
	log       *zap.Logger
}

// NewSessionManager builds the cookie store. Bearer tokens are disabled until
// WithBearer is called.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "alumnihub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	// Secure cookies may cross sites; plain http dev stays on Lax.
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// WithBearer enables HS256 bearer tokens signed with secret.
func (sm *SessionManager) WithBearer(secret, issuer string) *SessionManager {
	sm.jwtSecret = []byte(secret)
	sm.jwtIssuer = issuer
	return sm
}

// WithSource makes LoadActor confirm every resolved id against the user store.
func (sm *SessionManager) WithSource(src ActorSource) *SessionManager {
	sm.source = src
	return sm
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-actor helpers                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// CurrentActor returns the actor and a found flag.
func CurrentActor(r *http.Request) (Actor, bool) {
	return ActorFromContext(r.Context())
}

// ActorFromContext is CurrentActor for code that only holds a context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(currentActorKey).(Actor)
	return a, ok
}

// WithActor injects an actor directly, bypassing cookies and tokens.
func WithActor(r *http.Request, a Actor) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentActorKey, a))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadActor injects the actor into context when the request carries a valid
// bearer token or session. Invalid credentials leave the request anonymous.
func (sm *SessionManager) LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := sm.bearerSubject(r)
		if !ok {
			id, ok = sm.sessionSubject(r)
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		a := Actor{ID: id}
		if sm.source != nil {
			resolved, err := sm.source.ActiveActor(r.Context(), id)
			if err != nil {
				if !errors.Is(err, ErrUnknownActor) {
					sm.log.Warn("actor lookup failed", zap.String("user_id", id.Hex()), zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			a = resolved
		}
		next.ServeHTTP(w, WithActor(r, a))
	})
}

// RequireActor rejects anonymous requests with a JSON 401.
func (sm *SessionManager) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentActor(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "unauthorized",
			"message": "sign in required",
		})
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Credentials                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// SignIn records the actor in the session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = id.Hex()
	return sess.Save(r, w)
}

// SignOut clears the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// IssueToken signs a bearer token whose subject is the user id.
func (sm *SessionManager) IssueToken(id primitive.ObjectID, ttl time.Duration) (string, error) {
	if len(sm.jwtSecret) == 0 {
		return "", errors.New("bearer tokens are not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   id.Hex(),
		Issuer:    sm.jwtIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.jwtSecret)
}

func (sm *SessionManager) bearerSubject(r *http.Request) (primitive.ObjectID, bool) {
	if len(sm.jwtSecret) == 0 {
		return primitive.NilObjectID, false
	}
	h := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(h, "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return primitive.NilObjectID, false
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if sm.jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(sm.jwtIssuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return sm.jwtSecret, nil
	}, opts...)
	if err != nil {
		sm.log.Debug("bearer token rejected", zap.Error(err))
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func (sm *SessionManager) sessionSubject(r *http.Request) (primitive.ObjectID, bool) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return primitive.NilObjectID, false
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return primitive.NilObjectID, false
	}
	hex, _ := sess.Values[userIDKey].(string)
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
