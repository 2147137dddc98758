package handler

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/petermyo/DecentralizeFileShare/internal/app/provider"
	httpUtil "github.com/petermyo/DecentralizeFileShare/internal/http/util"
	"go.uber.org/zap"
)

const (
	stateCookie = "oauth_state"
	statePath   = "/auth"
	stateTTL    = 10 * time.Minute
)

// CredentialEnroller stores the grant an owner hands over at sign-in.
type CredentialEnroller interface {
	Enroll(ctx context.Context, ownerID string, tok *provider.Token) error
}

// AuthDeps groups dependencies of the sign-in flow.
type AuthDeps struct {
	Logger   *zap.Logger
	OAuth    provider.Authenticator
	Broker   CredentialEnroller
	Sessions *httpUtil.SessionManager
	Secure   bool
}

// AuthHandler runs the delegated sign-in flow and issues owner sessions.
type AuthHandler struct {
	logger   *zap.Logger
	oauth    provider.Authenticator
	broker   CredentialEnroller
	sessions *httpUtil.SessionManager
	secure   bool
}

func NewAuthHandler(deps AuthDeps) *AuthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		logger:   logger,
		oauth:    deps.OAuth,
		broker:   deps.Broker,
		sessions: deps.Sessions,
		secure:   deps.Secure,
	}
}

func (h *AuthHandler) Register(router fiber.Router) {
	router.Get("/auth/google/login", h.Login)
	router.Get("/auth/google/callback", h.Callback)
}

// Login redirects to the consent page.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     statePath,
		Expires:  time.Now().Add(stateTTL),
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.oauth.AuthCodeURL(state), fiber.StatusFound)
}

// Callback finishes sign-in: exchange the code, record the owner's grant and
// start a session.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	state := c.Query("state")
	expected := c.Cookies(stateCookie)
	expireCookie(c, stateCookie, statePath, h.secure)
	if state == "" || expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid oauth state"})
	}
	if reason := c.Query("error"); reason != "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "sign-in cancelled"})
	}
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing authorization code"})
	}

	ctx := c.UserContext()
	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("code exchange failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "sign-in failed"})
	}
	identity, err := h.oauth.Identify(ctx, tok.AccessToken)
	if err != nil {
		h.logger.Warn("identity lookup failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "sign-in failed"})
	}
	if err := h.broker.Enroll(ctx, identity.ID, tok); err != nil {
		return writeAPIError(c, h.logger, "failed to store credential", err)
	}

	session, err := h.sessions.Issue(identity.ID, identity.Name, identity.Picture)
	if err != nil {
		h.logger.Error("failed to issue session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sign-in failed"})
	}
	c.Cookie(&fiber.Cookie{
		Name:     httpUtil.SessionCookie,
		Value:    session,
		Path:     "/",
		Expires:  time.Now().Add(h.sessions.TTL()),
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	h.logger.Info("owner signed in", zap.String("owner_id", identity.ID))
	return c.Redirect("/", fiber.StatusFound)
}

// expireCookie deletes a cookie. Browsers only drop it when path matches the one it was set with.
func expireCookie(c *fiber.Ctx, name, path string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
