package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yanghwi/daily-dungeon/domain"
)

var (
	ErrMissingTokenStr          = "missing-token"
	ErrExpiredTokenStr          = "expired-token"
	ErrInvalidTokenStr          = "invalid-token"
	ErrServerTimeoutStr         = "server-timeout"
	ErrInvalidRequestFormatStr  = "bad-request-format"
	ErrInvalidCredentialsStr    = "invalid-credentials"
	ErrUnknownStr               = "unknown-error"
	ErrUsernameAlreadyExistsStr = "username-already-exists"
	ErrWeakPasswordStr          = "weak-password"
	ErrPasswordTooLongStr       = "password-too-long"
	ErrInvalidUsernameFormatStr = "invalid-username-format"
	ErrAccountCreatedButNoToken = "account-created-but-no-token"
)

// AccountIDKey is the gin context key holding the authenticated account id.
const AccountIDKey = "id"

const tokenCookie = "token"

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authHandler struct {
	authService  AuthService
	cookieMaxAge time.Duration
}

func NewAuthHandler(service AuthService, cookieMaxAge time.Duration) *authHandler {
	return &authHandler{authService: service, cookieMaxAge: cookieMaxAge}
}

func (ah *authHandler) setToken(ctx *gin.Context, token string) {
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie(tokenCookie, token, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
}

// redact keeps the header and claims of a token but hides most of the
// signature.
func redact(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "<malformed>"
	}
	sig := []rune(parts[2])
	if len(sig) > 10 {
		sig = append(sig[:10], []rune(strings.Repeat("*", len(sig)-10))...)
	}
	return parts[0] + "." + parts[1] + "." + string(sig)
}

// RequireAuthMiddleware rejects requests without a valid token cookie. Forged
// tokens are answered after trollTime.
func (ah *authHandler) RequireAuthMiddleware(trollTime time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(tokenCookie)
		if err != nil {
			ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
			ctx.Abort()
			return
		}

		id, err := ah.authService.VerifyToken(token)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidSigningAlg),
				errors.Is(err, domain.ErrInvalidTokenSignature),
				errors.Is(err, domain.ErrCorruptedToken):
				log.Warn().
					Err(err).
					Str("ip", ctx.ClientIP()).
					Str("user_agent", ctx.Request.UserAgent()).
					Str("token", redact(token)).
					Msg("suspicious token")
				time.Sleep(trollTime)
				ctx.String(http.StatusUnauthorized, ErrInvalidTokenStr)

			case errors.Is(err, domain.ErrExpiredToken):
				ctx.String(http.StatusUnauthorized, ErrExpiredTokenStr)

			default:
				log.Error().Err(err).Str("ip", ctx.ClientIP()).Msg("token verification failed")
				ctx.String(http.StatusInternalServerError, ErrUnknownStr)
			}
			ctx.Abort()
			return
		}

		ctx.Set(AccountIDKey, id)
		ctx.Next()
	}
}

func (ah *authHandler) LoginHandler(ctx *gin.Context) {
	var creds credentials
	if err := ctx.ShouldBindJSON(&creds); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	token, err := ah.authService.Login(ctx.Request.Context(), creds.Username, creds.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrIncorrectPassword), errors.Is(err, domain.ErrUserNotFound):
			ctx.String(http.StatusUnauthorized, ErrInvalidCredentialsStr)
		case errors.Is(err, context.DeadlineExceeded):
			ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)
		case errors.Is(err, context.Canceled):
			ctx.Status(499)
		default:
			log.Error().
				Err(err).
				Str("ip", ctx.ClientIP()).
				Str("username", creds.Username).
				Msg("login failed")
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		}
		ctx.Abort()
		return
	}

	ah.setToken(ctx, token)
	ctx.Status(http.StatusOK)
}

func (ah *authHandler) SignupHandler(ctx *gin.Context) {
	var creds credentials
	if err := ctx.ShouldBindJSON(&creds); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	token, err := ah.authService.Signup(ctx.Request.Context(), creds.Username, creds.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			ctx.String(http.StatusConflict, ErrUsernameAlreadyExistsStr)
		case errors.Is(err, ErrWeakPassword):
			ctx.String(http.StatusBadRequest, ErrWeakPasswordStr)
		case errors.Is(err, ErrPasswordTooLong):
			ctx.String(http.StatusBadRequest, ErrPasswordTooLongStr)
		case errors.Is(err, ErrInvalidUsernameFormat):
			ctx.String(http.StatusBadRequest, ErrInvalidUsernameFormatStr)
		case errors.Is(err, context.DeadlineExceeded):
			ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)
		case errors.Is(err, context.Canceled):
			ctx.Status(499)
		case errors.Is(err, domain.UnexpectedTokenGenerationError):
			log.Error().Err(err).Str("username", creds.Username).Msg("account created without token")
			ctx.String(http.StatusInternalServerError, ErrAccountCreatedButNoToken)
		default:
			log.Error().
				Err(err).
				Str("ip", ctx.ClientIP()).
				Str("username", creds.Username).
				Msg("signup failed")
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		}
		ctx.Abort()
		return
	}

	ah.setToken(ctx, token)
	ctx.Status(http.StatusCreated)
}

// RefreshSessionHandler issues a fresh token for a still valid one.
func (ah *authHandler) RefreshSessionHandler(ctx *gin.Context) {
	token, err := ctx.Cookie(tokenCookie)
	if err != nil {
		ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
		return
	}

	id, err := ah.authService.VerifyToken(token)
	if err != nil {
		ctx.String(http.StatusUnauthorized, ErrInvalidTokenStr)
		return
	}

	fresh, err := ah.authService.GenerateToken(id)
	if err != nil {
		log.Error().Err(err).Str("account_id", id).Msg("token refresh failed")
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		return
	}

	ah.setToken(ctx, fresh)
	ctx.Status(http.StatusOK)
}

func (ah *authHandler) LogoutHandler(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie(tokenCookie, "", -1, "/", "", true, true)
	ctx.Status(http.StatusOK)
}
