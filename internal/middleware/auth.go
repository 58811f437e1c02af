package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/pkg/httpcontext"
	"github.com/taskflow/backend/pkg/jwtauth"
)

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(token string) (*jwtauth.Claims, error)
}

// SessionChecker confirms the session behind a token is still alive.
type SessionChecker interface {
	Authenticate(ctx context.Context, sessionID, userID string) (*domain.Session, error)
}

// JWTAuth rejects requests without a valid token for a live session. On
// success the user and session ids are stored as request user values.
func JWTAuth(parser TokenParser, sessions SessionChecker, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			claims, err := parser.Parse(tokenString)
			if err != nil {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx, "invalid or expired token")
				return
			}

			if sessions != nil {
				checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				_, err := sessions.Authenticate(checkCtx, claims.SessionID, claims.UserID)
				cancel()
				if err != nil {
					if domain.IsDomainError(err, domain.ErrCodeUnauthorized) || domain.IsDomainError(err, domain.ErrCodeNotFound) {
						unauthorized(ctx, "session expired")
						return
					}
					logger.Error("session lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
					writeError(ctx, fasthttp.StatusServiceUnavailable, domain.ErrCodeInternal, "session store unavailable")
					return
				}
			}

			ctx.SetUserValue(httpcontext.UserIDValue, claims.UserID)
			ctx.SetUserValue(httpcontext.SessionIDValue, claims.SessionID)
			ctx.Request.Header.Set("X-User-ID", claims.UserID)
			ctx.Request.Header.Set("X-Session-ID", claims.SessionID)

			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return header
	}
	// EventSource clients cannot set headers.
	return string(ctx.QueryArgs().Peek("access_token"))
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	writeError(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, message)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string) {
	body, _ := json.Marshal(transport.NewError(string(code), message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
