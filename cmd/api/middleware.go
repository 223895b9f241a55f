package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"

	"github.com/AdeolaQuadri/groupchat-api/internal/auth"
	"github.com/AdeolaQuadri/groupchat-api/internal/chat"
)

// identityKey is the gin context key holding the verified auth.Identity.
const identityKey = "identity"

// requireIdentity enforces Bearer authentication on a route group and
// stores the token's identity on the request context for handlers.
func (s *Server) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, err := s.jwt.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated: " + err.Error()})
			return
		}

		c.Set(identityKey, claims.Identity())
		c.Next()
	}
}

// identityFromContext returns the identity stored by requireIdentity.
// The zero Identity means the middleware did not run.
func identityFromContext(c *gin.Context) auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}
	}
	id, _ := v.(auth.Identity)
	return id
}

// callerKey keys the rate limiter by authenticated user. An empty key
// makes the limiter fall back to the client IP.
func callerKey(c *gin.Context) string {
	return identityFromContext(c).UserID
}

// httpStatus translates a service error's canonical code into the HTTP
// status the client sees.
func httpStatus(err error) int {
	switch chat.Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.Canceled:
		// Client closed request; nginx's non-standard code.
		return 499
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError renders a service error as the JSON error envelope. Domain
// rejections carry their own message; backend failures are logged and
// answered generically so internals never reach the client.
func (s *Server) writeError(c *gin.Context, err error) {
	status := httpStatus(err)
	if status < http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	s.log.Error("request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"error", err,
	)
	c.JSON(status, gin.H{"error": "service temporarily unavailable"})
}
