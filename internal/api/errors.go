package api

import (
	"errors"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dshills/spotvec/pkg/types"
)

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindValidation:
		if errors.Is(err, types.ErrIngestionInProgress) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case types.KindAuth:
		var authErr *types.AuthError
		if errors.As(err, &authErr) && authErr.Status >= 400 && authErr.Status < 500 {
			return authErr.Status
		}
		return http.StatusBadGateway
	case types.KindSessionExpired:
		return http.StatusUnauthorized
	case types.KindFetch, types.KindTransientFetch:
		return http.StatusBadGateway
	case types.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError renders {kind, error}. Server-side failures are reported to
// sentry when the middleware is attached.
func writeError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	entry := log.WithFields(log.Fields{"component": "api", "path": c.FullPath(), "kind": types.KindOf(err)})
	if status >= http.StatusInternalServerError {
		entry.Errorf("%s: %v", message, err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	} else {
		entry.Warnf("%s: %v", message, err)
	}

	c.JSON(status, gin.H{
		"kind":    types.KindOf(err),
		"error":   err.Error(),
		"message": message,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"kind":  types.KindValidation,
		"error": message,
	})
}
