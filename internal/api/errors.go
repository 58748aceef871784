package api

import (
	"errors"
	"net/http"

	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/cozy-creator/bg-remover/internal/services/background"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusForKind(kind background.Kind) int {
	switch kind {
	case background.KindInvalidInput, background.KindPayloadTooLarge:
		return http.StatusBadRequest
	case background.KindUnprocessableImage:
		return http.StatusUnprocessableEntity
	case background.KindBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes err as {"detail": ...}. Only *background.Error
// messages reach the caller; anything else is logged and reported generically.
func abortWithError(c *gin.Context, err error) {
	app := c.MustGet("app").(*app.App)

	var bgErr *background.Error
	if !errors.As(err, &bgErr) {
		app.Logger.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	status := statusForKind(bgErr.Kind)
	if status >= http.StatusInternalServerError {
		app.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Stringer("kind", bgErr.Kind),
			zap.Error(bgErr),
		)
	} else {
		app.Logger.Info("request rejected",
			zap.String("path", c.FullPath()),
			zap.Stringer("kind", bgErr.Kind),
			zap.String("detail", bgErr.Message),
		)
	}

	c.AbortWithStatusJSON(status, gin.H{"detail": bgErr.Message})
}
