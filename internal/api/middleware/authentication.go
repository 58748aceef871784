package middleware

import (
	"errors"
	"net/http"

	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/cozy-creator/bg-remover/internal/db/repository"
	"github.com/cozy-creator/bg-remover/internal/utils/hashutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const APIKeyHeader = "X-API-Key"

func AuthenticationMiddleware(ctx *gin.Context) {
	apikey := ctx.Request.Header.Get(APIKeyHeader)
	app := ctx.MustGet("app").(*app.App)

	if apikey == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized access"})
		return
	}

	if app.APIKeyRepository == nil {
		app.Logger.Error("api key required but the database is not initialized")
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "API key store is unavailable"})
		return
	}

	apikeyHash := hashutil.Sha3256Hash([]byte(apikey))
	result, err := app.APIKeyRepository.GetByHash(ctx.Request.Context(), apikeyHash)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "The provided API key is invalid"})
			return
		}

		// Database error
		app.Logger.Error("Database error while checking API key", zap.Error(err))
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error checking api-keys in database"})
		return
	}

	if result.IsRevoked {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "The provided API key is revoked"})
		return
	}

	ctx.Next()
}
