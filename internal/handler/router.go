package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/middleware"
)

type RouterDeps struct {
	Auth          *AuthHandler
	Notes         *NoteHandler
	Tokens        middleware.TokenVerifier
	AuthRateLimit time.Duration
	// UploadDir is served under /uploads when files live on local disk.
	UploadDir string
}

// RegisterRoutes mounts the API below /api and, when configured, the static
// upload directory. root is expected to sit at "/".
func RegisterRoutes(root *gin.RouterGroup, deps RouterDeps) {
	if deps.UploadDir != "" {
		root.Static("/uploads", deps.UploadDir)
	}
	api := root.Group("/api")

	authLimit := middleware.RateLimit(deps.AuthRateLimit)
	api.POST("/auth/register", authLimit, deps.Auth.Register)
	api.POST("/auth/login", authLimit, deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.Tokens))
	authGroup.GET("/auth/me", deps.Auth.Me)
	authGroup.POST("/auth/avatar", deps.Auth.UpdateAvatar)

	authGroup.POST("/notes", deps.Notes.Create)
	authGroup.GET("/notes/mine", deps.Notes.ListMine)
	authGroup.GET("/notes/download/:id", deps.Notes.Download)
	authGroup.GET("/notes/:id", deps.Notes.Get)
	authGroup.DELETE("/notes/:id", deps.Notes.Delete)
}
