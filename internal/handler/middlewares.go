package handler

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/middleware"
)

// Middlewares is the chain installed in front of every route, outermost first.
func Middlewares(origins middleware.OriginPolicy) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Recovery(),
		middleware.CORS(origins),
		gzip.Gzip(gzip.DefaultCompression),
	}
}
