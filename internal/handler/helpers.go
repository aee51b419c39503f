package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/pkg/errcode"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

type errorMapping struct {
	kind    error
	status  int
	code    uint32
	message string
}

var errorMappings = []errorMapping{
	{appErr.ErrInvalidCredentials, http.StatusBadRequest, errcode.ErrInvalidCredentials, "invalid credentials"},
	{appErr.ErrUnauthorized, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized"},
	{appErr.ErrForbidden, http.StatusForbidden, errcode.ErrForbidden, "forbidden"},
	{appErr.ErrNotFound, http.StatusNotFound, errcode.ErrNotFound, "not found"},
	{appErr.ErrInvalid, http.StatusBadRequest, errcode.ErrInvalid, "invalid request"},
	{appErr.ErrConflict, http.StatusConflict, errcode.ErrConflict, "conflict"},
	{appErr.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, errcode.ErrPayloadTooLarge, "file too large"},
	{appErr.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, errcode.ErrUnsupportedMediaType, "unsupported file type"},
	{appErr.ErrTooMany, http.StatusTooManyRequests, errcode.ErrTooMany, "too many requests"},
}

// handleError writes the error body for err. Unknown errors become a generic
// 500; their detail only goes to the log.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		logger.Debug("request failed")
		msg := m.message
		if detail, ok := appErr.Message(err); ok {
			msg = detail
		}
		response.Error(c, m.status, m.code, msg)
		return
	}
	logger.Error("request failed")
	response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
}
