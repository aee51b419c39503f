package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

const avatarField = "avatar"

type AuthHandler struct {
	auth          *service.AuthService
	avatarMaxSize int64
}

func NewAuthHandler(auth *service.AuthService, avatarMaxSize int64) *AuthHandler {
	return &AuthHandler{auth: auth, avatarMaxSize: avatarMaxSize}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.WithMessage(appErr.ErrInvalid, "invalid request body"))
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.WithMessage(appErr.ErrInvalid, "invalid request body"))
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AuthHandler) UpdateAvatar(c *gin.Context) {
	limitBody(c, h.avatarMaxSize)
	in, closer, err := formFile(c, avatarField)
	if err != nil {
		handleError(c, err)
		return
	}
	defer closer.Close()
	avatar, err := h.auth.UpdateAvatar(c.Request.Context(), getUserID(c), in)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"avatar": avatar})
}
