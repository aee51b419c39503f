package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Body struct {
	Code uint32      `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Msg: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Msg: "ok", Data: data})
}

func Error(c *gin.Context, status int, code uint32, message string) {
	c.AbortWithStatusJSON(status, Body{Code: code, Msg: message})
}
