package handler

import (
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

const noteFileField = "file"

type NoteHandler struct {
	notes       *service.NoteService
	noteMaxSize int64
}

func NewNoteHandler(notes *service.NoteService, noteMaxSize int64) *NoteHandler {
	return &NoteHandler{notes: notes, noteMaxSize: noteMaxSize}
}

func (h *NoteHandler) Create(c *gin.Context) {
	limitBody(c, h.noteMaxSize)
	in, closer, err := formFile(c, noteFileField)
	if err != nil {
		handleError(c, err)
		return
	}
	defer closer.Close()
	note, err := h.notes.Create(c.Request.Context(), getUserID(c), service.NoteCreateInput{
		Title:   c.PostForm("title"),
		Subject: c.PostForm("subject"),
		Tags:    c.PostForm("tags"),
		File:    in,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, note)
}

func (h *NoteHandler) ListMine(c *gin.Context) {
	notes, err := h.notes.ListMine(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, notes)
}

func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.notes.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) Download(c *gin.Context) {
	note, rc, err := h.notes.Download(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	contentType := note.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": note.FileName}))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logutil.GetLogger(c.Request.Context()).Warn("stream note file failed",
			zap.String("note_id", note.ID),
			zap.Error(err),
		)
	}
}

func (h *NoteHandler) Delete(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "note removed"})
}
