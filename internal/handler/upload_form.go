package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/service"
)

// multipartOverhead leaves room for form fields and part headers on top of the
// file size limit.
const multipartOverhead = 1 << 20

func limitBody(c *gin.Context, maxFileSize int64) {
	if maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFileSize+multipartOverhead)
	}
}

// formFile opens the named multipart file. The returned closer must be called
// once the upload has been consumed.
func formFile(c *gin.Context, field string) (service.UploadInput, io.Closer, error) {
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.UploadInput{}, nil, appErr.WithMessage(appErr.ErrPayloadTooLarge, "request body too large")
		}
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return service.UploadInput{}, nil, appErr.WithMessage(appErr.ErrInvalid, "no file uploaded")
		}
		return service.UploadInput{}, nil, appErr.WithMessage(appErr.ErrInvalid, "invalid multipart form")
	}
	file, err := header.Open()
	if err != nil {
		return service.UploadInput{}, nil, fmt.Errorf("open multipart file: %w", err)
	}
	return uploadInput(header, file), file, nil
}

func uploadInput(header *multipart.FileHeader, file multipart.File) service.UploadInput {
	return service.UploadInput{
		Reader:      file,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
}
