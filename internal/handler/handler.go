package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"circle-chat/internal/chat"
	"circle-chat/internal/services"
	"circle-chat/internal/transport/httpdto"
	circle_errors "circle-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 10 << 20

func currentSession(c *gin.Context) (*services.Session, bool) {
	sess, ok := services.SessionFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("no active session", httpdto.CodeNoSession))
	}
	return sess, ok
}

func respondError(c *gin.Context, err error) {
	status, code := httpdto.StatusFor(err)
	_ = c.Error(err)
	c.JSON(status, httpdto.NewErrorResponse(httpdto.Message(err), code))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(message, httpdto.CodeInvalidRequest))
}

// formAttachment reads an optional multipart file. A missing field returns nil, nil.
func formAttachment(c *gin.Context, field string) (*chat.Attachment, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", field, circle_errors.ErrInvalidInput)
	}
	return readAttachment(header)
}

func readAttachment(header *multipart.FileHeader) (*chat.Attachment, error) {
	if header.Size > maxUploadBytes {
		return nil, circle_errors.ErrTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, circle_errors.ErrTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", circle_errors.ErrInvalidInput)
	}
	return &chat.Attachment{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// formList accepts repeated fields as well as one comma-separated value.
func formList(c *gin.Context, field string) []string {
	var out []string
	for _, v := range c.PostFormArray(field) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
