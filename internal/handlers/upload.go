package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pixelhost/internal/media/sniffer"
	"pixelhost/internal/middleware"
	"pixelhost/internal/models"
	"pixelhost/internal/service"
)

// Messages legacy upload clients show verbatim.
const (
	msgInvalidKey       = "Upload key is invalid"
	msgInvalidKeySharex = "Upload key is invalid\nPlease regenerate your config at pxl.blue"
	msgBanned           = "You are banned from pxl.blue\nCheck your email for more information"
	msgUploadFailed     = "upload failed"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

var errPayloadTooLarge = errors.New("file is too large")

type imageResponse struct {
	ShortID        string    `json:"shortId"`
	Host           string    `json:"host"`
	Path           string    `json:"path"`
	URL            string    `json:"url"`
	Size           int64     `json:"size"`
	ContentType    string    `json:"contentType"`
	OriginalName   string    `json:"originalName"`
	Hash           string    `json:"hash"`
	Uploader       string    `json:"uploader"`
	UploadTime     time.Time `json:"uploadTime"`
	Deleted        bool      `json:"deleted"`
	DeletionReason string    `json:"deletionReason"`
}

type uploadResponse struct {
	Success     bool          `json:"success"`
	Image       imageResponse `json:"image"`
	URL         string        `json:"url"`
	RawURL      string        `json:"rawUrl"`
	DeletionURL string        `json:"deletionUrl"`
}

func newImageResponse(img models.Image) imageResponse {
	return imageResponse{
		ShortID:        img.ShortID,
		Host:           img.Host,
		Path:           img.StorageKey,
		URL:            service.PublicURL(img.Host, img.StorageKey),
		Size:           img.SizeBytes,
		ContentType:    img.ContentType,
		OriginalName:   img.OriginalName,
		Hash:           img.ContentHash,
		Uploader:       img.UploaderID,
		UploadTime:     img.UploadedAt,
		Deleted:        img.Deleted,
		DeletionReason: string(img.DeletionReason),
	}
}

// UploadExtra answers with JSON, including the deletion link.
func (h HandlerSet) UploadExtra(c *gin.Context) {
	input, err := h.readUpload(c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errPayloadTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		middleware.AbortWithErrors(c, status, err.Error())
		return
	}

	result, err := h.uploads.AdmitUpload(c.Request.Context(), input)
	switch {
	case errors.Is(err, service.ErrInvalidCredential):
		middleware.AbortWithErrors(c, http.StatusUnauthorized, msgInvalidKey)
		return
	case errors.Is(err, service.ErrAccountBanned):
		middleware.AbortWithErrors(c, http.StatusUnauthorized, msgBanned)
		return
	case err != nil:
		h.logUploadError(c, err)
		middleware.AbortWithErrors(c, http.StatusInternalServerError, msgUploadFailed)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Success:     true,
		Image:       newImageResponse(result.Image),
		URL:         result.URL,
		RawURL:      result.RawURL,
		DeletionURL: result.DeletionURL,
	})
}

// UploadShareX answers with the bare URL. Key and ban problems are reported
// with status 200 because the client only displays bodies of successful
// responses.
func (h HandlerSet) UploadShareX(c *gin.Context) {
	input, err := h.readUpload(c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errPayloadTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.String(status, err.Error())
		return
	}

	result, err := h.uploads.AdmitUpload(c.Request.Context(), input)
	switch {
	case errors.Is(err, service.ErrInvalidCredential):
		c.String(http.StatusOK, msgInvalidKeySharex)
		return
	case errors.Is(err, service.ErrAccountBanned):
		c.String(http.StatusOK, msgBanned)
		return
	case err != nil:
		h.logUploadError(c, err)
		c.String(http.StatusInternalServerError, msgUploadFailed)
		return
	}

	c.String(http.StatusOK, result.URL)
}

func (h HandlerSet) readUpload(c *gin.Context) (service.UploadInput, error) {
	maxBytes := h.cfg.Upload.MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.UploadInput{}, errPayloadTooLarge
		}
		return service.UploadInput{}, errors.New("file is required")
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return service.UploadInput{}, fmt.Errorf("read file: %w", err)
	}
	if int64(len(payload)) > maxBytes {
		return service.UploadInput{}, errPayloadTooLarge
	}

	return service.UploadInput{
		Credential:   c.PostForm("key"),
		Payload:      payload,
		OriginalName: header.Filename,
		ContentType:  sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
		Host:         c.PostForm("host"),
		ClientIP:     c.ClientIP(),
	}, nil
}

func (h HandlerSet) logUploadError(c *gin.Context, err error) {
	h.log.Error().
		Err(err).
		Str("request_id", middleware.RequestIDFrom(c)).
		Msg("upload failed")
}
