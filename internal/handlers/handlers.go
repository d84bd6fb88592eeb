package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/engagement-score/internal/engagement"
	"github.com/example/engagement-score/internal/faceapi"
	"github.com/example/engagement-score/internal/logging"
	"github.com/example/engagement-score/internal/middleware"
	"github.com/example/engagement-score/internal/usecase"
)

// multipartOverhead is the slack allowed on top of the image ceiling for
// multipart boundaries and part headers.
const multipartOverhead = 64 << 10

var (
	// ErrUnsupportedMediaType is returned when the upload is not an image.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrMalformedUpload is returned when a multipart body cannot be parsed.
	ErrMalformedUpload = errors.New("malformed multipart upload")
)

// Service is the engagement use case as seen by the HTTP layer.
type Service interface {
	ScoreImage(ctx context.Context, imageBytes []byte) (*usecase.Result, error)
	GetResult(ctx context.Context, requestID string) (*usecase.Result, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

type handler struct {
	svc           Service
	logger        *zap.Logger
	maxImageBytes int64
}

// RegisterRoutes wires the HTTP handlers to the Gin router. protect runs in
// front of every /engagement route.
func RegisterRoutes(router *gin.Engine, svc Service, logger *zap.Logger, maxImageBytes int64, protect ...gin.HandlerFunc) {
	h := &handler{svc: svc, logger: logger.Named("handlers"), maxImageBytes: maxImageBytes}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := router.Group("/engagement", protect...)
	group.POST("/score", h.score)
	group.GET("/score/:id", h.getResult)
	group.GET("/metrics", h.metrics)
}

func (h *handler) score(c *gin.Context) {
	data, err := h.readImage(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.svc.ScoreImage(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handler) getResult(c *gin.Context) {
	requestID := strings.TrimSpace(c.Param("id"))
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	result, err := h.svc.GetResult(c.Request.Context(), requestID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) metrics(c *gin.Context) {
	summary, err := h.svc.GetMetricsSummary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// readImage accepts either a raw image/* body or a multipart upload with an
// "image" part. Bodies over the ceiling are rejected without being buffered.
func (h *handler) readImage(c *gin.Context) ([]byte, error) {
	if c.Request.ContentLength > h.maxImageBytes+multipartOverhead {
		return nil, faceapi.ErrPayloadTooLarge
	}

	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil {
		return nil, ErrUnsupportedMediaType
	}

	switch {
	case mediaType == "multipart/form-data":
		return h.readMultipartImage(c)
	case strings.HasPrefix(mediaType, "image/"):
		if c.Request.ContentLength > h.maxImageBytes {
			return nil, faceapi.ErrPayloadTooLarge
		}
		return h.readLimited(c.Request.Body)
	default:
		return nil, ErrUnsupportedMediaType
	}
}

func (h *handler) readMultipartImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageBytes+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, faceapi.ErrPayloadTooLarge
		}
		if errors.Is(err, http.ErrMissingFile) {
			return nil, faceapi.ErrEmptyImage
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
	}
	if file.Size > h.maxImageBytes {
		return nil, faceapi.ErrPayloadTooLarge
	}
	if partType := file.Header.Get("Content-Type"); partType != "" && !strings.HasPrefix(partType, "image/") {
		return nil, ErrUnsupportedMediaType
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return h.readLimited(src)
}

func (h *handler) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, h.maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxImageBytes {
		return nil, faceapi.ErrPayloadTooLarge
	}
	if len(data) == 0 {
		return nil, faceapi.ErrEmptyImage
	}
	return data, nil
}

func (h *handler) fail(c *gin.Context, err error) {
	status, message := statusFor(err)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("operation", logging.OperationOf(err)),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Int("status", status),
		)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":     message,
		"requestId": middleware.GetRequestID(c),
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, faceapi.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "image too large"
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "image content type required"
	case errors.Is(err, faceapi.ErrEmptyImage):
		return http.StatusBadRequest, "image is required"
	case errors.Is(err, ErrMalformedUpload):
		return http.StatusBadRequest, "malformed multipart upload"
	case errors.Is(err, usecase.ErrResultNotFound):
		return http.StatusNotFound, "result not found"
	case errors.Is(err, usecase.ErrMetricsUnavailable):
		return http.StatusServiceUnavailable, "metrics unavailable"
	case errors.Is(err, engagement.ErrMissingAttribute):
		return http.StatusBadGateway, "face attributes incomplete"
	}

	var detErr *faceapi.DetectionError
	if errors.As(err, &detErr) {
		if detErr.Kind == faceapi.KindTransport && isTimeout(detErr) {
			return http.StatusGatewayTimeout, "face detection timed out"
		}
		return http.StatusBadGateway, "face detection failed"
	}

	return http.StatusInternalServerError, "internal server error"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
