package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/smartkingston/internal/auth"
	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/repository"
	"github.com/example/smartkingston/internal/usecase"
)

// MaxUploadSize is the largest accepted image in bytes.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for boundaries and part headers around the image.
const multipartOverhead = 1 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/heic": true,
	"image/heif": true,
}

// ClassificationService is the use case surface the HTTP layer depends on.
type ClassificationService interface {
	ClassifyImage(ctx context.Context, userID string, imageBytes []byte) (string, *classifier.DisposalResult, error)
	GetResult(ctx context.Context, userID, requestID string) (*repository.ClassificationLog, error)
	GetDuplicateReport(ctx context.Context, userID, requestID string) (*usecase.DuplicateReport, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
// metricsHandler is mounted on /metrics when non-nil.
func RegisterRoutes(router *gin.Engine, svc ClassificationService, authMiddleware gin.HandlerFunc, metricsHandler http.Handler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	protected := router.Group("/", authMiddleware)
	protected.POST("/classify", classifyHandler(svc))
	protected.GET("/classifications/:id", resultHandler(svc))
	protected.GET("/classifications/:id/duplicates", duplicatesHandler(svc))
	protected.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func classifyHandler(svc ClassificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)
		file, err := c.FormFile("image")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}

		mediaType, _, err := mime.ParseMediaType(file.Header.Get("Content-Type"))
		if err != nil || !allowedImageTypes[mediaType] {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		requestID, result, err := svc.ClassifyImage(c.Request.Context(), userID, data)
		if err != nil {
			kind := classifier.KindOf(err)
			body := gin.H{"error": failureMessage(kind)}
			if requestID != "" {
				body["request_id"] = requestID
			}
			if kind != "" {
				body["kind"] = kind
			}
			c.JSON(failureStatus(kind), body)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": requestID,
			"item":       result.Item,
			"reason":     result.Reason,
			"category":   result.Category,
		})
	}
}

func resultHandler(svc ClassificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		requestID := c.Param("id")

		log, err := svc.GetResult(c.Request.Context(), userID, requestID)
		switch {
		case errors.Is(err, usecase.ErrStillProcessing):
			c.JSON(http.StatusAccepted, gin.H{"request_id": requestID, "status": "processing"})
			return
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
			return
		}

		c.JSON(http.StatusOK, logResponse(log))
	}
}

func duplicatesHandler(svc ClassificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())

		report, err := svc.GetDuplicateReport(c.Request.Context(), userID, c.Param("id"))
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load duplicates"})
			return
		}

		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, d := range report.Duplicates {
			duplicates = append(duplicates, logResponse(d))
		}
		c.JSON(http.StatusOK, gin.H{
			"request":    logResponse(report.Request),
			"duplicates": duplicates,
		})
	}
}

func logResponse(log *repository.ClassificationLog) gin.H {
	body := gin.H{
		"request_id": log.RequestID,
		"success":    log.Success,
		"sha1_hash":  log.SHA1Hash,
		"latency_ms": log.LatencyMs,
		"created_at": log.CreatedAt.Format(time.RFC3339),
	}
	if log.Success {
		body["item"] = log.Item
		body["reason"] = log.Reason
		body["category"] = log.Category
	} else {
		body["kind"] = log.ErrorKind
		body["failed_stage"] = log.FailedStage
	}
	return body
}

func failureStatus(kind classifier.ErrorKind) int {
	switch kind {
	case classifier.KindImageReadFailed:
		return http.StatusUnprocessableEntity
	case classifier.KindVisionServiceFailed, classifier.KindAdviceServiceFailed, classifier.KindCondenseServiceFailed:
		return http.StatusBadGateway
	case classifier.KindTimeout:
		return http.StatusGatewayTimeout
	case classifier.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func failureMessage(kind classifier.ErrorKind) string {
	switch kind {
	case classifier.KindImageReadFailed:
		return "image could not be read"
	case classifier.KindVisionServiceFailed:
		return "vision service failed"
	case classifier.KindAdviceServiceFailed:
		return "advice service failed"
	case classifier.KindCondenseServiceFailed:
		return "condense service failed"
	case classifier.KindTimeout:
		return "classification timed out"
	case classifier.KindCanceled:
		return "classification canceled"
	default:
		return "classification failed"
	}
}
