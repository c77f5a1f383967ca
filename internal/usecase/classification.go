package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/logging"
	"github.com/example/smartkingston/internal/repository"
	"github.com/example/smartkingston/internal/retry"
)

const (
	processingMarker = "processing"
	processingTTL    = time.Minute
	resultTTL        = 5 * time.Minute
)

// ErrStillProcessing is returned by GetResult while the classification is running.
var ErrStillProcessing = errors.New("classification still processing")

// ClassificationRepository defines the persistence operations needed by the use case.
type ClassificationRepository interface {
	SaveLog(ctx context.Context, log *repository.ClassificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.ClassificationLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.ClassificationLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Classifier runs the disposal classification pipeline.
type Classifier interface {
	Classify(ctx context.Context, image classifier.ImageHandle) (*classifier.DisposalResult, error)
}

// ClassificationUseCase records, caches and serves classification requests.
type ClassificationUseCase struct {
	repo       ClassificationRepository
	cache      Cache
	classifier Classifier
	logger     *zap.Logger
	policy     retry.Policy
}

type cachedClassification struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Item        string    `json:"item"`
	Reason      string    `json:"reason"`
	Category    string    `json:"category"`
	Success     bool      `json:"success"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Hash        string    `json:"sha1_hash"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// DuplicateReport lists earlier classifications of the same image bytes.
type DuplicateReport struct {
	Request    *repository.ClassificationLog
	Duplicates []*repository.ClassificationLog
}

// NewClassificationUseCase constructs a new use case instance.
func NewClassificationUseCase(repo ClassificationRepository, cache Cache, c Classifier, logger *zap.Logger) *ClassificationUseCase {
	return &ClassificationUseCase{
		repo:       repo,
		cache:      cache,
		classifier: c,
		logger:     logger.Named("classification_usecase"),
		policy:     retry.DefaultPolicy,
	}
}

// ClassifyImage runs the pipeline on imageBytes and records the outcome.
// The request id is returned even when classification fails so callers can report it.
func (uc *ClassificationUseCase) ClassifyImage(ctx context.Context, userID string, imageBytes []byte) (string, *classifier.DisposalResult, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.classify_image", requestID)

	key := cacheKey(requestID)
	if err := uc.withCacheRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, key, processingMarker, processingTTL)
	}); err != nil {
		opLogger.Error("failed to set processing flag", logging.ErrorFields(err)...)
		return "", nil, err
	}

	started := time.Now()
	result, classifyErr := uc.classifier.Classify(ctx, classifier.ImageFromBytes(imageBytes))
	latency := time.Since(started)

	hash := sha1.Sum(imageBytes)
	log := &repository.ClassificationLog{
		RequestID: requestID,
		UserID:    userID,
		Success:   classifyErr == nil,
		SHA1Hash:  hex.EncodeToString(hash[:]),
		LatencyMs: latency.Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}

	if classifyErr != nil {
		var classErr *classifier.ClassificationError
		if errors.As(classifyErr, &classErr) {
			log.ErrorKind = string(classErr.Kind)
			log.FailedStage = classErr.Stage.String()
		}
		wrapped := logging.NewOperationError("usecase.classify", requestID, classifyErr)
		opLogger.Error("classification failed", logging.ErrorFields(wrapped)...)

		uc.record(ctx, opLogger, log)
		return requestID, nil, wrapped
	}

	log.Item = result.Item
	log.Reason = result.Reason
	log.Category = result.Category
	uc.record(ctx, opLogger, log)
	opLogger.Info("classification stored",
		zap.String("item", log.Item),
		zap.Int64("latency_ms", log.LatencyMs),
	)
	return requestID, result, nil
}

// GetResult returns a classification owned by userID, preferring the cache.
func (uc *ClassificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.ClassificationLog, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", requestID)

	cached, err := uc.withCacheGet(ctx, requestID, "cache.get.result", cacheKey(requestID))
	switch {
	case err == nil && cached == processingMarker:
		return nil, ErrStillProcessing
	case err == nil:
		var payload cachedClassification
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			opLogger.Warn("failed to decode cached result", zap.Error(err))
		} else if payload.UserID == userID {
			return payload.log(), nil
		}
	case !errors.Is(err, ErrCacheMiss):
		opLogger.Warn("failed to read cache", logging.ErrorFields(err)...)
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// GetDuplicateReport builds a duplicate detection report for a classification request.
func (uc *ClassificationUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, log.SHA1Hash, log.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{
		Request:    log,
		Duplicates: duplicates,
	}, nil
}

// record persists log and replaces the processing marker with it. A failed
// save is logged, not returned: the run has finished either way, and the
// cached copy keeps GetResult answering until it expires.
func (uc *ClassificationUseCase) record(ctx context.Context, opLogger *zap.Logger, log *repository.ClassificationLog) {
	// The caller may already be gone; the outcome is still worth recording.
	recordCtx := context.WithoutCancel(ctx)
	if err := uc.repo.SaveLog(recordCtx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", log.RequestID, err)
		opLogger.Error("failed to persist classification log", logging.ErrorFields(wrapped)...)
	}
	uc.cacheLog(recordCtx, opLogger, log)
}

func (uc *ClassificationUseCase) cacheLog(ctx context.Context, opLogger *zap.Logger, log *repository.ClassificationLog) {
	serialized, err := json.Marshal(newCachedClassification(log))
	if err != nil {
		opLogger.Error("failed to serialize classification", zap.Error(err))
		return
	}
	if err := uc.withCacheRetry(ctx, log.RequestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey(log.RequestID), string(serialized), resultTTL)
	}); err != nil {
		// Reads fall back to the repository.
		opLogger.Warn("failed to cache classification", logging.ErrorFields(err)...)
	}
}

func (uc *ClassificationUseCase) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	return retry.Do(ctx, uc.policy, uc.logger, operation, requestID, fn)
}

func (uc *ClassificationUseCase) withCacheGet(ctx context.Context, requestID, operation, key string) (string, error) {
	var (
		result string
		miss   bool
	)
	err := uc.withCacheRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			// A miss is an answer, not a failure to retry or report.
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	if miss {
		return "", ErrCacheMiss
	}
	return result, nil
}

func cacheKey(requestID string) string {
	return "classification:" + requestID
}

func newCachedClassification(log *repository.ClassificationLog) cachedClassification {
	return cachedClassification{
		RequestID:   log.RequestID,
		UserID:      log.UserID,
		Item:        log.Item,
		Reason:      log.Reason,
		Category:    log.Category,
		Success:     log.Success,
		ErrorKind:   log.ErrorKind,
		FailedStage: log.FailedStage,
		Hash:        log.SHA1Hash,
		LatencyMs:   log.LatencyMs,
		CreatedAt:   log.CreatedAt,
	}
}

func (c cachedClassification) log() *repository.ClassificationLog {
	return &repository.ClassificationLog{
		RequestID:   c.RequestID,
		UserID:      c.UserID,
		Item:        c.Item,
		Reason:      c.Reason,
		Category:    c.Category,
		Success:     c.Success,
		ErrorKind:   c.ErrorKind,
		FailedStage: c.FailedStage,
		SHA1Hash:    c.Hash,
		LatencyMs:   c.LatencyMs,
		CreatedAt:   c.CreatedAt,
	}
}
