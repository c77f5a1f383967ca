package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/smartkingston/internal/retry"
)

// ErrNotFound is returned when no classification matches the request and owner.
var ErrNotFound = errors.New("classification not found")

// ClassificationLog represents a persisted classification request.
type ClassificationLog struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID      string    `gorm:"column:user_id;size:64;index"`
	Item        string    `gorm:"column:item;size:255"`
	Reason      string    `gorm:"column:reason;type:text"`
	Category    string    `gorm:"column:category;size:128"`
	Success     bool      `gorm:"column:success"`
	ErrorKind   string    `gorm:"column:error_kind;size:64"`
	FailedStage string    `gorm:"column:failed_stage;size:64"`
	SHA1Hash    string    `gorm:"column:sha1_hash;size:40;index"`
	LatencyMs   int64     `gorm:"column:latency_ms"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (ClassificationLog) TableName() string {
	return "classification_logs"
}

// MetricsAggregation summarises every stored classification.
type MetricsAggregation struct {
	TotalCount       int64
	SuccessCount     int64
	AverageLatencyMs float64
	FailuresByKind   map[string]int64
}

// ClassificationRepository provides persistence APIs for classification logs.
type ClassificationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewClassificationRepository creates a new repository instance.
func NewClassificationRepository(db *gorm.DB, logger *zap.Logger) *ClassificationRepository {
	return &ClassificationRepository{
		db:     db,
		logger: logger.Named("classification_repository"),
		policy: retry.DefaultPolicy,
	}
}

// AutoMigrate ensures the schema is available.
func (r *ClassificationRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&ClassificationLog{})
	})
}

// SaveLog persists a classification log entry.
func (r *ClassificationRepository) SaveLog(ctx context.Context, log *ClassificationLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndUser retrieves a classification log matching the request and owner.
func (r *ClassificationRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*ClassificationLog, error) {
	var log ClassificationLog
	err := r.executeWithRetry(ctx, "repository.find_by_request", requestID, func() error {
		err := r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash lists the user's other classifications of the same image bytes, newest first.
func (r *ClassificationRepository) FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*ClassificationLog, error) {
	var logs []*ClassificationLog
	err := r.executeWithRetry(ctx, "repository.find_duplicates", excludeRequestID, func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND sha1_hash = ? AND request_id <> ?", userID, hash, excludeRequestID).
			Order("created_at DESC").
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics computes totals, success count, mean latency and failures per error kind.
func (r *ClassificationRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var totals struct {
		TotalCount       int64
		SuccessCount     int64
		AverageLatencyMs float64
	}
	var kinds []struct {
		ErrorKind string
		Count     int64
	}

	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		err := r.db.WithContext(ctx).Model(&ClassificationLog{}).
			Select("COUNT(*) AS total_count, " +
				"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS success_count, " +
				"COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
			Scan(&totals).Error
		if err != nil {
			return err
		}
		kinds = kinds[:0]
		return r.db.WithContext(ctx).Model(&ClassificationLog{}).
			Select("error_kind, COUNT(*) AS count").
			Where("success = ?", false).
			Group("error_kind").
			Scan(&kinds).Error
	})
	if err != nil {
		return nil, err
	}

	aggregation := &MetricsAggregation{
		TotalCount:       totals.TotalCount,
		SuccessCount:     totals.SuccessCount,
		AverageLatencyMs: totals.AverageLatencyMs,
		FailuresByKind:   make(map[string]int64, len(kinds)),
	}
	for _, k := range kinds {
		aggregation.FailuresByKind[k.ErrorKind] = k.Count
	}
	return aggregation, nil
}

func (r *ClassificationRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return retry.Do(ctx, r.policy, r.logger, operation, requestID, fn)
}
