package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/engagement-score/internal/logging"
)

// ErrNotFound is returned when no score log matches.
var ErrNotFound = errors.New("score log not found")

// ScoreLog represents one persisted scoring outcome. RequestID is the
// server-generated result ID; CorrelationID is whatever the client sent.
type ScoreLog struct {
	ID            uint   `gorm:"primaryKey"`
	RequestID     string `gorm:"column:request_id;uniqueIndex;size:64"`
	CorrelationID string `gorm:"column:correlation_id;index;size:128"`
	UserID        string `gorm:"column:user_id;index;size:255"`
	Score         uint   `gorm:"column:score"`
	FacesDetected int    `gorm:"column:faces_detected"`

	FaceID     string `gorm:"column:face_id;size:64"`
	FaceTop    uint32 `gorm:"column:face_top"`
	FaceLeft   uint32 `gorm:"column:face_left"`
	FaceWidth  uint32 `gorm:"column:face_width"`
	FaceHeight uint32 `gorm:"column:face_height"`

	YawComponent     float64 `gorm:"column:yaw_component"`
	PitchComponent   float64 `gorm:"column:pitch_component"`
	SmileComponent   float64 `gorm:"column:smile_component"`
	EmotionComponent float64 `gorm:"column:emotion_component"`
	RawScore         float64 `gorm:"column:raw_score"`

	SHA1Hash  string    `gorm:"column:sha1_hash;index;size:40"`
	LatencyMs int64     `gorm:"column:latency_ms"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (ScoreLog) TableName() string {
	return "engagement_score_logs"
}

// MetricsAggregation is the raw aggregate read from the score logs.
type MetricsAggregation struct {
	TotalCount       int64
	FaceFoundCount   int64
	AverageScore     float64
	AverageLatencyMs float64
}

// ScoreRepository persists engagement score logs.
type ScoreRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewScoreRepository creates a new repository instance.
func NewScoreRepository(db *gorm.DB, logger *zap.Logger) *ScoreRepository {
	return &ScoreRepository{
		db:             db,
		logger:         logger.Named("score_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *ScoreRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ScoreLog{})
}

// SaveLog persists a score log entry.
func (r *ScoreRepository) SaveLog(ctx context.Context, log *ScoreLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves the score log for a request.
func (r *ScoreRepository) FindByRequestID(ctx context.Context, requestID string) (*ScoreLog, error) {
	var log ScoreLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, logging.NewOperationError("repository.find_by_request_id", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics summarises every stored score log.
func (r *ScoreRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var aggregation MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&ScoreLog{}).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN faces_detected > 0 THEN 1 ELSE 0 END), 0) AS face_found_count,
				COALESCE(AVG(score), 0) AS average_score,
				COALESCE(AVG(latency_ms), 0) AS average_latency_ms`).
			Scan(&aggregation).Error
	})
	if err != nil {
		return nil, err
	}
	return &aggregation, nil
}

func (r *ScoreRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	backoff := r.initialBackoff
	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if !isTransientError(err) || attempt == attempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}
