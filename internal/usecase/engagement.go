package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/example/engagement-score/internal/auth"
	"github.com/example/engagement-score/internal/engagement"
	"github.com/example/engagement-score/internal/faceapi"
	"github.com/example/engagement-score/internal/logging"
	"github.com/example/engagement-score/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrResultNotFound is returned when no stored result matches a request ID.
	ErrResultNotFound = errors.New("engagement result not found")
	// ErrMetricsUnavailable is returned when no database is configured.
	ErrMetricsUnavailable = errors.New("metrics require a configured database")
)

// ScoreRepository defines the persistence operations needed by the use case.
type ScoreRepository interface {
	SaveLog(ctx context.Context, log *repository.ScoreLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.ScoreLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// FaceSummary identifies the face a score was computed from.
type FaceSummary struct {
	FaceID    string                `json:"faceId,omitempty"`
	Rectangle faceapi.FaceRectangle `json:"faceRectangle"`
}

// Result is the outcome of scoring one image. RequestID is generated per
// scoring call and keys the stored result; CorrelationID echoes the caller's
// X-Request-ID.
type Result struct {
	RequestID     string                `json:"requestId"`
	CorrelationID string                `json:"correlationId,omitempty"`
	Score         engagement.Score      `json:"engagementScore"`
	FacesDetected int                   `json:"facesDetected"`
	Face          *FaceSummary          `json:"face,omitempty"`
	Breakdown     *engagement.Breakdown `json:"breakdown,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
}

// cachedResult is the cache payload; Owner scopes reads to the caller that
// produced the result.
type cachedResult struct {
	Owner  string  `json:"owner,omitempty"`
	Result *Result `json:"result"`
}

// Option customises an EngagementUseCase.
type Option func(*EngagementUseCase)

// WithResultTTL sets how long cached results live.
func WithResultTTL(ttl time.Duration) Option {
	return func(uc *EngagementUseCase) {
		if ttl > 0 {
			uc.resultTTL = ttl
		}
	}
}

// EngagementUseCase runs detection and scoring for one image, then records
// the outcome when a repository or cache is configured.
type EngagementUseCase struct {
	detector       faceapi.Detector
	attributes     []faceapi.Attribute
	repo           ScoreRepository
	cache          Cache
	logger         *zap.Logger
	resultTTL      time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

// NewEngagementUseCase constructs a new use case instance. repo and cache may be nil.
func NewEngagementUseCase(detector faceapi.Detector, attributes []faceapi.Attribute, repo ScoreRepository, cache Cache, logger *zap.Logger, opts ...Option) *EngagementUseCase {
	uc := &EngagementUseCase{
		detector:       detector,
		attributes:     attributes,
		repo:           repo,
		cache:          cache,
		logger:         logger.Named("engagement_usecase"),
		resultTTL:      10 * time.Minute,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}

	requested := make(map[faceapi.Attribute]bool, len(attributes))
	for _, attr := range attributes {
		requested[attr] = true
	}
	for _, attr := range engagement.RequiredAttributes {
		if !requested[attr] {
			uc.logger.Warn("required face attribute not requested, scoring will fail", zap.String("attribute", string(attr)))
		}
	}
	return uc
}

// ScoreImage detects faces in imageBytes and scores the largest one. An image
// without faces scores 0. Every call gets a fresh result ID, so a repeated
// X-Request-ID never overwrites an earlier result.
func (uc *EngagementUseCase) ScoreImage(ctx context.Context, imageBytes []byte) (*Result, error) {
	resultID := uuid.NewString()
	requestID, ok := logging.RequestIDFromContext(ctx)
	if !ok {
		requestID = resultID
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	opLogger := logging.WithOperation(uc.logger, "usecase.score_image", requestID).With(zap.String("result_id", resultID))
	start := uc.now()

	faces, err := uc.detector.Detect(ctx, imageBytes, uc.attributes)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.detect_faces", requestID, err)
		if errors.Is(err, faceapi.ErrPayloadTooLarge) || errors.Is(err, faceapi.ErrEmptyImage) {
			opLogger.Warn("image rejected", zap.Error(wrapped))
		} else {
			opLogger.Error("face detection failed", zap.Error(wrapped))
		}
		return nil, wrapped
	}

	eval, err := engagement.Evaluate(faces)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.score_face", requestID, err)
		opLogger.Error("engagement scoring failed", zap.Error(wrapped), zap.Int("faces", len(faces)))
		return nil, wrapped
	}

	result := &Result{
		RequestID:     resultID,
		CorrelationID: requestID,
		Score:         eval.Score,
		FacesDetected: len(faces),
		CreatedAt:     uc.now().UTC(),
	}
	if eval.Face != nil {
		result.Face = &FaceSummary{FaceID: eval.Face.FaceID, Rectangle: eval.Face.FaceRectangle}
		breakdown := eval.Breakdown
		result.Breakdown = &breakdown
	}
	latency := uc.now().Sub(start)

	opLogger.Info("engagement scored",
		zap.Uint("score", uint(result.Score)),
		zap.Int("faces", result.FacesDetected),
		zap.Duration("latency", latency),
	)

	owner, _ := auth.GetUserID(ctx)
	uc.record(ctx, opLogger, owner, imageBytes, result, latency)
	return result, nil
}

// record stores the result. Failures are logged and do not fail the request.
func (uc *EngagementUseCase) record(ctx context.Context, opLogger *zap.Logger, owner string, imageBytes []byte, result *Result, latency time.Duration) {
	if uc.repo != nil {
		hash := sha1.Sum(imageBytes)
		log := &repository.ScoreLog{
			RequestID:     result.RequestID,
			CorrelationID: result.CorrelationID,
			UserID:        owner,
			Score:         uint(result.Score),
			FacesDetected: result.FacesDetected,
			SHA1Hash:      hex.EncodeToString(hash[:]),
			LatencyMs:     latency.Milliseconds(),
			CreatedAt:     result.CreatedAt,
		}
		if result.Face != nil {
			log.FaceID = result.Face.FaceID
			log.FaceTop = result.Face.Rectangle.Top
			log.FaceLeft = result.Face.Rectangle.Left
			log.FaceWidth = result.Face.Rectangle.Width
			log.FaceHeight = result.Face.Rectangle.Height
		}
		if result.Breakdown != nil {
			log.YawComponent = result.Breakdown.Yaw
			log.PitchComponent = result.Breakdown.Pitch
			log.SmileComponent = result.Breakdown.Smile
			log.EmotionComponent = result.Breakdown.Emotion
			log.RawScore = result.Breakdown.Raw
		}
		if err := uc.repo.SaveLog(ctx, log); err != nil {
			opLogger.Warn("failed to persist score log", zap.Error(err))
		}
	}

	if uc.cache != nil {
		serialized, err := json.Marshal(cachedResult{Owner: owner, Result: result})
		if err != nil {
			opLogger.Warn("failed to serialize engagement result", zap.Error(err))
			return
		}
		if err := uc.withRedisRetry(ctx, result.RequestID, "cache.set.result", func() error {
			return uc.cache.Set(ctx, resultCacheKey(result.RequestID), string(serialized), uc.resultTTL)
		}); err != nil {
			opLogger.Warn("failed to cache engagement result", zap.Error(err))
		}
	}
}

// GetResult retrieves a cached result or loads it from persistence. Results
// recorded for another caller are reported as not found.
func (uc *EngagementUseCase) GetResult(ctx context.Context, requestID string) (*Result, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", requestID)
	caller, _ := auth.GetUserID(ctx)
	notFound := logging.NewOperationError("usecase.get_result", requestID, ErrResultNotFound)

	if uc.cache != nil {
		cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", resultCacheKey(requestID))
		switch {
		case err == nil:
			var entry cachedResult
			decodeErr := json.Unmarshal([]byte(cached), &entry)
			if decodeErr == nil && entry.Result != nil {
				if entry.Owner != caller {
					opLogger.Warn("result requested by another caller")
					return nil, notFound
				}
				return entry.Result, nil
			}
			opLogger.Warn("failed to decode cached result", zap.Error(decodeErr))
		case !errors.Is(err, ErrCacheMiss):
			opLogger.Warn("failed to read cache", zap.Error(err))
		}
	}

	if uc.repo == nil {
		return nil, notFound
	}
	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	if log.UserID != caller {
		opLogger.Warn("result requested by another caller")
		return nil, notFound
	}
	return resultFromLog(log), nil
}

// resultFromLog rebuilds the same payload ScoreImage returned.
func resultFromLog(log *repository.ScoreLog) *Result {
	result := &Result{
		RequestID:     log.RequestID,
		CorrelationID: log.CorrelationID,
		Score:         engagement.Score(log.Score),
		FacesDetected: log.FacesDetected,
		CreatedAt:     log.CreatedAt,
	}
	if log.FacesDetected > 0 {
		result.Face = &FaceSummary{
			FaceID: log.FaceID,
			Rectangle: faceapi.FaceRectangle{
				Top:    log.FaceTop,
				Left:   log.FaceLeft,
				Width:  log.FaceWidth,
				Height: log.FaceHeight,
			},
		}
		result.Breakdown = &engagement.Breakdown{
			Yaw:     log.YawComponent,
			Pitch:   log.PitchComponent,
			Smile:   log.SmileComponent,
			Emotion: log.EmotionComponent,
			Raw:     log.RawScore,
		}
	}
	return result
}

func (uc *EngagementUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, ErrCacheMiss) {
			return err
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *EngagementUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
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
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
