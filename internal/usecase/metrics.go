package usecase

import "context"

// MetricsSummary represents aggregated engagement insights.
type MetricsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	RequestsWithFace int64   `json:"requests_with_face"`
	FaceRate         float64 `json:"face_rate"`
	AverageScore     float64 `json:"average_score"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates scoring metrics from persisted logs.
func (uc *EngagementUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return nil, ErrMetricsUnavailable
	}

	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:    aggregation.TotalCount,
		RequestsWithFace: aggregation.FaceFoundCount,
		AverageScore:     aggregation.AverageScore,
		AverageLatencyMs: aggregation.AverageLatencyMs,
	}

	if aggregation.TotalCount > 0 {
		summary.FaceRate = float64(aggregation.FaceFoundCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
