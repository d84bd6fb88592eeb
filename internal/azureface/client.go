// Package azureface implements faceapi.Detector against the Azure Face detect endpoint.
package azureface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/example/engagement-score/internal/faceapi"
	"github.com/example/engagement-score/internal/logging"
)

const (
	detectPath         = "/face/v1.0/detect"
	subscriptionHeader = "Ocp-Apim-Subscription-Key"
	maxErrorBodyBytes  = 64 << 10
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures a Client.
type Options struct {
	Endpoint         string
	SubscriptionKey  string
	DetectionModel   string
	RecognitionModel string
	ReturnLandmarks  bool
	MaxImageBytes    int64
	Timeout          time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client calls the provider once per Detect, without retries.
type Client struct {
	detectURL  *url.URL
	opts       Options
	httpClient *http.Client
	logger     *zap.Logger
}

var _ faceapi.Detector = (*Client)(nil)

// New validates opts and returns a ready-to-use client.
func New(opts Options, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.Endpoint))
	if err != nil {
		return nil, logging.NewOperationError("azureface.new", "", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, logging.NewOperationError("azureface.new", "", fmt.Errorf("endpoint %q must be an absolute URL", opts.Endpoint))
	}
	if opts.SubscriptionKey == "" {
		return nil, logging.NewOperationError("azureface.new", "", fmt.Errorf("subscription key is required"))
	}
	if opts.MaxImageBytes <= 0 {
		return nil, logging.NewOperationError("azureface.new", "", fmt.Errorf("max image bytes must be positive"))
	}

	base.Path = strings.TrimRight(base.Path, "/") + detectPath
	base.RawQuery = ""

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		detectURL:  base,
		opts:       opts,
		httpClient: httpClient,
		logger:     logger.Named("azureface"),
	}, nil
}

// Detect sends imageBytes to the provider and decodes the detected faces.
func (c *Client) Detect(ctx context.Context, imageBytes []byte, attributes []faceapi.Attribute) (faceapi.DetectionResult, error) {
	requestID, _ := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(c.logger, "azureface.detect", requestID)

	if len(imageBytes) == 0 {
		return nil, faceapi.ErrEmptyImage
	}
	if int64(len(imageBytes)) > c.opts.MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", faceapi.ErrPayloadTooLarge, len(imageBytes), c.opts.MaxImageBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(attributes), bytes.NewReader(imageBytes))
	if err != nil {
		return nil, &faceapi.DetectionError{Kind: faceapi.KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(subscriptionHeader, c.opts.SubscriptionKey)
	req.ContentLength = int64(len(imageBytes))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		opLogger.Error("face detection request failed", zap.Error(err))
		return nil, &faceapi.DetectionError{Kind: faceapi.KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detErr := upstreamError(resp)
		opLogger.Error("face detection rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("code", detErr.Code),
			zap.String("message", detErr.Message),
		)
		return nil, detErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		opLogger.Error("failed to read face detection response", zap.Error(err))
		return nil, &faceapi.DetectionError{Kind: faceapi.KindTransport, Err: err}
	}

	var faces faceapi.DetectionResult
	if err := json.Unmarshal(body, &faces); err != nil {
		opLogger.Error("failed to decode face detection response", zap.Error(err))
		return nil, &faceapi.DetectionError{Kind: faceapi.KindDecode, Err: err}
	}
	if faces == nil {
		faces = faceapi.DetectionResult{}
	}

	opLogger.Debug("face detection completed",
		zap.Int("faces", len(faces)),
		zap.Int("image_bytes", len(imageBytes)),
		zap.Duration("latency", time.Since(start)),
	)
	return faces, nil
}

func (c *Client) requestURL(attributes []faceapi.Attribute) string {
	query := url.Values{}
	query.Set("overload", "stream")
	query.Set("detectionModel", c.opts.DetectionModel)
	query.Set("recognitionModel", c.opts.RecognitionModel)
	if len(attributes) > 0 {
		query.Set("returnFaceAttributes", faceapi.JoinAttributes(attributes))
	}
	query.Set("returnFaceId", "true")
	query.Set("returnFaceLandmarks", strconv.FormatBool(c.opts.ReturnLandmarks))
	query.Set("returnRecognitionModel", "true")

	u := *c.detectURL
	u.RawQuery = query.Encode()
	return u.String()
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func upstreamError(resp *http.Response) *faceapi.DetectionError {
	detErr := &faceapi.DetectionError{Kind: faceapi.KindUpstream, StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		detErr.Err = err
		return detErr
	}
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil {
		detErr.Code = envelope.Error.Code
		detErr.Message = envelope.Error.Message
	}
	return detErr
}
