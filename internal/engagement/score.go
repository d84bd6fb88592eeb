// Package engagement derives an engagement score from the attributes of a detected face.
package engagement

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/engagement-score/internal/faceapi"
)

// Score is a non-negative engagement score, roughly in [0, 680].
type Score uint

// Range is an at-risk rotation interval in degrees. Beyond either bound the
// subject is treated as not looking at the screen.
type Range struct {
	Negative float64
	Positive float64
}

var (
	YawRange   = Range{Negative: -13.3, Positive: 11.0}
	PitchRange = Range{Negative: -15.0, Positive: 0.3}
)

// Component weights. They sum to 680.
const (
	YawWeight     = 123
	PitchWeight   = 232
	SmileWeight   = 273
	EmotionWeight = 52
)

// Emotion penalty calibration.
const (
	neutralLogBase = 1.05
	neutralScale   = 140
	neutralDivisor = 100
)

// ErrMissingAttribute is matched by every MissingAttributeError.
var ErrMissingAttribute = errors.New("missing face attribute")

// MissingAttributeError names the attribute a face lacked.
type MissingAttributeError struct {
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingAttribute, e.Attribute)
}

func (e *MissingAttributeError) Is(target error) bool {
	return target == ErrMissingAttribute
}

// RequiredAttributes must be requested from the provider for Score to succeed.
var RequiredAttributes = []faceapi.Attribute{
	faceapi.AttributeHeadPose,
	faceapi.AttributeSmile,
	faceapi.AttributeEmotion,
}

// Midpoint is the rotation considered centred on the screen.
func (r Range) Midpoint() float64 {
	return (r.Positive + r.Negative) / 2
}

// Normalize maps an angle to [0, 1]: 1 at the midpoint, 0 at or beyond the
// width of the range away from it.
func (r Range) Normalize(angle float64) float64 {
	divisor := math.Abs(r.Negative) + r.Positive
	offset := math.Abs(angle - r.Midpoint())
	return 1 - math.Min(offset/divisor, 1)
}

// EmotionComponent penalises neutral expressions on a logarithmic curve.
func EmotionComponent(neutral float64) float64 {
	penalty := math.Log(neutral*neutralScale+1) / math.Log(neutralLogBase) / neutralDivisor
	return 1 - math.Min(penalty, 1)
}

// Breakdown holds the per-component values behind a score.
type Breakdown struct {
	Yaw     float64 `json:"yaw"`
	Pitch   float64 `json:"pitch"`
	Smile   float64 `json:"smile"`
	Emotion float64 `json:"emotion"`
	Raw     float64 `json:"raw"`
}

// MaxScore caps scores computed from out-of-range provider values.
const MaxScore = Score(math.MaxUint32)

// Score converts the raw weighted sum to an integer score.
func (b Breakdown) Score() Score {
	if b.Raw <= 0 || math.IsNaN(b.Raw) {
		return 0
	}
	if b.Raw >= float64(MaxScore) {
		return MaxScore
	}
	return Score(math.Floor(b.Raw))
}

// Analyze computes the score components for a face.
func Analyze(face *faceapi.DetectedFace) (Breakdown, error) {
	if face == nil || face.FaceAttributes == nil {
		return Breakdown{}, &MissingAttributeError{Attribute: "faceAttributes"}
	}
	attrs := face.FaceAttributes
	if attrs.HeadPose == nil {
		return Breakdown{}, &MissingAttributeError{Attribute: string(faceapi.AttributeHeadPose)}
	}
	if attrs.Smile == nil {
		return Breakdown{}, &MissingAttributeError{Attribute: string(faceapi.AttributeSmile)}
	}
	neutral, ok := attrs.Emotion[faceapi.EmotionNeutral]
	if !ok {
		return Breakdown{}, &MissingAttributeError{Attribute: string(faceapi.AttributeEmotion) + "." + faceapi.EmotionNeutral}
	}

	b := Breakdown{
		Yaw:     YawRange.Normalize(attrs.HeadPose.Yaw),
		Pitch:   PitchRange.Normalize(attrs.HeadPose.Pitch),
		Smile:   *attrs.Smile,
		Emotion: EmotionComponent(neutral),
	}
	b.Raw = b.Yaw*YawWeight + b.Pitch*PitchWeight + b.Smile*SmileWeight + b.Emotion*EmotionWeight
	return b, nil
}

// ScoreFace scores a single face.
func ScoreFace(face *faceapi.DetectedFace) (Score, error) {
	b, err := Analyze(face)
	if err != nil {
		return 0, err
	}
	return b.Score(), nil
}
