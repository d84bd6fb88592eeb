package engagement

import (
	"errors"
	"math"
	"testing"

	"github.com/example/engagement-score/internal/faceapi"
)

func floatPtr(v float64) *float64 { return &v }

func newFace(id string, width, height uint32, yaw, pitch, smile, neutral float64) faceapi.DetectedFace {
	return faceapi.DetectedFace{
		FaceID:        id,
		FaceRectangle: faceapi.FaceRectangle{Width: width, Height: height},
		FaceAttributes: &faceapi.FaceAttributes{
			HeadPose: &faceapi.HeadPose{Yaw: yaw, Pitch: pitch},
			Smile:    floatPtr(smile),
			Emotion:  map[string]float64{faceapi.EmotionNeutral: neutral, faceapi.EmotionHappiness: 1 - neutral},
		},
	}
}

func TestScoreCentredSmilingExpressiveFace(t *testing.T) {
	face := newFace("a", 10, 10, -1.15, -7.35, 1.0, 0.0)

	score, err := ScoreFace(&face)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if score != 680 {
		t.Fatalf("expected 680, got %d", score)
	}
}

func TestScoreFloorsRawValue(t *testing.T) {
	face := newFace("a", 10, 10, -1.15, -7.35, 0.5, 0.0)

	b, err := Analyze(&face)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if b.Raw != 543.5 {
		t.Fatalf("expected raw 543.5, got %v", b.Raw)
	}
	if b.Score() != 543 {
		t.Fatalf("expected 543, got %d", b.Score())
	}
}

func TestScoreCapsOutOfRangeSmile(t *testing.T) {
	for _, smile := range []float64{math.Inf(1), 1e300} {
		face := newFace("a", 10, 10, -1.15, -7.35, smile, 0.0)

		score, err := ScoreFace(&face)
		if err != nil {
			t.Fatalf("expected success, got error: %v", err)
		}
		if score != MaxScore {
			t.Fatalf("smile %v: expected %d, got %d", smile, MaxScore, score)
		}
	}

	if got := (Breakdown{Raw: math.Inf(-1)}).Score(); got != 0 {
		t.Fatalf("expected negative infinity to score 0, got %d", got)
	}
}

func TestScoreLookingAwayOnlyKeepsPitch(t *testing.T) {
	face := newFace("a", 10, 10, 40, -7.35, 0, 1)

	score, err := ScoreFace(&face)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if score != PitchWeight {
		t.Fatalf("expected %d, got %d", PitchWeight, score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	face := newFace("a", 10, 10, 3.2, -11.4, 0.37, 0.42)

	first, err := ScoreFace(&face)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ScoreFace(&face)
		if err != nil {
			t.Fatalf("expected success, got error: %v", err)
		}
		if again != first {
			t.Fatalf("expected %d, got %d", first, again)
		}
	}
}

func TestNormalizeIncreasesTowardMidpoint(t *testing.T) {
	yaws := []float64{-13.3, -10, -5, -2, -1.15}
	prev := -1.0
	for _, yaw := range yaws {
		got := YawRange.Normalize(yaw)
		if got <= prev {
			t.Fatalf("expected normalized yaw to increase at %v: got %v after %v", yaw, got, prev)
		}
		if got < 0 || got > 1 {
			t.Fatalf("normalized yaw out of range at %v: %v", yaw, got)
		}
		prev = got
	}
	if prev != 1 {
		t.Fatalf("expected 1 at the midpoint, got %v", prev)
	}
}

func TestNormalizeSaturatesAtZero(t *testing.T) {
	for _, yaw := range []float64{30, 90, -60} {
		if got := YawRange.Normalize(yaw); got != 0 {
			t.Fatalf("expected 0 for yaw %v, got %v", yaw, got)
		}
	}
	if got := PitchRange.Normalize(45); got != 0 {
		t.Fatalf("expected 0 for pitch 45, got %v", got)
	}
}

func TestMidpoints(t *testing.T) {
	if got := YawRange.Midpoint(); got > -1.149 || got < -1.151 {
		t.Fatalf("unexpected yaw midpoint %v", got)
	}
	if got := PitchRange.Midpoint(); got > -7.349 || got < -7.351 {
		t.Fatalf("unexpected pitch midpoint %v", got)
	}
}

func TestEmotionComponentBounds(t *testing.T) {
	if got := EmotionComponent(0); got != 1 {
		t.Fatalf("expected full contribution for neutral 0, got %v", got)
	}
	if got := EmotionComponent(1); got != 0 {
		t.Fatalf("expected clamped contribution for neutral 1, got %v", got)
	}
	low, high := EmotionComponent(0.1), EmotionComponent(0.5)
	if !(low > high) {
		t.Fatalf("expected component to fall as neutral rises: %v <= %v", low, high)
	}
}

func TestScoreMissingAttributes(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*faceapi.DetectedFace)
		attribute string
	}{
		{"no attributes", func(f *faceapi.DetectedFace) { f.FaceAttributes = nil }, "faceAttributes"},
		{"no head pose", func(f *faceapi.DetectedFace) { f.FaceAttributes.HeadPose = nil }, "headPose"},
		{"no smile", func(f *faceapi.DetectedFace) { f.FaceAttributes.Smile = nil }, "smile"},
		{"no emotion", func(f *faceapi.DetectedFace) { f.FaceAttributes.Emotion = nil }, "emotion.neutral"},
		{"no neutral", func(f *faceapi.DetectedFace) {
			f.FaceAttributes.Emotion = map[string]float64{faceapi.EmotionHappiness: 1}
		}, "emotion.neutral"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			face := newFace("a", 10, 10, 0, 0, 0.5, 0.5)
			tc.mutate(&face)

			_, err := ScoreFace(&face)
			if !errors.Is(err, ErrMissingAttribute) {
				t.Fatalf("expected ErrMissingAttribute, got %v", err)
			}
			var missing *MissingAttributeError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingAttributeError, got %T", err)
			}
			if missing.Attribute != tc.attribute {
				t.Fatalf("expected attribute %q, got %q", tc.attribute, missing.Attribute)
			}
		})
	}
}
