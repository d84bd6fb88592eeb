package engagement

import "github.com/example/engagement-score/internal/faceapi"

// LargestFace returns the face with the greatest bounding-box area. Ties go to
// the face that appears first.
func LargestFace(faces faceapi.DetectionResult) (*faceapi.DetectedFace, bool) {
	if len(faces) == 0 {
		return nil, false
	}
	best := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].FaceRectangle.Area() > faces[best].FaceRectangle.Area() {
			best = i
		}
	}
	return &faces[best], true
}

// Evaluation is the outcome of scoring one detection result.
type Evaluation struct {
	Score     Score
	Face      *faceapi.DetectedFace
	Breakdown Breakdown
}

// Evaluate scores the largest face. An empty result scores 0 with a nil Face.
func Evaluate(faces faceapi.DetectionResult) (Evaluation, error) {
	face, ok := LargestFace(faces)
	if !ok {
		return Evaluation{}, nil
	}
	b, err := Analyze(face)
	if err != nil {
		return Evaluation{Face: face}, err
	}
	return Evaluation{Score: b.Score(), Face: face, Breakdown: b}, nil
}
