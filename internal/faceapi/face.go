package faceapi

// DetectionResult is the ordered list of faces found in one image. It may be empty.
type DetectionResult []DetectedFace

// DetectedFace is a single face returned by the provider.
type DetectedFace struct {
	FaceID           string                `json:"faceId,omitempty"`
	FaceRectangle    FaceRectangle         `json:"faceRectangle"`
	FaceLandmarks    map[string]Coordinate `json:"faceLandmarks,omitempty"`
	FaceAttributes   *FaceAttributes       `json:"faceAttributes,omitempty"`
	RecognitionModel string                `json:"recognitionModel,omitempty"`
}

// FaceRectangle is the face bounding box in pixels.
type FaceRectangle struct {
	Top    uint32 `json:"top"`
	Left   uint32 `json:"left"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Area returns width*height without wraparound.
func (r FaceRectangle) Area() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}

// Coordinate is a landmark position in pixels.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FaceAttributes holds whichever attributes were requested. Absent attributes
// stay nil so callers can tell "not requested" from a zero value.
type FaceAttributes struct {
	HeadPose    *HeadPose          `json:"headPose,omitempty"`
	Smile       *float64           `json:"smile,omitempty"`
	Emotion     map[string]float64 `json:"emotion,omitempty"`
	Age         *float64           `json:"age,omitempty"`
	Gender      string             `json:"gender,omitempty"`
	FacialHair  *FacialHair        `json:"facialHair,omitempty"`
	Glasses     string             `json:"glasses,omitempty"`
	Makeup      *Makeup            `json:"makeup,omitempty"`
	Accessories []Accessory        `json:"accessories,omitempty"`
	Occlusion   *Occlusion         `json:"occlusion,omitempty"`
	Hair        *Hair              `json:"hair,omitempty"`
	Blur        *Blur              `json:"blur,omitempty"`
	Exposure    *Exposure          `json:"exposure,omitempty"`
	Noise       *Noise             `json:"noise,omitempty"`
}

// HeadPose angles are in degrees.
type HeadPose struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Emotion keys reported by the provider.
const (
	EmotionAnger     = "anger"
	EmotionContempt  = "contempt"
	EmotionDisgust   = "disgust"
	EmotionFear      = "fear"
	EmotionHappiness = "happiness"
	EmotionNeutral   = "neutral"
	EmotionSadness   = "sadness"
	EmotionSurprise  = "surprise"
)

type FacialHair struct {
	Moustache float64 `json:"moustache"`
	Beard     float64 `json:"beard"`
	Sideburns float64 `json:"sideburns"`
}

type Makeup struct {
	EyeMakeup bool `json:"eyeMakeup"`
	LipMakeup bool `json:"lipMakeup"`
}

type Accessory struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type Occlusion struct {
	ForeheadOccluded bool `json:"foreheadOccluded"`
	EyeOccluded      bool `json:"eyeOccluded"`
	MouthOccluded    bool `json:"mouthOccluded"`
}

type Hair struct {
	Bald      float64     `json:"bald"`
	Invisible bool        `json:"invisible"`
	HairColor []HairColor `json:"hairColor,omitempty"`
}

type HairColor struct {
	Color      string  `json:"color"`
	Confidence float64 `json:"confidence"`
}

type Blur struct {
	BlurLevel string  `json:"blurLevel"`
	Value     float64 `json:"value"`
}

type Exposure struct {
	ExposureLevel string  `json:"exposureLevel"`
	Value         float64 `json:"value"`
}

type Noise struct {
	NoiseLevel string  `json:"noiseLevel"`
	Value      float64 `json:"value"`
}
