// Package faceapi defines the face detection capability consumed by the
// engagement scorer and the data model returned by detection providers.
package faceapi

import (
	"context"
	"fmt"
	"strings"
)

// Detector exposes the subset of a face detection provider used by the scoring flow.
type Detector interface {
	Detect(ctx context.Context, imageBytes []byte, attributes []Attribute) (DetectionResult, error)
}

// Attribute names a face attribute the provider can be asked to return.
type Attribute string

const (
	AttributeAge         Attribute = "age"
	AttributeGender      Attribute = "gender"
	AttributeHeadPose    Attribute = "headPose"
	AttributeSmile       Attribute = "smile"
	AttributeFacialHair  Attribute = "facialHair"
	AttributeGlasses     Attribute = "glasses"
	AttributeEmotion     Attribute = "emotion"
	AttributeHair        Attribute = "hair"
	AttributeMakeup      Attribute = "makeup"
	AttributeOcclusion   Attribute = "occlusion"
	AttributeAccessories Attribute = "accessories"
	AttributeBlur        Attribute = "blur"
	AttributeExposure    Attribute = "exposure"
	AttributeNoise       Attribute = "noise"
)

// AllAttributes is the full attribute set, in the order the provider documents them.
var AllAttributes = []Attribute{
	AttributeAge,
	AttributeGender,
	AttributeHeadPose,
	AttributeSmile,
	AttributeFacialHair,
	AttributeGlasses,
	AttributeEmotion,
	AttributeHair,
	AttributeMakeup,
	AttributeOcclusion,
	AttributeAccessories,
	AttributeBlur,
	AttributeExposure,
	AttributeNoise,
}

// ParseAttributes converts a comma separated list into attributes. An empty
// list yields AllAttributes.
func ParseAttributes(list string) ([]Attribute, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return append([]Attribute(nil), AllAttributes...), nil
	}

	known := make(map[string]Attribute, len(AllAttributes))
	for _, attr := range AllAttributes {
		known[strings.ToLower(string(attr))] = attr
	}

	var attrs []Attribute
	seen := make(map[Attribute]bool)
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		attr, ok := known[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown face attribute %q", name)
		}
		if seen[attr] {
			continue
		}
		seen[attr] = true
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// JoinAttributes renders attributes in the provider's comma separated query form.
func JoinAttributes(attrs []Attribute) string {
	names := make([]string, len(attrs))
	for i, attr := range attrs {
		names[i] = string(attr)
	}
	return strings.Join(names, ",")
}
