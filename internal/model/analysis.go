package model

import (
	"fmt"
	"strings"
)

type MediaKind string

const (
	KindImage       MediaKind = "image"
	KindVideo       MediaKind = "video"
	KindUnsupported MediaKind = "unsupported"
)

// KindOf derives the media kind from a declared content type.
func KindOf(contentType string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	default:
		return KindUnsupported
	}
}

// ArtifactCatalog is the fixed, ordered list of artifacts a negative verdict
// reports a prefix of.
var ArtifactCatalog = []string{
	"Unnatural eye blinking pattern detected",
	"Facial boundary inconsistencies found",
	"Texture anomalies in skin regions",
	"Temporal inconsistencies between frames",
}

const (
	MinArtifacts = 2
	MaxArtifacts = 4
)

type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1Score"`
}

type AnalysisResult struct {
	IsReal            bool     `json:"isReal"`
	Confidence        float64  `json:"confidence"`
	ProcessingTime    float64  `json:"processingTime"`
	Metrics           Metrics  `json:"metrics"`
	DetectedArtifacts []string `json:"detectedArtifacts"`
	FacesDetected     int      `json:"facesDetected"`
	FramesAnalyzed    int      `json:"framesAnalyzed"`
}

// Validate checks the ranges and the artifact invariant.
func (r *AnalysisResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 100 {
		return fmt.Errorf("confidence %v out of range", r.Confidence)
	}
	for name, v := range map[string]float64{
		"accuracy":  r.Metrics.Accuracy,
		"precision": r.Metrics.Precision,
		"recall":    r.Metrics.Recall,
		"f1Score":   r.Metrics.F1Score,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %v out of range", name, v)
		}
	}
	if r.FacesDetected < 1 {
		return fmt.Errorf("facesDetected %d < 1", r.FacesDetected)
	}
	if r.FramesAnalyzed < 1 {
		return fmt.Errorf("framesAnalyzed %d < 1", r.FramesAnalyzed)
	}

	n := len(r.DetectedArtifacts)
	if r.IsReal {
		if n != 0 {
			return fmt.Errorf("authentic verdict carries %d artifacts", n)
		}
		return nil
	}
	if n < MinArtifacts || n > MaxArtifacts {
		return fmt.Errorf("artifact count %d outside [%d,%d]", n, MinArtifacts, MaxArtifacts)
	}
	for i, a := range r.DetectedArtifacts {
		if a != ArtifactCatalog[i] {
			return fmt.Errorf("artifact %d is %q, want %q", i, a, ArtifactCatalog[i])
		}
	}
	return nil
}

type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateFileSelected SessionState = "file_selected"
	StateAnalyzing    SessionState = "analyzing"
	StateResultShown  SessionState = "result_shown"
)

// MediaInfo is the display-side view of a selected file.
type MediaInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Kind    MediaKind `json:"kind"`
	Size    int64     `json:"size"`
	SHA256  string    `json:"sha256"`
	Preview string    `json:"preview,omitempty"`

	// PreviewUnavailable is set once preview generation has failed.
	PreviewUnavailable bool `json:"previewUnavailable,omitempty"`
}
