// Package report turns an analysis result into the values the result view
// renders. Build is pure and holds no state.
package report

import (
	"fmt"

	"github.com/YannKr/deepguard/internal/model"
)

const (
	LabelAuthentic = "AUTHENTIC"
	LabelDeepfake  = "DEEPFAKE DETECTED"

	NoArtifactsMessage = "No manipulation artifacts detected"
)

type Severity string

const (
	SeveritySuccess     Severity = "success"
	SeverityWarning     Severity = "warning"
	SeverityDestructive Severity = "destructive"
)

// SeverityOf grades a confidence percentage.
func SeverityOf(confidence float64) Severity {
	switch {
	case confidence >= 90:
		return SeveritySuccess
	case confidence >= 70:
		return SeverityWarning
	default:
		return SeverityDestructive
	}
}

// Region is an overlay box in percent of the preview's dimensions.
type Region struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SuspiciousBox is the fixed overlay drawn on a negative verdict.
var SuspiciousBox = Region{Top: 25, Left: 25, Width: 50, Height: 50}

type Metric struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent string  `json:"percent"`
}

type Report struct {
	IsReal     bool     `json:"isReal"`
	Label      string   `json:"label"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	// formatted to one decimal, without the percent sign
	ConfidenceText string `json:"confidenceText"`

	ProcessingTime string `json:"processingTime"`
	FacesDetected  int    `json:"facesDetected"`
	FramesAnalyzed int    `json:"framesAnalyzed"`
	FramesLabel    string `json:"framesLabel"`

	Metrics     []Metric `json:"metrics"`
	Artifacts   []string `json:"artifacts"`
	NoArtifacts string   `json:"noArtifacts,omitempty"`

	Preview          string          `json:"preview,omitempty"`
	Kind             model.MediaKind `json:"kind"`
	SuspiciousRegion *Region         `json:"suspiciousRegion,omitempty"`
}

// Build renders r for display. preview may be empty, in which case the
// visual-analysis block is omitted by the view.
func Build(r *model.AnalysisResult, preview string, kind model.MediaKind) Report {
	rep := Report{
		IsReal:         r.IsReal,
		Label:          LabelDeepfake,
		Severity:       SeverityOf(r.Confidence),
		Confidence:     r.Confidence,
		ConfidenceText: fmt.Sprintf("%.1f", r.Confidence),
		ProcessingTime: fmt.Sprintf("%.1f", r.ProcessingTime),
		FacesDetected:  r.FacesDetected,
		FramesAnalyzed: r.FramesAnalyzed,
		FramesLabel:    "Regions",
		Metrics: []Metric{
			metric("Accuracy", r.Metrics.Accuracy),
			metric("Precision", r.Metrics.Precision),
			metric("Recall", r.Metrics.Recall),
			metric("F1 Score", r.Metrics.F1Score),
		},
		Artifacts: append([]string{}, r.DetectedArtifacts...),
		Preview:   preview,
		Kind:      kind,
	}
	if r.IsReal {
		rep.Label = LabelAuthentic
	} else {
		box := SuspiciousBox
		rep.SuspiciousRegion = &box
	}
	if kind == model.KindVideo {
		rep.FramesLabel = "Frames"
	}
	if len(rep.Artifacts) == 0 {
		rep.NoArtifacts = NoArtifactsMessage
	}
	return rep
}

func metric(label string, v float64) Metric {
	return Metric{Label: label, Value: v * 100, Percent: fmt.Sprintf("%.1f", v*100)}
}

// HasPreview reports whether the visual-analysis block should render.
func (r Report) HasPreview() bool { return r.Preview != "" }

// IsVideo picks the preview element.
func (r Report) IsVideo() bool { return r.Kind == model.KindVideo }
