package ai

import (
	"context"
	"fmt"
	"image"
	"time"

	"objectsguesser/internal/logger"
	"objectsguesser/internal/model"
)

// Result is the outcome of one detection request.
type Result struct {
	Image      image.Image // annotated copy, nil when no input image was given
	Detections []model.Detection
	Rows       []model.Row
}

// Count returns the number of detections.
func (r *Result) Count() int {
	return len(r.Detections)
}

// DetectorService runs the detection pipeline: normalize, infer, filter, annotate, tabulate.
// It holds no per-request state and is safe for concurrent use.
type DetectorService struct {
	model     Model
	annotator *Annotator
	logger    *logger.Logger
}

// NewDetectorService creates a detector around an already loaded model. A nil
// model makes every Detect call fail with ErrModelUnavailable.
func NewDetectorService(m Model, annotator *Annotator, logger *logger.Logger) *DetectorService {
	return &DetectorService{
		model:     m,
		annotator: annotator,
		logger:    logger,
	}
}

// Detect runs the model over img and returns an annotated copy plus one row per
// detection in model order. A nil img yields an empty result and no error.
// threshold is passed through unchanged.
func (s *DetectorService) Detect(ctx context.Context, img image.Image, threshold float64) (*Result, error) {
	if img == nil {
		return &Result{
			Detections: []model.Detection{},
			Rows:       []model.Row{},
		}, nil
	}

	if s.model == nil {
		return nil, ErrModelUnavailable
	}

	start := time.Now()
	normalized := Normalize(img)

	detections, err := s.model.Predict(ctx, normalized, threshold)
	if err != nil {
		return nil, fmt.Errorf("model prediction failed: %w", err)
	}
	detections = filterByThreshold(detections, threshold)

	annotated := s.annotator.Annotate(normalized, detections)

	rows := make([]model.Row, 0, len(detections))
	for _, d := range detections {
		rows = append(rows, model.NewRow(d))
	}

	size := normalized.Bounds().Size()
	s.logger.Info("Detected %d objects in %dx%d image (threshold %.2f) in %v",
		len(detections), size.X, size.Y, threshold, time.Since(start).Round(time.Millisecond))

	return &Result{
		Image:      annotated,
		Detections: detections,
		Rows:       rows,
	}, nil
}

// Available reports whether a model is loaded.
func (s *DetectorService) Available() bool {
	return s.model != nil
}

// Labels returns the model's label vocabulary, or nil when no model is loaded.
func (s *DetectorService) Labels() Labels {
	if s.model == nil {
		return nil
	}
	return s.model.Labels()
}
