package ai

import (
	"fmt"
	"image"
	"math"

	"objectsguesser/internal/model"
)

// ssdRowSize is the width of one SSD output row: [batch_id, class_id, confidence, x1, y1, x2, y2].
const ssdRowSize = 7

// DecodeDETR turns raw DETR outputs into detections.
//
// logits holds numQueries rows of numLogits class scores where the last class is
// "no object"; boxes holds numQueries rows of normalized (cx, cy, w, h). Boxes are
// scaled to size, clipped to the image and dropped when they collapse.
func DecodeDETR(logits, boxes []float32, numQueries, numLogits int, size image.Point, threshold float64, labels Labels) ([]model.Detection, error) {
	if numLogits < 2 {
		return nil, fmt.Errorf("expected at least 2 logits per query, got %d", numLogits)
	}
	if len(logits) < numQueries*numLogits {
		return nil, fmt.Errorf("logits too short: %d values for %d queries", len(logits), numQueries)
	}
	if len(boxes) < numQueries*4 {
		return nil, fmt.Errorf("boxes too short: %d values for %d queries", len(boxes), numQueries)
	}

	width := float64(size.X)
	height := float64(size.Y)
	results := []model.Detection{}

	for q := 0; q < numQueries; q++ {
		classID, score := bestClass(logits[q*numLogits : (q+1)*numLogits])
		if score < threshold {
			continue
		}

		cx := float64(boxes[q*4])
		cy := float64(boxes[q*4+1])
		w := float64(boxes[q*4+2])
		h := float64(boxes[q*4+3])

		box, ok := clipBox(model.Box{
			X1: (cx - w/2) * width,
			Y1: (cy - h/2) * height,
			X2: (cx + w/2) * width,
			Y2: (cy + h/2) * height,
		}, width, height)
		if !ok {
			continue
		}

		results = append(results, model.Detection{
			Label: labels.Name(classID),
			Score: score,
			Box:   box,
		})
	}

	return results, nil
}

// bestClass applies softmax over all logits and returns the arg-max among the real
// classes, ignoring the trailing "no object" class.
func bestClass(logits []float32) (int, float64) {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, float64(v))
	}

	sum := 0.0
	for _, v := range logits {
		sum += math.Exp(float64(v) - maxLogit)
	}

	bestID := 0
	best := math.Inf(-1)
	for i := 0; i < len(logits)-1; i++ {
		if float64(logits[i]) > best {
			best = float64(logits[i])
			bestID = i
		}
	}

	return bestID, math.Exp(best-maxLogit) / sum
}

// DecodeSSD turns the flat SSD MobileNet output into detections.
func DecodeSSD(values []float32, size image.Point, threshold float64, labels Labels) []model.Detection {
	width := float64(size.X)
	height := float64(size.Y)
	results := []model.Detection{}

	for i := 0; i+ssdRowSize <= len(values); i += ssdRowSize {
		row := values[i : i+ssdRowSize]
		confidence := float64(row[2])
		if confidence < threshold {
			continue
		}

		box, ok := clipBox(model.Box{
			X1: float64(row[3]) * width,
			Y1: float64(row[4]) * height,
			X2: float64(row[5]) * width,
			Y2: float64(row[6]) * height,
		}, width, height)
		if !ok {
			continue
		}

		results = append(results, model.Detection{
			Label: labels.Name(int(row[1])),
			Score: confidence,
			Box:   box,
		})
	}

	return results
}

// clipBox clamps the box to [0,width]x[0,height] and reports whether it still has area.
func clipBox(b model.Box, width, height float64) (model.Box, bool) {
	b.X1 = clamp(b.X1, 0, width)
	b.Y1 = clamp(b.Y1, 0, height)
	b.X2 = clamp(b.X2, 0, width)
	b.Y2 = clamp(b.Y2, 0, height)
	return b, b.X1 < b.X2 && b.Y1 < b.Y2
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// filterByThreshold keeps detections whose score is at least threshold, preserving order.
func filterByThreshold(detections []model.Detection, threshold float64) []model.Detection {
	filtered := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= threshold {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
