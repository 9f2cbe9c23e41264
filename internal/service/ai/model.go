package ai

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"objectsguesser/internal/model"
)

// Supported model kinds.
const (
	KindDETR = "detr"
	KindSSD  = "ssd"
)

// ErrModelUnavailable is returned when no detection network could be loaded.
var ErrModelUnavailable = errors.New("detection model not available")

// Model is a loaded, read-only object detection network.
//
// Predict runs one inference over img and returns the detections whose score is
// at least threshold, with boxes in absolute pixel coordinates of img.
type Model interface {
	Predict(ctx context.Context, img *image.NRGBA, threshold float64) ([]model.Detection, error)
	Labels() Labels
	Close() error
}

// Labels maps model class IDs to human-readable names.
type Labels []string

// Name returns the label for classID, or LABEL_<id> when the ID is outside the vocabulary.
func (l Labels) Name(classID int) string {
	if classID >= 0 && classID < len(l) {
		return l[classID]
	}
	return fmt.Sprintf("LABEL_%d", classID)
}

// LoadLabels reads one label per line. An empty path returns the COCO vocabulary.
func LoadLabels(path string) (Labels, error) {
	if path == "" {
		return COCOLabels, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	var labels Labels
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// COCOLabels is the 91-slot COCO vocabulary shared by DETR and SSD MobileNet,
// with N/A in the unused slots.
var COCOLabels = Labels{
	"N/A", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "N/A", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "N/A", "backpack", "umbrella", "N/A",
	"N/A", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat",
	"baseball glove", "skateboard", "surfboard", "tennis racket", "bottle", "N/A", "wine glass", "cup", "fork", "knife",
	"spoon", "bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza",
	"donut", "cake", "chair", "couch", "potted plant", "bed", "N/A", "dining table", "N/A", "N/A",
	"toilet", "N/A", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "N/A", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}
