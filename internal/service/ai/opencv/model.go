// Package opencv runs detection networks through OpenCV's DNN module.
package opencv

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"
	"runtime"

	"gocv.io/x/gocv"

	"objectsguesser/internal/config"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/model"
	"objectsguesser/internal/service/ai"
)

// Output layer names of the exported DETR graph.
var detrOutputs = []string{"logits", "pred_boxes"}

const ssdInputSize = 300

// Model is a pool of identical networks. Each network serves one prediction at
// a time; concurrent callers wait for a free instance.
type Model struct {
	kind   string
	labels ai.Labels
	pool   chan *gocv.Net
	nets   []*gocv.Net
	logger *logger.Logger
}

// NewModel loads cfg.ModelInstances copies of the configured network.
func NewModel(cfg *config.Config, labels ai.Labels, logger *logger.Logger) (*Model, error) {
	if cfg.ModelKind != ai.KindDETR && cfg.ModelKind != ai.KindSSD {
		return nil, fmt.Errorf("unsupported model kind: %s", cfg.ModelKind)
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.ModelKind == ai.KindSSD {
		if _, err := os.Stat(cfg.ConfigPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	instances := max(cfg.ModelInstances, 1)
	m := &Model{
		kind:   cfg.ModelKind,
		labels: labels,
		pool:   make(chan *gocv.Net, instances),
		logger: logger,
	}

	for i := 0; i < instances; i++ {
		net, err := loadNet(cfg)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.nets = append(m.nets, net)
		m.pool <- net
	}

	logger.Info("Detection network %s initialized (%d instances)", cfg.ModelKind, instances)
	return m, nil
}

// Load is NewModel returned as an ai.Model, for use as an app.ModelLoader.
func Load(cfg *config.Config, labels ai.Labels, logger *logger.Logger) (ai.Model, error) {
	m, err := NewModel(cfg, labels, logger)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func loadNet(cfg *config.Config) (*gocv.Net, error) {
	var net gocv.Net
	if cfg.ModelKind == ai.KindDETR {
		net = gocv.ReadNetFromONNX(cfg.ModelPath)
	} else {
		net = gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	}

	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &net, nil
}

// Predict implements ai.Model.
func (m *Model) Predict(ctx context.Context, img *image.NRGBA, threshold float64) ([]model.Detection, error) {
	var net *gocv.Net
	select {
	case net = <-m.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.pool <- net }()

	if m.kind == ai.KindDETR {
		return m.predictDETR(net, img, threshold)
	}
	return m.predictSSD(net, img, threshold)
}

func (m *Model) predictDETR(net *gocv.Net, img *image.NRGBA, threshold float64) ([]model.Detection, error) {
	tensor, inputSize := ai.PrepareDETRInput(img)

	data := make([]byte, len(tensor)*4)
	for i, v := range tensor {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, 3, inputSize.Y, inputSize.X}, gocv.MatTypeCV32F, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input blob: %w", err)
	}
	defer blob.Close()

	net.SetInput(blob, "")
	outputs := net.ForwardLayers(detrOutputs)
	runtime.KeepAlive(data)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	if len(outputs) != len(detrOutputs) {
		return nil, fmt.Errorf("expected %d outputs, got %d", len(detrOutputs), len(outputs))
	}

	logits, err := outputs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read logits: %w", err)
	}
	boxes, err := outputs[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read boxes: %w", err)
	}

	// logits: [1, queries, classes+1]
	dims := outputs[0].Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected logits shape %v", dims)
	}

	return ai.DecodeDETR(logits, boxes, dims[1], dims[2], img.Bounds().Size(), threshold, m.labels)
}

func (m *Model) predictSSD(net *gocv.Net, img *image.NRGBA, threshold float64) ([]model.Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("converted image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(ssdInputSize, ssdInputSize), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	// [1, 1, N, 7]
	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read detections: %w", err)
	}

	return ai.DecodeSSD(values, img.Bounds().Size(), threshold, m.labels), nil
}

// Labels implements ai.Model.
func (m *Model) Labels() ai.Labels {
	return m.labels
}

// Close releases every network in the pool.
func (m *Model) Close() error {
	for _, net := range m.nets {
		if err := net.Close(); err != nil {
			m.logger.Warning("Failed to close network: %v", err)
		}
	}
	m.nets = nil
	return nil
}
