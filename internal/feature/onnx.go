//go:build cgo
// +build cgo

package feature

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/utsushi/pkg/utils"
)

// ONNXConfig describes an image model exported to ONNX. The model takes a
// (1, 3, ImageSize, ImageSize) float tensor and emits (1, Dimensions).
type ONNXConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
	Dimensions int
	ImageSize  int
}

// ONNXExtractor uses ONNX Runtime to run an image model. It requires CGO and the onnxruntime shared library.
type ONNXExtractor struct {
	session      *ort.AdvancedSession
	dimensions   int
	imageSize    int
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXExtractor creates an ONNX extractor. InitializeEnvironment is called if not already done.
func NewONNXExtractor(cfg ONNXConfig) (*ONNXExtractor, error) {
	if cfg.Dimensions <= 0 || cfg.ImageSize <= 0 {
		return nil, fmt.Errorf("dimensions and image size must be positive")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	size := int64(cfg.ImageSize)
	inputData := make([]float32, 3*size*size)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, size, size), inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputData := make([]float32, cfg.Dimensions)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(cfg.Dimensions)), outputData)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXExtractor{
		session:      session,
		dimensions:   cfg.Dimensions,
		imageSize:    cfg.ImageSize,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Extract decodes data, runs the model and returns the L2-normalised output.
func (e *ONNXExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	input := Preprocess(img, e.imageSize)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, fmt.Errorf("extractor is closed")
	}
	copy(e.inputTensor.GetData(), input)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, e.outputTensor.GetData()[:e.dimensions])
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the feature dimension.
func (e *ONNXExtractor) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
