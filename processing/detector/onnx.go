package detector

import (
	"context"
	"fmt"
	"image"

	"annotator/internal/models"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

type onnxModel struct {
	name       string
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	params     yoloParams
	logger     *zap.Logger
}

func (l *Loader) loadONNX(path string) (Model, error) {
	if err := l.initRuntime(); err != nil {
		return nil, errors.Wrap(err, "onnxruntime init")
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, errors.Wrap(err, "read model io")
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, errors.Errorf("expected 1 input and at least 1 output, got %d/%d", len(inputs), len(outputs))
	}

	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return nil, errors.Errorf("input %q is %v, want float32", in.Name, in.DataType)
	}
	if len(in.Dimensions) != 4 {
		return nil, errors.Errorf("input %q has shape %v, want NCHW", in.Name, in.Dimensions)
	}

	inH, inW := int(in.Dimensions[2]), int(in.Dimensions[3])
	if inH <= 0 {
		inH = l.cfg.Onnx.DefaultInput
	}
	if inW <= 0 {
		inW = l.cfg.Onnx.DefaultInput
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "session options")
	}
	defer opts.Destroy()

	if n := l.cfg.Onnx.IntraOpThread; n > 0 {
		if err := opts.SetIntraOpNumThreads(n); err != nil {
			return nil, errors.Wrap(err, "set intra-op threads")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}

	m := &onnxModel{
		name:       modelName(path),
		session:    session,
		inputName:  in.Name,
		outputName: outputs[0].Name,
		params: yoloParams{
			inW:        inW,
			inH:        inH,
			labels:     l.onnxLabels(path),
			confidence: l.cfg.Onnx.Confidence,
			iou:        float64(l.cfg.Onnx.IoU),
		},
		logger: l.logger,
	}

	return m, nil
}

// onnxLabels prefers a sidecar yaml, then the "names" metadata Ultralytics
// exports embed in the model.
func (l *Loader) onnxLabels(path string) []string {
	names, src, err := sidecarLabels(path)
	if err == nil {
		l.logger.Debug("labels from sidecar", zap.String("file", src), zap.Int("count", len(names)))
		return names
	}
	if src != "" {
		l.logger.Warn("bad labels file", zap.String("file", src), zap.Error(err))
	}

	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil
	}
	defer meta.Destroy()

	raw, ok, err := meta.LookupCustomMetadataMap("names")
	if err != nil || !ok {
		return nil
	}

	names, err = ParseNames([]byte(raw))
	if err != nil {
		l.logger.Warn("bad names metadata", zap.String("model", path), zap.Error(err))
		return nil
	}
	return names
}

func (m *onnxModel) Name() string { return m.name }

func (m *onnxModel) Detect(ctx context.Context, img image.Image) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	pixels, err := toCHW(img, m.params.inW, m.params.inH)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConvert, err)
	}

	shape := ort.NewShape(1, 3, int64(m.params.inH), int64(m.params.inW))
	input, err := ort.NewTensor(shape, pixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConvert, err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: output %q is not a float32 tensor", ErrInference, m.outputName)
	}

	dets, err := decodeYOLO(out.GetData(), out.GetShape(), m.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	m.logger.Debug("onnx inference", zap.String("model", m.name), zap.Int("detections", len(dets)))

	return dets, nil
}

func (m *onnxModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
