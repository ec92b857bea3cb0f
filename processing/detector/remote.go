package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/url"
	"os"
	"time"

	"annotator/internal/models"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RemoteDescriptor is the content of a .wsdet artifact: a detection server
// reachable over websocket.
type RemoteDescriptor struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DetectionResult is one element of the server's JSON reply. Box is
// [x, y, w, h] normalized to the frame that was sent.
type DetectionResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

type RemoteDetector struct {
	name      string
	serverURL string
	timeout   time.Duration
	dialer    *websocket.Dialer
	logger    *zap.Logger
}

func (l *Loader) loadRemote(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var desc RemoteDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrap(err, "parse descriptor")
	}

	if desc.Name == "" {
		desc.Name = modelName(path)
	}
	if desc.Timeout <= 0 {
		desc.Timeout = l.cfg.RemoteTimeout()
	}

	return NewRemoteDetector(desc, l.logger)
}

func NewRemoteDetector(desc RemoteDescriptor, logger *zap.Logger) (*RemoteDetector, error) {
	u, err := url.Parse(desc.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.Errorf("url %q: scheme must be ws or wss", desc.URL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("url %q has no host", desc.URL)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &RemoteDetector{
		name:      desc.Name,
		serverURL: u.String(),
		timeout:   desc.Timeout,
		dialer:    &websocket.Dialer{HandshakeTimeout: desc.Timeout},
		logger:    logger,
	}, nil
}

func (d *RemoteDetector) Name() string { return d.name }

// Detect sends img as one JPEG binary message and waits for one JSON reply.
func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) ([]models.Detection, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrConvert)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %w", ErrConvert, err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrInference, d.serverURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: send frame: %w", ErrInference, err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("%w: read reply: %w", ErrInference, err)
	}

	var results []DetectionResult
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, fmt.Errorf("%w: decode reply: %w", ErrInference, err)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	dets := make([]models.Detection, 0, len(results))
	for _, r := range results {
		if len(r.Box) != 4 {
			return nil, fmt.Errorf("%w: box has %d values, want 4", ErrInference, len(r.Box))
		}
		dets = append(dets, models.Detection{
			Label:      r.Label,
			Confidence: float64(r.Confidence),
			Box: models.Box{
				X: float64(r.Box[0]),
				Y: float64(r.Box[1]),
				W: float64(r.Box[2]),
				H: float64(r.Box[3]),
			}.Clamp(),
		})
	}

	d.logger.Debug("remote inference", zap.String("model", d.name), zap.Int("detections", len(dets)))

	return dets, nil
}

func (d *RemoteDetector) Close() error { return nil }
