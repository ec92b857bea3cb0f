package main

import (
	"annotator/internal/activity"
	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/ui"
	"annotator/internal/workspace"
	"annotator/processing/annotate"
	"annotator/processing/capture"
	"annotator/processing/catalog"
	"annotator/processing/detector"
	"annotator/processing/imagesource"
	"annotator/processing/inference"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.Must(cfg.Debug)
	defer func() { _ = log.Sync() }()

	activityLog := activity.New(cfg.LogRetention, log.Named("activity"))

	fyneApp, win := ui.NewWindow()
	picker := ui.NewPicker(win, log.Named("picker"))

	loader := detector.NewLoader(cfg, log.Named("detector"))
	defer func() {
		if err := loader.Close(); err != nil {
			log.Warn("onnxruntime shutdown", zap.Error(err))
		}
	}()

	source := imagesource.New(
		picker,
		capture.NewStillDecoder(cfg.FFmpegPath),
		cfg.Canvas.Width, cfg.Canvas.Height,
		activityLog, log.Named("image"),
	)

	models := catalog.New(picker, loader, activityLog, log.Named("catalog"))

	style := annotate.Style{
		Color:       annotate.Red,
		StrokeWidth: cfg.Canvas.StrokeWidth,
		FontSize:    float64(cfg.Canvas.FontSize),
	}
	runner := inference.NewRunner(style, cfg.GetMinConfidence, activityLog, log.Named("inference"))

	ws := workspace.New(source, models, runner, activityLog, log)

	log.Info("starting",
		zap.Int("canvas_width", cfg.Canvas.Width),
		zap.Int("canvas_height", cfg.Canvas.Height),
		zap.Strings("model_types", loader.Extensions()))

	ui.CreateApp(fyneApp, win, ws, cfg, activityLog, log).Run()

	// no-op when the window's close handler already ran; must finish before
	// the deferred onnxruntime shutdown
	if err := ws.Close(); err != nil {
		log.Warn("workspace close", zap.Error(err))
	}
}
