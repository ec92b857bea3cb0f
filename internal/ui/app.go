package ui

import (
	"context"
	"errors"
	"image"
	"sync/atomic"

	"annotator/internal/activity"
	"annotator/internal/config"
	"annotator/internal/ui/cwidget"
	"annotator/internal/workspace"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config    *config.Config
	workspace *workspace.Workspace
	log       *activity.Log
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	imageCanvas *canvas.Image
	statusLabel *widget.Label
	progress    *widget.ProgressBarInfinite
	logList     *widget.List
	themeButton *widget.Button

	running atomic.Int32

	// touched on the UI goroutine only
	logLines []string
}

// NewWindow creates the fyne application and its main window. The window is
// needed before the workspace so the pickers can parent their dialogs.
func NewWindow() (fyne.App, fyne.Window) {
	a := app.NewWithID("io.annotator.desktop")
	w := a.NewWindow("Annotator")

	w.Resize(fyne.NewSize(1200, 720))

	return a, w
}

func CreateApp(a fyne.App, w fyne.Window, ws *workspace.Workspace, cfg *config.Config, log *activity.Log, logger *zap.Logger) *DetectApp {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &DetectApp{
		fyneApp:   a,
		mainWin:   w,
		config:    cfg,
		workspace: ws,
		log:       log,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (a *DetectApp) Run() {
	a.fyneApp.Settings().SetTheme(newVariantTheme(a.config.GetDarkMode()))

	a.imageCanvas = canvas.NewImageFromImage(nil)
	a.imageCanvas.FillMode = canvas.ImageFillContain
	a.imageCanvas.SetMinSize(fyne.NewSize(640, 640))

	a.statusLabel = widget.NewLabel("No image selected")
	a.progress = widget.NewProgressBarInfinite()
	a.progress.Hide()

	imageContainer := container.NewBorder(
		container.NewHBox(a.statusLabel, a.progress),
		nil, nil, nil,
		a.imageCanvas,
	)

	split := container.NewHSplit(
		container.NewPadded(a.sidebar()),
		container.NewPadded(imageContainer),
	)
	split.SetOffset(0.35)

	a.mainWin.SetContent(split)

	a.log.Subscribe(func() {
		fyne.Do(a.refreshLog)
	})

	a.mainWin.SetCloseIntercept(func() {
		a.cancel()
		go func() {
			if err := a.workspace.Close(); err != nil {
				a.logger.Warn("workspace close", zap.Error(err))
			}
			fyne.Do(a.mainWin.Close)
		}()
	})

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DetectApp) sidebar() fyne.CanvasObject {
	title := widget.NewLabelWithStyle("Object Detection", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	selectImage := widget.NewButtonWithIcon("Select Image", theme.FileImageIcon(), a.selectImage)
	selectImage.Importance = widget.HighImportance

	selectModels := widget.NewButtonWithIcon("Select Models", theme.FolderOpenIcon(), a.selectModels)
	selectModels.Importance = widget.SuccessImportance

	runInference := widget.NewButtonWithIcon("Run Inference", theme.MediaPlayIcon(), a.runInference)
	runInference.Importance = widget.WarningImportance

	minConfidence := cwidget.NewRangeInput(
		"Min confidence %",
		"0-100",
		int(a.config.GetMinConfidence()*100+0.5),
		0, 100,
		func(v int) {
			a.config.SetMinConfidence(float64(v) / 100)
		},
	)

	a.themeButton = widget.NewButton(themeToggleText(a.config.GetDarkMode()), a.toggleTheme)

	a.logList = widget.NewList(
		func() int { return len(a.logLines) },
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.Wrapping = fyne.TextWrapWord
			return l
		},
		func(id widget.ListItemID, o fyne.CanvasObject) {
			if id < len(a.logLines) {
				o.(*widget.Label).SetText(a.logLines[id])
			}
		},
	)

	clearLogs := widget.NewButtonWithIcon("Clear Logs", theme.DeleteIcon(), a.log.Clear)

	controls := container.NewVBox(
		title,
		widget.NewSeparator(),
		selectImage,
		selectModels,
		runInference,
		widget.NewSeparator(),
		minConfidence,
		a.themeButton,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Logs", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
	)

	return container.NewBorder(controls, clearLogs, nil, nil, a.logList)
}

func (a *DetectApp) selectImage() {
	go func() {
		img, ok := a.workspace.SelectImage(a.ctx)
		if !ok {
			return
		}
		a.showImage(img, "Image ready")
	}()
}

func (a *DetectApp) selectModels() {
	go func() {
		_, msg := a.workspace.SelectModels(a.ctx)
		fyne.Do(func() {
			a.statusLabel.SetText(msg)
		})
	}()
}

func (a *DetectApp) runInference() {
	a.setBusy(1)

	go func() {
		defer a.setBusy(-1)

		res, err := a.workspace.RunInference(a.ctx)
		switch {
		case errors.Is(err, workspace.ErrStale), errors.Is(err, context.Canceled):
			return
		case err != nil:
			a.logger.Debug("inference did not produce an image", zap.Error(err))
			fyne.Do(func() {
				a.statusLabel.SetText("Inference failed")
			})
			return
		}

		a.logger.Info("inference shown",
			zap.String("run", res.ID),
			zap.Int("detections", res.Detections),
			zap.Duration("elapsed", res.Elapsed))
		a.showImage(res.Image, "Inference complete")
	}()
}

func (a *DetectApp) showImage(img image.Image, status string) {
	fyne.Do(func() {
		a.imageCanvas.Image = img
		a.imageCanvas.Refresh()
		a.statusLabel.SetText(status)
	})
}

func (a *DetectApp) setBusy(delta int32) {
	busy := a.running.Add(delta) > 0
	fyne.Do(func() {
		if busy {
			a.progress.Show()
			a.progress.Start()
		} else {
			a.progress.Stop()
			a.progress.Hide()
		}
	})
}

func (a *DetectApp) toggleTheme() {
	dark := !a.config.GetDarkMode()
	a.config.SetDarkMode(dark)

	a.fyneApp.Settings().SetTheme(newVariantTheme(dark))
	a.themeButton.SetText(themeToggleText(dark))
}

func (a *DetectApp) refreshLog() {
	a.logLines = a.log.Snapshot()
	a.logList.Refresh()
	if n := len(a.logLines); n > 0 {
		a.logList.ScrollToBottom()
	}
}
