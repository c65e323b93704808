package ui

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/events"
	"github.com/courtcut/courtcut-agent/internal/logging"
)

//go:embed icon.png
var iconBytes []byte

// Canceller stops a running encoder process.
type Canceller interface {
	Cancel(processID string) bool
}

// Subscriber registers in-process event listeners.
type Subscriber interface {
	AddListener(l events.Listener)
	RemoveListener(l events.Listener)
}

type Tray struct {
	canceller Canceller
	events    Subscriber
	tracker   *Tracker
	logger    *slog.Logger

	statusItem *systray.MenuItem
	clipsItem  *systray.MenuItem
	cancelItem *systray.MenuItem

	mu    sync.Mutex
	ready bool

	onQuit func()
}

type TrayConfig struct {
	CatalogService catalog.CatalogService
	Canceller      Canceller
	Events         Subscriber
	Logger         *slog.Logger
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	t := &Tray{
		canceller: cfg.Canceller,
		events:    cfg.Events,
		logger:    logging.WithComponent(logging.OrDiscard(cfg.Logger), "tray"),
		onQuit:    cfg.OnQuit,
	}
	clips := 0
	if cfg.CatalogService != nil {
		clips = cfg.CatalogService.CountClips(context.Background())
	}
	t.tracker = NewTracker(clips, t.render)
	return t
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("CourtCut")
	systray.SetTooltip("CourtCut Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.clipsItem = systray.AddMenuItem("0 clips", "Clips in the library")
	t.clipsItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel clip", "Stop the clip being encoded")
	t.cancelItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit CourtCut Agent")

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()
	t.render(t.tracker.Status())

	if t.events != nil {
		t.events.AddListener(t.tracker)
	}

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.cancelActive()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	if t.events != nil {
		t.events.RemoveListener(t.tracker)
	}
	t.logger.Info("system tray exiting")
}

func (t *Tray) cancelActive() {
	processID, ok := t.tracker.ActiveProcess()
	if !ok || t.canceller == nil {
		return
	}
	found := t.canceller.Cancel(processID)
	t.logger.Info("cancel requested from tray", "process_id", processID, "found", found)
}

func (t *Tray) render(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	t.statusItem.SetTitle(s.Title())
	t.clipsItem.SetTitle(s.ClipsTitle())
	if s.ProcessID != "" {
		t.cancelItem.Enable()
	} else {
		t.cancelItem.Disable()
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
