// Package tray provides a system tray menu for the tracker.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/control"
)

// lastRefresh limits how often the "Last" item is retitled.
const lastRefresh = 250 * time.Millisecond

// Tray is the tracker's menu bar item: pause/resume, the last published
// values and Quit.
type Tray struct {
	onToggle func(enabled bool)
	onQuit   func()
	monitor  string
	enabled  bool
	mu       sync.RWMutex

	last      control.Message
	hasLast   bool
	shown     bool
	lastShown time.Time
	setLast   func(title string)

	menuToggle *systray.MenuItem
}

// New creates a new Tray with publishing enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback run when publishing is paused or resumed.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback run when Quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// SetMonitorURL shows the monitor address in the menu.
func (t *Tray) SetMonitorURL(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.monitor = url
}

// Run shows the tray and blocks until Quit. It must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("mudra")
	systray.SetTooltip("mudra hand tracker")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume publishing")
	systray.AddSeparator()

	menuLast := systray.AddMenuItem("Last: none", "Last published control message")
	menuLast.Disable()
	t.setLast = menuLast.SetTitle

	if t.monitor != "" {
		m := systray.AddMenuItem("Monitor: "+t.monitor, "Monitor address")
		m.Disable()
	}
	t.mu.Unlock()

	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Stop the tracker")

	go func() {
		ticker := time.NewTicker(lastRefresh)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				t.refreshLast(now)
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Publishing"
	}
	return "○ Paused"
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// onToggle may call back into the tracker; run it unlocked.
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// ObserveControl records m as the last published value. The menu item is
// retitled at most once per lastRefresh; a value held back is shown by the
// next refresh.
func (t *Tray) ObserveControl(m control.Message, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = m
	t.hasLast = true
	t.shown = false
	if at.Sub(t.lastShown) >= lastRefresh {
		t.showLastLocked(at)
	}
}

// refreshLast shows a value that arrived inside the throttle window.
func (t *Tray) refreshLast(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasLast && !t.shown {
		t.showLastLocked(now)
	}
}

func (t *Tray) showLastLocked(at time.Time) {
	if t.setLast == nil {
		return
	}
	t.setLast(lastTitle(t.last))
	t.shown = true
	t.lastShown = at
}

func lastTitle(m control.Message) string {
	return fmt.Sprintf("Last: %.1f°, %.1f°, scale %.1f", m.XAngle, m.YAngle, m.Scale)
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
