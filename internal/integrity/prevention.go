package integrity

import (
	"strings"
	"sync"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

// PreventedAction names what a blocked event tried to do.
type PreventedAction string

const (
	ActionNone       PreventedAction = ""
	ActionCopy       PreventedAction = "copy"
	ActionPaste      PreventedAction = "paste"
	ActionRightClick PreventedAction = "right_click"
	ActionShortcut   PreventedAction = "keyboard_shortcut"
)

// blockedShortcutKeys are the Ctrl/Cmd combinations that are suppressed.
var blockedShortcutKeys = map[string]struct{}{
	"c": {}, "v": {}, "x": {}, "a": {}, "f": {}, "g": {},
}

// IsBlockedShortcut reports whether a key-down is Ctrl/Cmd + c, v, x, a, f or g.
func IsBlockedShortcut(ev models.BrowserEvent) bool {
	if ev.Type != models.EventKeyDown || (!ev.CtrlKey && !ev.MetaKey) {
		return false
	}
	_, ok := blockedShortcutKeys[strings.ToLower(ev.Key)]
	return ok
}

// PreventionTracker counts copy/cut/paste, context-menu and shortcut
// attempts. Every one of those events must be default-prevented by the UI;
// the tracker never raises suspicion itself.
type PreventionTracker struct {
	mu      sync.Mutex
	metrics models.PreventionMetrics
}

func NewPreventionTracker() *PreventionTracker {
	return &PreventionTracker{}
}

// Handle counts the event if it is one of the intercepted kinds and returns
// the action plus whether the default browser action must be suppressed.
func (p *PreventionTracker) Handle(ev models.BrowserEvent) (PreventedAction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case models.EventCopy, models.EventCut:
		p.metrics.CopyAttempts++
		return ActionCopy, true
	case models.EventPaste:
		p.metrics.PasteAttempts++
		return ActionPaste, true
	case models.EventContextMenu:
		p.metrics.RightClickAttempts++
		return ActionRightClick, true
	case models.EventKeyDown:
		if IsBlockedShortcut(ev) {
			p.metrics.KeyboardShortcuts++
			return ActionShortcut, true
		}
	}
	return ActionNone, false
}

func (p *PreventionTracker) PreventionMetrics() models.PreventionMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *PreventionTracker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = models.PreventionMetrics{}
}
