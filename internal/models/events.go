package models

type BrowserEventType string

const (
	EventKeyDown          BrowserEventType = "keydown"
	EventVisibilityChange BrowserEventType = "visibilitychange"
	EventBlur             BrowserEventType = "blur"
	EventFocus            BrowserEventType = "focus"
	EventCopy             BrowserEventType = "copy"
	EventCut              BrowserEventType = "cut"
	EventPaste            BrowserEventType = "paste"
	EventContextMenu      BrowserEventType = "contextmenu"
)

// BrowserEvent is a DOM event forwarded by the candidate UI.
type BrowserEvent struct {
	Type    BrowserEventType `json:"type" validate:"required,oneof=keydown visibilitychange blur focus copy cut paste contextmenu"`
	Key     string           `json:"key,omitempty" validate:"max=32"`
	CtrlKey bool             `json:"ctrl_key,omitempty"`
	MetaKey bool             `json:"meta_key,omitempty"`
	// Hidden mirrors document.hidden for visibilitychange events.
	Hidden bool `json:"hidden,omitempty"`
	// Timestamp is epoch ms on the client; zero means "use server time".
	// Only the gaps between stamped events are trusted.
	Timestamp int64 `json:"timestamp" validate:"min=0"`
}
