package models

import "time"

type AssessmentVariant string

const (
	VariantWriting  AssessmentVariant = "writing"
	VariantAptitude AssessmentVariant = "aptitude"
)

// TypingMetrics is the keystroke-timing snapshot of one candidate session.
type TypingMetrics struct {
	Keystrokes        int     `json:"keystrokes"`
	Pauses            int     `json:"pauses"`
	WordsPerMinute    float64 `json:"words_per_minute"`
	LastKeystrokeTime int64   `json:"last_keystroke_time"` // epoch ms, 0 before the first keystroke
	TotalTypingTime   int64   `json:"total_typing_time"`   // ms
}

// WindowMetrics counts tab/window switches and the time spent away.
type WindowMetrics struct {
	TabSwitches         int     `json:"tab_switches"`
	WindowBlurs         int     `json:"window_blurs"`
	WindowFocuses       int     `json:"window_focuses"`
	InactivityPeriods   []int64 `json:"inactivity_periods"` // ms, one per blur->focus round trip
	TotalInactivityTime int64   `json:"total_inactivity_time"`
	LastInactiveAt      *int64  `json:"last_inactive_at"` // epoch ms
	TimeSpentMs         int64   `json:"time_spent_ms"`
}

type PreventionMetrics struct {
	CopyAttempts       int `json:"copy_attempts"`
	PasteAttempts      int `json:"paste_attempts"`
	RightClickAttempts int `json:"right_click_attempts"`
	KeyboardShortcuts  int `json:"keyboard_shortcuts"`
}

type SuspicionKind string

const (
	SuspicionHighTypingSpeed   SuspicionKind = "high_typing_speed"
	SuspicionTabSwitching      SuspicionKind = "frequent_tab_switching"
	SuspicionWindowSwitching   SuspicionKind = "frequent_window_switching"
	SuspicionCopyAttempt       SuspicionKind = "copy_attempt"
	SuspicionPasteAttempt      SuspicionKind = "paste_attempt"
	SuspicionRightClickAttempt SuspicionKind = "right_click_attempt"
	SuspicionKeyboardShortcuts SuspicionKind = "keyboard_shortcuts"
	SuspicionCustom            SuspicionKind = "custom"
)

// SuspicionReason is one entry of the suspicion audit log.
type SuspicionReason struct {
	Kind   SuspicionKind `json:"kind"`
	Detail string        `json:"detail"`
	At     time.Time     `json:"at"`
}

// SuspiciousActivityState is the ratchet raised by the flagger.
type SuspiciousActivityState struct {
	SuspiciousActivity       bool              `json:"suspicious_activity"`
	SuspiciousActivityDetail string            `json:"suspicious_activity_detail,omitempty"`
	SuspiciousActivities     []string          `json:"suspicious_activities"`
	Reasons                  []SuspicionReason `json:"reasons"`
}

// AntiCheatingMetrics is the aggregate persisted alongside a submission and
// streamed to the admin dashboard.
type AntiCheatingMetrics struct {
	TypingMetrics
	WindowMetrics
	PreventionMetrics
	SuspiciousActivityState

	UserAgent string `json:"user_agent"`
}
