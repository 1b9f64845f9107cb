package integrity

import (
	"encoding/json"
	"math"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

const (
	fallbackMinWPM = 10.0
	fallbackMaxWPM = 70.0
)

// Sanitize turns a possibly missing or partial metrics record into a fully
// populated one that is safe to persist. It never fails: a nil input yields
// an all-zero record that is not suspicious, negative or non-finite numbers
// become zero, and a missing typing speed is estimated from the word count
// of the completed prompts.
func Sanitize(metrics *models.AntiCheatingMetrics, prompts []models.CompletedPrompt) models.AntiCheatingMetrics {
	if metrics == nil {
		return zeroMetrics()
	}

	out := *metrics

	out.Keystrokes = nonNegative(out.Keystrokes)
	out.Pauses = nonNegative(out.Pauses)
	out.WordsPerMinute = finite(out.WordsPerMinute)
	out.LastKeystrokeTime = nonNegative64(out.LastKeystrokeTime)
	out.TotalTypingTime = nonNegative64(out.TotalTypingTime)
	if out.WordsPerMinute == 0 {
		out.WordsPerMinute = fallbackWPM(prompts)
	}

	out.TabSwitches = nonNegative(out.TabSwitches)
	out.WindowBlurs = nonNegative(out.WindowBlurs)
	out.WindowFocuses = nonNegative(out.WindowFocuses)
	out.TotalInactivityTime = nonNegative64(out.TotalInactivityTime)
	out.TimeSpentMs = nonNegative64(out.TimeSpentMs)
	periods := make([]int64, 0, len(out.InactivityPeriods))
	for _, p := range out.InactivityPeriods {
		periods = append(periods, nonNegative64(p))
	}
	out.InactivityPeriods = periods
	if out.LastInactiveAt != nil {
		v := nonNegative64(*out.LastInactiveAt)
		out.LastInactiveAt = &v
	}

	out.CopyAttempts = nonNegative(out.CopyAttempts)
	out.PasteAttempts = nonNegative(out.PasteAttempts)
	out.RightClickAttempts = nonNegative(out.RightClickAttempts)
	out.KeyboardShortcuts = nonNegative(out.KeyboardShortcuts)

	if out.SuspiciousActivities == nil {
		out.SuspiciousActivities = []string{}
	} else {
		out.SuspiciousActivities = append([]string{}, out.SuspiciousActivities...)
	}
	if out.Reasons == nil {
		out.Reasons = []models.SuspicionReason{}
	} else {
		out.Reasons = append([]models.SuspicionReason{}, out.Reasons...)
	}
	// a record carrying reasons is suspicious even if the flag was lost
	out.SuspiciousActivity = out.SuspiciousActivity || len(out.Reasons) > 0

	return out
}

// SanitizeJSON sanitizes a stored or client-supplied JSON metrics document.
// Undecodable input is treated as missing.
func SanitizeJSON(raw []byte, prompts []models.CompletedPrompt) models.AntiCheatingMetrics {
	if len(raw) == 0 {
		return zeroMetrics()
	}
	var m models.AntiCheatingMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return zeroMetrics()
	}
	return Sanitize(&m, prompts)
}

func zeroMetrics() models.AntiCheatingMetrics {
	return models.AntiCheatingMetrics{
		WindowMetrics: models.WindowMetrics{InactivityPeriods: []int64{}},
		SuspiciousActivityState: models.SuspiciousActivityState{
			SuspiciousActivities: []string{},
			Reasons:              []models.SuspicionReason{},
		},
	}
}

func fallbackWPM(prompts []models.CompletedPrompt) float64 {
	words := float64(models.TotalWordCount(prompts))
	return math.Min(fallbackMaxWPM, math.Max(fallbackMinWPM, words/CharsPerWord))
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func nonNegative64(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
