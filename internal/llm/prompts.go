package llm

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

func buildWritingSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a hiring assessor grading a candidate's written response.\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- Score clarity, structure, relevance to the prompt and grammar.\n")
	sb.WriteString("- Use a scale from 0 (no answer) to 5 (excellent).\n")
	sb.WriteString("- Keep the feedback to two or three sentences.\n")
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"score": <number 0 to 5>, "feedback": "<brief feedback>"}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildWritingUserPrompt(prompt, response string) string {
	if strings.TrimSpace(response) == "" {
		response = "(no response)"
	}
	return "PROMPT: " + prompt + "\n\nRESPONSE:\n" + response + "\n"
}

func buildInsightSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a hiring assessor summarizing a candidate's assessment for a reviewer.\n\n")
	sb.WriteString("Consider the aptitude score and every writing response.\n")
	sb.WriteString("List at most three strengths and three weaknesses.\n")
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"summary": "<short paragraph>", "strengths": ["..."], "weaknesses": ["..."]}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildAssessmentPrompt(req InsightRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CANDIDATE: %s\nPOSITION: %s\n", req.CandidateName, req.CandidatePosition))
	if req.AptitudeTotal > 0 {
		sb.WriteString(fmt.Sprintf("APTITUDE: %d/%d\n", req.AptitudeScore, req.AptitudeTotal))
	}
	for i, p := range req.Prompts {
		sb.WriteString(fmt.Sprintf("\nPROMPT %d: %s\n", i+1, p.Prompt))
		sb.WriteString(fmt.Sprintf("RESPONSE (%d words):\n%s\n", p.WordCount, p.Response))
		if p.Score != nil {
			sb.WriteString(fmt.Sprintf("SCORE: %.1f/5\n", *p.Score))
		}
	}
	return sb.String()
}

func buildIntegritySystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You review browser integrity signals recorded during an online assessment.\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- Rate the risk of dishonest behaviour as low, medium or high.\n")
	sb.WriteString("- Do not accuse the candidate. Describe the signals a reviewer should check.\n")
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"risk_level": "low|medium|high", "summary": "<short paragraph>", "concerns": ["..."]}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildIntegrityPrompt(m models.AntiCheatingMetrics) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Keystrokes: %d\nPauses: %d\nWords per minute: %.0f\n", m.Keystrokes, m.Pauses, m.WordsPerMinute))
	sb.WriteString(fmt.Sprintf("Tab switches: %d\nWindow blurs: %d\n", m.TabSwitches, m.WindowBlurs))
	sb.WriteString(fmt.Sprintf("Total time away: %ds\n", m.TotalInactivityTime/1000))
	sb.WriteString(fmt.Sprintf("Copy attempts: %d\nPaste attempts: %d\nRight-click attempts: %d\nShortcut attempts: %d\n",
		m.CopyAttempts, m.PasteAttempts, m.RightClickAttempts, m.KeyboardShortcuts))
	if len(m.SuspiciousActivities) > 0 {
		sb.WriteString("Flags raised:\n")
		for _, a := range m.SuspiciousActivities {
			sb.WriteString("- " + a + "\n")
		}
	}
	return sb.String()
}
