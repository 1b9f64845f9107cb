package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
)

const (
	integritySheet = "Integrity Report"
	exportPageSize = 500
)

var integrityHeaders = []interface{}{
	"Assessment ID", "Candidate", "Position", "Submitted At",
	"Aptitude Score", "Aptitude Total", "Prompts", "Avg Writing Score",
	"Words/Min", "Keystrokes", "Tab Switches", "Window Blurs", "Time Away (s)",
	"Copy", "Paste", "Right-Click", "Shortcuts",
	"Suspicious", "Flags",
}

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ExportIntegrityReport writes one row per assessment matching filters.
func (s *exportService) ExportIntegrityReport(ctx context.Context, filters repositories.AssessmentFilters) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", integritySheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(integritySheet, "A1", &integrityHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		lastCol, _ := excelize.ColumnNumberToName(len(integrityHeaders))
		f.SetCellStyle(integritySheet, "A1", lastCol+"1", headerStyle)
	}
	f.SetPanes(integritySheet, &excelize.Panes{Freeze: true, Split: false, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	filters.Limit = exportPageSize
	filters.Offset = 0
	row := 2
	for {
		records, total, err := s.repo.Assessment().List(ctx, nil, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to load assessments: %w", err)
		}

		for _, r := range records {
			detail := toDetail(r)
			summary := toSummary(r)
			m := detail.Metrics

			avg := ""
			if summary.AverageWritingScore != nil {
				avg = fmt.Sprintf("%.2f", *summary.AverageWritingScore)
			}

			values := []interface{}{
				r.ID, r.CandidateName, r.CandidatePosition, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
				r.AptitudeScore, r.AptitudeTotal, summary.PromptCount, avg,
				int(m.WordsPerMinute), m.Keystrokes, m.TabSwitches, m.WindowBlurs, m.TotalInactivityTime / 1000,
				m.CopyAttempts, m.PasteAttempts, m.RightClickAttempts, m.KeyboardShortcuts,
				yesNo(summary.SuspiciousActivity), strings.Join(m.SuspiciousActivities, "; "),
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(integritySheet, cell, &values); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}

		filters.Offset += len(records)
		if len(records) == 0 || int64(filters.Offset) >= total {
			break
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "Integrity report exported", "rows", row-2)
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
