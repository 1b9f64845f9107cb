package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 1000
)

// isDuplicateKey reports a unique-constraint violation. TranslateError maps
// it to gorm.ErrDuplicatedKey; the message check covers drivers that do not.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}

// normalizeFilters clamps paging and sorting to sane values.
func normalizeFilters(f repositories.AssessmentFilters) repositories.AssessmentFilters {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if strings.ToLower(f.SortOrder) != "asc" {
		f.SortOrder = "desc"
	} else {
		f.SortOrder = "asc"
	}
	f.Position = strings.TrimSpace(f.Position)
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func applyFilters(q *gorm.DB, f repositories.AssessmentFilters) *gorm.DB {
	if f.SuspiciousOnly {
		q = q.Where("suspicious_activity = ?", true)
	}
	if f.Position != "" {
		q = q.Where("LOWER(candidate_position) = LOWER(?)", f.Position)
	}
	if f.Search != "" {
		q = q.Where("candidate_name ILIKE ?", "%"+escapeLike(f.Search)+"%")
	}
	return q
}
