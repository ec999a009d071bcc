package booking

import (
	"sort"
	"strings"
	"time"
)

const contactDateLayout = "2006-01-02"

// NormalizeContactDates приводит удобные клиенту даты связи к виду ГГГГ-ММ-ДД:
//   - пустые строки отбрасываются;
//   - принимается дата или RFC3339 (берётся календарный день в его же поясе);
//   - дубликаты схлопываются, результат отсортирован.
func NormalizeContactDates(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		day, err := parseContactDate(s)
		if err != nil {
			return nil, &ValidationError{Field: "contactDates", Message: "invalid date " + s}
		}
		key := day.Format(contactDateLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

func parseContactDate(s string) (time.Time, error) {
	if t, err := time.Parse(contactDateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return dateOnly(t), nil
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
