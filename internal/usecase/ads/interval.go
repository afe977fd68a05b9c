package ads

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrIntervalFormat: текст интервала не распознан.
	ErrIntervalFormat = errors.New("неверный формат интервала")
	// ErrIntervalTooShort: интервал меньше допустимого минимума.
	ErrIntervalTooShort = errors.New("интервал слишком короткий")
)

const maxIntervalUnits = 100000

var (
	minutesRegex = regexp.MustCompile(`^(\d+)\s*(m|min|mins|minuto|minutos)$`)
	hoursRegex   = regexp.MustCompile(`^(\d+)\s*(h|hr|hrs|hora|horas)$`)
	bareRegex    = regexp.MustCompile(`^(\d+)$`)
)

// ParseInterval разбирает "30m", "2h", "5 minutos", "1 hora". Голое число — часы.
func ParseInterval(text string, minimum time.Duration) (time.Duration, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	var (
		raw  string
		unit time.Duration
	)
	switch {
	case minutesRegex.MatchString(text):
		raw, unit = minutesRegex.FindStringSubmatch(text)[1], time.Minute
	case hoursRegex.MatchString(text):
		raw, unit = hoursRegex.FindStringSubmatch(text)[1], time.Hour
	case bareRegex.MatchString(text):
		raw, unit = text, time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrIntervalFormat, text)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n > maxIntervalUnits {
		return 0, fmt.Errorf("%w: %q", ErrIntervalFormat, text)
	}
	d := time.Duration(n) * unit
	if n == 0 || d < minimum {
		return 0, fmt.Errorf("%w: минимум %s", ErrIntervalTooShort, FormatInterval(minimum))
	}
	return d, nil
}

// FormatInterval печатает интервал как "2h", "1h 30m" или "45m".
func FormatInterval(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	out := fmt.Sprintf("%dh", minutes/60)
	if rest := minutes % 60; rest > 0 {
		out += fmt.Sprintf(" %dm", rest)
	}
	return out
}
