package metrics

import (
	"math"
	"strconv"
	"strings"
	"time"

	"workpulse/pkg/contracts/domain"
)

// AverageWorkMinutes returns the mean of the work-duration column rounded
// to two decimal places. An empty table yields 0, never NaN.
func AverageWorkMinutes(t *domain.Table) float64 {
	if t.Empty() {
		return 0
	}

	var sum float64
	for _, r := range t.Rows {
		sum += r.WorkMinutes
	}
	return round2(sum / float64(len(t.Rows)))
}

// TotalWords returns the exact integer sum of the words-translated column.
func TotalWords(t *domain.Table) int64 {
	if t == nil {
		return 0
	}

	var sum int64
	for _, r := range t.Rows {
		sum += r.Words
	}
	return sum
}

// PaidMinutesOn sums the paid localized-minutes column over rows dated day.
func PaidMinutesOn(t *domain.Table, day time.Time) float64 {
	return sumOn(t, day, func(r domain.Row) float64 { return r.PaidMinutes })
}

// ClientsOn sums the platform-user count column over rows dated day.
func ClientsOn(t *domain.Table, day time.Time) int64 {
	// Client counts are small integers; a float64 carries them exactly.
	return int64(sumOn(t, day, func(r domain.Row) float64 { return float64(r.Clients) }))
}

// CompareDays compares the paid localized-minutes sums of two days.
// Direction is "up" only when today's sum strictly exceeds yesterday's;
// a tie reads "down". Delta is the absolute difference.
func CompareDays(t *domain.Table, today, yesterday time.Time) domain.DayComparison {
	cur := PaidMinutesOn(t, today)
	prev := PaidMinutesOn(t, yesterday)

	dir := domain.DirectionDown
	if cur > prev {
		dir = domain.DirectionUp
	}

	return domain.DayComparison{
		Today:     cur,
		Yesterday: prev,
		Direction: dir,
		Delta:     math.Abs(cur - prev),
	}
}

// FormatCount renders n with comma thousands separators, e.g. 150230
// becomes "150,230".
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)

	start := 0
	if n < 0 {
		start = 1
	}
	digits := len(s) - start
	if digits <= 3 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + (digits-1)/3)
	b.WriteString(s[:start])

	lead := start + digits%3
	if lead == start {
		lead = start + 3
	}
	b.WriteString(s[start:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// sumOn adds the picked column over rows whose valid date falls on the
// same calendar day as day. Rows with null dates never match.
func sumOn(t *domain.Table, day time.Time, pick func(domain.Row) float64) float64 {
	if t == nil {
		return 0
	}

	y, m, d := day.Date()
	var sum float64
	for _, r := range t.Rows {
		if !r.DateValid {
			continue
		}
		ry, rm, rd := r.Date.Date()
		if ry == y && rm == m && rd == d {
			sum += pick(r)
		}
	}
	return sum
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
