package schedule

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/events"
)

// swapContextDays widens the simulated window on both sides so streaks that
// straddle the swap boundary are seen whole
const swapContextDays = 7

// SwapValidator simulates shift swaps against the persisted schedule set and
// reports streak spans that would break block integrity. It only reads;
// applying a swap stays with the caller, who may proceed past violations
// deliberately.
type SwapValidator struct {
	schedules *Repository
	cal       *calendar.Calendar
	maxStreak int
	bus       *events.Bus
	log       zerolog.Logger
}

// NewSwapValidator creates a swap validator. Dates are normalized strings,
// so arithmetic runs on a UTC calendar regardless of region.
func NewSwapValidator(schedules *Repository, maxStreak int, bus *events.Bus, log zerolog.Logger) *SwapValidator {
	return &SwapValidator{
		schedules: schedules,
		cal:       calendar.UTC(),
		maxStreak: maxStreak,
		bus:       bus,
		log:       log.With().Str("component", "swap_validator").Logger(),
	}
}

// SimulateAndCheck builds one analyst's virtual timeline inside the context
// window: their persisted working dates minus removeDates plus addDates,
// deduplicated and sorted. Every consecutive span longer than the streak cap
// that is not an exact multiple of it is reported as a violation.
func (v *SwapValidator) SimulateAndCheck(analystID, contextStart, contextEnd string, addDates, removeDates []string) ([]domain.SwapViolation, error) {
	existing, err := v.schedules.GetByAnalystRange(analystID, contextStart, contextEnd)
	if err != nil {
		return nil, err
	}

	days := make(map[string]bool, len(existing))
	for _, s := range existing {
		days[s.Date] = true
	}
	for _, d := range removeDates {
		delete(days, d)
	}
	for _, d := range addDates {
		if d >= contextStart && d <= contextEnd {
			days[d] = true
		}
	}

	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return v.checkSpans(analystID, dates), nil
}

// ValidateSwap simulates a pairwise swap: source gives sourceDate and
// receives targetDate, target the reverse. Both analysts must currently be
// scheduled on the date they give away.
func (v *SwapValidator) ValidateSwap(sourceAnalyst, sourceDate, targetAnalyst, targetDate string) ([]domain.SwapViolation, error) {
	if sourceAnalyst == "" || targetAnalyst == "" {
		return nil, domain.NewConfigError("both analysts are required")
	}
	if sourceAnalyst == targetAnalyst {
		return nil, domain.NewConfigError("cannot swap an analyst with themselves", sourceAnalyst)
	}
	if _, err := v.cal.Parse(sourceDate); err != nil {
		return nil, domain.WrapError(domain.KindConfig, err, "invalid source date")
	}
	if _, err := v.cal.Parse(targetDate); err != nil {
		return nil, domain.WrapError(domain.KindConfig, err, "invalid target date")
	}

	if err := v.requireScheduled(sourceAnalyst, sourceDate); err != nil {
		return nil, err
	}
	if err := v.requireScheduled(targetAnalyst, targetDate); err != nil {
		return nil, err
	}

	windowStart, windowEnd := sourceDate, targetDate
	if windowStart > windowEnd {
		windowStart, windowEnd = windowEnd, windowStart
	}
	contextStart := v.cal.AddDays(windowStart, -swapContextDays)
	contextEnd := v.cal.AddDays(windowEnd, swapContextDays)

	violations, err := v.SimulateAndCheck(sourceAnalyst, contextStart, contextEnd,
		[]string{targetDate}, []string{sourceDate})
	if err != nil {
		return nil, err
	}
	targetViolations, err := v.SimulateAndCheck(targetAnalyst, contextStart, contextEnd,
		[]string{sourceDate}, []string{targetDate})
	if err != nil {
		return nil, err
	}
	violations = append(violations, targetViolations...)

	v.report(sourceAnalyst, targetAnalyst, violations)
	return violations, nil
}

// ValidateRangeSwap simulates exchanging every schedule the two analysts
// hold inside [startDate, endDate]: each gives their own dates and receives
// the other's.
func (v *SwapValidator) ValidateRangeSwap(sourceAnalyst, targetAnalyst, startDate, endDate string) ([]domain.SwapViolation, error) {
	if sourceAnalyst == "" || targetAnalyst == "" {
		return nil, domain.NewConfigError("both analysts are required")
	}
	if sourceAnalyst == targetAnalyst {
		return nil, domain.NewConfigError("cannot swap an analyst with themselves", sourceAnalyst)
	}
	if _, err := v.cal.Parse(startDate); err != nil {
		return nil, domain.WrapError(domain.KindConfig, err, "invalid start date")
	}
	if _, err := v.cal.Parse(endDate); err != nil {
		return nil, domain.WrapError(domain.KindConfig, err, "invalid end date")
	}
	if startDate > endDate {
		return nil, domain.NewConfigError(
			fmt.Sprintf("start date %s is after end date %s", startDate, endDate))
	}

	sourceDates, err := v.workingDates(sourceAnalyst, startDate, endDate)
	if err != nil {
		return nil, err
	}
	targetDates, err := v.workingDates(targetAnalyst, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(sourceDates) == 0 && len(targetDates) == 0 {
		return nil, domain.NewSwapIntegrityError(
			"neither analyst holds schedules in the swap window", sourceAnalyst, targetAnalyst)
	}

	contextStart := v.cal.AddDays(startDate, -swapContextDays)
	contextEnd := v.cal.AddDays(endDate, swapContextDays)

	violations, err := v.SimulateAndCheck(sourceAnalyst, contextStart, contextEnd, targetDates, sourceDates)
	if err != nil {
		return nil, err
	}
	targetViolations, err := v.SimulateAndCheck(targetAnalyst, contextStart, contextEnd, sourceDates, targetDates)
	if err != nil {
		return nil, err
	}
	violations = append(violations, targetViolations...)

	v.report(sourceAnalyst, targetAnalyst, violations)
	return violations, nil
}

// checkSpans walks sorted dates, groups them into consecutive spans and
// flags each span breaking the block rule: length above the cap is legal
// only as an exact multiple of the cap.
func (v *SwapValidator) checkSpans(analystID string, dates []string) []domain.SwapViolation {
	if len(dates) == 0 {
		return nil
	}

	var violations []domain.SwapViolation
	spanStart := dates[0]
	prev := dates[0]
	length := 1

	flush := func() {
		if length > v.maxStreak && length%v.maxStreak != 0 {
			violations = append(violations, domain.SwapViolation{
				AnalystID: analystID,
				StartDate: spanStart,
				EndDate:   prev,
				Length:    length,
				Message: fmt.Sprintf("%s would work %d consecutive days from %s to %s",
					analystID, length, spanStart, prev),
			})
		}
	}

	for _, d := range dates[1:] {
		if v.cal.DaysBetween(prev, d) == 1 {
			length++
			prev = d
			continue
		}
		flush()
		spanStart = d
		prev = d
		length = 1
	}
	flush()
	return violations
}

func (v *SwapValidator) requireScheduled(analystID, date string) error {
	rows, err := v.schedules.GetByAnalystRange(analystID, date, date)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.NewSwapIntegrityError(
			fmt.Sprintf("%s is not scheduled on %s", analystID, date), analystID)
	}
	return nil
}

func (v *SwapValidator) workingDates(analystID, start, end string) ([]string, error) {
	rows, err := v.schedules.GetByAnalystRange(analystID, start, end)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	dates := make([]string, 0, len(rows))
	for _, s := range rows {
		if !seen[s.Date] {
			seen[s.Date] = true
			dates = append(dates, s.Date)
		}
	}
	return dates, nil
}

func (v *SwapValidator) report(sourceAnalyst, targetAnalyst string, violations []domain.SwapViolation) {
	v.bus.Emit("schedule", &events.SwapValidatedData{
		SourceAnalyst: sourceAnalyst,
		TargetAnalyst: targetAnalyst,
		Violations:    len(violations),
		Valid:         len(violations) == 0,
	})
	v.log.Debug().
		Str("source", sourceAnalyst).
		Str("target", targetAnalyst).
		Int("violations", len(violations)).
		Msg("Swap validated")
}
