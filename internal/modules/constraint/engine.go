// Package constraint evaluates scheduling constraints: hard blackout
// filtering before assignment and soft-rule scoring after generation.
package constraint

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/utils"
)

// Built-in thresholds applied when a constraint description carries no
// number and no configured defaults were supplied.
const (
	DefaultMaxScreenerDays = 10
	DefaultMinScreenerDays = 2
)

// Defaults are the fallback thresholds for screener-day constraints whose
// description carries no number. They are seeded from engine config; zero
// fields fall back to the built-in values.
type Defaults struct {
	MaxScreenerDays int
	MinScreenerDays int
}

func (d Defaults) normalized() Defaults {
	if d.MaxScreenerDays <= 0 {
		d.MaxScreenerDays = DefaultMaxScreenerDays
	}
	if d.MinScreenerDays <= 0 {
		d.MinScreenerDays = DefaultMinScreenerDays
	}
	return d
}

// RuleSet is the active constraints loaded for one generation window.
// It is read-only after construction.
type RuleSet struct {
	constraints []domain.SchedulingConstraint
	blackouts   []domain.SchedulingConstraint
	defaults    Defaults
}

// NewRuleSet builds a rule set from constraint records with the built-in
// fallback thresholds. Inactive constraints are dropped here so callers
// never re-check the flag.
func NewRuleSet(constraints []domain.SchedulingConstraint) *RuleSet {
	return NewRuleSetWithDefaults(constraints, Defaults{})
}

// NewRuleSetWithDefaults builds a rule set using configured fallback
// thresholds instead of the built-in ones.
func NewRuleSetWithDefaults(constraints []domain.SchedulingConstraint, defaults Defaults) *RuleSet {
	rs := &RuleSet{defaults: defaults.normalized()}
	for _, c := range constraints {
		if !c.IsActive {
			continue
		}
		rs.constraints = append(rs.constraints, c)
		if c.Type == domain.ConstraintBlackoutDate {
			rs.blackouts = append(rs.blackouts, c)
		}
	}
	return rs
}

// BlocksDate reports whether a BLACKOUT_DATE constraint, global or scoped to
// the analyst, covers the date.
func (rs *RuleSet) BlocksDate(analystID, date string) bool {
	for _, c := range rs.blackouts {
		if !c.Covers(date) {
			continue
		}
		if c.AnalystID == "" || c.AnalystID == analystID {
			return true
		}
	}
	return false
}

// BlocksDateGlobally reports whether a global BLACKOUT_DATE covers the date,
// meaning the whole day is skipped rather than a single analyst.
func (rs *RuleSet) BlocksDateGlobally(date string) bool {
	for _, c := range rs.blackouts {
		if c.AnalystID == "" && c.Covers(date) {
			return true
		}
	}
	return false
}

// Threshold returns the numeric threshold of a constraint, read as the first
// integer in its description, falling back to the built-in per-type default.
func Threshold(c domain.SchedulingConstraint) int {
	return thresholdWith(c, Defaults{}.normalized())
}

func thresholdWith(c domain.SchedulingConstraint, d Defaults) int {
	if n, ok := utils.FirstInt(c.Description); ok {
		return n
	}
	switch c.Type {
	case domain.ConstraintMaxScreenerDays:
		return d.MaxScreenerDays
	case domain.ConstraintMinScreenerDays:
		return d.MinScreenerDays
	}
	return 0
}

func (rs *RuleSet) threshold(c domain.SchedulingConstraint) int {
	return thresholdWith(c, rs.defaults)
}

// Validate evaluates every loaded constraint against the schedule set and
// returns the violations plus the penalty score. The report is invalid when
// any hard violation is present, regardless of score.
func (rs *RuleSet) Validate(schedules []domain.Schedule) domain.ValidationReport {
	report := domain.ValidationReport{
		Violations: make([]domain.Violation, 0),
	}

	byAnalyst := make(map[string][]domain.Schedule)
	for _, s := range schedules {
		byAnalyst[s.AnalystID] = append(byAnalyst[s.AnalystID], s)
	}

	for _, c := range rs.constraints {
		switch c.Type {
		case domain.ConstraintBlackoutDate:
			report.Violations = append(report.Violations, rs.checkBlackout(c, schedules)...)
		case domain.ConstraintMaxScreenerDays:
			report.Violations = append(report.Violations, rs.checkMaxScreenerDays(c, byAnalyst)...)
		case domain.ConstraintMinScreenerDays:
			report.Violations = append(report.Violations, rs.checkMinScreenerDays(c, byAnalyst)...)
		case domain.ConstraintPreferredScreener:
			report.Violations = append(report.Violations, rs.checkPreferredScreener(c, byAnalyst)...)
		case domain.ConstraintUnavailableScreener:
			report.Violations = append(report.Violations, rs.checkUnavailableScreener(c, byAnalyst)...)
		}
	}

	total := len(schedules)
	penalty := 0.0
	hard := false
	for _, v := range report.Violations {
		if v.Hard {
			hard = true
		}
		if total > 0 {
			penalty += v.Severity.Weight() * float64(len(v.AffectedIDs)) / float64(total)
		}
	}

	report.Score = 1.0 - penalty
	if report.Score < 0 {
		report.Score = 0
	}
	report.Valid = !hard

	return report
}

// checkBlackout flags every schedule that landed on a blacked-out date
func (rs *RuleSet) checkBlackout(c domain.SchedulingConstraint, schedules []domain.Schedule) []domain.Violation {
	var affected []string
	for _, s := range schedules {
		if !c.Covers(s.Date) {
			continue
		}
		if c.AnalystID == "" || c.AnalystID == s.AnalystID {
			affected = append(affected, s.Key())
		}
	}
	if len(affected) == 0 {
		return nil
	}

	scope := "all analysts"
	if c.AnalystID != "" {
		scope = "analyst " + c.AnalystID
	}
	return []domain.Violation{{
		ConstraintType: c.Type,
		Severity:       domain.SeverityCritical,
		Hard:           true,
		AffectedIDs:    affected,
		Message:        fmt.Sprintf("%d schedule(s) fall on blackout dates %s to %s for %s", len(affected), c.StartDate, c.EndDate, scope),
		SuggestedFix:   "Remove or move the affected assignments off the blackout window",
	}}
}

// scopedAnalysts returns the analysts a soft constraint applies to: the named
// analyst when scoped, otherwise every analyst present in the schedule set,
// in stable order.
func scopedAnalysts(c domain.SchedulingConstraint, byAnalyst map[string][]domain.Schedule) []string {
	if c.AnalystID != "" {
		return []string{c.AnalystID}
	}
	ids := make([]string, 0, len(byAnalyst))
	for id := range byAnalyst {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (rs *RuleSet) checkMaxScreenerDays(c domain.SchedulingConstraint, byAnalyst map[string][]domain.Schedule) []domain.Violation {
	max := rs.threshold(c)
	var violations []domain.Violation

	for _, analystID := range scopedAnalysts(c, byAnalyst) {
		var screeners []string
		for _, s := range byAnalyst[analystID] {
			if s.IsScreener && c.Covers(s.Date) {
				screeners = append(screeners, s.Key())
			}
		}
		if len(screeners) <= max {
			continue
		}
		violations = append(violations, domain.Violation{
			ConstraintType: c.Type,
			Severity:       domain.SeverityHigh,
			AffectedIDs:    screeners,
			Message:        fmt.Sprintf("analyst %s has %d screener days, above the maximum of %d", analystID, len(screeners), max),
			SuggestedFix:   fmt.Sprintf("Redistribute screener duty so analyst %s holds at most %d days", analystID, max),
		})
	}
	return violations
}

func (rs *RuleSet) checkMinScreenerDays(c domain.SchedulingConstraint, byAnalyst map[string][]domain.Schedule) []domain.Violation {
	min := rs.threshold(c)
	var violations []domain.Violation

	for _, analystID := range scopedAnalysts(c, byAnalyst) {
		var screeners []string
		for _, s := range byAnalyst[analystID] {
			if s.IsScreener && c.Covers(s.Date) {
				screeners = append(screeners, s.Key())
			}
		}
		if len(screeners) >= min {
			continue
		}
		violations = append(violations, domain.Violation{
			ConstraintType: c.Type,
			Severity:       domain.SeverityMedium,
			AffectedIDs:    screeners,
			Message:        fmt.Sprintf("analyst %s has %d screener days, below the minimum of %d", analystID, len(screeners), min),
			SuggestedFix:   fmt.Sprintf("Assign analyst %s at least %d screener days in the window", analystID, min),
		})
	}
	return violations
}

// checkPreferredScreener flags working days where the named analyst was
// scheduled but not given screener duty. The rule is meaningless without a
// named analyst, so global rows are skipped.
func (rs *RuleSet) checkPreferredScreener(c domain.SchedulingConstraint, byAnalyst map[string][]domain.Schedule) []domain.Violation {
	if c.AnalystID == "" {
		return nil
	}

	var affected []string
	for _, s := range byAnalyst[c.AnalystID] {
		if c.Covers(s.Date) && !s.IsScreener {
			affected = append(affected, s.Key())
		}
	}
	if len(affected) == 0 {
		return nil
	}

	return []domain.Violation{{
		ConstraintType: c.Type,
		Severity:       domain.SeverityLow,
		AffectedIDs:    affected,
		Message:        fmt.Sprintf("analyst %s is the preferred screener but works %d day(s) without screener duty", c.AnalystID, len(affected)),
		SuggestedFix:   fmt.Sprintf("Favor analyst %s when selecting screeners in this window", c.AnalystID),
	}}
}

func (rs *RuleSet) checkUnavailableScreener(c domain.SchedulingConstraint, byAnalyst map[string][]domain.Schedule) []domain.Violation {
	if c.AnalystID == "" {
		return nil
	}

	var affected []string
	for _, s := range byAnalyst[c.AnalystID] {
		if c.Covers(s.Date) && s.IsScreener {
			affected = append(affected, s.Key())
		}
	}
	if len(affected) == 0 {
		return nil
	}

	return []domain.Violation{{
		ConstraintType: c.Type,
		Severity:       domain.SeverityMedium,
		AffectedIDs:    affected,
		Message:        fmt.Sprintf("analyst %s holds %d screener day(s) while marked unavailable for screener duty", c.AnalystID, len(affected)),
		SuggestedFix:   fmt.Sprintf("Move screener duty on the affected days away from analyst %s", c.AnalystID),
	}}
}

// Engine loads constraint windows and produces rule sets for generation runs
type Engine struct {
	repo     *Repository
	defaults Defaults
	log      zerolog.Logger
}

// NewEngine creates a new constraint engine. The defaults seed the fallback
// thresholds of every rule set it produces.
func NewEngine(repo *Repository, defaults Defaults, log zerolog.Logger) *Engine {
	return &Engine{
		repo:     repo,
		defaults: defaults.normalized(),
		log:      log.With().Str("component", "constraint_engine").Logger(),
	}
}

// RulesFor loads the active constraints overlapping the window
func (e *Engine) RulesFor(start, end string) (*RuleSet, error) {
	constraints, err := e.repo.ListActiveOverlapping(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load constraints: %w", err)
	}

	rs := NewRuleSetWithDefaults(constraints, e.defaults)
	e.log.Debug().
		Int("constraints", len(rs.constraints)).
		Int("blackouts", len(rs.blackouts)).
		Str("start", start).
		Str("end", end).
		Msg("Loaded constraint window")

	return rs, nil
}
