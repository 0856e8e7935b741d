// Package domain provides core domain models and types.
package domain

import "time"

// CoreAlgorithmName identifies the redesigned core scheduler. It keys
// rotation state and generation log rows.
const CoreAlgorithmName = "core_v1"

// WeekendPattern represents the weekly work shape of a rotating analyst
type WeekendPattern string

const (
	// PatternSunThu works Sunday through Thursday; Friday is the comp-off day
	PatternSunThu WeekendPattern = "SUN_THU"
	// PatternTueSat works Tuesday through Saturday; Monday is the comp-off day
	PatternTueSat WeekendPattern = "TUE_SAT"
	// PatternRegular works Monday through Friday with no weekend duty
	PatternRegular WeekendPattern = "REGULAR"
)

// WorksOn reports whether the pattern includes the given weekday
func (p WeekendPattern) WorksOn(d time.Weekday) bool {
	switch p {
	case PatternSunThu:
		return d <= time.Thursday // Sunday(0) .. Thursday(4)
	case PatternTueSat:
		return d >= time.Tuesday // Tuesday(2) .. Saturday(6)
	case PatternRegular:
		return d >= time.Monday && d <= time.Friday
	}
	return false
}

// CompOffWeekday returns the automatic comp-off day of the pattern.
// REGULAR has no comp-off day and returns -1.
func (p WeekendPattern) CompOffWeekday() time.Weekday {
	switch p {
	case PatternSunThu:
		return time.Friday
	case PatternTueSat:
		return time.Monday
	}
	return -1
}

// ScheduleType is the provenance tag of a generated schedule
type ScheduleType string

const (
	ScheduleTypeNew            ScheduleType = "NEW"
	ScheduleTypeAMToPMRotation ScheduleType = "AM_TO_PM_ROTATION"
	ScheduleTypeCompOffAdjust  ScheduleType = "COMP_OFF_ADJUSTMENT"
	ScheduleTypeScreener       ScheduleType = "SCREENER_SCHEDULE"
	ScheduleTypeImported       ScheduleType = "IMPORTED"
)

// ConstraintType classifies scheduling constraints
type ConstraintType string

const (
	ConstraintBlackoutDate        ConstraintType = "BLACKOUT_DATE"
	ConstraintUnavailableScreener ConstraintType = "UNAVAILABLE_SCREENER"
	ConstraintPreferredScreener   ConstraintType = "PREFERRED_SCREENER"
	ConstraintMinScreenerDays     ConstraintType = "MIN_SCREENER_DAYS"
	ConstraintMaxScreenerDays     ConstraintType = "MAX_SCREENER_DAYS"
)

// IsHard reports whether the constraint excludes candidates before assignment.
// Hard constraints are never scored; they filter.
func (c ConstraintType) IsHard() bool {
	return c == ConstraintBlackoutDate
}

// Severity grades soft-constraint violations
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Weight returns the penalty weight the validation score applies per
// affected-schedule ratio
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.7
	case SeverityMedium:
		return 0.4
	case SeverityLow:
		return 0.1
	}
	return 0
}

// GenerationStatus is the terminal state of a generation run
type GenerationStatus string

const (
	GenerationSuccess GenerationStatus = "SUCCESS"
	GenerationFailed  GenerationStatus = "FAILED"
	GenerationPartial GenerationStatus = "PARTIAL"
)

// OptimizationStrategy selects the construction mode of the engine
type OptimizationStrategy string

const (
	StrategyGreedy       OptimizationStrategy = "GREEDY"
	StrategyHillClimbing OptimizationStrategy = "HILL_CLIMBING"
)

// ScreenerStrategy selects how screener duty is distributed
type ScreenerStrategy string

const (
	ScreenerRoundRobin      ScreenerStrategy = "ROUND_ROBIN"
	ScreenerWorkloadBalance ScreenerStrategy = "WORKLOAD_BALANCE"
)

// WeekendStrategy selects the weekend rotation policy
type WeekendStrategy string

const (
	WeekendFairnessOptimized WeekendStrategy = "FAIRNESS_OPTIMIZED"
)

// Comp-off transaction reasons
const (
	ReasonWeekend          = "WEEKEND"
	ReasonHoliday          = "HOLIDAY"
	ReasonCompOffUsed      = "COMP_OFF_USED"
	ReasonManualAdjustment = "MANUAL_BALANCE_ADJUSTMENT"
)

// Conflict types reported by the orchestrator
const (
	ConflictBlackout    = "BLACKOUT"
	ConflictNoCandidate = "NO_CANDIDATE"
)

// Region represents an operational region. Every analyst, schedule, holiday
// and shift definition belongs to exactly one region.
type Region struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"` // IANA zone, e.g. "America/New_York"
	Active    bool      `json:"active"`
}

// ShiftDefinition is a per-region shift template. Order within a region is
// start time ascending; the earliest is the AM-equivalent, the latest the
// PM-equivalent.
type ShiftDefinition struct {
	ID          string `json:"id"`
	RegionID    string `json:"region_id"`
	Name        string `json:"name"`
	StartTime   string `json:"start_time"` // wall clock "HH:MM"
	EndTime     string `json:"end_time"`
	IsOvernight bool   `json:"is_overnight"`
}

// Analyst is a worker who can be assigned to a shift on a date.
// ShiftAffiliation names a ShiftDefinition, or one of the legacy aliases
// "MORNING"/"EVENING" resolved by the shift catalog.
type Analyst struct {
	CreatedAt        time.Time `json:"created_at"`
	ID               string    `json:"id"`
	DisplayName      string    `json:"display_name"`
	Email            string    `json:"email"`
	RegionID         string    `json:"region_id"`
	ShiftAffiliation string    `json:"shift_affiliation"`
	EmployeeType     string    `json:"employee_type"`
	ExperienceLevel  string    `json:"experience_level"`
	Active           bool      `json:"active"`
}

// Vacation covers [StartDate, EndDate] inclusive. The analyst is unavailable
// on those dates only when approved.
type Vacation struct {
	ID         string `json:"id"`
	AnalystID  string `json:"analyst_id"`
	StartDate  string `json:"start_date"` // YYYY-MM-DD
	EndDate    string `json:"end_date"`   // YYYY-MM-DD, inclusive
	Reason     string `json:"reason,omitempty"`
	IsApproved bool   `json:"is_approved"`
}

// Absence is a single-day unavailability record
type Absence struct {
	ID        string `json:"id"`
	AnalystID string `json:"analyst_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Kind      string `json:"kind"` // LEAVE, SICK, COMP_OFF
}

// SchedulingConstraint restricts assignment for one analyst or globally.
// AnalystID is empty for global constraints. Description may carry a numeric
// threshold, read as the first integer in the text.
type SchedulingConstraint struct {
	ID          string         `json:"id"`
	AnalystID   string         `json:"analyst_id,omitempty"`
	Type        ConstraintType `json:"constraint_type"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`
	Description string         `json:"description,omitempty"`
	IsActive    bool           `json:"is_active"`
}

// Covers reports whether the constraint window contains the date.
// Dates are normalized YYYY-MM-DD strings, so string comparison is ordering.
func (c SchedulingConstraint) Covers(date string) bool {
	return c.StartDate <= date && date <= c.EndDate
}

// Holiday is a per-region observed day. Holidays do not block assignment;
// they may trigger comp-off credit policy.
type Holiday struct {
	ID       string `json:"id"`
	RegionID string `json:"region_id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Name     string `json:"name"`
}

// Schedule is one analyst-date-shift assignment
type Schedule struct {
	AnalystID  string       `json:"analyst_id"`
	Date       string       `json:"date"` // YYYY-MM-DD in region timezone
	ShiftType  string       `json:"shift_type"`
	RegionID   string       `json:"region_id"`
	Type       ScheduleType `json:"type"`
	IsScreener bool         `json:"is_screener"`
}

// Key returns the uniqueness key of the schedule. Violations and overwrite
// records reference schedules by this key.
func (s Schedule) Key() string {
	return s.AnalystID + "|" + s.Date + "|" + s.ShiftType
}

// RotationState is the staggered two-analyst weekend pool for one
// (algorithmName, shiftType) pair. Week2StartDate is always Week1StartDate
// plus two days, so each weekend has exactly one Sunday worker and one
// Saturday worker.
type RotationState struct {
	UpdatedAt       time.Time `json:"updated_at"`
	AlgorithmName   string    `json:"algorithm_name"`
	ShiftType       string    `json:"shift_type"`
	Week1Analyst    string    `json:"week1_analyst"`
	Week1StartDate  string    `json:"week1_start_date"` // a Sunday
	Week2Analyst    string    `json:"week2_analyst"`
	Week2StartDate  string    `json:"week2_start_date"` // the Tuesday after
	AvailablePool   []string  `json:"available_pool"`
	CompletedPool   []string  `json:"completed_pool"`
	CycleGeneration int       `json:"cycle_generation"`
	Version         int64     `json:"version"`
}

// PatternContinuityRecord remembers the last weekend pattern an analyst
// closed, enforcing the minimum gap before their next weekend duty.
type PatternContinuityRecord struct {
	UpdatedAt   time.Time      `json:"updated_at"`
	AnalystID   string         `json:"analyst_id"`
	LastPattern WeekendPattern `json:"last_pattern"`
	LastEndDate string         `json:"last_end_date"` // last worked weekend day
}

// CompOffBalance materializes an analyst's earned and used comp-off units.
// It changes only together with a CompOffTransaction in the same atomic unit.
type CompOffBalance struct {
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	AnalystID string    `json:"analyst_id"`
	Earned    int       `json:"earned_units"`
	Used      int       `json:"used_units"`
}

// Available returns earned minus used
func (b CompOffBalance) Available() int {
	return b.Earned - b.Used
}

// CompOffTransaction is one append-only ledger entry. Positive amounts are
// credits, negative amounts debits.
type CompOffTransaction struct {
	CreatedAt    time.Time `json:"created_at"`
	ID           string    `json:"id"`
	BalanceID    string    `json:"balance_id"`
	Reason       string    `json:"reason"`
	ConstraintID string    `json:"constraint_id,omitempty"`
	AbsenceID    string    `json:"absence_id,omitempty"`
	Amount       int       `json:"amount"`
}

// AlgorithmConfig carries the per-run tuning options recognized by the engine
type AlgorithmConfig struct {
	OptimizationStrategy       OptimizationStrategy `json:"optimization_strategy"`
	ScreenerAssignmentStrategy ScreenerStrategy     `json:"screener_assignment_strategy"`
	WeekendRotationStrategy    WeekendStrategy      `json:"weekend_rotation_strategy"`
	MaxIterations              int                  `json:"max_iterations"`
	FairnessWeight             float64              `json:"fairness_weight"`
	EfficiencyWeight           float64              `json:"efficiency_weight"`
	ConstraintWeight           float64              `json:"constraint_weight"`
	MinWeekendGapDays          int                  `json:"min_weekend_gap_days"`
	MaxConsecutiveWorkDays     int                  `json:"max_consecutive_work_days"`
	RandomizationFactor        float64              `json:"randomization_factor"`
}

// DefaultAlgorithmConfig returns the documented defaults: greedy single-pass
// construction weighted entirely toward fairness.
func DefaultAlgorithmConfig() AlgorithmConfig {
	return AlgorithmConfig{
		OptimizationStrategy:       StrategyGreedy,
		ScreenerAssignmentStrategy: ScreenerRoundRobin,
		WeekendRotationStrategy:    WeekendFairnessOptimized,
		MaxIterations:              1,
		FairnessWeight:             1.0,
		EfficiencyWeight:           0.0,
		ConstraintWeight:           0.0,
		MinWeekendGapDays:          13,
		MaxConsecutiveWorkDays:     5,
		RandomizationFactor:        0,
	}
}

// WithDefaults fills zero-valued fields with their defaults. MaxIterations
// defaults to 1 for GREEDY and 1000 for HILL_CLIMBING.
func (c AlgorithmConfig) WithDefaults() AlgorithmConfig {
	def := DefaultAlgorithmConfig()
	if c.OptimizationStrategy == "" {
		c.OptimizationStrategy = def.OptimizationStrategy
	}
	if c.ScreenerAssignmentStrategy == "" {
		c.ScreenerAssignmentStrategy = def.ScreenerAssignmentStrategy
	}
	if c.WeekendRotationStrategy == "" {
		c.WeekendRotationStrategy = def.WeekendRotationStrategy
	}
	if c.MaxIterations <= 0 {
		if c.OptimizationStrategy == StrategyHillClimbing {
			c.MaxIterations = 1000
		} else {
			c.MaxIterations = 1
		}
	}
	if c.FairnessWeight == 0 && c.EfficiencyWeight == 0 && c.ConstraintWeight == 0 {
		c.FairnessWeight = def.FairnessWeight
	}
	if c.MinWeekendGapDays <= 0 {
		c.MinWeekendGapDays = def.MinWeekendGapDays
	}
	if c.MaxConsecutiveWorkDays <= 0 {
		c.MaxConsecutiveWorkDays = def.MaxConsecutiveWorkDays
	}
	return c
}

// GenerationContext carries everything one generation run needs.
// ExistingSchedules seed overwrite detection, screener history and weekend
// gap checks across range boundaries.
type GenerationContext struct {
	StartDate         string                 `json:"start_date"`
	EndDate           string                 `json:"end_date"`
	RegionID          string                 `json:"region_id"`
	Timezone          string                 `json:"timezone"`
	Performer         string                 `json:"performer"`
	Analysts          []Analyst              `json:"analysts"`
	ExistingSchedules []Schedule             `json:"existing_schedules"`
	GlobalConstraints []SchedulingConstraint `json:"global_constraints"`
	Config            AlgorithmConfig        `json:"config"`
	Overwrite         bool                   `json:"overwrite"`    // overwrite conflicting rows on persist
	SavePartial       bool                   `json:"save_partial"` // persist results of a PARTIAL run
}

// Violation describes one constraint breach found during validation
type Violation struct {
	ConstraintType ConstraintType `json:"constraint_type"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	SuggestedFix   string         `json:"suggested_fix,omitempty"`
	AffectedIDs    []string       `json:"affected_schedule_ids"`
	Hard           bool           `json:"hard"`
}

// ValidationReport summarizes post-generation constraint validation.
// Valid is false when any hard violation is present, regardless of score.
type ValidationReport struct {
	Violations []Violation `json:"violations"`
	Score      float64     `json:"score"`
	Valid      bool        `json:"valid"`
}

// Conflict marks a (date, shiftType) the engine could not cover
type Conflict struct {
	Date      string `json:"date"`
	ShiftType string `json:"shift_type"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

// Overwrite records an existing schedule the proposal replaces
type Overwrite struct {
	Existing Schedule `json:"existing"`
	Proposed Schedule `json:"proposed"`
	Reason   string   `json:"reason"`
}

// AnalystFairness holds per-analyst workload totals and the individual
// fairness score
type AnalystFairness struct {
	AnalystID      string  `json:"analyst_id"`
	TotalDays      int     `json:"total_days"`
	WeekendDays    int     `json:"weekend_days"`
	ScreenerDays   int     `json:"screener_days"`
	AfterHoursDays int     `json:"after_hours_days"`
	Score          float64 `json:"score"`
}

// FairnessMetrics reports workload distribution over a schedule set
type FairnessMetrics struct {
	PerAnalyst   []AnalystFairness `json:"per_analyst"`
	Mean         float64           `json:"mean"`
	StdDev       float64           `json:"std_dev"`
	Variance     float64           `json:"variance"`
	OverallScore float64           `json:"overall_score"`
}

// PerformanceMetrics reports where a generation run spent its time
type PerformanceMetrics struct {
	PhaseMs     map[string]int64 `json:"phase_ms"`
	TotalMs     int64            `json:"total_ms"`
	DatesWalked int              `json:"dates_walked"`
}

// GenerationResult is the complete output of one generation run
type GenerationResult struct {
	RunID                string             `json:"run_id"`
	ProposedSchedules    []Schedule         `json:"proposed_schedules"`
	Overwrites           []Overwrite        `json:"overwrites"`
	Conflicts            []Conflict         `json:"conflicts"`
	FairnessMetrics      FairnessMetrics    `json:"fairness_metrics"`
	ConstraintValidation ValidationReport   `json:"constraint_validation"`
	PerformanceMetrics   PerformanceMetrics `json:"performance_metrics"`
}

// GenerationLog is the persisted record of one generation run
type GenerationLog struct {
	CreatedAt          time.Time         `json:"created_at"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	RunID              string            `json:"run_id"`
	Performer          string            `json:"performer"`
	AlgorithmName      string            `json:"algorithm_name"`
	StartDate          string            `json:"start_date"`
	EndDate            string            `json:"end_date"`
	Status             GenerationStatus  `json:"status"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	ExecutionTimeMs    int64             `json:"execution_time_ms"`
	SchedulesGenerated int               `json:"schedules_generated"`
	ConflictsDetected  int               `json:"conflicts_detected"`
	FairnessScore      float64           `json:"fairness_score"`
}

// SwapViolation describes a block-integrity breach found by swap simulation.
// A streak span of length L violates when L > 5 and L is not a multiple of 5.
type SwapViolation struct {
	AnalystID string `json:"analyst_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Message   string `json:"message"`
	Length    int    `json:"length"`
}
