// Package schedule generates fair work schedules over a date range: weekend
// coverage from the staggered rotation pools, full weekday coverage per
// shift, one screener per day and shift, comp-off credits for weekend duty
// and fairness metrics over the result. Persistence is all-or-nothing per
// run.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/config"
	"github.com/shiftops/rosterd/internal/database"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/events"
	"github.com/shiftops/rosterd/internal/modules/absence"
	"github.com/shiftops/rosterd/internal/modules/compoff"
	"github.com/shiftops/rosterd/internal/modules/constraint"
	"github.com/shiftops/rosterd/internal/modules/roster"
	"github.com/shiftops/rosterd/internal/modules/rotation"
	"github.com/shiftops/rosterd/internal/modules/screener"
	"github.com/shiftops/rosterd/internal/utils"
)

// Deps bundles everything the engine reads and writes
type Deps struct {
	Regions       *roster.RegionRepository
	Shifts        *roster.ShiftRepository
	Analysts      *roster.AnalystRepository
	Holidays      *roster.HolidayRepository
	Vacations     *absence.VacationRepository
	Absences      *absence.Repository
	Constraints   *constraint.Engine
	Schedules     *Repository
	Rotations     *rotation.Repository
	Continuity    *rotation.ContinuityRepository
	GenerationLog *GenerationLogRepository
	Ledger        *compoff.Ledger
	RosterDB      *sql.DB
	Bus           *events.Bus
}

// Engine runs schedule generation. One Generate call is single-threaded and
// deterministic for a fixed input snapshot; concurrent calls are safe only
// for disjoint region and range pairs.
type Engine struct {
	deps Deps
	cfg  config.EngineConfig
	log  zerolog.Logger
}

// NewEngine creates a generation engine
func NewEngine(deps Deps, cfg config.EngineConfig, log zerolog.Logger) *Engine {
	return &Engine{
		deps: deps,
		cfg:  cfg,
		log:  log.With().Str("component", "engine").Logger(),
	}
}

// run carries the working state of one generation pass
type run struct {
	gctx          domain.GenerationContext
	runID         string
	cal           *calendar.Calendar
	catalog       *roster.Catalog
	analysts      []domain.Analyst
	pools         map[string][]domain.Analyst
	rules         *constraint.RuleSet
	absences      *absence.Index
	holidays      map[string]bool
	existing      []domain.Schedule
	existingDates map[string]map[string]bool
	continuity    map[string]domain.PatternContinuityRecord
	managers      map[string]*rotation.Manager
	amToPM        rotation.AMToPMPlan
	streaks       map[string]int
	tracker       *screener.Tracker
	weekend       *WeekendAssigner
	weekday       *WeekdayAssigner
	proposed      []domain.Schedule
	conflicts     []domain.Conflict
	walked        []string
	partial       bool
	partialAt     string
}

// Generate produces and persists the schedule set for one region and range.
// The walk stops at date boundaries on cancellation, returning without any
// persisted state; a run past the soft deadline returns partial metrics and
// persists only when the caller asked to save partial results. Rotation
// state is saved via compare-and-set and never after a partial pass.
func (e *Engine) Generate(ctx context.Context, gctx domain.GenerationContext) (*domain.GenerationResult, error) {
	started := time.Now()
	timer := utils.NewPhaseTimer()
	runID := uuid.NewString()
	log := e.log.With().Str("run_id", runID).Logger()

	timer.Phase("validate")
	r, err := e.newRun(gctx)
	if err != nil {
		e.emitFailed(runID, gctx.RegionID, err)
		return nil, err
	}
	r.runID = runID

	log.Info().
		Str("region_id", r.gctx.RegionID).
		Str("start_date", r.gctx.StartDate).
		Str("end_date", r.gctx.EndDate).
		Str("strategy", string(r.gctx.Config.OptimizationStrategy)).
		Int("analysts", len(r.analysts)).
		Msg("Schedule generation started")
	e.deps.Bus.Emit("schedule", &events.GenerationStartedData{
		RunID:     runID,
		RegionID:  r.gctx.RegionID,
		StartDate: r.gctx.StartDate,
		EndDate:   r.gctx.EndDate,
		Performer: r.gctx.Performer,
	})

	timer.Phase("load")
	if err := e.load(r); err != nil {
		e.emitFailed(runID, r.gctx.RegionID, err)
		e.logFailedRun(r, started, domain.GenerationFailed, err)
		return nil, err
	}

	timer.Phase("plan")
	if err := e.plan(r); err != nil {
		e.emitFailed(runID, r.gctx.RegionID, err)
		e.logFailedRun(r, started, domain.GenerationFailed, err)
		return nil, err
	}

	timer.Phase("walk")
	if err := e.walk(ctx, r); err != nil {
		e.emitFailed(runID, r.gctx.RegionID, err)
		if domain.KindOf(err) != domain.KindCancelled {
			e.logFailedRun(r, started, domain.GenerationFailed, err)
		}
		return nil, err
	}

	timer.Phase("postprocess")
	result := &domain.GenerationResult{RunID: runID}
	e.postprocess(r, result)

	if r.partial && !r.gctx.SavePartial {
		totalMs, phases := timer.Stop()
		result.PerformanceMetrics = domain.PerformanceMetrics{
			PhaseMs:     phases,
			TotalMs:     totalMs,
			DatesWalked: len(r.walked),
		}
		err := domain.NewPartialResultError("generation deadline exceeded at " + r.partialAt)
		e.logFailedRun(r, started, domain.GenerationPartial, err)
		e.emitFailed(runID, r.gctx.RegionID, err)
		log.Warn().Str("stopped_at", r.partialAt).Msg("Generation hit deadline, partial result discarded")
		return result, err
	}

	timer.Phase("persist")
	status := domain.GenerationSuccess
	if r.partial {
		status = domain.GenerationPartial
	}
	written, err := e.persist(r, result, started, status)
	if err != nil {
		e.emitFailed(runID, r.gctx.RegionID, err)
		e.logFailedRun(r, started, domain.GenerationFailed, err)
		return nil, err
	}

	totalMs, phases := timer.Stop()
	result.PerformanceMetrics = domain.PerformanceMetrics{
		PhaseMs:     phases,
		TotalMs:     totalMs,
		DatesWalked: len(r.walked),
	}

	e.applyCredits(r, written)
	e.emitCycles(r)
	e.deps.Bus.Emit("schedule", &events.GenerationCompletedData{
		RunID:              runID,
		RegionID:           r.gctx.RegionID,
		SchedulesGenerated: len(result.ProposedSchedules),
		ConflictsDetected:  len(result.Conflicts),
		FairnessScore:      result.FairnessMetrics.OverallScore,
		DurationMs:         totalMs,
	})

	log.Info().
		Int("schedules", len(result.ProposedSchedules)).
		Int("written", len(written)).
		Int("conflicts", len(result.Conflicts)).
		Int("overwrites", len(result.Overwrites)).
		Float64("fairness", result.FairnessMetrics.OverallScore).
		Int64("total_ms", totalMs).
		Msg("Schedule generation completed")
	return result, nil
}

// newRun validates the request and resolves the region's working set
func (e *Engine) newRun(gctx domain.GenerationContext) (*run, error) {
	if gctx.RegionID == "" {
		return nil, domain.NewConfigError("region id is required")
	}
	if gctx.Performer == "" {
		gctx.Performer = "system"
	}
	if gctx.Config.MinWeekendGapDays <= 0 {
		gctx.Config.MinWeekendGapDays = e.cfg.MinWeekendGapDays
	}
	if gctx.Config.MaxConsecutiveWorkDays <= 0 {
		gctx.Config.MaxConsecutiveWorkDays = e.cfg.MaxConsecutiveWorkDays
	}
	gctx.Config = gctx.Config.WithDefaults()

	region, err := e.deps.Regions.GetByID(gctx.RegionID)
	if err != nil {
		return nil, err
	}
	if region == nil {
		return nil, domain.NewConfigError("region does not exist", gctx.RegionID)
	}

	tz := gctx.Timezone
	if tz == "" {
		tz = region.Timezone
	}
	if tz == "" {
		return nil, domain.NewConfigError("region has no timezone", gctx.RegionID)
	}
	cal, err := calendar.New(tz)
	if err != nil {
		return nil, domain.WrapError(domain.KindConfig, err, "invalid timezone "+tz)
	}
	gctx.Timezone = tz

	if _, err := cal.Parse(gctx.StartDate); err != nil {
		return nil, domain.WrapError(domain.KindConfig, err, "invalid start date "+gctx.StartDate)
	}
	if _, err := cal.Parse(gctx.EndDate); err != nil {
		return nil, domain.WrapError(domain.KindConfig, err, "invalid end date "+gctx.EndDate)
	}
	if gctx.StartDate > gctx.EndDate {
		return nil, domain.NewConfigError(
			fmt.Sprintf("start date %s is after end date %s", gctx.StartDate, gctx.EndDate))
	}

	shifts, err := e.deps.Shifts.ListByRegion(gctx.RegionID)
	if err != nil {
		return nil, err
	}
	catalog, err := roster.NewCatalog(gctx.RegionID, shifts)
	if err != nil {
		return nil, err
	}

	analysts := gctx.Analysts
	if len(analysts) == 0 {
		analysts, err = e.deps.Analysts.ListByRegion(gctx.RegionID, true)
		if err != nil {
			return nil, err
		}
	}
	if len(analysts) == 0 {
		return nil, domain.NewConfigError("analyst roster is empty", gctx.RegionID)
	}
	sort.Slice(analysts, func(i, j int) bool { return analysts[i].ID < analysts[j].ID })

	pools := make(map[string][]domain.Analyst)
	for _, a := range analysts {
		def, err := catalog.Resolve(a.ShiftAffiliation)
		if err != nil {
			return nil, err
		}
		pools[def.Name] = append(pools[def.Name], a)
	}

	return &run{
		gctx:     gctx,
		cal:      cal,
		catalog:  catalog,
		analysts: analysts,
		pools:    pools,
	}, nil
}

// load builds the indices the walk consumes: existing schedules, absences,
// constraint rules, holidays, pattern continuity, streak seeds, rotation
// managers and the screener tracker. Seeding reads only rows dated before
// the range start; in-range rows feed overwrite detection, not history.
func (e *Engine) load(r *run) error {
	lookback := r.gctx.Config.MinWeekendGapDays + 1
	lookbackStart := r.cal.AddDays(r.gctx.StartDate, -lookback)

	existing := r.gctx.ExistingSchedules
	if existing == nil {
		var err error
		existing, err = e.deps.Schedules.GetByRegionRange(r.gctx.RegionID, lookbackStart, r.gctx.EndDate)
		if err != nil {
			return err
		}
	}
	r.existing = existing
	r.existingDates = make(map[string]map[string]bool)
	for _, s := range existing {
		if r.existingDates[s.AnalystID] == nil {
			r.existingDates[s.AnalystID] = make(map[string]bool)
		}
		r.existingDates[s.AnalystID][s.Date] = true
	}

	vacations, err := e.deps.Vacations.ListOverlapping(r.gctx.StartDate, r.gctx.EndDate, true)
	if err != nil {
		return err
	}
	absences, err := e.deps.Absences.ListByRange(r.gctx.StartDate, r.gctx.EndDate)
	if err != nil {
		return err
	}
	r.absences = absence.NewIndex(vacations, absences)

	if len(r.gctx.GlobalConstraints) > 0 {
		r.rules = constraint.NewRuleSetWithDefaults(r.gctx.GlobalConstraints, constraint.Defaults{
			MaxScreenerDays: e.cfg.MaxScreenerDaysDefault,
			MinScreenerDays: e.cfg.MinScreenerDaysDefault,
		})
	} else {
		r.rules, err = e.deps.Constraints.RulesFor(r.gctx.StartDate, r.gctx.EndDate)
		if err != nil {
			return err
		}
	}

	holidays, err := e.deps.Holidays.ListByRegionRange(r.gctx.RegionID, r.gctx.StartDate, r.gctx.EndDate)
	if err != nil {
		return err
	}
	r.holidays = make(map[string]bool, len(holidays))
	for _, h := range holidays {
		r.holidays[h.Date] = true
	}

	r.continuity, err = e.deps.Continuity.GetAll()
	if err != nil {
		return err
	}

	hist := rotation.WeekendHistory{
		Days:     make(map[string]int),
		LastDate: make(map[string]string),
	}
	for _, s := range existing {
		if s.Date >= r.gctx.StartDate || !r.cal.IsWeekend(s.Date) {
			continue
		}
		hist.Days[s.AnalystID]++
		if s.Date > hist.LastDate[s.AnalystID] {
			hist.LastDate[s.AnalystID] = s.Date
		}
		if rec, ok := r.continuity[s.AnalystID]; !ok || s.Date > rec.LastEndDate {
			pattern := domain.PatternTueSat
			if r.cal.Weekday(s.Date) == time.Sunday {
				pattern = domain.PatternSunThu
			}
			r.continuity[s.AnalystID] = domain.PatternContinuityRecord{
				AnalystID:   s.AnalystID,
				LastPattern: pattern,
				LastEndDate: s.Date,
			}
		}
	}

	r.streaks = make(map[string]int)
	for _, a := range r.analysts {
		count := 0
		d := r.cal.AddDays(r.gctx.StartDate, -1)
		for count < lookback && r.existingDates[a.ID][d] {
			count++
			d = r.cal.AddDays(d, -1)
		}
		if count > 0 {
			r.streaks[a.ID] = count
		}
	}

	r.managers = make(map[string]*rotation.Manager)
	for _, shift := range r.catalog.Shifts() {
		pool := r.pools[shift.Name]
		if len(pool) == 0 {
			continue
		}
		state, err := e.deps.Rotations.Get(domain.CoreAlgorithmName, shift.Name)
		if err != nil {
			return err
		}
		if state == nil {
			state, err = rotation.NewState(domain.CoreAlgorithmName, shift.Name, r.gctx.StartDate, pool, hist, r.cal)
			if err != nil {
				return err
			}
		}
		r.managers[shift.Name] = rotation.NewManager(state, r.cal, e.log)
	}

	r.tracker = screener.NewTracker(r.gctx.Config.ScreenerAssignmentStrategy)
	for _, s := range existing {
		if s.IsScreener && s.Date < r.gctx.StartDate {
			r.tracker.Record(s.AnalystID, s.Date)
		}
	}
	if r.gctx.Config.ScreenerAssignmentStrategy == domain.ScreenerWorkloadBalance {
		workload := make(map[string]int)
		for _, s := range existing {
			if s.Date < r.gctx.StartDate {
				workload[s.AnalystID]++
			}
		}
		r.tracker.SetWorkload(workload)
	}
	return nil
}

// plan computes the AM-to-PM rotation over the window and wires the
// assigners. The plan tries rotation patterns against cloned managers so
// the real slot state stays untouched until the walk.
func (e *Engine) plan(r *run) error {
	if r.catalog.Size() >= 2 {
		source := r.pools[r.catalog.Earliest().Name]
		target := r.pools[r.catalog.Latest().Name]
		capacity := (len(source) - len(target)) / 2
		if capacity > 0 {
			history := make(map[string]int)
			for _, s := range r.existing {
				if s.Type == domain.ScheduleTypeAMToPMRotation && s.Date < r.gctx.StartDate {
					history[s.AnalystID]++
				}
			}

			clones := make(map[string]*rotation.Manager, len(r.managers))
			for name, mgr := range r.managers {
				clones[name] = rotation.NewManager(cloneRotationState(mgr.State()), r.cal, e.log)
			}
			onWeekendDuty := func(analystID, date string) bool {
				for _, shift := range r.catalog.Shifts() {
					mgr := clones[shift.Name]
					if mgr == nil {
						continue
					}
					pattern, err := mgr.PatternFor(analystID, date)
					if err == nil && pattern != domain.PatternRegular {
						return true
					}
				}
				return false
			}

			plan, err := rotation.PlanAMToPMRotation(
				r.cal, r.gctx.StartDate, r.gctx.EndDate,
				source, capacity, history, r.absences, onWeekendDuty,
			)
			if err != nil {
				return err
			}
			r.amToPM = plan
		}
	}
	if r.amToPM == nil {
		r.amToPM = make(rotation.AMToPMPlan)
	}

	r.weekend = NewWeekendAssigner(
		r.cal, r.catalog, r.managers, r.rules, r.absences,
		r.continuity, r.streaks, r.holidays,
		r.gctx.Config, e.cfg.HolidayCompCredit, e.log,
	)
	r.weekday = NewWeekdayAssigner(
		r.cal, r.catalog, r.pools, r.managers, r.rules, r.absences,
		r.amToPM, r.streaks, r.gctx.Config, e.log,
	)
	return nil
}

// walk visits each date in order, routing weekends to the rotation slots and
// weekdays to the affiliation pools, then designates the day's screeners and
// advances the streak map. Cancellation is honored at date boundaries only.
func (e *Engine) walk(ctx context.Context, r *run) error {
	dates, err := r.cal.WalkDays(r.gctx.StartDate, r.gctx.EndDate)
	if err != nil {
		return domain.WrapError(domain.KindConfig, err, "invalid generation range")
	}

	var deadline time.Time
	if e.cfg.GenerationDeadlineSecs > 0 {
		deadline = time.Now().Add(time.Duration(e.cfg.GenerationDeadlineSecs) * time.Second)
	}

	for _, date := range dates {
		select {
		case <-ctx.Done():
			return domain.NewCancellationError("generation cancelled at " + date)
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			r.partial = true
			r.partialAt = date
			break
		}
		r.walked = append(r.walked, date)

		if r.rules.BlocksDateGlobally(date) {
			for _, shift := range r.catalog.Shifts() {
				r.conflicts = append(r.conflicts, domain.Conflict{
					Date:      date,
					ShiftType: shift.Name,
					Type:      domain.ConflictBlackout,
					Message:   "date is covered by a global blackout",
				})
			}
			e.advanceStreaks(r, nil)
			continue
		}

		var daySchedules []domain.Schedule
		if r.cal.IsWeekend(date) {
			schedules, conflicts, err := r.weekend.AssignDate(date)
			if err != nil {
				return err
			}
			daySchedules = schedules
			r.conflicts = append(r.conflicts, conflicts...)
		} else {
			daySchedules, err = r.weekday.AssignDate(date)
			if err != nil {
				return err
			}
		}

		e.designateScreeners(r, date, daySchedules)
		e.advanceStreaks(r, daySchedules)
		r.proposed = append(r.proposed, daySchedules...)
	}
	return nil
}

// designateScreeners marks exactly one screener per shift type present on
// the date. Weekend days run through the same selection, which records the
// weekend debt unit on the lone candidate.
func (e *Engine) designateScreeners(r *run, date string, daySchedules []domain.Schedule) {
	byShift := make(map[string][]int)
	for i, s := range daySchedules {
		byShift[s.ShiftType] = append(byShift[s.ShiftType], i)
	}

	shiftTypes := make([]string, 0, len(byShift))
	for shiftType := range byShift {
		shiftTypes = append(shiftTypes, shiftType)
	}
	sort.Strings(shiftTypes)

	for _, shiftType := range shiftTypes {
		indices := byShift[shiftType]
		pool := make([]string, len(indices))
		for i, idx := range indices {
			pool[i] = daySchedules[idx].AnalystID
		}
		chosen := r.tracker.SelectScreener(pool, date)
		for _, idx := range indices {
			if daySchedules[idx].AnalystID == chosen {
				daySchedules[idx].IsScreener = true
				break
			}
		}
	}
}

// advanceStreaks increments the streak of every analyst who worked the date
// and resets everyone else
func (e *Engine) advanceStreaks(r *run, daySchedules []domain.Schedule) {
	worked := make(map[string]bool, len(daySchedules))
	for _, s := range daySchedules {
		worked[s.AnalystID] = true
	}
	for _, a := range r.analysts {
		if worked[a.ID] {
			r.streaks[a.ID]++
		} else {
			r.streaks[a.ID] = 0
		}
	}
}

// postprocess runs the optional optimization pass, computes fairness and
// soft-constraint validation, fills coverage conflicts and overwrite records
func (e *Engine) postprocess(r *run, result *domain.GenerationResult) {
	if r.gctx.Config.OptimizationStrategy == domain.StrategyHillClimbing {
		seedKey := r.gctx.RegionID + "|" + r.gctx.StartDate + "|" + r.gctx.EndDate
		r.proposed = optimizeScreeners(r.proposed, r.rules, r.analysts, r.gctx.Config, seedKey, e.log)
	}

	result.ProposedSchedules = r.proposed
	result.FairnessMetrics = CalculateFairness(r.proposed, r.analysts, r.cal, r.catalog)
	result.ConstraintValidation = r.rules.Validate(r.proposed)

	recorded := make(map[string]bool, len(r.conflicts))
	for _, c := range r.conflicts {
		recorded[c.Date+"|"+c.ShiftType] = true
	}
	covered := make(map[string]bool, len(r.proposed))
	for _, s := range r.proposed {
		covered[s.Date+"|"+s.ShiftType] = true
	}
	for _, date := range r.walked {
		for _, shift := range r.catalog.Shifts() {
			key := date + "|" + shift.Name
			if covered[key] || recorded[key] {
				continue
			}
			r.conflicts = append(r.conflicts, domain.Conflict{
				Date:      date,
				ShiftType: shift.Name,
				Type:      domain.ConflictNoCandidate,
				Message:   fmt.Sprintf("no coverage for %s on %s", shift.Name, date),
			})
		}
	}
	result.Conflicts = r.conflicts

	proposedByDay := make(map[string]domain.Schedule, len(r.proposed))
	for _, p := range r.proposed {
		proposedByDay[p.AnalystID+"|"+p.Date] = p
	}
	for _, ex := range r.existing {
		if ex.Date < r.gctx.StartDate || ex.Date > r.gctx.EndDate {
			continue
		}
		p, ok := proposedByDay[ex.AnalystID+"|"+ex.Date]
		if !ok {
			continue
		}
		if ex.ShiftType == p.ShiftType && ex.IsScreener == p.IsScreener {
			continue
		}
		reason := "shift reassigned"
		if ex.ShiftType == p.ShiftType {
			reason = "screener designation changed"
		}
		result.Overwrites = append(result.Overwrites, domain.Overwrite{
			Existing: ex,
			Proposed: p,
			Reason:   reason,
		})
	}
}

// persist writes the run inside one roster.db transaction: schedules under
// the uniqueness key, rotation state via compare-and-set, touched continuity
// records and the generation log row. A stale rotation version is reloaded
// and retried once. Partial passes never write rotation or continuity state.
// Returns the analyst|date keys of the rows actually written.
func (e *Engine) persist(r *run, result *domain.GenerationResult, started time.Time, status domain.GenerationStatus) (map[string]bool, error) {
	written := make(map[string]bool)

	save := func() error {
		written = make(map[string]bool)
		return database.WithTransaction(e.deps.RosterDB, func(tx *sql.Tx) error {
			for _, s := range r.proposed {
				ok, err := e.deps.Schedules.UpsertTx(tx, s, r.gctx.Overwrite)
				if err != nil {
					return err
				}
				if ok {
					written[s.AnalystID+"|"+s.Date] = true
				}
			}

			if !r.partial {
				for _, shift := range r.catalog.Shifts() {
					mgr := r.managers[shift.Name]
					if mgr == nil {
						continue
					}
					if err := e.deps.Rotations.SaveTx(tx, mgr.State()); err != nil {
						return err
					}
				}
				for _, rec := range r.weekend.TouchedContinuity() {
					if err := e.deps.Continuity.UpsertTx(tx, rec); err != nil {
						return err
					}
				}
			}

			entry := e.buildLogEntry(r, result, started, status, len(written), "")
			if due := e.creditsDue(r, written); len(due) > 0 {
				keys := make([]string, len(due))
				for i, c := range due {
					keys[i] = c.AnalystID + ":" + c.Date
				}
				entry.Metadata["credits_due"] = strings.Join(keys, ",")
			}
			return e.deps.GenerationLog.InsertTx(tx, entry)
		})
	}

	err := save()
	if errors.Is(err, domain.ErrStaleRotationState) {
		for _, shift := range r.catalog.Shifts() {
			mgr := r.managers[shift.Name]
			if mgr == nil {
				continue
			}
			fresh, gerr := e.deps.Rotations.Get(domain.CoreAlgorithmName, shift.Name)
			if gerr != nil {
				return nil, gerr
			}
			if fresh != nil {
				mgr.State().Version = fresh.Version
			}
		}
		e.log.Warn().Str("run_id", r.runID).Msg("Rotation state was stale, retrying persistence once")
		err = save()
	}
	if err != nil {
		return nil, err
	}
	return written, nil
}

// creditsDue filters the walk's earned credits down to weekend rows this run
// introduced. Rows that were skipped, unchanged, or already on the books for
// that analyst and date were credited by the run that first scheduled them.
// The same set is recorded in the generation log's credits_due metadata so a
// run's ledger postings can be reconciled against its log entry.
func (e *Engine) creditsDue(r *run, written map[string]bool) []pendingCredit {
	var due []pendingCredit
	for _, credit := range r.weekend.Credits() {
		if !written[credit.AnalystID+"|"+credit.Date] || r.existingDates[credit.AnalystID][credit.Date] {
			continue
		}
		due = append(due, credit)
	}
	return due
}

// applyCredits posts the comp-off credits for weekend rows that this run
// introduced. Credits post after the schedule transaction; a failed credit is
// logged and reported on the bus but does not unwind the persisted run, and
// the ledger verification endpoint picks up any gap.
func (e *Engine) applyCredits(r *run, written map[string]bool) {
	for _, credit := range e.creditsDue(r, written) {
		_, err := e.deps.Ledger.CreditFromConstraint(credit.AnalystID, r.runID, 1, credit.Reason)
		if err != nil {
			e.log.Error().Err(err).
				Str("run_id", r.runID).
				Str("analyst_id", credit.AnalystID).
				Str("date", credit.Date).
				Msg("Failed to post weekend comp-off credit")
			e.deps.Bus.Emit("schedule", &events.ErrorEventData{
				Error: err.Error(),
				Context: map[string]interface{}{
					"run_id":     r.runID,
					"analyst_id": credit.AnalystID,
					"date":       credit.Date,
				},
			})
			continue
		}
		e.log.Debug().
			Str("analyst_id", credit.AnalystID).
			Str("date", credit.Date).
			Str("comp_off_date", credit.CompOffDate).
			Str("reason", credit.Reason).
			Msg("Weekend comp-off credited")
	}
}

func (e *Engine) emitCycles(r *run) {
	for _, shift := range r.catalog.Shifts() {
		mgr := r.managers[shift.Name]
		if mgr == nil {
			continue
		}
		for _, cycle := range mgr.Cycles() {
			e.deps.Bus.Emit("rotation", &events.RotationCycledData{
				ShiftType:       cycle.ShiftType,
				CycleGeneration: cycle.Generation,
				PoolSize:        cycle.PoolSize,
			})
		}
	}
}

func (e *Engine) buildLogEntry(r *run, result *domain.GenerationResult, started time.Time, status domain.GenerationStatus, written int, errMsg string) domain.GenerationLog {
	fairness := 0.0
	schedules := 0
	conflicts := 0
	if result != nil {
		fairness = result.FairnessMetrics.OverallScore
		schedules = len(result.ProposedSchedules)
		conflicts = len(result.Conflicts)
	}
	return domain.GenerationLog{
		RunID:              r.runID,
		Performer:          r.gctx.Performer,
		AlgorithmName:      domain.CoreAlgorithmName,
		StartDate:          r.gctx.StartDate,
		EndDate:            r.gctx.EndDate,
		SchedulesGenerated: schedules,
		ConflictsDetected:  conflicts,
		FairnessScore:      fairness,
		ExecutionTimeMs:    time.Since(started).Milliseconds(),
		Status:             status,
		ErrorMessage:       errMsg,
		Metadata: map[string]string{
			"region_id":    r.gctx.RegionID,
			"strategy":     string(r.gctx.Config.OptimizationStrategy),
			"overwrite":    strconv.FormatBool(r.gctx.Overwrite),
			"rows_written": strconv.Itoa(written),
		},
	}
}

// logFailedRun records a failed or discarded-partial run outside the
// persistence transaction. Best effort: a run that cannot be logged is still
// reported to the caller through its error.
func (e *Engine) logFailedRun(r *run, started time.Time, status domain.GenerationStatus, cause error) {
	entry := e.buildLogEntry(r, nil, started, status, 0, cause.Error())
	entry.SchedulesGenerated = len(r.proposed)
	entry.ConflictsDetected = len(r.conflicts)
	if err := e.deps.GenerationLog.Insert(entry); err != nil {
		e.log.Error().Err(err).Str("run_id", r.runID).Msg("Failed to record generation log entry")
	}
}

func (e *Engine) emitFailed(runID, regionID string, cause error) {
	e.deps.Bus.Emit("schedule", &events.GenerationFailedData{
		RunID:    runID,
		RegionID: regionID,
		Kind:     string(domain.KindOf(cause)),
		Error:    cause.Error(),
	})
}

func cloneRotationState(s *domain.RotationState) *domain.RotationState {
	clone := *s
	clone.AvailablePool = append([]string(nil), s.AvailablePool...)
	clone.CompletedPool = append([]string(nil), s.CompletedPool...)
	return &clone
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
