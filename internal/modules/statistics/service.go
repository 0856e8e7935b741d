package statistics

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/events"
	"github.com/shiftops/rosterd/internal/modules/roster"
	"github.com/shiftops/rosterd/internal/modules/rotation"
	"github.com/shiftops/rosterd/internal/modules/schedule"
)

// AnalystRotationStats tallies one analyst's share of a region's schedules
// over a date range. Weekend, screener and shift-rotation assignments are
// broken out so uneven rotation shows up next to raw day counts.
type AnalystRotationStats struct {
	AnalystID    string `json:"analyst_id"`
	DisplayName  string `json:"display_name"`
	TotalDays    int    `json:"total_days"`
	WeekendDays  int    `json:"weekend_days"`
	ScreenerDays int    `json:"screener_days"`
	RotationDays int    `json:"rotation_days"`
}

// RotationPoolStatus summarizes the live rotation state for one shift type:
// who holds the two weekend slots, which cycle the pool is in and who is
// queued next.
type RotationPoolStatus struct {
	ShiftType       string   `json:"shift_type"`
	Week1Analyst    string   `json:"week1_analyst"`
	Week1StartDate  string   `json:"week1_start_date"`
	Week2Analyst    string   `json:"week2_analyst"`
	Week2StartDate  string   `json:"week2_start_date"`
	CycleGeneration int      `json:"cycle_generation"`
	UpcomingOrder   []string `json:"upcoming_order"`
	CompletedCount  int      `json:"completed_count"`
}

// RotationReport is the per-region rotation statistics payload
type RotationReport struct {
	RegionID  string                 `json:"region_id"`
	StartDate string                 `json:"start_date"`
	EndDate   string                 `json:"end_date"`
	Analysts  []AnalystRotationStats `json:"analysts"`
	Pools     []RotationPoolStatus   `json:"pools"`
}

// FairnessPoint is one generation run's fairness outcome
type FairnessPoint struct {
	CreatedAt          time.Time               `json:"created_at"`
	RunID              string                  `json:"run_id"`
	RegionID           string                  `json:"region_id"`
	StartDate          string                  `json:"start_date"`
	EndDate            string                  `json:"end_date"`
	Status             domain.GenerationStatus `json:"status"`
	FairnessScore      float64                 `json:"fairness_score"`
	SchedulesGenerated int                     `json:"schedules_generated"`
	ConflictsDetected  int                     `json:"conflicts_detected"`
}

// Service computes rotation and fairness reports. Reads go through the
// report cache first; a completed generation run clears the cache so the
// next read recomputes from the new rows.
type Service struct {
	cal       *calendar.Calendar
	schedules *schedule.Repository
	rotations *rotation.Repository
	genLog    *schedule.GenerationLogRepository
	analysts  *roster.AnalystRepository
	cache     *ReportCache
	log       zerolog.Logger
}

// NewService creates a statistics service and subscribes it to generation
// lifecycle events for cache invalidation.
func NewService(
	schedules *schedule.Repository,
	rotations *rotation.Repository,
	genLog *schedule.GenerationLogRepository,
	analysts *roster.AnalystRepository,
	cache *ReportCache,
	bus *events.Bus,
	log zerolog.Logger,
) *Service {
	s := &Service{
		cal:       calendar.UTC(),
		schedules: schedules,
		rotations: rotations,
		genLog:    genLog,
		analysts:  analysts,
		cache:     cache,
		log:       log.With().Str("component", "statistics").Logger(),
	}

	if bus != nil {
		bus.Subscribe(events.GenerationCompleted, func(events.EventWithData) {
			if err := s.cache.InvalidateAll(); err != nil {
				s.log.Warn().Err(err).Msg("Failed to clear report cache")
			}
		})
	}

	return s
}

// RotationReport tallies a region's schedules over [start, end] inclusive
// per analyst and attaches the live rotation pool state for every shift.
// Ghost rows referencing analysts outside the active roster are skipped,
// matching how fairness scoring reads the same table.
func (s *Service) RotationReport(regionID, start, end string) (*RotationReport, error) {
	if err := s.validateRange(regionID, start, end); err != nil {
		return nil, err
	}

	key := "rotation|" + regionID + "|" + start + "|" + end
	var cached RotationReport
	hit, err := s.cache.Load(key, &cached)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Report cache read failed")
	} else if hit {
		return &cached, nil
	}

	analysts, err := s.analysts.ListByRegion(regionID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysts: %w", err)
	}

	stats := make(map[string]*AnalystRotationStats, len(analysts))
	order := make([]string, 0, len(analysts))
	for _, a := range analysts {
		stats[a.ID] = &AnalystRotationStats{AnalystID: a.ID, DisplayName: a.DisplayName}
		order = append(order, a.ID)
	}

	rows, err := s.schedules.GetByRegionRange(regionID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}
	for _, row := range rows {
		st, ok := stats[row.AnalystID]
		if !ok {
			continue
		}
		st.TotalDays++
		if s.cal.IsWeekend(row.Date) {
			st.WeekendDays++
		}
		if row.IsScreener {
			st.ScreenerDays++
		}
		if row.Type == domain.ScheduleTypeAMToPMRotation {
			st.RotationDays++
		}
	}

	report := &RotationReport{
		RegionID:  regionID,
		StartDate: start,
		EndDate:   end,
		Analysts:  make([]AnalystRotationStats, 0, len(order)),
	}
	for _, id := range order {
		report.Analysts = append(report.Analysts, *stats[id])
	}

	states, err := s.rotations.List(domain.CoreAlgorithmName)
	if err != nil {
		return nil, fmt.Errorf("failed to load rotation state: %w", err)
	}
	shiftTypes := make([]string, 0, len(states))
	for shiftType := range states {
		shiftTypes = append(shiftTypes, shiftType)
	}
	sort.Strings(shiftTypes)
	for _, shiftType := range shiftTypes {
		state := states[shiftType]
		report.Pools = append(report.Pools, RotationPoolStatus{
			ShiftType:       shiftType,
			Week1Analyst:    state.Week1Analyst,
			Week1StartDate:  state.Week1StartDate,
			Week2Analyst:    state.Week2Analyst,
			Week2StartDate:  state.Week2StartDate,
			CycleGeneration: state.CycleGeneration,
			UpcomingOrder:   state.AvailablePool,
			CompletedCount:  len(state.CompletedPool),
		})
	}

	s.storeReport(key, report)
	return report, nil
}

// FairnessHistory returns the fairness trajectory of past generation runs,
// newest first. Failed runs carry no fairness signal and are skipped.
// A limit of 0 uses the repository default.
func (s *Service) FairnessHistory(limit int) ([]FairnessPoint, error) {
	if limit < 0 {
		return nil, domain.NewConfigError("limit must be non-negative")
	}

	key := "fairness_history|" + strconv.Itoa(limit)
	var cached []FairnessPoint
	hit, err := s.cache.Load(key, &cached)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Report cache read failed")
	} else if hit {
		return cached, nil
	}

	entries, err := s.genLog.List(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation log: %w", err)
	}

	points := make([]FairnessPoint, 0, len(entries))
	for _, e := range entries {
		if e.Status == domain.GenerationFailed {
			continue
		}
		points = append(points, FairnessPoint{
			CreatedAt:          e.CreatedAt,
			RunID:              e.RunID,
			RegionID:           e.Metadata["region_id"],
			StartDate:          e.StartDate,
			EndDate:            e.EndDate,
			Status:             e.Status,
			FairnessScore:      e.FairnessScore,
			SchedulesGenerated: e.SchedulesGenerated,
			ConflictsDetected:  e.ConflictsDetected,
		})
	}

	s.storeReport(key, points)
	return points, nil
}

func (s *Service) validateRange(regionID, start, end string) error {
	if regionID == "" {
		return domain.NewConfigError("region_id is required")
	}
	startDay, err := s.cal.Parse(start)
	if err != nil {
		return domain.NewConfigError(fmt.Sprintf("invalid start_date %q", start))
	}
	endDay, err := s.cal.Parse(end)
	if err != nil {
		return domain.NewConfigError(fmt.Sprintf("invalid end_date %q", end))
	}
	if endDay.Before(startDay) {
		return domain.NewConfigError("end_date is before start_date")
	}
	return nil
}

// storeReport writes through to the cache. Cache write failures degrade to
// recomputation on the next read, so they only warn.
func (s *Service) storeReport(key string, value interface{}) {
	if err := s.cache.Store(key, value, DefaultReportTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Report cache write failed")
	}
}
