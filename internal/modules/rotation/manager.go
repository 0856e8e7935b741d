package rotation

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
)

// patternWeekDays is the length of one rotation pattern week
const patternWeekDays = 7

// WeekendHistory summarizes each analyst's weekend load before the
// generation window. It seeds the initial pool order.
type WeekendHistory struct {
	Days     map[string]int    // analyst id -> historical weekend days worked
	LastDate map[string]string // analyst id -> most recent weekend day, if any
}

// CycleEvent records one pool reseed. The engine drains these after a
// successful run and publishes them on the event bus.
type CycleEvent struct {
	ShiftType  string
	Generation int
	PoolSize   int
}

// Manager drives the staggered two-analyst weekend rotation for one shift
// type. The week-one slot runs Sunday through Thursday, the week-two slot
// Tuesday through Saturday two days behind, so every weekend has exactly one
// Sunday worker and one Saturday worker. Both slots turn over together on the
// week-one cadence, which keeps the two-day stagger a standing invariant and
// gives the incoming Saturday analyst their Monday rest day. Analysts
// completing a pattern week move to the completed pool and return only after
// everyone else has served.
type Manager struct {
	cal    *calendar.Calendar
	state  *domain.RotationState
	log    zerolog.Logger
	cycles []CycleEvent
}

// NewManager wraps a loaded or freshly initialized state
func NewManager(state *domain.RotationState, cal *calendar.Calendar, log zerolog.Logger) *Manager {
	return &Manager{
		cal:   cal,
		state: state,
		log:   log.With().Str("component", "rotation").Str("shift_type", state.ShiftType).Logger(),
	}
}

// NewState seeds a rotation for one shift type. Pool order favors analysts
// with the fewest historical weekend days, then the longest time since their
// last weekend day, then display name, then id. Week one anchors at the
// Sunday of the week containing rangeStart; week two trails by two days.
func NewState(algorithmName, shiftType, rangeStart string, analysts []domain.Analyst, hist WeekendHistory, cal *calendar.Calendar) (*domain.RotationState, error) {
	if len(analysts) == 0 {
		return nil, domain.NewConfigError(fmt.Sprintf("no analysts available for %s rotation", shiftType))
	}

	week1Start := cal.SundayOfWeek(rangeStart)
	if week1Start == "" {
		return nil, domain.NewConfigError(fmt.Sprintf("invalid rotation start date %q", rangeStart))
	}

	order := rankForRotation(analysts, hist)
	state := &domain.RotationState{
		AlgorithmName:  algorithmName,
		ShiftType:      shiftType,
		Week1Analyst:   order[0],
		Week1StartDate: week1Start,
		Week2StartDate: cal.AddDays(week1Start, 2),
	}
	if len(order) > 1 {
		state.Week2Analyst = order[1]
	}
	if len(order) > 2 {
		state.AvailablePool = append([]string(nil), order[2:]...)
	}
	return state, nil
}

// rankForRotation orders analysts by how much weekend duty they owe
func rankForRotation(analysts []domain.Analyst, hist WeekendHistory) []string {
	ranked := make([]domain.Analyst, len(analysts))
	copy(ranked, analysts)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		da, db := hist.Days[a.ID], hist.Days[b.ID]
		if da != db {
			return da < db
		}
		// earlier last weekend day ranks first; never-served earliest of all
		la, lb := hist.LastDate[a.ID], hist.LastDate[b.ID]
		if la != lb {
			return la < lb
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.ID < b.ID
	})

	ids := make([]string, len(ranked))
	for i, a := range ranked {
		ids[i] = a.ID
	}
	return ids
}

// State exposes the underlying state for persistence
func (m *Manager) State() *domain.RotationState {
	return m.state
}

// Cycles returns the pool reseeds recorded since the manager was created
func (m *Manager) Cycles() []CycleEvent {
	return m.cycles
}

// AdvanceTo rolls the rotation forward until the pattern week anchored at
// Week1StartDate covers date. Each turnover retires both occupants to the
// completed pool and pulls the two oldest available analysts into the slots,
// week one starting the new Sunday and week two trailing by two days. An
// empty available pool reseeds from the completed pool and bumps the cycle
// generation.
func (m *Manager) AdvanceTo(date string) error {
	for m.turnoverDue(date) {
		if err := m.turnover(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) turnoverDue(date string) bool {
	if m.state.Week1StartDate == "" {
		return false
	}
	return m.cal.DaysBetween(m.state.Week1StartDate, date) >= patternWeekDays
}

// weekCovers reports whether date falls inside the pattern week anchored at
// Week1StartDate. Outside the covered week every analyst is regular.
func (m *Manager) weekCovers(date string) bool {
	if m.state.Week1StartDate == "" {
		return false
	}
	diff := m.cal.DaysBetween(m.state.Week1StartDate, date)
	return diff >= 0 && diff < patternWeekDays
}

func (m *Manager) turnover() error {
	week1Start := m.cal.AddDays(m.state.Week1StartDate, patternWeekDays)
	if week1Start == "" {
		return domain.NewDataIntegrityError(
			fmt.Sprintf("rotation for %s carries invalid start date %q", m.state.ShiftType, m.state.Week1StartDate))
	}

	prev1, prev2 := m.state.Week1Analyst, m.state.Week2Analyst
	if prev1 != "" {
		m.state.CompletedPool = append(m.state.CompletedPool, prev1)
	}
	if prev2 != "" {
		m.state.CompletedPool = append(m.state.CompletedPool, prev2)
	}

	m.state.Week1Analyst = m.nextFromPool()
	m.state.Week2Analyst = m.nextFromPool()
	m.state.Week1StartDate = week1Start
	m.state.Week2StartDate = m.cal.AddDays(week1Start, 2)

	m.log.Debug().
		Str("completed_week1", prev1).
		Str("completed_week2", prev2).
		Str("next_week1", m.state.Week1Analyst).
		Str("next_week2", m.state.Week2Analyst).
		Str("start_date", week1Start).
		Msg("Rotation slots turned over")
	return nil
}

// nextFromPool pops the oldest available analyst, reseeding from the
// completed pool when the available pool is empty. With a roster of one or
// two the reseed hands the same analysts straight back, which keeps the
// rotation cycling instead of stalling.
func (m *Manager) nextFromPool() string {
	if len(m.state.AvailablePool) == 0 {
		if len(m.state.CompletedPool) == 0 {
			return ""
		}
		m.state.AvailablePool = m.state.CompletedPool
		m.state.CompletedPool = nil
		m.state.CycleGeneration++
		m.cycles = append(m.cycles, CycleEvent{
			ShiftType:  m.state.ShiftType,
			Generation: m.state.CycleGeneration,
			PoolSize:   len(m.state.AvailablePool),
		})
		m.log.Info().
			Int("generation", m.state.CycleGeneration).
			Int("pool_size", len(m.state.AvailablePool)).
			Msg("Rotation pool cycled")
	}

	next := m.state.AvailablePool[0]
	m.state.AvailablePool = m.state.AvailablePool[1:]
	return next
}

// PlanWeekendAssignmentForDate returns the analyst on duty for a weekend
// date and the pattern that put them there. Sundays belong to the week-one
// slot and Saturdays to the week-two slot. An empty analyst means the slot
// is unfilled and the day needs a substitute or a conflict record.
func (m *Manager) PlanWeekendAssignmentForDate(date string) (string, domain.WeekendPattern, error) {
	if err := m.AdvanceTo(date); err != nil {
		return "", domain.PatternRegular, err
	}
	if !m.weekCovers(date) {
		return "", domain.PatternRegular, nil
	}

	switch m.cal.Weekday(date) {
	case time.Sunday:
		return m.state.Week1Analyst, domain.PatternSunThu, nil
	case time.Saturday:
		return m.state.Week2Analyst, domain.PatternTueSat, nil
	}
	return "", domain.PatternRegular, nil
}

// PatternFor returns the pattern governing an analyst on a date: SUN_THU or
// TUE_SAT while they occupy the matching slot, REGULAR otherwise. Occupancy
// spans the whole pattern week, so the week-two analyst is off pattern on
// the Sunday and Monday before their Tuesday start rather than picking up
// regular days that would run their streak into the weekend.
func (m *Manager) PatternFor(analystID, date string) (domain.WeekendPattern, error) {
	if err := m.AdvanceTo(date); err != nil {
		return domain.PatternRegular, err
	}
	if analystID == "" || !m.weekCovers(date) {
		return domain.PatternRegular, nil
	}

	if analystID == m.state.Week1Analyst {
		return domain.PatternSunThu, nil
	}
	if analystID == m.state.Week2Analyst {
		return domain.PatternTueSat, nil
	}
	return domain.PatternRegular, nil
}

// ShouldAnalystWork reports whether the analyst's pattern covers the date
func (m *Manager) ShouldAnalystWork(analystID, date string) (bool, error) {
	pattern, err := m.PatternFor(analystID, date)
	if err != nil {
		return false, err
	}
	return pattern.WorksOn(m.cal.Weekday(date)), nil
}

// AvailableCandidates returns the current pool order for substitution scans
func (m *Manager) AvailableCandidates() []string {
	return append([]string(nil), m.state.AvailablePool...)
}

// SubstituteWeekendAnalyst replaces the slot occupant responsible for a
// weekend date. The substitute keeps the slot's start date and therefore
// inherits the remaining portion of the pattern week; the replaced analyst
// moves to the completed pool so their served days still count.
func (m *Manager) SubstituteWeekendAnalyst(date, substitute string) error {
	if err := m.AdvanceTo(date); err != nil {
		return err
	}

	var slot *string
	switch m.cal.Weekday(date) {
	case time.Sunday:
		slot = &m.state.Week1Analyst
	case time.Saturday:
		slot = &m.state.Week2Analyst
	default:
		return domain.NewDataIntegrityError(fmt.Sprintf("substitution requested for non-weekend date %s", date))
	}

	replaced := *slot
	if replaced == substitute {
		return nil
	}
	if replaced != "" {
		m.state.CompletedPool = append(m.state.CompletedPool, replaced)
	}
	m.state.AvailablePool = removeFromPool(m.state.AvailablePool, substitute)
	*slot = substitute

	m.log.Info().
		Str("date", date).
		Str("replaced", replaced).
		Str("substitute", substitute).
		Msg("Weekend analyst substituted")
	return nil
}

func removeFromPool(pool []string, id string) []string {
	for i, candidate := range pool {
		if candidate == id {
			return append(pool[:i:i], pool[i+1:]...)
		}
	}
	return pool
}
