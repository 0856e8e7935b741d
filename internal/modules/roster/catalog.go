package roster

import (
	"sort"
	"strings"

	"github.com/shiftops/rosterd/internal/domain"
)

// Legacy affiliation aliases. Analysts migrated from older rosters carry
// "MORNING" or "EVENING" instead of a concrete shift name.
const (
	AliasMorning = "MORNING"
	AliasEvening = "EVENING"
)

// Catalog is a region's ordered shift lineup. The earliest shift is the
// AM-equivalent, the latest the PM-equivalent; the legacy aliases resolve
// against those two positions.
type Catalog struct {
	regionID string
	shifts   []domain.ShiftDefinition
	byName   map[string]int
}

// NewCatalog builds the catalog for a region. A region with zero shift
// definitions cannot be scheduled, so that is a configuration error.
func NewCatalog(regionID string, defs []domain.ShiftDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, domain.NewConfigError("region has no shift definitions", regionID)
	}

	shifts := make([]domain.ShiftDefinition, len(defs))
	copy(shifts, defs)
	sort.SliceStable(shifts, func(i, j int) bool {
		// "HH:MM" strings order chronologically
		if shifts[i].StartTime != shifts[j].StartTime {
			return shifts[i].StartTime < shifts[j].StartTime
		}
		return shifts[i].Name < shifts[j].Name
	})

	byName := make(map[string]int, len(shifts))
	for i, s := range shifts {
		byName[s.Name] = i
	}

	return &Catalog{regionID: regionID, shifts: shifts, byName: byName}, nil
}

// RegionID returns the owning region
func (c *Catalog) RegionID() string {
	return c.regionID
}

// Shifts returns the definitions in catalog order (earliest start first)
func (c *Catalog) Shifts() []domain.ShiftDefinition {
	return c.shifts
}

// Size returns the number of shifts in the region
func (c *Catalog) Size() int {
	return len(c.shifts)
}

// Earliest returns the AM-equivalent shift
func (c *Catalog) Earliest() domain.ShiftDefinition {
	return c.shifts[0]
}

// Latest returns the PM-equivalent shift
func (c *Catalog) Latest() domain.ShiftDefinition {
	return c.shifts[len(c.shifts)-1]
}

// IsLatest reports whether the named shift is the PM-equivalent
func (c *Catalog) IsLatest(name string) bool {
	return name == c.Latest().Name
}

// Resolve maps a shift affiliation to its definition. Concrete shift names
// match exactly; the MORNING/EVENING aliases map to the earliest and latest
// shift respectively.
func (c *Catalog) Resolve(affiliation string) (domain.ShiftDefinition, error) {
	if idx, ok := c.byName[affiliation]; ok {
		return c.shifts[idx], nil
	}

	switch strings.ToUpper(strings.TrimSpace(affiliation)) {
	case AliasMorning:
		return c.Earliest(), nil
	case AliasEvening:
		return c.Latest(), nil
	}

	return domain.ShiftDefinition{}, domain.NewConfigError(
		"unknown shift affiliation "+affiliation, c.regionID)
}

// Names returns the shift names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.shifts))
	for i, s := range c.shifts {
		names[i] = s.Name
	}
	return names
}
