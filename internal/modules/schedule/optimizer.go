package schedule

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/constraint"
)

// screenerGroup holds the schedule indices sharing one date and shift type.
// Moving the screener flag inside a group never changes coverage, only who
// carries the screener load.
type screenerGroup struct {
	key     string
	members []int
}

// optimizeScreeners runs a bounded first-improvement local search over the
// screener designations of the proposed set. Each move reassigns one day's
// screener within its shift group and keeps the flip only when the weighted
// objective improves. The pass is deterministic: groups and candidates are
// visited in sorted order, and a nonzero randomization factor perturbs the
// visit order with a generator seeded from the request key, never from the
// clock.
func optimizeScreeners(schedules []domain.Schedule, rules *constraint.RuleSet, analysts []domain.Analyst, cfg domain.AlgorithmConfig, seedKey string, log zerolog.Logger) []domain.Schedule {
	groups := screenerGroups(schedules)
	if len(groups) == 0 {
		return schedules
	}

	if cfg.RandomizationFactor > 0 {
		h := fnv.New64a()
		h.Write([]byte(seedKey))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))
		rng.Shuffle(len(groups), func(i, j int) {
			groups[i], groups[j] = groups[j], groups[i]
		})
	}

	best := screenerObjective(schedules, rules, analysts, cfg)
	evals := 0
	improved := true
	for improved && evals < cfg.MaxIterations {
		improved = false
		for _, g := range groups {
			if len(g.members) < 2 {
				continue
			}
			cur := -1
			for _, idx := range g.members {
				if schedules[idx].IsScreener {
					cur = idx
					break
				}
			}
			if cur == -1 {
				continue
			}
			for _, idx := range g.members {
				if idx == cur || evals >= cfg.MaxIterations {
					continue
				}
				evals++
				schedules[cur].IsScreener = false
				schedules[idx].IsScreener = true
				if score := screenerObjective(schedules, rules, analysts, cfg); score > best+1e-9 {
					best = score
					cur = idx
					improved = true
				} else {
					schedules[idx].IsScreener = false
					schedules[cur].IsScreener = true
				}
			}
		}
	}

	log.Debug().
		Int("evaluations", evals).
		Float64("objective", best).
		Msg("Screener optimization finished")
	return schedules
}

func screenerGroups(schedules []domain.Schedule) []screenerGroup {
	byKey := make(map[string][]int)
	for i, s := range schedules {
		key := s.Date + "|" + s.ShiftType
		byKey[key] = append(byKey[key], i)
	}
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groups := make([]screenerGroup, 0, len(keys))
	for _, key := range keys {
		members := byKey[key]
		sort.Slice(members, func(i, j int) bool {
			return schedules[members[i]].AnalystID < schedules[members[j]].AnalystID
		})
		groups = append(groups, screenerGroup{key: key, members: members})
	}
	return groups
}

// screenerObjective scores a candidate set: screener balance across the
// roster under the fairness weight plus the soft-constraint score under the
// constraint weight. Shift coverage is invariant under screener moves, so
// the efficiency weight does not participate.
func screenerObjective(schedules []domain.Schedule, rules *constraint.RuleSet, analysts []domain.Analyst, cfg domain.AlgorithmConfig) float64 {
	counts := make(map[string]float64, len(analysts))
	for _, a := range analysts {
		counts[a.ID] = 0
	}
	for _, s := range schedules {
		if s.IsScreener {
			counts[s.AnalystID]++
		}
	}
	data := make([]float64, 0, len(analysts))
	for _, a := range analysts {
		data = append(data, counts[a.ID])
	}

	balance := 1.0
	mean := stat.Mean(data, nil)
	sigma := 0.0
	if len(data) > 1 {
		sigma = stat.PopStdDev(data, nil)
	}
	if mean > 0 {
		balance = 1 - sigma/mean
		if balance < 0 {
			balance = 0
		}
	} else if sigma > 0 {
		balance = 0
	}

	score := cfg.FairnessWeight * balance
	if cfg.ConstraintWeight > 0 {
		report := rules.Validate(schedules)
		score += cfg.ConstraintWeight * report.Score
	}
	return score
}
