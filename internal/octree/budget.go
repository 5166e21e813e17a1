package octree

import "math"

// Budget limits the work done by one Refine call. Zero counts mean
// unlimited; MaxRelativeLOD 0 disables neighbor gradation.
type Budget struct {
	MaxSubdivisions       int
	MaxCollapses          int
	MaxRelativeLOD        int32
	MaxNeighborIterations int
}

var (
	DefaultBudget = Budget{
		MaxSubdivisions:       32,
		MaxCollapses:          32,
		MaxRelativeLOD:        1,
		MaxNeighborIterations: 4,
	}
	UnlimitedBudget = Budget{
		MaxSubdivisions:       math.MaxInt,
		MaxCollapses:          math.MaxInt,
		MaxRelativeLOD:        1,
		MaxNeighborIterations: math.MaxInt,
	}
	NoNeighborEnforcement = Budget{
		MaxSubdivisions: 32,
		MaxCollapses:    32,
	}
)

const defaultNeighborIterations = 4

func (b Budget) NeighborEnforcementEnabled() bool { return b.MaxRelativeLOD > 0 }

func (b Budget) CanSubdivide(performed int) bool {
	return b.MaxSubdivisions == 0 || performed < b.MaxSubdivisions
}

func (b Budget) CanCollapse(performed int) bool {
	return b.MaxCollapses == 0 || performed < b.MaxCollapses
}

func (b Budget) neighborIterations() int {
	if b.MaxNeighborIterations > 0 {
		return b.MaxNeighborIterations
	}
	return defaultNeighborIterations
}

// Stats counts what a Refine call actually did.
type Stats struct {
	Subdivisions         int
	Collapses            int
	NeighborSubdivisions int
}

func (s Stats) TotalTransitions() int {
	return s.Subdivisions + s.Collapses + s.NeighborSubdivisions
}

func (s Stats) TotalSubdivisions() int {
	return s.Subdivisions + s.NeighborSubdivisions
}
