package models

import (
	"errors"
	"fmt"
)

// ErrUnknownPlan is returned when a plan ID is not in the catalog.
var ErrUnknownPlan = errors.New("unknown plan")

// PlanID identifies one of the fixed workout plans.
type PlanID string

const (
	PlanBeginner     PlanID = "beginner"
	PlanIntermediate PlanID = "intermediate"
	PlanAdvanced     PlanID = "advanced"
)

// Plan is an immutable set/rep/rest configuration.
type Plan struct {
	ID          PlanID `json:"id"`
	Label       string `json:"label"`
	Sets        int    `json:"sets"`
	RepsPerSet  int    `json:"reps_per_set"`
	RestSeconds int    `json:"rest_seconds"`
}

// TargetReps is the number of reps needed to finish the plan.
func (p Plan) TargetReps() int {
	return p.Sets * p.RepsPerSet
}

var catalog = map[PlanID]Plan{
	PlanBeginner:     {ID: PlanBeginner, Label: "Beginner (3x10)", Sets: 3, RepsPerSet: 10, RestSeconds: 60},
	PlanIntermediate: {ID: PlanIntermediate, Label: "Intermediate (4x15)", Sets: 4, RepsPerSet: 15, RestSeconds: 45},
	PlanAdvanced:     {ID: PlanAdvanced, Label: "Advanced (5x20)", Sets: 5, RepsPerSet: 20, RestSeconds: 30},
}

// planOrder keeps catalog listings stable.
var planOrder = []PlanID{PlanBeginner, PlanIntermediate, PlanAdvanced}

// IsValid reports whether id names a catalog plan.
func (id PlanID) IsValid() bool {
	_, ok := catalog[id]
	return ok
}

func (id PlanID) String() string {
	return string(id)
}

// ParsePlanID validates a plan name.
func ParsePlanID(s string) (PlanID, error) {
	id := PlanID(s)
	if !id.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return id, nil
}

// LookupPlan returns the catalog entry for id.
func LookupPlan(id PlanID) (Plan, error) {
	p, ok := catalog[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p, nil
}

// Plans returns the full catalog, easiest first.
func Plans() []Plan {
	out := make([]Plan, 0, len(planOrder))
	for _, id := range planOrder {
		out = append(out, catalog[id])
	}
	return out
}
