package study

import (
	"survsim/domain/core"
)

// Group identifies the randomized arm a subject belongs to
type Group string

const (
	GroupPlacebo   Group = "placebo"
	GroupTreatment Group = "treatment"
)

// Indicator returns the design-matrix coding for the group (placebo=0, treatment=1)
func (g Group) Indicator() float64 {
	if g == GroupTreatment {
		return 1
	}
	return 0
}

// EventStatus marks whether an observed time is an event or a censoring
type EventStatus int

const (
	StatusCensored EventStatus = 0
	StatusEvent    EventStatus = 1
)

// Subject is one simulated individual. LatentTime and CensoringTime are the
// unobservable quantities; analysis code only ever sees the derived Observation.
type Subject struct {
	ID            core.SubjectID `json:"id"`
	Group         Group          `json:"group"`
	Covariates    []float64      `json:"covariates,omitempty"`
	LatentTime    float64        `json:"latent_time"`
	CensoringTime float64        `json:"censoring_time"`
}

// Cohort is an immutable snapshot of subjects generated once per run from the
// seed. Censoring conditions derive observed datasets from it without ever
// mutating the latent times.
type Cohort struct {
	RunID    core.RunID     `json:"run_id"`
	Design   core.DesignKey `json:"design"`
	Subjects []Subject      `json:"subjects"`
	Created  core.Timestamp `json:"created_at"`
}

// Size returns the number of subjects in the cohort
func (c *Cohort) Size() int {
	return len(c.Subjects)
}

// Observation is the analysis-facing view of one subject: observed time and
// event indicator after censoring has been applied.
type Observation struct {
	SubjectID  core.SubjectID `json:"subject_id"`
	Group      Group          `json:"group"`
	Covariates []float64      `json:"covariates,omitempty"`
	Time       float64        `json:"time"`
	Event      EventStatus    `json:"event"`
}

// Dataset is a derived, per-condition snapshot of observations. It is
// independent of every other condition's dataset.
type Dataset struct {
	Condition    core.ConditionKey `json:"condition"`
	Design       core.DesignKey    `json:"design"`
	Observations []Observation     `json:"observations"`
}

// Size returns the number of observations
func (d *Dataset) Size() int {
	return len(d.Observations)
}

// EventCount returns the number of observed events
func (d *Dataset) EventCount() int {
	n := 0
	for _, o := range d.Observations {
		if o.Event == StatusEvent {
			n++
		}
	}
	return n
}

// CensoredFraction returns the realized aggregate censoring fraction
func (d *Dataset) CensoredFraction() float64 {
	if len(d.Observations) == 0 {
		return 0
	}
	return 1 - float64(d.EventCount())/float64(len(d.Observations))
}

// GroupEventCounts returns observed event counts keyed by arm, in a fixed order
// (placebo first) so callers stay deterministic.
func (d *Dataset) GroupEventCounts() (placebo, treatment int) {
	for _, o := range d.Observations {
		if o.Event != StatusEvent {
			continue
		}
		if o.Group == GroupTreatment {
			treatment++
		} else {
			placebo++
		}
	}
	return placebo, treatment
}

// DesignMatrix returns the covariate matrix used by the fitting layer: the
// group indicator in column 0 followed by any continuous covariates.
func (d *Dataset) DesignMatrix() [][]float64 {
	x := make([][]float64, len(d.Observations))
	for i, o := range d.Observations {
		row := make([]float64, 1+len(o.Covariates))
		row[0] = o.Group.Indicator()
		copy(row[1:], o.Covariates)
		x[i] = row
	}
	return x
}

// Times returns observed times and event indicators as parallel slices
func (d *Dataset) Times() (times []float64, events []int) {
	times = make([]float64, len(d.Observations))
	events = make([]int, len(d.Observations))
	for i, o := range d.Observations {
		times[i] = o.Time
		events[i] = int(o.Event)
	}
	return times, events
}
