package dataset

import (
	"fmt"
	"math"
	"time"

	"gowbic/domain/core"
)

// Dataset is the canonical data object for all WBIC computation.
// It is the single input shared by every model variant in a sweep: a response
// vector, a row-major regressor matrix and an optional time index. Once
// constructed it is never mutated; the sampler and estimator only read it.
type Dataset struct {
	name       string
	response   []float64
	regressors [][]float64 // rows=observations, cols=regressors
	names      []string
	timeIndex  []time.Time // optional, empty or one entry per observation

	// Identity for determinism audits
	id          core.DatasetID
	fingerprint core.DatasetFingerprint
	createdAt   core.Timestamp

	// WBIC temperature, fixed at construction
	temperature float64
}

// New constructs a validated Dataset. Inputs are deep-copied so later
// mutation by the caller cannot reach the sweep.
func New(name string, response []float64, regressors [][]float64, regressorNames []string) (*Dataset, error) {
	return build(name, response, regressors, regressorNames, nil)
}

// NewTimeSeries constructs a Dataset with an observation time index.
// The index carries provenance only; WBIC itself never reads it.
func NewTimeSeries(name string, timeIndex []time.Time, response []float64, regressors [][]float64, regressorNames []string) (*Dataset, error) {
	if len(timeIndex) != len(response) {
		return nil, core.NewDimensionError("time_index", len(timeIndex), len(response))
	}
	return build(name, response, regressors, regressorNames, timeIndex)
}

func build(name string, response []float64, regressors [][]float64, regressorNames []string, timeIndex []time.Time) (*Dataset, error) {
	n := len(response)
	if n == 0 {
		return nil, core.ErrEmptyDataset
	}
	if n < 2 {
		// Temperature 1/ln(n) is undefined at n=1
		return nil, core.ErrSingleObservation
	}
	if len(regressors) != n {
		return nil, core.NewDimensionError("regressors", len(regressors), n)
	}

	p := 0
	if len(regressors) > 0 {
		p = len(regressors[0])
	}
	for i, row := range regressors {
		if len(row) != p {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", core.ErrRaggedMatrix, i, len(row), p)
		}
	}
	if len(regressorNames) != p {
		return nil, core.NewDimensionError("regressor_names", len(regressorNames), p)
	}

	ds := &Dataset{
		name:        name,
		response:    make([]float64, n),
		regressors:  make([][]float64, n),
		names:       make([]string, p),
		id:          core.DatasetID(core.NewID()),
		createdAt:   core.Now(),
		temperature: 1.0 / math.Log(float64(n)),
	}
	copy(ds.response, response)
	copy(ds.names, regressorNames)
	for i, row := range regressors {
		ds.regressors[i] = make([]float64, p)
		copy(ds.regressors[i], row)
	}
	if len(timeIndex) > 0 {
		ds.timeIndex = make([]time.Time, n)
		copy(ds.timeIndex, timeIndex)
	}
	ds.fingerprint = core.ComputeDatasetFingerprint(ds.response, ds.regressors)

	return ds, nil
}

// Name returns the dataset label
func (d *Dataset) Name() string {
	return d.name
}

// ID returns the dataset identifier
func (d *Dataset) ID() core.DatasetID {
	return d.id
}

// Fingerprint returns the content hash computed at construction
func (d *Dataset) Fingerprint() core.DatasetFingerprint {
	return d.fingerprint
}

// CreatedAt returns the construction timestamp
func (d *Dataset) CreatedAt() core.Timestamp {
	return d.createdAt
}

// Temperature returns the WBIC sampling temperature 1/ln(n).
// It is fixed per dataset and never changes during a run.
func (d *Dataset) Temperature() float64 {
	return d.temperature
}

// ObservationCount returns n, the number of observations
func (d *Dataset) ObservationCount() int {
	return len(d.response)
}

// RegressorCount returns p, the number of regressor columns
func (d *Dataset) RegressorCount() int {
	if len(d.regressors) == 0 {
		return 0
	}
	return len(d.regressors[0])
}

// Response returns the response vector. The returned slice is shared;
// callers must treat it as read-only.
func (d *Dataset) Response() []float64 {
	return d.response
}

// Row returns regressor row i. The returned slice is shared;
// callers must treat it as read-only.
func (d *Dataset) Row(i int) []float64 {
	return d.regressors[i]
}

// Column copies out regressor column j.
func (d *Dataset) Column(j int) []float64 {
	col := make([]float64, len(d.regressors))
	for i, row := range d.regressors {
		col[i] = row[j]
	}
	return col
}

// ColumnByName copies out the named regressor column
func (d *Dataset) ColumnByName(name string) ([]float64, bool) {
	for j, n := range d.names {
		if n == name {
			return d.Column(j), true
		}
	}
	return nil, false
}

// RegressorNames returns a copy of the column names
func (d *Dataset) RegressorNames() []string {
	names := make([]string, len(d.names))
	copy(names, d.names)
	return names
}

// TimeIndex returns the observation times, or nil when the dataset has none.
// The returned slice is shared; callers must treat it as read-only.
func (d *Dataset) TimeIndex() []time.Time {
	return d.timeIndex
}

// HasTimeIndex reports whether observations carry timestamps
func (d *Dataset) HasTimeIndex() bool {
	return len(d.timeIndex) > 0
}
