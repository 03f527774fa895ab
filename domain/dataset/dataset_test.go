package dataset

import (
	"errors"
	"math"
	"testing"
	"time"

	"gowbic/domain/core"
)

func validInputs(n, p int) ([]float64, [][]float64, []string) {
	response := make([]float64, n)
	regressors := make([][]float64, n)
	names := make([]string, p)
	for i := 0; i < n; i++ {
		response[i] = float64(i)
		regressors[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			regressors[i][j] = float64(i*p + j)
		}
	}
	for j := 0; j < p; j++ {
		names[j] = "x" + string(rune('a'+j))
	}
	return response, regressors, names
}

// TestNewDataset tests construction and accessors
func TestNewDataset(t *testing.T) {
	response, regressors, names := validInputs(10, 3)

	ds, err := New("synthetic", response, regressors, names)
	if err != nil {
		t.Fatalf("Unexpected construction error: %v", err)
	}

	if ds.ObservationCount() != 10 {
		t.Errorf("Expected 10 observations, got %d", ds.ObservationCount())
	}
	if ds.RegressorCount() != 3 {
		t.Errorf("Expected 3 regressors, got %d", ds.RegressorCount())
	}
	if ds.Name() != "synthetic" {
		t.Errorf("Expected name 'synthetic', got '%s'", ds.Name())
	}
	if ds.ID() == "" {
		t.Error("Expected non-empty dataset ID")
	}
	if ds.Fingerprint() == "" {
		t.Error("Expected non-empty fingerprint")
	}
	if ds.HasTimeIndex() {
		t.Error("Expected no time index")
	}

	col := ds.Column(1)
	for i := range col {
		if col[i] != regressors[i][1] {
			t.Errorf("Column(1)[%d] = %f, expected %f", i, col[i], regressors[i][1])
		}
	}

	byName, ok := ds.ColumnByName("xb")
	if !ok {
		t.Fatal("Expected to find column 'xb'")
	}
	if byName[3] != regressors[3][1] {
		t.Errorf("ColumnByName mismatch at row 3: %f vs %f", byName[3], regressors[3][1])
	}
	if _, ok := ds.ColumnByName("missing"); ok {
		t.Error("Expected lookup miss for unknown column name")
	}
}

// TestTemperature tests the WBIC temperature schedule 1/ln(n)
func TestTemperature(t *testing.T) {
	response, regressors, names := validInputs(365, 2)
	ds, err := New("daily", response, regressors, names)
	if err != nil {
		t.Fatalf("Unexpected construction error: %v", err)
	}

	want := 1.0 / math.Log(365.0)
	if ds.Temperature() != want {
		t.Errorf("Expected temperature %.17g for n=365, got %.17g", want, ds.Temperature())
	}
	// Sanity: about 0.1695 for a year of daily observations
	if math.Abs(ds.Temperature()-0.1695) > 0.0005 {
		t.Errorf("Temperature %.4f outside expected neighborhood of 0.1695", ds.Temperature())
	}
}

// TestDatasetValidation tests rejection of malformed inputs
func TestDatasetValidation(t *testing.T) {
	if _, err := New("empty", nil, nil, nil); !errors.Is(err, core.ErrEmptyDataset) {
		t.Errorf("Expected ErrEmptyDataset, got %v", err)
	}

	if _, err := New("single", []float64{1}, [][]float64{{1}}, []string{"x"}); !errors.Is(err, core.ErrSingleObservation) {
		t.Errorf("Expected ErrSingleObservation, got %v", err)
	}

	ragged := [][]float64{{1, 2}, {3}}
	if _, err := New("ragged", []float64{1, 2}, ragged, []string{"a", "b"}); !errors.Is(err, core.ErrRaggedMatrix) {
		t.Errorf("Expected ErrRaggedMatrix, got %v", err)
	}

	rows := [][]float64{{1}, {2}}
	if _, err := New("short", []float64{1, 2, 3}, rows, []string{"a"}); !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch for row count, got %v", err)
	}

	if _, err := New("names", []float64{1, 2}, [][]float64{{1}, {2}}, []string{"a", "b"}); !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch for names, got %v", err)
	}
}

// TestTimeSeriesConstruction tests the time-indexed constructor
func TestTimeSeriesConstruction(t *testing.T) {
	response, regressors, names := validInputs(4, 1)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := []time.Time{base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2), base.AddDate(0, 0, 3)}

	ds, err := NewTimeSeries("daily", index, response, regressors, names)
	if err != nil {
		t.Fatalf("Unexpected construction error: %v", err)
	}
	if !ds.HasTimeIndex() {
		t.Error("Expected time index present")
	}
	if !ds.TimeIndex()[2].Equal(index[2]) {
		t.Errorf("Time index mismatch at 2: %v vs %v", ds.TimeIndex()[2], index[2])
	}

	if _, err := NewTimeSeries("bad", index[:3], response, regressors, names); !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch for short index, got %v", err)
	}
}

// TestDatasetImmutability tests that construction deep-copies inputs
func TestDatasetImmutability(t *testing.T) {
	response, regressors, names := validInputs(5, 2)
	ds, err := New("frozen", response, regressors, names)
	if err != nil {
		t.Fatalf("Unexpected construction error: %v", err)
	}
	before := ds.Fingerprint()

	// Mutating the caller's slices must not reach the dataset
	response[0] = 999
	regressors[1][1] = 999
	names[0] = "mutated"

	after := core.ComputeDatasetFingerprint(ds.Response(), [][]float64{ds.Row(0), ds.Row(1), ds.Row(2), ds.Row(3), ds.Row(4)})
	if before != after {
		t.Error("Expected dataset values unchanged after caller mutation")
	}
	if ds.RegressorNames()[0] == "mutated" {
		t.Error("Expected regressor names unchanged after caller mutation")
	}
}

// TestFingerprintStability tests that identical content fingerprints identically
func TestFingerprintStability(t *testing.T) {
	response, regressors, names := validInputs(6, 2)

	a, err := New("a", response, regressors, names)
	if err != nil {
		t.Fatalf("Unexpected construction error: %v", err)
	}
	b, err := New("b", response, regressors, names)
	if err != nil {
		t.Fatalf("Unexpected construction error: %v", err)
	}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("Expected identical fingerprints for identical observations")
	}
	if a.ID() == b.ID() {
		t.Error("Expected distinct IDs for distinct constructions")
	}
}
