package core

import (
	"testing"
)

// TestNewHashDeterminism tests that identical input hashes identically
func TestNewHashDeterminism(t *testing.T) {
	a := NewHash([]byte("gowbic"))
	b := NewHash([]byte("gowbic"))
	if !a.Equals(b) {
		t.Errorf("Expected equal hashes for identical input, got %s and %s", a, b)
	}

	c := NewHash([]byte("gowbic2"))
	if a.Equals(c) {
		t.Error("Expected different hashes for different input")
	}

	if len(a.String()) != 64 {
		t.Errorf("Expected 64-char hex sha256, got %d chars", len(a.String()))
	}
}

// TestComputeDatasetFingerprint tests dataset fingerprint sensitivity
func TestComputeDatasetFingerprint(t *testing.T) {
	response := []float64{1.0, 2.0, 3.0}
	regressors := [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}

	fp1 := ComputeDatasetFingerprint(response, regressors)
	fp2 := ComputeDatasetFingerprint(response, regressors)
	if fp1 != fp2 {
		t.Error("Expected identical fingerprints for identical datasets")
	}

	// A single-bit change in one value must change the fingerprint
	perturbed := []float64{1.0, 2.0, 3.0000000000000004}
	fp3 := ComputeDatasetFingerprint(perturbed, regressors)
	if fp1 == fp3 {
		t.Error("Expected fingerprint to change when a value changes")
	}

	// Shape participates in the fingerprint
	fp4 := ComputeDatasetFingerprint(response[:2], regressors[:2])
	if fp1 == fp4 {
		t.Error("Expected fingerprint to change when shape changes")
	}
}

// TestComputeSweepFingerprint tests that variant order is part of sweep identity
func TestComputeSweepFingerprint(t *testing.T) {
	ds := ComputeDatasetFingerprint([]float64{1, 2}, nil)

	fp1 := ComputeSweepFingerprint(42, ds, []string{"a", "b"})
	fp2 := ComputeSweepFingerprint(42, ds, []string{"a", "b"})
	if fp1 != fp2 {
		t.Error("Expected identical sweep fingerprints for identical requests")
	}

	fp3 := ComputeSweepFingerprint(42, ds, []string{"b", "a"})
	if fp1 == fp3 {
		t.Error("Expected variant order to change the sweep fingerprint")
	}

	fp4 := ComputeSweepFingerprint(43, ds, []string{"a", "b"})
	if fp1 == fp4 {
		t.Error("Expected seed to change the sweep fingerprint")
	}
}
