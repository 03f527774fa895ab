package core

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	DatasetFingerprint Hash
	SweepFingerprint   Hash
	TraceFingerprint   Hash
)

// Constructors
func NewDatasetFingerprint(data []byte) DatasetFingerprint { return DatasetFingerprint(NewHash(data)) }
func NewSweepFingerprint(data []byte) SweepFingerprint     { return SweepFingerprint(NewHash(data)) }
func NewTraceFingerprint(data []byte) TraceFingerprint     { return TraceFingerprint(NewHash(data)) }

// String conversions
func (h DatasetFingerprint) String() string { return Hash(h).String() }
func (h SweepFingerprint) String() string   { return Hash(h).String() }
func (h TraceFingerprint) String() string   { return Hash(h).String() }

// Hash computation helpers

// ComputeDatasetFingerprint hashes shape and values bit-exactly, so two
// datasets fingerprint equal iff their observations are identical.
func ComputeDatasetFingerprint(response []float64, regressors [][]float64) DatasetFingerprint {
	var data strings.Builder
	data.WriteString("n=")
	data.WriteString(strconv.Itoa(len(response)))
	for _, v := range response {
		data.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
		data.WriteByte(';')
	}
	for _, row := range regressors {
		data.WriteString("r=")
		for _, v := range row {
			data.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
			data.WriteByte(';')
		}
	}
	return NewDatasetFingerprint([]byte(data.String()))
}

// ComputeSweepFingerprint hashes the request identity: seed, dataset and the
// variant IDs in request order. Variant order is part of the sweep identity.
func ComputeSweepFingerprint(seed uint64, dataset DatasetFingerprint, variantIDs []string) SweepFingerprint {
	var data strings.Builder
	data.WriteString("seed=")
	data.WriteString(strconv.FormatUint(seed, 10))
	data.WriteString("|dataset=")
	data.WriteString(dataset.String())
	for _, id := range variantIDs {
		data.WriteString("|variant=")
		data.WriteString(id)
	}
	return NewSweepFingerprint([]byte(data.String()))
}

// ComputeTraceFingerprint hashes the per-draw log-likelihoods of a trace.
// Equal fingerprints across runs demonstrate bit-identical sampling.
func ComputeTraceFingerprint(logLikelihoods []float64) TraceFingerprint {
	var data strings.Builder
	for _, v := range logLikelihoods {
		data.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
		data.WriteByte(';')
	}
	return NewTraceFingerprint([]byte(data.String()))
}
