// Package hrr implements the numeric primitives of Holographic Reduced
// Representations: circular-convolution binding, circular-correlation
// unbinding, and cosine similarity over fixed-dimension real vectors.
//
// Binding is commutative and, for unitary operands (see Random), exactly
// invertible in the single-binding case. Once several bound pairs are
// superposed into one vector, recovery is approximate: crosstalk noise grows
// with the number of superposed pairs.
package hrr

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultDimension is used when a caller does not configure a dimension.
	DefaultDimension = 512

	// normEpsilon is the norm below which a vector is treated as zero.
	normEpsilon = 1e-12
)

var (
	// ErrDimensionMismatch is returned when operands of different dimension
	// are combined, or when a vector does not match a store's dimension.
	ErrDimensionMismatch = errors.New("hrr: dimension mismatch")

	// ErrInvalidVector is returned when an operand contains NaN or Inf.
	ErrInvalidVector = errors.New("hrr: vector contains NaN or Inf")
)

// Vector is a fixed-dimension real vector.
type Vector []float64

// Dim returns the vector's dimension.
func (v Vector) Dim() int { return len(v) }

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Norm returns the L2 norm of v.
func (v Vector) Norm() float64 { return floats.Norm(v, 2) }

// Validate returns ErrInvalidVector if v contains NaN or Inf.
func Validate(v Vector) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: component %d", ErrInvalidVector, i)
		}
	}
	return nil
}

// Normalize returns v scaled to unit length. A vector with norm below
// 1e-12 is returned as an unchanged copy: callers must not assume a unit
// vector results from an all-zero input.
func Normalize(v Vector) Vector {
	out := v.Clone()
	n := floats.Norm(out, 2)
	if n < normEpsilon {
		return out
	}
	floats.Scale(1/n, out)
	return out
}

// Bind combines a and b via circular convolution, computed through the FFT.
// The result has the same dimension as the operands. Binding is commutative;
// Unbind recovers an approximation of one operand given the other.
func Bind(a, b Vector) (Vector, error) {
	if err := checkPair(a, b); err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}
	n := len(a)
	fft := fourier.NewFFT(n)
	ca := fft.Coefficients(nil, a)
	cb := fft.Coefficients(nil, b)
	for i := range ca {
		ca[i] *= cb[i]
	}
	out := Vector(fft.Sequence(nil, ca))
	floats.Scale(1/float64(n), out)
	return out, nil
}

// Unbind recovers an approximation of b from c = Bind(a, b) via circular
// correlation of c with a. The recovery is exact only for a single,
// noiseless binding with a unitary a; superposed bindings add crosstalk.
func Unbind(c, a Vector) (Vector, error) {
	if err := checkPair(c, a); err != nil {
		return nil, fmt.Errorf("unbind: %w", err)
	}
	n := len(c)
	fft := fourier.NewFFT(n)
	cc := fft.Coefficients(nil, c)
	ca := fft.Coefficients(nil, a)
	for i := range cc {
		cc[i] *= cmplx.Conj(ca[i])
	}
	out := Vector(fft.Sequence(nil, cc))
	floats.Scale(1/float64(n), out)
	return out, nil
}

// Similarity returns the cosine similarity of a and b, clamped to [-1, 1].
// If either vector has near-zero norm the result is 0 rather than NaN.
func Similarity(a, b Vector) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, fmt.Errorf("similarity: %w", err)
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na < normEpsilon || nb < normEpsilon {
		return 0, nil
	}
	s := floats.Dot(a, b) / (na * nb)
	return math.Max(-1, math.Min(1, s)), nil
}

func checkPair(a, b Vector) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if err := Validate(a); err != nil {
		return err
	}
	return Validate(b)
}
