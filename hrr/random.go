package hrr

import (
	"math"
	"math/cmplx"
	"math/rand"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Random draws a unitary unit vector of the given dimension from rng:
// every Fourier coefficient has unit magnitude and a uniformly random phase.
// Unitary vectors make correlation the exact inverse of convolution for a
// single binding, which keeps single-pair round trips noiseless. Vectors
// drawn from independent rng states are quasi-orthogonal with overwhelming
// probability.
//
// dim must be at least 2.
func Random(dim int, rng *rand.Rand) Vector {
	if dim < 2 {
		panic("hrr: dimension must be at least 2")
	}
	half := dim / 2
	coef := make([]complex128, half+1)
	coef[0] = complex(randSign(rng), 0)
	for k := 1; k < len(coef); k++ {
		if dim%2 == 0 && k == half {
			// Nyquist coefficient must be real.
			coef[k] = complex(randSign(rng), 0)
			continue
		}
		coef[k] = cmplx.Rect(1, 2*math.Pi*rng.Float64())
	}
	fft := fourier.NewFFT(dim)
	v := Vector(fft.Sequence(nil, coef))
	floats.Scale(1/float64(dim), v)
	// Unit norm holds by Parseval already; renormalize to absorb rounding.
	return Normalize(v)
}

func randSign(rng *rand.Rand) float64 {
	if rng.Intn(2) == 0 {
		return -1
	}
	return 1
}
