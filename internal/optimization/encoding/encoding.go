// Package encoding maps fixed-width bit vectors onto points of a real box.
package encoding

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// Bits is a candidate encoded as a sequence of 0/1 values.
type Bits []uint8

// Clone returns an independent copy of b.
func (b Bits) Clone() Bits {
	return append(Bits(nil), b...)
}

// Flip inverts bit i.
func (b Bits) Flip(i int) {
	b[i] ^= 1
}

// String renders the bits most significant index first as stored.
func (b Bits) String() string {
	buf := make([]byte, len(b))
	for i, v := range b {
		buf[i] = '0' + v
	}
	return string(buf)
}

// Encoder converts between bit vectors and points. Every dimension uses the
// same bounds and the same number of bits.
type Encoder struct {
	bounds     optimization.Bounds
	dimensions int
	bitsPerDim int
	maxInt     float64
}

// New creates an encoder with enough bits per dimension to resolve
// precision decimal digits across the bounds.
func New(bounds optimization.Bounds, precision, dimensions int) (*Encoder, error) {
	if dimensions < 1 {
		return nil, optimization.InvalidConfigf("encoding", "dimensions must be positive, got %d", dimensions)
	}
	width := bounds.Width()
	if !(width > 0) {
		return nil, optimization.InvalidConfigf("encoding", "bounds must have positive width, got [%v, %v]", bounds.Low, bounds.High)
	}
	bits := int(math.Ceil(math.Log2(width * math.Pow(10, float64(precision)))))
	if bits < 1 {
		return nil, optimization.InvalidConfigf("encoding", "precision %d yields %d bits per dimension", precision, bits)
	}
	return &Encoder{
		bounds:     bounds,
		dimensions: dimensions,
		bitsPerDim: bits,
		maxInt:     math.Exp2(float64(bits)) - 1,
	}, nil
}

// Len returns the length of every bit vector handled by the encoder.
func (e *Encoder) Len() int {
	return e.dimensions * e.bitsPerDim
}

// BitsPerDimension returns the number of bits encoding one coordinate.
func (e *Encoder) BitsPerDimension() int {
	return e.bitsPerDim
}

// Dimensions returns the number of decoded coordinates.
func (e *Encoder) Dimensions() int {
	return e.dimensions
}

// Bounds returns the box bounds.
func (e *Encoder) Bounds() optimization.Bounds {
	return e.bounds
}

// Step returns the distance between two adjacent encoded values.
func (e *Encoder) Step() float64 {
	return e.bounds.Width() / e.maxInt
}

// Random draws a uniformly random bit vector, consuming the generator 64
// bits at a time.
func (e *Encoder) Random(rng *rand.Rand) Bits {
	b := make(Bits, e.Len())
	var block uint64
	avail := 0
	for i := len(b) - 1; i >= 0; i-- {
		if avail == 0 {
			block = rng.Uint64()
			avail = 64
		}
		b[i] = uint8(block & 1)
		block >>= 1
		avail--
	}
	return b
}

// Decode maps a bit vector to a point of the box.
func (e *Encoder) Decode(b Bits) []float64 {
	if len(b) != e.Len() {
		panic(fmt.Sprintf("encoding: bit vector has length %d, want %d", len(b), e.Len()))
	}
	x := make([]float64, e.dimensions)
	for d := range x {
		lo := d * e.bitsPerDim
		x[d] = e.DecodeDimension(b[lo : lo+e.bitsPerDim])
	}
	return x
}

// DecodeDimension maps the bits of one coordinate, most significant first,
// into the bounds.
func (e *Encoder) DecodeDimension(b Bits) float64 {
	var s float64
	for _, v := range b {
		s = s*2 + float64(v)
	}
	x := s/e.maxInt*e.bounds.Width() + e.bounds.Low
	return math.Min(x, e.bounds.High)
}
