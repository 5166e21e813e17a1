package mathx

// Integer is the set of signed integer types used for grid coordinates.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// FloorDiv rounds toward negative infinity. b > 0.
func FloorDiv[T Integer](a, b T) T {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod returns the euclidean remainder in [0, b). b > 0.
func Mod[T Integer](a, b T) T {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func Abs[T Integer](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

func Clamp[T Integer | ~float32 | ~float64](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Pow2 returns 2^n as a float64; negative n yields fractions.
func Pow2(n int32) float64 {
	if n >= 0 && n < 63 {
		return float64(uint64(1) << uint(n))
	}
	v := 1.0
	if n > 0 {
		for i := int32(0); i < n; i++ {
			v *= 2
		}
		return v
	}
	for i := int32(0); i > n; i-- {
		v /= 2
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash3 mixes a seed with 64-bit lattice coordinates.
func Hash3(seed int64, x, y, z int64) uint64 {
	v := uint64(seed) ^ (uint64(x) * 0x9e3779b97f4a7c15) ^ (uint64(y) * 0xc2b2ae3d27d4eb4f) ^ (uint64(z) * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit maps a hash to [0, 1).
func Unit(h uint64) float64 {
	return float64(h>>11) / float64(uint64(1)<<53)
}
