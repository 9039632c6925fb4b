package ftmodel

import "math"

// tableSize+1 = 513 is the entry count of both piecewise-constant lookup
// tables: sigmoid over x in [-8,8], log over x in (0,1].
const tableSize = 512

const (
	sigmoidBound = 8.0
	maxLogArg    = 1.0
)

// buildSigmoidTable precomputes sigma(x) for 513 evenly spaced points over
// [-8,8]; lookups outside the range saturate to 0 or 1.
func buildSigmoidTable() []float32 {
	t := make([]float32, tableSize+1)
	for i := range t {
		x := (float64(i)*2*sigmoidBound)/tableSize - sigmoidBound
		t[i] = float32(1.0 / (1.0 + math.Exp(-x)))
	}
	return t
}

// buildLogTable precomputes log(x) for 513 evenly spaced points over
// (0,1]; lookups at or above 1 return 0.
func buildLogTable() []float32 {
	t := make([]float32, tableSize+1)
	for i := range t {
		x := (float64(i) + 1e-5) / tableSize
		t[i] = float32(math.Log(x))
	}
	return t
}

// sigmoid looks up sigma(x) in the precomputed table, saturating at the
// table's bounds.
func (m *Model) sigmoid(x float32) float32 {
	if x < -sigmoidBound {
		return 0.0
	}
	if x > sigmoidBound {
		return 1.0
	}
	i := int((x+sigmoidBound) * tableSize / (2 * sigmoidBound))
	return m.tSigmoid[i]
}

// log looks up log(x) in the precomputed table, returning 0 for x >= 1.
// x must not be negative.
func (m *Model) log(x float32) float32 {
	if x >= maxLogArg {
		return 0.0
	}
	i := int(x * tableSize)
	return m.tLog[i]
}
