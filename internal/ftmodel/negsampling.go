package ftmodel

import "math"

// NegativeTableSize is the fixed size of the negative-sampling
// multiplicity table.
const NegativeTableSize = 10_000_000

// buildNegativeTable reconstructs the NS multiplicity table from per-class
// counts: each class i appears with multiplicity proportional to
// sqrt(count_i), normalised so the table has exactly NegativeTableSize
// entries. Not consulted during predict (NS behaves as softmax at
// inference time); rebuilt at load purely for bit-equivalence with the
// source implementation.
func buildNegativeTable(counts []int64) []int32 {
	var z float64
	sqrtCounts := make([]float64, len(counts))
	for i, c := range counts {
		s := math.Sqrt(float64(c))
		sqrtCounts[i] = s
		z += s
	}
	table := make([]int32, 0, NegativeTableSize)
	for i, s := range sqrtCounts {
		mult := int(s * NegativeTableSize / z)
		for j := 0; j < mult; j++ {
			table = append(table, int32(i))
		}
	}
	for len(table) < NegativeTableSize {
		table = append(table, int32(len(counts)-1))
	}
	return table[:NegativeTableSize]
}
