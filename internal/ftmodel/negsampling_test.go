package ftmodel

import "testing"

func TestBuildNegativeTableSizeAndCoverage(t *testing.T) {
	table := buildNegativeTable([]int64{100, 10, 1})
	if len(table) != NegativeTableSize {
		t.Fatalf("len(table) = %d, want %d", len(table), NegativeTableSize)
	}
	seen := map[int32]bool{}
	for _, id := range table {
		if id < 0 || id > 2 {
			t.Fatalf("table entry %d out of range [0,2]", id)
		}
		seen[id] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all 3 classes represented, saw %v", seen)
	}
}

func TestBuildNegativeTableFavoursHigherCounts(t *testing.T) {
	table := buildNegativeTable([]int64{100, 1})
	var c0, c1 int
	for _, id := range table {
		if id == 0 {
			c0++
		} else {
			c1++
		}
	}
	if c0 <= c1 {
		t.Fatalf("class 0 (count 100) should appear more often than class 1 (count 1): c0=%d c1=%d", c0, c1)
	}
}
