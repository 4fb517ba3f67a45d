package dataset

// Value is a cumulative counter for one day together with its change from
// the previous day.
type Value struct {
	X  int64
	DX int64
}

// Deltas pairs each cumulative value with its day-over-day delta.
// The first element has no prior day and gets a delta of 0.
func Deltas(values []int64) []Value {
	out := make([]Value, len(values))
	for i, x := range values {
		out[i].X = x
		if i > 0 {
			out[i].DX = x - values[i-1]
		}
	}
	return out
}

// Totals extracts the cumulative values from a delta series.
func Totals(values []Value) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = v.X
	}
	return out
}

// Changes extracts the per-day deltas from a delta series.
func Changes(values []Value) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = v.DX
	}
	return out
}
