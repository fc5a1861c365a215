package hmm

import "fmt"

// SumTolerance is how far a belief row may drift from one.
const SumTolerance = 1e-8

/*
NumericalInconsistencyError means a predictive-belief row failed the
sum-to-one check. Every later prediction builds on the broken row, so
callers should stop decoding rather than renormalise and carry on.
*/
type NumericalInconsistencyError struct {
	Row int
	Sum float64
}

func (e *NumericalInconsistencyError) Error() string {
	return fmt.Sprintf("hmm: predictive belief row %d sums to %.12g", e.Row, e.Sum)
}
