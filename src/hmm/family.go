package hmm

import "fmt"

// Kind tags which model family an artifact was fit as.
type Kind uint8

const (
	// Plain is an ordinary discrete-state HMM.
	Plain Kind = iota
	// DurationExpanded is a semi-Markov model encoded as a Markov chain over
	// R substates per macro-state.
	DurationExpanded
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case DurationExpanded:
		return "duration"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

/*
Family is resolved once when an artifact is loaded and picks the
expansion/collapse strategy; the decode path never re-inspects it.
*/
type Family struct {
	Kind      Kind
	Substates int
}

// InvalidSubstateCountError is returned for a substate count below one.
type InvalidSubstateCountError struct {
	Substates int
}

func (e *InvalidSubstateCountError) Error() string {
	return fmt.Sprintf("hmm: number of substates must be a positive integer, got %d", e.Substates)
}

func PlainFamily() Family {
	return Family{Kind: Plain, Substates: 1}
}

// DurationFamily returns a duration-expanded family with r substates. r=1
// is accepted and behaves exactly like PlainFamily.
func DurationFamily(r int) (Family, error) {
	if r < 1 {
		return Family{}, &InvalidSubstateCountError{Substates: r}
	}
	return Family{Kind: DurationExpanded, Substates: r}, nil
}

// FamilyFor picks the family a fit with r substates produces: plain for
// r=1, duration-expanded above that.
func FamilyFor(r int) (Family, error) {
	switch {
	case r == 1:
		return PlainFamily(), nil
	case r > 1:
		return DurationFamily(r)
	default:
		return Family{}, &InvalidSubstateCountError{Substates: r}
	}
}

func (f Family) Validate() error {
	if f.Substates < 1 {
		return &InvalidSubstateCountError{Substates: f.Substates}
	}
	switch f.Kind {
	case Plain:
		if f.Substates != 1 {
			return fmt.Errorf("hmm: plain family cannot have %d substates", f.Substates)
		}
	case DurationExpanded:
	default:
		return fmt.Errorf("hmm: unknown model family %v", f.Kind)
	}
	return nil
}

// StateMap maps each of the k*R expanded states to its macro-state.
func (f Family) StateMap(k int) []int {
	m := make([]int, k*f.Substates)
	for i := range m {
		m[i] = i / f.Substates
	}
	return m
}

func (f Family) String() string {
	if f.Kind == Plain {
		return "plain"
	}
	return fmt.Sprintf("duration(r=%d)", f.Substates)
}
