package model

import "fmt"

// OutcomeKind tags the result of a computation.
type OutcomeKind int

const (
	// KindOK carries a value.
	KindOK OutcomeKind = iota
	// KindNoData means the facts legitimately produce no value.
	KindNoData
	// KindError means the computation failed; see ErrorKind.
	KindError
)

// ErrorKind classifies computation failures.
type ErrorKind string

const (
	ErrInvalidInput ErrorKind = "invalid_input"
	ErrStore        ErrorKind = "store"
	ErrCoercion     ErrorKind = "coercion"
	ErrBinding      ErrorKind = "binding"
)

// Outcome is the tagged result of computing one metric. Only the engine
// boundary collapses it to a nullable number.
type Outcome struct {
	Kind      OutcomeKind
	Value     float64
	ErrorKind ErrorKind
	Err       error
}

// OK returns a successful outcome.
func OK(v float64) Outcome {
	return Outcome{Kind: KindOK, Value: v}
}

// NoData returns an outcome with no value.
func NoData() Outcome {
	return Outcome{Kind: KindNoData}
}

// Failed returns an error outcome.
func Failed(kind ErrorKind, err error) Outcome {
	return Outcome{Kind: KindError, ErrorKind: kind, Err: err}
}

// IsOK reports whether the outcome carries a value.
func (o Outcome) IsOK() bool { return o.Kind == KindOK }

// Ptr collapses the outcome to a nullable number.
func (o Outcome) Ptr() *float64 {
	if o.Kind != KindOK {
		return nil
	}
	v := o.Value
	return &v
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindOK:
		return fmt.Sprintf("ok(%g)", o.Value)
	case KindNoData:
		return "no_data"
	default:
		return fmt.Sprintf("error(%s: %v)", o.ErrorKind, o.Err)
	}
}
