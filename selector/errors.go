package selector

import "fmt"

// InvalidDefinitionError reports a definition that cannot be loaded. The
// whole load batch is rejected; previously loaded registry state stays live.
type InvalidDefinitionError struct {
	Intent string
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("selector: invalid definition %q: %s", e.Intent, e.Reason)
}

// NotRegisteredError reports a lookup for an unknown intent. This is a
// programming error in the caller, not a transient condition — it is never
// retried.
type NotRegisteredError struct {
	Intent string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("selector: intent %q is not registered", e.Intent)
}

// ScopeMismatchError reports a resolve attempt while a different logical
// scope is active. Transient: the caller should re-bind scope and may retry.
type ScopeMismatchError struct {
	Intent     string
	Want       string
	Active     string
	Generation uint64
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("selector: intent %q requires scope %q, active scope is %q (generation %d)",
		e.Intent, e.Want, e.Active, e.Generation)
}

// StrategyExecutionError wraps a genuine execution failure (timeout, driver
// error) of one strategy. Recovered locally: the attempt is recorded as
// failed and resolution continues with the next strategy.
type StrategyExecutionError struct {
	Strategy string
	Err      error
}

func (e *StrategyExecutionError) Error() string {
	return fmt.Sprintf("selector: strategy %q execution failed: %v", e.Strategy, e.Err)
}

func (e *StrategyExecutionError) Unwrap() error { return e.Err }
