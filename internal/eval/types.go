package eval

// #region eval-config
// EvalConfig holds the bounds the runtime state must satisfy after every tick.
type EvalConfig struct {
	MaxCarry float64 // |carry| above this is treated as corruption
}

// DefaultEvalConfig returns the default bounds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{MaxCarry: 1.0}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single invariant check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of an invariant check.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Failed returns the names of the checks that did not pass.
func (r EvalResult) Failed() []string {
	var out []string
	for _, m := range r.Metrics {
		if !m.Pass {
			out = append(out, m.Name)
		}
	}
	return out
}

// #endregion eval-result
