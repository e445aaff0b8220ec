package safeagent

import "time"

// TimeoutConfig configures timeout behavior for runner operations. Approval
// waits are deliberately not bounded here: a pending human decision may take
// arbitrarily long, and cancellation flows through the context instead.
type TimeoutConfig struct {
	RunExecution  time.Duration // Total run timeout (0 = no timeout)
	LLMCall       time.Duration // Per completion call timeout (0 = no timeout)
	ToolExecution time.Duration // Per tool invocation, measured after approval (0 = no timeout)
}

// DefaultTimeoutConfig returns sensible timeout defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		RunExecution: 5 * time.Minute,
		LLMCall:      30 * time.Second,
	}
}

// NoTimeouts returns a config with all timeouts disabled.
func NoTimeouts() TimeoutConfig {
	return TimeoutConfig{}
}
