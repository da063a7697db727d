package agent

import (
	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/llm"
)

// RunMode selects how a tool-execute node dispatches multiple calls from a
// single LLM response (spec §6 Configuration, §4.3 Dispatch modes).
type RunMode string

const (
	// RunModeSingleRun dispatches a lone call directly and falls back to
	// sequential dispatch when a response carries more than one call.
	RunModeSingleRun RunMode = "single_run"
	// RunModeSingleRunSequential always dispatches calls one at a time, in
	// declaration order.
	RunModeSingleRunSequential RunMode = "single_run_sequential"
	// RunModeParallel dispatches every call in a response concurrently.
	RunModeParallel RunMode = "parallel"
)

// DefaultMaxAgentIterations is the default iteration cap (spec §6).
const DefaultMaxAgentIterations = 50

// Config carries the run-wide policy knobs enumerated in spec §6
// Configuration. It is built via functional options, matching the
// teacher's RunOption/Options pattern.
type Config struct {
	MaxAgentIterations           int
	Temperature                  float64
	ToolChoice                   llm.ToolChoice
	RunMode                      RunMode
	ReasoningInterval            int
	MaxAttemptsWithoutToolChoice int
	EnableAutomaticPersistence   bool
	NumberOfChoices              int
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithMaxIterations overrides the iteration cap before IterationLimitExceeded
// fires.
func WithMaxIterations(n int) Option {
	return func(c *Config) { c.MaxAgentIterations = n }
}

// WithTemperature sets the sampling temperature forwarded to LLM calls by
// embedders that consult Config (the engine itself never reads this field;
// it is plumbed through for caller convenience).
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithToolChoice sets the tool-choice constraint requested of the model.
func WithToolChoice(tc llm.ToolChoice) Option {
	return func(c *Config) { c.ToolChoice = tc }
}

// WithRunMode selects how tool-execute nodes dispatch multiple calls.
func WithRunMode(m RunMode) Option {
	return func(c *Config) { c.RunMode = m }
}

// WithReasoningInterval sets the ReAct-style reasoning interval.
func WithReasoningInterval(n int) Option {
	return func(c *Config) { c.ReasoningInterval = n }
}

// WithMaxAttemptsWithoutToolChoice overrides the synthetic tool-choice retry
// budget (spec §4.3, default 3).
func WithMaxAttemptsWithoutToolChoice(n int) Option {
	return func(c *Config) { c.MaxAttemptsWithoutToolChoice = n }
}

// WithAutomaticPersistence enables or disables automatic checkpointing on
// node entry (spec §4.6).
func WithAutomaticPersistence(enabled bool) Option {
	return func(c *Config) { c.EnableAutomaticPersistence = enabled }
}

// WithNumberOfChoices sets how many candidate responses choice-aware LLM
// calls request (spec component C9).
func WithNumberOfChoices(n int) Option {
	return func(c *Config) { c.NumberOfChoices = n }
}

// Validate checks the build-time invariants spec §8 names for Config:
// a retry-subgraph configured with zero max-retries for the tool-choice
// enforcer is rejected rather than silently falling back to the enforcer's
// built-in default.
func (c Config) Validate() error {
	if c.MaxAttemptsWithoutToolChoice == 0 {
		return &engineerr.BuildError{Reason: "MaxAttemptsWithoutToolChoice must not be zero; omit the option to use the default of 3"}
	}
	return nil
}

// NewConfig builds a Config from opts, seeded with the spec's documented
// defaults (MaxAgentIterations 50, MaxAttemptsWithoutToolChoice 3, tool
// choice Auto, single-run dispatch, one choice), and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := Config{
		MaxAgentIterations:           DefaultMaxAgentIterations,
		ToolChoice:                   llm.ToolChoice{Mode: llm.ToolChoiceAuto},
		RunMode:                      RunModeSingleRun,
		MaxAttemptsWithoutToolChoice: 3,
		NumberOfChoices:              1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
