package config

// ExecutionConfig configures the test subprocesses.
type ExecutionConfig struct {
	// Per-target timeout; "0s" disables it
	Timeout string `yaml:"timeout"`

	// Captured output cap per target; live output is never truncated
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// Exit non-zero when any target fails
	StrictExit bool `yaml:"strict_exit"`

	// Extra KEY=VALUE pairs for every test process
	Env []string `yaml:"env"`
}
