package models

// RunConfig represents the parsed agent config file.
type RunConfig struct {
	LogLevel    string            `yaml:"log_level,omitempty" toml:"log_level" json:"log_level,omitempty"`
	Agent       AgentConfig       `yaml:"agent" toml:"agent" json:"agent"`
	Model       ModelConfig       `yaml:"model" toml:"model" json:"model"`
	Environment EnvironmentConfig `yaml:"environment" toml:"environment" json:"environment"`
}

// CostTracking controls what happens when a model's price is unknown.
type CostTracking string

const (
	CostTrackingDefault      CostTracking = "default"
	CostTrackingIgnoreErrors CostTracking = "ignore_errors"
)

// ModelConfig represents the model section of the agent config file.
type ModelConfig struct {
	ModelName  string         `yaml:"model_name" toml:"model_name" json:"model_name"`
	ModelClass string         `yaml:"model_class,omitempty" toml:"model_class" json:"model_class,omitempty"`
	BaseURL    string         `yaml:"base_url,omitempty" toml:"base_url" json:"base_url,omitempty"`
	ModelArgs  map[string]any `yaml:"model_kwargs,omitempty" toml:"model_kwargs" json:"model_kwargs,omitempty"`

	CostTracking         CostTracking `yaml:"cost_tracking,omitempty" toml:"cost_tracking" json:"cost_tracking,omitempty"`
	InputCostPerMillion  *float64     `yaml:"input_cost_per_million,omitempty" toml:"input_cost_per_million" json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion *float64     `yaml:"output_cost_per_million,omitempty" toml:"output_cost_per_million" json:"output_cost_per_million,omitempty"`

	// Outputs are the scripted replies of the deterministic model.
	Outputs     []string `yaml:"outputs,omitempty" toml:"outputs" json:"outputs,omitempty"`
	CostPerCall float64  `yaml:"cost_per_call,omitempty" toml:"cost_per_call" json:"cost_per_call,omitempty"`

	// APIKey is never written to config files or trajectories.
	APIKey string `yaml:"-" toml:"-" json:"-"`
}

// EnvironmentConfig represents the environment section of the agent config file.
type EnvironmentConfig struct {
	EnvironmentClass string            `yaml:"environment_class" toml:"environment_class" json:"environment_class"`
	Cwd              string            `yaml:"cwd,omitempty" toml:"cwd" json:"cwd,omitempty"`
	Env              map[string]string `yaml:"env,omitempty" toml:"env" json:"env,omitempty"`
	ForwardEnv       []string          `yaml:"forward_env,omitempty" toml:"forward_env" json:"forward_env,omitempty"`
	TimeoutSec       float64           `yaml:"timeout_sec" toml:"timeout_sec" json:"timeout_sec"`

	// Container settings for the docker and modal environments.
	Image            string         `yaml:"image,omitempty" toml:"image" json:"image,omitempty"`
	Dockerfile       string         `yaml:"dockerfile,omitempty" toml:"dockerfile" json:"dockerfile,omitempty"`
	Executable       string         `yaml:"executable,omitempty" toml:"executable" json:"executable,omitempty"`
	RunArgs          []string       `yaml:"run_args,omitempty" toml:"run_args" json:"run_args,omitempty"`
	ContainerTimeout string         `yaml:"container_timeout,omitempty" toml:"container_timeout" json:"container_timeout,omitempty"`
	CPUs             float64        `yaml:"cpus,omitempty" toml:"cpus" json:"cpus,omitempty"`
	Memory           string         `yaml:"memory,omitempty" toml:"memory" json:"memory,omitempty"`
	ProviderConfig   map[string]any `yaml:"provider_config,omitempty" toml:"provider_config" json:"provider_config,omitempty"`
}
