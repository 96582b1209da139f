package models

// AgentMode controls how an interactive agent asks for confirmation.
type AgentMode string

const (
	ModeConfirm AgentMode = "confirm"
	ModeYolo    AgentMode = "yolo"
	ModeHuman   AgentMode = "human"
)

// AgentConfig represents the agent section of the agent config file.
type AgentConfig struct {
	SystemTemplate            string  `yaml:"system_template" toml:"system_template" json:"system_template"`
	InstanceTemplate          string  `yaml:"instance_template" toml:"instance_template" json:"instance_template"`
	ActionObservationTemplate string  `yaml:"action_observation_template" toml:"action_observation_template" json:"action_observation_template"`
	FormatErrorTemplate       string  `yaml:"format_error_template" toml:"format_error_template" json:"format_error_template"`
	TimeoutTemplate           string  `yaml:"timeout_template" toml:"timeout_template" json:"timeout_template"`
	StepLimit                 int     `yaml:"step_limit" toml:"step_limit" json:"step_limit"` // 0 disables
	CostLimit                 float64 `yaml:"cost_limit" toml:"cost_limit" json:"cost_limit"` // 0 disables

	// Interactive settings, ignored by the non-interactive agent.
	Mode             AgentMode `yaml:"mode" toml:"mode" json:"mode"`
	WhitelistActions []string  `yaml:"whitelist_actions" toml:"whitelist_actions" json:"whitelist_actions"`
	ConfirmExit      bool      `yaml:"confirm_exit" toml:"confirm_exit" json:"confirm_exit"`
}
