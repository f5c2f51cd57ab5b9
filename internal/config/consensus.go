package config

// ConsensusConfig configures the consensus strategy chain.
type ConsensusConfig struct {
	Voting    VotingConfig    `yaml:"voting"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	WaitForMs int             `yaml:"wait_for_ms"`
}

// VotingConfig configures the supermajority voting strategy.
type VotingConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ReasoningConfig exposes the reasoning-quality rubric weights. The defaults
// match the constants the rubric shipped with; they are config so deployments
// can tune them without a rebuild.
type ReasoningConfig struct {
	MinQuality       float64 `yaml:"min_quality"`
	LengthWeight     float64 `yaml:"length_weight"`
	StructureWeight  float64 `yaml:"structure_weight"`
	ConfidenceWeight float64 `yaml:"confidence_weight"`
}
