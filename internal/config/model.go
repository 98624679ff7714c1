package config

// Dataset identifies the data a configuration runs against. Instances and
// Features are filled in by the runner from the training matrix.
type Dataset struct {
	ID        string `json:"id"`
	Instances int    `json:"instances"`
	Features  int    `json:"features"`
}

// Architecture lists the hidden layers of a network, one width and one
// activation per layer.
type Architecture struct {
	Dense      []int    `json:"Dense"`
	Activation []string `json:"Activation"`
}

// Model is the model block of a configuration.
type Model struct {
	Type            string            `json:"type"`
	Architecture    Architecture      `json:"architecture"`
	Hyperparameters map[string]Params `json:"hyperparameters"`
}

// Hyperparameter phase names.
const (
	PhaseBuild    = "build"
	PhaseCompile  = "compile"
	PhaseFit      = "fit"
	PhaseEvaluate = "evaluate"
)

// Config is a typed view over one configuration document.
type Config struct {
	Dataset Dataset        `json:"dataset"`
	Model   Model          `json:"model"`
	Results map[string]any `json:"results"`

	raw []byte
}

// Phase returns the hyperparameters for the named phase. A missing phase
// yields an empty, usable Params.
func (c *Config) Phase(name string) Params {
	if p, ok := c.Model.Hyperparameters[name]; ok && p != nil {
		return p
	}
	return Params{}
}

// Raw returns the document bytes the config was loaded from.
func (c *Config) Raw() []byte {
	return c.raw
}
