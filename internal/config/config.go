// Package config loads and validates the pipeline configuration document.
// Everything that can be rejected without touching the network is rejected
// here, at load time; the core packages only ever see validated, typed
// objects.
package config

import (
	"fmt"

	"github.com/valpere/scenetran/internal/agent"
	"github.com/valpere/scenetran/internal/backend"
	"github.com/valpere/scenetran/internal/run"
	"github.com/valpere/scenetran/internal/script"
)

// AgentConfig assigns one endpoint to one agent phase.
type AgentConfig struct {
	// Endpoint names an entry of Config.Endpoints.
	Endpoint string `mapstructure:"endpoint"`
	// Count is the number of agent runtimes in the phase's pool.
	Count int `mapstructure:"count"`
	// MaxParallel caps concurrent in-flight calls; defaults to Count.
	MaxParallel int               `mapstructure:"max_parallel"`
	Settings    backend.Settings  `mapstructure:"settings"`
	Retry       agent.RetryPolicy `mapstructure:"retry"`
}

// GoogleConfig configures the machine-pretranslation provider.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

// Config is the full validated run configuration.
type Config struct {
	ScriptDir  string `mapstructure:"script_dir"`
	OutputDir  string `mapstructure:"output_dir"`
	DBPath     string `mapstructure:"db_path"`
	SourceLang string `mapstructure:"source_lang"`
	TargetLang string `mapstructure:"target_lang"`
	BatchSize  int    `mapstructure:"batch_size"`
	// Probe enables the live preflight check of every distinct endpoint
	// before phase execution begins.
	Probe bool `mapstructure:"probe"`

	Phases    []run.Phase                 `mapstructure:"phases"`
	Endpoints map[string]backend.Endpoint `mapstructure:"endpoints"`
	Agents    map[string]AgentConfig      `mapstructure:"agents"`
	Google    GoogleConfig                `mapstructure:"google"`
}

// Validate checks structural and semantic rules. All violations are
// configuration errors, reported before any network call is made.
func (c *Config) Validate() error {
	if c.ScriptDir == "" {
		return run.Errorf(run.KindConfiguration, "", "script_dir required")
	}
	if c.OutputDir == "" {
		return run.Errorf(run.KindConfiguration, "", "output_dir required")
	}
	if c.TargetLang == "" {
		return run.Errorf(run.KindConfiguration, "", "target_lang required")
	}
	if c.BatchSize < 0 {
		return run.Errorf(run.KindConfiguration, "", "batch_size must be >= 0")
	}
	if c.BatchSize == 0 {
		c.BatchSize = script.DefaultBatchSize
	}

	if err := c.validatePhases(); err != nil {
		return err
	}

	// Endpoint names come from the map keys.
	for name, ep := range c.Endpoints {
		ep.Name = name
		c.Endpoints[name] = ep
		if err := backend.ValidateEndpoint(ep); err != nil {
			return err
		}
	}

	for phaseName, ac := range c.Agents {
		phase := run.Phase(phaseName)
		if !run.AgentPhase(phase) {
			return run.Errorf(run.KindConfiguration, phase, "agents may only be assigned to agent phases")
		}
		if _, ok := c.Endpoints[ac.Endpoint]; !ok {
			return run.Errorf(run.KindConfiguration, phase, "agent references unknown endpoint %q", ac.Endpoint)
		}
		if ac.Count <= 0 {
			ac.Count = 1
		}
		if ac.MaxParallel <= 0 {
			ac.MaxParallel = ac.Count
		}
		// Settings resolution shares the construction path, so an invalid
		// reasoning-effort value is caught here rather than at run time.
		if _, _, err := backend.Construct(c.endpointFor(ac), ac.Settings); err != nil {
			return err
		}
		c.Agents[phaseName] = ac
	}

	for _, p := range c.Phases {
		if run.AgentPhase(p) {
			if _, ok := c.Agents[string(p)]; !ok {
				return run.Errorf(run.KindConfiguration, p, "phase has no agent assignment")
			}
		}
	}
	return nil
}

func (c *Config) validatePhases() error {
	if len(c.Phases) == 0 {
		return run.Errorf(run.KindConfiguration, "", "phases required")
	}
	seen := make(map[run.Phase]bool)
	for i, p := range c.Phases {
		if !run.Known(p) {
			return run.Errorf(run.KindConfiguration, p, "unknown phase")
		}
		if seen[p] {
			return run.Errorf(run.KindConfiguration, p, "phase listed twice")
		}
		seen[p] = true
		if p == run.PhaseIngest && i != 0 {
			return run.Errorf(run.KindConfiguration, p, "ingest must be the first phase")
		}
		if p == run.PhaseExport && i != len(c.Phases)-1 {
			return run.Errorf(run.KindConfiguration, p, "export must be the last phase")
		}
	}
	return nil
}

// endpointFor resolves the endpoint of an agent assignment. Only valid
// after the endpoint map has been checked.
func (c *Config) endpointFor(ac AgentConfig) backend.Endpoint {
	return c.Endpoints[ac.Endpoint]
}

// Agent returns the assignment for an agent phase.
func (c *Config) Agent(phase run.Phase) (AgentConfig, backend.Endpoint, error) {
	ac, ok := c.Agents[string(phase)]
	if !ok {
		return AgentConfig{}, backend.Endpoint{}, run.Errorf(run.KindConfiguration, phase, "phase has no agent assignment")
	}
	return ac, c.Endpoints[ac.Endpoint], nil
}

func (c *Config) String() string {
	return fmt.Sprintf("config{phases=%v endpoints=%d agents=%d}", c.Phases, len(c.Endpoints), len(c.Agents))
}
