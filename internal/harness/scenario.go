package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one YAML scenario file.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Setup seeds state that has no orchestrator of its own.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps run in order. Step names must be unique so later inputs can
	// reference them.
	Steps []Step `yaml:"steps"`

	// Assertions are the expected final row counts per table.
	Assertions map[string]int `yaml:"assertions,omitempty"`
}

// Setup lists rows inserted before the first step.
type Setup struct {
	Users []SetupUser `yaml:"users,omitempty"`
}

// SetupUser is a user inserted directly.
type SetupUser struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name,omitempty"`
	Email       string `yaml:"email,omitempty"`
}

// Step invokes one orchestrator.
type Step struct {
	Name         string         `yaml:"name"`
	Orchestrator string         `yaml:"orchestrator"`
	RequestID    string         `yaml:"request_id"`
	Input        map[string]any `yaml:"input"`
	Expect       Expect         `yaml:"expect"`
}

// Expect is the expected outcome of a step. Exactly one of OK and
// ErrorCode is set.
type Expect struct {
	OK        bool   `yaml:"ok,omitempty"`
	ErrorCode string `yaml:"error_code,omitempty"`
	Cached    bool   `yaml:"cached,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	users := map[string]bool{}
	for i, u := range s.Setup.Users {
		if u.ID == "" {
			return fmt.Errorf("setup.users[%d]: id is required", i)
		}
		if users[u.ID] {
			return fmt.Errorf("setup.users[%d]: duplicate id %q", i, u.ID)
		}
		users[u.ID] = true
	}

	names := map[string]bool{}
	for i, st := range s.Steps {
		switch {
		case st.Name == "":
			return fmt.Errorf("steps[%d]: name is required", i)
		case names[st.Name]:
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, st.Name)
		case st.Orchestrator == "":
			return fmt.Errorf("steps[%d]: orchestrator is required", i)
		case !KnownOrchestrator(st.Orchestrator):
			return fmt.Errorf("steps[%d]: unknown orchestrator %q", i, st.Orchestrator)
		case st.RequestID == "":
			return fmt.Errorf("steps[%d]: request_id is required", i)
		case st.Input == nil:
			return fmt.Errorf("steps[%d]: input is required (use {} for none)", i)
		case st.Expect.OK == (st.Expect.ErrorCode != ""):
			return fmt.Errorf("steps[%d].expect: set exactly one of ok and error_code", i)
		case st.Expect.Cached && !st.Expect.OK:
			return fmt.Errorf("steps[%d].expect: cached requires ok", i)
		}
		for _, ref := range refsIn(st.Input) {
			if !names[ref] {
				return fmt.Errorf("steps[%d]: reference to unknown or later step %q", i, ref)
			}
		}
		names[st.Name] = true
	}

	for table, n := range s.Assertions {
		if n < 0 {
			return fmt.Errorf("assertions.%s: count must be non-negative", table)
		}
	}
	return nil
}
