package stemma

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Scenario is a scripted multi-branch editing session.
type Scenario struct {
	Steps []Step `toml:"steps"`
}

// Step is a single scripted action against a named branch.
type Step struct {
	// Action is one of apply, fork, merge, rebase, begin, commit, abort and
	// rollback.
	Action string `toml:"action"`
	// Branch names the branch the action operates on.
	Branch string `toml:"branch"`
	// Name is the name of the branch created by fork.
	Name string `toml:"name,omitempty"`
	// From names the branch merged into Branch.
	From string `toml:"from,omitempty"`
	// Onto names the branch that Branch is rebased onto.
	Onto string `toml:"onto,omitempty"`
	// Key and Value describe the edit performed by apply.
	Key   string `toml:"key,omitempty"`
	Value string `toml:"value,omitempty"`
	// Guarded applies the edit as a compare-and-set.
	Guarded bool `toml:"guarded,omitempty"`
	// Count is the number of commits rollback walks back.
	Count int `toml:"count,omitempty"`
}

// LoadScenario reads a scenario from the TOML file at path.
func LoadScenario(path string) (Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()

	var scenario Scenario
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&scenario); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}

	return scenario, nil
}
