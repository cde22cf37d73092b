package validation

import (
	"fmt"

	"github.com/darmiel/doigate/internal/logic"
)

// NamedStatement is a filter definition as seen by the validator.
type NamedStatement struct {
	Name      string
	Statement logic.StatementConfig
}

// ValidateLogic assembles every shared statement and every filter once, so that
// unknown references, cycles and invalid condition parameters are reported at
// load time. It returns the set of valid filter names.
func ValidateLogic(statements map[string]logic.StatementConfig, filters []NamedStatement) (map[string]struct{}, error) {
	assembler := logic.NewAssembler(statements)

	for name := range statements {
		if name == "" {
			return nil, fmt.Errorf("shared statement with empty name")
		}
		if _, err := assembler.BuildNamed(name); err != nil {
			return nil, err
		}
	}

	seenNames := make(map[string]struct{})
	for i, f := range filters {
		if f.Name == "" {
			return nil, fmt.Errorf("filter #%d missing name", i)
		}
		if _, exists := seenNames[f.Name]; exists {
			return nil, fmt.Errorf("filter name '%s' is not unique", f.Name)
		}
		seenNames[f.Name] = struct{}{}

		if _, err := assembler.Build(f.Statement); err != nil {
			return nil, fmt.Errorf("filter '%s': %w", f.Name, err)
		}
	}

	return seenNames, nil
}
