package media

import (
	"fmt"
	"os/exec"
	"strings"
)

// overridable in tests
var lookPath = exec.LookPath

// CheckTools verifies every required external binary resolves on PATH.
// Called once before the pipeline starts; a missing tool is the only
// pre-pipeline hard failure.
func CheckTools(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
