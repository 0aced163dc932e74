package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary the video pipeline executes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// CheckBinaries resolves each requirement's command on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results[i] = lookup(req)
	}
	return results
}

func lookup(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	if resolved != req.Command {
		status.Detail = resolved
	}
	return status
}
