package social

import (
	"os"
	"path/filepath"

	"github.com/gitrdm/sociallaw/pkg/errs"
)

// writeDebugFiles writes the rendered robustness-verification domain
// and problem PDDL to dir/domain_rv.pddl and dir/problem_rv.pddl,
// creating dir if necessary.
func writeDebugFiles(dir, domainText, problemText string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errs.PlannerError{Reason: "creating debug dump dir", Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, "domain_rv.pddl"), []byte(domainText), 0o644); err != nil {
		return &errs.PlannerError{Reason: "writing debug dump domain file", Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, "problem_rv.pddl"), []byte(problemText), 0o644); err != nil {
		return &errs.PlannerError{Reason: "writing debug dump problem file", Err: err}
	}
	return nil
}
