package planner

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitrdm/sociallaw/pkg/config"
	"github.com/gitrdm/sociallaw/pkg/errs"
	"github.com/gitrdm/sociallaw/pkg/logging"
	"github.com/gitrdm/sociallaw/pkg/pddl"
	"github.com/gitrdm/sociallaw/pkg/problem"
)

// ExecPlanner invokes a configured external planner binary as a
// subprocess, the only boundary call in the core that blocks on
// anything other than CPU (spec.md §5/§6).
type ExecPlanner struct {
	cfg    *config.PlannerConfig
	writer *pddl.Writer
	log    *logging.Logger
}

// NewExecPlanner builds an ExecPlanner from cfg. log may be nil.
func NewExecPlanner(cfg *config.PlannerConfig, log *logging.Logger) *ExecPlanner {
	return &ExecPlanner{cfg: cfg, writer: pddl.NewWriter(), log: logging.OrNop(log)}
}

// Solve renders p as a PDDL domain/problem pair in the configured
// WorkDir (or, when that is empty, a fresh scratch directory removed
// afterwards), runs the configured planner against it, and parses the
// planner's stdout back into a Plan.
func (e *ExecPlanner) Solve(p *problem.Problem) (Result, error) {
	runID := uuid.NewString()
	log := e.log.With(zap.String("run_id", runID), zap.String("problem", p.Name))

	domainText, err := e.writer.WriteDomain(p)
	if err != nil {
		return Result{Status: Error}, &errs.PlannerError{Reason: "rendering domain", Err: err}
	}
	problemText, err := e.writer.WriteProblem(p)
	if err != nil {
		return Result{Status: Error}, &errs.PlannerError{Reason: "rendering problem", Err: err}
	}

	dir := e.cfg.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "sociallaw-"+runID+"-")
		if err != nil {
			return Result{Status: Error}, &errs.PlannerError{Reason: "creating scratch dir", Err: err}
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	domainPath := filepath.Join(dir, "domain.pddl")
	problemPath := filepath.Join(dir, "problem.pddl")
	if err := os.WriteFile(domainPath, []byte(domainText), 0o644); err != nil {
		return Result{Status: Error}, &errs.PlannerError{Reason: "writing domain file", Err: err}
	}
	if err := os.WriteFile(problemPath, []byte(problemText), 0o644); err != nil {
		return Result{Status: Error}, &errs.PlannerError{Reason: "writing problem file", Err: err}
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if e.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.cfg.Command[1:]...), domainPath, problemPath)
	cmd := exec.CommandContext(ctx, e.cfg.Command[0], args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		log.Warn("planner timed out")
		return Result{Status: Timeout}, nil
	}
	if err != nil {
		log.Error("planner invocation failed", zap.Error(err))
		return Result{Status: Error}, &errs.PlannerError{Reason: "planner process failed", Err: err}
	}

	plan, unsolvable := parsePlan(string(out))
	if unsolvable {
		return Result{Status: UnsolvableProven}, nil
	}
	return Result{Status: SolvedSat, Plan: &plan}, nil
}

// parsePlan scans planner stdout for lines of the form
// "(action-name arg1 arg2)" or "start: (action-name args) [duration]",
// the two output shapes classical and temporal planners in this family
// commonly emit. A line containing "unsolvable" (case-insensitive)
// anywhere signals a proven-unsolvable result.
func parsePlan(output string) (Plan, bool) {
	var plan Plan
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.Contains(strings.ToLower(line), "unsolvable") {
			return Plan{}, true
		}
		step, ok := parsePlanLine(line)
		if ok {
			plan.Steps = append(plan.Steps, step)
		}
	}
	return plan, false
}

func parsePlanLine(line string) (Step, bool) {
	startTime := 0.0
	if idx := strings.Index(line, ":"); idx > 0 && idx < strings.Index(line, "(") {
		if t, err := strconv.ParseFloat(strings.TrimSpace(line[:idx]), 64); err == nil {
			startTime = t
			line = strings.TrimSpace(line[idx+1:])
		}
	}
	open := strings.Index(line, "(")
	closeIdx := strings.LastIndex(line, ")")
	if open < 0 || closeIdx <= open {
		return Step{}, false
	}
	inner := line[open+1 : closeIdx]
	fields := strings.Fields(inner)
	if len(fields) == 0 {
		return Step{}, false
	}
	duration := 0.0
	rest := strings.TrimSpace(line[closeIdx+1:])
	if strings.HasPrefix(rest, "[") {
		rest = strings.Trim(rest, "[]")
		if d, err := strconv.ParseFloat(rest, 64); err == nil {
			duration = d
		}
	}
	return Step{
		StartTime: startTime,
		Action:    ActionInstance{ActionName: fields[0], Args: fields[1:]},
		Duration:  duration,
	}, true
}
