package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the search store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckMissing indicates the component is reachable but not set up.
	CheckMissing CheckResult = "missing"
)

// Component names reported by Check.
const (
	ComponentDatabase = "database"
	ComponentIndex    = "index"
	ComponentLLM      = "llm"
	ComponentCriteria = "criteria_db"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	index    IndexChecker
	llm      LLMChecker
	criteria DBPinger
}

// New creates a Service. index, llm and criteria can be nil.
func New(db DBPinger, index IndexChecker, llm LLMChecker, criteria DBPinger) *Service {
	return &Service{db: db, index: index, llm: llm, criteria: criteria}
}

// Check runs health checks against all components. A database failure is
// unhealthy; any other failure is degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbOK := s.db.Ping(ctx) == nil
	checks[ComponentDatabase] = result(dbOK)

	if s.index != nil && dbOK {
		exists, err := s.index.IndexExists(ctx)
		switch {
		case err != nil:
			checks[ComponentIndex] = CheckError
		case !exists:
			checks[ComponentIndex] = CheckMissing
		default:
			checks[ComponentIndex] = CheckOK
		}
	}

	if s.llm != nil {
		checks[ComponentLLM] = result(s.llm.HealthCheck(ctx) == nil)
	}

	if s.criteria != nil {
		checks[ComponentCriteria] = result(s.criteria.Ping(ctx) == nil)
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}
	if !dbOK {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func result(ok bool) CheckResult {
	if ok {
		return CheckOK
	}
	return CheckError
}
