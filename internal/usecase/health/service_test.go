package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockIndexChecker struct {
	exists bool
	err    error
}

func (m *mockIndexChecker) IndexExists(_ context.Context) (bool, error) { return m.exists, m.err }

type mockLLMChecker struct {
	err error
}

func (m *mockLLMChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{exists: true}, &mockLLMChecker{}, &mockDBPinger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentDatabase, ComponentIndex, ComponentLLM, ComponentCriteria} {
		if r.Checks[c] != CheckOK {
			t.Errorf("expected %s %q, got %q", c, CheckOK, r.Checks[c])
		}
	}
}

func TestCheck_DBErrorIsUnhealthy(t *testing.T) {
	idx := &mockIndexChecker{exists: true}
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, idx, &mockLLMChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentDatabase] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks[ComponentDatabase])
	}
	if _, ok := r.Checks[ComponentIndex]; ok {
		t.Error("index must not be checked when the database is down")
	}
	if r.Checks[ComponentLLM] != CheckOK {
		t.Errorf("expected llm %q, got %q", CheckOK, r.Checks[ComponentLLM])
	}
}

func TestCheck_LLMErrorIsDegraded(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, &mockLLMChecker{err: errors.New("401")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentLLM] != CheckError {
		t.Errorf("expected llm %q, got %q", CheckError, r.Checks[ComponentLLM])
	}
}

func TestCheck_MissingIndex(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentIndex] != CheckMissing {
		t.Errorf("expected index %q, got %q", CheckMissing, r.Checks[ComponentIndex])
	}
}

func TestCheck_IndexError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{err: errors.New("timeout")}, nil, nil)
	r := svc.Check(context.Background())
	if r.Checks[ComponentIndex] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks[ComponentIndex])
	}
}

func TestCheck_CriteriaDBError(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil, &mockDBPinger{err: errors.New("no such host")})
	r := svc.Check(context.Background())
	if r.Status != Degraded || r.Checks[ComponentCriteria] != CheckError {
		t.Errorf("unexpected report %+v", r)
	}
}

func TestCheck_OptionalComponentsOmitted(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 1 {
		t.Errorf("expected only the database check, got %v", r.Checks)
	}
}
