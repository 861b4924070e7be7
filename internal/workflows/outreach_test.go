package workflows_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/ports"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/workflows"
)

type agencyRepo struct{ agencies []domain.Agency }

func (r *agencyRepo) Upsert(ctx context.Context, a *domain.Agency) error       { return nil }
func (r *agencyRepo) UpsertBatch(ctx context.Context, a []domain.Agency) error { return nil }
func (r *agencyRepo) GetBySlug(ctx context.Context, slug string) (*domain.Agency, error) {
	return nil, domain.ErrNotFound
}
func (r *agencyRepo) GetByID(ctx context.Context, id string) (*domain.Agency, error) {
	for i := range r.agencies {
		if r.agencies[i].ID == id {
			return &r.agencies[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
func (r *agencyRepo) List(ctx context.Context) ([]domain.Agency, error) { return r.agencies, nil }

type contactRepo struct {
	mu      sync.Mutex
	records map[string]domain.ContactRecord
}

func (r *contactRepo) Reserve(ctx context.Context, agencyID, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[agencyID]; ok {
		return domain.ErrAlreadyContacted
	}
	r.records[agencyID] = domain.ContactRecord{AgencyID: agencyID, ContactedBy: by, Pending: true}
	return nil
}
func (r *contactRepo) Mark(ctx context.Context, rec *domain.ContactRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.AgencyID] = *rec
	return nil
}
func (r *contactRepo) Unmark(ctx context.Context, agencyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, agencyID)
	return nil
}
func (r *contactRepo) Get(ctx context.Context, agencyID string) (*domain.ContactRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[agencyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}
func (r *contactRepo) List(ctx context.Context) ([]domain.ContactRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ContactRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

type mailer struct {
	mu    sync.Mutex
	sent  []domain.OutreachEmail
	calls int
	err   error
}

func (m *mailer) Send(ctx context.Context, email *domain.OutreachEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, *email)
	return nil
}

func newFixture(m *mailer) (*workflows.OutreachActivities, *contactRepo) {
	agencies := &agencyRepo{agencies: []domain.Agency{
		{ID: "a1", Slug: "atlas-voyages", Title: "Atlas Voyages", Email: "hello@atlas-voyages.ma"},
		{ID: "a2", Slug: "no-mail", Title: "No Mail Travel"},
	}}
	contacts := &contactRepo{records: map[string]domain.ContactRecord{}}
	var ml ports.Mailer
	if m != nil {
		ml = m
	}
	svc := usecases.NewOutreachService(agencies, contacts, ml, nil, usecases.OutreachConfig{
		ProfileBaseURL: "https://travelagencies.world/agencies",
		SentBy:         "worker",
	})
	return &workflows.OutreachActivities{Outreach: svc}, contacts
}

func run(t *testing.T, acts *workflows.OutreachActivities, agencyID string) (*workflows.OutreachResult, error) {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.OutreachWorkflow)
	env.RegisterActivity(acts)

	env.ExecuteWorkflow(workflows.OutreachWorkflow, workflows.OutreachInput{AgencyID: agencyID, RequestedBy: "Sara"})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		return nil, err
	}
	var result workflows.OutreachResult
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatalf("workflow result: %v", err)
	}
	return &result, nil
}

func TestOutreachWorkflow_Sends(t *testing.T) {
	m := &mailer{}
	acts, contacts := newFixture(m)

	result, err := run(t, acts, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Skipped || result.To != "hello@atlas-voyages.ma" {
		t.Errorf("unexpected result %+v", result)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(m.sent))
	}
	rec := contacts.records["a1"]
	if !rec.Contacted || rec.Pending || rec.ContactedBy != "Sara" {
		t.Errorf("expected confirmed record, got %+v", rec)
	}
}

func TestOutreachWorkflow_SkipsContacted(t *testing.T) {
	m := &mailer{}
	acts, contacts := newFixture(m)
	contacts.records["a1"] = domain.ContactRecord{AgencyID: "a1", Contacted: true, ContactedBy: "earlier"}

	result, err := run(t, acts, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Skipped {
		t.Error("expected run to be skipped")
	}
	if m.calls != 0 {
		t.Errorf("expected no send attempt, got %d", m.calls)
	}
	if contacts.records["a1"].ContactedBy != "earlier" {
		t.Error("existing record must not be touched")
	}
}

func TestOutreachWorkflow_ReleasesOnSendFailure(t *testing.T) {
	m := &mailer{err: errors.New("smtp: 421 try again later")}
	acts, contacts := newFixture(m)

	if _, err := run(t, acts, "a1"); err == nil {
		t.Fatal("expected workflow error")
	}
	if m.calls != 3 {
		t.Errorf("expected 3 send attempts, got %d", m.calls)
	}
	if _, ok := contacts.records["a1"]; ok {
		t.Error("expected reservation to be released")
	}
}

func TestOutreachWorkflow_ReleasesWhenNotDeliverable(t *testing.T) {
	acts, contacts := newFixture(&mailer{})

	if _, err := run(t, acts, "a2"); err == nil {
		t.Fatal("expected workflow error for agency without email")
	}
	if _, ok := contacts.records["a2"]; ok {
		t.Error("expected reservation to be released")
	}
}

func TestOutreachWorkflow_NoMailerIsNotRetried(t *testing.T) {
	acts, contacts := newFixture(nil)

	if _, err := run(t, acts, "a1"); err == nil {
		t.Fatal("expected workflow error without mailer")
	}
	if _, ok := contacts.records["a1"]; ok {
		t.Error("expected reservation to be released")
	}
}
