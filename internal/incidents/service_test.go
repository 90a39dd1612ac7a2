package incidents

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	incidents   map[string]*domain.Incident
	createCalls int
	appendCalls int
	appendErr   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{incidents: make(map[string]*domain.Incident)}
}

func clone(in *domain.Incident) *domain.Incident {
	out := *in
	out.Updates = append([]domain.IncidentUpdate(nil), in.Updates...)
	out.ServiceIDs = append([]string(nil), in.ServiceIDs...)
	if in.ResolvedAt != nil {
		t := *in.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}

func (m *mockRepository) CreateIncident(_ context.Context, incident *domain.Incident) error {
	m.createCalls++
	incident.ID = uuid.NewString()
	for i := range incident.Updates {
		incident.Updates[i].ID = uuid.NewString()
	}
	m.incidents[incident.ID] = clone(incident)
	return nil
}

func (m *mockRepository) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	return clone(inc), nil
}

func (m *mockRepository) ListIncidents(_ context.Context, filter ListFilter) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0)
	for _, inc := range m.incidents {
		switch filter.State {
		case StateActive:
			if inc.IsResolved() {
				continue
			}
		case StateResolved:
			if !inc.IsResolved() {
				continue
			}
		}
		out = append(out, *clone(inc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepository) AppendUpdate(_ context.Context, id string, update *domain.IncidentUpdate, requireOpen bool) (*domain.Incident, error) {
	m.appendCalls++
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	if requireOpen && inc.IsResolved() {
		return nil, ErrAlreadyResolved
	}
	update.ID = uuid.NewString()
	inc.Updates = append(inc.Updates, *update)
	inc.Status = update.Status
	inc.UpdatedAt = update.Timestamp
	if update.Status.IsResolved() && inc.ResolvedAt == nil {
		t := update.Timestamp
		inc.ResolvedAt = &t
	}
	return clone(inc), nil
}

// spyPublisher records published changes.
type spyPublisher struct {
	changes []domain.Change
}

func (p *spyPublisher) Publish(_ context.Context, change domain.Change) error {
	p.changes = append(p.changes, change)
	return nil
}

// spyNotifier records lifecycle callbacks.
type spyNotifier struct {
	created  int
	updated  int
	resolved int
	err      error
}

func (n *spyNotifier) OnIncidentCreated(_ context.Context, _ *domain.Incident) error {
	n.created++
	return n.err
}

func (n *spyNotifier) OnIncidentUpdated(_ context.Context, _ *domain.Incident, _ *domain.IncidentUpdate, _ domain.IncidentStatus) error {
	n.updated++
	return n.err
}

func (n *spyNotifier) OnIncidentResolved(_ context.Context, _ *domain.Incident) error {
	n.resolved++
	return n.err
}

// newTestService returns a service whose clock advances one second per call.
func newTestService(repo Repository, pub ChangePublisher, notifier Notifier) *Service {
	svc := NewService(repo, pub, notifier)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc
}

func validInput() CreateIncidentInput {
	return CreateIncidentInput{
		Title:       "API latency",
		Description: "Requests are slow",
		ServiceIDs:  []string{"svc-1"},
	}
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateIncidentInput)
		wantErr error
	}{
		{name: "valid", mutate: func(*CreateIncidentInput) {}},
		{name: "empty title", mutate: func(in *CreateIncidentInput) { in.Title = "" }, wantErr: ErrTitleRequired},
		{name: "whitespace title", mutate: func(in *CreateIncidentInput) { in.Title = "  \t" }, wantErr: ErrTitleRequired},
		{name: "no services", mutate: func(in *CreateIncidentInput) { in.ServiceIDs = nil }, wantErr: ErrServicesRequired},
		{name: "blank services", mutate: func(in *CreateIncidentInput) { in.ServiceIDs = []string{" ", ""} }, wantErr: ErrServicesRequired},
		{name: "bad impact", mutate: func(in *CreateIncidentInput) { in.Impact = "catastrophic" }, wantErr: ErrInvalidImpact},
		{name: "bad status", mutate: func(in *CreateIncidentInput) { in.Status = "panicking" }, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := newMockRepository()
			svc := newTestService(repo, nil, nil)
			input := validInput()
			tt.mutate(&input)

			// Act
			got, err := svc.Create(context.Background(), input, "user-1")

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, repo.createCalls, "nothing must be persisted")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, repo.createCalls)
			assert.Equal(t, "user-1", got.CreatedBy)
		})
	}
}

func TestService_Create_InitialState(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, nil, nil)

	created, err := svc.Create(context.Background(), validInput(), "")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ImpactMinor, got.Impact)
	assert.Equal(t, domain.IncidentStatusInvestigating, got.Status)
	require.Len(t, got.Updates, 1)
	assert.Equal(t, "Incident identified: Requests are slow", got.Updates[0].Text)
	assert.Contains(t, got.Updates[0].Text, "Requests are slow")
	assert.Equal(t, got.Status, got.Updates[0].Status)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	assert.Nil(t, got.ResolvedAt)
}

func TestService_Create_DeduplicatesServices(t *testing.T) {
	svc := newTestService(newMockRepository(), nil, nil)
	input := validInput()
	input.ServiceIDs = []string{"a", " b ", "a", ""}

	got, err := svc.Create(context.Background(), input, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.ServiceIDs)
}

func TestService_Create_ResolvedAtCreation(t *testing.T) {
	svc := newTestService(newMockRepository(), nil, nil)
	input := validInput()
	input.Status = domain.IncidentStatusResolved

	got, err := svc.Create(context.Background(), input, "")

	require.NoError(t, err)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, got.CreatedAt, *got.ResolvedAt)
}

func TestService_Create_PublishesAndNotifies(t *testing.T) {
	pub := &spyPublisher{}
	notifier := &spyNotifier{err: errors.New("webhook down")}
	svc := newTestService(newMockRepository(), pub, notifier)

	got, err := svc.Create(context.Background(), validInput(), "")

	require.NoError(t, err, "notifier errors must not fail the write")
	require.Len(t, pub.changes, 1)
	assert.Equal(t, domain.TopicIncidents, pub.changes[0].Topic)
	assert.Equal(t, domain.ChangeCreated, pub.changes[0].Kind)
	assert.Equal(t, got.ID, pub.changes[0].ID)
	assert.Equal(t, 1, notifier.created)
}

func TestService_PostUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	notifier := &spyNotifier{}
	svc := newTestService(repo, nil, notifier)
	created, err := svc.Create(ctx, validInput(), "")
	require.NoError(t, err)

	t.Run("empty text is a no-op", func(t *testing.T) {
		calls := repo.appendCalls

		got, appended, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: created.ID, Text: "   ", Status: domain.IncidentStatusMonitoring})

		require.NoError(t, err)
		assert.False(t, appended)
		assert.Nil(t, got)
		assert.Equal(t, calls, repo.appendCalls)
		stored, _ := svc.Get(ctx, created.ID)
		assert.Len(t, stored.Updates, 1)
		assert.Equal(t, domain.IncidentStatusInvestigating, stored.Status)
	})

	t.Run("appends and overwrites status", func(t *testing.T) {
		got, appended, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: created.ID, Text: "Fix deployed", Status: domain.IncidentStatusMonitoring})

		require.NoError(t, err)
		assert.True(t, appended)
		assert.Len(t, got.Updates, 2)
		assert.Equal(t, "Fix deployed", got.LatestUpdate().Text)
		assert.Equal(t, domain.IncidentStatusMonitoring, got.Status)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt))
		assert.Nil(t, got.ResolvedAt)
		assert.Equal(t, 1, notifier.updated)
	})

	t.Run("empty status keeps current", func(t *testing.T) {
		got, _, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: created.ID, Text: "Still watching"})

		require.NoError(t, err)
		assert.Equal(t, domain.IncidentStatusMonitoring, got.Status)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, _, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: created.ID, Text: "x", Status: "gone"})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("resolved status stamps resolvedAt", func(t *testing.T) {
		got, _, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: created.ID, Text: "All good", Status: domain.IncidentStatusResolved})

		require.NoError(t, err)
		require.NotNil(t, got.ResolvedAt)
		assert.Equal(t, got.UpdatedAt, *got.ResolvedAt)
		assert.Equal(t, 1, notifier.resolved)
	})

	t.Run("unknown incident", func(t *testing.T) {
		_, _, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: uuid.NewString(), Text: "x"})
		assert.ErrorIs(t, err, ErrIncidentNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, _, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: "nope", Text: "x"})
		assert.ErrorIs(t, err, ErrIncidentNotFound)
	})
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	pub := &spyPublisher{}
	notifier := &spyNotifier{}
	svc := newTestService(newMockRepository(), pub, notifier)
	created, err := svc.Create(ctx, validInput(), "")
	require.NoError(t, err)

	first, changed, err := svc.Resolve(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.IncidentStatusResolved, first.Status)
	require.NotNil(t, first.ResolvedAt)
	require.Len(t, first.Updates, 2)
	assert.Equal(t, domain.ResolvedUpdateText, first.LatestUpdate().Text)
	assert.Equal(t, domain.IncidentStatusResolved, first.LatestUpdate().Status)

	second, changed, err := svc.Resolve(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, second.Updates, 2, "second resolve must not append")
	assert.Equal(t, *first.ResolvedAt, *second.ResolvedAt)

	assert.Equal(t, 1, notifier.resolved)
	assert.Len(t, pub.changes, 2)
}

func TestService_Resolve_KeepsEarlierResolvedAt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockRepository(), nil, nil)
	created, err := svc.Create(ctx, validInput(), "")
	require.NoError(t, err)

	viaUpdate, _, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: created.ID, Text: "done", Status: domain.IncidentStatusResolved})
	require.NoError(t, err)
	reopened, _, err := svc.PostUpdate(ctx, PostUpdateInput{IncidentID: created.ID, Text: "regressed", Status: domain.IncidentStatusInvestigating})
	require.NoError(t, err)
	assert.Equal(t, *viaUpdate.ResolvedAt, *reopened.ResolvedAt)

	again, changed, err := svc.Resolve(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, *viaUpdate.ResolvedAt, *again.ResolvedAt)
}

func TestService_Resolve_LostRace(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	svc := newTestService(repo, nil, nil)
	created, err := svc.Create(ctx, validInput(), "")
	require.NoError(t, err)
	repo.appendErr = ErrAlreadyResolved

	got, changed, err := svc.Resolve(ctx, created.ID)

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, created.ID, got.ID)
}

func TestService_Resolve_NotFound(t *testing.T) {
	svc := newTestService(newMockRepository(), nil, nil)

	_, _, err := svc.Resolve(context.Background(), uuid.NewString())

	assert.ErrorIs(t, err, ErrIncidentNotFound)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockRepository(), nil, nil)
	first, err := svc.Create(ctx, validInput(), "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, validInput(), "")
	require.NoError(t, err)
	_, _, err = svc.Resolve(ctx, first.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	active, err := svc.List(ctx, ListFilter{State: StateActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	_, err = svc.List(ctx, ListFilter{State: "later"})
	assert.Error(t, err)
}
