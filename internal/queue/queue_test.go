package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockWorkflowRepo struct {
	workflow *domain.Workflow
	getErr   error

	advancedTo   domain.WorkflowStage
	advanceCalls int
	advanceErr   error
}

func (m *mockWorkflowRepo) Create(ctx context.Context, workflow *domain.Workflow) error { return nil }

func (m *mockWorkflowRepo) Get(ctx context.Context, orgID string, id uuid.UUID) (*domain.Workflow, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.workflow == nil || m.workflow.OrgID != orgID || m.workflow.ID != id {
		return nil, domain.ErrNotFound
	}
	clone := *m.workflow
	return &clone, nil
}

func (m *mockWorkflowRepo) Update(ctx context.Context, orgID string, id uuid.UUID, fn func(*domain.Workflow) error) error {
	return nil
}

func (m *mockWorkflowRepo) AdvanceStage(ctx context.Context, orgID string, id uuid.UUID, expectedCurrent, next domain.WorkflowStage) error {
	if m.advanceErr != nil {
		return m.advanceErr
	}
	m.advanceCalls++
	m.advancedTo = next
	m.workflow.Status = next
	return nil
}

func (m *mockWorkflowRepo) List(ctx context.Context, filter repository.WorkflowFilter) ([]*domain.Workflow, int64, error) {
	return nil, 0, nil
}

type mockKeywordRepo struct {
	queueable []*domain.KeywordUnit
	listErr   error
}

func (m *mockKeywordRepo) Create(ctx context.Context, unit *domain.KeywordUnit) error { return nil }

func (m *mockKeywordRepo) Get(ctx context.Context, id uuid.UUID) (*domain.KeywordUnit, error) {
	return nil, domain.ErrNotFound
}

func (m *mockKeywordRepo) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.KeywordUnit, error) {
	return nil, nil
}

func (m *mockKeywordRepo) ListQueueable(ctx context.Context, workflowID uuid.UUID, limit int) ([]*domain.KeywordUnit, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > 0 && len(m.queueable) > limit {
		return m.queueable[:limit], nil
	}
	return m.queueable, nil
}

func (m *mockKeywordRepo) MarkApproved(ctx context.Context, workflowID uuid.UUID, unitIDs []uuid.UUID) (int, error) {
	return 0, nil
}

func (m *mockKeywordRepo) SetSubtopicStatus(ctx context.Context, workflowID uuid.UUID, unitIDs []uuid.UUID, status domain.SubtopicStatus) (int, error) {
	return 0, nil
}

func (m *mockKeywordRepo) SetSubtopics(ctx context.Context, id uuid.UUID, subtopics []domain.Subtopic) error {
	return nil
}

func (m *mockKeywordRepo) CountByStatus(ctx context.Context, workflowID uuid.UUID) (map[domain.SubtopicStatus]int, error) {
	return nil, nil
}

type articleKey struct {
	workflowID    uuid.UUID
	keywordUnitID uuid.UUID
}

// mockArticleRepo keeps articles in a map keyed the way the real unique index
// is, so insert counts and reuse are observable. Rows in racedRows materialize
// during CreateIfAbsent, after the caller's existence check, the way a
// concurrent queuing call's insert would.
type mockArticleRepo struct {
	rows      map[articleKey]*domain.Article
	racedRows map[articleKey]*domain.Article
	inserts   int
	createErr error

	statusUpdates map[uuid.UUID]domain.ArticleStatus
}

func newMockArticleRepo(existing ...*domain.Article) *mockArticleRepo {
	m := &mockArticleRepo{
		rows:          make(map[articleKey]*domain.Article),
		statusUpdates: make(map[uuid.UUID]domain.ArticleStatus),
	}
	for _, a := range existing {
		m.rows[articleKey{a.WorkflowID, a.KeywordUnitID}] = a
	}
	return m
}

func (m *mockArticleRepo) CreateIfAbsent(ctx context.Context, article *domain.Article) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	key := articleKey{article.WorkflowID, article.KeywordUnitID}
	if winner, ok := m.racedRows[key]; ok {
		m.rows[key] = winner
		delete(m.racedRows, key)
		return false, nil
	}
	if _, ok := m.rows[key]; ok {
		return false, nil
	}
	stored := *article
	m.rows[key] = &stored
	m.inserts++
	return true, nil
}

func (m *mockArticleRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	for _, a := range m.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockArticleRepo) GetByUnit(ctx context.Context, workflowID, keywordUnitID uuid.UUID) (*domain.Article, error) {
	if a, ok := m.rows[articleKey{workflowID, keywordUnitID}]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockArticleRepo) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) ListLinkable(ctx context.Context, workflowID uuid.UUID) ([]*domain.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) BeginLinking(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (m *mockArticleRepo) MarkLinked(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockArticleRepo) MarkLinkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return nil
}

func (m *mockArticleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ArticleStatus, errorMsg string) error {
	m.statusUpdates[id] = status
	return nil
}

func (m *mockArticleRepo) CountUnlinked(ctx context.Context, workflowID uuid.UUID) (int, error) {
	return 0, nil
}

// mockTrigger fails dispatch for the configured keywords.
type mockTrigger struct {
	failKeywords map[string]error
	dispatched   []string
}

func (m *mockTrigger) TriggerGeneration(ctx context.Context, article *domain.Article) error {
	if err, ok := m.failKeywords[article.Keyword]; ok {
		return err
	}
	m.dispatched = append(m.dispatched, article.Keyword)
	return nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureRecorder) Record(ctx context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureRecorder) Close() error { return nil }

func (c *captureRecorder) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var testMetricsOnce sync.Once
var testMetrics *observability.Metrics

func queueTestMetrics() *observability.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = observability.NewMetrics("queuetest")
	})
	return testMetrics
}

func testActor() domain.Actor {
	return domain.Actor{ID: "user-789", OrgID: "org-123", Role: domain.RoleAdmin}
}

func queuingWorkflow() *domain.Workflow {
	now := time.Now().UTC()
	return &domain.Workflow{
		ID:        uuid.New(),
		OrgID:     "org-123",
		CreatedBy: "user-789",
		Title:     "kubernetes cost optimization",
		Status:    domain.StageArticleQueuing,
		ICPContext: map[string]interface{}{
			"persona": "platform engineer",
		},
		CompetitorContext: map[string]interface{}{
			"competitors": []interface{}{"kubecost", "opencost"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func readyUnit(workflowID uuid.UUID, keyword string) *domain.KeywordUnit {
	return &domain.KeywordUnit{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		Keyword:        keyword,
		Approved:       true,
		SubtopicStatus: domain.SubtopicStatusReady,
		Subtopics: []domain.Subtopic{
			{Title: keyword + " basics", Tags: []string{"intro"}},
		},
	}
}

func newProcessor(workflows *mockWorkflowRepo, keywords *mockKeywordRepo, articles *mockArticleRepo, trigger *mockTrigger, recorder *captureRecorder, maxUnits int) *Processor {
	return NewProcessor(maxUnits, workflows, keywords, articles, trigger, recorder, queueTestMetrics(), zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestQueue_ReusesExistingArticles(t *testing.T) {
	workflow := queuingWorkflow()
	units := []*domain.KeywordUnit{
		readyUnit(workflow.ID, "kubernetes cost optimization tools"),
		readyUnit(workflow.ID, "kubernetes rightsizing"),
		readyUnit(workflow.ID, "spot instance strategies"),
	}
	// The first unit was queued by an earlier run.
	existing := &domain.Article{
		ID:            uuid.New(),
		WorkflowID:    workflow.ID,
		KeywordUnitID: units[0].ID,
		OrgID:         workflow.OrgID,
		Keyword:       units[0].Keyword,
		Status:        domain.ArticleStatusGenerating,
		LinkStatus:    domain.LinkStatusNotLinked,
	}

	workflows := &mockWorkflowRepo{workflow: workflow}
	articles := newMockArticleRepo(existing)
	trigger := &mockTrigger{}
	recorder := &captureRecorder{}
	p := newProcessor(workflows, &mockKeywordRepo{queueable: units}, articles, trigger, recorder, 50)

	result, err := p.Queue(context.Background(), testActor(), workflow.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, result.ArticlesCreated)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, articles.inserts)
	assert.Len(t, trigger.dispatched, 2)
	assert.NotContains(t, trigger.dispatched, existing.Keyword)
	assert.Equal(t, domain.StageArticleLinking, result.NewStatus)
	assert.Equal(t, domain.StageArticleLinking, workflows.advancedTo)

	require.Len(t, result.Articles, 3)
	assert.True(t, result.Articles[0].Existing)
	assert.Equal(t, existing.ID, result.Articles[0].ArticleID)

	assert.Equal(t, []string{domain.ActionQueuingStarted, domain.ActionQueuingCompleted}, recorder.actions())
}

func TestQueue_LostInsertRaceReportsStoredArticle(t *testing.T) {
	workflow := queuingWorkflow()
	unit := readyUnit(workflow.ID, "kubernetes rightsizing")

	// A concurrent queuing call wins the insert between our existence check
	// and our own insert attempt.
	winner := &domain.Article{
		ID:            uuid.New(),
		WorkflowID:    workflow.ID,
		KeywordUnitID: unit.ID,
		OrgID:         workflow.OrgID,
		Keyword:       unit.Keyword,
		Status:        domain.ArticleStatusQueued,
		LinkStatus:    domain.LinkStatusNotLinked,
	}

	workflows := &mockWorkflowRepo{workflow: workflow}
	articles := newMockArticleRepo()
	articles.racedRows = map[articleKey]*domain.Article{
		{workflow.ID, unit.ID}: winner,
	}
	trigger := &mockTrigger{}
	p := newProcessor(workflows, &mockKeywordRepo{queueable: []*domain.KeywordUnit{unit}}, articles, trigger, &captureRecorder{}, 50)

	result, err := p.Queue(context.Background(), testActor(), workflow.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ArticlesCreated)
	assert.Empty(t, result.Errors)
	// The winning caller owns the dispatch.
	assert.Empty(t, trigger.dispatched)
	assert.Equal(t, 0, articles.inserts)

	require.Len(t, result.Articles, 1)
	assert.True(t, result.Articles[0].Existing)
	assert.Equal(t, winner.ID, result.Articles[0].ArticleID)
}

func TestQueue_SnapshotsWorkflowContext(t *testing.T) {
	workflow := queuingWorkflow()
	unit := readyUnit(workflow.ID, "kubernetes rightsizing")

	workflows := &mockWorkflowRepo{workflow: workflow}
	articles := newMockArticleRepo()
	p := newProcessor(workflows, &mockKeywordRepo{queueable: []*domain.KeywordUnit{unit}}, articles, &mockTrigger{}, &captureRecorder{}, 50)

	_, err := p.Queue(context.Background(), testActor(), workflow.ID)
	require.NoError(t, err)

	stored, err := articles.GetByUnit(context.Background(), workflow.ID, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, "platform engineer", stored.ICPContext["persona"])
	assert.Equal(t, workflow.CompetitorContext, stored.CompetitorContext)
	assert.Equal(t, unit.Subtopics, stored.Subtopics)
	assert.Equal(t, domain.ArticleStatusQueued, stored.Status)
	assert.Equal(t, domain.LinkStatusNotLinked, stored.LinkStatus)
}

func TestQueue_DispatchFailureIsPerUnit(t *testing.T) {
	workflow := queuingWorkflow()
	units := []*domain.KeywordUnit{
		readyUnit(workflow.ID, "kubernetes rightsizing"),
		readyUnit(workflow.ID, "spot instance strategies"),
		readyUnit(workflow.ID, "cluster autoscaler tuning"),
	}

	workflows := &mockWorkflowRepo{workflow: workflow}
	articles := newMockArticleRepo()
	trigger := &mockTrigger{failKeywords: map[string]error{
		"spot instance strategies": errors.New("planner unavailable"),
	}}
	recorder := &captureRecorder{}
	p := newProcessor(workflows, &mockKeywordRepo{queueable: units}, articles, trigger, recorder, 50)

	result, err := p.Queue(context.Background(), testActor(), workflow.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.ArticlesCreated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Failed to trigger Planner Agent: planner unavailable")
	assert.Len(t, result.Articles, 2)

	// The failed unit's article exists but is marked planner_failed and is
	// excluded from the success list.
	failed, err := articles.GetByUnit(context.Background(), workflow.ID, units[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ArticleStatusPlannerFailed, articles.statusUpdates[failed.ID])

	// Queuing is done once every unit was attempted, failures included.
	assert.Equal(t, domain.StageArticleLinking, result.NewStatus)
	assert.Equal(t, 1, workflows.advanceCalls)
}

func TestQueue_StructuralFailures(t *testing.T) {
	t.Run("workflow not found", func(t *testing.T) {
		p := newProcessor(&mockWorkflowRepo{}, &mockKeywordRepo{}, newMockArticleRepo(), &mockTrigger{}, &captureRecorder{}, 50)

		_, err := p.Queue(context.Background(), testActor(), uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("wrong stage", func(t *testing.T) {
		workflow := queuingWorkflow()
		workflow.Status = domain.StageValidation
		recorder := &captureRecorder{}
		p := newProcessor(&mockWorkflowRepo{workflow: workflow}, &mockKeywordRepo{}, newMockArticleRepo(), &mockTrigger{}, recorder, 50)

		_, err := p.Queue(context.Background(), testActor(), workflow.ID)

		var stateErr *domain.InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, domain.StageArticleQueuing, stateErr.RequiredStage)
		assert.Empty(t, recorder.actions())
	})

	t.Run("too many ready units", func(t *testing.T) {
		workflow := queuingWorkflow()
		units := []*domain.KeywordUnit{
			readyUnit(workflow.ID, "a"),
			readyUnit(workflow.ID, "b"),
			readyUnit(workflow.ID, "c"),
		}
		articles := newMockArticleRepo()
		p := newProcessor(&mockWorkflowRepo{workflow: workflow}, &mockKeywordRepo{queueable: units}, articles, &mockTrigger{}, &captureRecorder{}, 2)

		_, err := p.Queue(context.Background(), testActor(), workflow.ID)

		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, 0, articles.inserts)
	})
}

func TestQueue_StoreErrorAbortsBatch(t *testing.T) {
	workflow := queuingWorkflow()
	unit := readyUnit(workflow.ID, "kubernetes rightsizing")

	articles := newMockArticleRepo()
	articles.createErr = errors.New("connection refused")
	workflows := &mockWorkflowRepo{workflow: workflow}
	recorder := &captureRecorder{}
	p := newProcessor(workflows, &mockKeywordRepo{queueable: []*domain.KeywordUnit{unit}}, articles, &mockTrigger{}, recorder, 50)

	_, err := p.Queue(context.Background(), testActor(), workflow.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, workflows.advanceCalls)
	assert.Equal(t, []string{domain.ActionQueuingStarted, domain.ActionQueuingFailed}, recorder.actions())
}

func TestQueue_EmptyBatchStillAdvances(t *testing.T) {
	workflow := queuingWorkflow()
	workflows := &mockWorkflowRepo{workflow: workflow}
	p := newProcessor(workflows, &mockKeywordRepo{}, newMockArticleRepo(), &mockTrigger{}, &captureRecorder{}, 50)

	result, err := p.Queue(context.Background(), testActor(), workflow.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ArticlesCreated)
	assert.Equal(t, domain.StageArticleLinking, result.NewStatus)
}
