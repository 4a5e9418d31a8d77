package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// Helper to create a valid workflow for testing.
func newTestWorkflow() *domain.Workflow {
	now := time.Now().UTC()
	return &domain.Workflow{
		ID:        uuid.New(),
		OrgID:     "org-123",
		CreatedBy: "user-789",
		Title:     "Q3 content campaign",
		Status:    domain.StageSeedKeywords,
		ICPContext: map[string]interface{}{
			"persona": "platform engineer",
		},
		CompetitorContext: map[string]interface{}{
			"competitors": []interface{}{"acme.io"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// workflowColumns matches the select column order of the workflow queries.
var workflowColumns = []string{
	"id", "org_id", "created_by", "title", "status",
	"icp_context", "competitor_context",
	"created_at", "updated_at",
}

// createWorkflowRows builds mock rows for a single workflow.
func createWorkflowRows(workflow *domain.Workflow) *pgxmock.Rows {
	icpJSON, _ := json.Marshal(workflow.ICPContext)
	competitorJSON, _ := json.Marshal(workflow.CompetitorContext)

	return pgxmock.NewRows(workflowColumns).AddRow(
		workflow.ID, workflow.OrgID, workflow.CreatedBy, workflow.Title, workflow.Status,
		icpJSON, competitorJSON,
		workflow.CreatedAt, workflow.UpdatedAt,
	)
}

func TestIsValidStageTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     domain.WorkflowStage
		to       domain.WorkflowStage
		expected bool
	}{
		{
			name:     "single forward step is valid",
			from:     domain.StageSeedKeywords,
			to:       domain.StageLongtailExpansion,
			expected: true,
		},
		{
			name:     "subtopic approval to article queuing is valid",
			from:     domain.StageSubtopicApproval,
			to:       domain.StageArticleQueuing,
			expected: true,
		},
		{
			name:     "article linking to completed is valid",
			from:     domain.StageArticleLinking,
			to:       domain.StageCompleted,
			expected: true,
		},
		{
			name:     "skipping a stage forward is invalid",
			from:     domain.StageSeedKeywords,
			to:       domain.StageFiltering,
			expected: false,
		},
		{
			name:     "reset to any earlier stage is valid",
			from:     domain.StageValidation,
			to:       domain.StageSeedKeywords,
			expected: true,
		},
		{
			name:     "reset to the immediately preceding stage is valid",
			from:     domain.StageSubtopicApproval,
			to:       domain.StageValidation,
			expected: true,
		},
		{
			name:     "self transition is invalid",
			from:     domain.StageClustering,
			to:       domain.StageClustering,
			expected: false,
		},
		{
			name:     "completed cannot transition to anything",
			from:     domain.StageCompleted,
			to:       domain.StageICPDefinition,
			expected: false,
		},
		{
			name:     "completed to article linking is invalid",
			from:     domain.StageCompleted,
			to:       domain.StageArticleLinking,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isValidStageTransition(tt.from, tt.to)
			assert.Equal(t, tt.expected, result,
				"isValidStageTransition(%s, %s) = %v, expected %v",
				tt.from, tt.to, result, tt.expected)
		})
	}
}

func TestNewPgWorkflowRepository(t *testing.T) {
	t.Run("creates repository with nil db", func(t *testing.T) {
		repo := NewPgWorkflowRepository(nil)
		assert.NotNil(t, repo)
		assert.Nil(t, repo.db)
	})

	t.Run("creates repository with mock db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestPgWorkflowRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates workflow successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		mock.ExpectExec("INSERT INTO intent_workflows").
			WithArgs(
				workflow.ID, workflow.OrgID, workflow.CreatedBy, workflow.Title, workflow.Status,
				pgxmock.AnyArg(), pgxmock.AnyArg(),
				workflow.CreatedAt, workflow.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Create(ctx, workflow)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for nil workflow", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		err = repo.Create(ctx, nil)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "workflow", validationErr.Field)
	})

	t.Run("returns validation error for missing ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()
		workflow.ID = uuid.Nil

		err = repo.Create(ctx, workflow)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "id", validationErr.Field)
	})

	t.Run("returns validation error for missing org_id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()
		workflow.OrgID = ""

		err = repo.Create(ctx, workflow)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "org_id", validationErr.Field)
	})

	t.Run("returns validation error for unknown stage", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()
		workflow.Status = "no_such_stage"

		err = repo.Create(ctx, workflow)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "status", validationErr.Field)
	})

	t.Run("returns already exists error on duplicate", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		// Simulate unique constraint violation
		pgErr := &pgconn.PgError{Code: "23505"}
		mock.ExpectExec("INSERT INTO intent_workflows").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgErr)

		err = repo.Create(ctx, workflow)

		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgWorkflowRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns workflow when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2").
			WithArgs(workflow.ID, workflow.OrgID).
			WillReturnRows(createWorkflowRows(workflow))

		result, err := repo.Get(ctx, workflow.OrgID, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.ID, result.ID)
		assert.Equal(t, workflow.OrgID, result.OrgID)
		assert.Equal(t, workflow.Status, result.Status)
		assert.Equal(t, "platform engineer", result.ICPContext["persona"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2").
			WithArgs(id, "org-123").
			WillReturnRows(pgxmock.NewRows(workflowColumns))

		result, err := repo.Get(ctx, "org-123", id)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong organization is reported as not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2").
			WithArgs(workflow.ID, "other-org").
			WillReturnRows(pgxmock.NewRows(workflowColumns))

		result, err := repo.Get(ctx, "other-org", workflow.ID)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgWorkflowRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates workflow successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(workflow.ID, workflow.OrgID).
			WillReturnRows(createWorkflowRows(workflow))
		mock.ExpectExec("UPDATE intent_workflows SET").
			WithArgs(
				"renamed campaign", workflow.Status,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				workflow.ID, workflow.OrgID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.Update(ctx, workflow.OrgID, workflow.ID, func(w *domain.Workflow) error {
			w.Title = "renamed campaign"
			return nil
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when workflow does not exist", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(id, "org-123").
			WillReturnRows(pgxmock.NewRows(workflowColumns))
		mock.ExpectRollback()

		err = repo.Update(ctx, "org-123", id, func(w *domain.Workflow) error {
			return nil
		})

		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error when update function fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(workflow.ID, workflow.OrgID).
			WillReturnRows(createWorkflowRows(workflow))
		mock.ExpectRollback()

		updateErr := errors.New("update function error")
		err = repo.Update(ctx, workflow.OrgID, workflow.ID, func(w *domain.Workflow) error {
			return updateErr
		})

		assert.Equal(t, updateErr, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error when query fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(id, "org-123").
			WillReturnError(errors.New("database error"))
		mock.ExpectRollback()

		err = repo.Update(ctx, "org-123", id, func(w *domain.Workflow) error {
			return nil
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query workflow for update")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgWorkflowRepository_AdvanceStage(t *testing.T) {
	ctx := context.Background()

	t.Run("advances one stage forward", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()
		workflow.Status = domain.StageSubtopicApproval

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(workflow.ID, workflow.OrgID).
			WillReturnRows(createWorkflowRows(workflow))
		mock.ExpectExec("UPDATE intent_workflows SET").
			WithArgs(
				workflow.Title, domain.StageArticleQueuing,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				workflow.ID, workflow.OrgID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.AdvanceStage(ctx, workflow.OrgID, workflow.ID,
			domain.StageSubtopicApproval, domain.StageArticleQueuing)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resets to an earlier stage", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()
		workflow.Status = domain.StageValidation

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(workflow.ID, workflow.OrgID).
			WillReturnRows(createWorkflowRows(workflow))
		mock.ExpectExec("UPDATE intent_workflows SET").
			WithArgs(
				workflow.Title, domain.StageSeedKeywords,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				workflow.ID, workflow.OrgID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.AdvanceStage(ctx, workflow.OrgID, workflow.ID,
			domain.StageValidation, domain.StageSeedKeywords)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns invalid state when workflow is at a different stage", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()
		workflow.Status = domain.StageClustering

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(workflow.ID, workflow.OrgID).
			WillReturnRows(createWorkflowRows(workflow))
		mock.ExpectRollback()

		err = repo.AdvanceStage(ctx, workflow.OrgID, workflow.ID,
			domain.StageSubtopicApproval, domain.StageArticleQueuing)

		assert.True(t, errors.Is(err, domain.ErrInvalidState))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects skipping stages forward", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE id = \\$1 AND org_id = \\$2 FOR UPDATE").
			WithArgs(workflow.ID, workflow.OrgID).
			WillReturnRows(createWorkflowRows(workflow))
		mock.ExpectRollback()

		err = repo.AdvanceStage(ctx, workflow.OrgID, workflow.ID,
			domain.StageSeedKeywords, domain.StageClustering)

		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown stage tokens", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)

		err = repo.AdvanceStage(ctx, "org-123", uuid.New(), "no_such_stage", domain.StageClustering)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestPgWorkflowRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("lists workflows with count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		workflow := newTestWorkflow()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM intent_workflows").
			WithArgs("org-123").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE org_id = \\$1").
			WithArgs("org-123", 100, 0).
			WillReturnRows(createWorkflowRows(workflow))

		results, total, err := repo.List(ctx, WorkflowFilter{OrgID: "org-123"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, results, 1)
		assert.Equal(t, workflow.ID, results[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters by status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM intent_workflows").
			WithArgs("org-123", domain.StageCompleted).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		mock.ExpectQuery("SELECT .* FROM intent_workflows WHERE org_id = \\$1 AND status IN").
			WithArgs("org-123", domain.StageCompleted, 100, 0).
			WillReturnRows(pgxmock.NewRows(workflowColumns))

		results, total, err := repo.List(ctx, WorkflowFilter{
			OrgID:  "org-123",
			Status: []domain.WorkflowStage{domain.StageCompleted},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, results)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires org_id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)

		_, _, err = repo.List(ctx, WorkflowFilter{})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}
