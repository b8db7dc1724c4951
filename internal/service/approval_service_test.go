package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	"github.com/noah-isme/college-eapproval-api/internal/repository"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
)

type requestRepoStub struct {
	requests  map[string]*models.ApprovalRequest
	updateErr error
}

func newRequestRepoStub() *requestRepoStub {
	return &requestRepoStub{requests: make(map[string]*models.ApprovalRequest)}
}

func (m *requestRepoStub) Create(ctx context.Context, request *models.ApprovalRequest) error {
	if request.ID == "" {
		request.ID = "req-" + request.Title
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	clone := *request
	m.requests[request.ID] = &clone
	return nil
}

func (m *requestRepoStub) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	if req, ok := m.requests[id]; ok {
		clone := *req
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *requestRepoStub) List(ctx context.Context, filter models.RequestFilter) ([]models.ApprovalRequest, error) {
	result := make([]models.ApprovalRequest, 0, len(m.requests))
	for _, req := range m.requests {
		if filter.CreatedBy != "" && req.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.ClassTeacherApproved && req.ClassTeacherStatus != models.StatusApproved {
			continue
		}
		if filter.HODApproved && req.HODStatus != models.StatusApproved {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(req.Title), needle) &&
				!strings.Contains(strings.ToLower(req.CreatorName), needle) {
				continue
			}
		}
		result = append(result, *req)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *requestRepoStub) UpdateStageStatus(ctx context.Context, params repository.StageUpdateParams) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	req, ok := m.requests[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if req.Triple() != params.Prior {
		return sql.ErrNoRows
	}
	req.SetTriple(params.Next)
	req.OverallStatus = params.OverallStatus
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type generatorStub struct {
	calls int
	err   error
}

func (g *generatorStub) Generate(ctx context.Context, req *models.ApprovalRequest) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return Filename(req.ID), nil
}

func claimsFor(id, username string, role models.Role) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Username: username, Role: role}
}

func newApprovalService(repo *requestRepoStub, gen *generatorStub, audit *auditStub) *ApprovalService {
	var docs documentGenerator
	if gen != nil {
		docs = gen
	}
	var logs auditLogger
	if audit != nil {
		logs = audit
	}
	return NewApprovalService(repo, docs, logs, nil, nil, nil)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, code, appErr.Code)
}

func TestApprovalServiceCreate(t *testing.T) {
	repo := newRequestRepoStub()
	audit := &auditStub{}
	svc := newApprovalService(repo, nil, audit)

	request, err := svc.Create(context.Background(), CreateRequestInput{Title: "Leave", Description: "2 days"}, claimsFor("stu-1", "student1", models.RoleStudent))
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, request.ClassTeacherStatus)
	require.Equal(t, models.StatusPending, request.HODStatus)
	require.Equal(t, models.StatusPending, request.PrincipalStatus)
	require.Equal(t, "Pending Class Teacher", request.OverallStatus)
	require.Len(t, audit.logs, 1)
}

func TestApprovalServiceCreateValidation(t *testing.T) {
	svc := newApprovalService(newRequestRepoStub(), nil, nil)

	_, err := svc.Create(context.Background(), CreateRequestInput{Title: "  ", Description: "x"}, claimsFor("stu-1", "student1", models.RoleStudent))
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Create(context.Background(), CreateRequestInput{Title: "Leave", Description: "2 days"}, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func seedRequest(t *testing.T, repo *requestRepoStub) *models.ApprovalRequest {
	t.Helper()
	request := &models.ApprovalRequest{
		ID:            "req-1",
		Title:         "Leave",
		Description:   "2 days",
		CreatedBy:     "stu-1",
		CreatorName:   "student1",
		OverallStatus: "Pending Class Teacher",
	}
	request.SetTriple(models.NewStageTriple())
	require.NoError(t, repo.Create(context.Background(), request))
	return request
}

func TestApprovalServiceDecideChainToRejection(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newApprovalService(repo, &generatorStub{}, &auditStub{})
	seedRequest(t, repo)

	result, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, result.Request.ClassTeacherStatus)
	require.Equal(t, "Pending HOD", result.Request.OverallStatus)

	result, err = svc.Decide(context.Background(), "req-1", models.ActionReject, claimsFor("h-1", "hod1", models.RoleHOD))
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, result.Request.HODStatus)
	require.Equal(t, "Rejected by HOD", result.Request.OverallStatus)

	// Principal can no longer act after the hod rejection.
	_, err = svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("p-1", "principal1", models.RolePrincipal))
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestApprovalServiceDecideFullApprovalGeneratesDocumentOnce(t *testing.T) {
	repo := newRequestRepoStub()
	gen := &generatorStub{}
	svc := newApprovalService(repo, gen, &auditStub{})
	seedRequest(t, repo)

	_, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("h-1", "hod1", models.RoleHOD))
	require.NoError(t, err)
	require.Zero(t, gen.calls)

	result, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("p-1", "principal1", models.RolePrincipal))
	require.NoError(t, err)
	require.Equal(t, "Approved", result.Request.OverallStatus)
	require.Empty(t, result.DocumentWarning)
	require.Equal(t, 1, gen.calls)
}

func TestApprovalServiceDecideDocumentFailureIsWarningNotRollback(t *testing.T) {
	repo := newRequestRepoStub()
	gen := &generatorStub{err: errors.New("disk full")}
	svc := newApprovalService(repo, gen, &auditStub{})
	seedRequest(t, repo)

	for _, actor := range []*models.JWTClaims{
		claimsFor("t-1", "teacher1", models.RoleClassTeacher),
		claimsFor("h-1", "hod1", models.RoleHOD),
	} {
		_, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, actor)
		require.NoError(t, err)
	}

	result, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("p-1", "principal1", models.RolePrincipal))
	require.NoError(t, err)
	require.NotEmpty(t, result.DocumentWarning)

	// The approval itself committed despite the generation failure.
	stored, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, stored.PrincipalStatus)
	require.Equal(t, "Approved", stored.OverallStatus)
}

func TestApprovalServiceDecideTerminalStageStaysUnchanged(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newApprovalService(repo, nil, nil)
	seedRequest(t, repo)

	_, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)

	stored, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, stored.ClassTeacherStatus)
	require.Equal(t, models.StatusPending, stored.HODStatus)
}

func TestApprovalServiceDecideStudentUnauthorized(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newApprovalService(repo, nil, nil)
	seedRequest(t, repo)

	_, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("stu-1", "student1", models.RoleStudent))
	requireCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestApprovalServiceDecideNotFound(t *testing.T) {
	svc := newApprovalService(newRequestRepoStub(), nil, nil)

	_, err := svc.Decide(context.Background(), "missing", models.ActionApprove, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestApprovalServiceDecideLostRace(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newApprovalService(repo, nil, nil)
	seedRequest(t, repo)

	// Another writer moved the triple between our read and write, so the
	// compare-and-swap matches zero rows.
	repo.updateErr = sql.ErrNoRows

	_, err := svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Contains(t, appErr.Message, "concurrently")

	// The stored request is untouched.
	stored, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, models.NewStageTriple(), stored.Triple())
}

func TestApprovalServiceGetVisibility(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newApprovalService(repo, nil, nil)
	seedRequest(t, repo)

	_, err := svc.Get(context.Background(), "req-1", claimsFor("stu-1", "student1", models.RoleStudent))
	require.NoError(t, err)

	// Non-owner student is denied.
	_, err = svc.Get(context.Background(), "req-1", claimsFor("stu-2", "student2", models.RoleStudent))
	requireCode(t, err, appErrors.ErrForbidden.Code)

	// HOD cannot see a request not yet forwarded.
	_, err = svc.Get(context.Background(), "req-1", claimsFor("h-1", "hod1", models.RoleHOD))
	requireCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Decide(context.Background(), "req-1", models.ActionApprove, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "req-1", claimsFor("h-1", "hod1", models.RoleHOD))
	require.NoError(t, err)
}

func TestApprovalServiceGetConsistencyFault(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newApprovalService(repo, nil, nil)
	request := seedRequest(t, repo)

	// Corrupt the stored triple behind the service's back.
	repo.requests[request.ID].HODStatus = models.StatusApproved

	_, err := svc.Get(context.Background(), request.ID, claimsFor("t-1", "teacher1", models.RoleClassTeacher))
	requireCode(t, err, appErrors.ErrConsistencyFault.Code)
}

func TestApprovalServiceListScopingAndKPIs(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newApprovalService(repo, nil, nil)

	pending := &models.ApprovalRequest{ID: "req-a", Title: "Leave", CreatedBy: "stu-1", CreatorName: "student1", CreatedAt: time.Now().Add(-time.Hour)}
	pending.SetTriple(models.NewStageTriple())
	forwarded := &models.ApprovalRequest{ID: "req-b", Title: "Event", CreatedBy: "stu-2", CreatorName: "student2", CreatedAt: time.Now()}
	forwarded.SetTriple(models.NewStageTriple().With(models.StageClassTeacher, models.StatusApproved))
	require.NoError(t, repo.Create(context.Background(), pending))
	require.NoError(t, repo.Create(context.Background(), forwarded))

	// hod sees only the forwarded request.
	requests, kpis, err := svc.List(context.Background(), claimsFor("h-1", "hod1", models.RoleHOD), "")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "req-b", requests[0].ID)
	require.Equal(t, models.DashboardKPIs{Total: 1, PendingPrincipal: 1}, kpis)

	// class teacher sees everything, newest first.
	requests, kpis, err = svc.List(context.Background(), claimsFor("t-1", "teacher1", models.RoleClassTeacher), "")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.Equal(t, "req-b", requests[0].ID)
	require.Equal(t, 2, kpis.Total)

	// student sees only their own.
	requests, _, err = svc.List(context.Background(), claimsFor("stu-1", "student1", models.RoleStudent), "")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "req-a", requests[0].ID)

	// search narrows after role scoping.
	requests, _, err = svc.List(context.Background(), claimsFor("t-1", "teacher1", models.RoleClassTeacher), "student1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "req-a", requests[0].ID)
}
