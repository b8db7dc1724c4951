package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	"github.com/noah-isme/college-eapproval-api/internal/repository"
	"github.com/noah-isme/college-eapproval-api/internal/workflow"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.ApprovalRequest, error)
	UpdateStageStatus(ctx context.Context, params repository.StageUpdateParams) error
}

type documentGenerator interface {
	Generate(ctx context.Context, req *models.ApprovalRequest) (string, error)
}

// CreateRequestInput is the payload for submitting a new request.
type CreateRequestInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// DecisionResult bundles the updated request with an optional non-fatal
// warning. The warning is only set when the approval committed but the
// signed document could not be generated; the approval itself never rolls
// back for a document failure.
type DecisionResult struct {
	Request         *models.ApprovalRequest
	DocumentWarning string
}

const dashboardCachePrefix = "dashboard:"

// ApprovalService orchestrates the request lifecycle: creation, workflow
// decisions, role-scoped listing and the KPI summary. All transition rules
// live in the workflow package; this service wires them to storage, the
// document generator, the audit trail and the cache.
type ApprovalService struct {
	repo      requestStore
	documents documentGenerator
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(repo requestStore, documents documentGenerator, audit auditLogger, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		repo:      repo,
		documents: documents,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create submits a new approval request. Only students may create; title
// and description are required non-empty and immutable afterwards.
func (s *ApprovalService) Create(ctx context.Context, input CreateRequestInput, actor *models.JWTClaims) (*models.ApprovalRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can create requests")
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and description are required")
	}

	triple := models.NewStageTriple()
	overall, err := workflow.OverallStatus(triple)
	if err != nil {
		return nil, err
	}

	request := &models.ApprovalRequest{
		Title:         input.Title,
		Description:   input.Description,
		CreatedBy:     actor.UserID,
		CreatorName:   actor.Username,
		OverallStatus: overall,
	}
	request.SetTriple(triple)

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestCreate,
		Resource:   "approval_request",
		ResourceID: &request.ID,
		NewValues:  []byte(fmt.Sprintf(`{"title":%q}`, request.Title)),
	})
	s.invalidateDashboards(ctx)

	return request, nil
}

// Decide applies an approve/reject action by the caller's role. The stage
// is always inferred from the role; the workflow state machine validates
// ordering and terminal-stage immutability, and persistence is a
// compare-and-swap on the prior stage triple so racing decisions cannot
// double-apply.
func (s *ApprovalService) Decide(ctx context.Context, id string, action models.Action, actor *models.JWTClaims) (*DecisionResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	decision, err := workflow.Apply(actor.Role, request.Triple(), action)
	if err != nil {
		if isConsistencyFault(err) {
			s.logger.Error("consistency fault detected",
				zap.String("request_id", request.ID),
				zap.Error(err))
		}
		return nil, err
	}

	err = s.repo.UpdateStageStatus(ctx, repository.StageUpdateParams{
		ID:            request.ID,
		Prior:         decision.Prior,
		Next:          decision.Next,
		OverallStatus: decision.OverallStatus,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent decision moved the triple first.
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request was updated concurrently, decision not applied")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist decision")
	}

	request.SetTriple(decision.Next)
	request.OverallStatus = decision.OverallStatus

	if s.metrics != nil {
		s.metrics.RecordDecision(string(decision.Stage), string(decision.Action))
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestDecision,
		Resource:   "approval_request",
		ResourceID: &request.ID,
		NewValues:  []byte(fmt.Sprintf(`{"stage":%q,"action":%q,"overall_status":%q}`, decision.Stage, decision.Action, decision.OverallStatus)),
	})
	s.invalidateDashboards(ctx)

	result := &DecisionResult{Request: request}
	if decision.GenerateDocument && s.documents != nil {
		if _, genErr := s.documents.Generate(ctx, request); genErr != nil {
			// The approval stands; the document failure is surfaced as a
			// warning, never a rollback.
			s.logger.Error("document generation failed after approval",
				zap.String("request_id", request.ID),
				zap.Error(genErr))
			result.DocumentWarning = appErrors.ErrDocumentGeneration.Message
		}
	}

	return result, nil
}

// Get returns a request enforcing the visibility rules: students see their
// own, class teachers see everything, hod and principal see requests whose
// prerequisite stage is Approved.
func (s *ApprovalService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApprovalRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(request, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to view this request")
	}
	return request, nil
}

// List returns the role-scoped visible set, newest first, with the KPI
// summary computed over it. The optional search narrows by case-insensitive
// substring match on title or creator name after role scoping.
func (s *ApprovalService) List(ctx context.Context, actor *models.JWTClaims, search string) ([]models.ApprovalRequest, models.DashboardKPIs, error) {
	if actor == nil {
		return nil, models.DashboardKPIs{}, appErrors.ErrUnauthorized
	}

	type dashboardPayload struct {
		Requests []models.ApprovalRequest `json:"requests"`
		KPIs     models.DashboardKPIs     `json:"kpis"`
	}

	cacheKey := fmt.Sprintf("%s%s:%s:%s", dashboardCachePrefix, actor.Role, actor.UserID, strings.ToLower(strings.TrimSpace(search)))
	if s.cache.Enabled() {
		var cached dashboardPayload
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached.Requests, cached.KPIs, nil
		}
	}

	filter := models.RequestFilter{Search: strings.TrimSpace(search)}
	switch actor.Role {
	case models.RoleStudent:
		filter.CreatedBy = actor.UserID
	case models.RoleClassTeacher:
		// first-stage gatekeeper sees everything
	case models.RoleHOD:
		filter.ClassTeacherApproved = true
	case models.RolePrincipal:
		filter.HODApproved = true
	default:
		return nil, models.DashboardKPIs{}, appErrors.ErrForbidden
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.DashboardKPIs{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	kpis := models.DashboardKPIs{Total: len(requests)}
	for i := range requests {
		switch requests[i].PrincipalStatus {
		case models.StatusPending:
			kpis.PendingPrincipal++
		case models.StatusApproved:
			kpis.Approved++
		}
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, dashboardPayload{Requests: requests, KPIs: kpis}, 0)
	}

	return requests, kpis, nil
}

func (s *ApprovalService) load(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !workflow.Reachable(request.Triple()) {
		s.logger.Error("stored request has unreachable stage-status triple",
			zap.String("request_id", request.ID),
			zap.String("class_teacher_status", string(request.ClassTeacherStatus)),
			zap.String("hod_status", string(request.HODStatus)),
			zap.String("principal_status", string(request.PrincipalStatus)))
		return nil, appErrors.ErrConsistencyFault
	}
	return request, nil
}

func visibleTo(request *models.ApprovalRequest, actor *models.JWTClaims) bool {
	switch actor.Role {
	case models.RoleStudent:
		return request.CreatedBy == actor.UserID
	case models.RoleClassTeacher:
		return true
	case models.RoleHOD:
		return request.ClassTeacherStatus == models.StatusApproved
	case models.RolePrincipal:
		return request.HODStatus == models.StatusApproved
	}
	return false
}

func isConsistencyFault(err error) bool {
	var appErr *appErrors.Error
	return errors.As(err, &appErr) && appErr.Code == appErrors.ErrConsistencyFault.Code
}

func (s *ApprovalService) invalidateDashboards(ctx context.Context) {
	if s.cache.Enabled() {
		s.cache.Invalidate(ctx, dashboardCachePrefix+"*")
	}
}

func (s *ApprovalService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "approval-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
