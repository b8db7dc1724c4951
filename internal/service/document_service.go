package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-eapproval-api/internal/document"
	"github.com/noah-isme/college-eapproval-api/internal/models"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
)

type documentStore interface {
	Exists(filename string) bool
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
}

type documentRenderer interface {
	Render(layout document.Layout) ([]byte, error)
}

type downloadSigner interface {
	Generate(requestID, relPath string) (string, time.Time, error)
	Parse(token string) (requestID, relPath string, expiresAt time.Time, err error)
}

// DocumentService owns the signed-artifact lifecycle: absent until full
// approval, generated exactly once, immutable afterwards.
type DocumentService struct {
	store      documentStore
	renderer   documentRenderer
	signatures document.SignatureResolver
	signer     downloadSigner
	audit      auditLogger
	metrics    *MetricsService
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDocumentService constructs the service.
func NewDocumentService(store documentStore, renderer documentRenderer, signatures document.SignatureResolver, signer downloadSigner, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		store:      store,
		renderer:   renderer,
		signatures: signatures,
		signer:     signer,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Filename returns the artifact key for a request.
func Filename(requestID string) string {
	return fmt.Sprintf("request_%s.pdf", requestID)
}

// Generate renders and stores the signed document for a fully approved
// request. Idempotent by request identity: a stored artifact is returned
// as-is and never regenerated, so content can never diverge from the first
// generation. Concurrent first generations serialize on a per-request lock.
func (s *DocumentService) Generate(ctx context.Context, req *models.ApprovalRequest) (string, error) {
	if !req.Triple().FullyApproved() {
		return "", appErrors.ErrDocumentNotReady
	}

	filename := Filename(req.ID)

	lock := s.lockFor(req.ID)
	lock.Lock()
	defer lock.Unlock()

	if s.store.Exists(filename) {
		return filename, nil
	}

	layout := document.BuildLayout(req, s.signatures)
	data, err := s.renderer.Render(layout)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrDocumentGeneration.Code, appErrors.ErrDocumentGeneration.Status, appErrors.ErrDocumentGeneration.Message)
	}
	if _, err := s.store.Save(filename, data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrDocumentGeneration.Code, appErrors.ErrDocumentGeneration.Status, appErrors.ErrDocumentGeneration.Message)
	}

	if s.metrics != nil {
		s.metrics.RecordDocumentGenerated()
	}
	s.emitAudit(ctx, &models.AuditLog{
		Action:     models.AuditActionDocumentGenerate,
		Resource:   "document",
		ResourceID: &req.ID,
		NewValues:  []byte(fmt.Sprintf(`{"filename":%q}`, filename)),
	})

	return filename, nil
}

// Fetch returns the stored document for download. Access requires the
// caller to be the creator or staff, the request to be fully approved, and
// the artifact to exist.
func (s *DocumentService) Fetch(ctx context.Context, req *models.ApprovalRequest, actor *models.JWTClaims) ([]byte, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	if actor.UserID != req.CreatedBy && !actor.Role.IsStaff() {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "not authorized to download this document")
	}
	if req.PrincipalStatus != models.StatusApproved {
		return nil, "", appErrors.ErrDocumentNotReady
	}

	filename := Filename(req.ID)
	if !s.store.Exists(filename) {
		return nil, "", appErrors.ErrDocumentNotReady
	}
	data, err := s.store.Read(filename)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDocumentDownload,
		Resource:   "document",
		ResourceID: &req.ID,
	})

	return data, filename, nil
}

// SignedURL issues a time-limited download token for an existing artifact.
// Access is gated like Fetch: only the creator or staff may mint a link, and
// only once the request is fully approved and the artifact stored.
func (s *DocumentService) SignedURL(req *models.ApprovalRequest, actor *models.JWTClaims) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer not configured")
	}
	if actor == nil {
		return "", time.Time{}, appErrors.ErrUnauthorized
	}
	if actor.UserID != req.CreatedBy && !actor.Role.IsStaff() {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrForbidden, "not authorized to share this document")
	}
	if req.PrincipalStatus != models.StatusApproved {
		return "", time.Time{}, appErrors.ErrDocumentNotReady
	}
	filename := Filename(req.ID)
	if !s.store.Exists(filename) {
		return "", time.Time{}, appErrors.ErrDocumentNotReady
	}
	return s.signer.Generate(req.ID, filename)
}

// Redeem exchanges a signed download token for the stored document. The
// token itself is the credential: the signature proves it was minted by an
// authorized caller and the expiry bounds how long the link stays live.
func (s *DocumentService) Redeem(ctx context.Context, token string) ([]byte, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrInternal, "download signer not configured")
	}
	requestID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	if relPath != Filename(requestID) || !s.store.Exists(relPath) {
		return nil, "", appErrors.ErrDocumentNotReady
	}
	data, err := s.store.Read(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document")
	}

	s.emitAudit(ctx, &models.AuditLog{
		Action:     models.AuditActionDocumentDownload,
		Resource:   "document",
		ResourceID: &requestID,
		NewValues:  []byte(`{"via":"signed_url"}`),
	})

	return data, relPath, nil
}

func (s *DocumentService) lockFor(requestID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[requestID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[requestID] = lock
	}
	return lock
}

func (s *DocumentService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "document-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
