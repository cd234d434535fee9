package certificate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gascert/internal/audit"
	"gascert/internal/metrology"
	"gascert/internal/platform/metrics"
	dErrors "gascert/pkg/domain-errors"
	"gascert/pkg/platform/sentinel"
)

// bulkApproveConcurrency bounds the fan-out of bulk approvals so a large
// batch cannot exhaust store connections.
const bulkApproveConcurrency = 4

// RowInput is one calibration row as submitted. Derived values may arrive
// pre-computed; absent ones are filled at assembly time, never overwritten.
type RowInput struct {
	GasName             string            `json:"gas_name"`
	Unit                string            `json:"unit"`
	StandardValue       float64           `json:"standard_value"`
	M1                  float64           `json:"m1"`
	M2                  float64           `json:"m2"`
	M3                  float64           `json:"m3"`
	Resolution          float64           `json:"resolution"`
	UncertaintyStandard float64           `json:"uncertainty_standard"`
	Derived             metrology.Derived `json:"derived"`
}

// CreateInput is the payload for creating a certificate.
type CreateInput struct {
	CertificateNo   string       `json:"certificate_no"`
	FormatType      FormatType   `json:"format_type"`
	Watermark       bool         `json:"watermark"`
	IssueDate       time.Time    `json:"issue_date"`
	CalibrationDate time.Time    `json:"calibration_date"`
	Place           string       `json:"place"`
	Procedure       string       `json:"procedure"`
	Remarks         string       `json:"remarks"`
	Adjustment      bool         `json:"adjustment"`
	EquipmentID     uuid.UUID    `json:"equipment_id"`
	ProbeID         uuid.UUID    `json:"probe_id"`
	CustomerID      uuid.UUID    `json:"customer_id"`
	ToolID          *uuid.UUID   `json:"tool_id"`
	Ambient         AmbientInput `json:"ambient"`
	CalibrationRows []RowInput   `json:"calibration_rows"`
	AdjustedRows    []RowInput   `json:"adjusted_rows"`
}

// UpdateInput patches scalar fields that are present and replaces row
// collections wholesale when supplied.
type UpdateInput struct {
	CertificateNo   *string       `json:"certificate_no"`
	FormatType      *FormatType   `json:"format_type"`
	Watermark       *bool         `json:"watermark"`
	IssueDate       *time.Time    `json:"issue_date"`
	CalibrationDate *time.Time    `json:"calibration_date"`
	Place           *string       `json:"place"`
	Procedure       *string       `json:"procedure"`
	Remarks         *string       `json:"remarks"`
	Adjustment      *bool         `json:"adjustment"`
	EquipmentID     *uuid.UUID    `json:"equipment_id"`
	ProbeID         *uuid.UUID    `json:"probe_id"`
	CustomerID      *uuid.UUID    `json:"customer_id"`
	ToolID          *uuid.UUID    `json:"tool_id"`
	Ambient         *AmbientInput `json:"ambient"`
	CalibrationRows *[]RowInput   `json:"calibration_rows"`
	AdjustedRows    *[]RowInput   `json:"adjusted_rows"`
}

// BulkApproveResult summarizes a best-effort batch approval.
type BulkApproveResult struct {
	ApprovedCount int            `json:"approved_count"`
	SkippedCount  int            `json:"skipped_count"`
	Approved      []*Certificate `json:"approved"`
	Errors        []string       `json:"errors"`
}

// AuditPublisher decouples the service from the audit transport.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the certificate lifecycle manager. It owns the pending→approved
// state machine, consults the authorization table for every operation, and
// stamps actor signatures at lifecycle events.
type Service struct {
	store   Store
	users   UserDirectory
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// NewService constructs the lifecycle manager.
func NewService(store Store, users UserDirectory, opts ...Option) *Service {
	s := &Service{
		store:  store,
		users:  users,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input, generates a certificate number when absent,
// merges ambient conditions over defaults, stamps the creator's current
// signature and name, and persists certificate plus rows atomically.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Certificate, error) {
	if err := Authorize(actor, ActionCreate, nil); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	creator, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "creating user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve creator")
	}

	now := time.Now()
	certificateNo := in.CertificateNo
	if certificateNo == "" {
		certificateNo = NewCertificateNo(now)
	}
	formatType := in.FormatType
	if formatType == "" {
		formatType = FormatDraft
	}

	cert := &Certificate{
		ID:               uuid.New(),
		CertificateNo:    certificateNo,
		FormatType:       formatType,
		Status:           StatusPending,
		Watermark:        in.Watermark,
		IssueDate:        in.IssueDate,
		CalibrationDate:  in.CalibrationDate,
		Place:            in.Place,
		Procedure:        in.Procedure,
		Remarks:          in.Remarks,
		Adjustment:       in.Adjustment,
		EquipmentID:      in.EquipmentID,
		ProbeID:          in.ProbeID,
		CustomerID:       in.CustomerID,
		ToolID:           in.ToolID,
		CreatedBy:        actor.ID,
		CreatorName:      creator.FullName,
		CreatorSignature: creator.SignatureFile,
		Ambient:          in.Ambient.Merge(DefaultAmbient()),
		CalibrationRows:  rowsFromInput(in.CalibrationRows),
		AdjustedRows:     rowsFromInput(in.AdjustedRows),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.Create(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "certificate number %s already exists", certificateNo)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to create certificate")
	}

	s.logger.InfoContext(ctx, "certificate created",
		"certificate_id", cert.ID,
		"certificate_no", cert.CertificateNo,
		"created_by", actor.ID,
	)
	if s.metrics != nil {
		s.metrics.CertificatesCreated.Inc()
	}
	s.emitAudit(ctx, audit.EventCertificateCreated, cert, actor)
	return cert, nil
}

// Get loads a certificate, enforcing read visibility: admins see everything,
// technicians their own, other roles only approved certificates.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Certificate, error) {
	cert, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionRead, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// List returns the certificates visible to the actor.
func (s *Service) List(ctx context.Context, actor Actor) ([]*Certificate, error) {
	var filter ListFilter
	switch actor.Role {
	case RoleAdmin:
	case RoleTechnician:
		createdBy := actor.ID
		filter.CreatedBy = &createdBy
	default:
		approved := StatusApproved
		filter.Status = &approved
	}
	certs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list certificates")
	}
	return certs, nil
}

// Update patches scalar fields and, when row collections are supplied,
// replaces them wholesale in the same transaction.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateInput) (*Certificate, error) {
	cert, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionUpdate, cert); err != nil {
		return nil, err
	}

	applyScalars(cert, in)
	replaceRows := in.CalibrationRows != nil
	replaceAdjusted := in.AdjustedRows != nil
	if replaceRows {
		cert.CalibrationRows = rowsFromInput(*in.CalibrationRows)
	}
	if replaceAdjusted {
		cert.AdjustedRows = rowsFromInput(*in.AdjustedRows)
	}
	cert.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, cert, replaceRows, replaceAdjusted); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "certificate number already exists")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to update certificate")
		}
	}

	s.logger.InfoContext(ctx, "certificate updated",
		"certificate_id", cert.ID,
		"replaced_rows", replaceRows,
		"replaced_adjusted_rows", replaceAdjusted,
	)
	s.emitAudit(ctx, audit.EventCertificateUpdated, cert, actor)
	return s.load(ctx, id)
}

// Delete removes a certificate and its rows.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	cert, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(actor, ActionDelete, cert); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to delete certificate")
	}
	s.emitAudit(ctx, audit.EventCertificateDeleted, cert, actor)
	return nil
}

// Approve transitions pending→approved. Admin only. The status check and the
// write are one atomic compare-and-set in the store; approval records the
// approver identity, copies their current signature and display name, and
// always promotes the certificate to official formatting.
func (s *Service) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*Certificate, error) {
	if err := Authorize(actor, ActionApprove, nil); err != nil {
		return nil, err
	}

	approver, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approving user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve approver")
	}

	cert, err := s.store.Approve(ctx, id, ApprovalStamp{
		ApprovedBy: actor.ID,
		Name:       approver.FullName,
		Signature:  approver.SignatureFile,
		At:         time.Now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeInvalidState, "certificate is not pending")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to approve certificate")
		}
	}

	s.logger.InfoContext(ctx, "certificate approved",
		"certificate_id", cert.ID,
		"certificate_no", cert.CertificateNo,
		"approved_by", actor.ID,
	)
	if s.metrics != nil {
		s.metrics.CertificatesApproved.Inc()
	}
	s.emitAudit(ctx, audit.EventCertificateApproved, cert, actor)
	return cert, nil
}

// SetPending resets a certificate to pending before (re-)approval.
func (s *Service) SetPending(ctx context.Context, actor Actor, id uuid.UUID) (*Certificate, error) {
	cert, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionSetPending, cert); err != nil {
		return nil, err
	}
	updated, err := s.store.SetPending(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to reset certificate")
	}
	return updated, nil
}

// BulkApprove attempts a single approval per id. Items that are missing or
// not pending are counted as skipped with a reason; the batch itself never
// aborts. All-or-nothing per item, best-effort over the batch.
func (s *Service) BulkApprove(ctx context.Context, actor Actor, ids []uuid.UUID) (*BulkApproveResult, error) {
	if err := Authorize(actor, ActionBulkApprove, nil); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "ids must not be empty")
	}

	var (
		mu     sync.Mutex
		result BulkApproveResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkApproveConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if id == uuid.Nil {
				mu.Lock()
				result.SkippedCount++
				result.Errors = append(result.Errors, "invalid certificate id")
				mu.Unlock()
				return nil
			}
			cert, err := s.Approve(gctx, actor, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.SkippedCount++
				result.Errors = append(result.Errors, "certificate "+id.String()+": "+err.Error())
				if s.metrics != nil {
					s.metrics.BulkApproveSkipped.Inc()
				}
				return nil
			}
			result.ApprovedCount++
			result.Approved = append(result.Approved, cert)
			return nil
		})
	}
	_ = g.Wait() // item errors are folded into the result, never returned

	s.logger.InfoContext(ctx, "bulk approval finished",
		"requested", len(ids),
		"approved", result.ApprovedCount,
		"skipped", result.SkippedCount,
	)
	return &result, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	cert, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load certificate")
	}
	return cert, nil
}

func (s *Service) emitAudit(ctx context.Context, eventType audit.EventType, cert *Certificate, actor Actor) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Type:          eventType,
		CertificateID: cert.ID,
		CertificateNo: cert.CertificateNo,
		ActorID:       actor.ID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emission failed", "type", eventType, "error", err)
	}
}

func validateCreate(in CreateInput) error {
	switch {
	case in.EquipmentID == uuid.Nil:
		return dErrors.New(dErrors.CodeValidation, "equipment_id is required")
	case in.ProbeID == uuid.Nil:
		return dErrors.New(dErrors.CodeValidation, "probe_id is required")
	case in.CustomerID == uuid.Nil:
		return dErrors.New(dErrors.CodeValidation, "customer_id is required")
	}
	for i, row := range in.CalibrationRows {
		if row.GasName == "" {
			return dErrors.Newf(dErrors.CodeValidation, "calibration row %d: gas_name is required", i)
		}
	}
	for i, row := range in.AdjustedRows {
		if row.GasName == "" {
			return dErrors.Newf(dErrors.CodeValidation, "adjusted row %d: gas_name is required", i)
		}
	}
	return nil
}

func rowsFromInput(in []RowInput) []CalibrationRow {
	out := make([]CalibrationRow, len(in))
	for i, row := range in {
		out[i] = CalibrationRow{
			GasName:             row.GasName,
			Unit:                row.Unit,
			StandardValue:       row.StandardValue,
			M1:                  row.M1,
			M2:                  row.M2,
			M3:                  row.M3,
			Resolution:          row.Resolution,
			UncertaintyStandard: row.UncertaintyStandard,
			Derived:             row.Derived,
		}
	}
	return out
}

func applyScalars(cert *Certificate, in UpdateInput) {
	if in.CertificateNo != nil {
		cert.CertificateNo = *in.CertificateNo
	}
	if in.FormatType != nil {
		cert.FormatType = *in.FormatType
	}
	if in.Watermark != nil {
		cert.Watermark = *in.Watermark
	}
	if in.IssueDate != nil {
		cert.IssueDate = *in.IssueDate
	}
	if in.CalibrationDate != nil {
		cert.CalibrationDate = *in.CalibrationDate
	}
	if in.Place != nil {
		cert.Place = *in.Place
	}
	if in.Procedure != nil {
		cert.Procedure = *in.Procedure
	}
	if in.Remarks != nil {
		cert.Remarks = *in.Remarks
	}
	if in.Adjustment != nil {
		cert.Adjustment = *in.Adjustment
	}
	if in.EquipmentID != nil {
		cert.EquipmentID = *in.EquipmentID
	}
	if in.ProbeID != nil {
		cert.ProbeID = *in.ProbeID
	}
	if in.CustomerID != nil {
		cert.CustomerID = *in.CustomerID
	}
	if in.ToolID != nil {
		cert.ToolID = in.ToolID
	}
	if in.Ambient != nil {
		cert.Ambient = in.Ambient.Merge(cert.Ambient)
	}
}
