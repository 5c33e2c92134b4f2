package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/caridad-cloud/allocation-service/internal/allocation"
	"github.com/caridad-cloud/allocation-service/internal/domain"
	"github.com/caridad-cloud/allocation-service/internal/events"
	"github.com/caridad-cloud/allocation-service/internal/manifest"
	"github.com/caridad-cloud/allocation-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound     = errors.New("allocation session not found")
	ErrSnapshotUnavailable = errors.New("donation snapshot unavailable")
	ErrNoAssignments       = errors.New("no assignments submitted")
)

// DonationAPI is the slice of the donation-records client the workflow uses.
type DonationAPI interface {
	FetchDonationRecords(ctx context.Context) ([]domain.DonationRecord, error)
	FetchWarehouses(ctx context.Context) ([]domain.Warehouse, error)
	CreatePackage(ctx context.Context, cmd domain.PackageCommand) error
}

// SessionStore persists sessions and their submission outcomes.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.AllocationSession) error
	GetSession(ctx context.Context, sessionID string) (*domain.AllocationSession, error)
	SaveSubmission(ctx context.Context, sessionID string, outcomes map[string]domain.CommandOutcome, assignments []domain.CellAssignment) error
	UpdateOutcomeStatus(ctx context.Context, sessionID string, warehouseID int, status string) error
}

// EventPublisher publishes allocation lifecycle events to the bus.
type EventPublisher interface {
	PublishPackageCreated(ctx context.Context, event events.PackageCreatedEvent) error
	PublishAssemblyStarted(ctx context.Context, event events.AssemblyStartedEvent) error
}

// AssemblyNotifier is the legacy best-effort downstream ping.
type AssemblyNotifier interface {
	AssemblyStarted(ctx context.Context, ci string)
}

// AllocationService drives the allocation workflow: open a session against a
// fresh stock snapshot, reconcile the operator's assignments, submit one
// package command per warehouse and keep the audit trail.
type AllocationService struct {
	api        DonationAPI
	sessions   SessionStore
	aggregator *allocation.Aggregator
	reconciler *allocation.Reconciler
	publisher  EventPublisher
	notifier   AssemblyNotifier
	logger     *zap.Logger
}

func NewAllocationService(
	api DonationAPI,
	sessions SessionStore,
	publisher EventPublisher,
	notifier AssemblyNotifier,
	logger *zap.Logger,
) *AllocationService {
	return &AllocationService{
		api:        api,
		sessions:   sessions,
		aggregator: allocation.NewAggregator(logger),
		reconciler: allocation.NewReconciler(logger),
		publisher:  publisher,
		notifier:   notifier,
		logger:     logger,
	}
}

// OpenAllocation parses the request's demand manifest, takes a fresh snapshot
// of donation records and warehouses, and stages the allocation matrix. The
// snapshot is persisted with the session so submission reconciles against
// exactly what the operator was shown. Stock may still change server-side
// before submission; the donation-records service is the authority at debit
// time and rejects over-debits itself.
func (s *AllocationService) OpenAllocation(ctx context.Context, req domain.OpenAllocationRequest) (*domain.AllocationSession, *domain.AllocationMatrix, error) {
	demand := manifest.Parse(req.Manifest, s.logger)

	records, err := s.api.FetchDonationRecords(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch donation records",
			zap.Int("request_id", req.RequestID),
			zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}

	warehouses, err := s.api.FetchWarehouses(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch warehouses",
			zap.Int("request_id", req.RequestID),
			zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}

	matrix := s.aggregator.BuildMatrix(demand, records, warehouses)

	session := &domain.AllocationSession{
		SessionID:         uuid.NewString(),
		RequestID:         req.RequestID,
		OperatorCI:        req.OperatorCI,
		OperatorWarehouse: req.WarehouseID,
		Demand:            demand,
		Records:           records,
		Warehouses:        warehouses,
		Outcomes:          map[string]domain.CommandOutcome{},
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, nil, err
	}

	s.logger.Info("Allocation session opened",
		zap.String("session_id", session.SessionID),
		zap.Int("request_id", req.RequestID),
		zap.Int("demand_items", len(demand)),
		zap.Int("records", len(records)))

	return session, matrix, nil
}

// SubmitAllocation validates the operator's assignments, apportions them into
// per-warehouse package commands and submits each command independently.
//
// Validation failures return an allocation.ValidationErrors value and cause no
// network mutation. Submission failures do not roll back sibling commands that
// already succeeded; the report says exactly which warehouses need a retry.
//
// A resubmission after a partial failure is retry-safe: warehouses whose
// persisted outcome is already created (or delivered) are never re-submitted.
// Their share of the demand is restored from the assignments recorded on the
// previous run, so a retry may carry either the full assignment set or just
// the failed warehouses' cells and still satisfy the exact-sum check.
func (s *AllocationService) SubmitAllocation(ctx context.Context, sessionID string, assignments []domain.CellAssignment) (*domain.SubmissionReport, error) {
	if len(assignments) == 0 {
		return nil, ErrNoAssignments
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	packaged := packagedWarehouses(session)
	matrix := s.aggregator.BuildMatrix(session.Demand, session.Records, session.Warehouses)

	// Already-packaged warehouses keep the assignments that built their
	// packages; operator input for them is ignored on a retry.
	for _, a := range session.Assignments {
		if _, done := packaged[a.WarehouseID]; !done {
			continue
		}
		if cell := matrix.Cell(a.ItemName, a.WarehouseID); cell != nil {
			cell.AssignedQuantity = a.Quantity
		}
	}

	var verrs allocation.ValidationErrors
	for _, a := range assignments {
		if _, done := packaged[a.WarehouseID]; done {
			continue
		}
		cell := matrix.Cell(a.ItemName, a.WarehouseID)
		if cell == nil {
			verrs = append(verrs, fmt.Sprintf("No stock of %s in warehouse %d", a.ItemName, a.WarehouseID))
			continue
		}
		cell.AssignedQuantity = a.Quantity
	}
	verrs = append(verrs, s.reconciler.Validate(matrix)...)
	if len(verrs) > 0 {
		return nil, verrs
	}

	op := domain.OperatorContext{CI: session.OperatorCI, WarehouseID: session.OperatorWarehouse}
	commands, cellErrs := s.reconciler.BuildCommands(matrix, session.RequestID, op)

	report := &domain.SubmissionReport{SessionID: sessionID}
	for _, cerr := range cellErrs {
		report.InternalErrors = append(report.InternalErrors, cerr.Error())
	}

	// Carry the session's history so retried runs keep prior outcomes.
	outcomes := make(map[string]domain.CommandOutcome, len(commands)+len(session.Outcomes))
	for key, outcome := range session.Outcomes {
		outcomes[key] = outcome
	}

	created := 0
	for _, cmd := range commands {
		if prior, done := packaged[cmd.WarehouseID]; done {
			s.logger.Info("Package already created for warehouse, skipping",
				zap.String("session_id", sessionID),
				zap.Int("warehouse_id", cmd.WarehouseID),
				zap.String("status", prior.Status))
			report.Outcomes = append(report.Outcomes, prior)
			report.Succeeded = append(report.Succeeded, cmd.WarehouseID)
			continue
		}

		outcome := domain.CommandOutcome{
			WarehouseID: cmd.WarehouseID,
			Quantity:    cmd.TotalQuantity(),
		}

		if err := s.api.CreatePackage(ctx, cmd); err != nil {
			s.logger.Error("Package creation failed",
				zap.String("session_id", sessionID),
				zap.Int("warehouse_id", cmd.WarehouseID),
				zap.Error(err))
			outcome.Status = domain.CommandFailed
			outcome.Error = err.Error()
		} else {
			outcome.Status = domain.CommandCreated
			created++
			s.logger.Info("Package created",
				zap.String("session_id", sessionID),
				zap.Int("warehouse_id", cmd.WarehouseID),
				zap.Int("quantity", outcome.Quantity))
			s.publishPackageCreated(ctx, session, cmd)
		}

		outcomes[strconv.Itoa(cmd.WarehouseID)] = outcome
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status == domain.CommandCreated {
			report.Succeeded = append(report.Succeeded, cmd.WarehouseID)
		} else {
			report.Failed = append(report.Failed, cmd.WarehouseID)
		}
	}
	sort.Ints(report.Succeeded)
	sort.Ints(report.Failed)

	if err := s.sessions.SaveSubmission(ctx, sessionID, outcomes, appliedAssignments(matrix)); err != nil {
		// Audit trail is secondary to the operator's report.
		s.logger.Error("Failed to persist submission outcomes",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	if created > 0 {
		if s.notifier != nil {
			s.notifier.AssemblyStarted(ctx, session.OperatorCI)
		}
		s.publishAssemblyStarted(ctx, session)
	}

	return report, nil
}

// packagedWarehouses returns the warehouses whose package already exists, by
// created or delivered outcome.
func packagedWarehouses(session *domain.AllocationSession) map[int]domain.CommandOutcome {
	packaged := make(map[int]domain.CommandOutcome, len(session.Outcomes))
	for key, outcome := range session.Outcomes {
		if outcome.Status != domain.CommandCreated && outcome.Status != domain.CommandDelivered {
			continue
		}
		wid, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		packaged[wid] = outcome
	}
	return packaged
}

// appliedAssignments flattens the matrix's nonzero cells back into the
// assignment list persisted for retries.
func appliedAssignments(matrix *domain.AllocationMatrix) []domain.CellAssignment {
	var applied []domain.CellAssignment
	seen := make(map[string]bool, len(matrix.Demand))
	for _, item := range matrix.Demand {
		if seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		for _, cell := range matrix.Cells[item.Name] {
			if cell.AssignedQuantity <= 0 {
				continue
			}
			applied = append(applied, domain.CellAssignment{
				ItemName:    cell.ItemName,
				WarehouseID: cell.WarehouseID,
				Quantity:    cell.AssignedQuantity,
			})
		}
	}
	return applied
}

// GetSession returns the persisted session with its submission outcomes.
func (s *AllocationService) GetSession(ctx context.Context, sessionID string) (*domain.AllocationSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// MarkDelivered records that one warehouse's package reached its destination.
func (s *AllocationService) MarkDelivered(ctx context.Context, sessionID string, warehouseID int) error {
	err := s.sessions.UpdateOutcomeStatus(ctx, sessionID, warehouseID, domain.CommandDelivered)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	s.logger.Info("Package marked delivered",
		zap.String("session_id", sessionID),
		zap.Int("warehouse_id", warehouseID))

	return nil
}

func (s *AllocationService) publishPackageCreated(ctx context.Context, session *domain.AllocationSession, cmd domain.PackageCommand) {
	if s.publisher == nil {
		return
	}
	event := events.PackageCreatedEvent{
		EventID:     uuid.NewString(),
		SessionID:   session.SessionID,
		RequestID:   session.RequestID,
		WarehouseID: cmd.WarehouseID,
		PackageName: cmd.PackageName,
		Quantity:    cmd.TotalQuantity(),
		Timestamp:   time.Now(),
	}
	if err := s.publisher.PublishPackageCreated(ctx, event); err != nil {
		s.logger.Warn("Failed to publish package created event",
			zap.String("session_id", session.SessionID),
			zap.Error(err))
	}
}

func (s *AllocationService) publishAssemblyStarted(ctx context.Context, session *domain.AllocationSession) {
	if s.publisher == nil {
		return
	}
	event := events.AssemblyStartedEvent{
		EventID:     uuid.NewString(),
		SessionID:   session.SessionID,
		RequestID:   session.RequestID,
		RequesterCI: session.OperatorCI,
		Timestamp:   time.Now(),
	}
	if err := s.publisher.PublishAssemblyStarted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish assembly started event",
			zap.String("session_id", session.SessionID),
			zap.Error(err))
	}
}
