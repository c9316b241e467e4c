package fees

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
	"github.com/Mukisa95/Trinity-Family-school-sub002/logsvc"
	"github.com/Mukisa95/Trinity-Family-school-sub002/validate"
)

// =============================================================================
// INPUTS
// =============================================================================

type NewFee struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" validate:"required"`
	Amount      string   `json:"amount" validate:"required,decimal_str"`
	Category    string   `json:"category" validate:"required"`
	YearID      string   `json:"year_id"`
	TermID      string   `json:"term_id"`
	ClassIDs    []string `json:"class_ids"`
	SectionIDs  []string `json:"section_ids"`
	IsRequired  bool     `json:"is_required"`
	IsRecurring bool     `json:"is_recurring"`
	Frequency   string   `json:"frequency" validate:"omitempty,frequency"`
	LinkedFeeID string   `json:"linked_fee_id" validate:"required_if=Category Discount"`
}

type NewAdjustment struct {
	FeeID          string `json:"fee_id" validate:"required"`
	Type           string `json:"adjustment_type" validate:"required,adjustment_type"`
	Amount         string `json:"amount" validate:"required,decimal_str"`
	PeriodType     string `json:"effective_period_type" validate:"required,scope_type"`
	StartYearID    string `json:"start_year_id" validate:"required"`
	EndYearID      string `json:"end_year_id" validate:"required_if=PeriodType year_range"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

type DisableRequest struct {
	DisableType string `json:"disable_type" validate:"required,disable_type"`
	StartYearID string `json:"start_year_id" validate:"required_unless=DisableType immediate_indefinite"`
	EndYearID   string `json:"end_year_id" validate:"required_if=DisableType year_range"`
	Reason      string `json:"reason" validate:"required"`
}

// Bundle is a batch of calendar, fees and ledgers imported together.
type Bundle struct {
	Years       []calendar.AcademicYear
	Fees        []FeeItem
	Adjustments []AdjustmentEntry
	History     []DisableEvent
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the write path around the resolvers plus the read views built
// on them. Every mutation requires an actor.
type Service struct {
	repo   Repository
	ledger *AdjustmentLedger
	audit  generic.AuditLog
	log    logsvc.Logger
	cache  *ResolutionCache

	Now   func() time.Time
	NewID func() string
}

func NewService(repo Repository, audit generic.AuditLog, logger logsvc.Logger) *Service {
	if logger == nil {
		logger = logsvc.Discard()
	}
	return &Service{
		repo:   repo,
		ledger: NewAdjustmentLedger(repo),
		audit:  audit,
		log:    logger,
		cache:  NewResolutionCache(),
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  uuid.NewString,
	}
}

func (s *Service) Cache() *ResolutionCache { return s.cache }

func requireActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return generic.ErrActorRequired
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID string, action generic.AuditAction, feeID FeeID, payload map[string]any) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Append(ctx, generic.AuditEntry{
		ID:        s.NewID(),
		Timestamp: s.Now(),
		ActorID:   actorID,
		Action:    action,
		FeeID:     string(feeID),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// Snapshot loads a consistent view for the resolvers.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	return LoadSnapshot(ctx, s.repo)
}

func (s *Service) calendar(ctx context.Context) (*calendar.Calendar, error) {
	years, err := s.repo.ListYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	return calendar.New(years)
}

// =============================================================================
// CALENDAR
// =============================================================================

// SaveYear creates or replaces an academic year. The resulting calendar must
// still have unique sequences.
func (s *Service) SaveYear(ctx context.Context, actorID string, year calendar.AcademicYear) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if year.ID == "" {
		return validate.NewError(validate.ErrInvalid, validate.FieldError{Field: "id", Error: "this field is required"})
	}
	years, err := s.repo.ListYears(ctx)
	if err != nil {
		return err
	}
	merged := make([]calendar.AcademicYear, 0, len(years)+1)
	for _, y := range years {
		if y.ID != year.ID {
			merged = append(merged, y)
		}
	}
	merged = append(merged, year)
	if _, err := calendar.New(merged); err != nil {
		return err
	}
	for i := range year.Terms {
		year.Terms[i].YearID = year.ID
	}
	if err := s.repo.SaveYear(ctx, year); err != nil {
		return err
	}
	s.log.Info("academic year saved", map[string]interface{}{"actor": actorID, "year": year.ID, "sequence": year.Sequence})
	return s.record(ctx, actorID, generic.AuditYearSaved, "", map[string]any{"year_id": string(year.ID), "sequence": year.Sequence})
}

// =============================================================================
// FEES
// =============================================================================

// CreateFee validates and stores a new fee item. Discounts are stored as
// credits and must link to an existing non-discount fee.
func (s *Service) CreateFee(ctx context.Context, actorID string, nf NewFee) (FeeItem, error) {
	if err := requireActor(actorID); err != nil {
		return FeeItem{}, err
	}
	if err := validate.Struct(nf); err != nil {
		return FeeItem{}, err
	}

	value, err := decimal.NewFromString(strings.TrimSpace(nf.Amount))
	if err != nil {
		return FeeItem{}, fmt.Errorf("amount %q: %w", nf.Amount, generic.ErrInvalidAmount)
	}

	fee := FeeItem{
		ID:          FeeID(nf.ID),
		Name:        strings.TrimSpace(nf.Name),
		Category:    Category(nf.Category),
		YearID:      generic.YearID(nf.YearID),
		TermID:      nf.TermID,
		Targeting:   Targeting{ClassIDs: nf.ClassIDs, SectionIDs: nf.SectionIDs},
		IsRequired:  nf.IsRequired,
		IsRecurring: nf.IsRecurring,
		Frequency:   Frequency(nf.Frequency),
		LinkedFeeID: FeeID(nf.LinkedFeeID),
		CreatedBy:   actorID,
		CreatedAt:   s.Now(),
	}
	if fee.ID == "" {
		fee.ID = FeeID(s.NewID())
	}
	if fee.Frequency == "" {
		fee.Frequency = FrequencyPerTerm
	}

	if fee.IsDiscount() {
		fee.Amount = generic.Credit(value)
		linked, err := s.repo.GetFee(ctx, fee.LinkedFeeID)
		if err != nil {
			return FeeItem{}, err
		}
		if linked == nil {
			return FeeItem{}, &generic.ReferenceError{Kind: "linked fee", ID: string(fee.LinkedFeeID), Err: generic.ErrFeeNotFound}
		}
		if linked.IsDiscount() {
			return FeeItem{}, fmt.Errorf("discount %s links discount %s: %w", fee.ID, linked.ID, generic.ErrInvalidLink)
		}
	} else {
		if value.IsNegative() {
			return FeeItem{}, fmt.Errorf("fee amount %s is negative: %w", value, generic.ErrInvalidAmount)
		}
		if fee.LinkedFeeID != "" {
			return FeeItem{}, fmt.Errorf("only discounts link fees: %w", generic.ErrInvalidLink)
		}
		fee.Amount = generic.Charge(value)
	}

	if fee.YearID != "" || fee.TermID != "" {
		cal, err := s.calendar(ctx)
		if err != nil {
			return FeeItem{}, err
		}
		if err := checkFeeScope(fee, cal); err != nil {
			return FeeItem{}, err
		}
	}

	if existing, err := s.repo.GetFee(ctx, fee.ID); err != nil {
		return FeeItem{}, err
	} else if existing != nil {
		return FeeItem{}, fmt.Errorf("fee %s: %w", fee.ID, generic.ErrDuplicateFee)
	}

	if err := s.repo.SaveFee(ctx, fee); err != nil {
		return FeeItem{}, err
	}
	s.log.Info("fee created", map[string]interface{}{"actor": actorID, "fee": fee.ID, "amount": fee.Amount.String()})
	if err := s.record(ctx, actorID, generic.AuditFeeCreated, fee.ID, map[string]any{
		"name": fee.Name, "amount": fee.Amount.String(), "category": string(fee.Category),
	}); err != nil {
		return FeeItem{}, err
	}
	return fee, nil
}

func checkFeeScope(fee FeeItem, cal *calendar.Calendar) error {
	if fee.YearID != "" {
		if _, ok := cal.Year(fee.YearID); !ok {
			return &generic.ReferenceError{Kind: "year", ID: string(fee.YearID), Err: generic.ErrYearNotFound}
		}
	}
	if fee.TermID != "" {
		owner, ok := cal.YearOfTerm(fee.TermID)
		if !ok {
			return &generic.ReferenceError{Kind: "term", ID: fee.TermID, Err: generic.ErrTermNotFound}
		}
		if fee.YearID != "" && owner != fee.YearID {
			return &generic.ScopeError{
				Scope:  generic.SpecificYear(fee.YearID),
				Reason: fmt.Sprintf("term %s belongs to year %s", fee.TermID, owner),
			}
		}
	}
	return nil
}

func (s *Service) GetFee(ctx context.Context, id FeeID) (FeeItem, error) {
	fee, err := s.repo.GetFee(ctx, id)
	if err != nil {
		return FeeItem{}, err
	}
	if fee == nil {
		return FeeItem{}, &generic.ReferenceError{Kind: "fee", ID: string(id), Err: generic.ErrFeeNotFound}
	}
	return *fee, nil
}

func (s *Service) ListFees(ctx context.Context) ([]FeeItem, error) {
	return s.repo.ListFees(ctx)
}

func (s *Service) ListYears(ctx context.Context) ([]calendar.AcademicYear, error) {
	cal, err := s.calendar(ctx)
	if err != nil {
		return nil, err
	}
	return cal.Years(), nil
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// AddAdjustment appends a price change to a fee's ledger.
func (s *Service) AddAdjustment(ctx context.Context, actorID string, na NewAdjustment) (AdjustmentEntry, error) {
	if err := requireActor(actorID); err != nil {
		return AdjustmentEntry{}, err
	}
	if err := validate.Struct(na); err != nil {
		return AdjustmentEntry{}, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(na.Amount))
	if err != nil {
		return AdjustmentEntry{}, fmt.Errorf("amount %q: %w", na.Amount, generic.ErrInvalidAmount)
	}

	adj := AdjustmentEntry{
		ID:     s.NewID(),
		FeeID:  FeeID(na.FeeID),
		Type:   AdjustmentType(na.Type),
		Amount: amount,
		Scope: generic.TemporalScope{
			Type:        generic.ScopeType(na.PeriodType),
			StartYearID: generic.YearID(na.StartYearID),
			EndYearID:   generic.YearID(na.EndYearID),
		},
		Reason:         na.Reason,
		IdempotencyKey: na.IdempotencyKey,
		CreatedBy:      actorID,
		CreatedAt:      s.Now(),
	}

	cal, err := s.calendar(ctx)
	if err != nil {
		return AdjustmentEntry{}, err
	}
	if err := s.ledger.Append(ctx, adj, cal); err != nil {
		return AdjustmentEntry{}, err
	}

	s.log.Info("adjustment added", map[string]interface{}{
		"actor": actorID, "fee": adj.FeeID, "type": adj.Type, "amount": adj.Amount.String(), "scope": adj.Scope.String(),
	})
	if err := s.record(ctx, actorID, generic.AuditAdjustmentAdded, adj.FeeID, map[string]any{
		"adjustment_id": adj.ID, "type": string(adj.Type), "amount": adj.Amount.String(), "scope": adj.Scope.String(),
	}); err != nil {
		return AdjustmentEntry{}, err
	}
	return adj, nil
}

func (s *Service) Adjustments(ctx context.Context, id FeeID) ([]AdjustmentEntry, error) {
	return s.ledger.Entries(ctx, id)
}

// =============================================================================
// DISABLE / ENABLE
// =============================================================================

// Disable suspends a fee for the requested scope. Disabling an already
// disabled fee replaces its scope.
func (s *Service) Disable(ctx context.Context, actorID string, id FeeID, req DisableRequest) (FeeItem, error) {
	if err := requireActor(actorID); err != nil {
		return FeeItem{}, err
	}
	if err := validate.Struct(req); err != nil {
		return FeeItem{}, err
	}
	fee, err := s.GetFee(ctx, id)
	if err != nil {
		return FeeItem{}, err
	}

	scope := generic.TemporalScope{
		Type:        generic.ScopeType(req.DisableType),
		StartYearID: generic.YearID(req.StartYearID),
		EndYearID:   generic.YearID(req.EndYearID),
	}
	if !disableScope(scope.Type) {
		return FeeItem{}, &generic.ScopeError{Scope: scope, Reason: "not a disable scope"}
	}
	cal, err := s.calendar(ctx)
	if err != nil {
		return FeeItem{}, err
	}
	if err := scope.ValidateOrder(cal); err != nil {
		return FeeItem{}, err
	}

	now := s.Now()
	state := Disablement{Disabled: true, Scope: scope, Since: now, Reason: req.Reason}
	event := DisableEvent{
		ID:      s.NewID(),
		FeeID:   id,
		Action:  ActionDisable,
		Scope:   scope,
		Reason:  req.Reason,
		ActorID: actorID,
		At:      now,
	}
	if err := s.repo.RecordDisablement(ctx, id, state, event); err != nil {
		return FeeItem{}, err
	}
	fee.State = state

	s.log.Info("fee disabled", map[string]interface{}{"actor": actorID, "fee": id, "scope": scope.String()})
	if err := s.record(ctx, actorID, generic.AuditFeeDisabled, id, map[string]any{
		"scope": scope.String(), "reason": req.Reason,
	}); err != nil {
		return FeeItem{}, err
	}
	return fee, nil
}

// Enable lifts any disablement. The history keeps the earlier events.
func (s *Service) Enable(ctx context.Context, actorID string, id FeeID, reason string) (FeeItem, error) {
	if err := requireActor(actorID); err != nil {
		return FeeItem{}, err
	}
	fee, err := s.GetFee(ctx, id)
	if err != nil {
		return FeeItem{}, err
	}
	if !fee.State.Disabled {
		return FeeItem{}, fmt.Errorf("fee %s: %w", id, generic.ErrAlreadyActive)
	}

	event := DisableEvent{
		ID:      s.NewID(),
		FeeID:   id,
		Action:  ActionEnable,
		Scope:   generic.Indefinite(),
		Reason:  reason,
		ActorID: actorID,
		At:      s.Now(),
	}
	if err := s.repo.RecordDisablement(ctx, id, Disablement{}, event); err != nil {
		return FeeItem{}, err
	}
	fee.State = Disablement{}

	s.log.Info("fee enabled", map[string]interface{}{"actor": actorID, "fee": id})
	if err := s.record(ctx, actorID, generic.AuditFeeEnabled, id, map[string]any{"reason": reason}); err != nil {
		return FeeItem{}, err
	}
	return fee, nil
}

func (s *Service) History(ctx context.Context, id FeeID) ([]DisableEvent, error) {
	if _, err := s.GetFee(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *Service) Audit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.Query(ctx, filter)
}

// =============================================================================
// IMPORT
// =============================================================================

// Import persists a bundle: years first, then fees with their state, then
// adjustments through the ledger checks, then history events. Adjustments
// already in the ledger are skipped, and so are history events whose ID is
// already recorded. Imported adjustments may start in a locked year; a year
// that is locked in the store stays locked.
func (s *Service) Import(ctx context.Context, actorID string, b Bundle) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	existing, err := s.repo.ListYears(ctx)
	if err != nil {
		return fmt.Errorf("list years: %w", err)
	}
	locked := make(map[generic.YearID]bool, len(existing))
	for _, y := range existing {
		locked[y.ID] = y.IsLocked
	}
	for _, y := range b.Years {
		// A re-import never reopens a closed year.
		if locked[y.ID] {
			y.IsLocked = true
		}
		if err := s.SaveYear(ctx, actorID, y); err != nil {
			return fmt.Errorf("import year %s: %w", y.ID, err)
		}
	}
	cal, err := s.calendar(ctx)
	if err != nil {
		return err
	}
	for _, f := range b.Fees {
		if f.CreatedBy == "" {
			f.CreatedBy = actorID
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = s.Now()
		}
		if err := checkFeeScope(f, cal); err != nil {
			return fmt.Errorf("import fee %s: %w", f.ID, err)
		}
		if err := s.repo.SaveFee(ctx, f); err != nil {
			return fmt.Errorf("import fee %s: %w", f.ID, err)
		}
	}
	for _, a := range b.Adjustments {
		if a.ID == "" {
			a.ID = s.NewID()
		}
		if a.CreatedBy == "" {
			a.CreatedBy = actorID
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = s.Now()
		}
		if err := s.ledger.Replay(ctx, a, cal); err != nil {
			if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
				s.log.Debug("adjustment already imported", map[string]interface{}{"key": a.IdempotencyKey})
				continue
			}
			return fmt.Errorf("import adjustment %s: %w", a.ID, err)
		}
	}

	states := make(map[FeeID]Disablement, len(b.Fees))
	for _, f := range b.Fees {
		states[f.ID] = f.State
	}
	for _, ev := range b.History {
		if ev.ID == "" {
			ev.ID = s.NewID()
		}
		if ev.ActorID == "" {
			ev.ActorID = actorID
		}
		if ev.At.IsZero() {
			ev.At = s.Now()
		}
		if err := s.repo.RecordDisablement(ctx, ev.FeeID, states[ev.FeeID], ev); err != nil {
			return fmt.Errorf("import history of %s: %w", ev.FeeID, err)
		}
	}

	s.log.Info("schedule imported", map[string]interface{}{
		"actor": actorID, "years": len(b.Years), "fees": len(b.Fees), "adjustments": len(b.Adjustments),
	})
	return s.record(ctx, actorID, generic.AuditScheduleImported, "", map[string]any{
		"years": len(b.Years), "fees": len(b.Fees), "adjustments": len(b.Adjustments),
	})
}

// =============================================================================
// CALENDAR MAINTENANCE
// =============================================================================

// ReconcileCalendar moves the current-term flag to the term containing now
// and locks years that have ended. Changed years are saved.
func (s *Service) ReconcileCalendar(ctx context.Context, actorID string, now time.Time) ([]calendar.Change, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	years, err := s.repo.ListYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	changed, changes := calendar.Reconcile(years, now)
	if len(changes) == 0 {
		return nil, nil
	}
	for _, y := range changed {
		if err := s.repo.SaveYear(ctx, y); err != nil {
			return nil, fmt.Errorf("save year %s: %w", y.ID, err)
		}
	}

	summary := make([]string, 0, len(changes))
	for _, c := range changes {
		summary = append(summary, fmt.Sprintf("%s:%s:%s", c.Kind, c.YearID, c.TermID))
	}
	s.log.Info("calendar reconciled", map[string]interface{}{"actor": actorID, "changes": summary})
	if err := s.record(ctx, actorID, generic.AuditCalendarReconcile, "", map[string]any{"changes": summary}); err != nil {
		return nil, err
	}
	return changes, nil
}
