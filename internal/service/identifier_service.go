package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/metrics"
)

// actions as they appear in audit entries and metrics
const (
	ActionCanMint  = "identifier.can_mint"
	ActionMint     = "identifier.mint"
	ActionReserve  = "identifier.reserve"
	ActionRegister = "identifier.register"
	ActionUpdate   = "identifier.update"
	ActionDelete   = "identifier.delete"
	ActionStatus   = "identifier.status"
)

// IdentifierService drives the identifier lifecycle: it asks the provider's
// filter, talks to the connector and keeps the local state.
type IdentifierService struct {
	providers map[string]*Provider
	order     []*Provider
	store     core.IdentifierStore
	auditor   core.Auditor
	metrics   *metrics.Metrics

	// now is replaced in tests
	now func() time.Time
}

func NewIdentifierService(
	providers []*Provider,
	store core.IdentifierStore,
	auditor core.Auditor,
	m *metrics.Metrics,
) *IdentifierService {
	byName := make(map[string]*Provider, len(providers))
	for _, p := range providers {
		byName[p.Name] = p
	}
	return &IdentifierService{
		providers: byName,
		order:     providers,
		store:     store,
		auditor:   auditor,
		metrics:   m,
		now:       time.Now,
	}
}

// Providers returns all providers in configuration order.
func (s *IdentifierService) Providers() []*Provider {
	return s.order
}

func (s *IdentifierService) Provider(name string) (*Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// operation carries one lifecycle call from start to its audit entry.
type operation struct {
	provider *Provider
	obj      core.Object
	entry    core.AuditEntry
}

// run resolves the provider, enforces the skip-filter rules, evaluates the
// filter if gated is set and runs fn. Exactly one audit entry is written.
func (s *IdentifierService) run(
	ctx context.Context,
	action, providerName string,
	obj core.Object,
	skipFilter, gated bool,
	fn func(ctx context.Context, op *operation) error,
) error {
	op := &operation{
		obj: obj,
		entry: core.AuditEntry{
			ID:         core.CorrelationID(ctx),
			Time:       s.now(),
			Action:     action,
			Provider:   providerName,
			SkipFilter: skipFilter,
		},
	}
	if obj != nil {
		op.entry.Handle = obj.Handle()
	}
	session := core.SessionFrom(ctx)
	if session != nil {
		op.entry.Principal = session.Principal
	}

	logger := log.Ctx(ctx).With().
		Str("action", action).
		Str("provider", providerName).
		Str("handle", op.entry.Handle).
		Logger()
	ctx = logger.WithContext(ctx)

	err := s.execute(ctx, op, session, skipFilter, gated, fn)

	outcome := OutcomeOf(err)
	op.entry.Outcome = outcome
	if err != nil {
		op.entry.Error = err.Error()
		op.entry.ErrorKind = core.KindOf(err)
	}
	if s.auditor != nil {
		if aerr := s.auditor.Log(op.entry); aerr != nil {
			logger.Error().Err(aerr).Msg("failed to write audit log entry")
		}
	}
	s.metrics.IncrementOperation(providerName, action, outcome)

	switch outcome {
	case core.OutcomeApplied:
		logger.Info().Str("doi", op.entry.DOI).Str("state", string(op.entry.State)).Msg("identifier.operation.applied")
	case core.OutcomeNotApplicable:
		logger.Info().Str("filter", op.entry.Filter).Msg("identifier.operation.not_applicable")
	default:
		logger.Warn().Err(err).Str("doi", op.entry.DOI).Msg("identifier.operation.failed")
	}
	return wrap(err)
}

func (s *IdentifierService) execute(
	ctx context.Context,
	op *operation,
	session *core.Session,
	skipFilter, gated bool,
	fn func(ctx context.Context, op *operation) error,
) error {
	p, err := s.Provider(op.entry.Provider)
	if err != nil {
		return err
	}
	op.provider = p
	op.entry.Connector = p.Connector.Name()
	op.entry.Filter = p.Filter.Name()

	if op.obj == nil {
		return httpError(http.StatusBadRequest, errors.New("no object given"))
	}
	if skipFilter && session != nil && !session.Privileged {
		return ErrForbidden
	}
	if gated && !skipFilter {
		if err := s.checkFilter(ctx, p, op.obj); err != nil {
			return err
		}
	}
	return fn(ctx, op)
}

func (s *IdentifierService) checkFilter(ctx context.Context, p *Provider, obj core.Object) error {
	ok, err := p.Filter.Result(ctx, obj)
	s.metrics.IncrementFilterDecision(p.Filter.Name(), ok, err)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: filter '%s' rejected %s", ErrNotApplicable, p.Filter.Name(), obj.Handle())
	}
	return nil
}

// CanMint reports whether the provider's filter admits obj.
func (s *IdentifierService) CanMint(ctx context.Context, providerName string, obj core.Object) (bool, error) {
	var result bool
	err := s.run(ctx, ActionCanMint, providerName, obj, false, false, func(ctx context.Context, op *operation) error {
		ok, err := op.provider.Filter.Result(ctx, obj)
		s.metrics.IncrementFilterDecision(op.provider.Filter.Name(), ok, err)
		result = ok
		return err
	})
	return result, err
}

// Mint returns the identifier of obj, creating an UNASSIGNED one if needed.
func (s *IdentifierService) Mint(ctx context.Context, providerName string, obj core.Object, skipFilter bool) (*core.Identifier, error) {
	var id *core.Identifier
	err := s.run(ctx, ActionMint, providerName, obj, skipFilter, true, func(ctx context.Context, op *operation) error {
		var err error
		id, err = s.mint(ctx, op)
		return err
	})
	return id, err
}

// Reserve reserves the DOI of obj. Valid from UNASSIGNED or RESERVED.
func (s *IdentifierService) Reserve(ctx context.Context, providerName string, obj core.Object, skipFilter bool) (*core.Identifier, error) {
	var id *core.Identifier
	err := s.run(ctx, ActionReserve, providerName, obj, skipFilter, true, func(ctx context.Context, op *operation) error {
		var err error
		if id, err = s.mint(ctx, op); err != nil {
			return err
		}
		if id.State == core.StateRegistered {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, id.DOI, id.State)
		}
		return s.reserve(ctx, op, id)
	})
	return id, err
}

// Register mints and reserves as needed and registers the DOI of obj. A record
// that is REGISTERED locally is verified against the registry again.
func (s *IdentifierService) Register(ctx context.Context, providerName string, obj core.Object, skipFilter bool) (string, error) {
	var doi string
	err := s.run(ctx, ActionRegister, providerName, obj, skipFilter, true, func(ctx context.Context, op *operation) error {
		id, err := s.mint(ctx, op)
		if err != nil {
			return err
		}
		doi = id.DOI
		conn := op.provider.Connector

		if id.State == core.StateRegistered {
			mine, err := conn.IsDOIRegistered(ctx, obj, id.DOI)
			if err != nil {
				return s.fail(ctx, op, id, err)
			}
			if mine {
				return nil
			}
			log.Ctx(ctx).Warn().Str("doi", id.DOI).Msg("DOI is registered locally, but not at the registry; registering again")
		}

		switch id.State {
		case core.StateUnassigned, core.StateConflict:
			if err := s.reserve(ctx, op, id); err != nil {
				return err
			}
		case core.StateRegistered:
			reserved, err := conn.IsDOIReserved(ctx, obj, id.DOI)
			if err != nil {
				return s.fail(ctx, op, id, err)
			}
			if !reserved {
				if err := s.reserve(ctx, op, id); err != nil {
					return err
				}
			}
		}

		if err := conn.RegisterDOI(ctx, obj, id.DOI); err != nil {
			return s.fail(ctx, op, id, err)
		}
		return s.transition(ctx, op, id, core.StateRegistered)
	})
	return doi, err
}

// Update sends the current metadata of obj. Allowed in RESERVED or REGISTERED.
func (s *IdentifierService) Update(ctx context.Context, providerName string, obj core.Object, skipFilter bool) (*core.Identifier, error) {
	var id *core.Identifier
	err := s.run(ctx, ActionUpdate, providerName, obj, skipFilter, true, func(ctx context.Context, op *operation) error {
		var err error
		if id, err = s.find(ctx, op); err != nil {
			return err
		}
		if id.State != core.StateReserved && id.State != core.StateRegistered {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, id.DOI, id.State)
		}
		if err := op.provider.Connector.UpdateMetadata(ctx, obj, id.DOI); err != nil {
			return s.fail(ctx, op, id, err)
		}
		return s.transition(ctx, op, id, id.State)
	})
	return id, err
}

// Delete drops a reservation. Registered DOIs cannot be deleted.
func (s *IdentifierService) Delete(ctx context.Context, providerName string, obj core.Object) (*core.Identifier, error) {
	var id *core.Identifier
	err := s.run(ctx, ActionDelete, providerName, obj, false, false, func(ctx context.Context, op *operation) error {
		var err error
		if id, err = s.find(ctx, op); err != nil {
			return err
		}
		if id.State != core.StateReserved {
			return fmt.Errorf("%w: only reserved DOIs can be deleted, %s is %s", ErrInvalidState, id.DOI, id.State)
		}
		if err := op.provider.Connector.DeleteDOI(ctx, id.DOI); err != nil {
			return s.fail(ctx, op, id, err)
		}
		return s.transition(ctx, op, id, core.StateUnassigned)
	})
	return id, err
}

// Status returns the stored record of obj together with live registry checks.
func (s *IdentifierService) Status(ctx context.Context, providerName string, obj core.Object) (*Status, error) {
	var st *Status
	err := s.run(ctx, ActionStatus, providerName, obj, false, false, func(ctx context.Context, op *operation) error {
		st = &Status{}
		id, err := s.store.Find(ctx, op.provider.Name, obj.Handle())
		switch {
		case err == nil:
			st.Identifier, st.Stored = *id, true
		case errors.Is(err, core.ErrIdentifierNotFound):
			st.Identifier = core.Identifier{
				Provider: op.provider.Name,
				Handle:   obj.Handle(),
				DOI:      op.provider.DOIFor(obj),
				State:    core.StateUnassigned,
			}
		default:
			return err
		}
		op.entry.DOI = st.Identifier.DOI
		op.entry.State = st.Identifier.State

		conn := op.provider.Connector
		if st.Reserved, err = conn.IsDOIReserved(ctx, obj, st.Identifier.DOI); err != nil {
			return err
		}
		if st.Registered, err = conn.IsDOIRegistered(ctx, obj, st.Identifier.DOI); err != nil {
			return err
		}
		return nil
	})
	return st, err
}

// mint returns the stored identifier or creates one after making sure the DOI
// is not bound to another object.
func (s *IdentifierService) mint(ctx context.Context, op *operation) (*core.Identifier, error) {
	id, err := s.store.Find(ctx, op.provider.Name, op.obj.Handle())
	if err == nil {
		op.entry.DOI, op.entry.State = id.DOI, id.State
		return id, nil
	}
	if !errors.Is(err, core.ErrIdentifierNotFound) {
		return nil, err
	}

	id = &core.Identifier{
		Provider: op.provider.Name,
		Handle:   op.obj.Handle(),
		DOI:      op.provider.DOIFor(op.obj),
		State:    core.StateUnassigned,
	}
	op.entry.DOI, op.entry.State = id.DOI, id.State

	conn := op.provider.Connector
	registered, err := conn.IsDOIRegistered(ctx, nil, id.DOI)
	if err != nil {
		return nil, err
	}
	if registered {
		mine, err := conn.IsDOIRegistered(ctx, op.obj, id.DOI)
		if err != nil {
			return nil, err
		}
		if !mine {
			return nil, s.fail(ctx, op, id,
				core.NewError(core.KindAlreadyExists, id.DOI, "registered for another object", nil))
		}
		id.State = core.StateRegistered
	}

	log.Ctx(ctx).Info().Str("doi", id.DOI).Str("state", string(id.State)).Msg("identifier.minted")
	if err := s.save(ctx, op, id); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *IdentifierService) reserve(ctx context.Context, op *operation, id *core.Identifier) error {
	if err := op.provider.Connector.ReserveDOI(ctx, op.obj, id.DOI); err != nil {
		return s.fail(ctx, op, id, err)
	}
	return s.transition(ctx, op, id, core.StateReserved)
}

func (s *IdentifierService) find(ctx context.Context, op *operation) (*core.Identifier, error) {
	id, err := s.store.Find(ctx, op.provider.Name, op.obj.Handle())
	if err != nil {
		return nil, err
	}
	op.entry.DOI, op.entry.State = id.DOI, id.State
	return id, nil
}

// transition moves id to next after a confirmed remote success. A REGISTERED
// record that is reserved again (lost registration) keeps its state.
func (s *IdentifierService) transition(ctx context.Context, op *operation, id *core.Identifier, next core.State) error {
	if !id.State.CanTransition(next) {
		if id.State == core.StateRegistered && next == core.StateReserved {
			next = id.State
		} else {
			return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidState, id.DOI, id.State, next)
		}
	}
	id.State = next
	id.LastError = ""
	return s.save(ctx, op, id)
}

// fail records err on id. AlreadyExists moves the record to CONFLICT.
func (s *IdentifierService) fail(ctx context.Context, op *operation, id *core.Identifier, err error) error {
	if errors.Is(err, core.ErrAlreadyExists) {
		id.State = core.StateConflict
	}
	id.LastError = err.Error()
	if serr := s.save(ctx, op, id); serr != nil {
		log.Ctx(ctx).Error().Err(serr).Str("doi", id.DOI).Msg("failed to record identifier error")
	}
	return err
}

func (s *IdentifierService) save(ctx context.Context, op *operation, id *core.Identifier) error {
	id.UpdatedAt = s.now()
	op.entry.DOI, op.entry.State = id.DOI, id.State
	if err := s.store.Save(ctx, *id); err != nil {
		return fmt.Errorf("saving identifier %s: %w", id.DOI, err)
	}
	return nil
}
