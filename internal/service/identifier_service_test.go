package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/doigate/internal/audit"
	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/connector/stub"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/filter"
	"github.com/darmiel/doigate/internal/logic"
	"github.com/darmiel/doigate/internal/metrics"
	"github.com/darmiel/doigate/internal/resolver"
	"github.com/darmiel/doigate/internal/store"
)

type fixture struct {
	svc     *IdentifierService
	conn    *stub.Connector
	store   *store.InMemoryIdentifierStore
	auditor *audit.InMemoryAuditor
	metrics *metrics.Metrics
}

func setup(t *testing.T) *fixture {
	t.Helper()
	filters, err := filter.Build(config.LogicConfig{
		Statements: map[string]logic.StatementConfig{
			"has_files": {Condition: logic.KindBitstreamCount, Params: map[string]any{"min": 1}},
			"draft":     {Condition: logic.KindMetadataValueMatch, Params: map[string]any{"field": "dc.title", "pattern": "^Draft"}},
		},
		Filters: []config.FilterConfig{{
			Name: "doi_filter",
			Statement: logic.StatementConfig{Operator: "and", Statements: []logic.StatementConfig{
				{Ref: "has_files"},
				{Operator: "not", Statements: []logic.StatementConfig{{Ref: "draft"}}},
			}},
		}},
	})
	require.NoError(t, err)

	conn, err := stub.New("local", resolver.New(""))
	require.NoError(t, err)

	providers, err := BuildProviders([]config.ProviderConfig{{
		Name:               "repo",
		Connector:          "local",
		Filter:             "doi_filter",
		Prefix:             "10.5072",
		NamespaceSeparator: "repo-",
	}}, map[string]core.Connector{"local": conn}, filters)
	require.NoError(t, err)

	f := &fixture{
		conn:    conn,
		store:   store.NewInMemoryIdentifierStore(),
		auditor: audit.NewInMemoryAuditor(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.svc = NewIdentifierService(providers, f.store, f.auditor, f.metrics)
	return f
}

func item(id, title string) *core.Item {
	return &core.Item{
		LocalID:  id,
		HandleID: "123456789/" + id,
		BundleList: []core.Bundle{
			{Name: "ORIGINAL", Files: []core.File{{Name: "thesis.pdf", Size: 1}}},
		},
		Values: []core.MetadataValue{{Schema: "dc", Element: "title", Value: title}},
	}
}

const doi = "doi:10.5072/repo-1"

func (f *fixture) state(t *testing.T, handle string) core.State {
	t.Helper()
	id, err := f.store.Find(context.Background(), "repo", handle)
	require.NoError(t, err)
	return id.State
}

func TestRegister(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	obj := item("1", "Final report")

	got, err := f.svc.Register(ctx, "repo", obj, false)
	require.NoError(t, err)
	assert.Equal(t, doi, got)
	assert.Equal(t, core.StateRegistered, f.state(t, obj.Handle()))

	mine, err := f.conn.IsDOIRegistered(ctx, obj, doi)
	require.NoError(t, err)
	assert.True(t, mine)

	// a second call verifies remotely and changes nothing
	got, err = f.svc.Register(ctx, "repo", obj, false)
	require.NoError(t, err)
	assert.Equal(t, doi, got)

	entries := f.auditor.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ActionRegister, entries[0].Action)
	assert.Equal(t, core.OutcomeApplied, entries[0].Outcome)
	assert.Equal(t, core.StateRegistered, entries[0].State)
	assert.Equal(t, "local", entries[0].Connector)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Operations.WithLabelValues("repo", ActionRegister, core.OutcomeApplied)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.FilterDecisions.WithLabelValues("doi_filter", "true")))
}

func TestRegister_LostRemotely(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	obj := item("1", "Final report")
	require.NoError(t, f.store.Save(ctx, core.Identifier{Provider: "repo", Handle: obj.Handle(), DOI: doi, State: core.StateRegistered}))

	_, err := f.svc.Register(ctx, "repo", obj, false)
	require.NoError(t, err)

	mine, err := f.conn.IsDOIRegistered(ctx, obj, doi)
	require.NoError(t, err)
	assert.True(t, mine, "registration must be repeated when the registry lost it")
	assert.Equal(t, core.StateRegistered, f.state(t, obj.Handle()))
}

func TestNotApplicable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	obj := item("1", "Draft report")

	_, err := f.svc.Register(ctx, "repo", obj, false)
	require.ErrorIs(t, err, ErrNotApplicable)
	assert.Equal(t, http.StatusConflict, StatusFor(err))

	_, err = f.store.Find(ctx, "repo", obj.Handle())
	require.ErrorIs(t, err, core.ErrIdentifierNotFound, "nothing may be stored")

	entries := f.auditor.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, core.OutcomeNotApplicable, entries[0].Outcome)
	assert.Equal(t, "doi_filter", entries[0].Filter)

	ok, err := f.svc.CanMint(ctx, "repo", obj)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSkipFilter(t *testing.T) {
	obj := item("1", "Draft report")

	t.Run("unprivileged session", func(t *testing.T) {
		f := setup(t)
		ctx := core.WithSession(context.Background(), &core.Session{Principal: &core.Principal{ID: "alice"}})
		_, err := f.svc.Register(ctx, "repo", obj, true)
		require.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, http.StatusForbidden, StatusFor(err))
	})

	t.Run("privileged session", func(t *testing.T) {
		f := setup(t)
		ctx := core.WithSession(context.Background(), &core.Session{Principal: &core.Principal{ID: "admin"}, Privileged: true})
		_, err := f.svc.Register(ctx, "repo", obj, true)
		require.NoError(t, err)

		entries := f.auditor.Entries()
		require.Len(t, entries, 1)
		assert.True(t, entries[0].SkipFilter)
		assert.Equal(t, "admin", entries[0].Principal.ID)
	})

	t.Run("local run", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Register(context.Background(), "repo", obj, true)
		require.NoError(t, err)
	})
}

func TestMint_Conflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// another object with the same local id already holds the DOI
	other := &core.Item{LocalID: "1", HandleID: "987654321/1"}
	require.NoError(t, f.conn.ReserveDOI(ctx, other, doi))
	require.NoError(t, f.conn.RegisterDOI(ctx, other, doi))

	obj := item("1", "Final report")
	_, err := f.svc.Mint(ctx, "repo", obj, false)
	require.ErrorIs(t, err, core.ErrAlreadyExists)
	assert.Equal(t, http.StatusConflict, StatusFor(err))
	assert.Equal(t, core.StateConflict, f.state(t, obj.Handle()))
}

func TestReserve_AlreadyReservedElsewhere(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other := &core.Item{LocalID: "1", HandleID: "987654321/1"}
	require.NoError(t, f.conn.ReserveDOI(ctx, other, doi))

	obj := item("1", "Final report")
	_, err := f.svc.Reserve(ctx, "repo", obj, false)
	require.ErrorIs(t, err, core.ErrAlreadyExists)
	assert.Equal(t, core.StateConflict, f.state(t, obj.Handle()))
}

func TestLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	obj := item("1", "Final report")

	id, err := f.svc.Mint(ctx, "repo", obj, false)
	require.NoError(t, err)
	assert.Equal(t, core.StateUnassigned, id.State)
	assert.Equal(t, doi, id.DOI)

	_, err = f.svc.Update(ctx, "repo", obj, false)
	require.ErrorIs(t, err, ErrInvalidState)

	id, err = f.svc.Reserve(ctx, "repo", obj, false)
	require.NoError(t, err)
	assert.Equal(t, core.StateReserved, id.State)

	_, err = f.svc.Update(ctx, "repo", obj, false)
	require.NoError(t, err)

	st, err := f.svc.Status(ctx, "repo", obj)
	require.NoError(t, err)
	assert.True(t, st.Stored)
	assert.True(t, st.Reserved)
	assert.False(t, st.Registered)

	id, err = f.svc.Delete(ctx, "repo", obj)
	require.NoError(t, err)
	assert.Equal(t, core.StateUnassigned, id.State)

	_, err = f.svc.Register(ctx, "repo", obj, false)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, "repo", obj)
	require.ErrorIs(t, err, ErrInvalidState, "registered DOIs cannot be deleted")
	assert.Equal(t, core.StateRegistered, f.state(t, obj.Handle()))
}

func TestStatus_Unstored(t *testing.T) {
	f := setup(t)
	st, err := f.svc.Status(context.Background(), "repo", item("5", "Final"))
	require.NoError(t, err)
	assert.False(t, st.Stored)
	assert.Equal(t, "doi:10.5072/repo-5", st.Identifier.DOI)
	assert.Equal(t, core.StateUnassigned, st.Identifier.State)
}

func TestUnknownProvider(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Mint(context.Background(), "nope", item("1", "Final"), false)
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.Equal(t, http.StatusNotFound, StatusFor(err))
	require.Len(t, f.auditor.Entries(), 1)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", ErrNotApplicable), http.StatusConflict},
		{core.NewError(core.KindForeignDOI, doi, "", nil), http.StatusConflict},
		{core.NewError(core.KindReserveFirst, doi, "", nil), http.StatusPreconditionFailed},
		{core.NewError(core.KindConversion, doi, "", nil), http.StatusUnprocessableEntity},
		{core.NewError(core.KindBadRequest, doi, "", nil), http.StatusUnprocessableEntity},
		{core.NewError(core.KindInternal, doi, "", nil), http.StatusServiceUnavailable},
		{core.NewError(core.KindBadAnswer, doi, "", nil), http.StatusBadGateway},
		{core.NewError(core.KindAuthentication, doi, "", nil), http.StatusBadGateway},
		{core.ErrIdentifierNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
