package datacite

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/crosswalk"
	"github.com/darmiel/doigate/internal/resolver"
)

// fakeMDS is an in-memory DataCite Metadata Store.
type fakeMDS struct {
	mu       sync.Mutex
	metadata map[string][]byte // doi -> record
	urls     map[string]string // doi -> url
	requests []string          // "METHOD path"

	// forced answers by "METHOD path"
	force map[string]int
}

func newFakeMDS() *fakeMDS {
	return &fakeMDS{
		metadata: make(map[string][]byte),
		urls:     make(map[string]string),
		force:    make(map[string]int),
	}
}

func (f *fakeMDS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	f.requests = append(f.requests, key)
	if code, ok := f.force[key]; ok {
		w.WriteHeader(code)
		return
	}

	body, _ := io.ReadAll(r.Body)
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/metadata/"):
		rec, ok := f.metadata[strings.TrimPrefix(r.URL.Path, "/metadata/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(rec)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/doi/"):
		u, ok := f.urls[strings.TrimPrefix(r.URL.Path, "/doi/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, u)

	case r.Method == http.MethodPost && r.URL.Path == "/metadata/":
		rec, err := crosswalk.ParseResource(body)
		if err != nil || rec.Identifier == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.metadata[rec.Identifier.Value] = body
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPost && r.URL.Path == "/doi/":
		var doi, target string
		for _, line := range strings.Split(string(body), "\n") {
			if v, ok := strings.CutPrefix(line, "doi="); ok {
				doi = v
			}
			if v, ok := strings.CutPrefix(line, "url="); ok {
				target = v
			}
		}
		if _, ok := f.metadata[doi]; !ok {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		f.urls[doi] = target
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/metadata/"):
		delete(f.metadata, strings.TrimPrefix(r.URL.Path, "/metadata/"))
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusTeapot)
	}
}

func (f *fakeMDS) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, method+" ") {
			n++
		}
	}
	return n
}

func setup(t *testing.T) (*Connector, *fakeMDS) {
	t.Helper()
	fake := newFakeMDS()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	conn, err := New("datacite", Config{
		Scheme:    "http",
		Host:      u.Host,
		Username:  "DEMO.REPO",
		Password:  "secret",
		Publisher: "Example University",
	}, resolver.New(""), nil)
	require.NoError(t, err)
	return conn, fake
}

func item(id string) *core.Item {
	return &core.Item{
		LocalID:  id,
		HandleID: "123456789/" + id,
		Values: []core.MetadataValue{
			{Schema: "dc", Element: "title", Value: "Item " + id},
			{Schema: "dc", Element: "date", Qualifier: "issued", Value: "2022"},
			{Schema: "dc", Element: "type", Value: "Dataset"},
		},
	}
}

const doi = "doi:10.5072/repo-1"

func TestReserveThenRegister(t *testing.T) {
	conn, _ := setup(t)
	ctx := context.Background()
	u1, u2 := item("1"), item("2")

	require.NoError(t, conn.ReserveDOI(ctx, u1, doi))

	reserved, err := conn.IsDOIReserved(ctx, u1, doi)
	require.NoError(t, err)
	assert.True(t, reserved)
	reserved, err = conn.IsDOIReserved(ctx, u2, doi)
	require.NoError(t, err)
	assert.False(t, reserved)

	require.NoError(t, conn.RegisterDOI(ctx, u1, doi))

	mine, err := conn.IsDOIRegistered(ctx, u1, doi)
	require.NoError(t, err)
	assert.True(t, mine)
	other, err := conn.IsDOIRegistered(ctx, u2, doi)
	require.NoError(t, err)
	assert.False(t, other)

	// registering again for the same object is a no-op
	require.NoError(t, conn.RegisterDOI(ctx, u1, doi))
	// but not for somebody else
	require.ErrorIs(t, conn.RegisterDOI(ctx, u2, doi), core.ErrAlreadyExists)
}

func TestRegisterBeforeReserve(t *testing.T) {
	conn, fake := setup(t)

	err := conn.RegisterDOI(context.Background(), item("1"), doi)
	require.ErrorIs(t, err, core.ErrReserveFirst)
	assert.Zero(t, fake.count(http.MethodPost), "no register call may be sent")
}

func TestReserve_ForAnotherObject(t *testing.T) {
	conn, fake := setup(t)
	ctx := context.Background()

	require.NoError(t, conn.ReserveDOI(ctx, item("1"), doi))
	posts := fake.count(http.MethodPost)

	require.ErrorIs(t, conn.ReserveDOI(ctx, item("2"), doi), core.ErrAlreadyExists)
	require.ErrorIs(t, conn.UpdateMetadata(ctx, item("2"), doi), core.ErrAlreadyExists)
	require.ErrorIs(t, conn.RegisterDOI(ctx, item("2"), doi), core.ErrAlreadyExists)
	assert.Equal(t, posts, fake.count(http.MethodPost))

	// reserving again for the owner updates the metadata
	require.NoError(t, conn.UpdateMetadata(ctx, item("1"), doi))
}

func TestReserve_ConversionError(t *testing.T) {
	conn, fake := setup(t)
	obj := &core.Item{LocalID: "9", HandleID: "123456789/9"}

	err := conn.ReserveDOI(context.Background(), obj, doi)
	require.ErrorIs(t, err, core.ErrConversion)
	assert.Equal(t, doi, err.(*core.IdentifierError).DOI)
	assert.Zero(t, fake.count(http.MethodPost))
}

func TestReserve_DifferentDOIInMetadata(t *testing.T) {
	conn, fake := setup(t)
	obj := item("1")
	obj.Values = append(obj.Values, core.MetadataValue{Schema: "dc", Element: "identifier", Qualifier: "doi", Value: "10.5072/other"})

	require.ErrorIs(t, conn.ReserveDOI(context.Background(), obj, doi), core.ErrConversion)
	assert.Zero(t, fake.count(http.MethodPost))
}

func TestRegister_ReservationLost(t *testing.T) {
	conn, fake := setup(t)
	ctx := context.Background()
	require.NoError(t, conn.ReserveDOI(ctx, item("1"), doi))

	fake.mu.Lock()
	fake.force["POST /doi/"] = http.StatusPreconditionFailed
	fake.mu.Unlock()

	require.ErrorIs(t, conn.RegisterDOI(ctx, item("1"), doi), core.ErrReserveFirst)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, core.ErrAuthentication},
		{http.StatusForbidden, core.ErrForeignDOI},
		{http.StatusInternalServerError, core.ErrInternal},
		{http.StatusTeapot, core.ErrBadAnswer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			conn, fake := setup(t)
			fake.force["GET /doi/10.5072/repo-1"] = tt.status
			_, err := conn.IsDOIRegistered(context.Background(), nil, doi)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsDOIReserved_Gone(t *testing.T) {
	conn, fake := setup(t)
	fake.force["GET /metadata/10.5072/repo-1"] = http.StatusGone

	reserved, err := conn.IsDOIReserved(context.Background(), nil, doi)
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = conn.IsDOIReserved(context.Background(), item("1"), doi)
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestDeleteDOI(t *testing.T) {
	conn, fake := setup(t)
	ctx := context.Background()

	// unknown DOIs are ignored without a delete request
	require.NoError(t, conn.DeleteDOI(ctx, doi))
	assert.Zero(t, fake.count(http.MethodDelete))

	require.NoError(t, conn.ReserveDOI(ctx, item("1"), doi))
	require.NoError(t, conn.DeleteDOI(ctx, doi))
	assert.Equal(t, 1, fake.count(http.MethodDelete))

	reserved, err := conn.IsDOIReserved(ctx, nil, doi)
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestNewFromMap(t *testing.T) {
	conn, err := NewFromMap("dc", map[string]any{
		"host":          "mds.test.datacite.org",
		"username":      "DEMO",
		"metadata_path": "md",
		"timeout":       "3s",
	}, resolver.New(""), nil)
	require.NoError(t, err)
	assert.Equal(t, "/md/", conn.metadataPath)
	assert.Equal(t, "/doi/", conn.doiPath)
	assert.Equal(t, "https://mds.test.datacite.org", conn.baseURL)

	_, err = NewFromMap("dc", map[string]any{"username": "DEMO"}, resolver.New(""), nil)
	require.Error(t, err)
}
