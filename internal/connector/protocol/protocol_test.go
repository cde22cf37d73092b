package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/metrics"
	"github.com/darmiel/doigate/internal/resolver"
)

func object(handle string) *core.Item {
	return &core.Item{LocalID: "1", HandleID: handle}
}

func TestCheckRegistration(t *testing.T) {
	res := resolver.New("")
	u1 := "http://hdl.handle.net/1/1"

	tests := []struct {
		name    string
		resp    *Response
		obj     core.Object
		want    bool
		wantErr error
	}{
		{"success without object", NewResponse(200, []byte(u1), u1, nil), nil, true, nil},
		{"same owner", NewResponse(200, []byte(u1), u1, nil), object("1/1"), true, nil},
		{"other owner", NewResponse(200, []byte(u1), u1, nil), object("1/2"), false, nil},
		{"success without handle", NewResponse(200, nil, "", nil), object("1/1"), false, core.ErrBadAnswer},
		{"known but unassigned", NewResponse(204, nil, "", nil), object("1/1"), false, nil},
		{"not found", NewResponse(404, nil, "", nil), nil, false, nil},
		{"unexpected", NewResponse(418, []byte("teapot"), "", nil), nil, false, core.ErrBadAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckRegistration(context.Background(), tt.resp, 200, tt.obj, res, "doi:10.5072/1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "DEMO" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("  http://hdl.handle.net/1/1\n"))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client := NewClient(ClientConfig{
		Connector:     "test",
		Username:      "DEMO",
		Password:      "secret",
		ExtractHandle: BodyHandle,
		Metrics:       m,
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/doi/10.5072/1", nil)
	resp, err := client.Do(context.Background(), req, "doi:10.5072/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "http://hdl.handle.net/1/1", resp.Handle())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistryRequests.WithLabelValues("test", "GET", "200")))
}

func TestClient_ErrorCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		ErrorCodes: func(status int, doi, _ string) error {
			if status == http.StatusForbidden {
				return core.NewError(core.KindForeignDOI, doi, "not ours", nil)
			}
			return nil
		},
	})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(context.Background(), req, "doi:10.5072/1")
	require.ErrorIs(t, err, core.ErrForeignDOI)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	client := NewClient(ClientConfig{Timeout: 50 * time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := client.Do(context.Background(), req, "doi:10.5072/1")
	require.ErrorIs(t, err, core.ErrInternal)
	assert.True(t, core.IsRetryable(err))
}

func TestClient_NoRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://repo.example.org/handle/1/1", http.StatusFound)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{NoRedirects: true, ExtractHandle: LocationHandle})
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/10.5072/1", nil)
	resp, err := client.Do(context.Background(), req, "doi:10.5072/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "https://repo.example.org/handle/1/1", resp.Handle())
}

func TestResponse_Immutable(t *testing.T) {
	content := []byte("abc")
	resp := NewResponse(200, content, "", nil)
	content[0] = 'x'
	got := resp.Content()
	got[1] = 'y'
	assert.Equal(t, "abc", resp.ContentString())
}
