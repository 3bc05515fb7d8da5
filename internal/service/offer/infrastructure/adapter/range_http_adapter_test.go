package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"merchdash/internal/pkg/httpclient"
	"merchdash/internal/service/offer/domain"
)

func newCatalog(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dashboard/ranges/{$}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]*domain.Range{
			{ID: 1, Name: "All products", IncludesAllProducts: true},
			{ID: 2, Name: "Books", IncludedProductIDs: []int64{4, 5}},
		})
	})
	mux.HandleFunc("GET /dashboard/ranges/1/{$}", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_ = json.NewEncoder(w).Encode(&domain.Range{ID: 1, Name: "All products", IncludesAllProducts: true})
	})
	mux.HandleFunc("GET /dashboard/ranges/500/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRangeHTTPAdapter_FindByID(t *testing.T) {
	var hits int32
	srv := newCatalog(t, &hits)
	a := NewRangeHTTPAdapter(httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), nil), srv.URL+"/", "", time.Second)
	ctx := context.Background()

	rng, err := a.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "All products", rng.Name)
	assert.True(t, rng.IncludesAllProducts)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	_, err = a.FindByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrRangeNotFound)

	_, err = a.FindByID(ctx, 500)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRangeNotFound)
}

func TestRangeHTTPAdapter_List(t *testing.T) {
	var hits int32
	srv := newCatalog(t, &hits)
	a := NewRangeHTTPAdapter(httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), nil), srv.URL, "", time.Second)

	ranges, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, "Books", ranges[1].Name)
	assert.Equal(t, []int64{4, 5}, ranges[1].IncludedProductIDs)
}

type staticResolver struct {
	host string
	port int
}

func (r staticResolver) DiscoverServiceInstance(string) (string, int, error) {
	return r.host, r.port, nil
}

func TestRangeHTTPAdapter_ServiceDiscovery(t *testing.T) {
	var hits int32
	srv := newCatalog(t, &hits)
	addr := srv.Listener.Addr().(*net.TCPAddr)

	client := httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), staticResolver{host: "127.0.0.1", port: addr.Port})
	a := NewRangeHTTPAdapter(client, "", "catalog-service", time.Second)

	rng, err := a.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rng.ID)

	// 没有 resolver 也没有 baseURL 时无法定位目录服务
	b := NewRangeHTTPAdapter(httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), nil), "", "catalog-service", time.Second)
	_, err = b.List(context.Background())
	assert.Error(t, err)
}

func TestRangeHTTPAdapter_SharedLookupSurvivesCallerCancel(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dashboard/ranges/1/{$}", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			close(started)
		}
		<-release
		_ = json.NewEncoder(w).Encode(&domain.Range{ID: 1, Name: "All products", IncludesAllProducts: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewRangeHTTPAdapter(httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), nil), srv.URL, "", 5*time.Second)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := a.FindByID(firstCtx, 1)
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		rng, err := a.FindByID(context.Background(), 1)
		if err == nil && rng.Name != "All products" {
			err = errors.New("unexpected range " + rng.Name)
		}
		second <- err
	}()

	// 第一个调用方断开后，共享的请求仍然完成
	cancelFirst()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-second)
	require.NoError(t, <-firstErr)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
