package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encodeous/sift/bucket"
	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/objects"
)

type fakeBackend struct {
	objects map[string]*objects.Object
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: make(map[string]*objects.Object)}
}

func (f *fakeBackend) Id() network.NodeId { return "test-node" }

func (f *fakeBackend) RangeSearch(ctx context.Context, query *objects.Object, radius float32, timeout time.Duration) (*objects.SearchResult, error) {
	res := &objects.SearchResult{Complete: true}
	for _, o := range f.objects {
		d, err := objects.L2.Distance(query, o)
		if err != nil {
			return nil, err
		}
		if d <= radius {
			res.Results = append(res.Results, objects.RankedObject{Object: o, Distance: d})
		}
	}
	return res, nil
}

func (f *fakeBackend) KNNSearch(ctx context.Context, query *objects.Object, k int, timeout time.Duration) (*objects.SearchResult, error) {
	return f.RangeSearch(ctx, query, 1e9, timeout)
}

func (f *fakeBackend) Insert(ctx context.Context, target network.NodeId, o *objects.Object) error {
	if _, ok := f.objects[o.Locator]; ok {
		return bucket.ErrDuplicate
	}
	f.objects[o.Locator] = o
	return nil
}

func (f *fakeBackend) GetObject(ctx context.Context, target network.NodeId, locator string) (*objects.Object, error) {
	o, ok := f.objects[locator]
	if !ok {
		return nil, bucket.ErrNotFound
	}
	return o, nil
}

func (f *fakeBackend) DeleteObject(ctx context.Context, target network.NodeId, locator string) error {
	if _, ok := f.objects[locator]; !ok {
		return bucket.ErrNotFound
	}
	delete(f.objects, locator)
	return nil
}

func (f *fakeBackend) Stats() map[string]int64 {
	return map[string]int64{"op.ping": 3}
}

func newTestServer(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	backend := newFakeBackend()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(backend, "127.0.0.1:0", log)
	ts := httptest.NewServer(srv.srv.Handler)
	t.Cleanup(ts.Close)
	return backend, ts
}

func TestInsertAndGet(t *testing.T) {
	_, ts := newTestServer(t)

	body, _ := json.Marshal(insertBody{Locator: "vec1", Data: []float32{1, 2}})
	resp, err := http.Post(ts.URL+"/objects", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created objects.Object
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "vec1", created.Locator)

	resp, err = http.Get(ts.URL + "/objects/vec1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got objects.Object
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []float32{1, 2}, got.Data)
}

func TestInsertDuplicateConflicts(t *testing.T) {
	backend, ts := newTestServer(t)
	require.NoError(t, backend.Insert(context.Background(), "", objects.New("vec1", []float32{1})))

	body, _ := json.Marshal(insertBody{Locator: "vec1", Data: []float32{1}})
	resp, err := http.Post(ts.URL+"/objects", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetMissingObject(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/objects/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteObject(t *testing.T) {
	backend, ts := newTestServer(t)
	require.NoError(t, backend.Insert(context.Background(), "", objects.New("vec1", []float32{1})))

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/objects/vec1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, backend.objects)
}

func TestRangeSearchEndpoint(t *testing.T) {
	backend, ts := newTestServer(t)
	require.NoError(t, backend.Insert(context.Background(), "", objects.New("near", []float32{1, 0})))
	require.NoError(t, backend.Insert(context.Background(), "", objects.New("far", []float32{50, 0})))

	resp, err := http.Get(ts.URL + "/search/range?q=0,0&radius=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res objects.SearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Complete)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "near", res.Results[0].Object.Locator)
}

func TestSearchValidation(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{
		"/search/range?radius=5",       // missing q
		"/search/range?q=0,0",          // missing radius
		"/search/range?q=zero&radius=5",
		"/search/knn?q=0,0",            // missing k
		"/search/knn?q=0,0&k=-1",
		"/search/knn?q=0,0&k=3&timeout=forever",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Node  string           `json:"node"`
		Stats map[string]int64 `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "test-node", body.Node)
	assert.Equal(t, int64(3), body.Stats["op.ping"])
}
