package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	resp *syncwire.SyncResponse
	err  error
	got  *syncwire.SyncRequest
}

func (f *fakeSyncer) Merge(_ context.Context, req *syncwire.SyncRequest) (*syncwire.SyncResponse, error) {
	f.got = req
	return f.resp, f.err
}

func newTestServer(t *testing.T, svc Syncer, ready bool) *httptest.Server {
	t.Helper()
	s := NewServer(":0", "good-key", func() bool { return ready }, svc, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postSync(t *testing.T, url, key string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url+"/sync", bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(common.SyncKeyHeaderName, key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func validRequest() *syncwire.SyncRequest {
	content := "hi"
	return &syncwire.SyncRequest{
		Updates: &syncwire.ChangeSet{Entries: []*syncwire.EntryRow{
			{ID: "e1", Content: &content, UpdatedAt: time.Now().UTC()},
		}},
	}
}

func TestProbe_Ready(t *testing.T) {
	srv := newTestServer(t, &fakeSyncer{}, true)

	resp, err := http.Get(srv.URL + "/sync")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var probe syncwire.ProbeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&probe))
	assert.True(t, probe.OK)
	assert.False(t, probe.ServerTime.IsZero())
}

func TestProbe_NotConfigured(t *testing.T) {
	srv := newTestServer(t, &fakeSyncer{}, false)

	resp, err := http.Get(srv.URL + "/sync")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSync_Success(t *testing.T) {
	want := syncwire.NewSyncResponse()
	want.ServerTime = time.Now().UTC().Truncate(time.Millisecond)
	fake := &fakeSyncer{resp: want}
	srv := newTestServer(t, fake, true)

	resp := postSync(t, srv.URL, "good-key", validRequest())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got syncwire.SyncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, want.ServerTime.Equal(got.ServerTime))

	require.NotNil(t, fake.got)
	assert.Len(t, fake.got.Updates.Entries, 1)
}

func TestSync_WrongKey(t *testing.T) {
	fake := &fakeSyncer{resp: syncwire.NewSyncResponse()}
	srv := newTestServer(t, fake, true)

	resp := postSync(t, srv.URL, "bad-key", validRequest())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, fake.got)

	resp = postSync(t, srv.URL, "", validRequest())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSync_NoKeyConfigured(t *testing.T) {
	fake := &fakeSyncer{resp: syncwire.NewSyncResponse()}
	s := NewServer(":0", "", func() bool { return true }, fake, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	// a keyless server demands nothing
	resp := postSync(t, srv.URL, "", validRequest())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// and ignores whatever key a client still sends
	resp = postSync(t, srv.URL, "stale-key", validRequest())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSync_NotConfigured(t *testing.T) {
	srv := newTestServer(t, &fakeSyncer{}, false)

	resp := postSync(t, srv.URL, "good-key", validRequest())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSync_MalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeSyncer{}, true)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/sync", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set(common.SyncKeyHeaderName, "good-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSync_ValidationFailure(t *testing.T) {
	fake := &fakeSyncer{resp: syncwire.NewSyncResponse()}
	srv := newTestServer(t, fake, true)

	// a row without an id must be rejected before it reaches the merge
	resp := postSync(t, srv.URL, "good-key", &syncwire.SyncRequest{
		Updates: &syncwire.ChangeSet{Entries: []*syncwire.EntryRow{{UpdatedAt: time.Now().UTC()}}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, fake.got)

	// so must a tombstone naming an unknown collection
	resp = postSync(t, srv.URL, "good-key", &syncwire.SyncRequest{
		Updates: &syncwire.ChangeSet{Deletes: []syncwire.Tombstone{
			{Store: "bogus", Key: "x", DeletedAt: time.Now().UTC()},
		}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSync_MergeFailure(t *testing.T) {
	srv := newTestServer(t, &fakeSyncer{err: assert.AnError}, true)

	resp := postSync(t, srv.URL, "good-key", validRequest())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSync_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeSyncer{}, true)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sync", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
