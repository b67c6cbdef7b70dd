package content

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubStore(t *testing.T) (*httptest.Server, *map[string][]byte) {
	stored := make(map[string][]byte)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/api/v0/add":
			file, _, err := r.FormFile("file")
			require.NoError(t, err)
			data, err := io.ReadAll(file)
			require.NoError(t, err)
			stored["QmStub"] = data
			_, _ = w.Write([]byte(`{"Name":"bundle","Hash":"QmStub","Size":"42"}`))
		case "/api/v0/pin/add":
			cid := r.URL.Query().Get("arg")
			if _, ok := stored[cid]; !ok {
				http.Error(w, `{"Message":"not found"}`, http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"Pins":["` + cid + `"]}`))
		case "/api/v0/block/stat":
			cid := r.URL.Query().Get("arg")
			data, ok := stored[cid]
			if !ok {
				http.Error(w, `{"Message":"not found"}`, http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"Key":"` + cid + `","Size":` + strconv.Itoa(len(data)) + `}`))
		case "/api/v0/id":
			_, _ = w.Write([]byte(`{"ID":"12D3KooWStub"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &stored
}

func TestPutPinStat(t *testing.T) {
	srv, stored := newStubStore(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.Initialized(ctx))

	payload := []byte("gzip-bytes")
	cid, err := c.Put(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, "QmStub", cid)
	assert.Equal(t, payload, (*stored)["QmStub"])

	require.NoError(t, c.Pin(ctx, cid))
	require.Error(t, c.Pin(ctx, "QmMissing"))

	stat, err := c.Stat(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, "QmStub", stat.Key)
	assert.Equal(t, len(payload), stat.Size)

	_, err = c.Stat(ctx, "QmMissing")
	require.Error(t, err)
}

func TestInitializedUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	require.Error(t, c.Initialized(context.Background()))
}
