package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOllama struct {
	models  map[string]bool
	reply   string
	lastReq map[string]any
}

func (f *fakeOllama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if !f.models[body["model"].(string)] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"modelfile":"","details":{"family":"qwen2"}}`))
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		f.lastReq = map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastReq))
		resp := map[string]any{
			"model":   f.lastReq["model"],
			"message": map[string]any{"role": "assistant", "content": f.reply},
			"done":    true,
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeOllama) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api/chat", time.Minute)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("://bad", 0)
	assert.Error(t, err)

	_, err = NewClient("localhost", 0)
	assert.Error(t, err)
}

func TestCheckModel(t *testing.T) {
	f := &fakeOllama{models: map[string]bool{"qwen2.5vl:7b": true}}
	c := newTestClient(t, f)

	require.NoError(t, c.CheckModel(context.Background(), "qwen2.5vl:7b"))

	err := c.CheckModel(context.Background(), "missing:latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing:latest")
}

func TestQuery(t *testing.T) {
	f := &fakeOllama{reply: `{"objects":[]}`}
	c := newTestClient(t, f)

	img := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	out, err := c.Query(context.Background(), "qwen2.5vl:7b", "find objects", img)
	require.NoError(t, err)
	assert.Equal(t, `{"objects":[]}`, out)

	assert.Equal(t, "qwen2.5vl:7b", f.lastReq["model"])
	assert.Equal(t, "json", f.lastReq["format"])
	assert.Equal(t, false, f.lastReq["stream"])

	msgs := f.lastReq["messages"].([]any)
	require.Len(t, msgs, 1)
	images := msgs[0].(map[string]any)["images"].([]any)
	require.Len(t, images, 1)
	assert.Equal(t, img, images[0])
}

func TestQueryRejectsBadBase64(t *testing.T) {
	c := newTestClient(t, &fakeOllama{reply: "{}"})
	_, err := c.Query(context.Background(), "m", "p", "%%%")
	assert.Error(t, err)
}

func TestQueryEmptyReply(t *testing.T) {
	c := newTestClient(t, &fakeOllama{reply: ""})
	_, err := c.Query(context.Background(), "m", "p", base64.StdEncoding.EncodeToString([]byte("x")))
	assert.Error(t, err)
}
