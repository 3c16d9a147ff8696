package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/frame-analyzer/pkg/types"
)

// fakeClient is a VisionClient that returns a canned reply
type fakeClient struct {
	mu       sync.Mutex
	checkErr error
	reply    string
	queryErr error
	queries  int
	models   []string
}

func (f *fakeClient) CheckModel(_ context.Context, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	return f.checkErr
}

func (f *fakeClient) Query(_ context.Context, _, _, imgB64 string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if imgB64 == "" {
		return "", errors.New("no image")
	}
	return f.reply, f.queryErr
}

func writeFrame(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{90, 120, 150, 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadRequiresModel(t *testing.T) {
	c := &fakeClient{}
	_, err := Load(context.Background(), c, Options{Model: "  "})
	assert.ErrorIs(t, err, ErrNoModel)
	assert.Empty(t, c.models, "backend is not contacted without a model")
}

func TestLoadPropagatesBackendError(t *testing.T) {
	c := &fakeClient{checkErr: errors.New(`model "llava" not found on ollama server`)}
	_, err := Load(context.Background(), c, Options{Model: "llava"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad(t *testing.T) {
	c := &fakeClient{}
	d, err := Load(context.Background(), c, Options{Model: " qwen2.5vl "})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5vl", d.Model())
	assert.Equal(t, []string{"qwen2.5vl"}, c.models)
}

func TestDetectNormalizedBoxes(t *testing.T) {
	path := writeFrame(t, t.TempDir(), "frame_0001.png", 200, 100)
	c := &fakeClient{reply: `{"objects":[
		{"label":"person","box":[0.1,0.2,0.5,0.9]},
		{"label":"Cars","box":[0.5,0.5,1.0,1.0]},
		{"label":"spaceship","box":[0,0,0.1,0.1]}
	]}`}
	d := NewVisionDetector(c, Options{Model: "m"})

	got, err := d.Detect(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []types.Detection{
		{Box: types.Box{20, 20, 100, 90}, Class: "person"},
		{Box: types.Box{100, 50, 200, 100}, Class: "car"},
	}, got)
}

func TestDetectPixelBoxesFromDownscaledImage(t *testing.T) {
	path := writeFrame(t, t.TempDir(), "frame_0001.png", 400, 200)
	c := &fakeClient{reply: `[{"class":"dog","bbox":[10,20,50,40]}]`}
	d := NewVisionDetector(c, Options{Model: "m", SendSize: 100})

	got, err := d.Detect(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.Box{40, 80, 200, 160}, got[0].Box)
	assert.Equal(t, "dog", got[0].Class)
}

func TestDetectClampsAndOrdersBoxes(t *testing.T) {
	path := writeFrame(t, t.TempDir(), "frame_0001.png", 50, 50)
	c := &fakeClient{reply: `{"objects":[{"name":"cat","box":[80,90,-10,20]}]}`}
	d := NewVisionDetector(c, Options{Model: "m"})

	got, err := d.Detect(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.Box{0, 20, 50, 50}, got[0].Box)
}

func TestDetectEmptyScene(t *testing.T) {
	path := writeFrame(t, t.TempDir(), "frame_0001.png", 32, 32)
	d := NewVisionDetector(&fakeClient{reply: `{"objects": []}`}, Options{Model: "m"})

	got, err := d.Detect(context.Background(), path)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDetectFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFrame(t, dir, "frame_0001.png", 32, 32)
	corrupt := filepath.Join(dir, "frame_0002.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0o644))

	tests := []struct {
		name   string
		path   string
		client *fakeClient
	}{
		{"corrupt image", corrupt, &fakeClient{reply: `{"objects":[]}`}},
		{"missing image", filepath.Join(dir, "nope.png"), &fakeClient{reply: `{"objects":[]}`}},
		{"backend error", good, &fakeClient{queryErr: errors.New("connection refused")}},
		{"malformed reply", good, &fakeClient{reply: "I see a cat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewVisionDetector(tt.client, Options{Model: "m"})
			_, err := d.Detect(context.Background(), tt.path)
			assert.Error(t, err)
		})
	}
}

func TestDetectRespectsCancelledRateLimit(t *testing.T) {
	path := writeFrame(t, t.TempDir(), "frame_0001.png", 16, 16)
	c := &fakeClient{reply: `{"objects":[]}`}
	d := NewVisionDetector(c, Options{Model: "m", RequestsPerSecond: 0.001})

	// the first call consumes the burst token
	_, err := d.Detect(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Detect(ctx, path)
	assert.Error(t, err)
	assert.Equal(t, 1, c.queries)
}

func TestDetectFunc(t *testing.T) {
	var d Detector = DetectFunc(func(_ context.Context, p string) ([]types.Detection, error) {
		return []types.Detection{{Class: p}}, nil
	})
	got, err := d.Detect(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "x", got[0].Class)
}
