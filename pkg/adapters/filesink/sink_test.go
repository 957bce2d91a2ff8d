package filesink

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/user/screenshow/pkg/mocks"
	"github.com/user/screenshow/pkg/ports"
)

var testBaseDir = filepath.Join("debug")

func TestSink_Enabled(t *testing.T) {
	sink := New(testBaseDir, mocks.NewFileSystem(), &mocks.Renderer{})
	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveConfigJSON(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs, &mocks.Renderer{})

	data := []byte(`{"crop":{"w":1,"h":1}}`)
	if err := sink.SaveConfigJSON(data); err != nil {
		t.Fatalf("SaveConfigJSON failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "render-config.json")
	saved, ok := fs.GetFile(expectedPath)
	if !ok {
		t.Fatalf("expected file to be saved at %s", expectedPath)
	}
	if string(saved) != string(data) {
		t.Errorf("expected %q, got %q", data, saved)
	}
}

func TestSink_SaveRenderedFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			return []byte{0x89, 0x50, 0x4E, 0x47}, nil // PNG header
		},
	}
	sink := New(testBaseDir, fs, renderer)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	if err := sink.SaveRenderedFrame(5, img); err != nil {
		t.Fatalf("SaveRenderedFrame failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "frames", "frame-00005.png")
	if _, ok := fs.GetFile(expectedPath); !ok {
		t.Errorf("expected frame to be saved at %s", expectedPath)
	}
}

func TestSink_FrameIndexZeroPadding(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs, &mocks.Renderer{})

	for _, index := range []int64{0, 42, 12345} {
		if err := sink.SaveRenderedFrame(index, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
			t.Fatalf("SaveRenderedFrame %d failed: %v", index, err)
		}
	}

	for _, name := range []string{"frame-00000.png", "frame-00042.png", "frame-12345.png"} {
		path := filepath.Join(testBaseDir, "frames", name)
		if _, ok := fs.GetFile(path); !ok {
			t.Errorf("expected %s to exist", path)
		}
	}
}
