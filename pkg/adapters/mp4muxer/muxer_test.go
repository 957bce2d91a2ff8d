package mp4muxer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/screenshow/pkg/ports"
)

// Baseline profile 1280x720 parameter sets from a real encoder run.
var (
	testSPS = []byte{
		0x67, 0x42, 0xC0, 0x1F, 0xDA, 0x01, 0x40, 0x16,
		0xEC, 0x04, 0x40, 0x00, 0x00, 0x03, 0x00, 0x40,
		0x00, 0x00, 0x0C, 0x03, 0xC6, 0x0C, 0x92,
	}
	testPPS = []byte{0x68, 0xCE, 0x06, 0xE2}
)

var startCode = []byte{0, 0, 0, 1}

// annexBChunk assembles one Annex B access unit. Keyframes carry the
// parameter sets in-stream, the way the encoder emits them.
func annexBChunk(keyframe bool) []byte {
	var buf bytes.Buffer
	buf.Write(startCode)
	buf.Write([]byte{0x09, 0xF0}) // AUD
	if keyframe {
		buf.Write(startCode)
		buf.Write(testSPS)
		buf.Write(startCode)
		buf.Write(testPPS)
		buf.Write(startCode)
		buf.Write([]byte{0x65, 0x88, 0x84, 0x21, 0xFF}) // IDR slice
	} else {
		buf.Write(startCode)
		buf.Write([]byte{0x41, 0x9A, 0x24, 0x6C, 0x41}) // non-IDR slice
	}
	return buf.Bytes()
}

func chunk(index int64, keyframe bool) ports.EncodedChunk {
	return ports.EncodedChunk{
		FrameIndex:  index,
		TimestampUs: index * 33_333,
		IsKeyframe:  keyframe,
		Data:        annexBChunk(keyframe),
	}
}

func TestMuxer_RequiresBegin(t *testing.T) {
	m := New()
	if err := m.WriteChunk(chunk(0, true)); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from WriteChunk, got %v", err)
	}
	if _, err := m.Finalize(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from Finalize, got %v", err)
	}
}

func TestMuxer_BeginRejectsInvalidTrack(t *testing.T) {
	m := New()
	if err := m.Begin(0, 720, 30); err == nil {
		t.Error("expected error for zero width")
	}
	if err := m.Begin(1280, 720, 0); err == nil {
		t.Error("expected error for zero fps")
	}
}

func TestMuxer_RejectsOutOfOrderChunks(t *testing.T) {
	m := New()
	if err := m.Begin(1280, 720, 30); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := m.WriteChunk(chunk(0, true)); err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}
	if err := m.WriteChunk(chunk(1, false)); err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}

	if err := m.WriteChunk(chunk(1, false)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder for a repeated index, got %v", err)
	}
	if err := m.WriteChunk(chunk(0, false)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder for a backward index, got %v", err)
	}
}

func TestMuxer_FinalizeWithoutChunks(t *testing.T) {
	m := New()
	m.Begin(1280, 720, 30)
	if _, err := m.Finalize(); !errors.Is(err, ErrNoChunks) {
		t.Errorf("expected ErrNoChunks, got %v", err)
	}
}

func TestMuxer_FinalizeWithoutParameterSets(t *testing.T) {
	m := New()
	m.Begin(1280, 720, 30)

	// Only non-IDR chunks: no SPS/PPS ever appear in the stream.
	if err := m.WriteChunk(chunk(0, false)); err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}
	if _, err := m.Finalize(); err == nil {
		t.Error("expected Finalize to fail without parameter sets")
	}
}

func TestMuxer_ProducesFragmentedMP4(t *testing.T) {
	m := New()
	if err := m.Begin(1280, 720, 30); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	const n = 30
	for i := int64(0); i < n; i++ {
		if err := m.WriteChunk(chunk(i, i == 0)); err != nil {
			t.Fatalf("WriteChunk %d failed: %v", i, err)
		}
	}

	data, err := m.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if len(data) < 8 || string(data[4:8]) != "ftyp" {
		t.Fatalf("expected the container to open with an ftyp box")
	}

	parsed, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output does not parse as MP4: %v", err)
	}
	if !parsed.IsFragmented() {
		t.Fatal("expected a fragmented container")
	}
	if len(parsed.Segments) != 1 || len(parsed.Segments[0].Fragments) != 1 {
		t.Fatalf("expected one segment with one fragment, got %d segments", len(parsed.Segments))
	}

	frag := parsed.Segments[0].Fragments[0]
	if got := frag.Moof.Traf.Trun.SampleCount(); got != n {
		t.Errorf("expected %d samples, got %d", n, got)
	}

	// Sample payloads are AVCC: parameter sets and delimiters live in the
	// avcC box, not the samples.
	stsd := parsed.Init.Moov.Trak.Mdia.Minf.Stbl.Stsd
	avc1 := stsd.AvcX
	if avc1 == nil || avc1.AvcC == nil {
		t.Fatal("expected an avc1 sample entry with a decoder configuration")
	}
	if len(avc1.AvcC.SPSnalus) != 1 || !bytes.Equal(avc1.AvcC.SPSnalus[0], testSPS) {
		t.Error("expected the stream SPS in the decoder configuration")
	}
	if len(avc1.AvcC.PPSnalus) != 1 || !bytes.Equal(avc1.AvcC.PPSnalus[0], testPPS) {
		t.Error("expected the stream PPS in the decoder configuration")
	}
}

func TestParseAnnexB_MixedStartCodes(t *testing.T) {
	data := []byte{
		0, 0, 0, 1, 0x09, 0xF0,
		0, 0, 1, 0x41, 0xAA,
		0, 0, 0, 1, 0x41, 0xBB, 0xCC,
	}
	nalus := parseAnnexB(data)
	if len(nalus) != 3 {
		t.Fatalf("expected 3 NAL units, got %d", len(nalus))
	}
	if nalus[0][0]&0x1F != 9 || nalus[1][0]&0x1F != 1 || nalus[2][0]&0x1F != 1 {
		t.Errorf("unexpected NAL types: % x, % x, % x", nalus[0], nalus[1], nalus[2])
	}
	if !bytes.Equal(nalus[2], []byte{0x41, 0xBB, 0xCC}) {
		t.Errorf("unexpected last NAL unit: % x", nalus[2])
	}
}

func TestConvertToAVCC_DropsNonSlices(t *testing.T) {
	nalus := [][]byte{
		{0x09, 0xF0},       // AUD: dropped
		testSPS,            // dropped
		testPPS,            // dropped
		{0x65, 0x11, 0x22}, // IDR slice: kept
	}
	out := convertToAVCC(nalus)

	want := []byte{0, 0, 0, 3, 0x65, 0x11, 0x22}
	if !bytes.Equal(out, want) {
		t.Errorf("expected % x, got % x", want, out)
	}
}
