// Package mp4muxer assembles ordered H.264 chunks into a fragmented MP4
// container using mp4ff.
package mp4muxer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/screenshow/pkg/ports"
)

var (
	// ErrNotInitialized is returned when WriteChunk or Finalize is called
	// before Begin.
	ErrNotInitialized = errors.New("mp4muxer: muxer not initialized")

	// ErrNoChunks is returned by Finalize when nothing was written.
	ErrNoChunks = errors.New("mp4muxer: no chunks written")

	// ErrOutOfOrder is returned when a chunk arrives with a frame index at
	// or below the previous one.
	ErrOutOfOrder = errors.New("mp4muxer: chunk out of order")
)

// storedSample is one converted sample awaiting container assembly.
type storedSample struct {
	data        []byte
	timestampUs int64
	isKeyframe  bool
}

// Muxer implements ports.Muxer for H.264 in MP4.
type Muxer struct {
	width   int
	height  int
	fps     float64
	started bool

	sps     []byte
	pps     []byte
	samples []storedSample
	lastIdx int64
}

// New creates a Muxer.
func New() *Muxer {
	return &Muxer{}
}

// Begin initializes the container track.
func (m *Muxer) Begin(width, height int, fps float64) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("mp4muxer: invalid track %dx%d @ %g fps", width, height, fps)
	}
	m.width = width
	m.height = height
	m.fps = fps
	m.started = true
	m.samples = nil
	m.sps = nil
	m.pps = nil
	m.lastIdx = -1
	return nil
}

// WriteChunk appends one Annex B chunk, converting it to an AVCC sample.
// SPS/PPS are lifted out of the stream into the decoder configuration.
func (m *Muxer) WriteChunk(chunk ports.EncodedChunk) error {
	if !m.started {
		return ErrNotInitialized
	}
	if chunk.FrameIndex <= m.lastIdx {
		return fmt.Errorf("%w: frame %d after %d", ErrOutOfOrder, chunk.FrameIndex, m.lastIdx)
	}
	m.lastIdx = chunk.FrameIndex

	nalus := parseAnnexB(chunk.Data)
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1F {
		case 7:
			if m.sps == nil {
				m.sps = append([]byte(nil), nalu...)
			}
		case 8:
			if m.pps == nil {
				m.pps = append([]byte(nil), nalu...)
			}
		}
	}

	m.samples = append(m.samples, storedSample{
		data:        convertToAVCC(nalus),
		timestampUs: chunk.TimestampUs,
		isKeyframe:  chunk.IsKeyframe,
	})
	return nil
}

// Finalize assembles and returns the complete container bytes.
func (m *Muxer) Finalize() ([]byte, error) {
	if !m.started {
		return nil, ErrNotInitialized
	}
	if len(m.samples) == 0 {
		return nil, ErrNoChunks
	}
	if m.sps == nil || m.pps == nil {
		return nil, fmt.Errorf("mp4muxer: missing SPS/PPS in stream")
	}

	timescale := uint32(m.fps * 1000)
	trackID := uint32(1)

	// Create initialization segment
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")
	trak := init.Moov.Trak

	avcC, err := mp4.CreateAvcC([][]byte{m.sps}, [][]byte{m.pps}, true)
	if err != nil {
		return nil, fmt.Errorf("create avcC: %w", err)
	}

	avc1 := mp4.CreateVisualSampleEntryBox("avc1", uint16(m.width), uint16(m.height), avcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)

	trak.Tkhd.Width = mp4.Fixed32(m.width << 16)
	trak.Tkhd.Height = mp4.Fixed32(m.height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}

	nominalDur := uint32(timescale) / uint32(m.fps)
	for i, sample := range m.samples {
		var dur uint32
		if i < len(m.samples)-1 {
			nextTs := m.samples[i+1].timestampUs
			dur = uint32((nextTs - sample.timestampUs) * int64(timescale) / 1000000)
		} else {
			dur = nominalDur
		}
		if dur == 0 {
			dur = nominalDur
		}

		decodeTime := uint64(sample.timestampUs) * uint64(timescale) / 1000000

		flags := mp4.NonSyncSampleFlags
		if sample.isKeyframe {
			flags = mp4.SyncSampleFlags
		}

		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(sample.data)),
				Dur:   dur,
			},
			DecodeTime: decodeTime,
			Data:       sample.data,
		})
	}

	var buf bytes.Buffer

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}

	return buf.Bytes(), nil
}

// parseAnnexB parses an Annex B byte stream into individual NAL units.
func parseAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	start := 0
	i := 0

	for i < len(data) {
		// Look for start code (0x00 0x00 0x01 or 0x00 0x00 0x00 0x01)
		if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 {
			startCodeLen := 0
			if data[i+2] == 1 {
				startCodeLen = 3
			} else if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
				startCodeLen = 4
			}

			if startCodeLen > 0 {
				if i > start {
					nalus = append(nalus, data[start:i])
				}
				i += startCodeLen
				start = i
				continue
			}
		}
		i++
	}

	if start < len(data) {
		nalus = append(nalus, data[start:])
	}

	return nalus
}

// convertToAVCC converts NAL units to AVCC format (length-prefixed),
// dropping parameter sets and access unit delimiters, which live in the
// container instead of the sample data.
func convertToAVCC(nalus [][]byte) []byte {
	totalSize := 0
	for _, nalu := range nalus {
		totalSize += 4 + len(nalu)
	}

	result := make([]byte, totalSize)
	offset := 0

	for _, nalu := range nalus {
		if len(nalu) > 0 {
			switch nalu[0] & 0x1F {
			case 7, 8, 9:
				continue
			}
		}

		length := len(nalu)
		result[offset] = byte(length >> 24)
		result[offset+1] = byte(length >> 16)
		result[offset+2] = byte(length >> 8)
		result[offset+3] = byte(length)
		offset += 4

		copy(result[offset:], nalu)
		offset += length
	}

	return result[:offset]
}

// Ensure Muxer implements ports.Muxer
var _ ports.Muxer = (*Muxer)(nil)
