// Package mp4source provides a random-access decode cursor over one MP4
// video track. The sample table is parsed with mp4ff so seeks can target
// exact sample timestamps; pixel decoding runs in an ffmpeg subprocess
// streaming raw RGBA frames.
package mp4source

import (
	"fmt"
	"os"
	"sort"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/screenshow/pkg/ports"
)

// sampleMeta is one entry of the decode-time index.
type sampleMeta struct {
	tsUs  int64
	durUs int64
	sync  bool
}

// trackIndex is the parsed sample table of the video track.
type trackIndex struct {
	width      int
	height     int
	codec      string
	timescale  uint32
	durationUs int64
	samples    []sampleMeta
}

// indexFile parses the MP4 at path and builds the video track index.
func indexFile(path string) (*trackIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	mp4File, err := mp4.DecodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	if mp4File.IsFragmented() {
		return indexFragmented(mp4File)
	}
	return indexProgressive(mp4File)
}

// findVideoTrak returns the first video trak under moov.
func findVideoTrak(moov *mp4.MoovBox) *mp4.TrakBox {
	if moov == nil {
		return nil
	}
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

// trakHeader fills the dimension, codec, and timescale fields from trak.
func (idx *trackIndex) trakHeader(trak *mp4.TrakBox) {
	idx.timescale = 1000
	if trak.Mdia != nil && trak.Mdia.Mdhd != nil {
		idx.timescale = trak.Mdia.Mdhd.Timescale
	}
	if trak.Mdia != nil && trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsd != nil {
		for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
			if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
				idx.width = int(vse.Width)
				idx.height = int(vse.Height)
				idx.codec = vse.Type()
				break
			}
		}
	}
}

func indexProgressive(mp4File *mp4.File) (*trackIndex, error) {
	trak := findVideoTrak(mp4File.Moov)
	if trak == nil {
		return nil, fmt.Errorf("no video track found")
	}
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stts == nil || stbl.Stsz == nil {
		return nil, fmt.Errorf("incomplete sample table")
	}

	idx := &trackIndex{}
	idx.trakHeader(trak)

	// Sync samples; an absent stss box means every sample is a keyframe.
	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	// Walk the stts run-length entries directly; per-sample GetDecodeTime
	// lookups are quadratic on long recordings.
	var decodeTime uint64
	var sampleNr uint32 = 1
	for i := range stbl.Stts.SampleCount {
		count := stbl.Stts.SampleCount[i]
		delta := stbl.Stts.SampleTimeDelta[i]
		for s := uint32(0); s < count; s++ {
			idx.samples = append(idx.samples, sampleMeta{
				tsUs:  scaleToUs(decodeTime, idx.timescale),
				durUs: scaleToUs(uint64(delta), idx.timescale),
				sync:  syncSamples[sampleNr] || len(syncSamples) == 0,
			})
			decodeTime += uint64(delta)
			sampleNr++
		}
	}
	idx.durationUs = scaleToUs(decodeTime, idx.timescale)

	if len(idx.samples) == 0 {
		return nil, fmt.Errorf("video track has no samples")
	}
	return idx, nil
}

func indexFragmented(mp4File *mp4.File) (*trackIndex, error) {
	if mp4File.Init == nil {
		return nil, fmt.Errorf("no init segment found")
	}
	trak := findVideoTrak(mp4File.Init.Moov)
	if trak == nil {
		return nil, fmt.Errorf("no video track found")
	}

	idx := &trackIndex{}
	idx.trakHeader(trak)
	trackID := trak.Tkhd.TrackID

	var trex *mp4.TrexBox
	if mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var end uint64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trackID {
					continue
				}
				var baseDecodeTime uint64
				if traf.Tfdt != nil {
					baseDecodeTime = traf.Tfdt.BaseMediaDecodeTime()
				}
				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("get samples: %w", err)
				}
				currentTime := baseDecodeTime
				for _, sample := range samples {
					idx.samples = append(idx.samples, sampleMeta{
						tsUs:  scaleToUs(currentTime, idx.timescale),
						durUs: scaleToUs(uint64(sample.Dur), idx.timescale),
						sync:  sample.Flags == mp4.SyncSampleFlags,
					})
					currentTime += uint64(sample.Dur)
				}
				if currentTime > end {
					end = currentTime
				}
			}
		}
	}
	idx.durationUs = scaleToUs(end, idx.timescale)

	if len(idx.samples) == 0 {
		return nil, fmt.Errorf("video track has no samples")
	}
	return idx, nil
}

// sampleAt returns the index of the sample whose display interval covers
// tsUs, or -1 when tsUs is at or past track end.
func (idx *trackIndex) sampleAt(tsUs int64) int {
	if tsUs >= idx.durationUs {
		return -1
	}
	if tsUs < 0 {
		return 0
	}
	// First sample starting after tsUs, minus one.
	n := sort.Search(len(idx.samples), func(i int) bool {
		return idx.samples[i].tsUs > tsUs
	})
	if n == 0 {
		return 0
	}
	return n - 1
}

// info converts the index into the port-level track description.
func (idx *trackIndex) info() ports.SourceInfo {
	fps := 0.0
	if idx.durationUs > 0 {
		fps = float64(len(idx.samples)) * 1e6 / float64(idx.durationUs)
	}
	return ports.SourceInfo{
		Width:      idx.width,
		Height:     idx.height,
		DurationUs: idx.durationUs,
		FrameCount: int64(len(idx.samples)),
		FPS:        fps,
		Codec:      idx.codec,
	}
}

func scaleToUs(t uint64, timescale uint32) int64 {
	if timescale == 0 {
		return int64(t)
	}
	return int64(t * 1e6 / uint64(timescale))
}

// Probe parses the MP4 at path and returns its video track description
// without starting a decoder.
func Probe(path string) (ports.SourceInfo, error) {
	idx, err := indexFile(path)
	if err != nil {
		return ports.SourceInfo{}, err
	}
	return idx.info(), nil
}
