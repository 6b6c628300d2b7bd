// Package format reads and writes the plain-text file formats the
// reference tracker's command-line driver uses to feed an mht.Engine and
// to dump its results: the frame-sequence control file, the per-frame
// corner files, and the track output file (spec section 6). Nothing in
// package mht imports this package; it is a one-way adjunct that turns
// those files into mht.Batch values and mht.Engine results back into
// text, the way trackCorners.c's readCorners/writeCornerTrackFile do
// around the tracker's own scan loop.
package format

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/LdDl/mht-go/mht"
)

// Sequence is the parsed frame-sequence control file: an image basename,
// the per-frame corner counts, the frame index the sequence starts at,
// and the nominal inter-frame time delta (carried through to each Batch
// but, like the reference's CONSTVEL_STATE::setup, not consulted by the
// constant-velocity model's own propagation).
type Sequence struct {
	Basename   string
	StartFrame int
	TimeDelta  float64
	Counts     []int
}

// ReadSequence parses a control file: "basename totalFrames startFrame
// [timeDelta]" followed by totalFrames whitespace-separated corner
// counts, exactly as trackCorners.c's readCorners reads it with
// std::ifstream's operator>> (whitespace/newline-agnostic tokenization).
func ReadSequence(r io.Reader) (*Sequence, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func(what string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", errors.Wrapf(err, "mht/format: reading %s", what)
			}
			return "", errors.Errorf("mht/format: control file ended before %s", what)
		}
		return sc.Text(), nil
	}

	basename, err := next("basename")
	if err != nil {
		return nil, err
	}
	totalStr, err := next("total frame count")
	if err != nil {
		return nil, err
	}
	total, err := strconv.Atoi(totalStr)
	if err != nil {
		return nil, errors.Wrapf(err, "mht/format: parsing total frame count %q", totalStr)
	}
	startStr, err := next("start frame")
	if err != nil {
		return nil, err
	}
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, errors.Wrapf(err, "mht/format: parsing start frame %q", startStr)
	}

	seq := &Sequence{Basename: basename, StartFrame: start, TimeDelta: 1.0}

	for i := 0; i < total; i++ {
		s, err := next(fmt.Sprintf("corner count %d", i))
		if err != nil {
			return nil, err
		}
		// The first token after startFrame is an optional float time
		// delta rather than a corner count whenever it fails to parse as
		// one; the reference reader instead peels it off the remainder
		// of the header line before the count loop begins, which this
		// token-stream reader cannot distinguish up front, so it is
		// tried here on the very first count slot only.
		if i == 0 {
			if f, err2 := strconv.ParseFloat(s, 64); err2 == nil && strings.ContainsAny(s, ".eE") {
				seq.TimeDelta = f
				s, err = next(fmt.Sprintf("corner count %d", i))
				if err != nil {
					return nil, err
				}
			}
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Wrapf(err, "mht/format: parsing corner count %q", s)
		}
		seq.Counts = append(seq.Counts, n)
	}
	return seq, nil
}

// ReadFrameFile parses one per-frame corner file: `want` lines, each
// "x y" followed by the 25-sample texture grid and a trailing detection
// id, matching readCorners' sscanf format string.
func ReadFrameFile(r io.Reader, frameNo int, want int) ([]mht.DetectionInput, error) {
	sc := bufio.NewScanner(r)
	out := make([]mht.DetectionInput, 0, want)
	for len(out) < want && sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2+mht.TextureDim*mht.TextureDim+1 {
			return nil, errors.Errorf("mht/format: frame %d line %q has %d fields, want %d",
				frameNo, line, len(fields), 2+mht.TextureDim*mht.TextureDim+1)
		}
		vals := make([]float64, len(fields)-1)
		for i := 0; i < len(fields)-1; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "mht/format: frame %d field %d", frameNo, i)
			}
			vals[i] = v
		}
		id, err := strconv.ParseUint(fields[len(fields)-1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "mht/format: frame %d detection id", frameNo)
		}
		out = append(out, mht.DetectionInput{
			X:           vals[0],
			Y:           vals[1],
			Texture:     vals[2 : 2+mht.TextureDim*mht.TextureDim],
			FrameNo:     frameNo,
			DetectionID: id,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "mht/format: reading frame %d", frameNo)
	}
	if len(out) < want {
		return nil, errors.Errorf("mht/format: frame %d has %d detections, want %d", frameNo, len(out), want)
	}
	return out, nil
}

// LoadBatches reads the control file at controlPath and every per-frame
// corner file it names, resolved as dirName/basename.N (N running from
// StartFrame), and returns one mht.Batch per frame in sequence order —
// the same upfront-read-everything shape as trackCorners.c's readCorners,
// which fully populates inputData before the tracker's scan loop starts.
func LoadBatches(controlPath, dirName string) ([]mht.Batch, error) {
	f, err := os.Open(controlPath)
	if err != nil {
		return nil, errors.Wrap(err, "mht/format: opening control file")
	}
	defer f.Close()

	seq, err := ReadSequence(f)
	if err != nil {
		return nil, err
	}

	batches := make([]mht.Batch, 0, len(seq.Counts))
	frameNo := seq.StartFrame
	for _, want := range seq.Counts {
		path := filepath.Join(dirName, fmt.Sprintf("%s.%d", seq.Basename, frameNo))
		ff, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "mht/format: opening frame file %s", path)
		}
		dets, err := ReadFrameFile(ff, frameNo, want)
		ff.Close()
		if err != nil {
			return nil, err
		}
		batches = append(batches, mht.Batch{TimeDelta: seq.TimeDelta, Detections: dets})
		frameNo++
	}
	return batches, nil
}

// RunSequence feeds every batch to e in order, matching trackCorners.c's
// main loop: enqueue, scan, and stop enqueueing further batches once the
// engine's current time passes e.ScanEndTime(). It calls e.Clear() once
// the sequence (or the end-time bound) is exhausted, matching main()'s
// closing mht.clear() call.
func RunSequence(e *mht.Engine, batches []mht.Batch) error {
	for _, b := range batches {
		if e.CurrentTime() > e.ScanEndTime() {
			break
		}
		e.AddReports(b)
		if _, err := e.Scan(); err != nil {
			return errors.Wrap(err, "mht/format: scanning batch")
		}
	}
	e.Clear()
	return nil
}
