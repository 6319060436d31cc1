package pose

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"

	"github.com/banshee-data/posegrain/internal/monitoring"
)

// maxFrameLine bounds a single JSON frame. 33 landmarks per body with a few
// bodies fits comfortably.
const maxFrameLine = 1 << 20

// FrameReader decodes newline-delimited JSON frames produced by the external
// pose estimator.
type FrameReader struct {
	r       io.Reader
	dropped atomic.Uint64
	invalid atomic.Uint64
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Dropped returns how many decoded frames were discarded because the consumer
// was still busy with an earlier one.
func (f *FrameReader) Dropped() uint64 { return f.dropped.Load() }

// Invalid returns how many lines failed to decode.
func (f *FrameReader) Invalid() uint64 { return f.invalid.Load() }

// Monitor reads frames until EOF or ctx is cancelled and hands each one to
// out without blocking. A frame is dropped when out is full so a slow
// consumer always sees recent poses instead of a growing backlog.
func (f *FrameReader) Monitor(ctx context.Context, out chan<- *Frame) error {
	scan := bufio.NewScanner(f.r)
	scan.Buffer(make([]byte, 0, 64*1024), maxFrameLine)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
				}
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var frame Frame
			if err := json.Unmarshal([]byte(line), &frame); err != nil {
				if f.invalid.Add(1) == 1 {
					monitoring.Logf("pose: skipping undecodable frame: %v", err)
				}
				continue
			}
			select {
			case out <- &frame:
			default:
				f.dropped.Add(1)
			}
		}
	}
}
