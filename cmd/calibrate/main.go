// Command calibrate reads recorded pose frames and suggests a calibration
// window for each signal from the observed raw values.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/banshee-data/posegrain/internal/pose"
)

var (
	input   = flag.String("input", "-", "Recorded JSON lines frames, or - for stdin")
	jsonOut = flag.Bool("json", false, "Print suggestions as JSON")
)

type suggestion struct {
	Signal  pose.SignalID `json:"signal"`
	Samples int           `json:"samples"`
	Current pose.Window   `json:"current"`
	Suggest *pose.Window  `json:"suggested,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// collect extracts every signal from the primary body of each frame in r.
func collect(ctx context.Context, r io.Reader) (map[pose.SignalID][]float64, uint64, error) {
	reader := pose.NewFrameReader(r)
	frames := make(chan *pose.Frame, 256)
	errc := make(chan error, 1)
	go func() {
		defer close(frames)
		errc <- reader.Monitor(ctx, frames)
	}()

	samples := make(map[pose.SignalID][]float64, len(pose.Signals))
	for frame := range frames {
		body := frame.PrimaryBody()
		if body == nil {
			continue
		}
		for _, sig := range pose.Signals {
			if v, ok := pose.Extract(body, sig); ok {
				samples[sig] = append(samples[sig], v)
			}
		}
	}
	return samples, reader.Dropped(), <-errc
}

func suggest(samples map[pose.SignalID][]float64) []suggestion {
	out := make([]suggestion, 0, len(pose.Signals))
	for _, sig := range pose.Signals {
		current, _ := pose.WindowFor(sig)
		s := suggestion{Signal: sig, Samples: len(samples[sig]), Current: current}
		w, err := pose.SuggestWindow(samples[sig], current)
		if err != nil {
			s.Error = err.Error()
		} else {
			s.Suggest = &w
		}
		out = append(out, s)
	}
	return out
}

func printTable(w io.Writer, rows []suggestion) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNAL\tSAMPLES\tCURRENT\tSUGGESTED")
	for _, r := range rows {
		cur := fmt.Sprintf("%.3f..%.3f ^%.2f", r.Current.ObservationMin, r.Current.ObservationMax, r.Current.Exponent)
		sug := r.Error
		if r.Suggest != nil {
			sug = fmt.Sprintf("%.3f..%.3f ^%.2f", r.Suggest.ObservationMin, r.Suggest.ObservationMax, r.Suggest.Exponent)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Signal, r.Samples, cur, sug)
	}
	return tw.Flush()
}

func main() {
	flag.Parse()

	var r io.Reader = os.Stdin
	if *input != "-" && *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("failed to open recording: %v", err)
		}
		defer f.Close()
		r = f
	}

	samples, dropped, err := collect(context.Background(), r)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("failed to read frames: %v", err)
	}
	if dropped > 0 {
		log.Printf("warning: %d frames dropped while reading", dropped)
	}

	rows := suggest(samples)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			log.Fatalf("failed to write JSON: %v", err)
		}
		return
	}
	if err := printTable(os.Stdout, rows); err != nil {
		log.Fatalf("failed to write table: %v", err)
	}
}
