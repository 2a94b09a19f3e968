package bench

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap/errors"
)

// Metric names.
const (
	EXEC     = "EXEC"
	READ     = "READ"
	BACKOFF  = "BACKOFF"
	TOTAL    = "TOTAL"
	ATTEMPTS = "ATTEMPTS"
)

var metricNames = []string{EXEC, READ, BACKOFF, TOTAL, ATTEMPTS}

// SummaryHeaders names the columns of Recorder.Summary. Durations are in microseconds.
var SummaryHeaders = []string{"Metric", "Count", "Avg", "Min", "Max", "P50", "P99", "P99.9"}

// Sample is the timing of one committed transfer.
type Sample struct {
	Pair
	Timings stm.Timings
}

// Recorder collects the timings of committed transfers. It is safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	hists       map[string]*hdrhistogram.Histogram
	keepSamples bool
	samples     []Sample
}

// NewRecorder creates a recorder. Individual samples are only kept when keepSamples is set, for WriteCSV.
func NewRecorder(keepSamples bool) *Recorder {
	r := &Recorder{
		hists:       make(map[string]*hdrhistogram.Histogram, len(metricNames)),
		keepSamples: keepSamples,
	}
	for _, name := range metricNames {
		r.hists[name] = hdrhistogram.New(1, 24*60*60*1000*1000, 3)
	}
	return r
}

func (r *Recorder) Record(p Pair, t stm.Timings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hists[EXEC].RecordValue(t.Exec.Microseconds())
	r.hists[READ].RecordValue(t.Read.Microseconds())
	r.hists[BACKOFF].RecordValue(t.Backoff.Microseconds())
	r.hists[TOTAL].RecordValue(t.Total().Microseconds())
	r.hists[ATTEMPTS].RecordValue(int64(t.Attempts))
	if r.keepSamples {
		r.samples = append(r.samples, Sample{Pair: p, Timings: t})
	}
}

// Count returns the number of recorded transfers.
func (r *Recorder) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hists[TOTAL].TotalCount()
}

// Summary returns one row per metric, in the columns of SummaryHeaders.
func (r *Recorder) Summary() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([][]string, 0, len(metricNames))
	for _, name := range metricNames {
		h := r.hists[name]
		rows = append(rows, []string{
			name,
			formatInt(h.TotalCount()),
			formatMean(h.Mean()),
			formatInt(h.Min()),
			formatInt(h.Max()),
			formatInt(h.ValueAtPercentile(50)),
			formatInt(h.ValueAtPercentile(99)),
			formatInt(h.ValueAtPercentile(99.9)),
		})
	}
	return rows
}

// WriteCSV writes the kept samples as `i,j,exec_us,read_us,backoff_us`, ordered by i then j.
func (r *Recorder) WriteCSV(w io.Writer) error {
	r.mu.Lock()
	samples := make([]Sample, len(r.samples))
	copy(samples, r.samples)
	r.mu.Unlock()

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].From != samples[j].From {
			return samples[i].From < samples[j].From
		}
		return samples[i].To < samples[j].To
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"i", "j", "exec_us", "read_us", "backoff_us"}); err != nil {
		return errors.Trace(err)
	}
	for _, s := range samples {
		err := cw.Write([]string{
			strconv.FormatUint(uint64(s.From), 10),
			strconv.FormatUint(uint64(s.To), 10),
			micros(s.Timings.Exec),
			micros(s.Timings.Read),
			micros(s.Timings.Backoff),
		})
		if err != nil {
			return errors.Trace(err)
		}
	}
	cw.Flush()
	return errors.Trace(cw.Error())
}

func micros(d time.Duration) string {
	return strconv.FormatInt(d.Microseconds(), 10)
}
