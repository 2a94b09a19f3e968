package writethrough

import (
	"context"
	"sync"
	"time"

	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/util/worker"
	"github.com/pingcap-incubator/tinystm/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var batchCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tinystm",
		Subsystem: "writethrough",
		Name:      "batches_total",
		Help:      "Counter of committed write batches handed to the sink by result.",
	}, []string{"result"})

func init() {
	prometheus.MustRegister(batchCounter)
}

type batchTask struct {
	writes []stm.KeyValue
}

type sinkHandler struct {
	sink    Sink
	timeout time.Duration
	written *atomic.Uint64
}

func (h *sinkHandler) Handle(t worker.Task) {
	batch := t.(batchTask)
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.sink.Write(ctx, batch.writes); err != nil {
		batchCounter.WithLabelValues("error").Inc()
		log.Warnf("write-through failed keys=%d err=%v", len(batch.writes), err)
		return
	}
	h.written.Inc()
	batchCounter.WithLabelValues("ok").Inc()
}

// Publisher is a stm.CommitListener which hands committed writes to a Sink on a background worker. OnCommit never
// blocks: when the queue is full the batch is dropped and counted.
type Publisher struct {
	sink    Sink
	worker  *worker.Worker
	wg      sync.WaitGroup
	written atomic.Uint64
	dropped atomic.Uint64
}

// NewPublisher starts a publisher queueing up to queueSize batches. Each sink write is bounded by timeout.
func NewPublisher(sink Sink, queueSize int, timeout time.Duration) *Publisher {
	p := &Publisher{sink: sink}
	p.worker = worker.NewWorkerWithCapacity("write-through", &p.wg, queueSize)
	p.worker.Start(&sinkHandler{sink: sink, timeout: timeout, written: &p.written})
	return p
}

func (p *Publisher) OnCommit(writes []stm.KeyValue) {
	if len(writes) == 0 {
		return
	}
	if !p.worker.TrySend(batchTask{writes: writes}) {
		p.dropped.Inc()
		batchCounter.WithLabelValues("dropped").Inc()
		log.Warnf("write-through queue is full, dropped keys=%d", len(writes))
	}
}

// Written returns the number of batches the sink accepted.
func (p *Publisher) Written() uint64 {
	return p.written.Load()
}

// Dropped returns the number of batches lost to a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close waits for the queued batches to be written and closes the sink.
func (p *Publisher) Close() error {
	p.worker.Stop()
	p.wg.Wait()
	return p.sink.Close()
}
