// Package export publishes summaries of generated reports to downstream consumers.
package export

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// Summary is the compact record published for every freshly generated report.
type Summary struct {
	Address           string        `json:"address"`
	Year              int           `json:"year"`
	Persona           model.Persona `json:"persona"`
	PersonaConfidence float64       `json:"persona_confidence"`
	TotalTransactions int           `json:"total_transactions"`
	ActiveDays        int           `json:"active_days"`
	ProtocolCount     int           `json:"protocol_count"`
	SavingsUSD        float64       `json:"savings_usd"`
	GeneratedAt       int64         `json:"generated_at"`
}

// SummaryOf extracts the published fields from a report.
func SummaryOf(agg model.WrappedAggregate) Summary {
	return Summary{
		Address:           agg.Address,
		Year:              agg.Year,
		Persona:           agg.Persona,
		PersonaConfidence: agg.PersonaConfidence,
		TotalTransactions: agg.TotalTransactions,
		ActiveDays:        agg.ActiveDays,
		ProtocolCount:     len(agg.UniqueProtocols),
		SavingsUSD:        agg.GasSavings.SavingsUSD,
		GeneratedAt:       agg.GeneratedAt,
	}
}

// Sink receives batches of summaries.
type Sink interface {
	Name() string
	Publish(ctx context.Context, batch []Summary) error
	Close() error
}

// Exporter buffers summaries and flushes them to every sink when the batch
// is full or the interval elapses. Sink failures are logged and dropped.
type Exporter struct {
	sinks     []Sink
	batchSize int
	interval  time.Duration
	timeout   time.Duration

	mutex      sync.RWMutex
	batch      []Summary
	lastExport time.Time
	exported   int
	failed     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExporter creates an Exporter; call Start to begin periodic flushing.
func NewExporter(batchSize int, interval time.Duration, sinks ...Sink) *Exporter {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Exporter{
		sinks:     sinks,
		batchSize: batchSize,
		interval:  interval,
		timeout:   10 * time.Second,
		batch:     make([]Summary, 0, batchSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the periodic flush loop.
func (e *Exporter) Start() {
	e.wg.Add(1)
	go e.periodicExport()
	logrus.WithField("sinks", len(e.sinks)).Info("Report exporter started")
}

// Enqueue adds a summary; a full batch is flushed in the background.
func (e *Exporter) Enqueue(s Summary) {
	if len(e.sinks) == 0 {
		return
	}

	e.mutex.Lock()
	e.batch = append(e.batch, s)
	full := len(e.batch) >= e.batchSize
	e.mutex.Unlock()

	if full {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.Flush(e.ctx)
		}()
	}
}

func (e *Exporter) periodicExport() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Flush(e.ctx)
		case <-e.ctx.Done():
			return
		}
	}
}

// Flush publishes the pending batch to every sink in parallel.
func (e *Exporter) Flush(ctx context.Context) {
	e.mutex.Lock()
	if len(e.batch) == 0 {
		e.mutex.Unlock()
		return
	}
	pending := make([]Summary, len(e.batch))
	copy(pending, e.batch)
	e.batch = make([]Summary, 0, e.batchSize)
	e.lastExport = time.Now()
	e.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, sink := range e.sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			if err := sink.Publish(ctx, pending); err != nil {
				logrus.WithError(err).WithField("sink", sink.Name()).Errorf("Failed to export %d reports", len(pending))
				e.mutex.Lock()
				e.failed += len(pending)
				e.mutex.Unlock()
				return
			}
			e.mutex.Lock()
			e.exported += len(pending)
			e.mutex.Unlock()
		}(sink)
	}
	wg.Wait()
	logrus.Debugf("Exported %d reports to %d sinks", len(pending), len(e.sinks))
}

// Stop ends the flush loop, publishes what is left and closes the sinks.
func (e *Exporter) Stop() {
	e.cancel()
	e.wg.Wait()
	e.Flush(context.Background())
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil {
			logrus.WithError(err).WithField("sink", sink.Name()).Warn("Error closing export sink")
		}
	}
}

// Status reports the exporter's counters for the status endpoint.
func (e *Exporter) Status() map[string]interface{} {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	names := make([]string, 0, len(e.sinks))
	for _, s := range e.sinks {
		names = append(names, s.Name())
	}
	status := map[string]interface{}{
		"sinks":           names,
		"batch_size":      e.batchSize,
		"export_interval": e.interval.String(),
		"current_batch":   len(e.batch),
		"exported":        e.exported,
		"failed":          e.failed,
	}
	if !e.lastExport.IsZero() {
		status["last_export"] = e.lastExport.Format(time.RFC3339)
	}
	return status
}
