// Package pipeline turns an address into a finished Sui Wrapped report.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/sui-wrapped/internal/aggregate"
	"github.com/yourorg/sui-wrapped/internal/cache"
	"github.com/yourorg/sui-wrapped/internal/classify"
	"github.com/yourorg/sui-wrapped/internal/export"
	"github.com/yourorg/sui-wrapped/internal/fetch"
	"github.com/yourorg/sui-wrapped/internal/model"
	"github.com/yourorg/sui-wrapped/internal/nft"
	"github.com/yourorg/sui-wrapped/internal/otel"
	"github.com/yourorg/sui-wrapped/internal/persona"
	"github.com/yourorg/sui-wrapped/internal/validation"
)

// Publisher receives summaries of freshly generated reports.
type Publisher interface {
	Enqueue(export.Summary)
}

// Orchestrator wires fetch, classification, aggregation and persona scoring.
// It is safe for concurrent use.
type Orchestrator struct {
	ledger     fetch.Ledger
	aggregator *aggregate.Aggregator
	scorer     *persona.Scorer
	scanner    *nft.Scanner
	cache      *cache.Cache
	publisher  Publisher
	metrics    *Metrics
	history    fetch.HistoryOptions
	now        func() time.Time
}

// New creates an Orchestrator over ledger with default components and no cache.
func New(ledger fetch.Ledger, classifier *classify.Classifier) *Orchestrator {
	return &Orchestrator{
		ledger:     ledger,
		aggregator: aggregate.New(classifier),
		scorer:     persona.New(nil),
		scanner:    nft.NewScanner(ledger),
		history: fetch.HistoryOptions{
			PageSize:  50,
			PageDelay: 25 * time.Millisecond,
			Budget:    55 * time.Second,
		},
		now: time.Now,
	}
}

// WithCache memoizes year reports in c.
func (o *Orchestrator) WithCache(c *cache.Cache) *Orchestrator {
	o.cache = c
	return o
}

// WithScanner replaces the NFT scanner.
func (o *Orchestrator) WithScanner(s *nft.Scanner) *Orchestrator {
	o.scanner = s
	return o
}

// WithScorer replaces the persona scorer.
func (o *Orchestrator) WithScorer(s *persona.Scorer) *Orchestrator {
	o.scorer = s
	return o
}

// WithPricing overrides the gas comparison pricing.
func (o *Orchestrator) WithPricing(p aggregate.Pricing) *Orchestrator {
	o.aggregator.WithPricing(p)
	return o
}

// WithPublisher publishes a summary after each fresh generation.
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// WithMetrics records pipeline metrics.
func (o *Orchestrator) WithMetrics(m *Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithHistoryOptions sets pagination bounds for the transaction fetch.
func (o *Orchestrator) WithHistoryOptions(opts fetch.HistoryOptions) *Orchestrator {
	if opts.Now == nil {
		opts.Now = o.history.Now
	}
	o.history = opts
	return o
}

// WithClock replaces the time source used for year validation and generatedAt.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.history.Now = now
	return o
}

// Generate returns the report for address over the UTC calendar year, from cache when fresh.
func (o *Orchestrator) Generate(ctx context.Context, address string, year int) (model.WrappedAggregate, error) {
	addr, err := validation.NormalizeAddress(address)
	if err != nil {
		o.metrics.observeGeneration(err, 0)
		return model.WrappedAggregate{}, err
	}
	window, err := validation.YearWindow(year, o.now())
	if err != nil {
		o.metrics.observeGeneration(err, 0)
		return model.WrappedAggregate{}, err
	}

	if o.cache == nil {
		return o.generate(ctx, addr, year, window)
	}

	key := cache.Key{Address: addr, Year: year}
	agg, hit, err := o.cache.GetOrCompute(ctx, key, func(ctx context.Context) (model.WrappedAggregate, error) {
		return o.generate(ctx, addr, year, window)
	})
	o.metrics.observeCache(hit)
	if hit {
		logrus.WithFields(logrus.Fields{"address": addr, "year": year}).Info("Serving cached report")
	}
	return agg, err
}

// GenerateRange builds an uncached report over an explicit [start, end] range.
func (o *Orchestrator) GenerateRange(ctx context.Context, address string, start, end time.Time) (model.WrappedAggregate, error) {
	addr, err := validation.NormalizeAddress(address)
	if err != nil {
		o.metrics.observeGeneration(err, 0)
		return model.WrappedAggregate{}, err
	}
	window, err := validation.RangeWindow(start, end)
	if err != nil {
		o.metrics.observeGeneration(err, 0)
		return model.WrappedAggregate{}, err
	}
	return o.generate(ctx, addr, window.Start.Year(), window)
}

func (o *Orchestrator) generate(ctx context.Context, address string, year int, window model.Window) (agg model.WrappedAggregate, err error) {
	started := time.Now()
	ctx, span := otel.StartSpan(ctx, "wrapped.generate", address)
	log := logrus.WithFields(logrus.Fields{"address": address, "year": year})
	defer func() {
		if err != nil {
			err = asCoded(err)
			otel.RecordError(ctx, err)
			if errors.Is(err, model.ErrNoTransactions) {
				log.Info("No transactions in window")
			} else {
				log.WithError(err).Error("Report generation failed")
			}
		}
		o.metrics.observeGeneration(err, time.Since(started).Seconds())
		span.End()
	}()

	log.Info("Generating report")

	txs, err := o.fetchHistory(ctx, address, window)
	if err != nil {
		return model.WrappedAggregate{}, err
	}
	if len(txs) == 0 {
		return model.WrappedAggregate{}, model.NewError(model.CodeNoTransactions, nil,
			"no transactions found for %s between %s and %s",
			address, window.Start.Format(time.DateOnly), window.End.Format(time.DateOnly))
	}

	var (
		first    *model.TransactionRecord
		holdings nft.Result
		balance  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := fetch.LifetimeFirst(gctx, o.ledger, address)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			log.WithError(err).Warn("Lifetime first transaction unavailable, using window start")
			return nil
		}
		first = rec
		return nil
	})
	g.Go(func() error {
		scanCtx, scanSpan := otel.StartSpan(gctx, "wrapped.nft_scan", address)
		defer scanSpan.End()
		res, err := o.scanner.Scan(scanCtx, address)
		if err != nil {
			otel.RecordError(scanCtx, err)
			return err
		}
		holdings = res
		o.metrics.observePages("objects", res.Pages)
		return nil
	})
	g.Go(func() error {
		bal, err := o.ledger.Balance(gctx, address, fetch.SuiCoinType)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			log.WithError(err).Warn("Balance lookup failed")
			return nil
		}
		balance = bal.String()
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.WrappedAggregate{}, err
	}

	agg, err = o.aggregator.Aggregate(address, year, txs, first)
	if err != nil {
		return model.WrappedAggregate{}, err
	}
	aggregate.WithHoldings(&agg, holdings.Holdings)
	agg.CurrentBalanceMist = balance

	p := o.scorer.Score(persona.StatsFrom(agg))
	agg.Persona = p.Persona
	agg.PersonaConfidence = p.Confidence
	agg.PersonaReasoning = p.Reasoning
	agg.GeneratedAt = o.now().UnixMilli()

	if o.publisher != nil {
		o.publisher.Enqueue(export.SummaryOf(agg))
	}

	log.WithFields(logrus.Fields{
		"transactions": agg.TotalTransactions,
		"protocols":    len(agg.UniqueProtocols),
		"persona":      agg.Persona,
		"duration":     time.Since(started).String(),
	}).Info("Report generated")
	return agg, nil
}

func (o *Orchestrator) fetchHistory(ctx context.Context, address string, window model.Window) ([]model.TransactionRecord, error) {
	ctx, span := otel.StartSpan(ctx, "wrapped.fetch_history", address)
	defer span.End()

	history, err := fetch.FetchHistory(ctx, o.ledger, address, window, o.history)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}
	o.metrics.observePages("transactions", history.Pages)
	if history.Partial {
		logrus.WithField("address", address).Warnf("Using partial history of %d transactions", len(history.Transactions))
	}
	return history.Transactions, nil
}

// asCoded passes coded errors through and wraps everything else as a generation failure.
func asCoded(err error) error {
	var coded *model.Error
	if errors.As(err, &coded) {
		return err
	}
	return model.NewError(model.CodeGenerationFailed, err, "failed to generate wrapped data")
}
