// Package enrichment decodes discovered token accounts and attaches
// Metaplex display metadata to them.
package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-token-transfer/internal/domain"
	"solana-token-transfer/internal/layout"
	"solana-token-transfer/internal/observability"
	"solana-token-transfer/internal/solana"
	"solana-token-transfer/internal/storage"
)

// DefaultConcurrency is the number of holdings enriched in parallel.
const DefaultConcurrency = 8

// Enrichment outcomes, used as metric labels.
const (
	resultBranded      = "branded"
	resultUnbranded    = "unbranded"
	resultNoImage      = "no_image"
	resultCacheHit     = "cache_hit"
	resultDecodeError  = "decode_error"
	resultLookupError  = "lookup_error"
	resultParseError   = "parse_error"
	resultOffchainFail = "offchain_error"
)

// Enricher turns raw holdings into display-ready holdings.
type Enricher struct {
	rpc         solana.AccountReader
	fetcher     ImageFetcher
	cache       storage.TokenMetadataStore
	concurrency int
	log         logrus.FieldLogger
	now         func() time.Time
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithCache enables the metadata cache.
func WithCache(cache storage.TokenMetadataStore) Option {
	return func(e *Enricher) {
		e.cache = cache
	}
}

// WithConcurrency sets the number of holdings processed at once.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Enricher) {
		e.log = log
	}
}

// NewEnricher creates an Enricher.
func NewEnricher(rpc solana.AccountReader, fetcher ImageFetcher, opts ...Option) *Enricher {
	e := &Enricher{
		rpc:         rpc,
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		log:         logrus.StandardLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns one holding per raw holding, in the same order.
// A failure on one holding degrades that holding only; the list is
// returned once every holding has been processed.
// The only error returned is the context's.
func (e *Enricher) Enrich(ctx context.Context, raws []domain.RawHolding) ([]domain.Holding, error) {
	start := time.Now()
	holdings := make([]domain.Holding, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range raws {
		g.Go(func() error {
			holdings[i] = e.enrichOne(gctx, raws[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observability.RecordEnrichmentDuration(time.Since(start).Seconds())
	return holdings, nil
}

func (e *Enricher) enrichOne(ctx context.Context, raw domain.RawHolding) domain.Holding {
	h := domain.Holding{Address: raw.Address}
	log := e.log.WithField("holding", raw.Address)

	acc, err := layout.DecodeTokenAccount(raw.Data)
	if err != nil {
		log.WithError(err).Warn("decode token account")
		observability.RecordEnrichment(resultDecodeError)
		h.DecodeErr = err.Error()
		return h
	}
	h.Mint = acc.Mint
	h.Owner = acc.Owner
	h.Amount = acc.Amount

	meta, result := e.resolve(ctx, acc.Mint, log.WithField("mint", acc.Mint))
	observability.RecordEnrichment(result)
	if meta == nil || !meta.Found {
		return h
	}

	h.Name = meta.Name
	h.Symbol = meta.Symbol
	h.URI = meta.URI
	h.Logo = meta.Image
	return h
}

// resolve returns the metadata for mint, consulting the cache first.
// A nil result means the lookup failed and the holding shows only its balance.
func (e *Enricher) resolve(ctx context.Context, mint string, log logrus.FieldLogger) (*domain.TokenMetadata, string) {
	if e.cache != nil {
		cached, err := e.cache.GetByMint(ctx, mint)
		switch {
		case err == nil:
			return cached, resultCacheHit
		case !errors.Is(err, storage.ErrNotFound):
			log.WithError(err).Warn("metadata cache read")
		}
	}

	meta, result, cacheable := e.lookup(ctx, mint, log)

	if cacheable && e.cache != nil {
		if err := e.cache.Put(ctx, meta); err != nil {
			log.WithError(err).Warn("metadata cache write")
		}
	}
	return meta, result
}

// lookup reads the metadata account and the off-chain document.
// cacheable is false when any step failed transiently.
func (e *Enricher) lookup(ctx context.Context, mint string, log logrus.FieldLogger) (meta *domain.TokenMetadata, result string, cacheable bool) {
	metaAddr, err := solana.FindMetadataAddress(mint)
	if err != nil {
		log.WithError(err).Warn("derive metadata address")
		return nil, resultLookupError, false
	}

	info, err := e.rpc.GetAccountInfo(ctx, metaAddr)
	if err != nil {
		log.WithError(err).Warn("fetch metadata account")
		return nil, resultLookupError, false
	}

	meta = &domain.TokenMetadata{
		Mint:      mint,
		FetchedAt: e.now().UnixMilli(),
	}
	if info == nil {
		return meta, resultUnbranded, true
	}

	parsed, err := layout.DecodeMetadata(info.Data)
	if err != nil {
		log.WithError(err).Warn("parse metadata account")
		return nil, resultParseError, false
	}

	meta.Found = true
	meta.Name = &parsed.Name
	meta.Symbol = &parsed.Symbol
	if parsed.URI == "" {
		return meta, resultNoImage, true
	}
	meta.URI = &parsed.URI

	image, err := e.fetcher.FetchImage(ctx, parsed.URI)
	if err != nil {
		log.WithError(err).WithField("uri", parsed.URI).Info("off-chain metadata unavailable")
		if errors.Is(err, ErrNoImage) {
			return meta, resultNoImage, true
		}
		return meta, resultOffchainFail, false
	}
	meta.Image = &image
	return meta, resultBranded, true
}
