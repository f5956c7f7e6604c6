package market

import (
	"context"
	"errors"
	"log/slog"
)

var errBreakerOpen = errors.New("provider circuit open")

// Service chains the two providers. Address lookups go straight to the
// aggregator; symbol lookups try the reference provider first and fall back
// to a free-text aggregator search resolved back through the address path.
// Each provider sits behind its own circuit breaker; a not-found answer is
// a healthy response and never trips it.
type Service struct {
	dex    *DexScreenerClient
	cmc    *CMCClient
	logger *slog.Logger

	dexBreaker *Breaker
	cmcBreaker *Breaker
}

func NewService(dex *DexScreenerClient, cmc *CMCClient, logger *slog.Logger) *Service {
	return &Service{
		dex:        dex,
		cmc:        cmc,
		logger:     logger,
		dexBreaker: NewBreaker(),
		cmcBreaker: NewBreaker(),
	}
}

func (s *Service) LookupByAddress(ctx context.Context, address string) (*TokenRecord, error) {
	if !s.dexBreaker.Allow() {
		s.logger.Warn("aggregator_circuit_open", "address", address)
		return nil, errBreakerOpen
	}

	rec, err := s.dex.TokenByAddress(ctx, address)
	s.record(s.dexBreaker, err)
	return rec, err
}

func (s *Service) LookupBySymbol(ctx context.Context, symbol string) (*TokenRecord, error) {
	if s.cmcBreaker.Allow() {
		rec, err := s.cmc.TokenBySymbol(ctx, symbol)
		s.record(s.cmcBreaker, err)
		if err == nil {
			return rec, nil
		}
		s.logger.Info("reference_lookup_failed", "symbol", symbol, "error", err)
	} else {
		s.logger.Warn("reference_circuit_open", "symbol", symbol)
	}

	if !s.dexBreaker.Allow() {
		s.logger.Warn("aggregator_circuit_open", "symbol", symbol)
		return nil, errBreakerOpen
	}

	address, searchErr := s.dex.SearchFirstTokenAddress(ctx, symbol)
	s.record(s.dexBreaker, searchErr)
	if searchErr != nil {
		// Surface the search error; it carries ErrNotFound when nothing
		// matched anywhere.
		return nil, searchErr
	}

	return s.LookupByAddress(ctx, address)
}

func (s *Service) record(b *Breaker, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		b.RecordFailure()
		return
	}
	b.RecordSuccess()
}
