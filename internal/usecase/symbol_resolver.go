package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
)

// Strategy names reported in a Resolution.
const (
	StrategyCache       = "cache"
	StrategyExact       = "exact"
	StrategyCase        = "case"
	StrategyNormalized  = "normalized"
	StrategyPrefix      = "prefix"
	StrategyContains    = "contains"
	StrategyFuzzy       = "fuzzy"
	StrategyDescription = "description"
	StrategyTransform   = "transform"
	StrategyFallback    = "fallback"
)

type Resolution struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
}

type CacheStats struct {
	CachedCount   int               `json:"cached_mappings"`
	UniverseCount int               `json:"broker_symbols_count"`
	Entries       map[string]string `json:"cache_contents"`
}

// symbolUniverse is an immutable snapshot of the terminal's symbol names.
type symbolUniverse struct {
	names   []string
	members map[string]struct{}
}

func newSymbolUniverse(names []string) *symbolUniverse {
	u := &symbolUniverse{
		names:   names,
		members: make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		u.members[n] = struct{}{}
	}
	return u
}

func (u *symbolUniverse) has(name string) bool {
	_, ok := u.members[name]
	return ok
}

type matchOutcome struct {
	found bool
	name  string
}

func matched(name string) matchOutcome { return matchOutcome{found: true, name: name} }

type matchStrategy struct {
	name  string
	match func(r *SymbolResolver, ctx context.Context, symbol string, u *symbolUniverse) matchOutcome
}

// cascade is ordered from cheap and precise to expensive and loose.
var cascade = []matchStrategy{
	{StrategyExact, (*SymbolResolver).matchExact},
	{StrategyCase, (*SymbolResolver).matchCase},
	{StrategyNormalized, (*SymbolResolver).matchNormalized},
	{StrategyPrefix, (*SymbolResolver).matchPrefix},
	{StrategyContains, (*SymbolResolver).matchContains},
	{StrategyFuzzy, (*SymbolResolver).matchFuzzy},
	{StrategyDescription, (*SymbolResolver).matchDescription},
	{StrategyTransform, (*SymbolResolver).matchTransform},
}

// SymbolResolver maps external (TradingView) symbol names onto the names the
// terminal actually trades. One resolver belongs to one terminal connection.
// Resolutions are cached for the lifetime of the resolver, including
// fallbacks, until ClearCache or Reset.
type SymbolResolver struct {
	source domain.SymbolSource
	logger *zap.Logger

	mu       sync.RWMutex
	cache    map[string]string
	universe *symbolUniverse
}

func NewSymbolResolver(source domain.SymbolSource, logger *zap.Logger) *SymbolResolver {
	return &SymbolResolver{
		source:   source,
		logger:   logger,
		cache:    make(map[string]string),
		universe: newSymbolUniverse(nil),
	}
}

func (r *SymbolResolver) Resolve(ctx context.Context, external string) string {
	return r.ResolveDetailed(ctx, external).Symbol
}

// ResolveDetailed runs the cascade and reports which strategy produced the
// result. It never fails: when nothing matches the input is returned as-is.
func (r *SymbolResolver) ResolveDetailed(ctx context.Context, external string) Resolution {
	symbol := strings.TrimSpace(external)
	if symbol == "" {
		r.logger.Error("Empty symbol provided for mapping")
		return Resolution{Symbol: symbol, Strategy: StrategyFallback}
	}

	r.mu.RLock()
	cached, ok := r.cache[symbol]
	r.mu.RUnlock()
	if ok {
		r.logger.Debug("Using cached symbol mapping", zap.String("symbol", symbol), zap.String("resolved", cached))
		return Resolution{Symbol: cached, Strategy: StrategyCache}
	}

	u := r.snapshot()
	if len(u.names) == 0 {
		_ = r.RefreshUniverse(ctx)
		u = r.snapshot()
	}
	if len(u.names) == 0 {
		r.logger.Warn("No broker symbols available, using symbol as-is", zap.String("symbol", symbol))
		r.store(symbol, symbol)
		return Resolution{Symbol: symbol, Strategy: StrategyFallback}
	}

	for _, st := range cascade {
		if out := st.match(r, ctx, symbol, u); out.found {
			r.store(symbol, out.name)
			r.logger.Info("Symbol mapped",
				zap.String("symbol", symbol),
				zap.String("resolved", out.name),
				zap.String("strategy", st.name))
			return Resolution{Symbol: out.name, Strategy: st.name}
		}
	}

	r.logger.Warn("No mapping found for symbol, using as-is", zap.String("symbol", symbol))
	r.store(symbol, symbol)
	return Resolution{Symbol: symbol, Strategy: StrategyFallback}
}

// RefreshUniverse reloads the terminal's symbol list. On failure the universe
// is left empty and every resolution falls back until the next refresh.
func (r *SymbolResolver) RefreshUniverse(ctx context.Context) error {
	names, err := r.source.Symbols(ctx)
	if err != nil {
		r.logger.Error("Failed to cache broker symbols", zap.Error(err))
		r.mu.Lock()
		r.universe = newSymbolUniverse(nil)
		r.mu.Unlock()
		return err
	}

	u := newSymbolUniverse(append([]string(nil), names...))
	r.mu.Lock()
	r.universe = u
	r.mu.Unlock()

	r.logger.Info("Cached broker symbols", zap.Int("count", len(u.names)))
	return nil
}

// Reset drops the universe and every cached mapping.
func (r *SymbolResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.universe = newSymbolUniverse(nil)
	r.cache = make(map[string]string)
}

func (r *SymbolResolver) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
	r.logger.Info("Symbol cache cleared")
}

func (r *SymbolResolver) CacheStats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make(map[string]string, len(r.cache))
	for k, v := range r.cache {
		entries[k] = v
	}
	return CacheStats{
		CachedCount:   len(r.cache),
		UniverseCount: len(r.universe.names),
		Entries:       entries,
	}
}

func (r *SymbolResolver) snapshot() *symbolUniverse {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.universe
}

func (r *SymbolResolver) store(symbol, resolved string) {
	r.mu.Lock()
	r.cache[symbol] = resolved
	r.mu.Unlock()
}

// --- Strategies ---

func (r *SymbolResolver) matchExact(_ context.Context, symbol string, u *symbolUniverse) matchOutcome {
	if u.has(symbol) {
		return matched(symbol)
	}
	return matchOutcome{}
}

func (r *SymbolResolver) matchCase(_ context.Context, symbol string, u *symbolUniverse) matchOutcome {
	for _, s := range u.names {
		if strings.EqualFold(s, symbol) {
			return matched(s)
		}
	}
	return matchOutcome{}
}

func (r *SymbolResolver) matchNormalized(_ context.Context, symbol string, u *symbolUniverse) matchOutcome {
	want := NormalizeSymbol(symbol)
	for _, s := range u.names {
		if NormalizeSymbol(s) == want {
			return matched(s)
		}
	}
	return matchOutcome{}
}

func (r *SymbolResolver) matchPrefix(_ context.Context, symbol string, u *symbolUniverse) matchOutcome {
	want := strings.ToUpper(symbol)
	for _, s := range u.names {
		if strings.HasPrefix(strings.ToUpper(s), want) {
			return matched(s)
		}
	}
	return matchOutcome{}
}

func (r *SymbolResolver) matchContains(_ context.Context, symbol string, u *symbolUniverse) matchOutcome {
	want := strings.ToUpper(symbol)
	for _, s := range u.names {
		if strings.Contains(strings.ToUpper(s), want) {
			return matched(s)
		}
	}
	return matchOutcome{}
}

func (r *SymbolResolver) matchFuzzy(_ context.Context, symbol string, u *symbolUniverse) matchOutcome {
	candidates := closeMatches(symbol, u.names, fuzzyCandidates, fuzzyCutoff)
	if len(candidates) == 0 {
		return matchOutcome{}
	}
	r.logger.Debug("Fuzzy candidates", zap.String("symbol", symbol), zap.Any("candidates", candidateNames(candidates)))
	return matched(candidates[0].name)
}

// matchDescription fetches metadata for every universe symbol. A transport
// error aborts the strategy.
func (r *SymbolResolver) matchDescription(ctx context.Context, symbol string, u *symbolUniverse) matchOutcome {
	want := strings.ToUpper(symbol)
	for _, s := range u.names {
		info, err := r.source.SymbolInfo(ctx, s)
		if err != nil {
			r.logger.Error("Description match aborted", zap.String("symbol", s), zap.Error(err))
			return matchOutcome{}
		}
		if info == nil || info.Description == "" {
			continue
		}
		desc := strings.ToUpper(info.Description)
		if strings.Contains(desc, want) || strings.Contains(want, desc) {
			return matched(s)
		}
	}
	return matchOutcome{}
}

func (r *SymbolResolver) matchTransform(_ context.Context, symbol string, u *symbolUniverse) matchOutcome {
	if variants, ok := symbolAliases[strings.ToUpper(symbol)]; ok {
		for _, v := range variants {
			if u.has(v) {
				return matched(v)
			}
		}
	}
	for _, v := range symbolVariations(symbol) {
		if u.has(v) {
			return matched(v)
		}
	}
	return matchOutcome{}
}

func candidateNames(cs []fuzzyCandidate) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.name
	}
	return names
}
