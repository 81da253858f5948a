package gaspricer

import (
	"context"
	"math/big"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fberger-xyz/orderbook-wtf/internal/catalogue"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// priceCacheTTL bounds how long a fetched gas price / ETH-USD rate is reused
// before the next call refetches it. One orderbook query issues dozens of
// allocator runs (one per grid point, per direction); without this, each
// run would hit the external gas/USD sources again for a value that cannot
// have changed within the same query.
const priceCacheTTL = 2 * time.Second

// GasPriceSource reads the current block's gas price (wei per gas unit)
// from a JSON-RPC endpoint. Best-effort: implementations return an error on
// any failure and Pricer treats it as a zero reading rather than failing
// the caller.
type GasPriceSource interface {
	GasPriceWei(ctx context.Context) (*big.Int, error)
}

// USDPriceSource reads the current ETH/USD rate from a public price feed.
// Same best-effort contract as GasPriceSource.
type USDPriceSource interface {
	ETHUSD(ctx context.Context) (*big.Rat, error)
}

// WETHAddress names this chain's wrapped native token. Pricer does not read
// it: path searches target the numeraire passed to New, and nothing in this
// module sets this variable.
var WETHAddress types.Address

// Pricer converts an arbitrary token amount to its ETH-equivalent value by
// walking the catalogue's live spot-price graph, and reports best-effort
// USD gas cost for a given gas-unit estimate.
type Pricer struct {
	store     *catalogue.Store
	gas       GasPriceSource
	usd       USDPriceSource
	logger    *log.Logger
	numeraire types.Address

	cacheMu       sync.Mutex
	gasCachedAt   time.Time
	gasCached     *big.Int
	usdCachedAt   time.Time
	usdCached     *big.Rat
}

// New builds a Pricer bound to store, using numeraire as the graph's target
// token (normally WETH). gas and usd may be nil, in which case gas-cost
// reporting degrades to zero per spec.md §4.4 point 4.
func New(store *catalogue.Store, numeraire types.Address, gas GasPriceSource, usd USDPriceSource, logger *log.Logger) *Pricer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Pricer{store: store, gas: gas, usd: usd, logger: logger, numeraire: numeraire}
}

// ETHPerUnit returns the amount of numeraire equivalent to one whole
// (decimal-adjusted) unit of token, i.e. quote(path(token -> numeraire))
// over decimal-shifted spot prices. ok is false when no path exists.
func (p *Pricer) ETHPerUnit(token types.Address) (rate *big.Rat, ok bool) {
	g := BuildGraph(p.store)
	path, found := g.PathTo(token, p.numeraire)
	if !found {
		return nil, false
	}
	q, err := Quote(g, path)
	if err != nil {
		p.logger.WithFields(log.Fields{"token": token.Hex(), "error": err}).Warn("gaspricer: quote failed for discovered path")
		return nil, false
	}
	return q, true
}

// GasPriceWei reports the current gas price, or zero on any upstream
// failure (spec.md §4.4 point 4: both external couplings are best-effort).
// Cached for priceCacheTTL so a single orderbook query's many allocator
// runs share one fetch.
func (p *Pricer) GasPriceWei(ctx context.Context) *big.Int {
	if p.gas == nil {
		return big.NewInt(0)
	}
	p.cacheMu.Lock()
	if p.gasCached != nil && time.Since(p.gasCachedAt) < priceCacheTTL {
		v := p.gasCached
		p.cacheMu.Unlock()
		return v
	}
	p.cacheMu.Unlock()

	v, err := p.gas.GasPriceWei(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("gaspricer: gas price read failed, reporting zero")
		return big.NewInt(0)
	}
	p.cacheMu.Lock()
	p.gasCached, p.gasCachedAt = v, time.Now()
	p.cacheMu.Unlock()
	return v
}

// ETHUSD reports the current ETH/USD rate, or zero on any upstream failure.
// Cached the same way as GasPriceWei.
func (p *Pricer) ETHUSD(ctx context.Context) *big.Rat {
	if p.usd == nil {
		return big.NewRat(0, 1)
	}
	p.cacheMu.Lock()
	if p.usdCached != nil && time.Since(p.usdCachedAt) < priceCacheTTL {
		v := p.usdCached
		p.cacheMu.Unlock()
		return v
	}
	p.cacheMu.Unlock()

	v, err := p.usd.ETHUSD(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("gaspricer: ETH/USD read failed, reporting zero")
		return big.NewRat(0, 1)
	}
	p.cacheMu.Lock()
	p.usdCached, p.usdCachedAt = v, time.Now()
	p.cacheMu.Unlock()
	return v
}

// GasCostUSD converts a gas-unit estimate into a USD figure using the
// current gas price and ETH/USD rate, both best-effort. Any upstream
// failure propagates as a zero cost, never an error, per spec.md §7.
func (p *Pricer) GasCostUSD(ctx context.Context, gasUnits *big.Int) *big.Rat {
	weiPerGas := p.GasPriceWei(ctx)
	if weiPerGas.Sign() == 0 || gasUnits == nil {
		return big.NewRat(0, 1)
	}
	weiCost := new(big.Int).Mul(gasUnits, weiPerGas)
	ethCost := new(big.Rat).SetFrac(weiCost, big.NewInt(1_000_000_000_000_000_000))
	usdRate := p.ETHUSD(ctx)
	return new(big.Rat).Mul(ethCost, usdRate)
}

// GasCostUSDForGas adapts GasCostUSD to the allocator's context-free
// GasPricer interface; request-scoped allocator calls run inline with no
// suspension point of their own (§5), so a background context is correct
// here.
func (p *Pricer) GasCostUSDForGas(gasUnits *big.Int) *big.Rat {
	return p.GasCostUSD(context.Background(), gasUnits)
}
