package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

func rateKey(from, to int64) string {
	return fmt.Sprintf("exchange_rate:%d:%d", from, to)
}

// resolveRate returns the multiplier converting an amount in the from
// universe's currency into the to universe's currency. The cache key is
// directional: rate(a,b) and rate(b,a) live under separate keys.
//
// store is the Store to read universes from, so callers already inside a
// transaction resolve against their own scope.
func (e *Engine) resolveRate(ctx context.Context, store Store, from, to int64) (decimal.Decimal, error) {
	if from == to {
		return decimal.Zero, fmt.Errorf("%w: from and to universe are both %d", ErrInvalidArgument, from)
	}

	key := rateKey(from, to)
	if cached, ok := e.cache.Get(ctx, key); ok {
		if rate, err := decimal.NewFromString(cached); err == nil {
			return rate, nil
		}
		// Unparseable entry, drop it and recompute.
		e.cache.Del(ctx, key)
	}

	fromUniverse, err := store.GetUniverse(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	if fromUniverse == nil {
		return decimal.Zero, &NotFoundError{Entity: EntityUniverse, ID: from}
	}
	toUniverse, err := store.GetUniverse(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	if toUniverse == nil {
		return decimal.Zero, &NotFoundError{Entity: EntityUniverse, ID: to}
	}

	rate := decimal.NewFromFloat(toUniverse.ExchangeRate).
		Div(decimal.NewFromFloat(fromUniverse.ExchangeRate))
	e.cache.SetEx(ctx, key, cacheTTL, rate.String())
	return rate, nil
}

// InvalidateUniverseRates deletes both directional rate cache entries pairing
// universeID with every other known universe. Rates are seed-only today, so
// nothing calls this automatically; it is the administrative hook for a
// future rate mutation path.
func (e *Engine) InvalidateUniverseRates(ctx context.Context, universeID int64) error {
	universe, err := e.store.GetUniverse(ctx, universeID)
	if err != nil {
		return err
	}
	if universe == nil {
		return &NotFoundError{Entity: EntityUniverse, ID: universeID}
	}

	universes, err := e.store.ListUniverses(ctx)
	if err != nil {
		return err
	}
	for _, other := range universes {
		if other.ID == universeID {
			continue
		}
		e.cache.Del(ctx, rateKey(universeID, other.ID))
		e.cache.Del(ctx, rateKey(other.ID, universeID))
	}
	return nil
}
