package discovery

// Stock strategy ids.
const (
	StrategyFreshman      = "freshman"
	StrategyTopVolume     = "top_volume"
	StrategyLargeCap      = "large_cap"
	StrategySuperLeverage = "super_leverage"
	StrategyCameron       = "cameron"
)

func stockStrategies() []Strategy {
	return []Strategy{
		&predicateStrategy{id: StrategyFreshman, name: "Freshman", pred: stockBased(freshman)},
		&predicateStrategy{id: StrategyTopVolume, name: "Top Volume", pred: stockBased(topVolume)},
		&predicateStrategy{id: StrategyLargeCap, name: "Large Cap", pred: stockBased(largeCap)},
		&predicateStrategy{id: StrategySuperLeverage, name: "Super Leverage", pred: stockBased(superLeverage)},
		&predicateStrategy{id: StrategyCameron, name: "Cameron", pred: stockBased(cameron)},
	}
}

// stockBased applies the daily volume floor before p. volume_24h is
// required.
func stockBased(p predicate) predicate {
	return func(d *decoder, floor float64) bool {
		if d.float(KeyVolume24h) < floor {
			return false
		}
		return p(d, floor)
	}
}

func freshman(d *decoder, _ float64) bool {
	return d.float(KeyMarketCap) <= 500_000_000 &&
		d.float(KeyRSI) > 55 &&
		d.float(KeyMACD) > 0 &&
		d.floatOr(KeyEMA5, 0) > d.floatOr(KeyEMA20, 0)
}

func topVolume(d *decoder, _ float64) bool {
	return d.float(KeyVolume24h) >= 10_000_000 &&
		d.float(KeyRSI) > 50 &&
		d.float(KeyMACD) > 0
}

func largeCap(d *decoder, _ float64) bool {
	return d.float(KeyMarketCap) >= 10_000_000_000 &&
		d.float(KeyRSI) > 50 &&
		d.float(KeyMACD) > 0 &&
		d.floatOr(KeyATR, 999) < 5
}

func superLeverage(d *decoder, _ float64) bool {
	return d.boolOr(KeyIsETF, false) &&
		d.floatOr(KeyLeverage, 1) > 1 &&
		d.float(KeyRSI) > 50 &&
		d.float(KeyMACD) > 0
}

func cameron(d *decoder, _ float64) bool {
	price := d.float(KeyPrice)
	return price >= 1 && price <= 10 &&
		d.floatOr(KeyRVol, 0) >= 5 &&
		d.float(KeyVolume24h) >= 100_000 &&
		d.floatOr(KeyFloat, 0) <= 20_000_000
}
