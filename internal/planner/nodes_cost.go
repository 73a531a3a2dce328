package planner

// CostAnalyst assigns a price band and confidence to each candidate venue
// using only the catalogs' own price signals. It is pure and synchronous;
// ParallelAnalysts offloads it to costWorker so it never shares a
// goroutine with the blocking analyzers.
type CostAnalyst struct{}

// NewCostAnalyst builds a CostAnalyst. It holds no state.
func NewCostAnalyst() *CostAnalyst { return &CostAnalyst{} }

var priceValueScore = map[PriceRange]float64{
	Price1: 0.9,
	Price2: 0.7,
	Price3: 0.5,
	Price4: 0.3,
}

const neutralValueScore = 0.3

var priceRank = map[PriceRange]int{
	Price1: 1,
	Price2: 2,
	Price3: 3,
	Price4: 4,
}

var rankToPrice = map[int]PriceRange{
	1: Price1,
	2: Price2,
	3: Price3,
	4: Price4,
}

// Score computes venue's CostRecord per the signal-combination table
// below: agreement between signals raises confidence, a lone signal
// settles it, and disagreement falls back to the median band.
func (CostAnalyst) Score(venue VenueRecord) CostRecord {
	google := venue.GooglePrice
	if google == "" && venue.Source == SourceCatalogA {
		google = venue.PriceRange
	}
	yelp := venue.YelpPrice
	if yelp == "" && venue.Source == SourceCatalogB {
		yelp = venue.PriceRange
	}

	switch {
	case google == "" && yelp == "":
		return CostRecord{PriceRange: "", Confidence: ConfidenceNone, ValueScore: neutralValueScore}
	case google == "" || yelp == "":
		band := google
		if band == "" {
			band = yelp
		}
		return CostRecord{PriceRange: band, Confidence: ConfidenceMedium, ValueScore: priceValueScore[band]}
	case google == yelp:
		return CostRecord{PriceRange: google, Confidence: ConfidenceHigh, ValueScore: priceValueScore[google]}
	default:
		band := medianBand(google, yelp)
		return CostRecord{PriceRange: band, Confidence: ConfidenceLow, ValueScore: priceValueScore[band]}
	}
}

// medianBand resolves two differing price bands to the band between them,
// rounding down on a tie between adjacent ranks (e.g. $ and $$$$ -> $$).
func medianBand(a, b PriceRange) PriceRange {
	ra, rb := priceRank[a], priceRank[b]
	mid := (ra + rb) / 2
	if mid < 1 {
		mid = 1
	}
	if mid > 4 {
		mid = 4
	}
	return rankToPrice[mid]
}
