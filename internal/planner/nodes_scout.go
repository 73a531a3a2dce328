package planner

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Aahiro/deerhacks/graph"
)

const scoutCatalogTimeout = 10 * time.Second

// Scout queries both venue catalogs concurrently, merges and deduplicates
// their results, and hands Commander's picked analyzers a bounded candidate
// list. A single catalog failing never fails the node.
type Scout struct {
	CatalogA CatalogProvider
	CatalogB CatalogProvider
}

// NewScout builds a Scout. Either provider may be nil, in which case it
// behaves as if that catalog always returns no results.
func NewScout(catalogA, catalogB CatalogProvider) *Scout {
	return &Scout{CatalogA: catalogA, CatalogB: catalogB}
}

func (s *Scout) Run(ctx context.Context, state State) graph.NodeResult[State] {
	activity := state.ParsedIntent.Activity
	location := state.ParsedIntent.Location

	var wg sync.WaitGroup
	var resultsA, resultsB []VenueRecord

	wg.Add(2)
	go func() {
		defer wg.Done()
		resultsA = s.search(ctx, s.CatalogA, activity, location)
	}()
	go func() {
		defer wg.Done()
		resultsB = s.search(ctx, s.CatalogB, activity, location)
	}()
	wg.Wait()

	merged := mergeVenues(resultsA, resultsB)

	delta := State{
		CandidateVenues:  merged,
		ExecutionSummary: []string{"scout: found " + strconv.Itoa(len(merged)) + " candidate venues"},
	}

	return graph.NodeResult[State]{Delta: delta, Route: graph.Goto("parallel_analysts")}
}

func (s *Scout) search(ctx context.Context, p CatalogProvider, activity, location string) []VenueRecord {
	if p == nil {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, scoutCatalogTimeout)
	defer cancel()

	records, err := p.Search(searchCtx, activity, location)
	if err != nil {
		return nil
	}
	return records
}
