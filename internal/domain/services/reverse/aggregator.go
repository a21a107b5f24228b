package reverse

import "github.com/ens-relayer/relayer_service/internal/domain/entities"

// Aggregate folds per-chain results into the response. Results keep their order
// and nothing is pruned; success requires every chain to be confirmed.
func Aggregate(results []entities.ChainResult) entities.AggregateResponse {
	success := len(results) > 0
	for _, r := range results {
		if r.Status != entities.ChainStatusConfirmed {
			success = false
			break
		}
	}
	if results == nil {
		results = []entities.ChainResult{}
	}
	return entities.AggregateResponse{
		Success: success,
		Results: results,
	}
}

// CountConfirmed returns how many results reached confirmed
func CountConfirmed(results []entities.ChainResult) int {
	n := 0
	for _, r := range results {
		if r.Status == entities.ChainStatusConfirmed {
			n++
		}
	}
	return n
}
