package reverse

import (
	"testing"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	confirmed := entities.ChainResult{CoinType: 1, Status: entities.ChainStatusConfirmed}
	failed := entities.ChainResult{CoinType: 2, Status: entities.ChainStatusFailed, Error: "transaction reverted"}
	pending := entities.ChainResult{CoinType: 3, Status: entities.ChainStatusPending}

	tests := []struct {
		name    string
		results []entities.ChainResult
		success bool
	}{
		{"all confirmed", []entities.ChainResult{confirmed, confirmed}, true},
		{"one failed", []entities.ChainResult{confirmed, failed}, false},
		{"all failed", []entities.ChainResult{failed, failed}, false},
		{"pending is not success", []entities.ChainResult{confirmed, pending}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Aggregate(tt.results)
			assert.Equal(t, tt.success, resp.Success)
			assert.NotNil(t, resp.Results)
			assert.Len(t, resp.Results, len(tt.results))
		})
	}
}

func TestAggregate_PassesResultsThroughInOrder(t *testing.T) {
	in := []entities.ChainResult{
		{CoinType: 30, Status: entities.ChainStatusFailed},
		{CoinType: 10, Status: entities.ChainStatusConfirmed},
		{CoinType: 20, Status: entities.ChainStatusConfirmed},
	}

	resp := Aggregate(in)
	assert.Equal(t, in, resp.Results)
	assert.Equal(t, 2, CountConfirmed(in))
}
