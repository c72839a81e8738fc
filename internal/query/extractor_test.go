package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/storage"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Format: "console"})
}

// stubExtractor returns a fixed result or error.
type stubExtractor struct {
	name     string
	criteria Criteria
	err      error
	calls    int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(ctx context.Context, question string) (Criteria, error) {
	s.calls++
	return s.criteria, s.err
}

func TestChain_FirstStrategyWins(t *testing.T) {
	normalizer := NewNormalizer()
	first := &stubExtractor{name: "first", criteria: Criteria{LocationName: "pacific"}}
	second := &stubExtractor{name: "second", criteria: Criteria{LocationName: "atlantic"}}

	chain := NewChain(testLogger(), normalizer, first, second)

	result, err := chain.Extract(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "pacific", result.LocationName)
	assert.Equal(t, 0, second.calls)
}

func TestChain_FallsThroughOnError(t *testing.T) {
	normalizer := NewNormalizer()
	failing := &stubExtractor{name: "remote", err: ErrExtractorUnavailable}
	keyword := NewKeywordExtractor(normalizer)

	chain := NewChain(testLogger(), normalizer, failing, keyword)

	result, err := chain.Extract(context.Background(), "salinity in the indian ocean")
	require.NoError(t, err)
	assert.Equal(t, "indian", result.LocationName)
	assert.Equal(t, []storage.Variable{storage.VariableSalinity}, result.Variables)
}

func TestChain_FallsThroughOnInvalidCriteria(t *testing.T) {
	normalizer := NewNormalizer()
	invalid := &stubExtractor{
		name: "remote",
		criteria: Criteria{
			DepthRange: &DepthRange{Min: 500, Max: 10},
		},
	}
	keyword := NewKeywordExtractor(normalizer)

	chain := NewChain(testLogger(), normalizer, invalid, keyword)

	result, err := chain.Extract(context.Background(), "temperature in the pacific")
	require.NoError(t, err)
	assert.Equal(t, "pacific", result.LocationName)
}

func TestChain_AllStrategiesFail(t *testing.T) {
	normalizer := NewNormalizer()
	failing := &stubExtractor{name: "remote", err: errors.New("boom")}

	chain := NewChain(testLogger(), normalizer, failing)

	_, err := chain.Extract(context.Background(), "anything")
	assert.Error(t, err)
}

func TestRemoteExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "temperature in the pacific", req["question"])

		json.NewEncoder(w).Encode(Criteria{
			LocationName: "pacific",
			Variables:    []storage.Variable{storage.VariableTemperature},
		})
	}))
	defer server.Close()

	extractor := NewRemoteExtractor(RemoteExtractorConfig{URL: server.URL, Timeout: 5 * time.Second})

	criteria, err := extractor.Extract(context.Background(), "temperature in the pacific")
	require.NoError(t, err)
	assert.Equal(t, "pacific", criteria.LocationName)
}

func TestRemoteExtractor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	extractor := NewRemoteExtractor(RemoteExtractorConfig{URL: server.URL})

	_, err := extractor.Extract(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrExtractorUnavailable)
}

func TestRemoteExtractor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	extractor := NewRemoteExtractor(RemoteExtractorConfig{URL: server.URL, Timeout: 50 * time.Millisecond})

	_, err := extractor.Extract(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrExtractorTimeout)
}

func TestRemoteExtractor_TimeoutClampedToThirtySeconds(t *testing.T) {
	extractor := NewRemoteExtractor(RemoteExtractorConfig{URL: "http://localhost", Timeout: 5 * time.Minute})
	assert.Equal(t, 30*time.Second, extractor.timeout)
}
