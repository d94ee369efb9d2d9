package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ExposesInstruments(t *testing.T) {
	m, handler, err := Setup("waap-test")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/v1/status", 200, 15*time.Millisecond)
	m.RecordWalletOperation(ctx, "sui:signPersonalMessage", "ok")
	m.RecordEVMDerivation(ctx, "derived")
	m.RecordCacheMiss(ctx, "balances")
	m.IncrementConnections(ctx)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "waap_http_requests_total")
	assert.Contains(t, out, "waap_wallet_operations_total")
	assert.Contains(t, out, `feature="sui:signPersonalMessage"`)
	assert.Contains(t, out, "waap_evm_derivations_total")
	assert.Contains(t, out, "waap_stream_connections")
}
