package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapLedger/internal/amm"
	"swapLedger/internal/model"
)

var (
	ownerAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	tokenA    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenX    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type stubLedger struct {
	mu      sync.Mutex
	metaErr error
}

func (s *stubLedger) Metadata(_ context.Context, token common.Address) (model.TokenMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metaErr != nil {
		return model.TokenMeta{}, s.metaErr
	}
	return model.TokenMeta{Address: token.Hex(), Name: "token", Symbol: "TK", Decimals: 8}, nil
}

func (s *stubLedger) Transfer(_ context.Context, _, _ common.Address, _ *uint256.Int) error {
	return nil
}

func newTestServer(t *testing.T, stub *stubLedger) (*Server, *amm.Pool) {
	t.Helper()
	pool := amm.NewPool(amm.Config{Owner: ownerAddr, TokenA: tokenA, TokenB: tokenB}, stub, nil, nil)
	if stub.metaErr == nil {
		for _, token := range []common.Address{tokenA, tokenB} {
			done, err := pool.RequestMetadata(context.Background(), token)
			if err != nil {
				t.Fatalf("request metadata: %v", err)
			}
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("resolve metadata: %v", err)
				}
			case <-time.After(time.Second):
				t.Fatalf("metadata resolution timed out")
			}
		}
	}
	return NewServer(pool, nil), pool
}

func depositAsOwner(t *testing.T, pool *amm.Pool, token common.Address, amount uint64) {
	t.Helper()
	if _, err := pool.OnTransfer(context.Background(), token, ownerAddr, uint256.NewInt(amount), ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	server, pool := newTestServer(t, &stubLedger{})
	depositAsOwner(t, pool, tokenA, 12345)

	req := httptest.NewRequest(http.MethodGet, "/v1/balance/"+tokenA.Hex(), nil)
	resp, err := server.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body struct {
		Token   string `json:"token"`
		Balance string `json:"balance"`
	}
	decodeBody(t, resp, &body)
	if body.Balance != "12345" {
		t.Fatalf("balance mismatch: %s", body.Balance)
	}
}

func TestBalanceUnknownToken(t *testing.T) {
	server, _ := newTestServer(t, &stubLedger{})

	req := httptest.NewRequest(http.MethodGet, "/v1/balance/"+tokenX.Hex(), nil)
	resp, _ := server.app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", resp.StatusCode)
	}
}

func TestBalanceMalformedAddress(t *testing.T) {
	server, _ := newTestServer(t, &stubLedger{})

	req := httptest.NewRequest(http.MethodGet, "/v1/balance/not-an-address", nil)
	resp, _ := server.app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed address, got %d", resp.StatusCode)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &stubLedger{})

	req := httptest.NewRequest(http.MethodGet, "/v1/metadata/"+tokenB.Hex(), nil)
	resp, _ := server.app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var meta model.TokenMeta
	decodeBody(t, resp, &meta)
	if meta.Symbol != "TK" || meta.Decimals != 8 {
		t.Fatalf("metadata mismatch: %+v", meta)
	}
}

func TestRatioPendingMetadata(t *testing.T) {
	server, _ := newTestServer(t, &stubLedger{metaErr: context.DeadlineExceeded})

	req := httptest.NewRequest(http.MethodGet, "/v1/ratio", nil)
	resp, _ := server.app.Test(req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before metadata resolves, got %d", resp.StatusCode)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &stubLedger{})

	req := httptest.NewRequest(http.MethodPost, "/v1/metadata/"+tokenA.Hex()+"/refresh", nil)
	resp, _ := server.app.Test(req)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for refresh, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/metadata/"+tokenX.Hex()+"/refresh", nil)
	resp, _ = server.app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token refresh, got %d", resp.StatusCode)
	}
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("parse body: %v", err)
	}
}
