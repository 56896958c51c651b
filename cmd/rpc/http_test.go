package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	. "github.com/alexdcox/xrpl-go"
	"github.com/alexdcox/xrpl-go/internal/ledgertest"
	"github.com/alexdcox/xrpl-go/rpcclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	testAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testOther   = "rrrrrrrrrrrrrrrrrrrrBZbvji"
)

func newTestServer(t *testing.T) (*HttpRpcServer, *ledgertest.Node) {
	node := ledgertest.NewNode()
	t.Cleanup(node.Close)

	node.Handle("account_info", func(req gjson.Result) (any, *ledgertest.Error) {
		if req.Get("account").String() != testAddress {
			return nil, &ledgertest.Error{Code: "actNotFound", Message: "Account not found."}
		}
		return map[string]any{
			"account_data": map[string]any{
				"Account":  testAddress,
				"Balance":  "25500000",
				"Sequence": 7,
			},
			"ledger_index": 1000,
			"validated":    true,
		}, nil
	})
	node.Handle("account_tx", func(req gjson.Result) (any, *ledgertest.Error) {
		return map[string]any{
			"transactions": []any{
				map[string]any{
					"validated": true,
					"tx": map[string]any{
						"TransactionType": "Payment",
						"Account":         testAddress,
						"Destination":     testOther,
						"Amount":          "1000",
						"hash":            "HASH1",
					},
				},
			},
		}, nil
	})
	node.Handle("ledger", func(gjson.Result) (any, *ledgertest.Error) {
		return map[string]any{"ledger_index": 1234}, nil
	})
	node.Handle("subscribe", func(gjson.Result) (any, *ledgertest.Error) {
		return nil, nil
	})

	logger := zerolog.Nop()
	client, err := NewClient(&ClientOptions{
		Network:  NetworkLocalNet,
		Endpoint: node.URL(),
		Logger:   &logger,
	})
	require.Nil(t, err)

	server, err := NewHttpRpcServer(&_config{RpcHostPort: "127.0.0.1:0"}, NewInMemoryStore(), client)
	require.Nil(t, err)
	t.Cleanup(func() { _ = server.Stop() })

	return server, node
}

func doRequest(t *testing.T, server *HttpRpcServer, method, path string, body any) (int, gjson.Result) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.Nil(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err := server.app.Test(req, 5000)
	require.Nil(t, err)
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	require.Nil(t, err)

	return rsp.StatusCode, gjson.ParseBytes(data)
}

func TestGetAccount(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := doRequest(t, server, http.MethodGet, "/api/account/"+testAddress, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(25500000), body.Get("balance").Int())
	assert.Equal(t, "25.5", body.Get("balanceXrp").String())
	assert.Equal(t, int64(7), body.Get("sequence").Int())

	status, body = doRequest(t, server, http.MethodGet, "/api/account/"+testOther, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ErrAccountNotFound.Error(), body.Get("error").String())
}

func TestGetTransactions(t *testing.T) {
	server, node := newTestServer(t)

	status, body := doRequest(t, server, http.MethodGet, "/api/transactions/"+testAddress, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "HASH1", body.Get("0.hash").String())
	assert.Equal(t, "1000", body.Get("0.Amount").String())

	status, _ = doRequest(t, server, http.MethodGet, "/api/transactions/"+testAddress+"?limit=3", nil)
	assert.Equal(t, http.StatusOK, status)

	requests := node.Requests("account_tx")
	require.Len(t, requests, 2)
	assert.Equal(t, int64(DefaultHistoryLimit), requests[0].Get("limit").Int())
	assert.Equal(t, int64(3), requests[1].Get("limit").Int())

	status, body = doRequest(t, server, http.MethodGet, "/api/transactions/"+testAddress+"?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrValidation.Error(), body.Get("error").String())
}

func TestPostSendValidation(t *testing.T) {
	server, node := newTestServer(t)

	for _, in := range []rpcclient.SendPaymentIn{
		{Destination: testOther, Amount: "1"},
		{Secret: "snoPBrXtMeMyMHUVTgbuqAfg1SUTb", Amount: "1"},
		{Secret: "snoPBrXtMeMyMHUVTgbuqAfg1SUTb", Destination: testOther},
		{Secret: "snoPBrXtMeMyMHUVTgbuqAfg1SUTb", Destination: testOther, Amount: "-2"},
		{Secret: "not-a-secret", Destination: testOther, Amount: "1"},
	} {
		status, body := doRequest(t, server, http.MethodPost, "/api/send", in)
		assert.Equal(t, http.StatusBadRequest, status, "%+v", in)
		assert.NotEmpty(t, body.Get("error").String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewReader([]byte("secret=x")))
	rsp, err := server.app.Test(req, 5000)
	require.Nil(t, err)
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)

	assert.Equal(t, 0, node.Opened())
}

func TestPostSendAcceptsJsonWithCharset(t *testing.T) {
	server, node := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewReader([]byte(`{"destination":"`+testOther+`"}`)))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	rsp, err := server.app.Test(req, 5000)
	require.Nil(t, err)
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	require.Nil(t, err)
	body := gjson.ParseBytes(data)

	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
	assert.Contains(t, body.Get("details").String(), "missing")
	assert.NotContains(t, body.Get("details").String(), "application/json")
	assert.Equal(t, 0, node.Opened())
}

func TestPostWallet(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := doRequest(t, server, http.MethodPost, "/api/wallet", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, IsValidAddress(body.Get("address").String()))

	wallet, err := WalletFromSeed(body.Get("secret").String())
	require.Nil(t, err)
	assert.Equal(t, body.Get("address").String(), wallet.Address)
}

func TestWatchLifecycle(t *testing.T) {
	server, node := newTestServer(t)

	status, body := doRequest(t, server, http.MethodPost, "/api/watch/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doRequest(t, server, http.MethodGet, "/api/watch/"+testAddress, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doRequest(t, server, http.MethodPost, "/api/watch/"+testAddress, nil)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, testAddress, body.Get("address").String())

	assert.Eventually(t, func() bool {
		_, body := doRequest(t, server, http.MethodGet, "/api/watch/"+testAddress, nil)
		return body.Get("state").String() == StateSubscribed.String()
	}, 2*time.Second, 10*time.Millisecond)

	status, _ = doRequest(t, server, http.MethodPost, "/api/watch/"+testAddress, nil)
	assert.Equal(t, http.StatusOK, status, "watching twice reuses the subscription")
	assert.Len(t, node.Requests("subscribe"), 1)

	for _, hash := range []string{"H1", "H1", "H2"} {
		node.Push(map[string]any{
			"type":          "transaction",
			"engine_result": "tesSUCCESS",
			"ledger_index":  1001,
			"validated":     true,
			"transaction": map[string]any{
				"TransactionType": "Payment",
				"Account":         testAddress,
				"Destination":     testOther,
				"Amount":          "5",
				"hash":            hash,
			},
		})
	}

	assert.Eventually(t, func() bool {
		_, body := doRequest(t, server, http.MethodGet, "/api/watch/"+testAddress, nil)
		return body.Get("events").Int() == 2
	}, 2*time.Second, 10*time.Millisecond)

	status, body = doRequest(t, server, http.MethodGet, "/api/watch/"+testAddress, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Get("transactions").Array(), 2)

	status, body = doRequest(t, server, http.MethodGet, "/api/tx/h2", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "H2", body.Get("hash").String())
	assert.Equal(t, testAddress, body.Get("Account").String())

	status, body = doRequest(t, server, http.MethodGet, "/api/tx/H3", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ErrTransactionNotFound.Error(), body.Get("error").String())

	status, body = doRequest(t, server, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1234), body.Get("ledgerIndex").Int())
	assert.Equal(t, testAddress, body.Get("watching.0.address").String())

	status, body = doRequest(t, server, http.MethodDelete, "/api/watch/"+testAddress, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, StateClosed.String(), body.Get("state").String())

	status, _ = doRequest(t, server, http.MethodDelete, "/api/watch/"+testAddress, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRpcClientAgainstServer(t *testing.T) {
	server, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	go func() { _ = server.app.Listener(ln) }()

	client, err := rpcclient.NewRpcClient("http://" + ln.Addr().String())
	require.Nil(t, err)

	account, err := client.GetAccount(testAddress)
	require.Nil(t, err)
	assert.Equal(t, uint64(25500000), account.Balance)

	_, err = client.GetAccount(testOther)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	txs, err := client.GetTransactions(testAddress, 0)
	require.Nil(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "HASH1", txs[0].Hash)

	_, err = client.SendPayment(&rpcclient.SendPaymentIn{Destination: testOther, Amount: "1"})
	assert.ErrorIs(t, err, ErrValidation)

	wallet, err := client.NewWallet()
	require.Nil(t, err)
	assert.True(t, IsValidAddress(wallet.Address))

	status, err := client.GetStatus()
	require.Nil(t, err)
	assert.Equal(t, NetworkLocalNet, status.Network)
	assert.Equal(t, uint32(1234), status.LedgerIndex)

	_, err = client.GetTransaction("H1")
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = client.Unwatch(testAddress)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestServeStopsOnSignal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	hostPort := ln.Addr().String()
	require.Nil(t, ln.Close())

	server, _ := newTestServer(t)
	server.config.RpcHostPort = hostPort

	stop := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- serve(server, stop) }()

	assert.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", hostPort)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	stop <- syscall.SIGTERM

	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeReportsListenFailure(t *testing.T) {
	server, _ := newTestServer(t)
	server.config.RpcHostPort = "127.0.0.1:notaport"

	err := serve(server, make(chan os.Signal))
	assert.Error(t, err)
}
