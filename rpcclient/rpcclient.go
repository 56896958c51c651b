package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	. "github.com/alexdcox/xrpl-go"
	"github.com/pkg/errors"
)

var ErrRpcFailed = errors.New("rpc request failed")

func NewRpcClient(hostPort string) (client *RpcClient, err error) {
	if hostPort == "" {
		err = errors.Wrap(ErrValidation, "missing rpc host")
		return
	}

	client = &RpcClient{
		HostPort:   hostPort,
		HttpClient: http.DefaultClient,
	}
	return
}

// RpcClient talks to the http api served by cmd/rpc.
type RpcClient struct {
	HostPort   string
	HttpClient *http.Client
}

func (c *RpcClient) req(method string, path string, body io.Reader) (rsp *http.Response, out []byte, err error) {
	req, err2 := http.NewRequest(method, c.HostPort+path, body)
	if err2 != nil {
		err = errors.WithStack(err2)
		return
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err = c.HttpClient.Do(req)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	defer rsp.Body.Close()

	out, err = io.ReadAll(rsp.Body)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		errRsp := &RpcError{}
		if decodeErr := json.Unmarshal(out, errRsp); decodeErr == nil && errRsp.Err != "" {
			err = errRsp

			if stdErr := errRsp.StdErr(); stdErr != nil {
				err = stdErr
			}

			return
		}

		err = errors.Wrapf(ErrRpcFailed, "rpc response code %d with body %s", rsp.StatusCode, string(out))
		return
	}

	return
}

func (c *RpcClient) reqUnmarshal(method string, path string, body io.Reader, target any) (err error) {
	_, rspBody, err := c.req(method, path, body)
	if err != nil {
		return
	}

	if target == nil {
		return
	}

	err = json.Unmarshal(rspBody, target)
	if err != nil {
		err = errors.Wrapf(err, "unable to unmarshal body: %s", string(rspBody))
		return
	}

	return
}

func (c *RpcClient) get(path string, target any) (err error) {
	return c.reqUnmarshal(http.MethodGet, path, nil, target)
}

func (c *RpcClient) post(path string, in any, target any) (err error) {
	var body io.Reader
	if in != nil {
		jsn, err2 := json.Marshal(in)
		if err2 != nil {
			return errors.WithStack(err2)
		}
		body = bytes.NewReader(jsn)
	}

	return c.reqUnmarshal(http.MethodPost, path, body, target)
}

func (c *RpcClient) delete(path string, target any) (err error) {
	return c.reqUnmarshal(http.MethodDelete, path, nil, target)
}

type AccountOut struct {
	Address     string `json:"address"`
	Balance     uint64 `json:"balance"`
	BalanceXRP  string `json:"balanceXrp"`
	Sequence    uint32 `json:"sequence"`
	OwnerCount  uint32 `json:"ownerCount"`
	LedgerIndex uint32 `json:"ledgerIndex"`
}

func (c *RpcClient) GetAccount(address string) (out *AccountOut, err error) {
	out = &AccountOut{}
	err = c.get(fmt.Sprintf("/api/account/%s", url.PathEscape(address)), out)
	return
}

type TransactionsOut []Transaction

func (c *RpcClient) GetTransactions(address string, limit int) (out TransactionsOut, err error) {
	path := fmt.Sprintf("/api/transactions/%s", url.PathEscape(address))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	out = TransactionsOut{}
	err = c.get(path, &out)
	return
}

type SendPaymentIn struct {
	// Address is optional. When set the secret must control it.
	Address     string `json:"address,omitempty"`
	Secret      string `json:"secret"`
	Destination string `json:"destination"`
	// Amount in XRP, for example "12.5".
	Amount string `json:"amount"`
}

type SendPaymentOut SubmissionResult

func (c *RpcClient) SendPayment(in *SendPaymentIn) (out *SendPaymentOut, err error) {
	out = &SendPaymentOut{}
	err = c.post("/api/send", in, out)
	return
}

type WalletOut Wallet

func (c *RpcClient) NewWallet() (out *WalletOut, err error) {
	out = &WalletOut{}
	err = c.post("/api/wallet", nil, out)
	return
}

type WatchOut struct {
	Address string `json:"address"`
	State   string `json:"state"`
	Events  int    `json:"events"`
	Error   string `json:"error,omitempty"`
}

func (c *RpcClient) Watch(address string) (out *WatchOut, err error) {
	out = &WatchOut{}
	err = c.post(fmt.Sprintf("/api/watch/%s", url.PathEscape(address)), nil, out)
	return
}

type WatchedOut struct {
	WatchOut
	Transactions []Transaction `json:"transactions"`
}

func (c *RpcClient) GetWatched(address string, limit int) (out *WatchedOut, err error) {
	path := fmt.Sprintf("/api/watch/%s", url.PathEscape(address))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	out = &WatchedOut{}
	err = c.get(path, out)
	return
}

func (c *RpcClient) Unwatch(address string) (out *WatchOut, err error) {
	out = &WatchOut{}
	err = c.delete(fmt.Sprintf("/api/watch/%s", url.PathEscape(address)), out)
	return
}

// GetTransaction returns a transaction recorded by one of the server's
// watches.
func (c *RpcClient) GetTransaction(hash string) (out *Transaction, err error) {
	out = &Transaction{}
	err = c.get(fmt.Sprintf("/api/tx/%s", url.PathEscape(hash)), out)
	return
}

type GetStatusOut struct {
	Network     Network    `json:"network"`
	Endpoint    string     `json:"endpoint"`
	LedgerIndex uint32     `json:"ledgerIndex"`
	Watching    []WatchOut `json:"watching"`
}

func (c *RpcClient) GetStatus() (out *GetStatusOut, err error) {
	out = &GetStatusOut{}
	err = c.get("/status", out)
	return
}

type RpcError struct {
	Err     string `json:"error"`
	Details string `json:"details"`
}

func (r *RpcError) Error() string {
	return r.Err
}

// StdErr maps the reported error back onto the matching sentinel, so callers
// can use errors.Is across the http boundary.
func (r *RpcError) StdErr() error {
	for _, a := range AllErrors {
		if r.Err == a.Error() {
			return errors.Wrap(a, r.Details)
		}
	}
	return nil
}
