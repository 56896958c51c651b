package main

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	. "github.com/alexdcox/xrpl-go"
	"github.com/alexdcox/xrpl-go/rpcclient"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
)

type watch struct {
	sub    *Subscription
	mu     sync.Mutex
	events int
}

func (w *watch) out() rpcclient.WatchOut {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := rpcclient.WatchOut{
		Address: w.sub.Address(),
		State:   w.sub.State().String(),
		Events:  w.events,
	}
	if err := w.sub.Err(); err != nil {
		out.Error = err.Error()
	}
	return out
}

func NewHttpRpcServer(config *_config, store TransactionStore, client *Client) (server *HttpRpcServer, err error) {
	if store == nil {
		err = errors.New("http rpc server requires a transaction store")
		return
	}

	server = &HttpRpcServer{
		config:  config,
		client:  client,
		store:   store,
		watches: make(map[string]*watch),
	}

	server.app = fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          2 * time.Minute,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})
	server.app.Use(recover.New())
	server.app.Use(func(c *fiber.Ctx) error {
		rsp := c.Next()
		log.Info().Msgf("http response: [%d] %s - %s %s", c.Response().StatusCode(), c.IP(), c.Method(), c.Path())
		return rsp
	})

	server.app.Get("/api/account/:address", server.getAccount)
	server.app.Get("/api/transactions/:address", server.getTransactions)
	server.app.Post("/api/send", server.postSend)
	server.app.Post("/api/wallet", server.postWallet)
	server.app.Post("/api/watch/:address", server.postWatch)
	server.app.Get("/api/watch/:address", server.getWatch)
	server.app.Delete("/api/watch/:address", server.deleteWatch)
	server.app.Get("/api/tx/:hash", server.getStoredTransaction)
	server.app.Get("/status", server.getStatus)

	return
}

type HttpRpcServer struct {
	app    *fiber.App
	client *Client
	config *_config
	store  TransactionStore

	mu      sync.Mutex
	watches map[string]*watch
}

func (s *HttpRpcServer) Start() (err error) {
	log.Info().Msgf("http/rpc server listening on %s", s.config.RpcHostPort)

	err = errors.WithStack(s.app.Listen(s.config.RpcHostPort))

	return
}

// Stop closes every watch subscription and then the listener.
func (s *HttpRpcServer) Stop() (err error) {
	s.mu.Lock()
	for address, w := range s.watches {
		w.sub.Unsubscribe()
		delete(s.watches, address)
	}
	s.mu.Unlock()

	return errors.WithStack(s.app.Shutdown())
}

func (s *HttpRpcServer) errorResponse(c *fiber.Ctx, err error) error {
	statusCode := http.StatusInternalServerError

	reportedErr := err

	for _, match := range []struct {
		err    error
		status int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrSigning, http.StatusBadRequest},
		{ErrAccountNotFound, http.StatusNotFound},
		{ErrTransactionNotFound, http.StatusNotFound},
		{ErrSubmission, http.StatusInternalServerError},
		{ErrNetwork, http.StatusInternalServerError},
	} {
		if errors.Is(err, match.err) {
			reportedErr = match.err
			statusCode = match.status
			break
		}
	}

	return c.Status(statusCode).JSON(map[string]any{
		"error":   reportedErr.Error(),
		"details": fmt.Sprintf("%+v", err),
	})
}

func (s *HttpRpcServer) unmarshalJson(c *fiber.Ctx, target any) (err error) {
	if !c.Is("json") {
		return errors.Wrap(ErrValidation, "expected an application/json body")
	}

	if err = c.BodyParser(target); err != nil {
		return errors.Wrapf(ErrValidation, "invalid json body: %v", err)
	}

	return
}

func (s *HttpRpcServer) getAccount(c *fiber.Ctx) error {
	info, err := s.client.GetAccountInfo(c.UserContext(), c.Params("address"))
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(rpcclient.AccountOut{
		Address:     info.Address,
		Balance:     info.Balance,
		BalanceXRP:  DropsToXRP(info.Balance),
		Sequence:    info.Sequence,
		OwnerCount:  info.OwnerCount,
		LedgerIndex: info.LedgerIndex,
	})
}

func (s *HttpRpcServer) getTransactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", DefaultHistoryLimit)
	if limit <= 0 {
		return s.errorResponse(c, errors.Wrapf(ErrValidation, "invalid limit '%s'", c.Query("limit")))
	}

	txs, err := s.client.GetTransactionHistory(c.UserContext(), c.Params("address"), limit)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(rpcclient.TransactionsOut(txs))
}

func (s *HttpRpcServer) postSend(c *fiber.Ctx) error {
	in := &rpcclient.SendPaymentIn{}
	if err := s.unmarshalJson(c, in); err != nil {
		return s.errorResponse(c, err)
	}

	for name, value := range map[string]string{
		"secret":      in.Secret,
		"destination": in.Destination,
		"amount":      in.Amount,
	} {
		if value == "" {
			return s.errorResponse(c, errors.Wrapf(ErrValidation, "missing %s", name))
		}
	}

	wallet := Wallet{Address: in.Address, Secret: in.Secret}

	result, err := s.client.SendPayment(c.UserContext(), wallet, in.Destination, in.Amount)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(rpcclient.SendPaymentOut(*result))
}

func (s *HttpRpcServer) postWallet(c *fiber.Ctx) error {
	wallet, err := GenerateWallet()
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(rpcclient.WalletOut(wallet))
}

func (s *HttpRpcServer) postWatch(c *fiber.Ctx) error {
	address := c.Params("address")
	if !IsValidAddress(address) {
		return s.errorResponse(c, errors.Wrapf(ErrValidation, "invalid address '%s'", address))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.watches[address]; ok && w.sub.State() != StateClosed {
		return c.JSON(w.out())
	}

	w := &watch{}
	w.sub = s.client.Subscribe(address, StreamOptions{
		OnTransaction: func(event TransactionEvent) {
			added, err := s.store.AddTransactions(address, event.Transaction)
			if err != nil {
				log.Error().Msgf("unable to store transaction %s for %s: %+v", event.Transaction.Hash, address, err)
				return
			}

			w.mu.Lock()
			w.events += added
			w.mu.Unlock()
		},
		OnError: func(err error) {
			log.Warn().Msgf("watch on %s closed: %v", address, err)
		},
	})
	s.watches[address] = w

	log.Info().Msgf("watching account %s", address)

	return c.Status(http.StatusCreated).JSON(w.out())
}

func (s *HttpRpcServer) lookupWatch(address string) (w *watch, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watches[address]
	if !ok {
		err = errors.Wrapf(ErrAccountNotFound, "account %s is not watched", address)
	}
	return
}

func (s *HttpRpcServer) getWatch(c *fiber.Ctx) error {
	address := c.Params("address")

	w, err := s.lookupWatch(address)
	if err != nil {
		return s.errorResponse(c, err)
	}

	txs, err := s.store.GetTransactions(address, c.QueryInt("limit", 0))
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(rpcclient.WatchedOut{
		WatchOut:     w.out(),
		Transactions: txs,
	})
}

func (s *HttpRpcServer) deleteWatch(c *fiber.Ctx) error {
	address := c.Params("address")

	w, err := s.lookupWatch(address)
	if err != nil {
		return s.errorResponse(c, err)
	}

	w.sub.Unsubscribe()

	s.mu.Lock()
	delete(s.watches, address)
	s.mu.Unlock()

	log.Info().Msgf("stopped watching account %s", address)

	return c.JSON(w.out())
}

// getStoredTransaction looks a transaction up among those recorded by
// watches. It does not query the ledger.
func (s *HttpRpcServer) getStoredTransaction(c *fiber.Ctx) error {
	tx, err := s.store.GetTransaction(strings.ToUpper(c.Params("hash")))
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(tx)
}

func (s *HttpRpcServer) getStatus(c *fiber.Ctx) error {
	index, err := s.client.GetLedgerIndex(c.UserContext())
	if err != nil {
		return s.errorResponse(c, err)
	}

	s.mu.Lock()
	watching := make([]rpcclient.WatchOut, 0, len(s.watches))
	for _, w := range s.watches {
		watching = append(watching, w.out())
	}
	s.mu.Unlock()

	sort.Slice(watching, func(i, j int) bool {
		return watching[i].Address < watching[j].Address
	})

	return c.JSON(rpcclient.GetStatusOut{
		Network:     s.client.Network(),
		Endpoint:    s.client.Endpoint(),
		LedgerIndex: index,
		Watching:    watching,
	})
}
