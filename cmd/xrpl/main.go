package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	. "github.com/alexdcox/xrpl-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const usage = `usage: xrpl <command> [flags]

commands:
  wallet   generate a new wallet
  address  derive or decode an address (--seed | --pubkey | --address)
  info     show account state (--address)
  history  list recent transactions (--address [--limit])
  send     send an XRP payment (--secret --destination --amount)
  stream   print transactions of an account as they happen (--address)
  decode   decode a serialized transaction (--blob)

ledger commands accept --config, --network, --endpoint and --loglevel`

var log = Log()

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal().Msgf("%+v", err)
	}
}

func run(ctx context.Context, name string, args []string, out io.Writer) (err error) {
	cmd := &command{
		fs:  flag.NewFlagSet(name, flag.ContinueOnError),
		out: out,
	}
	cmd.fs.SetOutput(out)

	switch name {
	case "wallet":
		return cmd.wallet(args)
	case "address":
		return cmd.address(args)
	case "info":
		return cmd.info(ctx, args)
	case "history":
		return cmd.history(ctx, args)
	case "send":
		return cmd.send(ctx, args)
	case "stream":
		return cmd.stream(ctx, args)
	case "decode":
		return cmd.decode(args)
	default:
		return errors.Wrapf(ErrValidation, "invalid subcommand '%s'\n\n%s", name, usage)
	}
}

type command struct {
	fs  *flag.FlagSet
	out io.Writer

	configPath string
	logLevel   string
	config     Config
}

func (c *command) ledgerFlags() {
	c.fs.StringVar(&c.configPath, "config", "", "Path to a yaml client config file, flags given explicitly take precedence")
	c.fs.StringVar((*string)(&c.config.Network), "network", "", "Set network (mainnet|testnet|devnet|localnet)")
	c.fs.StringVar(&c.config.Endpoint, "endpoint", "", "Override the node websocket endpoint (ws:// or wss://)")
	c.fs.StringVar(&c.logLevel, "loglevel", "", "Set the log level (trace|debug|info|warn|error) Can also be set via the XRPL_LOG_LEVEL environment variable")
}

func (c *command) parse(args []string) (err error) {
	if err = c.fs.Parse(args); err != nil {
		return
	}

	if c.fs.NArg() > 0 {
		return errors.Wrapf(ErrValidation, "unexpected arguments: %s", strings.Join(c.fs.Args(), " "))
	}

	return
}

// client builds a ledger client from the optional config file, overridden
// by any network or endpoint flag.
func (c *command) client() (client *Client, err error) {
	if _, err = SetLogLevel(c.logLevel, "XRPL_LOG_LEVEL", zerolog.WarnLevel); err != nil {
		return
	}

	config := c.config
	if c.configPath != "" {
		fileConfig, err2 := LoadConfig(c.configPath)
		if err2 != nil {
			return nil, err2
		}
		if config.Network == "" {
			config.Network = fileConfig.Network
		}
		if config.Endpoint == "" {
			config.Endpoint = fileConfig.Endpoint
		}
		config.HandshakeTimeout = fileConfig.HandshakeTimeout
		config.RequestTimeout = fileConfig.RequestTimeout
		config.KeepAliveInterval = fileConfig.KeepAliveInterval
		config.PollInterval = fileConfig.PollInterval
		config.LedgerOffset = fileConfig.LedgerOffset
		config.FeeCushion = fileConfig.FeeCushion
		config.MaxFee = fileConfig.MaxFee
	}

	options, err := config.ClientOptions()
	if err != nil {
		return
	}
	options.Logger = log

	return NewClient(options)
}

func (c *command) printJson(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = fmt.Fprintln(c.out, string(data))
	return errors.WithStack(err)
}

func (c *command) printKeys(keys *Keypair) {
	id, _ := DecodeAddress(keys.Address())

	fmt.Fprintf(c.out, "key type:          %s\n", keys.Type)
	fmt.Fprintf(c.out, "public:            %s\n", keys.PublicKeyHex())
	fmt.Fprintf(c.out, "account id:        %s\n", id)
	fmt.Fprintf(c.out, "address:           %s\n", keys.Address())
}

func (c *command) wallet(args []string) (err error) {
	var keyType string
	c.fs.StringVar(&keyType, "keytype", string(KeyTypeEd25519), "Key algorithm (ed25519|secp256k1)")
	if err = c.parse(args); err != nil {
		return
	}

	wallet, err := GenerateWalletWithKeyType(KeyType(keyType))
	if err != nil {
		return
	}

	keys, err := wallet.Keypair()
	if err != nil {
		return
	}

	fmt.Fprintln(c.out, "")
	fmt.Fprintln(c.out, "Generated new XRP Ledger wallet:")
	fmt.Fprintln(c.out, "")
	fmt.Fprintf(c.out, "secret:            %s\n", wallet.Secret)
	c.printKeys(keys)

	return
}

func (c *command) address(args []string) (err error) {
	var seed, publicKey, address string
	c.fs.StringVar(&seed, "seed", "", "Family seed to derive the address from")
	c.fs.StringVar(&publicKey, "pubkey", "", "33 byte public key as hex")
	c.fs.StringVar(&address, "address", "", "Classic address to decode")
	if err = c.parse(args); err != nil {
		return
	}

	switch {
	case seed != "":
		keys, err2 := DeriveKeypair(strings.Trim(seed, " \""))
		if err2 != nil {
			return err2
		}
		c.printKeys(keys)

	case publicKey != "":
		key, err2 := hex.DecodeString(strings.Trim(publicKey, " \""))
		if err2 != nil || len(key) != 33 {
			return errors.Wrapf(ErrValidation, "invalid public key '%s'", publicKey)
		}
		fmt.Fprintf(c.out, "account id:        %s\n", AccountIDFromPublicKey(key))
		fmt.Fprintf(c.out, "address:           %s\n", AddressFromPublicKey(key))

	case address != "":
		id, err2 := DecodeAddress(strings.Trim(address, " \""))
		if err2 != nil {
			return errors.Wrap(ErrValidation, err2.Error())
		}
		fmt.Fprintf(c.out, "account id:        %s\n", id)
		fmt.Fprintf(c.out, "address:           %s\n", id.Address())

	default:
		return errors.Wrap(ErrValidation, "one of --seed, --pubkey or --address is required")
	}

	return
}

func (c *command) info(ctx context.Context, args []string) (err error) {
	var address string
	c.fs.StringVar(&address, "address", "", "Account to query")
	c.ledgerFlags()
	if err = c.parse(args); err != nil {
		return
	}

	client, err := c.client()
	if err != nil {
		return
	}

	info, err := client.GetAccountInfo(ctx, address)
	if err != nil {
		return
	}

	return c.printJson(info)
}

func (c *command) history(ctx context.Context, args []string) (err error) {
	var address string
	var limit int
	c.fs.StringVar(&address, "address", "", "Account to query")
	c.fs.IntVar(&limit, "limit", DefaultHistoryLimit, "Maximum number of transactions")
	c.ledgerFlags()
	if err = c.parse(args); err != nil {
		return
	}

	client, err := c.client()
	if err != nil {
		return
	}

	txs, err := client.GetTransactionHistory(ctx, address, limit)
	if err != nil {
		return
	}

	return c.printJson(txs)
}

func (c *command) send(ctx context.Context, args []string) (err error) {
	var secret, destination, amount string
	c.fs.StringVar(&secret, "secret", os.Getenv("XRPL_SECRET"), "Family seed of the sending wallet, defaults to $XRPL_SECRET")
	c.fs.StringVar(&destination, "destination", "", "Receiving address")
	c.fs.StringVar(&amount, "amount", "", "Amount in XRP, for example 12.5")
	c.ledgerFlags()
	if err = c.parse(args); err != nil {
		return
	}

	if secret == "" {
		return errors.Wrap(ErrValidation, "missing secret")
	}

	client, err := c.client()
	if err != nil {
		return
	}

	result, err := client.SendPayment(ctx, Wallet{Secret: secret}, destination, amount)
	if result != nil {
		if printErr := c.printJson(result); printErr != nil {
			return printErr
		}
	}

	return
}

func (c *command) stream(ctx context.Context, args []string) (err error) {
	var address string
	c.fs.StringVar(&address, "address", "", "Account to follow")
	c.ledgerFlags()
	if err = c.parse(args); err != nil {
		return
	}

	client, err := c.client()
	if err != nil {
		return
	}

	events := make(chan TransactionEvent, 16)

	sub := client.Subscribe(address, StreamOptions{
		OnTransaction: func(event TransactionEvent) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		},
		OnStateChange: func(state SubscriptionState) {
			log.Info().Msgf("subscription %s", state)
		},
	})
	defer sub.Unsubscribe()

	for {
		select {
		case event := <-events:
			if err = c.printJson(event); err != nil {
				return
			}

		case <-sub.Done():
			return sub.Err()

		case <-ctx.Done():
			return nil
		}
	}
}

func (c *command) decode(args []string) (err error) {
	var blob string
	c.fs.StringVar(&blob, "blob", "", "Serialized transaction as hex")
	if err = c.parse(args); err != nil {
		return
	}

	data, err := hex.DecodeString(strings.Trim(blob, " \""))
	if err != nil || len(data) == 0 {
		return errors.Wrapf(ErrValidation, "invalid transaction blob '%s'", blob)
	}

	tx, err := DecodeTransaction(data)
	if err != nil {
		return errors.Wrap(ErrValidation, err.Error())
	}

	if err = c.printJson(tx); err != nil {
		return
	}

	if tx.TxnSignature == "" {
		fmt.Fprintln(c.out, "signature:         none")
		return
	}

	signer, err := VerifyTransaction(tx)
	if err != nil {
		fmt.Fprintf(c.out, "signature:         invalid (%v)\n", err)
		return nil
	}

	fmt.Fprintf(c.out, "signature:         valid, signed by %s\n", signer)

	return
}
