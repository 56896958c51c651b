package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	. "github.com/alexdcox/xrpl-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type _config struct {
	ConfigPath   string `json:"-" yaml:"-"`
	DatabasePath string `json:"databasepath" yaml:"databasepath"`
	RpcHostPort  string `json:"rpchostport" yaml:"rpchostport"`
	LogLevel     string `json:"loglevel" yaml:"loglevel"`
	Client       Config `json:"client" yaml:"client"`
}

func (c *_config) Load() (err error) {
	flag.StringVar(&c.ConfigPath, "config", "", "Path to a yaml config file, flags given explicitly take precedence")
	flag.StringVar(&c.DatabasePath, "databasepath", "", "Path to the sqlite database for watched account transactions (default: in memory)")
	flag.StringVar(&c.RpcHostPort, "rpchostport", "localhost:3002", "Set host:port for the http/rpc listener")
	flag.StringVar((*string)(&c.Client.Network), "network", "", "Set network (mainnet|testnet|devnet|localnet)")
	flag.StringVar(&c.Client.Endpoint, "endpoint", "", "Override the node websocket endpoint (ws:// or wss://)")
	flag.StringVar(&c.LogLevel, "loglevel", "", "Set the log level (trace|debug|info|warn|error|fatal) Can also be set via the XRPL_RPC_LOG_LEVEL environment variable")
	flag.Parse()

	if c.ConfigPath == "" {
		return
	}

	log.Info().Msgf("loading config file: %s", c.ConfigPath)

	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		err = errors.Wrapf(err, "failed to read config file: %s", c.ConfigPath)
		return
	}

	if err = yaml.Unmarshal(data, c); err != nil {
		err = errors.Wrapf(err, "failed to unmarshal yaml from config file: %s", c.ConfigPath)
		return
	}

	// Explicit flags win over the file.
	flag.Parse()

	return
}

var log = Log()

var config *_config

func main() {
	config = &_config{}

	if err := config.Load(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	logLevel, err := SetLogLevel(config.LogLevel, "XRPL_RPC_LOG_LEVEL", zerolog.InfoLevel)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}
	log.Info().Msgf("setting log level to: '%s'", logLevel)

	if j, err2 := json.MarshalIndent(config, "", "  "); err2 == nil {
		log.Debug().Msgf("config loaded:\n%s", string(j))
	}

	var store TransactionStore = NewInMemoryStore()
	if config.DatabasePath != "" {
		if store, err = NewSqliteStore(config.DatabasePath); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}

	options, err := config.Client.ClientOptions()
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}
	options.Logger = log

	client, err := NewClient(options)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	log.Info().Msgf("using %s node at %s", client.Network(), client.Endpoint())

	httpServer, err := NewHttpRpcServer(config, store, client)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	if err = serve(httpServer, c); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	if err = store.Close(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	log.Info().Msg("graceful shutdown complete")
}

// serve runs the server until a signal arrives on stop and then shuts it
// down. A listener that fails to start is returned as an error.
func serve(server *HttpRpcServer, stop <-chan os.Signal) error {
	failed := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		return err
	case <-stop:
	}

	log.Info().Msg("caught interrupt/terminate signal, attempting graceful shutdown...")

	return server.Stop()
}
