package xrpl

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the file form of ClientOptions. Durations use Go syntax ("10s")
// and fees are XRP amounts.
type Config struct {
	Network           Network       `yaml:"network" json:"network"`
	Endpoint          string        `yaml:"endpoint" json:"endpoint"`
	HandshakeTimeout  time.Duration `yaml:"handshakeTimeout" json:"handshakeTimeout"`
	RequestTimeout    time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	KeepAliveInterval time.Duration `yaml:"keepAliveInterval" json:"keepAliveInterval"`
	PollInterval      time.Duration `yaml:"pollInterval" json:"pollInterval"`
	LedgerOffset      uint32        `yaml:"ledgerOffset" json:"ledgerOffset"`
	FeeCushion        string        `yaml:"feeCushion" json:"feeCushion"`
	MaxFee            string        `yaml:"maxFee" json:"maxFee"`
}

func LoadConfig(path string) (config *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "unable to read config file %s", path)
		return
	}

	return ParseConfig(data)
}

func ParseConfig(data []byte) (config *Config, err error) {
	config = &Config{}
	if err = yaml.Unmarshal(data, config); err != nil {
		config = nil
		err = errors.Wrap(err, "unable to parse config")
		return
	}

	return
}

// ClientOptions converts the config, leaving unset values to the client
// defaults.
func (c *Config) ClientOptions() (options *ClientOptions, err error) {
	options = &ClientOptions{
		Network:           c.Network,
		Endpoint:          c.Endpoint,
		HandshakeTimeout:  c.HandshakeTimeout,
		RequestTimeout:    c.RequestTimeout,
		KeepAliveInterval: c.KeepAliveInterval,
		PollInterval:      c.PollInterval,
		LedgerOffset:      c.LedgerOffset,
	}

	if c.Network != "" {
		if err = c.Network.Validate(); err != nil {
			return nil, err
		}
	}

	if c.FeeCushion != "" {
		cushion, err2 := decimal.NewFromString(c.FeeCushion)
		if err2 != nil || cushion.LessThan(decimal.NewFromInt(1)) {
			return nil, validationErrorf("fee cushion must be a number >= 1, got '%s'", c.FeeCushion)
		}
		options.FeeCushion = cushion
	}

	if c.MaxFee != "" {
		if options.MaxFeeDrops, err = XRPToDrops(c.MaxFee); err != nil {
			return nil, errors.Wrap(err, "max fee")
		}
	}

	return
}
