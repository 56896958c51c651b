package xrpl

import "github.com/pkg/errors"

func init() {
	MainNetParams.Name = NetworkMainNet
	MainNetParams.ID = NetworkIDMainNet
	MainNetParams.Endpoint = "wss://s1.ripple.com"

	TestNetParams.Name = NetworkTestNet
	TestNetParams.ID = NetworkIDTestNet
	TestNetParams.Endpoint = "wss://s.altnet.rippletest.net:51233"

	DevNetParams.Name = NetworkDevNet
	DevNetParams.ID = NetworkIDDevNet
	DevNetParams.Endpoint = "wss://s.devnet.rippletest.net:51233"

	LocalNetParams.Name = NetworkLocalNet
	LocalNetParams.Endpoint = "ws://localhost:6006"
}

type NetworkParams struct {
	Name     Network
	ID       NetworkID
	Endpoint string
}

var MainNetParams = NetworkParams{}
var TestNetParams = NetworkParams{}
var DevNetParams = NetworkParams{}
var LocalNetParams = NetworkParams{}

const (
	NetworkMainNet  Network = "mainnet"
	NetworkTestNet  Network = "testnet"
	NetworkDevNet   Network = "devnet"
	NetworkLocalNet Network = "localnet"
)

type Network string

func (n Network) Valid() bool {
	return n == NetworkMainNet || n == NetworkTestNet || n == NetworkDevNet || n == NetworkLocalNet
}

func (n Network) Validate() (err error) {
	if !n.Valid() {
		err = errors.Wrapf(ErrValidation, "unknown network '%s'", n)
	}
	return
}

func (n Network) Params() (params *NetworkParams, err error) {
	if err = n.Validate(); err != nil {
		return
	}

	switch n {
	case NetworkMainNet:
		return &MainNetParams, nil
	case NetworkTestNet:
		return &TestNetParams, nil
	case NetworkDevNet:
		return &DevNetParams, nil
	case NetworkLocalNet:
		return &LocalNetParams, nil
	}

	return
}

// NetworkID is only placed on transactions for chains with an id above
// 1024; mainnet, testnet and devnet must omit it.
type NetworkID uint32

const (
	NetworkIDMainNet NetworkID = 0
	NetworkIDTestNet NetworkID = 1
	NetworkIDDevNet  NetworkID = 2

	networkIDRequiredAbove NetworkID = 1024
)

func (id NetworkID) Required() bool {
	return id > networkIDRequiredAbove
}
