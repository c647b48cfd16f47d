package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network describes a supported chain.
type Network struct {
	ChainID  uint64
	Name     string
	Symbol   string
	RPC      string
	Explorer string
}

const (
	PulseChainID        uint64 = 369
	PulseChainTestnetID uint64 = 943
)

var networks = map[uint64]Network{
	PulseChainID: {
		ChainID:  PulseChainID,
		Name:     "PulseChain",
		Symbol:   "PLS",
		RPC:      "https://rpc.pulsechain.com",
		Explorer: "https://scan.pulsechain.com",
	},
	PulseChainTestnetID: {
		ChainID:  PulseChainTestnetID,
		Name:     "PulseChain Testnet",
		Symbol:   "tPLS",
		RPC:      "https://rpc.v4.testnet.pulsechain.com",
		Explorer: "https://scan.v4.testnet.pulsechain.com",
	},
}

// LookupNetwork returns the network with chainID.
func LookupNetwork(chainID uint64) (Network, bool) {
	n, ok := networks[chainID]
	return n, ok
}

// IsSupportedNetwork reports whether chainID is a known network.
func IsSupportedNetwork(chainID uint64) bool {
	_, ok := networks[chainID]
	return ok
}

// ExplorerTxURL links a transaction on the network's explorer.
func (n Network) ExplorerTxURL(hash common.Hash) string {
	return fmt.Sprintf("%s/tx/%s", strings.TrimSuffix(n.Explorer, "/"), hash.Hex())
}

// ExplorerAddressURL links an address on the network's explorer.
func (n Network) ExplorerAddressURL(addr common.Address) string {
	return fmt.Sprintf("%s/address/%s", strings.TrimSuffix(n.Explorer, "/"), addr.Hex())
}
