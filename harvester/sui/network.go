package sui

import (
	"fmt"
	"strings"
)

// Network identifies which Sui network the harvester works against.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Devnet  Network = "devnet"
	Custom  Network = "custom"
)

// ParseNetwork validates a network name from config.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case Mainnet, Testnet, Devnet, Custom:
		return n, nil
	case "":
		return Mainnet, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// FullnodeURL returns the public fullnode for a preset network, empty for Custom.
func (n Network) FullnodeURL() string {
	switch n {
	case Mainnet, Testnet, Devnet:
		return fmt.Sprintf("https://fullnode.%s.sui.io:443", n)
	default:
		return ""
	}
}

// NetworkFromURL maps a preset fullnode url back to its network, anything
// else is Custom.
func NetworkFromURL(rpcURL string) Network {
	for _, n := range []Network{Mainnet, Testnet, Devnet} {
		if strings.TrimRight(rpcURL, "/") == n.FullnodeURL() {
			return n
		}
	}
	return Custom
}

// ExplorerTxURL links a transaction digest on SuiVision.
func ExplorerTxURL(digest string, network Network) string {
	base := "https://suivision.xyz/txblock/" + digest
	switch network {
	case Testnet, Devnet:
		return base + "?network=" + string(network)
	default:
		return base
	}
}
