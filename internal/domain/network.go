package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Network identifies the chain dataset a query runs against. The numeric
// value is the dataset id used by the remote service.
type Network int

// Supported networks.
const (
	NetworkSolana            Network = 1
	NetworkMainnet           Network = 4
	NetworkGnosisChain       Network = 6
	NetworkPolygon           Network = 7
	NetworkOptimismV1        Network = 8
	NetworkBinanceSmartChain Network = 9
	NetworkOptimismV2        Network = 10
)

var networkNames = map[Network]string{
	NetworkSolana:            "Solana",
	NetworkMainnet:           "Ethereum Mainnet",
	NetworkGnosisChain:       "Gnosis Chain",
	NetworkPolygon:           "Polygon",
	NetworkOptimismV1:        "Optimism V1",
	NetworkBinanceSmartChain: "Binance Smart Chain",
	NetworkOptimismV2:        "Optimism V2",
}

// Networks returns every supported network ordered by dataset id.
func Networks() []Network {
	return []Network{
		NetworkSolana,
		NetworkMainnet,
		NetworkGnosisChain,
		NetworkPolygon,
		NetworkOptimismV1,
		NetworkBinanceSmartChain,
		NetworkOptimismV2,
	}
}

// String returns the display name of the network.
func (n Network) String() string {
	if name, ok := networkNames[n]; ok {
		return name
	}
	return fmt.Sprintf("Network(%d)", int(n))
}

// ID returns the dataset id of the network.
func (n Network) ID() int { return int(n) }

// Valid reports whether n is one of the supported networks.
func (n Network) Valid() bool {
	_, ok := networkNames[n]
	return ok
}

// NetworkFromID maps a dataset id back to its Network.
func NetworkFromID(id int) (Network, error) {
	n := Network(id)
	if !n.Valid() {
		return 0, ErrParse("unknown network dataset id %d", id)
	}
	return n, nil
}

// ParseNetwork accepts loose human spellings of a network name such as
// "mainnet", "Ethereum Mainnet", "gchain", "bsc" or "optimism v2".
func ParseNetwork(s string) (Network, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(lower, "optimism"):
		switch {
		case strings.Contains(lower, "v1"):
			return NetworkOptimismV1, nil
		case strings.Contains(lower, "v2"):
			return NetworkOptimismV2, nil
		}
	case strings.Contains(lower, "mainnet"), lower == "ethereum", lower == "eth":
		return NetworkMainnet, nil
	case strings.Contains(lower, "gchain"), strings.Contains(lower, "gno"), strings.Contains(lower, "xdai"):
		return NetworkGnosisChain, nil
	case strings.Contains(lower, "binance"), lower == "bsc":
		return NetworkBinanceSmartChain, nil
	case strings.Contains(lower, "polygon"), strings.Contains(lower, "matic"):
		return NetworkPolygon, nil
	case strings.Contains(lower, "solana"), lower == "sol":
		return NetworkSolana, nil
	}
	return 0, ErrParse("could not parse Network from '%s'", s)
}

// MarshalJSON encodes the network as its dataset id.
func (n Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(n))
}

// UnmarshalJSON accepts either a dataset id or a network name.
func (n *Network) UnmarshalJSON(data []byte) error {
	var id int
	if err := json.Unmarshal(data, &id); err == nil {
		parsed, err := NetworkFromID(id)
		if err != nil {
			return err
		}
		*n = parsed
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return ErrParse("network must be a dataset id or name: %s", string(data))
	}
	parsed, err := ParseNetwork(name)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (n *Network) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case int:
		parsed, err := NetworkFromID(v)
		if err != nil {
			return err
		}
		*n = parsed
	case string:
		parsed, err := ParseNetwork(v)
		if err != nil {
			return err
		}
		*n = parsed
	default:
		return ErrParse("network must be a dataset id or name, got %T", raw)
	}
	return nil
}
