package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkIDRoundTrip(t *testing.T) {
	for _, n := range Networks() {
		t.Run(n.String(), func(t *testing.T) {
			got, err := NetworkFromID(n.ID())
			require.NoError(t, err)
			assert.Equal(t, n, got)
		})
	}
}

func TestNetworkIDsAreDistinct(t *testing.T) {
	seen := map[int]Network{}
	names := map[string]Network{}
	for _, n := range Networks() {
		_, dup := seen[n.ID()]
		assert.False(t, dup, "duplicate id %d", n.ID())
		seen[n.ID()] = n
		_, dup = names[n.String()]
		assert.False(t, dup, "duplicate name %q", n.String())
		names[n.String()] = n
	}
	assert.Len(t, seen, 7)
}

func TestNetworkDisplayNames(t *testing.T) {
	assert.Equal(t, "Ethereum Mainnet", NetworkMainnet.String())
	assert.Equal(t, "Gnosis Chain", NetworkGnosisChain.String())
	assert.Equal(t, "Solana", NetworkSolana.String())
	assert.Equal(t, "Binance Smart Chain", NetworkBinanceSmartChain.String())
	assert.Equal(t, "Polygon", NetworkPolygon.String())
	assert.Equal(t, "Network(99)", Network(99).String())
}

func TestNetworkFromID_Unknown(t *testing.T) {
	_, err := NetworkFromID(2)
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseNetwork(t *testing.T) {
	tests := []struct {
		input string
		want  Network
	}{
		{"mainnet", NetworkMainnet},
		{"MaInNet", NetworkMainnet},
		{"ethereum mainnet", NetworkMainnet},
		{"ETHERIUM MaInNet", NetworkMainnet},
		{"MaInNet ethereum", NetworkMainnet},
		{"gchain", NetworkGnosisChain},
		{"Gnosis Chain", NetworkGnosisChain},
		{"GNOChain", NetworkGnosisChain},
		{"bsc", NetworkBinanceSmartChain},
		{"BSC", NetworkBinanceSmartChain},
		{"Binance", NetworkBinanceSmartChain},
		{"optimism v1", NetworkOptimismV1},
		{"optimism v2", NetworkOptimismV2},
		{"Polygon", NetworkPolygon},
		{"solana", NetworkSolana},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseNetwork(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("no_match", func(t *testing.T) {
		_, err := ParseNetwork("toot")
		require.Error(t, err)
		assert.Equal(t, "could not parse Network from 'toot'", err.Error())
	})

	t.Run("optimism_without_version", func(t *testing.T) {
		_, err := ParseNetwork("optimism")
		require.Error(t, err)
	})
}

func TestNetworkJSON(t *testing.T) {
	data, err := json.Marshal(NetworkGnosisChain)
	require.NoError(t, err)
	assert.Equal(t, "6", string(data))

	var byID Network
	require.NoError(t, json.Unmarshal([]byte("4"), &byID))
	assert.Equal(t, NetworkMainnet, byID)

	var byName Network
	require.NoError(t, json.Unmarshal([]byte(`"bsc"`), &byName))
	assert.Equal(t, NetworkBinanceSmartChain, byName)

	var bad Network
	assert.Error(t, json.Unmarshal([]byte("3"), &bad))
}
