package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeTransferWireFormat(t *testing.T) {
	from := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	raw, err := json.Marshal(NewNativeTransfer(from, to, oneEther))
	require.NoError(t, err)

	var wire map[string]string
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "0x5208", wire["gas"])
	assert.Equal(t, "0xde0b6b3a7640000", wire["value"])
	assert.Equal(t, "0x9858effd232b4033e47d90003d41ec34ecaeda94", wire["from"])
	assert.NotContains(t, wire, "data")
	assert.NotContains(t, wire, "gasPrice")
}

func TestContractCallValueOrZero(t *testing.T) {
	p := NewContractCall(common.Address{1}, common.Address{2}, []byte{0xde, 0xad})
	assert.Nil(t, p.Gas)
	assert.Equal(t, 0, p.ValueOrZero().Sign())
}
