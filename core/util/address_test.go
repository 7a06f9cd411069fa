package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEthereumAddressFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "Checksummed", input: "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", want: "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"},
		{name: "No prefix", input: "7e5f4552091a69125d5dfcb7b8c2659029395bdf", want: "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"},
		{name: "Too short", input: "0x1234", wantErr: true},
		{name: "Not hex", input: "0xzz5f4552091a69125d5dfcb7b8c2659029395bdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := NewEthereumAddressFromString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.Address())
		})
	}
}

func TestEthereumAddress_JSON(t *testing.T) {
	type holder struct {
		Owner EthereumAddress `json:"owner"`
	}
	in := holder{Owner: MustAddress("0x00000000000000000000000000000000000000aa")}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"0x00000000000000000000000000000000000000aa"}`, string(raw))

	var out holder
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Owner, out.Owner)
	assert.False(t, out.Owner.IsZero())
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("3600")
	require.NoError(t, err)
	assert.Equal(t, uint64(3600), v.Uint64())
	assert.Equal(t, "3600", FormatAmount(&v))

	_, err = ParseAmount("")
	require.Error(t, err)
	_, err = ParseAmount("-1")
	require.Error(t, err)

	d := AmountToDecimal(&v)
	assert.Equal(t, "3600", d.String())
}
