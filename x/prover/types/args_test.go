package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/proofmarket/prover/x/prover/types"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    types.Args
		wantErr bool
	}{
		{name: "factors", raw: []string{"17", "23"}, want: types.Args{{17}, {23}}},
		{name: "multi word", raw: []string{"1, 2,3"}, want: types.Args{{1, 2, 3}}},
		{name: "empty argument", raw: []string{""}, want: types.Args{{}}},
		{name: "none", raw: nil, want: types.Args{}},
		{name: "max word", raw: []string{"4294967295"}, want: types.Args{{4294967295}}},
		{name: "overflow", raw: []string{"4294967296"}, wantErr: true},
		{name: "negative", raw: []string{"-1"}, wantErr: true},
		{name: "not a number", raw: []string{"seventeen"}, wantErr: true},
		{name: "zero", raw: []string{"0"}, want: types.Args{{0}}},
		{name: "leading zero", raw: []string{"017"}, wantErr: true},
		{name: "hex prefix", raw: []string{"0x11"}, wantErr: true},
		{name: "digit separator", raw: []string{"1_000"}, wantErr: true},
		{name: "plus sign", raw: []string{"+5"}, wantErr: true},
		{name: "one bad word", raw: []string{"1,010"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := types.ParseArgs(tc.raw)
			if tc.wantErr {
				require.ErrorIs(t, err, types.ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestArgsString(t *testing.T) {
	args := types.Args{{17}, {23}}
	require.Equal(t, "[[17],[23]]", args.String())
	require.Equal(t, 2, args.WordCount())
	require.Equal(t, []uint32{17, 23}, args.Words())
	require.Equal(t, "[]", types.Args(nil).String())
}

// TestArgsJSONRoundTrip checks the event attribute form parses back
func TestArgsJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		want := types.Args(rapid.SliceOfN(rapid.SliceOfN(rapid.Uint32(), 1, 8), 1, 8).Draw(t, "args"))

		got, err := types.ParseArgsJSON(want.String())
		require.NoError(t, err)
		require.Equal(t, want, got)
	})
}
