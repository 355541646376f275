// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package usdn

import (
	"testing"

	"github.com/mbaddeley/usdn/internal/flowtable"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Net: 1, Type: MsgFTS, Flow: 0xBEEF}
	buf := EncodeHeader(h)
	require.Len(t, buf, HeaderLen)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeHeaderShort(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2})
	require.Error(t, err)
}

func TestNSURoundTrip(t *testing.T) {
	nsu := NSU{
		CfgID: 3,
		Rank:  1,
		Links: []NSULink{
			{NbrID: 42, RSSI: -70},
			{NbrID: 7, RSSI: -55},
		},
	}
	buf := EncodeNSU(nsu)
	got, err := DecodeNSU(buf)
	require.NoError(t, err)
	require.Equal(t, nsu, got)
}

func TestCJOINIsEmptyNSU(t *testing.T) {
	buf := EncodeCJOIN()
	got, err := DecodeNSU(buf)
	require.NoError(t, err)
	require.Equal(t, NSU{}, got)
}

func TestCFGRoundTrip(t *testing.T) {
	c := CFG{
		SDNNet:          1,
		CfgID:           5,
		FTLifetime:      600,
		QueryFull:       0,
		QueryIdx:        40,
		QueryLen:        16,
		UpdatePeriod:    600,
		RPLDIOInterval:  12,
		RPLDFRTLifetime: 30,
	}
	buf := EncodeCFG(c)
	got, err := DecodeCFG(buf)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestFTQRoundTrip(t *testing.T) {
	q := FTQ{TxID: 9, Index: 40, Data: []byte{1, 2, 3, 4, 5}}
	buf := EncodeFTQ(q)
	got, err := DecodeFTQ(buf)
	require.NoError(t, err)
	require.Equal(t, q, got)
}

func TestFTSRoundTripPadsToFixedWidth(t *testing.T) {
	f := FTS{
		TxID:      11,
		IsDefault: true,
		Match: flowtable.MatchRule{
			Op: flowtable.OpEQ, Index: 2, Length: 2, NeedsExtOffset: false,
			Data: []byte{0x00, 0x0a},
		},
		Action: flowtable.ActionRule{
			Kind: flowtable.ActionForward, Index: 0, Length: 16,
			Data: make([]byte, 16),
		},
	}
	buf := EncodeFTS(f)
	require.Len(t, buf, ftsWireLen)

	got, err := DecodeFTS(buf)
	require.NoError(t, err)
	require.Equal(t, f.TxID, got.TxID)
	require.True(t, got.IsDefault)
	require.Equal(t, f.Match.Data, got.Match.Data)
	require.Equal(t, f.Action.Kind, got.Action.Kind)
}

func TestFTSRejectsOversizeData(t *testing.T) {
	buf := make([]byte, ftsWireLen)
	buf[2+2] = 21 // match length field claims more than maxFTSData
	_, err := DecodeFTS(buf)
	require.Error(t, err)
}
