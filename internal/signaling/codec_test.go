package signaling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junowen-net/core/internal/errs"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		sdpType SDPType
		sdp     string
	}{
		{TypeOffer, "v=0\r\no=- 123 2 IN IP4 127.0.0.1\r\n"},
		{TypeAnswer, "v=0\r\no=- 456 2 IN IP4 127.0.0.1\r\n"},
		{TypeSpectatorOffer, "short"},
		{TypeSpectatorAnswer, ""},
	}
	for _, c := range cases {
		token, err := Encode(c.sdpType, c.sdp)
		require.NoError(t, err)

		gotType, gotSDP, err := Decode(token)
		require.NoError(t, err)
		require.Equal(t, c.sdpType, gotType)
		require.Equal(t, c.sdp, gotSDP)
	}
}

func TestDecodeTagMismatch(t *testing.T) {
	_, _, err := Decode("<offer>aGVsbG8</answer>")
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrSignalingParse))
}

func TestDecodeUnknownTag(t *testing.T) {
	_, _, err := Decode("<unspecified>aGVsbG8</unspecified>")
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrSignalingParse))
}

func TestEncodeRejectsUnspecifiedAndRollback(t *testing.T) {
	_, err := Encode("unspecified", "x")
	require.Error(t, err)

	_, err = Encode("rollback", "x")
	require.Error(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	_, _, err := Decode("not a token")
	require.Error(t, err)
}

func TestDecodeBadBase64(t *testing.T) {
	_, _, err := Decode("<offer>not-valid-base64!!!</offer>")
	require.Error(t, err)
}
