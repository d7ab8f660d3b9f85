// Package signaling implements the signaling codec and signaling socket of
// the netplay core: turning an SDP string into a short ASCII token
// suitable for a clipboard or an HTTP body, and driving the offer/answer
// handshake over a pluggable back-channel.
package signaling

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"

	"github.com/junowen-net/core/internal/errs"
)

// SDPType is the role x kind tag carried by a signaling-code token.
type SDPType string

const (
	TypeOffer          SDPType = "offer"
	TypePranswer        SDPType = "pranswer"
	TypeAnswer          SDPType = "answer"
	TypeSpectatorOffer  SDPType = "s-offer"
	TypeSpectatorAnswer SDPType = "s-answer"
)

var validTypes = map[SDPType]bool{
	TypeOffer:           true,
	TypePranswer:        true,
	TypeAnswer:          true,
	TypeSpectatorOffer:  true,
	TypeSpectatorAnswer: true,
}

// IsSpectator reports whether the tag marks a spectator-variant token.
func (t SDPType) IsSpectator() bool {
	return strings.HasPrefix(string(t), "s-")
}

var tagPattern = regexp.MustCompile(`(?s)^<(.+?)>(.+?)</(.+?)>$`)

// Encode deflates sdp at best compression, base64-encodes it without padding
// (RFC 4648), and wraps it in the `<tag>payload</tag>` grammar.
func Encode(sdpType SDPType, sdp string) (string, error) {
	if !validTypes[sdpType] {
		return "", fmt.Errorf("%w: unknown sdp type %q", errs.ErrSignalingParse, sdpType)
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("%w: deflate init: %v", errs.ErrSignalingParse, err)
	}
	if _, err := w.Write([]byte(sdp)); err != nil {
		return "", fmt.Errorf("%w: deflate write: %v", errs.ErrSignalingParse, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: deflate close: %v", errs.ErrSignalingParse, err)
	}

	payload := base64.RawStdEncoding.EncodeToString(buf.Bytes())
	tag := string(sdpType)
	return fmt.Sprintf("<%s>%s</%s>", tag, payload, tag), nil
}

// Decode parses a signaling-code token, validating the tag grammar and
// inflating the payload back to the original SDP string.
func Decode(token string) (SDPType, string, error) {
	m := tagPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return "", "", fmt.Errorf("%w: malformed token", errs.ErrSignalingParse)
	}
	openTag, payload, closeTag := m[1], m[2], m[3]
	if openTag != closeTag {
		return "", "", fmt.Errorf("%w: tag mismatch <%s>...</%s>", errs.ErrSignalingParse, openTag, closeTag)
	}

	sdpType := SDPType(openTag)
	if !validTypes[sdpType] {
		return "", "", fmt.Errorf("%w: unknown tag %q", errs.ErrSignalingParse, openTag)
	}

	payload = strings.Join(strings.Fields(payload), "")
	raw, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", fmt.Errorf("%w: base64 decode: %v", errs.ErrSignalingParse, err)
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	sdp, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("%w: inflate: %v", errs.ErrSignalingParse, err)
	}
	if !utf8.Valid(sdp) {
		return "", "", fmt.Errorf("%w: payload is not valid UTF-8", errs.ErrSignalingParse)
	}

	return sdpType, string(sdp), nil
}
