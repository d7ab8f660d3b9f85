package rendezvous

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/junowen-net/core/internal/errs"
)

// Client is an HTTP client for the rendezvous service, used both directly by
// callers and as the back-channel of signaling.RendezvousSocket.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a Client with the 10-second timeout used for
// the HTTP rendezvous socket.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type putResult struct {
	Key    string
	Answer string
	Offer  string // set on 409
}

func familyPath(kind RoomKind, name string) string {
	if kind == KindReserved {
		return "/reserved-room/" + name
	}
	return "/custom/" + name
}

func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return DefaultKeepSeconds * time.Second
	}
	n, err := strconv.Atoi(h)
	if err != nil || n <= 0 {
		return DefaultKeepSeconds * time.Second
	}
	return time.Duration(n) * time.Second
}

// Put issues the initial PUT for a room. Returns the waiting key, an
// immediate answer, or (conflict=true, offer) if the name is busy.
func (c *Client) Put(ctx context.Context, kind RoomKind, name, offer string) (res putResult, conflict bool, retry time.Duration, err error) {
	body, _ := json.Marshal(offerBody{Offer: offer})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+familyPath(kind, name), bytes.NewReader(body))
	if err != nil {
		return putResult{}, false, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return putResult{}, false, 0, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	defer drain(resp)

	retry = retryAfter(resp)
	switch resp.StatusCode {
	case http.StatusCreated:
		var out map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return putResult{}, false, retry, fmt.Errorf("%w: decode: %v", errs.ErrSignalingParse, err)
		}
		return putResult{Key: out["key"], Answer: out["answer"]}, false, retry, nil
	case http.StatusConflict:
		var out map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return putResult{}, false, retry, fmt.Errorf("%w: decode: %v", errs.ErrSignalingParse, err)
		}
		return putResult{Offer: out["offer"]}, true, retry, nil
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return putResult{}, false, retry, fmt.Errorf("%w: status %s", errs.ErrRendezvousTransient, resp.Status)
	default:
		return putResult{}, false, retry, fmt.Errorf("%w: unexpected status %s", errs.ErrRendezvousFatal, resp.Status)
	}
}

// Keep refreshes a shared room's TTL and, if present, consumes the pending
// opponent answer.
func (c *Client) Keep(ctx context.Context, kind RoomKind, name, key string) (answer string, got bool, retry time.Duration, err error) {
	body, _ := json.Marshal(keyBody{Key: key})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+familyPath(kind, name)+"/keep", bytes.NewReader(body))
	if err != nil {
		return "", false, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", false, 0, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	defer drain(resp)

	retry = retryAfter(resp)
	switch resp.StatusCode {
	case http.StatusNoContent:
		return "", false, retry, nil
	case http.StatusOK:
		var out map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", false, retry, fmt.Errorf("%w: decode: %v", errs.ErrSignalingParse, err)
		}
		return out["answer"], true, retry, nil
	case http.StatusBadRequest:
		return "", false, retry, fmt.Errorf("%w: stale key", errs.ErrRendezvousFatal)
	default:
		return "", false, retry, fmt.Errorf("%w: status %s", errs.ErrRendezvousTransient, resp.Status)
	}
}

// KeepReserved refreshes a reserved room's TTL and, if spectatorOffer is
// non-empty, posts it as the room's current spectator offer. The 200
// response is discriminated by kind: "opponent" or "spectator" tells the
// caller which pending answer it consumed.
func (c *Client) KeepReserved(ctx context.Context, name, key, spectatorOffer string) (kind, answer string, got bool, retry time.Duration, err error) {
	body, _ := json.Marshal(keepReservedBody{Key: key, SpectatorOffer: spectatorOffer})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/reserved-room/"+name+"/keep", bytes.NewReader(body))
	if err != nil {
		return "", "", false, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", "", false, 0, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	defer drain(resp)

	retry = retryAfter(resp)
	switch resp.StatusCode {
	case http.StatusNoContent:
		return "", "", false, retry, nil
	case http.StatusOK:
		var out map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", "", false, retry, fmt.Errorf("%w: decode: %v", errs.ErrSignalingParse, err)
		}
		return out["kind"], out["answer"], true, retry, nil
	case http.StatusBadRequest:
		return "", "", false, retry, fmt.Errorf("%w: stale key", errs.ErrRendezvousFatal)
	default:
		return "", "", false, retry, fmt.Errorf("%w: status %s", errs.ErrRendezvousTransient, resp.Status)
	}
}

// Join posts an answer for an existing room.
func (c *Client) Join(ctx context.Context, kind RoomKind, name, answer string) error {
	body, _ := json.Marshal(answerBody{Answer: answer})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+familyPath(kind, name)+"/join", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: already joined", errs.ErrRendezvousConflict)
	default:
		return fmt.Errorf("%w: status %s", errs.ErrRendezvousFatal, resp.Status)
	}
}

// Delete issues a best-effort DELETE, used both for normal teardown and the
// cancellation watch that runs while a room waits for an opponent.
func (c *Client) Delete(ctx context.Context, kind RoomKind, name, key string) error {
	body, _ := json.Marshal(keyBody{Key: key})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+familyPath(kind, name), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	defer drain(resp)
	return nil
}

// GetReserved fetches a reserved room's pending offers.
func (c *Client) GetReserved(ctx context.Context, name string) (opponentOffer, spectatorOffer string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/reserved-room/"+name, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return "", "", nil
	}
	if resp.StatusCode/100 != 2 {
		return "", "", fmt.Errorf("%w: status %s", errs.ErrRendezvousTransient, resp.Status)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("%w: decode: %v", errs.ErrSignalingParse, err)
	}
	return out["opponent_offer"], out["spectator_offer"], nil
}

// Spectate posts a spectator answer to a reserved room.
func (c *Client) Spectate(ctx context.Context, name, answer string) error {
	body, _ := json.Marshal(answerBody{Answer: answer})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/reserved-room/"+name+"/spectate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: already joined", errs.ErrRendezvousConflict)
	default:
		return fmt.Errorf("%w: status %s", errs.ErrRendezvousFatal, resp.Status)
	}
}

// JitteredSleep waits for d plus up to 300ms of jitter, added to avoid a
// thundering herd against the rendezvous service when many peers share a
// TTL boundary. Returns early if ctx is cancelled.
func JitteredSleep(ctx context.Context, d time.Duration) {
	jitter := time.Duration(rand.Int63n(int64(300 * time.Millisecond)))
	select {
	case <-ctx.Done():
	case <-time.After(d + jitter):
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
