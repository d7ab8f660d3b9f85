package rendezvous

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/blake2b"

	"github.com/junowen-net/core/internal/util"
)

// Defaults: room lifetime is now+10s, clients refresh every 3s.
const (
	DefaultTTLSeconds  = 10
	DefaultKeepSeconds = 3

	maxPutRetries = 3
)

// Server is the HTTP rendezvous service.
type Server struct {
	store RoomStore
	ttl   time.Duration
	keep  time.Duration

	uuidGen func() string

	srv *http.Server

	mu        sync.Mutex
	watchers  map[string][]chan spectatorEvent // debug fan-out, keyed by room name

	recent *util.RingBuffer[recentEvent] // bounded admin log, last 256 room events
}

// recentEvent is one entry in the server's bounded admin activity log.
type recentEvent struct {
	At     time.Time `json:"at"`
	Verb   string    `json:"verb"`
	Name   string    `json:"name"`
	Status int       `json:"status"`
}

func (s *Server) logEvent(verb, name string, status int) {
	s.recent.Push(recentEvent{At: time.Now(), Verb: verb, Name: name, Status: status})
}

// NewServer builds a rendezvous server over store. uuidGen defaults to
// uuid.NewString (google/uuid) and is injectable so tests can supply
// deterministic keys.
func NewServer(store RoomStore, ttl, keep time.Duration, uuidGen func() string) *Server {
	if uuidGen == nil {
		uuidGen = uuid.NewString
	}
	return &Server{
		store:    store,
		ttl:      ttl,
		keep:     keep,
		uuidGen:  uuidGen,
		watchers: map[string][]chan spectatorEvent{},
		recent:   util.NewRingBuffer[recentEvent](256),
	}
}

// ListenAndServe starts the HTTP server on addr and blocks until ctx is
// cancelled, then shuts down gracefully — the same context-cancellation
// lifecycle any context-driven subsystem uses.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.routes()}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("rendezvous: listening on %s", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT /custom/{name}", s.handlePut(KindShared))
	mux.HandleFunc("POST /custom/{name}/keep", s.handleKeepShared)
	mux.HandleFunc("POST /custom/{name}/join", s.handleJoin(KindShared))
	mux.HandleFunc("DELETE /custom/{name}", s.handleDelete)

	mux.HandleFunc("PUT /reserved-room/{name}", s.handlePut(KindReserved))
	mux.HandleFunc("GET /reserved-room/{name}", s.handleGetReserved)
	mux.HandleFunc("POST /reserved-room/{name}/spectate", s.handleSpectate)
	mux.HandleFunc("POST /reserved-room/{name}/keep", s.handleKeepReserved)
	mux.HandleFunc("POST /reserved-room/{name}/join", s.handleJoin(KindReserved))
	mux.HandleFunc("DELETE /reserved-room/{name}", s.handleDelete)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /debug/rooms", s.handleDebugRooms)
	mux.HandleFunc("GET /debug/recent", s.handleDebugRecent)
	mux.HandleFunc("GET /debug/spectators", s.handleDebugSpectators)
	mux.HandleFunc("GET /docs", s.handleDocs)

	return s.logMiddleware(mux)
}

// logMiddleware logs every request keyed by a non-reversible hash of the
// client IP, so individual sessions can be traced without persisting
// the address.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("rendezvous: %s %s peer=%s", r.Method, r.URL.Path, hashClientIP(r))
		next.ServeHTTP(w, r)
	})
}

// hashClientIP truncates a blake2b-256 hash of the request's remote IP to 8
// bytes, hex-encoded — enough to correlate log lines for one session without
// persisting anything that reverses to an address (see DESIGN.md).
func hashClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	sum := blake2b.Sum256([]byte(host))
	return hex.EncodeToString(sum[:8])
}

func now() int64 { return time.Now().Unix() }

func writeJSON(w http.ResponseWriter, status int, retryAfter time.Duration, v any) {
	w.Header().Set("Content-Type", "application/json")
	if retryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	}
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type offerBody struct {
	Offer string `json:"offer"`
}
type keyBody struct {
	Key string `json:"key"`
}
type answerBody struct {
	Answer string `json:"answer"`
}
type keepReservedBody struct {
	Key            string `json:"key"`
	SpectatorOffer string `json:"spectator_offer,omitempty"`
}

// handlePut implements PUT /custom/{name} and PUT /reserved-room/{name}
// retries put_if_absent_by_name up to three times, deleting a stale
// record first; on success it immediately looks for a pre-posted answer and
// returns it directly instead of the waiting key.
func (s *Server) handlePut(kind RoomKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := util.ValidateRoomName(r.PathValue("name"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": err.Error()})
			return
		}
		var body offerBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Offer == "" {
			writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "missing offer"})
			return
		}

		key := s.uuidGen()
		nowUnix := now()
		room := Room{Name: name, Kind: kind, Key: key, TTL: nowUnix + int64(s.ttl.Seconds()), OpponentOffer: body.Offer}

		var inserted bool
		var stored Room
		for attempt := 0; attempt < maxPutRetries; attempt++ {
			inserted, stored, err = s.store.PutIfAbsent(room, now())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
				return
			}
			if inserted || !stored.Expired(now()) {
				break
			}
		}

		if !inserted {
			s.logEvent("PUT", name, http.StatusConflict)
			writeJSON(w, http.StatusConflict, s.keep, map[string]string{"offer": stored.OpponentOffer})
			return
		}

		if sdp, ok, _ := s.store.TakeAnswer(name, slotOpponent, now()); ok {
			s.logEvent("PUT", name, http.StatusCreated)
			writeJSON(w, http.StatusCreated, s.keep, map[string]string{"answer": sdp})
			return
		}
		s.logEvent("PUT", name, http.StatusCreated)
		writeJSON(w, http.StatusCreated, s.keep, map[string]string{"key": key})
	}
}

// handleKeepShared implements POST /custom/{name}/keep.
func (s *Server) handleKeepShared(w http.ResponseWriter, r *http.Request) {
	name, err := util.ValidateRoomName(r.PathValue("name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": err.Error()})
		return
	}
	var body keyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "missing key"})
		return
	}

	nowUnix := now()
	_, err = s.store.UpdateIfKeyMatches(name, body.Key, nowUnix, func(room *Room) {
		room.TTL = nowUnix + int64(s.ttl.Seconds())
	})
	if errors.Is(err, ErrKeyMismatch) || errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "stale key"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
		return
	}

	if sdp, ok, _ := s.store.TakeAnswer(name, slotOpponent, now()); ok {
		// A shared room is destroyed once its pair has matched.
		_ = s.store.Delete(name, body.Key, now())
		writeJSON(w, http.StatusOK, s.keep, map[string]string{"answer": sdp})
		return
	}
	writeJSON(w, http.StatusNoContent, s.keep, nil)
}

// handleKeepReserved implements POST /reserved-room/{name}/keep, which may
// also post a new spectator_offer and whose 200 discriminates
// OpponentAnswer | SpectatorAnswer.
func (s *Server) handleKeepReserved(w http.ResponseWriter, r *http.Request) {
	name, err := util.ValidateRoomName(r.PathValue("name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": err.Error()})
		return
	}
	var body keepReservedBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "missing key"})
		return
	}

	nowUnix := now()
	_, err = s.store.UpdateIfKeyMatches(name, body.Key, nowUnix, func(room *Room) {
		room.TTL = nowUnix + int64(s.ttl.Seconds())
		if body.SpectatorOffer != "" {
			room.SpectatorOffer = body.SpectatorOffer
			s.notifySpectatorWatchers(name, spectatorEvent{Kind: "offer-posted"})
		}
	})
	if errors.Is(err, ErrKeyMismatch) || errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "stale key"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
		return
	}

	if sdp, ok, _ := s.store.TakeAnswer(name, slotOpponent, now()); ok {
		writeJSON(w, http.StatusOK, s.keep, map[string]string{"kind": "opponent", "answer": sdp})
		return
	}
	if sdp, ok, _ := s.store.TakeAnswer(name, slotSpectator, now()); ok {
		writeJSON(w, http.StatusOK, s.keep, map[string]string{"kind": "spectator", "answer": sdp})
		return
	}
	writeJSON(w, http.StatusNoContent, s.keep, nil)
}

// handleJoin implements POST /custom/{name}/join and the reserved-room
// opponent-join equivalent.
func (s *Server) handleJoin(kind RoomKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := util.ValidateRoomName(r.PathValue("name"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": err.Error()})
			return
		}
		var body answerBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Answer == "" {
			writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "missing answer"})
			return
		}

		nowUnix := now()
		inserted, err := s.store.PutAnswerIfAbsent(name, slotOpponent, body.Answer, nowUnix+int64(s.ttl.Seconds()), nowUnix)
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "no such room"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
			return
		}
		if !inserted {
			s.logEvent("JOIN", name, http.StatusConflict)
			writeJSON(w, http.StatusConflict, 0, map[string]string{"error": "already joined"})
			return
		}
		s.logEvent("JOIN", name, http.StatusCreated)
		writeJSON(w, http.StatusCreated, 0, nil)
	}
}

// handleSpectate implements POST /reserved-room/{name}/spectate.
func (s *Server) handleSpectate(w http.ResponseWriter, r *http.Request) {
	name, err := util.ValidateRoomName(r.PathValue("name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": err.Error()})
		return
	}
	var body answerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Answer == "" {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "missing answer"})
		return
	}

	nowUnix := now()
	inserted, err := s.store.PutAnswerIfAbsent(name, slotSpectator, body.Answer, nowUnix+int64(s.ttl.Seconds()), nowUnix)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "no such room"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
		return
	}
	if !inserted {
		writeJSON(w, http.StatusConflict, 0, map[string]string{"error": "already joined"})
		return
	}
	s.notifySpectatorWatchers(name, spectatorEvent{Kind: "answered"})
	writeJSON(w, http.StatusCreated, 0, nil)
}

// handleGetReserved implements GET /reserved-room/{name}.
func (s *Server) handleGetReserved(w http.ResponseWriter, r *http.Request) {
	name, err := util.ValidateRoomName(r.PathValue("name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": err.Error()})
		return
	}
	room, err := s.store.Get(name, now())
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, 0, map[string]string{
		"opponent_offer":  room.OpponentOffer,
		"spectator_offer": room.SpectatorOffer,
	})
}

// handleDelete implements DELETE /custom/{name} and DELETE /reserved-room/{name}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name, err := util.ValidateRoomName(r.PathValue("name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": err.Error()})
		return
	}
	var body keyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "missing key"})
		return
	}
	err = s.store.Delete(name, body.Key, now())
	if errors.Is(err, ErrKeyMismatch) || errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "key mismatch"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusNoContent, 0, nil)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, 0, map[string]string{"status": "ok"})
}

// handleDebugRooms is a read-only admin endpoint: it does not change the
// room-matching protocol, it is
// purely additive observability, so it only supports what the store already
// exposes via Get (callers must know names; no enumeration primitive is
// required).
func (s *Server) handleDebugRooms(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "name query param required"})
		return
	}
	room, err := s.store.Get(name, now())
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, 0, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, 0, room)
}

// handleDebugRecent returns the last 256 PUT/JOIN outcomes across all rooms,
// a bounded admin log backed by util.RingBuffer so memory use never grows
// with uptime.
func (s *Server) handleDebugRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, 0, s.recent.Snapshot())
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(docsText))
}

// ── spectator-count debug stream (gorilla/websocket) ───────────────────────

type spectatorEvent struct {
	Kind string `json:"kind"`
}

func (s *Server) notifySpectatorWatchers(name string, ev spectatorEvent) {
	s.mu.Lock()
	chans := append([]chan spectatorEvent(nil), s.watchers[name]...)
	s.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
		}
	}
}

var spectatorUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleDebugSpectators upgrades to a websocket and streams spectator
// attach/answer events for one room live, using a websocket since it is a
// better fit for a bidirectional abort-signal channel than plain SSE.
func (s *Server) handleDebugSpectators(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, 0, map[string]string{"error": "name query param required"})
		return
	}

	conn, err := spectatorUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("rendezvous: spectator debug upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch := make(chan spectatorEvent, 8)
	s.mu.Lock()
	s.watchers[name] = append(s.watchers[name], ch)
	s.mu.Unlock()
	defer s.removeWatcher(name, ch)

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) removeWatcher(name string, target chan spectatorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans := s.watchers[name]
	for i, ch := range chans {
		if ch == target {
			s.watchers[name] = append(chans[:i], chans[i+1:]...)
			close(ch)
			return
		}
	}
}
