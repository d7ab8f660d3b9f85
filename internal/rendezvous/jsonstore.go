package rendezvous

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/junowen-net/core/internal/util"
)

// jsonStore is the default local-development RoomStore: a single JSON file
// guarded by a mutex, matching internal/config's own file-based persistence.
// It watches its backing file with fsnotify so edits made by another local
// process (or a developer poking at the file by hand) are picked up.
type jsonStore struct {
	path string

	mu      sync.Mutex
	rooms   map[string]Room
	answers map[string]map[answerSlot]Answer

	watcher *fsnotify.Watcher
}

type jsonStoreFile struct {
	Rooms   map[string]Room                     `json:"rooms"`
	Answers map[string]map[answerSlot]Answer `json:"answers"`
}

func newJSONStore(path string) (*jsonStore, error) {
	s := &jsonStore{
		path:    path,
		rooms:   map[string]Room{},
		answers: map[string]map[answerSlot]Answer{},
	}
	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err == nil {
		if err := w.Add(path); err != nil {
			// File may not exist yet; that's fine, first Save() creates it.
			log.Printf("rendezvous: jsonstore watch %s: %v", path, err)
		}
		s.watcher = w
		go s.watchLoop()
	} else {
		log.Printf("rendezvous: fsnotify unavailable, external edits won't be picked up: %v", err)
	}

	return s, nil
}

func (s *jsonStore) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := s.reload(); err != nil {
					log.Printf("rendezvous: jsonstore reload after %s: %v", ev.Op, err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("rendezvous: jsonstore watcher error: %v", err)
		}
	}
}

func (s *jsonStore) reload() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var f jsonStoreFile
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Rooms != nil {
		s.rooms = f.Rooms
	}
	if f.Answers != nil {
		s.answers = f.Answers
	}
	return nil
}

// saveLocked persists the store to disk. Caller must hold s.mu.
func (s *jsonStore) saveLocked() error {
	return util.WriteJSONFile(s.path, jsonStoreFile{Rooms: s.rooms, Answers: s.answers})
}

func (s *jsonStore) PutIfAbsent(room Room, nowUnix int64) (bool, Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rooms[room.Name]; ok && !existing.Expired(nowUnix) {
		return false, existing, nil
	}

	s.rooms[room.Name] = room
	delete(s.answers, room.Name)
	if err := s.saveLocked(); err != nil {
		return false, Room{}, err
	}
	return true, room, nil
}

func (s *jsonStore) UpdateIfKeyMatches(name, key string, nowUnix int64, mutate func(*Room)) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok || room.Expired(nowUnix) {
		return Room{}, ErrNotFound
	}
	if room.Key != key {
		return Room{}, ErrKeyMismatch
	}
	mutate(&room)
	s.rooms[name] = room
	if err := s.saveLocked(); err != nil {
		return Room{}, err
	}
	return room, nil
}

func (s *jsonStore) Get(name string, nowUnix int64) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok || room.Expired(nowUnix) {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (s *jsonStore) Delete(name, key string, nowUnix int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok || room.Expired(nowUnix) {
		return ErrNotFound
	}
	if room.Key != key {
		return ErrKeyMismatch
	}
	delete(s.rooms, name)
	delete(s.answers, name)
	return s.saveLocked()
}

func (s *jsonStore) PutAnswerIfAbsent(name string, slot answerSlot, sdp string, ttl int64, nowUnix int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[name]; !ok || room.Expired(nowUnix) {
		return false, ErrNotFound
	}
	if slots := s.answers[name]; slots != nil {
		if existing, ok := slots[slot]; ok && !existing.Expired(nowUnix) {
			return false, nil
		}
	}
	if s.answers[name] == nil {
		s.answers[name] = map[answerSlot]Answer{}
	}
	s.answers[name][slot] = Answer{Name: name, SDP: sdp, TTL: ttl}
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *jsonStore) TakeAnswer(name string, slot answerSlot, nowUnix int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := s.answers[name]
	if slots == nil {
		return "", false, nil
	}
	a, ok := slots[slot]
	if !ok || a.Expired(nowUnix) {
		delete(slots, slot)
		return "", false, nil
	}
	delete(slots, slot)
	if err := s.saveLocked(); err != nil {
		return "", false, err
	}
	return a.SDP, true, nil
}

func (s *jsonStore) close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
