package rendezvous

import (
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// sqliteStore is the production RoomStore backend: WAL-mode SQLite, letting
// multiple rendezvous processes share one database file.
type sqliteStore struct {
	db *sql.DB
}

func newSQLiteStore(path string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS rooms (
		name            TEXT PRIMARY KEY,
		kind            INTEGER NOT NULL,
		key             TEXT NOT NULL,
		ttl             INTEGER NOT NULL,
		opponent_offer  TEXT DEFAULT '',
		spectator_offer TEXT DEFAULT ''
	)`); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS answers (
		name TEXT NOT NULL,
		slot INTEGER NOT NULL,
		sdp  TEXT NOT NULL,
		ttl  INTEGER NOT NULL,
		PRIMARY KEY (name, slot)
	)`); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) PutIfAbsent(room Room, nowUnix int64) (bool, Room, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, Room{}, err
	}
	defer tx.Rollback()

	var existing Room
	err = tx.QueryRow(`SELECT name, kind, key, ttl, opponent_offer, spectator_offer FROM rooms WHERE name = ?`, room.Name).
		Scan(&existing.Name, &existing.Kind, &existing.Key, &existing.TTL, &existing.OpponentOffer, &existing.SpectatorOffer)
	if err == nil && !existing.Expired(nowUnix) {
		return false, existing, tx.Commit()
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, Room{}, err
	}

	// Stale record (expired) or none present: delete it and its answers,
	// then insert the new record.
	if _, err := tx.Exec(`DELETE FROM rooms WHERE name = ?`, room.Name); err != nil {
		return false, Room{}, err
	}
	if _, err := tx.Exec(`DELETE FROM answers WHERE name = ?`, room.Name); err != nil {
		return false, Room{}, err
	}
	if _, err := tx.Exec(`INSERT INTO rooms (name, kind, key, ttl, opponent_offer, spectator_offer) VALUES (?, ?, ?, ?, ?, ?)`,
		room.Name, room.Kind, room.Key, room.TTL, room.OpponentOffer, room.SpectatorOffer); err != nil {
		return false, Room{}, err
	}
	if err := tx.Commit(); err != nil {
		return false, Room{}, err
	}
	return true, room, nil
}

func (s *sqliteStore) UpdateIfKeyMatches(name, key string, nowUnix int64, mutate func(*Room)) (Room, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Room{}, err
	}
	defer tx.Rollback()

	var room Room
	err = tx.QueryRow(`SELECT name, kind, key, ttl, opponent_offer, spectator_offer FROM rooms WHERE name = ?`, name).
		Scan(&room.Name, &room.Kind, &room.Key, &room.TTL, &room.OpponentOffer, &room.SpectatorOffer)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && room.Expired(nowUnix)) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, err
	}
	if room.Key != key {
		return Room{}, ErrKeyMismatch
	}

	mutate(&room)

	if _, err := tx.Exec(`UPDATE rooms SET kind=?, key=?, ttl=?, opponent_offer=?, spectator_offer=? WHERE name=?`,
		room.Kind, room.Key, room.TTL, room.OpponentOffer, room.SpectatorOffer, room.Name); err != nil {
		return Room{}, err
	}
	if err := tx.Commit(); err != nil {
		return Room{}, err
	}
	return room, nil
}

func (s *sqliteStore) Get(name string, nowUnix int64) (Room, error) {
	var room Room
	err := s.db.QueryRow(`SELECT name, kind, key, ttl, opponent_offer, spectator_offer FROM rooms WHERE name = ?`, name).
		Scan(&room.Name, &room.Kind, &room.Key, &room.TTL, &room.OpponentOffer, &room.SpectatorOffer)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, err
	}
	if room.Expired(nowUnix) {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (s *sqliteStore) Delete(name, key string, nowUnix int64) error {
	var room Room
	err := s.db.QueryRow(`SELECT name, kind, key, ttl, opponent_offer, spectator_offer FROM rooms WHERE name = ?`, name).
		Scan(&room.Name, &room.Kind, &room.Key, &room.TTL, &room.OpponentOffer, &room.SpectatorOffer)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && room.Expired(nowUnix)) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if room.Key != key {
		return ErrKeyMismatch
	}
	if _, err := s.db.Exec(`DELETE FROM rooms WHERE name = ?`, name); err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM answers WHERE name = ?`, name)
	return err
}

func (s *sqliteStore) PutAnswerIfAbsent(name string, slot answerSlot, sdp string, ttl int64, nowUnix int64) (bool, error) {
	if _, err := s.Get(name, nowUnix); err != nil {
		return false, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existingTTL int64
	err = tx.QueryRow(`SELECT ttl FROM answers WHERE name = ? AND slot = ?`, name, int(slot)).Scan(&existingTTL)
	if err == nil && existingTTL >= nowUnix {
		return false, tx.Commit()
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if _, err := tx.Exec(`INSERT INTO answers (name, slot, sdp, ttl) VALUES (?, ?, ?, ?)
		ON CONFLICT(name, slot) DO UPDATE SET sdp=excluded.sdp, ttl=excluded.ttl`,
		name, int(slot), sdp, ttl); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) TakeAnswer(name string, slot answerSlot, nowUnix int64) (string, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	var a Answer
	err = tx.QueryRow(`SELECT sdp, ttl FROM answers WHERE name = ? AND slot = ?`, name, int(slot)).Scan(&a.SDP, &a.TTL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, tx.Commit()
	}
	if err != nil {
		return "", false, err
	}

	if _, err := tx.Exec(`DELETE FROM answers WHERE name = ? AND slot = ?`, name, int(slot)); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	if a.Expired(nowUnix) {
		return "", false, nil
	}
	return a.SDP, true, nil
}

func (s *sqliteStore) close() error {
	return s.db.Close()
}
