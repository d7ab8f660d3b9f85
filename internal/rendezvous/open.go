package rendezvous

import "fmt"

// OpenStore constructs the configured RoomStore backend. close must be
// called on shutdown.
func OpenStore(driver, path string) (store RoomStore, close func() error, err error) {
	switch driver {
	case "", "json":
		s, err := newJSONStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.close, nil
	case "sqlite":
		s, err := newSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.close, nil
	default:
		return nil, nil, fmt.Errorf("rendezvous: unknown store driver %q", driver)
	}
}
