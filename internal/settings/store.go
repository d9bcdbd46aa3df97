package settings

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// ItemGetter reads raw items from host storage.
type ItemGetter interface {
	GetItem(key string) (string, bool, error)
}

// Store holds the settings record loaded from host storage. It never writes;
// the settings form persists new values and then asks the store to Reload.
type Store struct {
	mu      sync.RWMutex
	storage ItemGetter
	key     string
	current Record
	logger  zerolog.Logger
}

func NewStore(storage ItemGetter, key string, logger zerolog.Logger) *Store {
	return &Store{
		storage: storage,
		key:     key,
		current: Record{},
		logger:  logger,
	}
}

// Load reads the persisted blob. Missing or malformed blobs yield an empty record.
func (s *Store) Load() Record {
	rec := s.read()

	s.mu.Lock()
	s.current = rec
	s.mu.Unlock()

	return rec.Clone()
}

// Reload is Load under the name used after a form save.
func (s *Store) Reload() Record {
	return s.Load()
}

// Current returns a copy of the loaded record.
func (s *Store) Current() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *Store) read() Record {
	raw, ok, err := s.storage.GetItem(s.key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("settings storage unreadable; using empty settings")
		return Record{}
	}
	if !ok {
		s.logger.Debug().Str("key", s.key).Msg("no persisted settings")
		return Record{}
	}

	rec, err := ParseRecord([]byte(raw))
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("persisted settings malformed; using empty settings")
		return Record{}
	}
	return rec
}

// ParseRecord decodes a settings blob. A JSON null decodes to an empty record
// and null values read as "". Other non-string values keep their raw JSON
// text, so a numeric color 255 reads as "255".
func ParseRecord(data []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	rec := make(Record, len(fields))
	for k, v := range fields {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			rec[k] = str
			continue
		}
		rec[k] = string(v)
	}
	return rec, nil
}
