// Package apicall performs the outbound HTTP calls behind "api_call" tools.
// It owns the process-wide default headers, the masking applied before any
// header reaches a log, and the normalisation of responses into the map shape
// that is fed back to the model.
package apicall

import (
	"maps"
	"strings"
	"sync"
)

// Header names installed by a fresh HeaderStore.
const (
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	MimeJSON          = "application/json"
)

// HeaderStore holds the default headers sent with every tool call.
// Per-call headers are merged on top of these by the Executor.
type HeaderStore struct {
	mu      sync.RWMutex
	headers map[string]string
}

// NewHeaderStore creates a store seeded with the JSON content headers.
func NewHeaderStore() *HeaderStore {
	return &HeaderStore{headers: initialHeaders()}
}

func initialHeaders() map[string]string {
	return map[string]string{
		HeaderContentType: MimeJSON,
		HeaderAccept:      MimeJSON,
	}
}

// Set adds or replaces a default header. Last write wins.
func (s *HeaderStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[name] = value
}

// GetAll returns a copy of the default headers; mutating it does not affect the store.
func (s *HeaderStore) GetAll() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.headers)
}

// Reset restores the store to its initial content headers.
func (s *HeaderStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = initialHeaders()
}

// Merge returns the defaults overlaid with overrides. Header names compare
// case-insensitively, so an override replaces any default with the same name
// and only the override's spelling is kept.
func (s *HeaderStore) Merge(overrides map[string]string) map[string]string {
	merged := s.GetAll()
	for name := range overrides {
		for existing := range merged {
			if strings.EqualFold(existing, name) {
				delete(merged, existing)
			}
		}
	}
	for name, value := range overrides {
		merged[name] = value
	}
	return merged
}
