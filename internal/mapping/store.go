// Package mapping persists operator-recorded selectors, one per form field.
// A mapping never expires; re-recording a field overwrites it.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnknownField  = errors.New("unknown mapping field")
	ErrEmptySelector = errors.New("empty selector")
)

// Fields are the mappable fields in wizard order.
var Fields = []string{"vehicle-type", "year", "make", "model", "mileage", "price", "description"}

func ValidField(field string) bool {
	for _, f := range Fields {
		if f == field {
			return true
		}
	}
	return false
}

type Store interface {
	Save(ctx context.Context, field, selector string) error
	Get(ctx context.Context, field string) (string, bool, error)
	All(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}

func validate(field, selector string) error {
	if !ValidField(field) {
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("%w for %s", ErrEmptySelector, field)
	}
	return nil
}

// MemoryStore keeps mappings for the life of the process.
type MemoryStore struct {
	mutex    sync.RWMutex
	mappings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mappings: make(map[string]string)}
}

func (s *MemoryStore) Save(ctx context.Context, field, selector string) error {
	if err := validate(field, selector); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.mappings[field] = selector
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, field string) (string, bool, error) {
	if !ValidField(field) {
		return "", false, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	selector, ok := s.mappings[field]
	return selector, ok, nil
}

func (s *MemoryStore) All(ctx context.Context) (map[string]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make(map[string]string, len(s.mappings))
	for k, v := range s.mappings {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.mappings = make(map[string]string)
	return nil
}
