package sales

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a form with the given ID is not found.
var ErrNotFound = errors.New("form not found")

// ErrEmptyID is returned when trying to store a form with an empty ID.
var ErrEmptyID = errors.New("empty form ID")

// Storage keeps the open sale forms. Forms are transient editing state; the
// sales themselves live in the shop backend.
type Storage interface {
	Set(form *Form) error
	Read(id string) (*Form, error)
	Delete(id string) error
	GetAll() ([]*Form, error)
}

// LocalStorage provides an in-memory implementation for storing forms.
type LocalStorage struct {
	mu sync.RWMutex
	m  map[string]*Form
}

// NewLocalStorage instantiates a new LocalStorage with an empty map.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m: map[string]*Form{},
	}
}

// Set stores the form under its ID.
// Returns ErrEmptyID if the form has an empty ID.
func (l *LocalStorage) Set(form *Form) error {
	if form.ID() == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[form.ID()] = form
	return nil
}

// Read retrieves a form by ID.
// Returns ErrNotFound if the form is not found.
func (l *LocalStorage) Read(id string) (*Form, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// Delete removes a form.
// Returns ErrNotFound if the form is not found.
func (l *LocalStorage) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[id]; !ok {
		return ErrNotFound
	}
	delete(l.m, id)
	return nil
}

// GetAll retrieves all forms, oldest first.
func (l *LocalStorage) GetAll() ([]*Form, error) {
	l.mu.RLock()
	forms := make([]*Form, 0, len(l.m))
	for _, f := range l.m {
		forms = append(forms, f)
	}
	l.mu.RUnlock()

	sort.Slice(forms, func(i, j int) bool {
		return forms[i].createdAt.Before(forms[j].createdAt)
	})
	return forms, nil
}
