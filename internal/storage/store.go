package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/taskpass/server/internal/models"
)

// Store is the typed persistence layer over a Backend. Users are indexed by
// username with a numeric-id side index; credentials live inside the user
// document; each user owns a single task document. Mutations are
// read-modify-write, serialized by a store-level mutex.
type Store struct {
	backend Backend
	mu      sync.Mutex
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func userKey(username string) string {
	return "users/name/" + url.PathEscape(username)
}

func userIDKey(id int64) string {
	return "users/id/" + strconv.FormatInt(id, 10)
}

func tasksKey(userID int64) string {
	return "tasks/" + strconv.FormatInt(userID, 10)
}

const (
	userSeqKey  = "seq/users"
	holidaysKey = "holidays"
)

func (s *Store) getUser(ctx context.Context, username string) (*models.User, error) {
	data, err := s.backend.Get(ctx, userKey(username))
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %q: %w", username, err)
	}
	return &user, nil
}

func (s *Store) putUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %q: %w", user.Username, err)
	}
	return s.backend.Put(ctx, userKey(user.Username), data)
}

// GetUserByName looks up a user by their unique username.
func (s *Store) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, username)
}

// GetUserByID resolves a numeric user id through the id index.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	data, err := s.backend.Get(ctx, userIDKey(id))
	if err != nil {
		return nil, err
	}
	return s.getUser(ctx, string(data))
}

// CreateUser creates a user together with their first credential. Returns
// ErrConflict if the username is already taken; the losing side of two
// concurrent registrations for the same username gets the conflict.
func (s *Store) CreateUser(ctx context.Context, username string, handle []byte, credential webauthn.Credential) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getUser(ctx, username); err == nil {
		return nil, fmt.Errorf("username %q: %w", username, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id, err := s.backend.Incr(ctx, userSeqKey)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate user id: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:          id,
		Username:    username,
		Handle:      handle,
		Credentials: []webauthn.Credential{credential},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.putUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.backend.Put(ctx, userIDKey(id), []byte(username)); err != nil {
		return nil, err
	}
	return user, nil
}

// AddCredential registers an additional credential for an existing user.
// The (user, credential id) pair must be unique.
func (s *Store) AddCredential(ctx context.Context, username string, credential webauthn.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.getUser(ctx, username)
	if err != nil {
		return err
	}
	if user.Credential(credential.ID) != nil {
		return fmt.Errorf("credential: %w", ErrConflict)
	}

	user.Credentials = append(user.Credentials, credential)
	user.UpdatedAt = time.Now().UTC()
	return s.putUser(ctx, user)
}

// UpdateCredentialCounter persists the signature counter reported by a
// successful authentication.
func (s *Store) UpdateCredentialCounter(ctx context.Context, username string, credentialID []byte, count uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.getUser(ctx, username)
	if err != nil {
		return err
	}

	cred := user.Credential(credentialID)
	if cred == nil {
		return fmt.Errorf("credential: %w", ErrNotFound)
	}

	cred.Authenticator.SignCount = count
	user.UpdatedAt = time.Now().UTC()
	return s.putUser(ctx, user)
}

// TaskData loads a user's task document. A user who has stored nothing yet
// gets an empty document.
func (s *Store) TaskData(ctx context.Context, userID int64) (*models.TaskData, error) {
	data, err := s.backend.Get(ctx, tasksKey(userID))
	if errors.Is(err, ErrNotFound) {
		return &models.TaskData{}, nil
	}
	if err != nil {
		return nil, err
	}

	var doc models.TaskData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task data for user %d: %w", userID, err)
	}
	return &doc, nil
}

// MutateTasks applies fn to the user's task document under the store lock
// and persists the result. If fn returns an error nothing is written and
// the error is returned as-is.
func (s *Store) MutateTasks(ctx context.Context, userID int64, fn func(*models.TaskData) error) (*models.TaskData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.TaskData(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := fn(doc); err != nil {
		return nil, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task data for user %d: %w", userID, err)
	}
	if err := s.backend.Put(ctx, tasksKey(userID), data); err != nil {
		return nil, err
	}
	return doc, nil
}

// Holidays returns the shared public-holiday list, oldest first.
func (s *Store) Holidays(ctx context.Context) ([]models.Holiday, error) {
	data, err := s.backend.Get(ctx, holidaysKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var holidays []models.Holiday
	if err := json.Unmarshal(data, &holidays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal holidays: %w", err)
	}
	return holidays, nil
}

// SeedHolidays stores the holiday list if none exists yet.
func (s *Store) SeedHolidays(ctx context.Context, holidays []models.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.backend.Get(ctx, holidaysKey); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	data, err := json.Marshal(holidays)
	if err != nil {
		return fmt.Errorf("failed to marshal holidays: %w", err)
	}
	return s.backend.Put(ctx, holidaysKey, data)
}
