package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("credential record not found")
	// ErrDuplicate is matched by every *DuplicateError.
	ErrDuplicate = errors.New("username or email already registered")
	// ErrInvalidCredentials covers both unknown identifiers and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a verification or reset token does not match.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnknownField is returned by UpdateField for paths outside the record schema.
	ErrUnknownField = errors.New("unknown record field")
)

// DuplicateError names the field that collided during registration.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

// Is makes errors.Is(err, ErrDuplicate) hold for any DuplicateError.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// ValidationError reports a malformed registration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RegisterOptions carries the optional fields of a new record.
type RegisterOptions struct {
	FirstName   string
	LastName    string
	Active      bool
	Staff       bool
	Superuser   bool
	Preferences *Preferences
}

// ResetGrant is the result of issuing a password reset token.
type ResetGrant struct {
	Token  string
	UserID string
}

type document struct {
	Users []Record `json:"users"`
}

// Store is the JSON-file credential store. Every mutation re-reads the whole
// document and replaces it atomically (temp file + rename) under a process-wide
// lock, so writers inside one process never lose updates. Separate processes
// sharing the file still race: last writer wins.
type Store struct {
	path     string
	mu       sync.Mutex
	now      func() time.Time
	validate *validator.Validate
}

// Open returns a store backed by path, creating an empty document if absent.
func Open(path string) (*Store, error) {
	s := &Store{
		path:     path,
		now:      time.Now,
		validate: validator.New(),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create credential directory: %w", err)
			}
		}
		if err := s.save(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat credential file: %w", err)
	}

	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Register validates and stores a new record. The password is hashed with a
// fresh salt. Username and email must both be unused.
func (s *Store) Register(username, email, password string, opts RegisterOptions) (*Record, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "username is required"}
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, &ValidationError{Field: "email", Message: "a valid email address is required"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "password is required"}
	}

	prefs := DefaultPreferences()
	if opts.Preferences != nil {
		prefs = *opts.Preferences
		if prefs.PreferredVoice == "" {
			prefs.PreferredVoice = DefaultVoice
		}
	}

	record := Record{
		ID:          NewID(),
		Username:    username,
		Email:       email,
		FirstName:   opts.FirstName,
		LastName:    opts.LastName,
		IsActive:    opts.Active,
		IsStaff:     opts.Staff,
		IsSuperuser: opts.Superuser,
		DateJoined:  s.now(),
		Preferences: prefs,
	}
	record.setPassword(password)

	err := s.mutate(func(users []Record) ([]Record, error) {
		for _, u := range users {
			if u.Username == username {
				return nil, &DuplicateError{Field: "username"}
			}
			if u.Email == email {
				return nil, &DuplicateError{Field: "email"}
			}
		}
		return append(users, record), nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// CreateSuperuser registers an active staff superuser, bypassing email verification.
func (s *Store) CreateSuperuser(username, email, password string) (*Record, error) {
	return s.Register(username, email, password, RegisterOptions{
		Active:    true,
		Staff:     true,
		Superuser: true,
	})
}

// Authenticate resolves identifier as a username first, then as an email, and
// checks the password against the stored salted hash. On success last_login is
// updated. Unknown identifiers and wrong passwords both yield ErrInvalidCredentials.
func (s *Store) Authenticate(identifier, password string) (*Record, error) {
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var matched *Record
	err := s.mutate(func(users []Record) ([]Record, error) {
		idx := indexOf(users, func(r *Record) bool { return r.Username == identifier })
		if idx < 0 {
			idx = indexOf(users, func(r *Record) bool { return r.Email == identifier })
		}
		if idx < 0 || !users[idx].CheckPassword(password) {
			return nil, ErrInvalidCredentials
		}

		now := s.now()
		users[idx].LastLogin = &now
		rec := users[idx]
		matched = &rec
		return users, nil
	})
	if err != nil {
		return nil, err
	}

	return matched, nil
}

// FindByID returns the record with the given id.
func (s *Store) FindByID(id string) (*Record, error) {
	return s.find(func(r *Record) bool { return r.ID == id })
}

// FindByUsername returns the record with the given username.
func (s *Store) FindByUsername(username string) (*Record, error) {
	return s.find(func(r *Record) bool { return r.Username == username })
}

// FindByEmail returns the record with the given email.
func (s *Store) FindByEmail(email string) (*Record, error) {
	return s.find(func(r *Record) bool { return r.Email == email })
}

// UpdateField sets one field of a record. Nested preference fields use dotted
// paths such as "preferences.preferred_voice". Paths outside the record schema
// are rejected with ErrUnknownField.
func (s *Store) UpdateField(id, path string, value any) error {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("%w: %q", ErrUnknownField, path)
		}
	}

	return s.mutate(func(users []Record) ([]Record, error) {
		idx := indexOf(users, func(r *Record) bool { return r.ID == id })
		if idx < 0 {
			return nil, ErrNotFound
		}

		updated, err := setPath(users[idx], parts, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrUnknownField, path, err)
		}
		// the id is the record's identity and never changes through field updates
		updated.ID = users[idx].ID
		users[idx] = updated
		return users, nil
	})
}

// IssueVerificationToken stores and returns a fresh email verification token.
func (s *Store) IssueVerificationToken(id string) (string, error) {
	token := NewToken()
	err := s.mutate(func(users []Record) ([]Record, error) {
		idx := indexOf(users, func(r *Record) bool { return r.ID == id })
		if idx < 0 {
			return nil, ErrNotFound
		}
		now := s.now()
		users[idx].VerificationToken = &token
		users[idx].TokenCreatedAt = &now
		return users, nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeVerification activates the record when token matches the stored one
// and clears the token. A mismatch leaves the record untouched.
func (s *Store) ConsumeVerification(id, token string) error {
	return s.mutate(func(users []Record) ([]Record, error) {
		idx := indexOf(users, func(r *Record) bool { return r.ID == id })
		if idx < 0 || !tokenMatches(users[idx].VerificationToken, token) {
			return nil, ErrInvalidToken
		}
		users[idx].IsActive = true
		users[idx].VerificationToken = nil
		users[idx].TokenCreatedAt = nil
		return users, nil
	})
}

// IssueResetToken stores a password reset token for the record owning email.
func (s *Store) IssueResetToken(email string) (*ResetGrant, error) {
	token := NewToken()
	var grant *ResetGrant
	err := s.mutate(func(users []Record) ([]Record, error) {
		idx := indexOf(users, func(r *Record) bool { return r.Email == email })
		if idx < 0 {
			return nil, ErrNotFound
		}
		now := s.now()
		users[idx].ResetToken = &token
		users[idx].ResetTokenCreatedAt = &now
		grant = &ResetGrant{Token: token, UserID: users[idx].ID}
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// CheckResetToken reports whether token is the live reset token for id without consuming it.
func (s *Store) CheckResetToken(id, token string) error {
	rec, err := s.FindByID(id)
	if err != nil || !tokenMatches(rec.ResetToken, token) {
		return ErrInvalidToken
	}
	return nil
}

// ConsumeReset replaces the password (with a new salt) when token matches and
// clears the token. A mismatch leaves the record untouched.
func (s *Store) ConsumeReset(id, token, newPassword string) error {
	if newPassword == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	return s.mutate(func(users []Record) ([]Record, error) {
		idx := indexOf(users, func(r *Record) bool { return r.ID == id })
		if idx < 0 || !tokenMatches(users[idx].ResetToken, token) {
			return nil, ErrInvalidToken
		}
		users[idx].setPassword(newPassword)
		users[idx].ResetToken = nil
		users[idx].ResetTokenCreatedAt = nil
		return users, nil
	})
}

// List returns a snapshot of every record.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) find(match func(*Record) bool) (*Record, error) {
	users, err := s.List()
	if err != nil {
		return nil, err
	}
	idx := indexOf(users, match)
	if idx < 0 {
		return nil, ErrNotFound
	}
	rec := users[idx]
	return &rec, nil
}

// mutate runs fn over the freshly loaded document and persists its result.
// Nothing is written when fn fails.
func (s *Store) mutate(fn func([]Record) ([]Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	users, err = fn(users)
	if err != nil {
		return err
	}
	return s.save(users)
}

func (s *Store) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	data, err = normalizeTimestamps(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	return doc.Users, nil
}

func (s *Store) save(users []Record) error {
	if users == nil {
		users = []Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(document{Users: users}); err != nil {
		return fmt.Errorf("failed to encode credential file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

func indexOf(users []Record, match func(*Record) bool) int {
	for i := range users {
		if match(&users[i]) {
			return i
		}
	}
	return -1
}

func tokenMatches(stored *string, presented string) bool {
	return stored != nil && presented != "" && *stored == presented
}

// setPath applies value at the dotted path through the record's JSON form and
// decodes the result strictly, so typos in field names surface as errors.
func setPath(rec Record, parts []string, value any) (Record, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return rec, err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return rec, err
	}

	target := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := target[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[part] = next
		}
		target = next
	}
	target[parts[len(parts)-1]] = value

	raw, err = json.Marshal(tree)
	if err != nil {
		return rec, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var out Record
	if err := dec.Decode(&out); err != nil {
		return rec, err
	}
	return out, nil
}
