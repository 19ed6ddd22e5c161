// Package credstore persists the portal bearer token and cookie header as
// two plain-text files.
package credstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/telemyapp/brother-bot/internal/model"
)

var (
	ErrNotFound     = errors.New("no cached credentials")
	ErrInvalidValue = errors.New("invalid credential value")
)

// IOError wraps a failed read, write or remove of one credential file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("credential %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

type FileStore struct {
	tokenPath  string
	cookiePath string
}

func New(tokenPath, cookiePath string) *FileStore {
	return &FileStore{tokenPath: tokenPath, cookiePath: cookiePath}
}

// Load returns ErrNotFound unless both files exist and are non-empty.
func (s *FileStore) Load() (model.Credentials, error) {
	token, err := readValue(s.tokenPath)
	if err != nil {
		return model.Credentials{}, err
	}
	cookie, err := readValue(s.cookiePath)
	if err != nil {
		return model.Credentials{}, err
	}
	creds := model.Credentials{BearerToken: token, CookieHeader: cookie}
	if !creds.Complete() {
		return model.Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (s *FileStore) Save(creds model.Credentials) error {
	if err := validateValue("bearer token", creds.BearerToken); err != nil {
		return err
	}
	if err := validateValue("cookie header", creds.CookieHeader); err != nil {
		return err
	}
	if err := writeValue(s.tokenPath, creds.BearerToken); err != nil {
		return err
	}
	return writeValue(s.cookiePath, creds.CookieHeader)
}

// Clear removes both files. Missing files are not an error.
func (s *FileStore) Clear() error {
	for _, p := range []string{s.tokenPath, s.cookiePath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &IOError{Op: "remove", Path: p, Err: err}
		}
	}
	return nil
}

func readValue(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", &IOError{Op: "read", Path: path, Err: err}
	}
	return strings.TrimSpace(string(raw)), nil
}

// Values become HTTP header values, so anything a header could not carry
// verbatim is refused. This also keeps Load's whitespace trim lossless.
func validateValue(name, v string) error {
	switch {
	case v == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidValue, name)
	case strings.ContainsAny(v, "\r\n"):
		return fmt.Errorf("%w: %s contains a line break", ErrInvalidValue, name)
	case strings.TrimSpace(v) != v:
		return fmt.Errorf("%w: %s has surrounding whitespace", ErrInvalidValue, name)
	}
	return nil
}

func writeValue(path, v string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(v); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
