// Package identity manages the anonymous user token and the remembered
// search ZIP. There are no accounts: a stable random ID is generated on
// first use and persisted on the local machine, so repeat submissions
// from the same install are attributable without any sign-in.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/grainstats/basis-tracker/internal/model"
)

// Provider supplies the anonymous user ID and the remembered ZIP.
type Provider interface {
	// UserID returns the stable anonymous user ID, creating and
	// persisting one on first call.
	UserID() (string, error)
	// SavedZip returns the remembered search ZIP, empty when unset.
	SavedZip() (string, error)
	// SetSavedZip remembers the last searched ZIP.
	SetSavedZip(zip string) error
}

type identityFile struct {
	UserID   string `json:"user_id"`
	SavedZip string `json:"saved_zip,omitempty"`
}

// FileProvider persists identity state as a JSON file.
type FileProvider struct {
	path string
}

// DefaultPath returns the standard identity file location under the
// user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", eris.Wrap(err, "identity: resolve config dir")
	}
	return filepath.Join(dir, "basis-tracker", "identity.json"), nil
}

// NewFileProvider creates a FileProvider at path. An empty path uses
// DefaultPath.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return &FileProvider{path: path}, nil
}

func (p *FileProvider) load() (identityFile, error) {
	var f identityFile
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, eris.Wrap(err, "identity: read file")
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return identityFile{}, eris.Wrap(err, "identity: parse file")
	}
	return f, nil
}

func (p *FileProvider) save(f identityFile) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return eris.Wrap(err, "identity: create dir")
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return eris.Wrap(err, "identity: marshal file")
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return eris.Wrap(err, "identity: write file")
	}
	return nil
}

func (p *FileProvider) UserID() (string, error) {
	f, err := p.load()
	if err != nil {
		return "", err
	}
	if f.UserID != "" {
		return f.UserID, nil
	}
	f.UserID = uuid.New().String()
	if err := p.save(f); err != nil {
		return "", err
	}
	return f.UserID, nil
}

func (p *FileProvider) SavedZip() (string, error) {
	f, err := p.load()
	if err != nil {
		return "", err
	}
	return f.SavedZip, nil
}

func (p *FileProvider) SetSavedZip(zip string) error {
	if !model.ValidZip(zip) {
		return eris.Errorf("identity: %q is not a 5-digit zip code", zip)
	}
	f, err := p.load()
	if err != nil {
		return err
	}
	f.SavedZip = zip
	return p.save(f)
}

// MemoryProvider is an in-memory Provider for tests.
type MemoryProvider struct {
	ID  string
	Zip string
}

func (m *MemoryProvider) UserID() (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return m.ID, nil
}

func (m *MemoryProvider) SavedZip() (string, error) { return m.Zip, nil }

func (m *MemoryProvider) SetSavedZip(zip string) error {
	m.Zip = zip
	return nil
}
