package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/models"
)

// TokenStore persists the two cross-run records: the agency token and the
// installed-locations sequence. Every save is a full replacement, never a
// partial patch; re-running the pipeline is always safe.
type TokenStore interface {
	LoadAgencyToken() (*models.AgencyToken, error)
	SaveAgencyToken(token *models.AgencyToken) error
	LoadLocations() ([]models.Location, error)
	SaveLocations(locations []models.Location) error
}

// locationsFile is the on-disk wrapper shape: {"locations": [...]}.
type locationsFile struct {
	Locations []models.Location `json:"locations"`
}

// FileStore keeps both records as human-readable indented JSON files.
type FileStore struct {
	tokenPath     string
	locationsPath string
}

// NewFileStore creates a file store for the given record paths.
func NewFileStore(tokenPath, locationsPath string) *FileStore {
	return &FileStore{tokenPath: tokenPath, locationsPath: locationsPath}
}

// LoadAgencyToken reads the persisted agency token.
func (s *FileStore) LoadAgencyToken() (*models.AgencyToken, error) {
	var token models.AgencyToken
	if err := s.readJSON(s.tokenPath, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// SaveAgencyToken overwrites the agency token record.
func (s *FileStore) SaveAgencyToken(token *models.AgencyToken) error {
	return s.writeJSON(s.tokenPath, token)
}

// LoadLocations reads the persisted locations sequence.
func (s *FileStore) LoadLocations() ([]models.Location, error) {
	var file locationsFile
	if err := s.readJSON(s.locationsPath, &file); err != nil {
		return nil, err
	}
	return file.Locations, nil
}

// SaveLocations replaces the entire locations sequence.
func (s *FileStore) SaveLocations(locations []models.Location) error {
	if locations == nil {
		locations = []models.Location{}
	}
	return s.writeJSON(s.locationsPath, locationsFile{Locations: locations})
}

func (s *FileStore) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &errors.ErrStateNotFound{Path: path}
		}
		return &errors.ErrFileRead{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &errors.ErrFileRead{Path: path, Err: err}
	}
	return nil
}

// writeJSON writes indented UTF-8 JSON through a temp file plus rename so a
// crash mid-write never leaves a truncated record behind.
func (s *FileStore) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	return nil
}

var _ TokenStore = (*FileStore)(nil)
