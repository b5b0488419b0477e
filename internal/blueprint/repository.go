package blueprint

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crewline/foreman/internal/errors"
)

// Repository defines the interface for loading and saving blueprint files.
// This interface enables dependency injection and makes testing easier.
type Repository interface {
	// Load reads a Blueprint from a file
	Load(path string) (*Blueprint, error)

	// Save writes a Blueprint to a file
	Save(bp *Blueprint, path string) error
}

// FileRepository implements Repository for file-based storage
type FileRepository struct{}

// NewFileRepository creates a new file-based blueprint repository
func NewFileRepository() *FileRepository {
	return &FileRepository{}
}

// Load reads a Blueprint from a YAML file
func (r *FileRepository) Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewBlueprintNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read blueprint file", err)
	}

	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBlueprintUnmarshal, "unmarshal blueprint", err)
	}

	return &bp, nil
}

// Save writes a Blueprint to a YAML file
func (r *FileRepository) Save(bp *Blueprint, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "create directory", err)
	}

	data, err := yaml.Marshal(bp)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal blueprint", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write blueprint file", err)
	}

	return nil
}

// Default instance for package-level functions
var defaultRepository = NewFileRepository()

// Load reads a Blueprint from a YAML file using the default repository.
func Load(path string) (*Blueprint, error) {
	return defaultRepository.Load(path)
}

// Save writes a Blueprint to a YAML file using the default repository.
func Save(bp *Blueprint, path string) error {
	return defaultRepository.Save(bp, path)
}

// Compile-time verification that FileRepository implements Repository
var _ Repository = (*FileRepository)(nil)
