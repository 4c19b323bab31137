// Package prefs provides a small persistent key/value store for user preferences
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/util"
)

// Store keeps preferences in a YAML file, rewritten on every change
//
// Store with empty path keeps everything in memory
type Store struct {
	logger logger.Logger
	path   string
	mutex  sync.Mutex
	values map[string]interface{}
}

// Open loads preferences from path. Missing file is not an error
func Open(parentLogger logger.Logger, path string) (*Store, error) {
	s := &Store{
		logger: parentLogger.WithField(defs.LabelComponent, "Prefs"),
		path:   path,
		mutex:  sync.Mutex{},
		values: make(map[string]interface{}),
	}
	if path == "" {
		return s, nil
	}
	if err := util.UnmarshalYamlFile(path, &s.values); err != nil {
		if os.IsNotExist(err) || errors.Is(err, io.EOF) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to load preferences from '%s': %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]interface{})
	}
	return s, nil
}

// GetBool returns the boolean value under key, or defaultValue if absent or of other types
func (s *Store) GetBool(key string, defaultValue bool) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, ok := s.values[key].(bool)
	if !ok {
		return defaultValue
	}
	return value
}

// PutBool stores a boolean value
func (s *Store) PutBool(key string, value bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if existing, ok := s.values[key].(bool); ok && existing == value {
		return nil
	}
	s.values[key] = value
	return s.saveLocked()
}

// GetString returns the string value under key, or defaultValue if absent or of other types
func (s *Store) GetString(key string, defaultValue string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, ok := s.values[key].(string)
	if !ok {
		return defaultValue
	}
	return value
}

// PutString stores a string value
func (s *Store) PutString(key string, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if existing, ok := s.values[key].(string); ok && existing == value {
		return nil
	}
	s.values[key] = value
	return s.saveLocked()
}

// Remove deletes the value under key if any
func (s *Store) Remove(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	text, merr := util.MarshalYaml(s.values)
	if merr != nil {
		return fmt.Errorf("failed to marshal preferences: %w", merr)
	}

	tmpFile, cerr := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if cerr != nil {
		return fmt.Errorf("failed to create preferences file: %w", cerr)
	}
	tmpPath := tmpFile.Name()
	_, werr := tmpFile.WriteString(text)
	if werr == nil {
		werr = tmpFile.Sync()
	}
	if err := tmpFile.Close(); werr == nil {
		werr = err
	}
	if werr == nil {
		werr = os.Rename(tmpPath, s.path)
	}
	if werr != nil {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warnf("error removing '%s': %s", tmpPath, err.Error())
		}
		return fmt.Errorf("failed to write preferences file '%s': %w", s.path, werr)
	}
	s.logger.Debugf("saved %d entries to '%s'", len(s.values), s.path)
	return nil
}
