package utils

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONWriteOptions holds options for JSON writing
type JSONWriteOptions struct {
	Indent          string
	FileMode        os.FileMode
	DirMode         os.FileMode
	Atomic          bool
	TrailingNewline bool
}

// DefaultJSONWriteOptions returns default options for JSON writing
func DefaultJSONWriteOptions() JSONWriteOptions {
	return JSONWriteOptions{
		Indent:          "  ",
		FileMode:        0644,
		DirMode:         0755,
		Atomic:          true,
		TrailingNewline: true,
	}
}

// SecretJSONWriteOptions returns options for files that hold credentials:
// owner-only permissions on both the file and its directory.
func SecretJSONWriteOptions() JSONWriteOptions {
	opts := DefaultJSONWriteOptions()
	opts.FileMode = 0600
	opts.DirMode = 0700
	return opts
}

// WriteJSONFile writes a Go object to a JSON file with the given options
func WriteJSONFile(filePath string, data interface{}, options JSONWriteOptions) error {
	var jsonData []byte
	var err error

	if options.Indent != "" {
		jsonData, err = json.MarshalIndent(data, "", options.Indent)
	} else {
		jsonData, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if options.TrailingNewline {
		jsonData = append(jsonData, '\n')
	}

	if options.Atomic {
		return AtomicWriteFile(filePath, jsonData, options.FileMode, options.DirMode)
	}

	if err := EnsureDir(dirOf(filePath), options.DirMode); err != nil {
		return err
	}
	if err := os.WriteFile(filePath, jsonData, options.FileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return os.Chmod(filePath, options.FileMode)
}

// ReadJSONFile reads a JSON file into a Go object
func ReadJSONFile(filePath string, target interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from %s: %w", filePath, err)
	}

	return nil
}
