package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// EnsureDir ensures the provided directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// SafeWriteFile writes data to a temp file and atomically renames it into place.
func SafeWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// WriteWith renders into memory with fn and then writes the result atomically,
// so a failed render never leaves a truncated file behind.
func WriteWith(path string, fn func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	return SafeWriteFile(path, buf.Bytes())
}

// PrettyJSON marshals a value as indented JSON.
func PrettyJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

// WriteJSON marshals v with PrettyJSON and writes it atomically.
func WriteJSON(path string, v any) error {
	b, err := PrettyJSON(v)
	if err != nil {
		return err
	}
	return SafeWriteFile(path, b)
}
