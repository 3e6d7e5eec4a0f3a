// Package modelstore persists the trained model state produced by the
// offline training run and loads it read-only for inference.
package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/KaramelBytes/climascope/internal/anomaly"
	"github.com/KaramelBytes/climascope/internal/cluster"
	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/preprocess"
	"github.com/KaramelBytes/climascope/internal/utils"
	"github.com/google/uuid"
)

const (
	manifestFileName   = "manifest.json"
	preprocessFileName = "preprocess.json"
	kmeansFileName     = "kmeans.json"
	forestFileName     = "isolation_forest.json"
)

// Manifest describes a trained bundle.
type Manifest struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Dataset       string    `json:"dataset"`
	Rows          int       `json:"rows"`
	Columns       []string  `json:"columns"`
	SchemaPolicy  string    `json:"schema_policy"`
	Clusters      int       `json:"clusters"`
	Contamination float64   `json:"contamination"`
}

// Bundle is the trained model state: fitted preprocessing plus both models.
type Bundle struct {
	Manifest   Manifest
	Preprocess preprocess.Params
	KMeans     *cluster.KMeans
	Forest     *anomaly.IsolationForest

	// Not serialized: directory the bundle was loaded from or saved to.
	rootDir string
}

// NewBundle assembles a bundle with a fresh ID.
func NewBundle(datasetName string, rows int, params preprocess.Params, km *cluster.KMeans, forest *anomaly.IsolationForest, createdAt time.Time) *Bundle {
	return &Bundle{
		Manifest: Manifest{
			ID:            uuid.NewString(),
			CreatedAt:     createdAt,
			Dataset:       datasetName,
			Rows:          rows,
			Columns:       slices.Clone(params.Columns),
			Clusters:      km.K(),
			Contamination: forest.Contamination,
		},
		Preprocess: params,
		KMeans:     km,
		Forest:     forest,
	}
}

// Columns returns the trained feature columns in order.
func (b *Bundle) Columns() []string { return b.Manifest.Columns }

// RootDir returns the on-disk directory, if any.
func (b *Bundle) RootDir() string { return b.rootDir }

// Validate checks that every part of the bundle agrees on the feature schema.
func (b *Bundle) Validate() error {
	if b.KMeans == nil || b.Forest == nil {
		return errors.New("bundle is missing a model")
	}
	if err := b.Preprocess.Validate(); err != nil {
		return fmt.Errorf("preprocess params: %w", err)
	}
	if err := b.Forest.Validate(); err != nil {
		return fmt.Errorf("isolation forest: %w", err)
	}
	cols := b.Manifest.Columns
	if !slices.Equal(cols, b.Preprocess.Columns) {
		return fmt.Errorf("preprocess columns %v differ from manifest %v", b.Preprocess.Columns, cols)
	}
	if !slices.Equal(cols, b.KMeans.Columns) {
		return fmt.Errorf("kmeans columns %v differ from manifest %v", b.KMeans.Columns, cols)
	}
	if !slices.Equal(cols, b.Forest.Columns) {
		return fmt.Errorf("isolation forest columns %v differ from manifest %v", b.Forest.Columns, cols)
	}
	if b.KMeans.K() == 0 {
		return errors.New("kmeans has no centroids")
	}
	for _, c := range b.KMeans.Centroids {
		if len(c) != len(cols) {
			return fmt.Errorf("kmeans centroid has %d values for %d columns", len(c), len(cols))
		}
	}
	return nil
}

// Save writes the bundle into dir, one JSON file per part.
func (b *Bundle) Save(dir string) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid bundle: %w", err)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	parts := []struct {
		name string
		v    any
	}{
		{preprocessFileName, b.Preprocess},
		{kmeansFileName, b.KMeans},
		{forestFileName, b.Forest},
		{manifestFileName, b.Manifest},
	}
	for _, p := range parts {
		if err := utils.WriteJSON(filepath.Join(dir, p.name), p.v); err != nil {
			return fmt.Errorf("save %s: %w", p.name, err)
		}
	}
	b.rootDir = dir
	return nil
}

// Load reads a bundle from dir. Any unreadable, malformed or mutually
// inconsistent part yields a *domain.ModelLoadError.
func Load(dir string) (*Bundle, error) {
	b := &Bundle{rootDir: dir, KMeans: &cluster.KMeans{}, Forest: &anomaly.IsolationForest{}}
	parts := []struct {
		name string
		v    any
	}{
		{manifestFileName, &b.Manifest},
		{preprocessFileName, &b.Preprocess},
		{kmeansFileName, b.KMeans},
		{forestFileName, b.Forest},
	}
	for _, p := range parts {
		path := filepath.Join(dir, p.name)
		if err := readJSON(path, p.v); err != nil {
			return nil, &domain.ModelLoadError{Path: path, Err: err}
		}
	}
	if err := b.Validate(); err != nil {
		return nil, &domain.ModelLoadError{Path: dir, Err: err}
	}
	return b, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("not found (run `climascope train` first): %w", err)
		}
		return fmt.Errorf("read: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}
