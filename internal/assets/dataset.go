// Package assets holds the read-only reference table of cryptocurrencies
// that grounds generated answers.
package assets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cryptopal-backend/internal/models"
)

//go:embed assets.yaml
var defaultAssets []byte

var ErrNotFound = errors.New("asset not found")

// Dataset is immutable after construction and safe for concurrent use.
type Dataset struct {
	records []models.AssetRecord
	byName  map[string]int
}

// Default returns the dataset compiled into the binary.
func Default() (*Dataset, error) {
	return Parse(defaultAssets)
}

// LoadFile reads a dataset from a YAML file. An empty path means the default set.
func LoadFile(path string) (*Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assets file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Dataset, error) {
	var records []models.AssetRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse assets: %w", err)
	}
	return New(records)
}

// New validates records and builds a dataset preserving their order.
func New(records []models.AssetRecord) (*Dataset, error) {
	d := &Dataset{
		records: make([]models.AssetRecord, 0, len(records)),
		byName:  make(map[string]int, len(records)),
	}
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		if rec.Name == "" {
			return nil, fmt.Errorf("asset %d: name is required", i)
		}
		if rec.SustainabilityScore < 0 || rec.SustainabilityScore > 10 {
			return nil, fmt.Errorf("asset %s: sustainability_score %d out of range 0-10", rec.Name, rec.SustainabilityScore)
		}
		key := strings.ToLower(rec.Name)
		if _, dup := d.byName[key]; dup {
			return nil, fmt.Errorf("asset %s: duplicate name", rec.Name)
		}
		d.byName[key] = len(d.records)
		d.records = append(d.records, rec)
	}
	return d, nil
}

// All returns a fresh name -> record mapping.
func (d *Dataset) All() map[string]models.AssetRecord {
	out := make(map[string]models.AssetRecord, len(d.records))
	for _, rec := range d.records {
		out[rec.Name] = rec
	}
	return out
}

// Records returns the records in dataset order.
func (d *Dataset) Records() []models.AssetRecord {
	return append([]models.AssetRecord(nil), d.records...)
}

// Lookup finds a record by name, ignoring case.
func (d *Dataset) Lookup(name string) (models.AssetRecord, error) {
	idx, ok := d.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return models.AssetRecord{}, ErrNotFound
	}
	return d.records[idx], nil
}

func (d *Dataset) Len() int {
	return len(d.records)
}
