package regime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"RegimeSentinel/internal/hmm"
	"RegimeSentinel/internal/model"
	"RegimeSentinel/internal/scaler"
)

// Snapshot is the persisted form of a fitted run: everything Apply needs.
type Snapshot struct {
	Symbol   string         `json:"symbol"`
	Window   int            `json:"window"`
	Features []string       `json:"features"`
	Scaler   *scaler.Params `json:"scaler"`
	Model    *hmm.Params    `json:"model"`
	SavedAt  time.Time      `json:"saved_at"`
}

// SaveModel writes the fitted scaler and model to a JSON file.
func SaveModel(filePath, symbol string, r *Result) error {
	snap := Snapshot{
		Symbol:   symbol,
		Window:   r.Window,
		Features: r.Features,
		Scaler:   r.Scaler,
		Model:    r.Model,
		SavedAt:  time.Now(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// LoadModel reads a snapshot written by SaveModel. The returned Result has no
// training rows; use Apply to label data.
func LoadModel(filePath string) (*Result, *Snapshot, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode model %s: %w", filePath, err)
	}
	if snap.Scaler == nil || snap.Model == nil {
		return nil, nil, fmt.Errorf("%w: model file %s is incomplete", model.ErrConfiguration, filePath)
	}
	if err := snap.Model.Check(); err != nil {
		return nil, nil, err
	}
	if err := snap.Scaler.Check(); err != nil {
		return nil, nil, fmt.Errorf("model file %s: %w", filePath, err)
	}
	if snap.Scaler.Columns() != snap.Model.NFeatures || len(snap.Features) != snap.Model.NFeatures {
		return nil, nil, fmt.Errorf("%w: scaler has %d columns, model %d, features %d",
			model.ErrShapeMismatch, snap.Scaler.Columns(), snap.Model.NFeatures, len(snap.Features))
	}
	return &Result{
		Window:   snap.Window,
		Features: snap.Features,
		Scaler:   snap.Scaler,
		Model:    snap.Model,
	}, &snap, nil
}
