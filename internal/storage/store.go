package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/wire"
)

var ErrFailedResult = errors.New("storage: only successful results can be saved")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type MapMetadata struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"request_id"`
	Timestamp   time.Time  `json:"timestamp"`
	Origin      [3]float64 `json:"origin"`
	Extents     [3]int     `json:"extents"`
	Resolution  float64    `json:"resolution"`
	Method      string     `json:"method"`
	Gradient    bool       `json:"gradient"`
	Free        int        `json:"free"`
	Occupied    int        `json:"occupied"`
	OutOfBounds int        `json:"out_of_bounds"`
	QueryErrors int        `json:"query_errors"`
	MinDistance float64    `json:"min_distance"`
	MaxDistance float64    `json:"max_distance"`
	BuildMillis float64    `json:"build_ms"`
}

// Save writes metadata.json, cells.csv and map.pb under a new map directory
// and returns its ID.
func (s *Store) Save(res *mapping.Result) (string, error) {
	if !res.OK() {
		return "", ErrFailedResult
	}

	mapID := fmt.Sprintf("%s_%d", safeName(res.RequestID), res.BuiltAt.UnixNano())
	mapDir := filepath.Join(s.baseDir, mapID)
	if err := os.MkdirAll(mapDir, 0755); err != nil {
		return "", err
	}

	meta := Metadata(res)
	meta.ID = mapID
	if err := writeJSON(filepath.Join(mapDir, "metadata.json"), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(mapDir, "cells.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	if err := WriteCells(csvFile, Cells(res)); err != nil {
		return "", fmt.Errorf("storage: write cells: %w", err)
	}

	if err := os.WriteFile(filepath.Join(mapDir, "map.pb"), wire.EncodeResult(res), 0644); err != nil {
		return "", err
	}
	return mapID, nil
}

// Metadata summarises a result without its cell arrays.
func Metadata(res *mapping.Result) MapMetadata {
	r := res.Region
	lo, hi := res.SDF.Range()
	return MapMetadata{
		RequestID:   res.RequestID,
		Timestamp:   res.BuiltAt,
		Origin:      [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z},
		Extents:     r.Extents,
		Resolution:  r.Resolution,
		Method:      res.Method.String(),
		Gradient:    res.Gradient != nil,
		Free:        res.Stats.Free,
		Occupied:    res.Stats.Occupied,
		OutOfBounds: res.Stats.OutOfBounds,
		QueryErrors: res.Stats.QueryErrors,
		MinDistance: lo,
		MaxDistance: hi,
		BuildMillis: float64(res.Elapsed.Microseconds()) / 1000,
	}
}

func writeJSON(path string, meta MapMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ExportJSON(f, meta)
}

func safeName(id string) string {
	if id == "" {
		return "map"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id)
}

func (s *Store) List() ([]MapMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []MapMetadata{}, nil
		}
		return nil, err
	}

	maps := make([]MapMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		maps = append(maps, *meta)
	}
	return maps, nil
}

func (s *Store) Load(mapID string) (*MapMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, mapID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta MapMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadWire returns the encoded result exactly as stored.
func (s *Store) LoadWire(mapID string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.baseDir, mapID, "map.pb"))
}

func (s *Store) LoadMessage(mapID string) (*wire.Message, error) {
	data, err := s.LoadWire(mapID)
	if err != nil {
		return nil, err
	}
	return wire.DecodeResult(data)
}

func (s *Store) LoadCells(mapID string) ([]Cell, error) {
	f, err := os.Open(filepath.Join(s.baseDir, mapID, "cells.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cells []Cell
	if err := gocsv.UnmarshalFile(f, &cells); err != nil {
		return nil, fmt.Errorf("storage: read cells: %w", err)
	}
	return cells, nil
}
