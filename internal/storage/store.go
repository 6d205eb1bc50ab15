// Package storage persists runs: a metadata.json record and a thermo.csv
// log per run directory, plus XYZ trajectories.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/mdsim/internal/sim"
)

var ErrThermoFormat = errors.New("storage: malformed thermo log")

const (
	metadataFile = "metadata.json"
	thermoFile   = "thermo.csv"

	// TrajectoryFile is the conventional trajectory name inside a run directory.
	TrajectoryFile = "trajectory.xyz"
)

var thermoHeader = []string{"step", "time", "ke", "pe", "total", "temp", "builds"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Steps       int                `json:"steps"`
	Particles   int                `json:"particles"`
	Box         [3]float64         `json:"box"`
	Cutoff      float64            `json:"cutoff"`
	Skin        float64            `json:"skin"`
	Temperature float64            `json:"temperature"`
	Potential   string             `json:"potential"`
	Integrator  string             `json:"integrator"`
	Evaluator   string             `json:"evaluator"`
	Builds      int                `json:"builds"`
	Elapsed     string             `json:"elapsed"`
	Metrics     map[string]float64 `json:"metrics"`
	Trajectory  string             `json:"trajectory,omitempty"`
	// FrameInterval is the simulated time between trajectory frames.
	FrameInterval float64 `json:"frame_interval,omitempty"`
}

// NewRunID returns a fresh directory name for a run called name.
func NewRunID(name string) string {
	return fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
}

// RunDir returns the directory holding runID.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// Save writes the run record and thermo log. An empty meta.ID gets a fresh
// id from NewRunID.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Name)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Metrics = result.Metrics
	meta.Builds = result.Builds
	meta.Elapsed = result.Elapsed.String()

	runDir := s.RunDir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, thermoFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(thermoHeader); err != nil {
		return "", err
	}
	for _, smp := range result.Samples {
		row := []string{
			strconv.Itoa(smp.Step),
			formatFloat(smp.Time),
			formatFloat(smp.Kinetic),
			formatFloat(smp.Potential),
			formatFloat(smp.Total),
			formatFloat(smp.Temperature),
			strconv.Itoa(smp.Builds),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// List returns every readable run record, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadThermo reads back the samples written by Save.
func (s *Store) LoadThermo(runID string) ([]sim.Sample, error) {
	file, err := os.Open(filepath.Join(s.RunDir(runID), thermoFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(thermoHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrThermoFormat, err)
	}
	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	samples := make([]sim.Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		var vals [5]float64
		for j := range vals {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrThermoFormat, i+1, err)
			}
			vals[j] = v
		}
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrThermoFormat, i+1, err)
		}
		builds, err := strconv.Atoi(record[6])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrThermoFormat, i+1, err)
		}

		samples = append(samples, sim.Sample{
			Step:        step,
			Time:        vals[0],
			Kinetic:     vals[1],
			Potential:   vals[2],
			Total:       vals[3],
			Temperature: vals[4],
			Builds:      builds,
		})
	}

	return samples, nil
}

// Column extracts one named thermo column ("ke", "pe", "total", "temp",
// "builds") as a series.
func Column(samples []sim.Sample, name string) ([]float64, error) {
	out := make([]float64, len(samples))
	for i, smp := range samples {
		switch name {
		case "ke":
			out[i] = smp.Kinetic
		case "pe":
			out[i] = smp.Potential
		case "total":
			out[i] = smp.Total
		case "temp":
			out[i] = smp.Temperature
		case "builds":
			out[i] = float64(smp.Builds)
		case "time":
			out[i] = smp.Time
		default:
			return nil, fmt.Errorf("unknown column %q (available: ke, pe, total, temp, builds, time)", name)
		}
	}
	return out, nil
}
