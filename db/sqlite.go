package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps training runs and prediction history. Model weights are never
// stored; every process trains its own model.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS training_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    iterations INTEGER NOT NULL,
    error REAL NOT NULL,
    accuracy REAL NOT NULL,
    duration_ms INTEGER NOT NULL,
    data_points INTEGER NOT NULL,
    converged INTEGER NOT NULL,
    trained_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sepal_length REAL,
    sepal_width REAL,
    petal_length REAL,
    petal_width REAL,
    predicted_class VARCHAR(20) NOT NULL,
    confidence REAL,
    source VARCHAR(20) NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type TrainingRun struct {
	Iterations int           `json:"iterations"`
	Error      float64       `json:"error"`
	Accuracy   float64       `json:"accuracy"`
	Duration   time.Duration `json:"duration"`
	DataPoints int           `json:"data_points"`
	Converged  bool          `json:"converged"`
	TrainedAt  time.Time     `json:"trained_at"`
}

func (s *Store) SaveTrainingRun(ctx context.Context, run TrainingRun) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (iterations, error, accuracy, duration_ms, data_points, converged, trained_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Iterations, run.Error, run.Accuracy, run.Duration.Milliseconds(), run.DataPoints, run.Converged, run.TrainedAt.UTC())
	return err
}

// TrainingRuns returns the most recent runs first.
func (s *Store) TrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT iterations, error, accuracy, duration_ms, data_points, converged, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		var durationMS int64
		if err := rows.Scan(&run.Iterations, &run.Error, &run.Accuracy, &durationMS, &run.DataPoints, &run.Converged, &run.TrainedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type PredictionRecord struct {
	SepalLength float64   `json:"sepal_length"`
	SepalWidth  float64   `json:"sepal_width"`
	PetalLength float64   `json:"petal_length"`
	PetalWidth  float64   `json:"petal_width"`
	Class       string    `json:"class"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, p PredictionRecord) error {
	if p.Class == "" {
		return errors.New("prediction class required")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            sepal_length, sepal_width, petal_length, petal_width,
            predicted_class, confidence, source, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullFloat(p.SepalLength), nullFloat(p.SepalWidth), nullFloat(p.PetalLength), nullFloat(p.PetalWidth),
		p.Class, nullFloat(p.Confidence), p.Source, p.CreatedAt.UTC())
	return err
}

// RecentPredictions returns the newest predictions first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT sepal_length, sepal_width, petal_length, petal_width,
               predicted_class, confidence, source, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var p PredictionRecord
		var sl, sw, pl, pw, conf sql.NullFloat64
		if err := rows.Scan(&sl, &sw, &pl, &pw, &p.Class, &conf, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.SepalLength = floatOrNaN(sl)
		p.SepalWidth = floatOrNaN(sw)
		p.PetalLength = floatOrNaN(pl)
		p.PetalWidth = floatOrNaN(pw)
		p.Confidence = floatOrNaN(conf)
		records = append(records, p)
	}
	return records, rows.Err()
}

// SQLite has no NaN; store it as NULL and read NULL back as NaN.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
