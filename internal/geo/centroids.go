package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ErrMissingColumns is returned when a centroid CSV lacks a postal code,
// latitude or longitude column.
var ErrMissingColumns = errors.New("centroid csv missing required columns")

// Accepted header spellings, compared case-insensitively.
var (
	postalHeaders = []string{"zip", "postal_code", "postal", "zipcode"}
	latHeaders    = []string{"lat", "latitude"}
	lonHeaders    = []string{"lon", "lng", "longitude"}
)

// CentroidLookup maps five-digit postal codes to centroid coordinates.
// The dataset is read lazily on first use and is read-only afterwards.
// A missing dataset degrades to an empty table so that radius filtering is
// skipped rather than failing the request.
type CentroidLookup struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	loaded    bool
	centroids map[string]Point
}

// NewCentroidLookup creates a lookup backed by the CSV file at path.
// A nil logger falls back to slog.Default().
func NewCentroidLookup(path string, logger *slog.Logger) *CentroidLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &CentroidLookup{path: path, logger: logger}
}

// NewStaticCentroidLookup creates a lookup pre-populated with centroids.
// Keys are normalized; entries whose key is not a valid postal code are dropped.
func NewStaticCentroidLookup(centroids map[string]Point) *CentroidLookup {
	l := &CentroidLookup{logger: slog.Default(), loaded: true, centroids: make(map[string]Point, len(centroids))}
	for raw, p := range centroids {
		if code, ok := NormalizePostalCode(raw); ok {
			l.centroids[code] = p
		}
	}
	return l
}

// Lookup returns the centroid for a postal code. The code is normalized
// first, so "94105-1234" resolves the same as "94105".
func (l *CentroidLookup) Lookup(postalCode string) (Point, bool) {
	code, ok := NormalizePostalCode(postalCode)
	if !ok {
		return Point{}, false
	}
	l.ensureLoaded()

	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.centroids[code]
	return p, ok
}

// CountLoaded returns the number of centroids held, loading the dataset if
// it has not been read yet.
func (l *CentroidLookup) CountLoaded() int {
	l.ensureLoaded()

	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.centroids)
}

// ResetForTests discards the loaded table so the next call reloads it.
func (l *CentroidLookup) ResetForTests() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
	l.centroids = nil
}

func (l *CentroidLookup) ensureLoaded() {
	l.mu.RLock()
	loaded := l.loaded
	l.mu.RUnlock()
	if loaded {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return
	}

	centroids, err := l.readFile()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("geo dataset unavailable, radius filtering disabled",
				"code", "GeoDatasetUnavailable",
				"path", l.path)
		} else {
			l.logger.Error("failed to load geo dataset, radius filtering disabled",
				"path", l.path,
				"error", err)
		}
		centroids = map[string]Point{}
	} else {
		l.logger.Info("geo dataset loaded", "path", l.path, "count", len(centroids))
	}

	l.centroids = centroids
	l.loaded = true
}

func (l *CentroidLookup) readFile() (map[string]Point, error) {
	if l.path == "" {
		return nil, fmt.Errorf("no geo dataset path configured: %w", fs.ErrNotExist)
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseCentroids(f)
}

// ParseCentroids reads a centroid CSV. Rows with an unparseable postal code
// or coordinate are skipped.
func ParseCentroids(r io.Reader) (map[string]Point, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]Point{}, nil
		}
		return nil, fmt.Errorf("failed to read centroid header: %w", err)
	}

	postalIdx := columnIndex(header, postalHeaders)
	latIdx := columnIndex(header, latHeaders)
	lonIdx := columnIndex(header, lonHeaders)
	if postalIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, fmt.Errorf("%w: header %v", ErrMissingColumns, header)
	}

	centroids := make(map[string]Point)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read centroid row: %w", err)
		}
		if postalIdx >= len(record) || latIdx >= len(record) || lonIdx >= len(record) {
			continue
		}

		code, ok := NormalizePostalCode(record[postalIdx])
		if !ok {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(record[latIdx]), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[lonIdx]), 64)
		if err != nil {
			continue
		}
		centroids[code] = Point{Lat: lat, Lon: lon}
	}

	return centroids, nil
}

func columnIndex(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}
