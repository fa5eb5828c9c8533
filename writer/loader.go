package writer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	preader "github.com/xitongsys/parquet-go/reader"

	"curveflow/models"
)

// ReadFile loads the curve points stored in a single archive file.
func ReadFile(path string) ([]models.CurvePoint, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file '%s': %w", path, err)
	}
	defer fr.Close()

	pr, err := preader.NewParquetReader(fr, new(ParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive file '%s': %w", path, err)
	}
	defer pr.ReadStop()

	records := make([]ParquetRecord, pr.GetNumRows())
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("failed to decode archive file '%s': %w", path, err)
	}

	return pointsFromRecords(records)
}

// ReadRange loads every archive file under dir and assembles a validated
// curve range covering all stored timestamps.
func ReadRange(dir string) (models.CurveRange, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".parquet") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return models.CurveRange{}, fmt.Errorf("failed to scan archive directory '%s': %w", dir, err)
	}
	if len(paths) == 0 {
		return models.CurveRange{}, fmt.Errorf("no archive files found under '%s'", dir)
	}
	sort.Strings(paths)

	var points []models.CurvePoint
	for _, path := range paths {
		filePoints, err := ReadFile(path)
		if err != nil {
			return models.CurveRange{}, err
		}
		points = append(points, filePoints...)
	}
	if len(points) == 0 {
		return models.CurveRange{}, fmt.Errorf("archive under '%s' contains no curve points", dir)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	curveRange := models.CurveRange{
		Start:  points[0].Timestamp,
		End:    points[len(points)-1].Timestamp,
		Points: points,
	}
	if err := curveRange.Validate(); err != nil {
		return models.CurveRange{}, err
	}
	return curveRange, nil
}
