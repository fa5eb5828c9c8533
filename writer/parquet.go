package writer

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pwriter "github.com/xitongsys/parquet-go/writer"

	"curveflow/models"
)

// ParquetRecord is the on-disk row format of the curve archive: one row per
// curve level.
type ParquetRecord struct {
	Valuedate int64   `parquet:"name=valuedate, type=INT64"`
	Side      string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     int32   `parquet:"name=level, type=INT32"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
	Volume    float64 `parquet:"name=volume, type=DOUBLE"`
}

const (
	sideDemand = "demand"
	sideSupply = "supply"
)

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Writing is append-only; report the current position.
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// recordsFromPoints flattens curve points into archive rows.
func recordsFromPoints(points []models.CurvePoint) []ParquetRecord {
	var records []ParquetRecord
	for _, p := range points {
		for i, l := range p.Demand {
			records = append(records, ParquetRecord{
				Valuedate: p.Timestamp.Unix(),
				Side:      sideDemand,
				Level:     int32(i),
				Price:     l.Price,
				Volume:    l.Volume,
			})
		}
		for i, l := range p.Supply {
			records = append(records, ParquetRecord{
				Valuedate: p.Timestamp.Unix(),
				Side:      sideSupply,
				Level:     int32(i),
				Price:     l.Price,
				Volume:    l.Volume,
			})
		}
	}
	return records
}

// pointsFromRecords rebuilds curve points from archive rows, ordered by
// ascending timestamp with levels restored to their original order.
func pointsFromRecords(records []ParquetRecord) ([]models.CurvePoint, error) {
	byStamp := make(map[int64]*models.CurvePoint)
	levelOrder := make(map[int64]map[string][]int32)

	for _, rec := range records {
		point, ok := byStamp[rec.Valuedate]
		if !ok {
			point = &models.CurvePoint{Timestamp: unixUTC(rec.Valuedate)}
			byStamp[rec.Valuedate] = point
			levelOrder[rec.Valuedate] = map[string][]int32{}
		}
		level := models.CurveLevel{Price: rec.Price, Volume: rec.Volume}
		switch rec.Side {
		case sideDemand:
			point.Demand = append(point.Demand, level)
		case sideSupply:
			point.Supply = append(point.Supply, level)
		default:
			return nil, fmt.Errorf("archive row has unknown side '%s'", rec.Side)
		}
		levelOrder[rec.Valuedate][rec.Side] = append(levelOrder[rec.Valuedate][rec.Side], rec.Level)
	}

	points := make([]models.CurvePoint, 0, len(byStamp))
	for stamp, point := range byStamp {
		sortByLevel(point.Demand, levelOrder[stamp][sideDemand])
		sortByLevel(point.Supply, levelOrder[stamp][sideSupply])
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func unixUTC(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

func sortByLevel(levels []models.CurveLevel, order []int32) {
	paired := make([]int, len(levels))
	for i := range paired {
		paired[i] = i
	}
	sort.SliceStable(paired, func(i, j int) bool {
		return order[paired[i]] < order[paired[j]]
	})
	out := make([]models.CurveLevel, len(levels))
	for i, idx := range paired {
		out[i] = levels[idx]
	}
	copy(levels, out)
}

// encodeParquet serializes archive rows into parquet bytes with the given
// compression codec.
func encodeParquet(records []ParquetRecord, compression string) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := pwriter.NewParquetWriter(fw, new(ParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return fw.Bytes(), nil
}
