package model

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v18/arrow/array"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

// FileType represents supported dataset file types
type FileType int

const (
	// FileTypeCSV represents CSV file type
	FileTypeCSV FileType = iota
	// FileTypeTSV represents TSV file type
	FileTypeTSV
	// FileTypeXLSX represents Excel workbook file type
	FileTypeXLSX
	// FileTypeParquet represents Parquet file type
	FileTypeParquet
	// FileTypeUnsupported represents unsupported file type
	FileTypeUnsupported
)

// File extensions
const (
	// ExtCSV is the CSV file extension
	ExtCSV = ".csv"
	// ExtTSV is the TSV file extension
	ExtTSV = ".tsv"
	// ExtXLSX is the Excel workbook extension
	ExtXLSX = ".xlsx"
	// ExtParquet is the Parquet file extension
	ExtParquet = ".parquet"
	// ExtGZ is the gzip compression extension
	ExtGZ = ".gz"
	// ExtBZ2 is the bzip2 compression extension
	ExtBZ2 = ".bz2"
	// ExtXZ is the xz compression extension
	ExtXZ = ".xz"
	// ExtZSTD is the zstd compression extension
	ExtZSTD = ".zst"
)

// DelimiterConfig controls how delimited files are read. Quoting follows
// RFC 4180 with the quote character fixed to '"' and no separate escape
// character: fields containing the delimiter or a quote must be quoted, and
// quotes inside a quoted field are doubled. Only the column separator is
// configurable.
type DelimiterConfig struct {
	// Comma is the column separator. Zero means "derive from file type".
	Comma rune
	// LazyQuotes allows bare quotes inside unquoted fields.
	LazyQuotes bool
}

// DefaultDelimiterConfig returns the configuration used when the caller does
// not override delimiters.
func DefaultDelimiterConfig() DelimiterConfig {
	return DelimiterConfig{}
}

// File represents a dataset file that can be converted to a Table.
type File struct {
	path     string
	fileType FileType
}

// NewFile creates a new File.
func NewFile(path string) *File {
	return &File{
		path:     path,
		fileType: DetectFileType(path),
	}
}

// IsSupportedFile checks if the file has a supported extension.
func IsSupportedFile(fileName string) bool {
	return DetectFileType(strings.ToLower(fileName)) != FileTypeUnsupported
}

// Path returns file path.
func (f *File) Path() string {
	return f.path
}

// Type returns file type.
func (f *File) Type() FileType {
	return f.fileType
}

// IsCompressed returns true if file is compressed.
func (f *File) IsCompressed() bool {
	return f.isGZ() || f.isBZ2() || f.isXZ() || f.isZSTD()
}

func (f *File) isGZ() bool {
	return strings.HasSuffix(f.path, ExtGZ)
}

func (f *File) isBZ2() bool {
	return strings.HasSuffix(f.path, ExtBZ2)
}

func (f *File) isXZ() bool {
	return strings.HasSuffix(f.path, ExtXZ)
}

func (f *File) isZSTD() bool {
	return strings.HasSuffix(f.path, ExtZSTD)
}

// ToTable converts the file to a Table using the given delimiter config.
func (f *File) ToTable(cfg DelimiterConfig) (*Table, error) {
	switch f.fileType {
	case FileTypeCSV:
		return f.parseDelimited(delimiterFor(cfg, csvDelimiter), cfg.LazyQuotes)
	case FileTypeTSV:
		return f.parseDelimited(delimiterFor(cfg, tsvDelimiter), cfg.LazyQuotes)
	case FileTypeXLSX:
		return f.parseXLSX()
	case FileTypeParquet:
		return f.parseParquet()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, f.path)
	}
}

// File format delimiters
const (
	// csvDelimiter is the delimiter for CSV files
	csvDelimiter = ','
	// tsvDelimiter is the delimiter for TSV files
	tsvDelimiter = '\t'
)

func delimiterFor(cfg DelimiterConfig, fallback rune) rune {
	if cfg.Comma != 0 {
		return cfg.Comma
	}
	return fallback
}

// DetectFileType detects file type from extension, considering compressed files.
func DetectFileType(path string) FileType {
	basePath := path
	for _, ext := range []string{ExtGZ, ExtBZ2, ExtXZ, ExtZSTD} {
		if strings.HasSuffix(path, ext) {
			basePath = strings.TrimSuffix(path, ext)
			break
		}
	}

	switch strings.ToLower(filepath.Ext(basePath)) {
	case ExtCSV:
		return FileTypeCSV
	case ExtTSV:
		return FileTypeTSV
	case ExtXLSX:
		return FileTypeXLSX
	case ExtParquet:
		return FileTypeParquet
	default:
		return FileTypeUnsupported
	}
}

// openReader opens the file and returns a reader that handles compression.
func (f *File) openReader() (io.Reader, func() error, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, nil, err
	}

	var reader io.Reader = file
	closer := file.Close

	if f.isGZ() {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		reader = gzReader
		closer = func() error {
			gzReader.Close()
			return file.Close()
		}
	} else if f.isBZ2() {
		reader = bzip2.NewReader(file)
		closer = file.Close
	} else if f.isXZ() {
		xzReader, err := xz.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		reader = xzReader
		closer = file.Close
	} else if f.isZSTD() {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		reader = decoder.IOReadCloser()
		closer = func() error {
			decoder.Close()
			return file.Close()
		}
	}

	return reader, closer, nil
}

// parseDelimited parses a CSV or TSV file with compression support.
func (f *File) parseDelimited(comma rune, lazyQuotes bool) (*Table, error) {
	reader, closer, err := f.openReader()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer closer()

	csvReader := csv.NewReader(reader)
	csvReader.Comma = comma
	csvReader.LazyQuotes = lazyQuotes
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, f.path)
	}

	return tableFromRawRows(f.path, records)
}

// parseXLSX parses the first sheet of an Excel workbook.
func (f *File) parseXLSX() (*Table, error) {
	var xlsxFile *excelize.File

	if f.IsCompressed() {
		reader, closer, err := f.openReader()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
		}
		defer closer()

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
		xlsxFile, err = excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", f.path, err)
		}
	} else {
		var err error
		xlsxFile, err = excelize.OpenFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", f.path, err)
		}
	}
	defer func() {
		_ = xlsxFile.Close() // Ignore close error
	}()

	sheetNames := xlsxFile.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, fmt.Errorf("%w: no sheets in %s", ErrEmptyFile, f.path)
	}

	// One file is one table, so only the first sheet is read.
	rows, err := xlsxFile.GetRows(sheetNames[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s of %s: %w", sheetNames[0], f.path, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, f.path)
	}

	return tableFromRawRows(f.path, rows)
}

// parseParquet parses a Parquet file. Parquet requires random access, so the
// whole file is read into memory first.
func (f *File) parseParquet() (*Table, error) {
	reader, closer, err := f.openReader()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer closer()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, f.path)
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader for %s: %w", f.path, err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader for %s: %w", f.path, err)
	}

	arrowTable, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet table from %s: %w", f.path, err)
	}
	defer arrowTable.Release()

	schema := arrowTable.Schema()
	raw := make([][]string, 0, arrowTable.NumRows()+1)
	headerRow := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		headerRow[i] = field.Name
	}
	raw = append(raw, headerRow)

	tableReader := array.NewTableReader(arrowTable, 0)
	defer tableReader.Release()

	for tableReader.Next() {
		batch := tableReader.Record()
		numRows := batch.NumRows()
		for i := int64(0); i < numRows; i++ {
			row := make([]string, batch.NumCols())
			for j, col := range batch.Columns() {
				if col.IsNull(int(i)) {
					row[j] = ""
				} else {
					row[j] = col.ValueStr(int(i))
				}
			}
			raw = append(raw, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read parquet records from %s: %w", f.path, err)
	}

	return tableFromRawRows(f.path, raw)
}

// tableFromRawRows converts raw string rows into a Table. The first row is
// the header; fully blank rows are skipped; empty cells become NULL; rows
// shorter than the header are padded with NULL.
func tableFromRawRows(path string, raw [][]string) (*Table, error) {
	headerIdx := -1
	for i, row := range raw {
		if !rawRowIsBlank(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	columns, err := columnsFromHeader(path, raw[headerIdx])
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(raw)-headerIdx-1)
	for i := headerIdx + 1; i < len(raw); i++ {
		if rawRowIsBlank(raw[i]) {
			continue
		}
		if len(raw[i]) > len(columns) {
			return nil, fmt.Errorf("%w: %s line %d", ErrRowShape, path, i+1)
		}

		values := make([]CellValue, len(raw[i]))
		for j, cell := range raw[i] {
			if cell == "" {
				values[j] = Null()
			} else {
				values[j] = NewCellValue(cell)
			}
		}
		rows = append(rows, NewRow(columns, values))
	}

	tableName, err := NewTableName(TableFromFilePath(path))
	if err != nil {
		return nil, fmt.Errorf("invalid table name derived from %s: %w", path, err)
	}
	return NewTable(tableName, columns, rows)
}

func columnsFromHeader(path string, header []string) ([]ColumnName, error) {
	columns := make([]ColumnName, 0, len(header))
	seen := make(map[string]struct{}, len(header))
	for _, cell := range header {
		col, err := NewColumnName(cell)
		if err != nil {
			return nil, fmt.Errorf("invalid column name in %s: %w", path, err)
		}
		key := strings.ToLower(col.String())
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s in %s", ErrDuplicateColumnName, col, path)
		}
		seen[key] = struct{}{}
		columns = append(columns, col)
	}
	return columns, nil
}

func rawRowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
