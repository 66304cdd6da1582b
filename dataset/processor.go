// Package dataset turns the raw DataCo supply chain export into the
// numeric table used by the product tooling: a fixed set of columns,
// categorical columns label encoded and order/shipping dates as unix
// seconds.
package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultChunkSize = 1000
	DefaultMaxRows   = 150000

	ColumnProductName = "Product Name"
)

var (
	errEmptyInput       = errors.New("input has no header")
	errNoKnownColumns   = errors.New("input has none of the expected columns")
	errInvalidChunkSize = errors.New("chunk size must be positive")
)

// KeepColumns are copied to the output in this order when present.
var KeepColumns = []string{
	"Days for shipping (real)",
	"Days for shipment (scheduled)",
	"Benefit per order",
	"Sales per customer",
	"Delivery Status",
	"Late_delivery_risk",
	"Latitude",
	"Longitude",
	"Order City",
	"order date (DateOrders)",
	"Order Item Discount Rate",
	"Sales",
	"Order Item Total",
	"Order Profit Per Order",
	"Order Status",
	ColumnProductName,
	"Product Status",
	"shipping date (DateOrders)",
	"Product Price",
}

// EncodeColumns are replaced by integer labels.
var EncodeColumns = []string{
	ColumnProductName,
	"Order City",
	"Delivery Status",
	"Order Status",
}

// DateColumns are dropped from their position and appended under the new
// name as unix seconds.
var DateColumns = []struct {
	Source string
	Target string
}{
	{"order date (DateOrders)", "order_date"},
	{"shipping date (DateOrders)", "shipping_date"},
}

type Options struct {
	ChunkSize int
	// MaxRows caps the data rows read, zero or less reads everything.
	MaxRows int
}

type Summary struct {
	Chunks       int
	Rows         int
	Columns      []string
	DateFailures int
}

// Processor is not safe for concurrent use; its encoders accumulate labels
// across calls.
type Processor struct {
	log      *logrus.Entry
	opts     Options
	encoders map[string]*LabelEncoder
}

func NewProcessor(log *logrus.Entry, opts Options) (*Processor, error) {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkSize < 0 {
		return nil, errInvalidChunkSize
	}

	encoders := make(map[string]*LabelEncoder, len(EncodeColumns))
	for _, col := range EncodeColumns {
		encoders[col] = NewLabelEncoder()
	}
	return &Processor{
		log:      log,
		opts:     opts,
		encoders: encoders,
	}, nil
}

// Encoder returns the label encoder of an encoded column, nil for others.
func (p *Processor) Encoder(column string) *LabelEncoder {
	return p.encoders[column]
}

// ProductMapping is label -> product name.
func (p *Processor) ProductMapping() map[int]string {
	return p.encoders[ColumnProductName].Mapping()
}

// column is one output column and where it comes from in the input.
type column struct {
	name    string
	src     int
	encoder *LabelEncoder
	date    bool
}

func (p *Processor) layout(header []string) ([]column, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	isDate := make(map[string]string, len(DateColumns))
	for _, dc := range DateColumns {
		isDate[dc.Source] = dc.Target
	}

	var cols []column
	for _, name := range KeepColumns {
		src, ok := index[name]
		if !ok {
			p.log.WithField("column", name).Warn("column missing from input")
			continue
		}
		if _, ok := isDate[name]; ok {
			continue
		}
		cols = append(cols, column{name: name, src: src, encoder: p.encoders[name]})
	}
	for _, dc := range DateColumns {
		if src, ok := index[dc.Source]; ok {
			cols = append(cols, column{name: dc.Target, src: src, date: true})
		}
	}

	if len(cols) == 0 {
		return nil, errNoKnownColumns
	}
	return cols, nil
}

// Process reads a latin1 encoded CSV from r and writes the processed table
// as UTF-8 CSV to w, chunk by chunk.
func (p *Processor) Process(ctx context.Context, r io.Reader, w io.Writer) (*Summary, error) {
	reader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := p.layout(header)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, c := range cols {
		summary.Columns = append(summary.Columns, c.name)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(summary.Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	chunk := make([][]string, 0, p.opts.ChunkSize)
	done := false
	for !done {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		chunk = chunk[:0]
		for len(chunk) < p.opts.ChunkSize {
			if p.opts.MaxRows > 0 && summary.Rows+len(chunk) >= p.opts.MaxRows {
				done = true
				break
			}
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				done = true
				break
			}
			if err != nil {
				return summary, fmt.Errorf("read row %d: %w", summary.Rows+len(chunk)+1, err)
			}
			chunk = append(chunk, record)
		}
		if len(chunk) == 0 {
			break
		}

		failures, err := p.writeChunk(writer, cols, chunk)
		if err != nil {
			return summary, err
		}
		summary.Chunks++
		summary.Rows += len(chunk)
		summary.DateFailures += failures
		p.log.WithField("chunk", summary.Chunks).WithField("rows", len(chunk)).Debug("processed chunk")
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return summary, fmt.Errorf("write output: %w", err)
	}

	p.log.WithField("rows", summary.Rows).WithField("chunks", summary.Chunks).Info("processing completed")
	if summary.DateFailures > 0 {
		p.log.WithField("failures", summary.DateFailures).Warn("some dates could not be parsed")
	}
	return summary, nil
}

func (p *Processor) writeChunk(writer *csv.Writer, cols []column, chunk [][]string) (int, error) {
	failures := 0
	out := make([]string, len(cols))
	for _, record := range chunk {
		for i, c := range cols {
			value := ""
			if c.src < len(record) {
				value = record[c.src]
			}

			switch {
			case c.encoder != nil:
				out[i] = strconv.Itoa(c.encoder.Encode(value))
			case c.date:
				ts, ok := formatUnix(value)
				if !ok {
					failures++
				}
				out[i] = ts
			default:
				out[i] = value
			}
		}
		if err := writer.Write(out); err != nil {
			return failures, fmt.Errorf("write row: %w", err)
		}
	}
	return failures, nil
}

// ProcessFile runs Process from inPath to outPath, creating the output
// directory when needed.
func (p *Processor) ProcessFile(ctx context.Context, inPath, outPath string) (*Summary, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return nil, err
	}

	summary, err := p.Process(ctx, in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return summary, err
	}

	p.log.WithField("path", outPath).Info("output saved")
	return summary, nil
}

// WriteProductMapping stores ProductMapping as a JSON object keyed by label.
func (p *Processor) WriteProductMapping(path string) error {
	mapping := p.ProductMapping()
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	p.log.WithField("path", path).WithField("products", len(mapping)).Info("product mapping saved")
	return nil
}
