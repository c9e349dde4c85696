// Package export writes session records to a zipped CSV archive in a blob
// store and reads such archives back for resuming.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/records-crawler/internal/crawler"
	"github.com/JakeFAU/records-crawler/internal/hash/sha256"
	"github.com/JakeFAU/records-crawler/internal/storage"
)

// ContentType is the MIME type of export archives.
const ContentType = "application/zip"

// Header is the column layout of the exported CSV.
var Header = []string{
	"Request ID", "Status", "Description", "Date",
	"Departments", "Documents", "Point of Contact", "Messages",
}

var (
	documentHeader = []string{"title", "link"}
	messageHeader  = []string{"title", "item", "time"}
)

// Config controls where archives are written.
type Config struct {
	// Name is the archive and CSV base name, e.g. "requests".
	Name string
	// Prefix is an optional object path prefix within the store.
	Prefix string
}

// Hasher fingerprints an archive body.
type Hasher interface {
	Sum(archive []byte) string
}

// Exporter implements crawler.Exporter on top of a storage.BlobStore.
type Exporter struct {
	store  storage.BlobStore
	cfg    Config
	hasher Hasher
	logger *zap.Logger
}

// New builds an Exporter.
func New(store storage.BlobStore, cfg Config, logger *zap.Logger) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("export name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, cfg: cfg, hasher: sha256.New(), logger: logger}, nil
}

// ObjectPath is the store path the archive is written to.
func (e *Exporter) ObjectPath() string {
	return ObjectPath(e.cfg.Prefix, e.cfg.Name)
}

// ObjectPath joins prefix and name into "<prefix>/<name>.zip".
func ObjectPath(prefix, name string) string {
	return path.Join(strings.Trim(prefix, "/"), name+".zip")
}

// Export filters and deduplicates records, zips them as CSV, and stores the
// archive, replacing any previous one.
func (e *Exporter) Export(ctx context.Context, records []crawler.Record) (crawler.ExportResult, error) {
	rows, err := Rows(records)
	if err != nil {
		return crawler.ExportResult{}, err
	}
	var buf bytes.Buffer
	if err := WriteArchive(&buf, e.cfg.Name, rows); err != nil {
		return crawler.ExportResult{}, err
	}
	checksum := e.hasher.Sum(buf.Bytes())
	location, err := e.store.PutObject(ctx, e.ObjectPath(), ContentType, &buf)
	if err != nil {
		return crawler.ExportResult{}, fmt.Errorf("store archive: %w", err)
	}
	e.logger.Debug("archive stored",
		zap.String("location", location),
		zap.Int("records", len(records)),
		zap.Int("rows", len(rows)),
		zap.String("checksum", checksum),
	)
	return crawler.ExportResult{Location: location, Rows: len(rows), Checksum: checksum}, nil
}

// Rows converts records to CSV rows. Records without a status are dropped
// and exact duplicate rows keep only their first occurrence.
func Rows(records []crawler.Record) ([][]string, error) {
	seen := make(map[string]struct{}, len(records))
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if !rec.Complete() {
			continue
		}
		row, err := toRow(rec)
		if err != nil {
			return nil, err
		}
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, row)
	}
	return rows, nil
}

func toRow(rec crawler.Record) ([]string, error) {
	docs, err := encodeDocuments(rec.Documents)
	if err != nil {
		return nil, err
	}
	msgs, err := encodeMessages(rec.Messages)
	if err != nil {
		return nil, err
	}
	return []string{
		rec.ID, rec.Status, rec.Description, rec.Date,
		rec.Departments, docs, rec.PointOfContact, msgs,
	}, nil
}

// WriteArchive writes a zip holding a single "<name>.csv".
func WriteArchive(w io.Writer, name string, rows [][]string) error {
	zw := zip.NewWriter(w)
	entry, err := zw.Create(name + ".csv")
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	cw := csv.NewWriter(entry)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// encodeDocuments renders documents as nested CSV. No documents is an empty
// cell.
func encodeDocuments(docs []crawler.Document) (string, error) {
	if len(docs) == 0 {
		return "", nil
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{d.Title, d.Link})
	}
	return nestedCSV(documentHeader, rows)
}

func encodeMessages(msgs []crawler.Message) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []string{m.Title, m.Detail, m.Time})
	}
	return nestedCSV(messageHeader, rows)
}

func nestedCSV(header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("write nested header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write nested rows: %w", err)
	}
	return buf.String(), nil
}
