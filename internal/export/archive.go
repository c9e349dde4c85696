package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/JakeFAU/records-crawler/internal/crawler"
	"github.com/JakeFAU/records-crawler/internal/storage"
)

// ErrBadArchive reports an archive that does not hold an export CSV.
var ErrBadArchive = errors.New("not an export archive")

// Load reads the archive at objectPath from store. A missing archive yields
// no records and no error so a first run can share the resume setting.
func Load(ctx context.Context, store storage.BlobStore, objectPath string) ([]crawler.Record, error) {
	rc, err := store.GetObject(ctx, objectPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer rc.Close() //nolint:errcheck // read-only
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return ReadArchive(data)
}

// ReadArchive parses an export archive back into records, in file order.
func ReadArchive(data []byte) ([]crawler.Record, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	var entry *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".csv") {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no csv entry", ErrBadArchive)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer rc.Close() //nolint:errcheck // read-only

	cr := csv.NewReader(rc)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrBadArchive, err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrBadArchive, header)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	records := make([]crawler.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func fromRow(row []string) (crawler.Record, error) {
	rec := crawler.Record{
		ID:             row[0],
		Status:         row[1],
		Description:    row[2],
		Date:           row[3],
		Departments:    row[4],
		PointOfContact: row[6],
	}
	docRows, err := decodeNested(row[5], documentHeader)
	if err != nil {
		return rec, fmt.Errorf("documents: %w", err)
	}
	for _, r := range docRows {
		rec.Documents = append(rec.Documents, crawler.Document{Title: r[0], Link: r[1]})
	}
	msgRows, err := decodeNested(row[7], messageHeader)
	if err != nil {
		return rec, fmt.Errorf("messages: %w", err)
	}
	for _, r := range msgRows {
		rec.Messages = append(rec.Messages, crawler.Message{Title: r[0], Detail: r[1], Time: r[2]})
	}
	return rec, nil
}

func decodeNested(cell string, header []string) ([][]string, error) {
	if strings.TrimSpace(cell) == "" {
		return nil, nil
	}
	cr := csv.NewReader(strings.NewReader(cell))
	cr.FieldsPerRecord = len(header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse nested csv: %w", err)
	}
	if len(rows) == 0 || !slices.Equal(rows[0], header) {
		return nil, fmt.Errorf("%w: nested header %v", ErrBadArchive, rows)
	}
	return rows[1:], nil
}
