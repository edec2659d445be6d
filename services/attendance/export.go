package attendance

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	gos3 "rollcall/pkg/s3"
)

// ExportLinkTTL is how long a presigned export link stays valid.
const ExportLinkTTL = 15 * time.Minute

type objectStore interface {
	PutObject(ctx context.Context, bucket string, obj gos3.Object) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type historySource interface {
	History(ctx context.Context, teacherID int64) ([]HistoryRow, error)
}

// Export is a finished history export.
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Exporter writes a teacher's history as gzip CSV to object storage.
type Exporter struct {
	history historySource
	objects objectStore
	bucket  string
	now     func() time.Time
}

// NewExporter returns an Exporter. A nil objects store or empty bucket yields an
// Exporter whose Export always fails with ErrExportUnavailable.
func NewExporter(history historySource, objects objectStore, bucket string) *Exporter {
	return &Exporter{history: history, objects: objects, bucket: bucket, now: time.Now}
}

// Enabled reports whether exports can be uploaded.
func (e *Exporter) Enabled() bool {
	return e != nil && e.objects != nil && e.bucket != "" && e.history != nil
}

// Export uploads the teacher's history and returns a presigned download link.
func (e *Exporter) Export(ctx context.Context, teacherID int64) (Export, error) {
	if !e.Enabled() {
		return Export{}, ErrExportUnavailable
	}

	rows, err := e.history.History(ctx, teacherID)
	if err != nil {
		return Export{}, err
	}

	body, err := encodeHistory(rows)
	if err != nil {
		return Export{}, err
	}

	key := fmt.Sprintf("exports/%d/%s.csv.gz", teacherID, uuid.NewString())
	err = e.objects.PutObject(ctx, e.bucket, gos3.Object{
		Key:             key,
		Body:            body,
		ContentType:     "text/csv",
		ContentEncoding: "gzip",
	})
	if err != nil {
		return Export{}, fmt.Errorf("upload export: %w", err)
	}

	url, err := e.objects.PresignGet(ctx, e.bucket, key, ExportLinkTTL)
	if err != nil {
		return Export{}, fmt.Errorf("presign export: %w", err)
	}

	return Export{
		Key:       key,
		URL:       url,
		Rows:      len(rows),
		ExpiresAt: e.now().UTC().Add(ExportLinkTTL),
	}, nil
}

func encodeHistory(rows []HistoryRow) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	w := csv.NewWriter(zw)

	if err := w.Write([]string{"date", "division", "recorder", "present", "total"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.Date,
			r.Division,
			r.ProfessorName,
			strconv.FormatInt(r.PresentCount, 10),
			strconv.FormatInt(r.TotalStudents, 10),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress export: %w", err)
	}
	return buf.Bytes(), nil
}
