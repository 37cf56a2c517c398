// Package history keeps an audit log of finished shares.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Share statuses written to the log.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ShareRow is one finished share. URL is set on success, ErrorMessage on failure.
type ShareRow struct {
	ShareID      string              `bigquery:"share_id" json:"share_id"`
	Service      string              `bigquery:"service" json:"service"`
	Format       string              `bigquery:"format" json:"format"`
	FileName     string              `bigquery:"file_name" json:"file_name"`
	SizeBytes    int64               `bigquery:"size_bytes" json:"size_bytes"`
	URL          bigquery.NullString `bigquery:"url" json:"url"`
	Status       string              `bigquery:"status" json:"status"`
	ErrorMessage bigquery.NullString `bigquery:"error_message" json:"error_message"`
	StartedTS    time.Time           `bigquery:"started_ts" json:"started_ts"`
	FinishedTS   time.Time           `bigquery:"finished_ts" json:"finished_ts"`
	DurationMS   int64               `bigquery:"duration_ms" json:"duration_ms"`
}

// NewShareRow builds the row for a share that ran from started to finished.
// A nil shareErr marks the share completed.
func NewShareRow(id, service, format, fileName string, size int64, url string, started, finished time.Time, shareErr error) *ShareRow {
	row := &ShareRow{
		ShareID:    id,
		Service:    service,
		Format:     format,
		FileName:   fileName,
		SizeBytes:  size,
		Status:     StatusCompleted,
		StartedTS:  started.UTC(),
		FinishedTS: finished.UTC(),
		DurationMS: finished.Sub(started).Milliseconds(),
	}
	if url != "" {
		row.URL = bigquery.NullString{StringVal: url, Valid: true}
	}
	if shareErr != nil {
		row.Status = StatusFailed
		row.ErrorMessage = bigquery.NullString{StringVal: shareErr.Error(), Valid: true}
	}
	return row
}

// Recorder stores finished shares.
type Recorder interface {
	Record(ctx context.Context, row *ShareRow) error
	Recent(ctx context.Context, limit int) ([]*ShareRow, error)
	Close() error
}

// Nop discards every share. It is used when no history table is configured.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, *ShareRow) error { return nil }

// Recent implements Recorder.
func (Nop) Recent(context.Context, int) ([]*ShareRow, error) { return []*ShareRow{}, nil }

// Close implements Recorder.
func (Nop) Close() error { return nil }

// BigQueryRecorder streams shares into a BigQuery table.
type BigQueryRecorder struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// NewBigQueryRecorder creates a recorder for project.dataset.table.
func NewBigQueryRecorder(ctx context.Context, project, dataset, table string) (*BigQueryRecorder, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRecorder: creating client: %w", err)
	}
	return &BigQueryRecorder{
		client:  client,
		project: project,
		dataset: dataset,
		table:   table,
	}, nil
}

// Schema returns the table schema inferred from ShareRow.
func Schema() (bigquery.Schema, error) {
	return bigquery.InferSchema(ShareRow{})
}

// EnsureDataset creates the dataset in location unless it already exists.
func (r *BigQueryRecorder) EnsureDataset(ctx context.Context, location string) error {
	err := r.client.Dataset(r.dataset).Create(ctx, &bigquery.DatasetMetadata{Location: location})
	if isConflict(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureDataset: creating dataset: %w", err)
	}
	return nil
}

// EnsureTable creates the history table, partitioned by day of finished_ts,
// unless it already exists.
func (r *BigQueryRecorder) EnsureTable(ctx context.Context) error {
	schema, err := Schema()
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "finished_ts",
		},
	}
	err = r.client.Dataset(r.dataset).Table(r.table).Create(ctx, meta)
	if isConflict(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// Record inserts a single row.
func (r *BigQueryRecorder) Record(ctx context.Context, row *ShareRow) error {
	inserter := r.client.Dataset(r.dataset).Table(r.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("Record: inserting row: %w", err)
	}
	return nil
}

// Recent returns up to limit shares, newest first.
func (r *BigQueryRecorder) Recent(ctx context.Context, limit int) ([]*ShareRow, error) {
	query := fmt.Sprintf(`
		SELECT
			share_id,
			service,
			format,
			file_name,
			size_bytes,
			url,
			status,
			error_message,
			started_ts,
			finished_ts,
			duration_ms
	FROM `+"`%s.%s.%s`"+`
	ORDER BY finished_ts DESC
	LIMIT @limit
	`, r.project, r.dataset, r.table)

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Recent: reading query: %w", err)
	}

	rows := []*ShareRow{}
	for {
		var row ShareRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Recent: iterating rows: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRecorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*BigQueryRecorder)(nil)
)
