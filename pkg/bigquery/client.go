// Package bigquery is the analytics sink: one dataset, one day-partitioned
// sales table fed by the analytics worker.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery sales table is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")

	errMissing = errors.New("does not exist")
)

type Client struct {
	client     *bigquery.Client
	dataset    *bigquery.Dataset
	salesTable string
}

// NewClient fails fast when the dataset is missing. The table is left to
// EnsureSalesTable or Ping.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project, dataset, table := strings.TrimSpace(gcp.ProjectID), strings.TrimSpace(cfg.Dataset), salesTableName(cfg)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case dataset == "":
		return nil, errDatasetRequired
	case table == "":
		return nil, errTableNameRequired
	}

	raw, err := bigquery.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: raw, dataset: raw.Dataset(dataset), salesTable: table}

	if err := checkMetadata(ctx, "dataset "+dataset, func(ctx context.Context) error {
		_, err := c.dataset.Metadata(ctx)
		return err
	}); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "table", dataset+"."+table), "bigquery client initialized")
	}
	return c, nil
}

// clientOptions prefers inline credentials over a key file; with neither,
// application default credentials apply.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if inline := strings.TrimSpace(gcp.CredentialsJSON); inline != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(inline))}
	}
	if file := strings.TrimSpace(gcp.ApplicationCredentials); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

func salesTableName(cfg config.BigQueryConfig) string {
	return strings.TrimSpace(cfg.SalesTable)
}

func (c *Client) SalesTable() string {
	if c == nil {
		return ""
	}
	return c.salesTable
}

func (c *Client) table() (*bigquery.Table, error) {
	if c == nil || c.dataset == nil {
		return nil, errClientNotInitialized
	}
	return c.dataset.Table(c.salesTable), nil
}

// Ping checks the sales table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	t, err := c.table()
	if err != nil {
		return err
	}
	return checkMetadata(ctx, "table "+c.salesTable, func(ctx context.Context) error {
		_, err := t.Metadata(ctx)
		return err
	})
}

// EnsureSalesTable creates the sales table with the schema of row,
// day-partitioned on partitionField, unless it already exists. Losing a
// create race to another worker counts as success.
func (c *Client) EnsureSalesTable(ctx context.Context, row any, partitionField string) error {
	err := c.Ping(ctx)
	if !errors.Is(err, errMissing) {
		return err
	}
	t, _ := c.table()

	schema, err := bigquery.InferSchema(row)
	if err != nil {
		return fmt.Errorf("infer sales schema: %w", err)
	}
	meta := &bigquery.TableMetadata{Schema: schema}
	if partitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: partitionField}
	}
	if err := t.Create(ctx, meta); err != nil && apiCode(err) != http.StatusConflict {
		return fmt.Errorf("create table %q: %w", c.salesTable, err)
	}
	return nil
}

// InsertRows streams rows into table within the dataset.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// checkMetadata runs a metadata lookup under metadataTimeout. A 404 becomes errMissing
// so callers can tell "absent" from "unreachable".
func checkMetadata(ctx context.Context, what string, lookup func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	err := lookup(ctx)
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return fmt.Errorf("%s %w", what, errMissing)
	}
	return fmt.Errorf("checking %s: %w", what, err)
}

func apiCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}

func isNotFound(err error) bool { return apiCode(err) == http.StatusNotFound }
