// Package writer provides generic item writers shared by batch jobs.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/ecoroute/pkg/batch/adapter/storage"
	"github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	"github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// parquetParallelism is the number of goroutines parquet-go uses to encode a file.
const parquetParallelism = 4

// ParquetWriterConfig holds the configuration of ParquetWriter.
type ParquetWriterConfig struct {
	// StorageRef is the name of the storage connection the files are uploaded to.
	StorageRef string `yaml:"storageRef"`
	// OutputBaseDir is the object prefix of the exported files.
	OutputBaseDir string `yaml:"outputBaseDir"`
	// CompressionType is SNAPPY (default), GZIP or NONE.
	CompressionType string `yaml:"compressionType"`
	// FilePrefix starts every file name. Defaults to "data".
	FilePrefix string `yaml:"filePrefix"`
}

// ParquetWriter buffers items by partition and uploads one Parquet file per partition when
// it is closed. Object names follow OutputBaseDir/<partition>/<prefix>_<time>_<id>.parquet.
type ParquetWriter[T any] struct {
	name             string
	config           ParquetWriterConfig
	codec            parquet.CompressionCodec
	resolver         storage.StorageConnectionResolver
	partitionKeyFunc func(T) (string, error)

	storageConn storage.StorageConnection
	buffered    map[string][]T
	written     []string
	ec          model.ExecutionContext
}

var _ port.ItemWriter[any] = (*ParquetWriter[any])(nil)

// NewParquetWriter creates a ParquetWriter. T must be a struct carrying parquet tags.
func NewParquetWriter[T any](
	name string,
	properties map[string]string,
	resolver storage.StorageConnectionResolver,
	partitionKeyFunc func(T) (string, error),
) (*ParquetWriter[T], error) {
	cfg := ParquetWriterConfig{CompressionType: "SNAPPY", FilePrefix: "data"}
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s': invalid properties", name), err, false, false)
	}
	if cfg.StorageRef == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetWriter '%s' requires 'storageRef'", name)
	}
	if cfg.OutputBaseDir == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetWriter '%s' requires 'outputBaseDir'", name)
	}
	codec, err := CompressionCodec(cfg.CompressionType)
	if err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s'", name), err, false, false)
	}
	return &ParquetWriter[T]{
		name:             name,
		config:           cfg,
		codec:            codec,
		resolver:         resolver,
		partitionKeyFunc: partitionKeyFunc,
		buffered:         make(map[string][]T),
		ec:               model.NewExecutionContext(),
	}, nil
}

// Open resolves the storage connection.
func (w *ParquetWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		w.ec = ec
	}
	conn, err := w.resolver.ResolveStorageConnection(ctx, w.config.StorageRef)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s': failed to resolve storage '%s'", w.name, w.config.StorageRef), err, false, false)
	}
	w.storageConn = conn
	return nil
}

// Write buffers items under their partition key.
func (w *ParquetWriter[T]) Write(ctx context.Context, items []T) error {
	for _, item := range items {
		key, err := w.partitionKeyFunc(item)
		if err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s': no partition key", w.name), err, false, false)
		}
		w.buffered[key] = append(w.buffered[key], item)
	}
	return nil
}

// Close encodes and uploads every buffered partition. A failed partition does not stop the
// others; all failures are returned together.
func (w *ParquetWriter[T]) Close(ctx context.Context) error {
	if len(w.buffered) == 0 {
		return nil
	}
	if w.storageConn == nil {
		return exception.NewBatchErrorf("writer", "ParquetWriter '%s' was not opened", w.name)
	}

	keys := make([]string, 0, len(w.buffered))
	for k := range w.buffered {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result *multierror.Error
	for _, key := range keys {
		items := w.buffered[key]
		data, err := EncodeParquet(items, w.codec)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("partition '%s': %w", key, err))
			continue
		}
		fileName := fmt.Sprintf("%s_%s_%s.parquet", w.config.FilePrefix, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
		objectName := path.Join(w.config.OutputBaseDir, key, fileName)
		if err := w.storageConn.Upload(ctx, "", objectName, bytes.NewReader(data), "application/octet-stream"); err != nil {
			result = multierror.Append(result, fmt.Errorf("partition '%s': upload of '%s' failed: %w", key, objectName, err))
			continue
		}
		w.written = append(w.written, objectName)
		logger.Infof("ParquetWriter '%s': uploaded %d rows to %s (%d bytes).", w.name, len(items), objectName, len(data))
	}
	w.buffered = make(map[string][]T)
	w.ec.Put(w.name+".writtenObjects", append([]string(nil), w.written...))

	if err := result.ErrorOrNil(); err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s': export failed", w.name), err, false, false)
	}
	return nil
}

// Written returns the object names uploaded so far.
func (w *ParquetWriter[T]) Written() []string { return w.written }

// SetExecutionContext sets the writer's execution context.
func (w *ParquetWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec
	return nil
}

// GetExecutionContext returns the writer's execution context.
func (w *ParquetWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec, nil
}

// EncodeParquet encodes items into a single Parquet file with one row group.
func EncodeParquet[T any](items []T, codec parquet.CompressionCodec) (data []byte, err error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(T), parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = codec
	for i, item := range items {
		if err := pw.Write(item); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	// parquet-go panics on some schema problems instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

// CompressionCodec maps a compression name to its Parquet codec.
func CompressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "UNCOMPRESSED", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", name)
	}
}
