// Package item provides the chunk-oriented step: items are read one at a time, processed
// one at a time and written in chunks of a configured size.
package item

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	port "github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/ecoroute/pkg/batch/core/metrics"
	exception "github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// DefaultChunkSize is used when a step is built without a positive item count.
const DefaultChunkSize = 10

// ChunkStep implements port.Step for chunk-oriented processing.
type ChunkStep struct {
	id             string
	reader         port.ItemReader[any]
	processor      port.ItemProcessor[any, any]
	writer         port.ItemWriter[any]
	chunkSize      int
	stepListeners  []port.StepExecutionListener
	chunkListeners []port.ChunkListener
	promotion      *model.ExecutionContextPromotion
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// Verify that ChunkStep implements the port.Step interface.
var _ port.Step = (*ChunkStep)(nil)

// NewChunkStep creates a ChunkStep. A nil processor passes items through unchanged.
// Reader, processor and writer that also implement port.StepExecutionListener or
// port.ChunkListener are registered as listeners.
func NewChunkStep(
	id string,
	reader port.ItemReader[any],
	processor port.ItemProcessor[any, any],
	writer port.ItemWriter[any],
	chunkSize int,
	stepListeners []port.StepExecutionListener,
	chunkListeners []port.ChunkListener,
	promotion *model.ExecutionContextPromotion,
) *ChunkStep {
	if processor == nil {
		processor = &PassThroughProcessor{}
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	s := &ChunkStep{
		id:             id,
		reader:         reader,
		processor:      processor,
		writer:         writer,
		chunkSize:      chunkSize,
		stepListeners:  stepListeners,
		chunkListeners: chunkListeners,
		promotion:      promotion,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, c := range []interface{}{reader, processor, writer} {
		if l, ok := c.(port.StepExecutionListener); ok {
			s.stepListeners = append(s.stepListeners, l)
		}
		if l, ok := c.(port.ChunkListener); ok {
			s.chunkListeners = append(s.chunkListeners, l)
		}
	}
	return s
}

// ID returns the flow element identifier of the step.
func (s *ChunkStep) ID() string { return s.id }

// StepName returns the logical name of the step.
func (s *ChunkStep) StepName() string { return s.id }

// ChunkSize returns the number of items written per chunk.
func (s *ChunkStep) ChunkSize() int { return s.chunkSize }

// SetMetricRecorder sets the MetricRecorder used by the step.
func (s *ChunkStep) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		s.metricRecorder = recorder
	}
}

// SetTracer sets the Tracer used by the step.
func (s *ChunkStep) SetTracer(tracer metrics.Tracer) {
	if tracer != nil {
		s.tracer = tracer
	}
}

// GetExecutionContextPromotion returns the promotion settings of the step.
func (s *ChunkStep) GetExecutionContextPromotion() *model.ExecutionContextPromotion {
	return s.promotion
}

// Execute runs the chunk loop until the reader is exhausted, an error occurs or ctx is done.
func (s *ChunkStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}
	logger.Infof("ChunkStep '%s': starting (chunk size %d).", s.id, s.chunkSize)

	err := s.run(ctx, stepExecution)
	if err != nil {
		s.tracer.RecordError(ctx, s.id, err)
		if errors.Is(err, context.Canceled) {
			stepExecution.MarkAsStopped()
			stepExecution.Failures = append(stepExecution.Failures, err.Error())
		} else {
			stepExecution.MarkAsFailed(err)
		}
		logger.Errorf("ChunkStep '%s': %v", s.id, err)
	} else {
		stepExecution.MarkAsCompleted(model.ExitStatusCompleted)
		if missing := s.promotion.Promote(stepExecution.ExecutionContext, jobExecution.ExecutionContext); len(missing) > 0 {
			logger.Warnf("ChunkStep '%s': promotion keys not found in step context: %v", s.id, missing)
		}
		logger.Infof("ChunkStep '%s': completed (read=%d, filtered=%d, written=%d, commits=%d).",
			s.id, stepExecution.ReadCount, stepExecution.FilterCount, stepExecution.WriteCount, stepExecution.CommitCount)
	}

	for _, l := range s.stepListeners {
		l.AfterStep(ctx, stepExecution)
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)
	return err
}

func (s *ChunkStep) run(ctx context.Context, stepExecution *model.StepExecution) (err error) {
	ec := stepExecution.ExecutionContext
	if err := s.processor.SetExecutionContext(ctx, ec); err != nil && !errors.Is(err, port.ErrExecutionContextNotSupported) {
		return exception.NewBatchError(s.id, "failed to set processor execution context", err, false, false)
	}
	if err := s.reader.Open(ctx, ec); err != nil {
		return exception.NewBatchError(s.id, "failed to open reader", err, false, false)
	}
	defer func() {
		if cerr := s.reader.Close(ctx); cerr != nil && err == nil {
			err = exception.NewBatchError(s.id, "failed to close reader", cerr, false, false)
		}
	}()
	if err := s.writer.Open(ctx, ec); err != nil {
		return exception.NewBatchError(s.id, "failed to open writer", err, false, false)
	}
	defer func() {
		if cerr := s.writer.Close(ctx); cerr != nil && err == nil {
			err = exception.NewBatchError(s.id, "failed to close writer", cerr, false, false)
		}
	}()

	for {
		eof, err := s.processChunk(ctx, stepExecution)
		if err != nil {
			return err
		}
		if eof {
			break
		}
	}

	// Components may have written state into their own context; merge it back.
	for _, c := range []interface {
		GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
	}{s.reader, s.processor, s.writer} {
		componentEC, err := c.GetExecutionContext(ctx)
		if err != nil || componentEC == nil {
			continue
		}
		for k, v := range componentEC {
			ec.Put(k, v)
		}
	}
	return nil
}

// processChunk reads, processes and writes a single chunk. It reports whether the reader is exhausted.
func (s *ChunkStep) processChunk(ctx context.Context, stepExecution *model.StepExecution) (bool, error) {
	for _, l := range s.chunkListeners {
		l.BeforeChunk(ctx, stepExecution)
	}
	defer func() {
		for _, l := range s.chunkListeners {
			l.AfterChunk(ctx, stepExecution)
		}
	}()

	items := make([]any, 0, s.chunkSize)
	eof := false
	for read := 0; read < s.chunkSize; read++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		item, err := s.reader.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			return false, exception.NewBatchError(s.id, "item read failed", err, false, false)
		}
		stepExecution.ReadCount++
		s.metricRecorder.RecordItemRead(ctx, s.id)

		out, err := s.processor.Process(ctx, item)
		if errors.Is(err, port.ErrFilterItem) || (err == nil && out == nil) {
			stepExecution.FilterCount++
			continue
		}
		if err != nil {
			return false, exception.NewBatchError(s.id, fmt.Sprintf("item process failed (item #%d)", stepExecution.ReadCount), err, false, false)
		}
		s.metricRecorder.RecordItemProcess(ctx, s.id)
		items = append(items, out)
	}

	if len(items) == 0 {
		return eof, nil
	}

	start := time.Now()
	if err := s.writer.Write(ctx, items); err != nil {
		return false, exception.NewBatchError(s.id, "chunk write failed", err, false, false)
	}
	s.metricRecorder.RecordDuration(ctx, "chunk_write", time.Since(start), map[string]string{"step": s.id})
	s.metricRecorder.RecordItemWrite(ctx, s.id, len(items))
	stepExecution.WriteCount += len(items)
	stepExecution.CommitCount++
	s.metricRecorder.RecordChunkCommit(ctx, s.id, len(items))
	stepExecution.LastUpdated = time.Now()
	logger.Debugf("ChunkStep '%s': committed chunk #%d (%d items).", s.id, stepExecution.CommitCount, len(items))
	return eof, nil
}

// PassThroughProcessor returns every item unchanged.
type PassThroughProcessor struct{}

// Process returns item as is.
func (p *PassThroughProcessor) Process(ctx context.Context, item any) (any, error) {
	return item, nil
}

func (p *PassThroughProcessor) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

func (p *PassThroughProcessor) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return nil, nil
}
