package dynadump

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ExportOptions contains configuration options for an Exporter.
type ExportOptions struct {
	Source      string         // Name of the exported source, used in logs
	Logger      zerolog.Logger // Progress and failure logging. Default discards output.
	Backoff     Backoff        // Delay between fetch retries
	MaxAttempts int            // Consecutive failed fetches before giving up; 0 retries forever
	Tick        Clock          // Function to get current time for checkpoints
}

// Result summarizes one run of an Exporter. Pages and Records count only
// what this run committed.
type Result struct {
	Resumed  bool        // The run started from a stored checkpoint
	Complete bool        // The source was exhausted and the checkpoint cleared
	Pages    int64       // Pages committed by this run
	Records  int64       // Records committed by this run
	Retries  int64       // Failed fetches that were retried
	Last     *Checkpoint // Last checkpoint saved or loaded, nil when complete
}

// Exporter drives the export loop: fetch a page, transform and append its
// records, then advance or clear the checkpoint.
//
// Pages are processed strictly in order, one at a time. The checkpoint is
// advanced only after a page has been appended, so an interrupted export
// resumes after the last page that was durably written.
type Exporter struct {
	fetcher     PageFetcher
	transformer RecordTransformer
	sink        Sink
	checkpoint  CheckpointStore
	opts        ExportOptions
}

// NewExporter creates an Exporter with default options.
func NewExporter(fetcher PageFetcher, transformer RecordTransformer, sink Sink, checkpoint CheckpointStore, opts ...func(*ExportOptions)) *Exporter {
	options := ExportOptions{
		Logger:  zerolog.Nop(),
		Backoff: DefaultBackoff(),
		Tick:    DefaultClock,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Exporter{
		fetcher:     fetcher,
		transformer: transformer,
		sink:        sink,
		checkpoint:  checkpoint,
		opts:        options,
	}
}

// Run exports pages until the source is exhausted or a fatal error occurs.
//
// Transient fetch failures are retried with the same cursor. Any other
// failure stops the run and leaves the checkpoint at the last committed
// page: ErrSourceNotFound, ErrMalformedRecord, ErrSinkWrite,
// ErrCheckpointWrite, ErrUnsupportedKey or the context error. A checkpoint
// that cannot be used (ErrCheckpointMismatch, ErrCheckpointExpired) stops
// the run before any fetch.
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	var result Result
	log := e.opts.Logger.With().Str("source", e.opts.Source).Logger()

	state, err := e.checkpoint.Load(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cursor *Cursor
	if state != nil {
		cursor = &state.Cursor
		result.Resumed = true
		result.Last = state
		log.Info().
			Str("cursor", state.Cursor.String()).
			Int64("records", state.Records).
			Msg("Continuing export")
	} else {
		state = &Checkpoint{Source: e.opts.Source}
		log.Info().Msg("Starting export")
	}

	attempt := 0
	for {
		page, err := e.fetcher.FetchPage(ctx, cursor)
		if err != nil {
			if !IsTransient(err) || ctx.Err() != nil {
				return result, e.fail(log, err)
			}

			attempt++
			result.Retries++
			if e.opts.MaxAttempts > 0 && attempt >= e.opts.MaxAttempts {
				return result, e.fail(log, fmt.Errorf("giving up after %d attempts: %w", attempt, err))
			}

			delay := e.opts.Backoff.NextDelay(attempt)
			log.Warn().Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Fetch failed, retrying")

			if err := wait(ctx, delay); err != nil {
				return result, e.fail(log, err)
			}
			continue
		}
		attempt = 0

		lines, err := e.transform(page.Items)
		if err != nil {
			return result, e.fail(log, err)
		}

		if err := e.sink.Append(ctx, lines); err != nil {
			return result, e.fail(log, fmt.Errorf("%w: %w", ErrSinkWrite, err))
		}

		result.Pages++
		result.Records += int64(len(lines))
		log.Info().Int("items", len(lines)).Msgf("%d items processed", len(lines))

		if page.Next == nil {
			if err := e.checkpoint.Clear(ctx); err != nil {
				return result, e.fail(log, fmt.Errorf("%w: %w", ErrCheckpointWrite, err))
			}
			result.Complete = true
			result.Last = nil
			log.Info().
				Int64("records", result.Records).
				Int64("pages", result.Pages).
				Msg("Export complete")
			return result, nil
		}

		next := Checkpoint{
			Source:    state.Source,
			Cursor:    *page.Next,
			Pages:     state.Pages + 1,
			Records:   state.Records + int64(len(lines)),
			UpdatedAt: e.opts.Tick(),
		}
		if err := e.checkpoint.Save(ctx, next); err != nil {
			return result, e.fail(log, fmt.Errorf("%w: %w", ErrCheckpointWrite, err))
		}

		state = &next
		result.Last = state
		cursor = page.Next
	}
}

// transform converts the page in input order. The first malformed record
// aborts the page.
func (e *Exporter) transform(items []Item) ([][]byte, error) {
	lines := make([][]byte, 0, len(items))
	for i, item := range items {
		line, err := e.transformer.Transform(item)
		if err != nil {
			return nil, fmt.Errorf("record %d of page: %w", i, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (e *Exporter) fail(log zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("Export interrupted")
	case errors.Is(err, ErrSourceNotFound):
		log.Error().Err(err).Msg("Source table does not exist")
	default:
		log.Error().Err(err).Msg("Export failed")
	}
	return err
}
