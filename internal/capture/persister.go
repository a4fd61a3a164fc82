package capture

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	// copyChunkSize bounds how much is pushed through the compressor per
	// loop iteration, which in turn bounds the progress report latency.
	copyChunkSize = 4 * 1024 * 1024

	// progressInterval is the minimum time between progress log lines.
	progressInterval = 5 * time.Second

	mib = 1024 * 1024
)

// persister drives the assembled backup stream through a streaming zstd
// compressor into the destination file. The file is fsynced before run
// returns success; only then is the backup durably captured.
type persister struct {
	clock  Clock
	logger Logger
}

// run compresses everything from src into f and returns the raw and
// compressed byte totals. Any read, compress, write or sync error is fatal;
// a partial destination file is left in place for the operator.
func (p *persister) run(src io.Reader, f *os.File) (rawBytes, compressedBytes int64, err error) {
	reader := &countingReader{r: src}
	writer := &countingWriter{w: f}

	encoder, err := zstd.NewWriter(writer, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, 0, fmt.Errorf("creating zstd encoder: %w", err)
	}

	start := p.clock.Now()
	lastReport := start

	for {
		_, copyErr := io.CopyN(encoder, reader, copyChunkSize)
		if copyErr != nil && copyErr != io.EOF {
			return reader.Total(), writer.Total(), fmt.Errorf("compressing backup stream: %w", copyErr)
		}

		if now := p.clock.Now(); now.Sub(lastReport) >= progressInterval {
			p.logStats(reader, writer, start, false)
			lastReport = now
		}

		if copyErr == io.EOF {
			break
		}
	}

	p.logStats(reader, writer, start, true)

	p.logger.Info("write finished, flushing")
	if err := encoder.Close(); err != nil {
		return reader.Total(), writer.Total(), fmt.Errorf("finalizing compressed stream: %w", err)
	}

	p.logger.Info("syncing file")
	if err := f.Sync(); err != nil {
		return reader.Total(), writer.Total(), fmt.Errorf("syncing backup file: %w", err)
	}

	return reader.Total(), writer.Total(), nil
}

// logStats emits one progress (or final summary) line with the processed and
// written totals, their wall-clock rates, and the compression ratio.
func (p *persister) logStats(reader *countingReader, writer *countingWriter, start time.Time, final bool) {
	elapsed := p.clock.Now().Sub(start).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	processed := reader.Total() / mib
	written := writer.Total() / mib
	ratio := 0.0
	if writer.Total() > 0 {
		ratio = float64(reader.Total()) / float64(writer.Total())
	}

	msg := "progress"
	if final {
		msg = "backup stream written"
	}
	p.logger.Info(msg,
		"processed_mib", processed,
		"read_rate_mib_s", fmt.Sprintf("%.0f", float64(processed)/elapsed),
		"written_mib", written,
		"write_rate_mib_s", fmt.Sprintf("%.0f", float64(written)/elapsed),
		"ratio", fmt.Sprintf("%.2f", ratio),
	)
}
