package capture

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pgbak/internal/manifest"
)

// readChunkSize bounds the reads performed while the WAL start label is
// still being scanned for. Small enough to hand over promptly once the
// label resolves, large enough to keep the producer's pipe drained.
const readChunkSize = 4096

// ErrProducerEnded is returned when the backup stream ends before a WAL
// start label was found in it.
var ErrProducerEnded = errors.New("producer ended before wal start was found")

// CaptureRecord is the catalog row describing one capture attempt.
type CaptureRecord struct {
	ID              int64
	ManifestID      string
	Label           string
	WALStart        string
	RawBytes        int64
	CompressedBytes int64
	StartedAt       time.Time
	FinishedAt      time.Time
	Status          string // "success" or "error"
}

// Catalog persists capture records for the history view.
type Catalog interface {
	RecordCapture(rec *CaptureRecord) error
	ListCaptures(limit int) ([]*CaptureRecord, error)
	Close() error
}

// ManifestStore persists the manifest of a completed backup.
type ManifestStore interface {
	Save(m *manifest.Manifest) error
}

// Result summarizes one successful capture.
type Result struct {
	Manifest        *manifest.Manifest
	WALStart        string
	ArtifactPath    string
	RawBytes        int64
	CompressedBytes int64
}

// Service captures streamed base backups: it runs the producer, splits the
// stream between the persistence path and a WAL-label scanner, compresses
// the archive into <backupDir>/<label>.tar.zst, and records the outcome.
type Service struct {
	backupDir   string
	newProducer ProducerFactory
	manifests   ManifestStore
	catalog     Catalog
	logger      Logger
	clock       Clock
	idgen       IDGenerator
}

// NewService creates a capture service with the provided dependencies.
func NewService(backupDir string, newProducer ProducerFactory, manifests ManifestStore, catalog Catalog, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		backupDir:   backupDir,
		newProducer: newProducer,
		manifests:   manifests,
		catalog:     catalog,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
	}
}

// Run captures one base backup under the given label. The label names the
// destination artifact; an existing artifact with the same label is
// overwritten. A failed capture returns an error and may leave a partial
// artifact on disk; no cleanup or retry is attempted.
func (s *Service) Run(label string) (res *Result, err error) {
	s.logger.Info("starting backup", "label", label)
	startedAt := s.clock.Now()

	record := &CaptureRecord{Label: label, StartedAt: startedAt, Status: "success"}
	defer func() {
		record.FinishedAt = s.clock.Now()
		if err != nil {
			record.Status = "error"
		}
		if s.catalog == nil {
			return
		}
		if recErr := s.catalog.RecordCapture(record); recErr != nil {
			s.logger.Error("recording capture in catalog", "error", recErr)
		}
	}()

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	producer := s.newProducer(label)
	stream, err := producer.Start()
	if err != nil {
		return nil, fmt.Errorf("starting backup producer: %w", err)
	}

	// Fan the live stream out: the persistence path keeps reading from tee,
	// the scanner goroutine consumes the side copy. The scanner terminates
	// exactly once and delivers its single result on the buffered channel.
	tee, side := NewTee(stream)
	results := make(chan walStartResult, 1)
	go func() {
		walStart, scanErr := scanWALStart(side)
		side.Close()
		results <- walStartResult{walStart: walStart, err: scanErr}
	}()

	prefix, walStart, err := waitForWALStart(tee, results)
	if err != nil {
		return nil, err
	}
	s.logger.Info("found wal start", "wal_start", walStart, "scanned_bytes", len(prefix))
	record.WALStart = walStart

	if _, err := hex.DecodeString(walStart); err != nil {
		return nil, fmt.Errorf("malformed wal start label %q: %w", walStart, err)
	}

	targetPath := filepath.Join(s.backupDir, label+".tar.zst")
	target, err := os.Create(targetPath)
	if err != nil {
		return nil, fmt.Errorf("creating backup file: %w", err)
	}
	defer target.Close()
	s.logger.Info("writing backup", "path", targetPath)

	// The logical backup stream: everything buffered while scanning,
	// followed by the live remainder.
	assembled := io.MultiReader(bytes.NewReader(prefix), tee)

	p := &persister{clock: s.clock, logger: s.logger}
	rawBytes, compressedBytes, err := p.run(assembled, target)
	record.RawBytes = rawBytes
	record.CompressedBytes = compressedBytes
	if err != nil {
		return nil, err
	}

	if err := target.Close(); err != nil {
		return nil, fmt.Errorf("closing backup file: %w", err)
	}
	if err := producer.Wait(); err != nil {
		return nil, err
	}

	m := manifest.New(s.idgen.New(), label, s.clock.Now())
	if err := s.manifests.Save(m); err != nil {
		return nil, fmt.Errorf("saving manifest: %w", err)
	}
	record.ManifestID = m.ID

	s.logger.Info("completed backup",
		"label", label,
		"manifest_id", m.ID,
		"raw_bytes", rawBytes,
		"compressed_bytes", compressedBytes,
	)

	return &Result{
		Manifest:        m,
		WALStart:        walStart,
		ArtifactPath:    targetPath,
		RawBytes:        rawBytes,
		CompressedBytes: compressedBytes,
	}, nil
}

// waitForWALStart pulls bytes from the pass-through reader on behalf of the
// eventual persister while the scanner goroutine is still working, retaining
// everything read. Between bounded reads it checks the one-shot result
// channel. Once the scanner resolves, the buffered prefix plus continued
// reads from tee form the complete backup stream, with no byte lost or
// duplicated.
func waitForWALStart(tee *Tee, results <-chan walStartResult) ([]byte, string, error) {
	var prefix bytes.Buffer
	buf := make([]byte, readChunkSize)

	for {
		select {
		case res := <-results:
			if res.err != nil {
				return nil, "", fmt.Errorf("scanning for wal start: %w", res.err)
			}
			return prefix.Bytes(), res.walStart, nil
		default:
		}

		n, err := tee.Read(buf)
		prefix.Write(buf[:n])
		if err == io.EOF {
			// Stream over. The tee queue is closed, so the scanner is
			// guaranteed to terminate with a definitive result; join it
			// rather than racing it.
			res := <-results
			if res.err != nil {
				return nil, "", fmt.Errorf("%w: %w", ErrProducerEnded, res.err)
			}
			return prefix.Bytes(), res.walStart, nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("reading backup stream: %w", err)
		}
	}
}
