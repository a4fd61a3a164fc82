package capture

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"
)

// backupLabelEntry is the tar entry pg_basebackup places at the start of a
// base backup describing the backup's WAL position.
const backupLabelEntry = "backup_label"

// walLocationPrefix marks the backup_label line that carries the WAL start
// position, e.g.
//
//	START WAL LOCATION: 0/3000028 (file 000000010000000000000003)
const walLocationPrefix = "START WAL LOCATION"

// walFileDelimiter precedes the WAL segment file name within that line.
const walFileDelimiter = "file"

// ErrNoBackupLabel is returned when the stream ends without a backup_label
// entry containing a WAL start line.
var ErrNoBackupLabel = errors.New("no backup label found")

// scanWALStart consumes a tar-format base backup stream and returns the WAL
// segment name from the backup_label entry. It stops at the first match and
// does not read the remainder of the stream. Entries other than
// backup_label are skipped without inspection; only a malformed archive
// fails the scan.
func scanWALStart(r io.Reader) (string, error) {
	archive := tar.NewReader(r)

	for {
		header, err := archive.Next()
		if err == io.EOF {
			return "", ErrNoBackupLabel
		}
		if err != nil {
			return "", fmt.Errorf("reading archive entry: %w", err)
		}
		if header.Name != backupLabelEntry {
			continue
		}

		contents, err := io.ReadAll(archive)
		if err != nil {
			return "", fmt.Errorf("reading %s entry: %w", backupLabelEntry, err)
		}

		for _, line := range strings.Split(string(contents), "\n") {
			if !strings.HasPrefix(line, walLocationPrefix) {
				continue
			}
			if segment, ok := walSegmentFromLine(line); ok {
				return segment, nil
			}
		}
	}
}

// walSegmentFromLine extracts the WAL segment name from a START WAL LOCATION
// line. The segment sits after the "file" delimiter, wrapped in exactly one
// leading character (a space) and one trailing character (a closing paren).
// Returns false for any line too short or missing the delimiter.
func walSegmentFromLine(line string) (string, bool) {
	i := strings.Index(line, walFileDelimiter)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(walFileDelimiter):]
	if len(rest) < 2 {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// walStartResult is the one-shot message a scanner goroutine delivers back
// to the capture: either the discovered WAL segment name or the scan error.
type walStartResult struct {
	walStart string
	err      error
}
