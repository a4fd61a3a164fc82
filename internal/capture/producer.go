package capture

import (
	"fmt"
	"io"
	"os/exec"
)

// Producer supplies the raw base-backup archive stream. Start spawns the
// producing process and returns its output stream; Wait reaps the process
// after the stream has been fully consumed.
type Producer interface {
	Start() (io.ReadCloser, error)
	Wait() error
}

// ProducerFactory builds a Producer for one capture with the given
// caller-supplied label.
type ProducerFactory func(label string) Producer

// PgBaseBackup runs pg_basebackup, streaming a tar-format base backup of
// the whole cluster to stdout. The process takes no input; stderr is
// discarded.
type PgBaseBackup struct {
	user  string
	label string
	cmd   *exec.Cmd
}

// NewPgBaseBackup creates a producer that connects as the given database
// user and passes label through to pg_basebackup's -l flag.
func NewPgBaseBackup(user, label string) *PgBaseBackup {
	return &PgBaseBackup{user: user, label: label}
}

// Start spawns pg_basebackup and returns its stdout. A spawn failure is
// surfaced immediately.
func (p *PgBaseBackup) Start() (io.ReadCloser, error) {
	cmd := exec.Command("pg_basebackup",
		"-U", p.user,
		"-D", "-",
		"-Ft",
		"-c", "fast",
		"-Xn",
		"-l", p.label,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting pg_basebackup: %w", err)
	}

	p.cmd = cmd
	return stdout, nil
}

// Wait blocks until the process exits. A non-zero exit fails the capture.
func (p *PgBaseBackup) Wait() error {
	if p.cmd == nil {
		return nil
	}
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("pg_basebackup: %w", err)
	}
	return nil
}
