package mcp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Transport is a line-oriented bidirectional channel to a tool provider.
// The production implementation wraps a subprocess's stdio; tests use
// in-memory pipes.
type Transport interface {
	// Send writes one message followed by a newline.
	Send(data []byte) error
	// Recv blocks until the next non-empty line arrives. Returns io.EOF
	// (or a wrapping error) when the peer goes away.
	Recv() ([]byte, error)
	Close() error
}

// ProviderConfig holds the launch parameters for a provider subprocess.
type ProviderConfig struct {
	Command string
	Args    []string
	Env     map[string]string
}

// stdioTransport runs the provider as a subprocess and speaks over its
// standard input/output.
type stdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	sendMu sync.Mutex
	closed sync.Once
}

// StartStdioTransport launches the provider subprocess described by cfg.
func StartStdioTransport(cfg ProviderConfig) (Transport, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	return &stdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

func (t *stdioTransport) Send(data []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write to provider stdin: %w", err)
	}
	return nil
}

func (t *stdioTransport) Recv() ([]byte, error) {
	for {
		line, err := t.stdout.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		trimmed := trimLine(line)
		if len(trimmed) == 0 {
			continue
		}
		return trimmed, nil
	}
}

func (t *stdioTransport) Close() error {
	t.closed.Do(func() {
		t.stdin.Close()
		if t.cmd.Process != nil {
			t.cmd.Process.Kill() //nolint:errcheck
		}
		go t.cmd.Wait() //nolint:errcheck
	})
	return nil
}

func trimLine(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// PipeTransport is an in-memory Transport for tests: it exposes the peer side
// as a pair of channels so a fake provider can be scripted in a goroutine.
type PipeTransport struct {
	// FromClient receives every message the bridge sends.
	FromClient chan []byte
	// ToClient delivers provider responses to the bridge.
	ToClient chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewPipeTransport creates a PipeTransport with buffered channels.
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{
		FromClient: make(chan []byte, 16),
		ToClient:   make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

func (t *PipeTransport) Send(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case t.FromClient <- cp:
		return nil
	case <-t.done:
		return io.ErrClosedPipe
	}
}

func (t *PipeTransport) Recv() ([]byte, error) {
	select {
	case line, ok := <-t.ToClient:
		if !ok {
			return nil, io.EOF
		}
		return line, nil
	case <-t.done:
		return nil, io.EOF
	}
}

func (t *PipeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}
