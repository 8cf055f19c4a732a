package posewire

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"cspanlens/internal/logging"
	"cspanlens/internal/pose"
	"cspanlens/internal/services"
)

const (
	defaultStartupTimeout = 2 * time.Minute
	shutdownGrace         = 5 * time.Second
	stderrTailBytes       = 4096
)

// Config describes how to launch the worker and the model settings it receives.
type Config struct {
	Command                string
	Args                   []string
	ModelComplexity        int
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
	EnableSegmentation     bool
	StartupTimeout         time.Duration
}

// BuildArgs appends the model flags to the configured command arguments.
func (c Config) BuildArgs() []string {
	args := append([]string(nil), c.Args...)
	args = append(args,
		"--model-complexity", strconv.Itoa(c.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(c.MinDetectionConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConfidence, 'f', -1, 64),
	)
	if c.EnableSegmentation {
		args = append(args, "--enable-segmentation")
	}
	return args
}

// Worker is a running pose worker process. It implements pose.Estimator.
type Worker struct {
	cmd    *exec.Cmd
	conn   *Conn
	stderr *tailBuffer
	hello  Hello
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ pose.Estimator = (*Worker)(nil)

// Start launches the worker and waits for its ready line.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (*Worker, error) {
	logger = logging.NewComponentLogger(logger, "posewire")
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pose", "start", "worker command not configured", nil)
	}
	args := cfg.BuildArgs()
	cmd := exec.CommandContext(ctx, command, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stdout pipe: %w", err)
	}
	tail := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = tail

	logger.Debug("starting pose worker", logging.String("command", command), logging.Any("args", args))
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pose", "start", command, err)
	}

	w := &Worker{cmd: cmd, conn: NewConn(stdout, stdin), stderr: tail, logger: logger}

	timeout := cfg.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	type handshakeResult struct {
		hello Hello
		err   error
	}
	done := make(chan handshakeResult, 1)
	go func() {
		hello, err := w.conn.Handshake()
		done <- handshakeResult{hello, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			_ = w.kill()
			return nil, w.withStderr(res.err)
		}
		w.hello = res.hello
	case <-time.After(timeout):
		_ = w.kill()
		return nil, services.Wrap(services.ErrTimeout, "pose", "start", fmt.Sprintf("worker not ready after %s", timeout), nil)
	case <-ctx.Done():
		_ = w.kill()
		return nil, ctx.Err()
	}

	logger.Info("pose worker ready",
		logging.String("version", w.hello.Version),
		logging.String("model", w.hello.Model),
		logging.Int("pid", cmd.Process.Pid),
	)
	return w, nil
}

// Hello returns the worker's ready announcement.
func (w *Worker) Hello() Hello {
	return w.hello
}

// Estimate implements pose.Estimator.
func (w *Worker) Estimate(ctx context.Context, frame pose.RGBFrame) (pose.Estimation, error) {
	est, err := w.conn.Estimate(ctx, frame)
	if err != nil {
		return est, w.withStderr(err)
	}
	return est, nil
}

// Close shuts the worker down, killing it if it ignores the request.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		if err := w.conn.Close(); err != nil {
			w.logger.Debug("pose worker close", logging.Error(err))
		}
		waitErr := make(chan error, 1)
		go func() { waitErr <- w.cmd.Wait() }()
		select {
		case err := <-waitErr:
			if err != nil {
				w.closeErr = w.withStderr(services.Wrap(services.ErrExternalTool, "pose", "shutdown", "worker exited with error", err))
			}
		case <-time.After(shutdownGrace):
			w.logger.Warn("pose worker ignored shutdown; killing",
				logging.String(logging.FieldEventType, "pose_worker_kill"),
				logging.String(logging.FieldErrorHint, "update the pose worker"),
				logging.String(logging.FieldImpact, "none"))
			_ = w.cmd.Process.Kill()
			<-waitErr
		}
	})
	return w.closeErr
}

func (w *Worker) kill() error {
	if w.cmd.Process == nil {
		return nil
	}
	err := w.cmd.Process.Kill()
	_ = w.cmd.Wait()
	return err
}

func (w *Worker) withStderr(err error) error {
	if tail := strings.TrimSpace(w.stderr.String()); tail != "" {
		return fmt.Errorf("%w (worker stderr: %s)", err, tail)
	}
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
