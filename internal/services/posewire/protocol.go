package posewire

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cspanlens/internal/pose"
	"cspanlens/internal/services"
)

// maxLineBytes bounds a reply line; a 4K mask in base64 stays well below it.
const maxLineBytes = 64 << 20

// Hello is the worker's ready announcement.
type Hello struct {
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Model   string `json:"model"`
	Error   string `json:"error"`
}

type requestHeader struct {
	Op     string `json:"op"`
	ID     uint64 `json:"id"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	PixFmt string `json:"pix_fmt,omitempty"`
	Bytes  int    `json:"bytes,omitempty"`
}

type maskPayload struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   string `json:"data"`
}

type reply struct {
	ID        uint64       `json:"id"`
	Landmarks [][]float64  `json:"landmarks"`
	Mask      *maskPayload `json:"mask"`
	Error     string       `json:"error"`
}

// Conn is one protocol session over a reader/writer pair.
type Conn struct {
	mu     sync.Mutex
	reader *bufio.Reader
	writer *bufio.Writer
	closer io.Closer
	seq    uint64
	closed bool
}

// NewConn wraps the worker's stdout (r) and stdin (w).
func NewConn(r io.Reader, w io.WriteCloser) *Conn {
	return &Conn{
		reader: bufio.NewReaderSize(r, 1<<20),
		writer: bufio.NewWriterSize(w, 1<<20),
		closer: w,
	}
}

// Handshake waits for the worker's ready line.
func (c *Conn) Handshake() (Hello, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var hello Hello
	line, err := c.readLine()
	if err != nil {
		return hello, err
	}
	if err := json.Unmarshal(line, &hello); err != nil {
		return hello, services.Wrap(services.ErrExternalTool, "pose", "handshake", "decode ready line", err)
	}
	if !hello.Ready {
		msg := strings.TrimSpace(hello.Error)
		if msg == "" {
			msg = "worker did not report ready"
		}
		return hello, services.Wrap(services.ErrExternalTool, "pose", "handshake", msg, nil)
	}
	return hello, nil
}

// Estimate sends one frame and decodes the worker's reply.
func (c *Conn) Estimate(ctx context.Context, frame pose.RGBFrame) (pose.Estimation, error) {
	if err := ctx.Err(); err != nil {
		return pose.Estimation{}, err
	}
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pix) != frame.Width*frame.Height*3 {
		return pose.Estimation{}, services.Wrap(services.ErrValidation, "pose", "estimate",
			fmt.Sprintf("frame %dx%d carries %d bytes", frame.Width, frame.Height, len(frame.Pix)), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "estimate", "worker connection closed", nil)
	}
	c.seq++
	header := requestHeader{
		Op:     "estimate",
		ID:     c.seq,
		Width:  frame.Width,
		Height: frame.Height,
		PixFmt: "rgb24",
		Bytes:  len(frame.Pix),
	}
	if err := c.writeHeader(header); err != nil {
		return pose.Estimation{}, err
	}
	if _, err := c.writer.Write(frame.Pix); err != nil {
		return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "estimate", "write frame", err)
	}
	if err := c.writer.Flush(); err != nil {
		return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "estimate", "flush frame", err)
	}

	line, err := c.readLine()
	if err != nil {
		return pose.Estimation{}, err
	}
	var resp reply
	if err := json.Unmarshal(line, &resp); err != nil {
		return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "estimate", "decode reply", err)
	}
	if resp.ID != header.ID {
		return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "estimate",
			fmt.Sprintf("reply id %d does not match request %d", resp.ID, header.ID), nil)
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "estimate", msg, nil)
	}
	return decodeReply(resp)
}

// Close asks the worker to exit and closes its stdin. Safe to call twice.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.seq++
	shutdownErr := c.writeHeader(requestHeader{Op: "shutdown", ID: c.seq})
	closeErr := c.closer.Close()
	if closeErr != nil {
		return closeErr
	}
	// A worker that already exited cannot read the shutdown line.
	if shutdownErr != nil && !errors.Is(shutdownErr, io.ErrClosedPipe) {
		return shutdownErr
	}
	return nil
}

func (c *Conn) writeHeader(header requestHeader) error {
	encoded, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode request header: %w", err)
	}
	encoded = append(encoded, '\n')
	if _, err := c.writer.Write(encoded); err != nil {
		return services.Wrap(services.ErrExternalTool, "pose", header.Op, "write header", err)
	}
	if header.Op != "estimate" {
		if err := c.writer.Flush(); err != nil {
			return services.Wrap(services.ErrExternalTool, "pose", header.Op, "flush header", err)
		}
	}
	return nil
}

func (c *Conn) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := c.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, services.Wrap(services.ErrExternalTool, "pose", "read reply", "worker closed its output", err)
			}
			return nil, services.Wrap(services.ErrExternalTool, "pose", "read reply", "", err)
		}
		buf = append(buf, chunk...)
		if len(buf) > maxLineBytes {
			return nil, services.Wrap(services.ErrExternalTool, "pose", "read reply", "reply line too long", nil)
		}
		if !isPrefix {
			return buf, nil
		}
	}
}

func decodeReply(resp reply) (pose.Estimation, error) {
	var est pose.Estimation
	if len(resp.Landmarks) > 0 {
		est.Landmarks = make([]pose.Landmark, len(resp.Landmarks))
		for i, values := range resp.Landmarks {
			if len(values) != 4 {
				return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "decode reply",
					fmt.Sprintf("landmark %d has %d values, want 4", i, len(values)), nil)
			}
			est.Landmarks[i] = pose.Landmark{X: values[0], Y: values[1], Z: values[2], Visibility: values[3]}
		}
	}
	if resp.Mask != nil && resp.Mask.Data != "" {
		data, err := base64.StdEncoding.DecodeString(resp.Mask.Data)
		if err != nil {
			return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "decode mask", "", err)
		}
		if len(data) != resp.Mask.Width*resp.Mask.Height {
			return pose.Estimation{}, services.Wrap(services.ErrExternalTool, "pose", "decode mask",
				fmt.Sprintf("mask %dx%d carries %d bytes", resp.Mask.Width, resp.Mask.Height, len(data)), nil)
		}
		est.Mask = &pose.Mask{Width: resp.Mask.Width, Height: resp.Mask.Height, Values: data}
	}
	return est, nil
}
