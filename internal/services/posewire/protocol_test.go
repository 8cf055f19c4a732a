package posewire

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"

	"cspanlens/internal/pose"
	"cspanlens/internal/services"
)

// fakeWorker serves the protocol over in-memory pipes.
type fakeWorker struct {
	conn      *Conn
	requests  chan requestHeader
	payloads  chan []byte
	toWorker  *io.PipeReader
	toClient  *io.PipeWriter
	respond   func(h requestHeader) string
	readyLine string
}

func newFakeWorker(t *testing.T, respond func(h requestHeader) string) *fakeWorker {
	t.Helper()
	clientIn, workerOut := io.Pipe()
	workerIn, clientOut := io.Pipe()
	fw := &fakeWorker{
		conn:      NewConn(clientIn, clientOut),
		requests:  make(chan requestHeader, 16),
		payloads:  make(chan []byte, 16),
		toWorker:  workerIn,
		toClient:  workerOut,
		respond:   respond,
		readyLine: `{"ready":true,"version":"1.2.0","model":"heavy"}`,
	}
	go fw.serve()
	t.Cleanup(func() {
		_ = workerOut.Close()
		_ = workerIn.Close()
		_ = fw.conn.Close()
	})
	return fw
}

func (fw *fakeWorker) serve() {
	reader := bufio.NewReader(fw.toWorker)
	fmt.Fprintln(fw.toClient, fw.readyLine)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var header requestHeader
		if err := json.Unmarshal(line, &header); err != nil {
			return
		}
		fw.requests <- header
		if header.Op == "shutdown" {
			return
		}
		payload := make([]byte, header.Bytes)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return
		}
		fw.payloads <- payload
		fmt.Fprintln(fw.toClient, fw.respond(header))
	}
}

func fullPose(id uint64) string {
	landmarks := make([][]float64, pose.NumLandmarks)
	for i := range landmarks {
		landmarks[i] = []float64{float64(i) / 100, 0.5, -0.1, 0.9}
	}
	encoded, _ := json.Marshal(landmarks)
	return fmt.Sprintf(`{"id":%d,"landmarks":%s}`, id, encoded)
}

func testFrame(w, h int) pose.RGBFrame {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = byte(i)
	}
	return pose.RGBFrame{Width: w, Height: h, Pix: pix}
}

func TestConnHandshakeAndEstimate(t *testing.T) {
	fw := newFakeWorker(t, func(h requestHeader) string { return fullPose(h.ID) })

	hello, err := fw.conn.Handshake()
	if err != nil {
		t.Fatalf("Handshake returned error: %v", err)
	}
	if hello.Version != "1.2.0" || hello.Model != "heavy" {
		t.Fatalf("unexpected hello %+v", hello)
	}

	frame := testFrame(4, 2)
	est, err := fw.conn.Estimate(context.Background(), frame)
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	header := <-fw.requests
	if header.Op != "estimate" || header.Width != 4 || header.Height != 2 || header.PixFmt != "rgb24" || header.Bytes != 24 {
		t.Fatalf("unexpected header %+v", header)
	}
	if payload := <-fw.payloads; !slices.Equal(payload, frame.Pix) {
		t.Fatal("payload does not match frame pixels")
	}
	if len(est.Landmarks) != pose.NumLandmarks {
		t.Fatalf("expected %d landmarks, got %d", pose.NumLandmarks, len(est.Landmarks))
	}
	if lm := est.Landmarks[pose.RightWrist]; lm.X != 0.16 || lm.Visibility != 0.9 {
		t.Fatalf("unexpected right wrist %+v", lm)
	}
	if est.Mask != nil {
		t.Fatal("expected no mask")
	}
}

func TestConnEstimateDecodesMask(t *testing.T) {
	maskBytes := []byte{0, 64, 128, 255}
	fw := newFakeWorker(t, func(h requestHeader) string {
		return fmt.Sprintf(`{"id":%d,"landmarks":[],"mask":{"width":2,"height":2,"data":%q}}`,
			h.ID, base64.StdEncoding.EncodeToString(maskBytes))
	})
	if _, err := fw.conn.Handshake(); err != nil {
		t.Fatal(err)
	}
	est, err := fw.conn.Estimate(context.Background(), testFrame(2, 2))
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if len(est.Landmarks) != 0 {
		t.Fatal("expected no landmarks")
	}
	if est.Mask == nil || !slices.Equal(est.Mask.Values, maskBytes) {
		t.Fatalf("unexpected mask %+v", est.Mask)
	}
}

func TestConnEstimateErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply func(h requestHeader) string
		want  string
	}{
		{"worker error", func(h requestHeader) string { return fmt.Sprintf(`{"id":%d,"error":"model crashed"}`, h.ID) }, "model crashed"},
		{"id mismatch", func(h requestHeader) string { return fullPose(h.ID + 7) }, "does not match"},
		{"short landmark", func(h requestHeader) string { return fmt.Sprintf(`{"id":%d,"landmarks":[[0.1,0.2]]}`, h.ID) }, "want 4"},
		{"bad json", func(requestHeader) string { return "not json" }, "decode reply"},
		{"mask size", func(h requestHeader) string {
			return fmt.Sprintf(`{"id":%d,"mask":{"width":3,"height":3,"data":"AAAA"}}`, h.ID)
		}, "mask 3x3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := newFakeWorker(t, tt.reply)
			if _, err := fw.conn.Handshake(); err != nil {
				t.Fatal(err)
			}
			_, err := fw.conn.Estimate(context.Background(), testFrame(2, 2))
			if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected external tool error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConnRejectsMalformedFrame(t *testing.T) {
	fw := newFakeWorker(t, func(h requestHeader) string { return fullPose(h.ID) })
	_, err := fw.conn.Estimate(context.Background(), pose.RGBFrame{Width: 2, Height: 2, Pix: []byte{1}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConnHonorsCanceledContext(t *testing.T) {
	fw := newFakeWorker(t, func(h requestHeader) string { return fullPose(h.ID) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fw.conn.Estimate(ctx, testFrame(1, 1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestConnCloseSendsShutdown(t *testing.T) {
	fw := newFakeWorker(t, func(h requestHeader) string { return fullPose(h.ID) })
	if _, err := fw.conn.Handshake(); err != nil {
		t.Fatal(err)
	}
	if err := fw.conn.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if header := <-fw.requests; header.Op != "shutdown" {
		t.Fatalf("expected shutdown request, got %+v", header)
	}
	if _, err := fw.conn.Estimate(context.Background(), testFrame(1, 1)); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("estimate after close should fail, got %v", err)
	}
	if err := fw.conn.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestHandshakeNotReady(t *testing.T) {
	clientIn, workerOut := io.Pipe()
	_, clientOut := io.Pipe()
	conn := NewConn(clientIn, clientOut)
	go fmt.Fprintln(workerOut, `{"ready":false,"error":"mediapipe not installed"}`)
	if _, err := conn.Handshake(); err == nil || !strings.Contains(err.Error(), "mediapipe not installed") {
		t.Fatalf("expected not-ready error, got %v", err)
	}
}

func TestConfigBuildArgs(t *testing.T) {
	cfg := Config{
		Args:                   []string{"--from", "cspanlens-pose", "cspanlens-pose-worker"},
		ModelComplexity:        2,
		MinDetectionConfidence: 0.7,
		MinTrackingConfidence:  0.5,
		EnableSegmentation:     true,
	}
	got := strings.Join(cfg.BuildArgs(), " ")
	want := "--from cspanlens-pose cspanlens-pose-worker --model-complexity 2 --min-detection-confidence 0.7 --min-tracking-confidence 0.5 --enable-segmentation"
	if got != want {
		t.Fatalf("BuildArgs = %q, want %q", got, want)
	}
}

func TestTailBufferKeepsEnd(t *testing.T) {
	tail := &tailBuffer{limit: 5}
	_, _ = tail.Write([]byte("abc"))
	_, _ = tail.Write([]byte("defgh"))
	if got := tail.String(); got != "defgh" {
		t.Fatalf("tail = %q", got)
	}
}
