package camera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("decoder already started")
	ErrNotScanning    = errors.New("decoder is not scanning")
	ErrStillScanning  = errors.New("decoder must be stopped before clear")
	ErrNoDevice       = errors.New("no camera device found")
	ErrStopped        = errors.New("decoder stopped while starting")
)

// ExecConfig describes the external decoding process. Args may contain the
// placeholders {device}, {fps}, {qrbox} and {facing}.
type ExecConfig struct {
	Command string
	Args    []string
	Device  string
	// Settle is how long the process must stay alive for Start to succeed.
	Settle time.Duration
}

// ExecDecoder runs a barcode decoder process (zbarcam and friends) that
// prints one decoded value per line on stdout.
type ExecDecoder struct {
	cfg    ExecConfig
	prober *DeviceProber
	log    *zap.SugaredLogger

	mu       sync.Mutex
	cmd      *exec.Cmd
	scanning bool
	stopping bool
	done     chan struct{}
	exitErr  error
}

func NewExecDecoder(cfg ExecConfig, prober *DeviceProber, log *zap.SugaredLogger) *ExecDecoder {
	return &ExecDecoder{cfg: cfg, prober: prober, log: log}
}

// Factory returns a DecoderFactory producing one ExecDecoder per session.
func Factory(cfg ExecConfig, prober *DeviceProber, log *zap.SugaredLogger) domain.DecoderFactory {
	return func() domain.Decoder {
		return NewExecDecoder(cfg, prober, log)
	}
}

func (d *ExecDecoder) Start(ctx context.Context, constraints domain.CameraConstraints, opts domain.DecodeOptions, onDecode func(text string)) error {
	d.mu.Lock()
	if d.cmd != nil {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}

	device, err := d.device()
	if err != nil {
		d.mu.Unlock()
		return err
	}

	r := strings.NewReplacer(
		"{device}", device,
		"{fps}", strconv.Itoa(opts.FPS),
		"{qrbox}", strconv.Itoa(opts.QRBox),
		"{facing}", constraints.FacingMode,
	)
	args := make([]string, len(d.cfg.Args))
	for i, a := range d.cfg.Args {
		args[i] = r.Replace(a)
	}

	cmd := exec.Command(d.cfg.Command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("decoder stdout: %w", err)
	}
	stderr := &tailBuffer{max: 512}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("start decoder %s: %w", d.cfg.Command, err)
	}

	done := make(chan struct{})
	d.cmd = cmd
	d.done = done
	d.scanning = true
	d.stopping = false
	d.mu.Unlock()

	go d.readLoop(cmd, stdout, done, onDecode)

	// A process that dies right away could not open the device.
	select {
	case <-done:
		d.mu.Lock()
		exitErr, stopping := d.exitErr, d.stopping
		d.mu.Unlock()
		if stopping {
			return ErrStopped
		}
		return fmt.Errorf("decoder exited on start: %v: %s", exitErr, stderr.String())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case <-time.After(d.cfg.Settle):
	}

	d.log.Infow("decoder started", "device", device, "pid", cmd.Process.Pid)
	return nil
}

func (d *ExecDecoder) readLoop(cmd *exec.Cmd, stdout io.Reader, done chan struct{}, onDecode func(string)) {
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		if text := strings.TrimSpace(sc.Text()); text != "" {
			onDecode(text)
		}
	}
	err := cmd.Wait()

	d.mu.Lock()
	d.exitErr = err
	d.scanning = false
	d.mu.Unlock()
	close(done)
}

func (d *ExecDecoder) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.scanning {
		d.mu.Unlock()
		return ErrNotScanning
	}
	cmd, done := d.cmd, d.done
	d.stopping = true
	d.mu.Unlock()

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill decoder: %w", err)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *ExecDecoder) Clear(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scanning {
		return ErrStillScanning
	}
	d.cmd = nil
	d.done = nil
	return nil
}

func (d *ExecDecoder) IsScanning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanning
}

func (d *ExecDecoder) device() (string, error) {
	if d.cfg.Device != "" {
		return d.cfg.Device, nil
	}
	devices, err := d.prober.Devices()
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}
	return devices[0], nil
}

// tailBuffer keeps the last max bytes written by the decoder on stderr.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
