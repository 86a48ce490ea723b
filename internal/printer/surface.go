package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tokopos/backend/internal/receipt"
)

// ErrNoSurface is returned when no presentation surface can be obtained.
var ErrNoSurface = errors.New("no print surface available")

// Surface hands out print jobs. Each job is acquired, written once and then
// presented; Close releases it whether or not it was presented.
type Surface interface {
	Name() string
	Acquire(ctx context.Context) (Job, error)
}

type Job interface {
	Write(doc receipt.Document) error
	Present() error
	Close() error
}

const (
	TypeNone    = "none"
	TypeSpool   = "spool"
	TypeNetwork = "network"
	TypeUSB     = "usb"
)

// Config selects and addresses a surface.
type Config struct {
	Type     string
	Address  string
	Device   string
	SpoolDir string
}

// NewSurface builds the surface named by cfg.Type.
func NewSurface(cfg Config) (Surface, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeSpool:
		if strings.TrimSpace(cfg.SpoolDir) == "" {
			return nil, errors.New("printer: spool directory is required for spool printer type")
		}
		return NewSpoolSurface(cfg.SpoolDir), nil
	case TypeNetwork:
		if strings.TrimSpace(cfg.Address) == "" {
			return nil, errors.New("printer: address is required for network printer type")
		}
		return NewNetworkSurface(cfg.Address), nil
	case TypeUSB:
		if strings.TrimSpace(cfg.Device) == "" {
			return nil, errors.New("printer: device path is required for usb printer type")
		}
		return NewUSBSurface(cfg.Device), nil
	case TypeNone, "":
		return NullSurface{}, nil
	default:
		return nil, fmt.Errorf("printer: unsupported printer type %q", cfg.Type)
	}
}

// --- Spool directory (HTML documents picked up by a print agent) ---

type SpoolSurface struct {
	dir string
}

func NewSpoolSurface(dir string) *SpoolSurface {
	return &SpoolSurface{dir: dir}
}

func (s *SpoolSurface) Name() string { return TypeSpool }

func (s *SpoolSurface) Acquire(_ context.Context) (Job, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("printer: spool dir %s: %w", s.dir, err)
	}
	f, err := os.CreateTemp(s.dir, ".receipt-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("printer: create spool file: %w", err)
	}
	return &spoolJob{dir: s.dir, file: f}, nil
}

type spoolJob struct {
	dir       string
	file      *os.File
	saleID    string
	presented bool
}

func (j *spoolJob) Write(doc receipt.Document) error {
	j.saleID = doc.SaleID
	if _, err := j.file.WriteString(doc.HTML); err != nil {
		return fmt.Errorf("printer: write spool file: %w", err)
	}
	return nil
}

// Present publishes the document under its final name. The rename is atomic,
// so a print agent never sees a partial file.
func (j *spoolJob) Present() error {
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("printer: sync spool file: %w", err)
	}
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("printer: close spool file: %w", err)
	}
	final := filepath.Join(j.dir, fmt.Sprintf("receipt-%s-%d.html", safeName(j.saleID), time.Now().UnixNano()))
	if err := os.Rename(j.file.Name(), final); err != nil {
		return fmt.Errorf("printer: publish spool file: %w", err)
	}
	j.presented = true
	return nil
}

func (j *spoolJob) Close() error {
	if j.presented {
		return nil
	}
	_ = j.file.Close()
	return os.Remove(j.file.Name())
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// --- Network printer (raw ESC/POS over TCP, e.g. 192.168.1.100:9100) ---

type NetworkSurface struct {
	address      string
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func NewNetworkSurface(address string) *NetworkSurface {
	return &NetworkSurface{address: address, dialTimeout: 5 * time.Second, writeTimeout: 10 * time.Second}
}

func (s *NetworkSurface) Name() string { return TypeNetwork }

func (s *NetworkSurface) Acquire(ctx context.Context) (Job, error) {
	dialer := net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return nil, fmt.Errorf("printer: connect to %s: %w", s.address, err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return &streamJob{target: s.address, w: conn}, nil
}

// --- USB printer (device file, e.g. /dev/usb/lp0) ---

type USBSurface struct {
	path string
}

func NewUSBSurface(path string) *USBSurface {
	return &USBSurface{path: path}
}

func (s *USBSurface) Name() string { return TypeUSB }

func (s *USBSurface) Acquire(_ context.Context) (Job, error) {
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("printer: open device %s: %w", s.path, err)
	}
	return &streamJob{target: s.path, w: f}, nil
}

// streamJob buffers the encoded receipt and sends it in one write on Present.
type streamJob struct {
	target string
	w      io.WriteCloser
	data   []byte
}

func (j *streamJob) Write(doc receipt.Document) error {
	j.data = EncodeESCPOS(doc)
	return nil
}

func (j *streamJob) Present() error {
	if len(j.data) == 0 {
		return errors.New("printer: nothing to present")
	}
	if _, err := j.w.Write(j.data); err != nil {
		return fmt.Errorf("printer: write to %s: %w", j.target, err)
	}
	return nil
}

func (j *streamJob) Close() error {
	return j.w.Close()
}

// --- Null surface (no printer configured) ---

type NullSurface struct{}

func (NullSurface) Name() string { return TypeNone }

func (NullSurface) Acquire(context.Context) (Job, error) {
	return nil, ErrNoSurface
}
