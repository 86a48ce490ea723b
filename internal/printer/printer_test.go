package printer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/receipt"
)

func sampleDoc() receipt.Document {
	return receipt.Document{
		Variant: "compact",
		SaleID:  "sale/1",
		HTML:    "<!doctype html><p>receipt</p>",
		Lines:   []string{"Toko POS", "Rice   ₹100.00", "Net amount   ₹105.00"},
	}
}

func TestEncodeESCPOSFraming(t *testing.T) {
	out := EncodeESCPOS(sampleDoc())

	assert.True(t, bytes.HasPrefix(out, []byte{0x1b, 0x40, 0x1b, 't', 19, 0x1b, 'E', 1}))
	assert.True(t, bytes.HasSuffix(out, []byte{0x1d, 0x56, 0x41, 0x10}))
	assert.True(t, bytes.Contains(out, []byte("Net amount   Rs.105.00\n")))
}

func TestEncodeESCPOSWritesSingleByteText(t *testing.T) {
	sale := domain.FinalizedSale{
		ID:            "sale-1",
		InvoiceNumber: "INV-000001",
		CreatedAt:     time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		Items: []domain.LineItem{
			{LineID: "P-1", Name: "Café Latte Premix 1kg", Quantity: decimal.NewFromInt(12), UnitPrice: decimal.RequireFromString("99999.50")},
		},
		Payment:       domain.PaymentBreakdown{Cash: decimal.RequireFromString("1200000")},
		Subtotal:      decimal.RequireFromString("1199994"),
		GrandTotal:    decimal.RequireFromString("1199994"),
		Payable:       decimal.RequireFromString("1199994"),
		TotalTendered: decimal.RequireFromString("1200000"),
		ChangeDue:     decimal.RequireFromString("6"),
	}
	settings := domain.DefaultStoreSettings("store-1")
	settings.ReceiptTemplate = domain.TemplateDetailed
	doc, err := receipt.NewRenderer().Render(sale, settings)
	require.NoError(t, err)

	out := EncodeESCPOS(doc)
	assert.False(t, bytes.Contains(out, []byte("₹")))
	assert.True(t, bytes.Contains(out, []byte("Caf\x82 Latte")))
	assert.True(t, bytes.Contains(out, []byte("Rs.")))

	for _, line := range doc.Lines {
		encoded := encodeLine(line)
		assert.LessOrEqual(t, len(encoded), receipt.Width, "line %q", line)
		for _, b := range encoded {
			assert.True(t, b >= 0x20 && b != 0x7f, "byte %#x in %q", b, line)
		}
	}
}

func TestEncodeLineReplacesUnknownRunes(t *testing.T) {
	assert.Equal(t, []byte("Tea ? \xd51.00"), encodeLine("Tea 茶 €1.00"))
	assert.Equal(t, []byte("a b"), encodeLine("a\tb"))
}

func TestNewSurfaceFromConfig(t *testing.T) {
	cases := []struct {
		cfg     Config
		name    string
		wantErr bool
	}{
		{Config{}, TypeNone, false},
		{Config{Type: "NONE"}, TypeNone, false},
		{Config{Type: "spool", SpoolDir: "/tmp/x"}, TypeSpool, false},
		{Config{Type: "spool"}, "", true},
		{Config{Type: "network", Address: "10.0.0.5:9100"}, TypeNetwork, false},
		{Config{Type: "network"}, "", true},
		{Config{Type: "usb", Device: "/dev/usb/lp0"}, TypeUSB, false},
		{Config{Type: "usb"}, "", true},
		{Config{Type: "bluetooth"}, "", true},
	}
	for _, tc := range cases {
		s, err := NewSurface(tc.cfg)
		if tc.wantErr {
			assert.Error(t, err, "%+v", tc.cfg)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.name, s.Name())
	}
}

func TestDispatchSpoolPublishesHTML(t *testing.T) {
	dir := t.TempDir()
	d := NewDispatcher(NewSpoolSurface(dir), nil)

	outcome := d.Dispatch(context.Background(), sampleDoc())
	require.True(t, outcome.Printed, outcome.Warning)
	assert.Empty(t, outcome.Warning)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "receipt-sale_1-"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".html"))

	body, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, sampleDoc().HTML, string(body))
}

func TestDispatchNetworkSendsESCPOS(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	outcome := NewDispatcher(NewNetworkSurface(ln.Addr().String()), nil).Dispatch(context.Background(), sampleDoc())
	require.True(t, outcome.Printed, outcome.Warning)
	assert.Equal(t, TypeNetwork, outcome.Surface)
	assert.Equal(t, EncodeESCPOS(sampleDoc()), <-received)
}

func TestDispatchUSBWritesDeviceFile(t *testing.T) {
	device := filepath.Join(t.TempDir(), "lp0")
	require.NoError(t, os.WriteFile(device, nil, 0o600))

	outcome := NewDispatcher(NewUSBSurface(device), nil).Dispatch(context.Background(), sampleDoc())
	require.True(t, outcome.Printed, outcome.Warning)

	data, err := os.ReadFile(device)
	require.NoError(t, err)
	assert.Equal(t, EncodeESCPOS(sampleDoc()), data)
}

func TestDispatchFailuresBecomeWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	surfaces := []Surface{
		NullSurface{},
		NewUSBSurface(filepath.Join(t.TempDir(), "missing", "lp0")),
		NewNetworkSurface("127.0.0.1:1"),
		failingSurface{},
	}
	for _, s := range surfaces {
		outcome := NewDispatcher(s, logger).Dispatch(context.Background(), sampleDoc())
		assert.False(t, outcome.Printed, s.Name())
		assert.NotEmpty(t, outcome.Warning, s.Name())
	}

	assert.Equal(t, len(surfaces), logs.FilterMessage("receipt print failed").Len())
	first := logs.All()[0]
	assert.Equal(t, "sale/1", first.ContextMap()["sale_id"])
}

func TestDispatchClosesJobAfterPresentFailure(t *testing.T) {
	job := &recordingJob{presentErr: errors.New("paper out")}
	outcome := NewDispatcher(fixedSurface{job: job}, nil).Dispatch(context.Background(), sampleDoc())

	assert.False(t, outcome.Printed)
	assert.Contains(t, outcome.Warning, "paper out")
	assert.True(t, job.wrote)
	assert.True(t, job.closed)
}

type failingSurface struct{}

func (failingSurface) Name() string { return "failing" }

func (failingSurface) Acquire(context.Context) (Job, error) {
	return nil, errors.New("print dialog blocked")
}

type fixedSurface struct {
	job Job
}

func (fixedSurface) Name() string { return "fixed" }

func (s fixedSurface) Acquire(context.Context) (Job, error) { return s.job, nil }

type recordingJob struct {
	wrote      bool
	closed     bool
	presentErr error
}

func (j *recordingJob) Write(receipt.Document) error { j.wrote = true; return nil }
func (j *recordingJob) Present() error               { return j.presentErr }
func (j *recordingJob) Close() error                 { j.closed = true; return nil }
