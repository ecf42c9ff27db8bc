package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/order"
	"zazoom-be/internal/utils"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Export is the plaintext document inside a burn file.
type Export struct {
	ExportedAt time.Time      `json:"exported_at"`
	Orders     []*order.Order `json:"orders"`
}

// BurnReport describes a written export. Cutoff is the newest exported
// order's creation time and is nil when nothing was exported.
type BurnReport struct {
	Orders int        `json:"orders"`
	Bytes  int64      `json:"bytes"`
	Cutoff *time.Time `json:"cutoff,omitempty"`
}

// ParseRecipients reads age X25519 public keys, one per entry.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		r, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		recipients = append(recipients, r)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	return recipients, nil
}

// Export writes every order as zstd-compressed JSON encrypted to
// recipients. It never deletes anything; pass the report's Cutoff to Wipe
// once the export is safely stored.
func (s *Service) Export(ctx context.Context, w io.Writer, recipients []age.Recipient) (*BurnReport, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "admin"),
		zap.String("method", "Export"),
	)

	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	orders, err := s.orders.List(ctx, order.Filter{})
	if err != nil {
		log.Error("failed to load orders", zap.Error(err))
		return nil, err
	}

	cw := &countingWriter{w: w}
	if err := writeExport(cw, recipients, Export{ExportedAt: s.now().UTC(), Orders: orders}); err != nil {
		log.Error("failed to write export", zap.Error(err))
		return nil, err
	}

	report := &BurnReport{Orders: len(orders), Bytes: cw.n}
	for _, o := range orders {
		if report.Cutoff == nil || o.CreatedAt.After(*report.Cutoff) {
			at := o.CreatedAt
			report.Cutoff = &at
		}
	}

	log.Info("burn export written",
		zap.Int("orders", report.Orders),
		zap.Int64("bytes", report.Bytes),
	)
	return report, nil
}

// Wipe deletes the orders created at or before cutoff, along with their
// deliveries. Orders placed after the export are left alone.
func (s *Service) Wipe(ctx context.Context, cutoff time.Time) (int64, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "admin"),
		zap.String("method", "Wipe"),
		zap.Time("cutoff", cutoff),
	)

	if cutoff.IsZero() {
		return 0, ErrInvalidCutoff
	}

	n, err := s.wiper.DeleteThrough(ctx, cutoff)
	if err != nil {
		log.Error("failed to wipe orders", zap.Error(err))
		return 0, err
	}

	admin, _ := utils.GetAdminFromContext(ctx)
	log.Warn("orders wiped", zap.Int64("wiped", n), zap.String("admin", admin))
	return n, nil
}

func writeExport(w io.Writer, recipients []age.Recipient, doc Export) error {
	encrypted, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("failed to start encryption: %w", err)
	}
	compressed, err := zstd.NewWriter(encrypted, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to start compression: %w", err)
	}

	if err := json.NewEncoder(compressed).Encode(doc); err != nil {
		compressed.Close()
		return err
	}
	if err := compressed.Close(); err != nil {
		return err
	}
	return encrypted.Close()
}

// ReadExport reverses Export for an identity holding one of the recipient keys.
func ReadExport(r io.Reader, identities ...age.Identity) (*Export, error) {
	decrypted, err := age.Decrypt(r, identities...)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt export: %w", err)
	}
	dec, err := zstd.NewReader(decrypted)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var doc Export
	if err := json.NewDecoder(dec).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
