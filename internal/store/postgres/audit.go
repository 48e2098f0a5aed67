package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/xid"
)

const (
	compressionNone = "none"
	compressionZstd = "zstd"

	defaultAuditCompressThreshold = 4 * 1024
)

// auditCodec compresses audit details above a size threshold.
type auditCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

func newAuditCodec(threshold int) (*auditCodec, error) {
	if threshold <= 0 {
		threshold = defaultAuditCompressThreshold
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &auditCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// encode returns the plain detail or its compressed form plus the algorithm.
func (c *auditCodec) encode(detail string) (*string, []byte, string) {
	if len(detail) <= c.threshold {
		return &detail, nil, compressionNone
	}
	return nil, c.encoder.EncodeAll([]byte(detail), nil), compressionZstd
}

func (c *auditCodec) decode(plain *string, compressed []byte, algo string) (string, error) {
	if algo == compressionZstd && len(compressed) > 0 {
		out, err := c.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return "", fmt.Errorf("decompress audit detail: %w", err)
		}
		return string(out), nil
	}
	if plain == nil {
		return "", nil
	}
	return *plain, nil
}

func (c *auditCodec) close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}

type auditRow struct {
	ID               string    `db:"id"`
	ActorID          string    `db:"actor_id"`
	ActorRole        string    `db:"actor_role"`
	Action           string    `db:"action"`
	EntityType       string    `db:"entity_type"`
	EntityID         string    `db:"entity_id"`
	Detail           *string   `db:"detail"`
	DetailCompressed []byte    `db:"detail_compressed"`
	CompressionAlgo  string    `db:"compression_algo"`
	CreatedAt        time.Time `db:"created_at"`
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	plain, compressed, algo := s.audit.encode(entry.Detail)

	_, err := s.exec(ctx, builder().Insert("audit_logs").Columns(
		"id", "actor_id", "actor_role", "action", "entity_type", "entity_id",
		"detail", "detail_compressed", "compression_algo", "created_at",
	).Values(
		entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID,
		plain, compressed, algo, entry.CreatedAt,
	))
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	query := builder().Select(
		"id", "actor_id", "actor_role", "action", "entity_type", "entity_id",
		"detail", "detail_compressed", "compression_algo", "created_at",
	).From("audit_logs").
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.LtOrEq{"created_at": to}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	var rows []auditRow
	if err := s.list(ctx, &rows, query); err != nil {
		return nil, err
	}

	logs := make([]domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		detail, err := s.audit.decode(row.Detail, row.DetailCompressed, row.CompressionAlgo)
		if err != nil {
			return nil, err
		}
		logs = append(logs, domain.AuditLog{
			ID:         row.ID,
			ActorID:    row.ActorID,
			ActorRole:  row.ActorRole,
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Detail:     detail,
			CreatedAt:  row.CreatedAt,
		})
	}
	return logs, nil
}
