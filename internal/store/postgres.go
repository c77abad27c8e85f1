package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/database"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" sql driver
)

// recordRow is the telemetry_records table's GORM projection. JSONB
// columns are carried as json.RawMessage so gorm hands the driver
// pre-encoded bytes rather than re-marshaling through reflection.
type recordRow struct {
	TraceID       string          `gorm:"column:trace_id;primaryKey"`
	IngestedAt    time.Time       `gorm:"column:ingested_at"`
	ModelID       string          `gorm:"column:model_id"`
	Prompt        string          `gorm:"column:prompt"`
	Response      string          `gorm:"column:response"`
	InputTokens   int             `gorm:"column:input_tokens"`
	OutputTokens  int             `gorm:"column:output_tokens"`
	LatencyMS     float64         `gorm:"column:latency_ms"`
	CostUSD       float64         `gorm:"column:cost_usd"`
	ErrorOccurred bool            `gorm:"column:error_occurred"`
	UserID        string          `gorm:"column:user_id"`
	SessionID     string          `gorm:"column:session_id"`
	Tags          json.RawMessage `gorm:"column:tags;type:jsonb"`
}

func (recordRow) TableName() string { return "telemetry_records" }

type incidentRow struct {
	ID        string          `gorm:"column:id;primaryKey"`
	TraceID   string          `gorm:"column:trace_id"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	Severity  string          `gorm:"column:severity"`
	Status    string          `gorm:"column:status"`
	Threats   json.RawMessage `gorm:"column:threats;type:jsonb"`
	Anomalies json.RawMessage `gorm:"column:anomalies;type:jsonb"`
	Quality   json.RawMessage `gorm:"column:quality;type:jsonb"`
	Summary   string          `gorm:"column:summary"`
	Partial   bool            `gorm:"column:partial"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (incidentRow) TableName() string { return "incidents" }

// PostgresStore is the durable production Store, backed by gorm.io/gorm
// over a pgx-driven connection pool. Every write goes through
// database.PoolManager.WithTransactionRetry, so a deadlock or a dropped
// connection is retried transparently instead of failing the record.
type PostgresStore struct {
	pool       *database.PoolManager
	logger     *zap.Logger
	maxRetries int
}

// PostgresConfig configures PostgresStore's underlying connection pool.
type PostgresConfig struct {
	DatabaseURL string
	Pool        database.PoolConfig
	MaxRetries  int
}

func NewPostgresStore(cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open gorm: %w", err)
	}

	poolCfg := cfg.Pool
	if poolCfg == (database.PoolConfig{}) {
		poolCfg = database.DefaultPoolConfig()
	}
	pool, err := database.NewPoolManager(gormDB, poolCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store: pool manager: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger.With(zap.String("component", "store")), maxRetries: cfg.MaxRetries}, nil
}

// Ping is used by config.RequireOnStartup's boot-time leaf-adapter check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	return s.pool.Close()
}

func (s *PostgresStore) PutRecord(ctx context.Context, rec *record.TelemetryRecord) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("store: marshal tags: %w", err)
	}
	row := recordRow{
		TraceID:       rec.TraceID,
		IngestedAt:    rec.IngestedAt,
		ModelID:       rec.ModelID,
		Prompt:        rec.Prompt,
		Response:      rec.Response,
		InputTokens:   rec.InputTokens,
		OutputTokens:  rec.OutputTokens,
		LatencyMS:     rec.LatencyMS,
		CostUSD:       rec.CostUSD,
		ErrorOccurred: rec.ErrorOccurred,
		UserID:        rec.UserID,
		SessionID:     rec.SessionID,
		Tags:          tags,
	}

	err = s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		return tx.Save(&row).Error
	})
	if err != nil {
		return &ErrWriteFailure{Op: "put_record", Err: err}
	}
	return nil
}

func (s *PostgresStore) PutIncident(ctx context.Context, inc *record.Incident) error {
	row, err := incidentRowFrom(inc)
	if err != nil {
		return fmt.Errorf("store: encode incident: %w", err)
	}

	err = s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		return tx.Save(row).Error
	})
	if err != nil {
		return &ErrWriteFailure{Op: "put_incident", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetIncident(ctx context.Context, id string) (*record.Incident, error) {
	var row incidentRow
	err := s.pool.DB().WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get incident: %w", err)
	}
	return incidentFromRow(&row)
}

func (s *PostgresStore) UpdateIncidentStatus(ctx context.Context, id string, status record.IncidentStatus) (*record.Incident, error) {
	var updated *record.Incident
	err := s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		var row incidentRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		inc, err := incidentFromRow(&row)
		if err != nil {
			return err
		}
		if err := inc.Transition(status); err != nil {
			return err
		}

		newRow, err := incidentRowFrom(inc)
		if err != nil {
			return err
		}
		if err := tx.Save(newRow).Error; err != nil {
			return err
		}
		updated = inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) QueryIncidents(ctx context.Context, q Query) ([]*record.Incident, error) {
	tx := s.pool.DB().WithContext(ctx).Model(&incidentRow{})
	if q.Severity != "" {
		tx = tx.Where("severity = ?", string(q.Severity))
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since)
	}
	if !q.Until.IsZero() {
		tx = tx.Where("created_at <= ?", q.Until)
	}

	var rows []incidentRow
	err := tx.Order("created_at DESC").Limit(q.limit()).Offset(q.Offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: query incidents: %w", err)
	}

	out := make([]*record.Incident, 0, len(rows))
	for i := range rows {
		inc, err := incidentFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

func incidentRowFrom(inc *record.Incident) (*incidentRow, error) {
	threats, err := json.Marshal(inc.Threats)
	if err != nil {
		return nil, err
	}
	anomalies, err := json.Marshal(inc.Anomalies)
	if err != nil {
		return nil, err
	}
	var quality json.RawMessage
	if inc.Quality != nil {
		quality, err = json.Marshal(inc.Quality)
		if err != nil {
			return nil, err
		}
	}
	return &incidentRow{
		ID:        inc.ID,
		TraceID:   inc.TraceID,
		CreatedAt: inc.CreatedAt,
		Severity:  string(inc.Severity),
		Status:    string(inc.Status),
		Threats:   threats,
		Anomalies: anomalies,
		Quality:   quality,
		Summary:   inc.Summary,
		Partial:   inc.Partial,
		UpdatedAt: time.Now(),
	}, nil
}

func incidentFromRow(row *incidentRow) (*record.Incident, error) {
	inc := &record.Incident{
		ID:        row.ID,
		TraceID:   row.TraceID,
		CreatedAt: row.CreatedAt,
		Severity:  record.Severity(row.Severity),
		Status:    record.IncidentStatus(row.Status),
		Summary:   row.Summary,
		Partial:   row.Partial,
	}
	if len(row.Threats) > 0 {
		if err := json.Unmarshal(row.Threats, &inc.Threats); err != nil {
			return nil, fmt.Errorf("store: decode threats: %w", err)
		}
	}
	if len(row.Anomalies) > 0 {
		if err := json.Unmarshal(row.Anomalies, &inc.Anomalies); err != nil {
			return nil, fmt.Errorf("store: decode anomalies: %w", err)
		}
	}
	if len(row.Quality) > 0 {
		var q record.QualityScore
		if err := json.Unmarshal(row.Quality, &q); err != nil {
			return nil, fmt.Errorf("store: decode quality: %w", err)
		}
		inc.Quality = &q
	}
	return inc, nil
}
