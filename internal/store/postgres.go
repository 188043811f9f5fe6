package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"medtracker-go/internal/models"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE medication_settings ADD COLUMN IF NOT EXISTS low_stock_threshold INTEGER DEFAULT 7;`,
		`ALTER TABLE medication_settings ADD COLUMN IF NOT EXISTS current_stock INTEGER DEFAULT 30;`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Subscription methods

func (s *PostgresStore) UpsertSubscription(ctx context.Context, sub models.PushSubscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_subscriptions (endpoint, p256dh_key, auth_key, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (endpoint) DO UPDATE
		 SET p256dh_key = EXCLUDED.p256dh_key, auth_key = EXCLUDED.auth_key`,
		sub.Endpoint, sub.P256dh, sub.Auth,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, endpoint, p256dh_key, auth_key, created_at FROM notification_subscriptions`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []models.PushSubscription{}
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			continue
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (s *PostgresStore) RemoveSubscriptions(ctx context.Context, endpoints []string) error {
	if len(endpoints) == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_subscriptions WHERE endpoint = ANY($1)`,
		pq.Array(endpoints),
	)
	if err != nil {
		return fmt.Errorf("failed to remove subscriptions: %w", err)
	}
	return nil
}

// Medication settings methods

func (s *PostgresStore) GetMedication(ctx context.Context, medID string) (models.MedicationSetting, error) {
	var med models.MedicationSetting
	err := s.db.QueryRowContext(ctx,
		`SELECT id, medication_id, name, COALESCE(dosage, ''), COALESCE(schedule_time, ''),
		        reminder_enabled, low_stock_threshold, current_stock, created_at, updated_at
		 FROM medication_settings WHERE medication_id = $1`,
		medID,
	).Scan(&med.ID, &med.MedicationID, &med.Name, &med.Dosage, &med.ScheduleTime,
		&med.ReminderEnabled, &med.LowStockThreshold, &med.CurrentStock, &med.CreatedAt, &med.UpdatedAt)

	if err == sql.ErrNoRows {
		return models.MedicationSetting{}, ErrMedicationNotFound
	}
	return med, err
}

func (s *PostgresStore) GetMedications(ctx context.Context, reminderOnly bool) ([]models.MedicationSetting, error) {
	query := `SELECT id, medication_id, name, COALESCE(dosage, ''), COALESCE(schedule_time, ''),
	                 reminder_enabled, low_stock_threshold, current_stock, created_at, updated_at
	          FROM medication_settings`
	if reminderOnly {
		query += ` WHERE reminder_enabled = TRUE`
	}
	query += ` ORDER BY medication_id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMedications(rows)
}

func (s *PostgresStore) UpsertMedication(ctx context.Context, med models.MedicationSetting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO medication_settings
		 (medication_id, name, dosage, schedule_time, reminder_enabled, low_stock_threshold, current_stock, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 ON CONFLICT (medication_id) DO UPDATE
		 SET name = EXCLUDED.name, dosage = EXCLUDED.dosage, schedule_time = EXCLUDED.schedule_time,
		     reminder_enabled = EXCLUDED.reminder_enabled, low_stock_threshold = EXCLUDED.low_stock_threshold,
		     current_stock = EXCLUDED.current_stock, updated_at = NOW()`,
		med.MedicationID, med.Name, med.Dosage, med.ScheduleTime,
		med.ReminderEnabled, med.LowStockThreshold, med.CurrentStock,
	)
	if err != nil {
		return fmt.Errorf("failed to save medication settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLowStock(ctx context.Context, includeEmpty bool) ([]models.MedicationSetting, error) {
	query := `SELECT id, medication_id, name, COALESCE(dosage, ''), COALESCE(schedule_time, ''),
	                 reminder_enabled, low_stock_threshold, current_stock, created_at, updated_at
	          FROM medication_settings
	          WHERE current_stock <= low_stock_threshold`
	if !includeEmpty {
		query += ` AND current_stock > 0`
	}
	query += ` ORDER BY medication_id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMedications(rows)
}

func (s *PostgresStore) DecrementStock(ctx context.Context, medID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE medication_settings
		 SET current_stock = current_stock - 1, updated_at = NOW()
		 WHERE medication_id = $1`,
		medID,
	)
	return err
}

func scanMedications(rows *sql.Rows) ([]models.MedicationSetting, error) {
	var meds []models.MedicationSetting
	for rows.Next() {
		var med models.MedicationSetting
		if err := rows.Scan(&med.ID, &med.MedicationID, &med.Name, &med.Dosage, &med.ScheduleTime,
			&med.ReminderEnabled, &med.LowStockThreshold, &med.CurrentStock, &med.CreatedAt, &med.UpdatedAt); err != nil {
			continue
		}
		meds = append(meds, med)
	}
	return meds, rows.Err()
}

// Dose log methods

func (s *PostgresStore) AddDose(ctx context.Context, medID, ip, agent, notes string) (models.DoseLog, error) {
	var dose models.DoseLog
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO medication_logs (medication_id, ip_address, user_agent, notes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, medication_id, timestamp, COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(notes, '')`,
		medID, ip, agent, notes,
	).Scan(&dose.ID, &dose.MedicationID, &dose.Timestamp, &dose.IPAddress, &dose.UserAgent, &dose.Notes)

	if err != nil {
		return models.DoseLog{}, fmt.Errorf("failed to log dose: %w", err)
	}
	return dose, nil
}

func (s *PostgresStore) CountDosesToday(ctx context.Context, medID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM medication_logs WHERE medication_id = $1 AND timestamp >= $2`,
		medID, startOfDay(time.Now()),
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) GetTodayLogs(ctx context.Context, medID string) ([]models.DoseLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, medication_id, timestamp, COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(notes, '')
		 FROM medication_logs
		 WHERE medication_id = $1 AND timestamp >= $2
		 ORDER BY timestamp DESC`,
		medID, startOfDay(time.Now()),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.DoseLog{}
	for rows.Next() {
		var dose models.DoseLog
		if err := rows.Scan(&dose.ID, &dose.MedicationID, &dose.Timestamp, &dose.IPAddress, &dose.UserAgent, &dose.Notes); err != nil {
			continue
		}
		logs = append(logs, dose)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) GetRecentCounts(ctx context.Context, medID string, days int) ([]models.DayCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_char(timestamp, 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM medication_logs
		 WHERE medication_id = $1 AND timestamp >= $2
		 GROUP BY day
		 ORDER BY day DESC`,
		medID, startOfDay(time.Now()).AddDate(0, 0, -days),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []models.DayCount{}
	for rows.Next() {
		var dc models.DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			continue
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}

func (s *PostgresStore) GetHistory(ctx context.Context, medID string, days int) ([]models.HistoryDay, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_char(timestamp, 'YYYY-MM-DD') AS day, COUNT(*),
		        array_agg(to_char(timestamp, 'HH24:MI') ORDER BY timestamp)
		 FROM medication_logs
		 WHERE medication_id = $1 AND timestamp >= $2
		 GROUP BY day
		 ORDER BY day DESC`,
		medID, startOfDay(time.Now()).AddDate(0, 0, -days),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.HistoryDay{}
	for rows.Next() {
		var day models.HistoryDay
		if err := rows.Scan(&day.Date, &day.DosesTaken, pq.Array(&day.Times)); err != nil {
			continue
		}
		history = append(history, day)
	}
	return history, rows.Err()
}

func (s *PostgresStore) AddReminderEvent(ctx context.Context, medID, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_events (medication_id, kind) VALUES ($1, $2)`,
		medID, kind,
	)
	if err != nil {
		return fmt.Errorf("failed to record reminder event: %w", err)
	}
	return nil
}

// startOfDay returns local midnight for t. The adherence day boundary follows
// the server's local timezone.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
