package certificate

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gascert/pkg/platform/sentinel"
)

//go:embed schema.sql
var Schema string

const pqUniqueViolation = "23505"

// PostgresStore persists certificates in PostgreSQL. Row collections live in
// a child table and are swapped inside the same transaction as the parent
// update, so readers never observe a partially replaced set.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, cert *Certificate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create certificate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ambient, err := json.Marshal(cert.Ambient)
	if err != nil {
		return fmt.Errorf("marshal ambient conditions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO certificates (
			id, certificate_no, format_type, status, watermark,
			issue_date, calibration_date, place, procedure, remarks, adjustment,
			equipment_id, probe_id, customer_id, tool_id,
			created_by, creator_name, creator_signature, ambient,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		cert.ID, cert.CertificateNo, cert.FormatType, cert.Status, cert.Watermark,
		cert.IssueDate, cert.CalibrationDate, cert.Place, cert.Procedure, cert.Remarks, cert.Adjustment,
		cert.EquipmentID, cert.ProbeID, cert.CustomerID, cert.ToolID,
		cert.CreatedBy, cert.CreatorName, cert.CreatorSignature, ambient,
		cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate: %w", err)
	}

	if err := insertRows(ctx, tx, cert.ID, "raw", cert.CalibrationRows); err != nil {
		return err
	}
	if err := insertRows(ctx, tx, cert.ID, "adjusted", cert.AdjustedRows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, selectCertificate+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate by id: %w", err)
	}
	if err := s.loadRows(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Certificate, error) {
	query := selectCertificate + ` WHERE 1=1`
	var args []any
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		query += fmt.Sprintf(" AND c.created_by = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND c.status = $%d", len(args))
	}
	query += " ORDER BY c.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []*Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	for _, cert := range out {
		if err := s.loadRows(ctx, cert); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, cert *Certificate, replaceRows, replaceAdjusted bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update certificate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ambient, err := json.Marshal(cert.Ambient)
	if err != nil {
		return fmt.Errorf("marshal ambient conditions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE certificates SET
			certificate_no = $2, format_type = $3, status = $4, watermark = $5,
			issue_date = $6, calibration_date = $7, place = $8, procedure = $9,
			remarks = $10, adjustment = $11, equipment_id = $12, probe_id = $13,
			customer_id = $14, tool_id = $15, ambient = $16, updated_at = $17
		WHERE id = $1`,
		cert.ID, cert.CertificateNo, cert.FormatType, cert.Status, cert.Watermark,
		cert.IssueDate, cert.CalibrationDate, cert.Place, cert.Procedure,
		cert.Remarks, cert.Adjustment, cert.EquipmentID, cert.ProbeID,
		cert.CustomerID, cert.ToolID, ambient, cert.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	if replaceRows {
		if err := replaceKind(ctx, tx, cert.ID, "raw", cert.CalibrationRows); err != nil {
			return err
		}
	}
	if replaceAdjusted {
		if err := replaceKind(ctx, tx, cert.ID, "adjusted", cert.AdjustedRows); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete certificate rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Approve flips pending to approved as a single compare-and-set UPDATE, so of
// two racing approvals only the one that observes pending succeeds.
func (s *PostgresStore) Approve(ctx context.Context, id uuid.UUID, stamp ApprovalStamp) (*Certificate, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE certificates SET
			status = $2, approved_by = $3, approver_name = $4,
			approver_signature = $5, format_type = $6, updated_at = $7
		WHERE id = $1 AND status = $8`,
		id, StatusApproved, stamp.ApprovedBy, stamp.Name,
		stamp.Signature, FormatOfficial, stamp.At, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("approve certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("approve certificate rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish missing from already approved.
		if _, err := s.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, sentinel.ErrInvalidState
	}
	return s.FindByID(ctx, id)
}

func (s *PostgresStore) SetPending(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE certificates SET
			status = $2, approved_by = NULL, approver_name = '',
			approver_signature = '', updated_at = $3
		WHERE id = $1`,
		id, StatusPending, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("set certificate pending: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("set pending rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

const selectCertificate = `
	SELECT c.id, c.certificate_no, c.format_type, c.status, c.watermark,
		c.issue_date, c.calibration_date, c.place, c.procedure, c.remarks,
		c.adjustment, c.equipment_id, c.probe_id, c.customer_id, c.tool_id,
		c.created_by, c.creator_name, c.creator_signature,
		c.approved_by, c.approver_name, c.approver_signature,
		c.ambient, c.created_at, c.updated_at,
		e.name, e.model, e.serial_no,
		p.name, p.serial_no,
		cu.name, cu.address,
		t.name, t.serial_no, t.gas_unit
	FROM certificates c
	JOIN equipment e ON e.id = c.equipment_id
	JOIN probes p ON p.id = c.probe_id
	JOIN customers cu ON cu.id = c.customer_id
	LEFT JOIN tools t ON t.id = c.tool_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*Certificate, error) {
	var (
		cert        Certificate
		ambient     []byte
		toolName    sql.NullString
		toolSerial  sql.NullString
		toolGasUnit sql.NullString
		equipment   Equipment
		probe       Probe
		customer    Customer
	)
	err := row.Scan(
		&cert.ID, &cert.CertificateNo, &cert.FormatType, &cert.Status, &cert.Watermark,
		&cert.IssueDate, &cert.CalibrationDate, &cert.Place, &cert.Procedure, &cert.Remarks,
		&cert.Adjustment, &cert.EquipmentID, &cert.ProbeID, &cert.CustomerID, &cert.ToolID,
		&cert.CreatedBy, &cert.CreatorName, &cert.CreatorSignature,
		&cert.ApprovedBy, &cert.ApproverName, &cert.ApproverSignature,
		&ambient, &cert.CreatedAt, &cert.UpdatedAt,
		&equipment.Name, &equipment.Model, &equipment.SerialNo,
		&probe.Name, &probe.SerialNo,
		&customer.Name, &customer.Address,
		&toolName, &toolSerial, &toolGasUnit,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ambient, &cert.Ambient); err != nil {
		return nil, fmt.Errorf("unmarshal ambient conditions: %w", err)
	}
	equipment.ID = cert.EquipmentID
	probe.ID = cert.ProbeID
	customer.ID = cert.CustomerID
	cert.Equipment = &equipment
	cert.Probe = &probe
	cert.Customer = &customer
	if cert.ToolID != nil {
		cert.Tool = &Tool{
			ID:       *cert.ToolID,
			Name:     toolName.String,
			SerialNo: toolSerial.String,
			GasUnit:  toolGasUnit.String,
		}
	}
	return &cert, nil
}

func (s *PostgresStore) loadRows(ctx context.Context, cert *Certificate) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, gas_name, unit, standard_value, m1, m2, m3,
			resolution, uncertainty_standard, derived
		FROM calibration_rows
		WHERE certificate_id = $1
		ORDER BY kind, position`, cert.ID)
	if err != nil {
		return fmt.Errorf("load calibration rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind    string
			row     CalibrationRow
			derived []byte
		)
		if err := rows.Scan(&kind, &row.GasName, &row.Unit, &row.StandardValue,
			&row.M1, &row.M2, &row.M3, &row.Resolution, &row.UncertaintyStandard, &derived); err != nil {
			return fmt.Errorf("scan calibration row: %w", err)
		}
		if err := json.Unmarshal(derived, &row.Derived); err != nil {
			return fmt.Errorf("unmarshal derived values: %w", err)
		}
		if kind == "adjusted" {
			cert.AdjustedRows = append(cert.AdjustedRows, row)
		} else {
			cert.CalibrationRows = append(cert.CalibrationRows, row)
		}
	}
	return rows.Err()
}

func insertRows(ctx context.Context, tx *sql.Tx, certID uuid.UUID, kind string, rows []CalibrationRow) error {
	for i, row := range rows {
		derived, err := json.Marshal(row.Derived)
		if err != nil {
			return fmt.Errorf("marshal derived values: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO calibration_rows (
				certificate_id, kind, position, gas_name, unit, standard_value,
				m1, m2, m3, resolution, uncertainty_standard, derived
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			certID, kind, i, row.GasName, row.Unit, row.StandardValue,
			row.M1, row.M2, row.M3, row.Resolution, row.UncertaintyStandard, derived,
		)
		if err != nil {
			return fmt.Errorf("insert %s calibration row %d: %w", kind, i, err)
		}
	}
	return nil
}

func replaceKind(ctx context.Context, tx *sql.Tx, certID uuid.UUID, kind string, rows []CalibrationRow) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM calibration_rows WHERE certificate_id = $1 AND kind = $2`, certID, kind); err != nil {
		return fmt.Errorf("delete %s calibration rows: %w", kind, err)
	}
	return insertRows(ctx, tx, certID, kind, rows)
}

// PostgresUserDirectory resolves users from the shared users table.
type PostgresUserDirectory struct {
	db *sql.DB
}

func NewPostgresUserDirectory(db *sql.DB) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: db}
}

func (d *PostgresUserDirectory) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	var user User
	err := d.db.QueryRowContext(ctx,
		`SELECT id, full_name, signature_file, role FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.FullName, &user.SignatureFile, &user.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, sentinel.ErrNotFound
		}
		return User{}, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}
