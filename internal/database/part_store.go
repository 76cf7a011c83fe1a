package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/partscout/partscout/internal/models"
)

// ErrPartNotFound is returned when a part id does not exist
var ErrPartNotFound = errors.New("part not found")

// PartStore handles local part database operations
type PartStore struct {
	db *DB
}

// NewPartStore creates a new part store
func NewPartStore(db *DB) *PartStore {
	return &PartStore{db: db}
}

// Create inserts a new part with its order details
func (s *PartStore) Create(ctx context.Context, part *models.Part) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO parts (name, description, mpn, manufacturer)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, part.Name, part.Description, part.MPN, part.Manufacturer).
		Scan(&part.ID, &part.CreatedAt, &part.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert part: %w", err)
	}

	for _, od := range part.OrderDetails {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO part_order_details (part_id, supplier_id, order_number)
			VALUES ($1, $2, $3)
			ON CONFLICT (part_id, supplier_id, order_number) DO NOTHING
		`, part.ID, od.SupplierID, od.OrderNumber); err != nil {
			return fmt.Errorf("failed to insert order detail: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID loads one part with its order details
func (s *PartStore) GetByID(ctx context.Context, id string) (*models.Part, error) {
	parts, err := s.GetByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrPartNotFound
	}
	return parts[0], nil
}

// GetByIDs loads many parts at once. Unknown ids are silently absent from
// the result; the caller decides whether that is an error.
func (s *PartStore) GetByIDs(ctx context.Context, ids []string) ([]*models.Part, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, mpn, manufacturer, created_at, updated_at
		FROM parts
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Part, len(ids))
	for rows.Next() {
		part := &models.Part{}
		var description, mpn, manufacturer sql.NullString
		if err := rows.Scan(&part.ID, &part.Name, &description, &mpn, &manufacturer,
			&part.CreatedAt, &part.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		part.Description = description.String
		part.MPN = mpn.String
		part.Manufacturer = manufacturer.String
		byID[part.ID] = part
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachOrderDetails(ctx, byID); err != nil {
		return nil, err
	}

	// Preserve the requested order
	out := make([]*models.Part, 0, len(byID))
	for _, id := range ids {
		if part, ok := byID[id]; ok {
			out = append(out, part)
		}
	}
	return out, nil
}

// FindByMPN returns the ids of parts with the given manufacturer part number
func (s *PartStore) FindByMPN(ctx context.Context, mpn string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM parts WHERE mpn = $1 ORDER BY created_at ASC
	`, mpn)
	if err != nil {
		return nil, fmt.Errorf("failed to search parts by mpn: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PartStore) attachOrderDetails(ctx context.Context, byID map[string]*models.Part) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT part_id, supplier_id, order_number
		FROM part_order_details
		WHERE part_id = ANY($1)
		ORDER BY supplier_id, order_number
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var partID string
		var od models.OrderDetail
		if err := rows.Scan(&partID, &od.SupplierID, &od.OrderNumber); err != nil {
			return fmt.Errorf("failed to scan order detail: %w", err)
		}
		if part, ok := byID[partID]; ok {
			part.OrderDetails = append(part.OrderDetails, od)
		}
	}
	return rows.Err()
}
