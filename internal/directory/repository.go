package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/ewaste-funnel/internal/database"
	"github.com/joao-fontenele/ewaste-funnel/internal/domain"
)

const entryColumns = `id, name, city, services, phone, email, website, address, verified, created_at`

type EntryRepository struct {
	db  database.Provider
	now func() time.Time
}

func NewEntryRepository(db database.Provider) *EntryRepository {
	return &EntryRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *EntryRepository) Create(ctx context.Context, entry *domain.DirectoryEntry) error {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return err
	}

	entry.ID = uuid.New().String()
	entry.CreatedAt = r.now()

	_, err = db.ExecContext(ctx, `
		INSERT INTO directory_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.Name, entry.City, pq.Array(entry.Services), entry.Phone,
		entry.Email, entry.Website, entry.Address, entry.Verified, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert directory entry: %w", err)
	}

	return nil
}

// ListVerified returns verified entries ordered by name. City matches
// case-insensitively; service must be one of the entry's services.
func (r *EntryRepository) ListVerified(ctx context.Context, filter domain.DirectoryFilter) ([]domain.DirectoryEntry, error) {
	db, err := r.db.Connect(ctx)
	if err != nil {
		return nil, err
	}

	conds := []string{"verified"}
	var args []any
	if filter.City != "" {
		args = append(args, filter.City)
		conds = append(conds, fmt.Sprintf("lower(city) = lower($%d)", len(args)))
	}
	if filter.Service != "" {
		args = append(args, filter.Service)
		conds = append(conds, fmt.Sprintf("$%d = ANY(services)", len(args)))
	}
	args = append(args, domain.MaxContentListSize)

	query := `SELECT ` + entryColumns + ` FROM directory_entries WHERE ` +
		strings.Join(conds, ` AND `) +
		fmt.Sprintf(` ORDER BY name, id LIMIT $%d`, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list directory entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.DirectoryEntry{}
	for rows.Next() {
		var e domain.DirectoryEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.City, pq.Array(&e.Services), &e.Phone,
			&e.Email, &e.Website, &e.Address, &e.Verified, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
