package repository

import (
	"database/sql"
	"fmt"

	"github.com/wakala/renewal-analytics/internal/domain"
)

// FileRepo records ingested billing exports for idempotency.
type FileRepo struct {
	db *sql.DB
}

func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

// ExistsByHash checks whether an export with the given hash was already
// ingested.
func (r *FileRepo) ExistsByHash(hash string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM ingested_files WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}

func (r *FileRepo) Insert(f *domain.IngestedFile) error {
	_, err := r.db.Exec(
		`INSERT INTO ingested_files (id, format, file_hash, record_count, ingested_at)
		VALUES (?,?,?,?,?)`,
		f.ID, f.Format, f.FileHash, f.RecordCount, formatTime(f.IngestedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ingested file: %w", err)
	}
	return nil
}

func (r *FileRepo) List() ([]domain.IngestedFile, error) {
	rows, err := r.db.Query(
		"SELECT id, format, file_hash, record_count, ingested_at FROM ingested_files ORDER BY ingested_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []domain.IngestedFile
	for rows.Next() {
		var f domain.IngestedFile
		var ingestedAt string
		if err := rows.Scan(&f.ID, &f.Format, &f.FileHash, &f.RecordCount, &ingestedAt); err != nil {
			return nil, err
		}
		f.IngestedAt = parseTime(ingestedAt)
		files = append(files, f)
	}
	return files, rows.Err()
}
