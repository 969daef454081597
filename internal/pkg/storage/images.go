package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const imageColumns = "id, filename, original_name, size, upload_time, file_type, user_email, expiration_date"

// imageSortColumns - allow-list for the sort parameter of list queries.
// Anything else silently falls back to upload_time.
var imageSortColumns = map[string]bool{
	"id":          true,
	"filename":    true,
	"size":        true,
	"upload_time": true,
}

// SaveImage inserts image metadata and returns the assigned identifier. For
// owned uploads the expiration date is computed as upload time plus
// storageDays; anonymous uploads get unbounded retention.
func (db *DB) SaveImage(ctx context.Context, img *Image, storageDays int) (int64, error) {
	if img.UserEmail != "" {
		expiration := img.UploadTime.Add(time.Duration(storageDays) * 24 * time.Hour)
		img.ExpirationDate = &expiration
	}

	var id int64
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
			INSERT INTO images (filename, original_name, size, upload_time, file_type, user_email, expiration_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			img.Filename, img.OriginalName, img.Size, img.UploadTime,
			img.FileType, nullString(img.UserEmail), img.ExpirationDate).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	img.ID = id
	return id, nil
}

// GetImagesList returns one page of images ordered by sortBy descending.
// Ordering is applied before slicing so consecutive pages never overlap for
// a fixed snapshot; inserts above the window during traversal are an
// accepted inconsistency.
func (db *DB) GetImagesList(ctx context.Context, page, perPage int, sortBy string) ([]Image, error) {
	if !imageSortColumns[sortBy] {
		sortBy = "upload_time"
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	var images []Image
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf(
			"SELECT %s FROM images ORDER BY %s DESC LIMIT $1 OFFSET $2", imageColumns, sortBy),
			perPage, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		images, err = scanImages(rows)
		return err
	})
	return images, err
}

// GetTotalImages returns the number of stored images.
func (db *DB) GetTotalImages(ctx context.Context) (int64, error) {
	var total int64
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&total)
	})
	return total, err
}

// GetImageByID fetches one image, nil when absent.
func (db *DB) GetImageByID(ctx context.Context, id int64) (*Image, error) {
	var img *Image
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, fmt.Sprintf(
			"SELECT %s FROM images WHERE id = $1", imageColumns), id)
		scanned, err := scanImage(row)
		if err == sql.ErrNoRows {
			return nil
		}
		img = scanned
		return err
	})
	return img, err
}

// DeleteImage removes one image row.
func (db *DB) DeleteImage(ctx context.Context, id int64) error {
	return db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "DELETE FROM images WHERE id = $1", id)
		return err
	})
}

// GetUserImages returns one page of a user's images, newest first.
func (db *DB) GetUserImages(ctx context.Context, email string, page, perPage int) ([]Image, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	var images []Image
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf(
			"SELECT %s FROM images WHERE user_email = $1 ORDER BY upload_time DESC LIMIT $2 OFFSET $3",
			imageColumns), email, perPage, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		images, err = scanImages(rows)
		return err
	})
	return images, err
}

// GetTotalUserImages returns the number of images owned by email.
func (db *DB) GetTotalUserImages(ctx context.Context, email string) (int64, error) {
	var total int64
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM images WHERE user_email = $1", email).Scan(&total)
	})
	return total, err
}

// GetExpiredImages returns every image whose retention window ended strictly
// before now. Feeds the cleanup sweep.
func (db *DB) GetExpiredImages(ctx context.Context, now time.Time) ([]Image, error) {
	var images []Image
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf(
			"SELECT %s FROM images WHERE expiration_date IS NOT NULL AND expiration_date < $1",
			imageColumns), now)
		if err != nil {
			return err
		}
		defer rows.Close()
		images, err = scanImages(rows)
		return err
	})
	return images, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImage(row rowScanner) (*Image, error) {
	var img Image
	var owner sql.NullString
	var expiration sql.NullTime
	err := row.Scan(&img.ID, &img.Filename, &img.OriginalName, &img.Size,
		&img.UploadTime, &img.FileType, &owner, &expiration)
	if err != nil {
		return nil, err
	}
	img.UserEmail = owner.String
	if expiration.Valid {
		t := expiration.Time
		img.ExpirationDate = &t
	}
	return &img, nil
}

func scanImages(rows *sql.Rows) ([]Image, error) {
	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}
