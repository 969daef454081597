package storage

import (
	"context"
	"database/sql"
	"log"
)

// EnsureSchema brings the database to the schema expected by this version of
// the code. It is idempotent: running it any number of times against any
// valid prior state converges to the same target schema. Tables are created
// in referential dependency order: users, then images, then statistics.
//
// It is meant to run once at process startup, before concurrent traffic
// begins; it must not be invoked from request handling paths.
func (db *DB) EnsureSchema(ctx context.Context) error {
	return db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if err := db.ensureUsersTable(ctx, conn); err != nil {
			return err
		}
		if err := db.ensureImagesTable(ctx, conn); err != nil {
			return err
		}
		if err := db.ensureStatisticsTable(ctx, conn); err != nil {
			return err
		}
		return db.ensureAdminUser(ctx, conn)
	})
}

func tableExists(ctx context.Context, conn *sql.Conn, table string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)`, table).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, conn *sql.Conn, table, column string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)`, table, column).Scan(&exists)
	return exists, err
}

func (db *DB) ensureUsersTable(ctx context.Context, conn *sql.Conn) error {
	exists, err := tableExists(ctx, conn, "users")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return err
	}
	log.Printf("INFO: created table users")
	return nil
}

func (db *DB) ensureImagesTable(ctx context.Context, conn *sql.Conn) error {
	exists, err := tableExists(ctx, conn, "images")
	if err != nil {
		return err
	}

	if !exists {
		_, err = conn.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS images (
				id SERIAL PRIMARY KEY,
				filename TEXT NOT NULL,
				original_name TEXT NOT NULL,
				size INTEGER NOT NULL,
				upload_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				file_type TEXT NOT NULL,
				user_email TEXT,
				expiration_date TIMESTAMP,
				FOREIGN KEY (user_email) REFERENCES users(email) ON DELETE CASCADE
			)`)
		if err != nil {
			return err
		}
		log.Printf("INFO: created table images")
		return nil
	}

	// The table predates some columns; add what is missing one column at a
	// time, each in its own transaction.
	hasOwner, err := columnExists(ctx, conn, "images", "user_email")
	if err != nil {
		return err
	}
	if !hasOwner {
		if err = execInTx(ctx, conn,
			`ALTER TABLE images ADD COLUMN user_email TEXT`,
			`ALTER TABLE images
				ADD CONSTRAINT fk_images_user_email
				FOREIGN KEY (user_email) REFERENCES users(email) ON DELETE CASCADE`,
		); err != nil {
			return err
		}
		log.Printf("INFO: added column user_email to table images")
	}

	hasExpiration, err := columnExists(ctx, conn, "images", "expiration_date")
	if err != nil {
		return err
	}
	if !hasExpiration {
		if err = execInTx(ctx, conn, `ALTER TABLE images ADD COLUMN expiration_date TIMESTAMP`); err != nil {
			return err
		}
		log.Printf("INFO: added column expiration_date to table images")
	}
	return nil
}

func (db *DB) ensureStatisticsTable(ctx context.Context, conn *sql.Conn) error {
	exists, err := tableExists(ctx, conn, "statistics")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	// user_email and file_id are deliberately plain columns: statistics is a
	// historical log and must survive user and image deletion.
	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS statistics (
			id SERIAL PRIMARY KEY,
			action_type VARCHAR(50) NOT NULL,
			user_email VARCHAR(255),
			file_id INTEGER,
			ip_address INET,
			user_agent TEXT,
			additional_info TEXT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return err
	}
	log.Printf("INFO: created table statistics")
	return nil
}

// ensureAdminUser creates the administrator account from config, gated by an
// explicit opt-in flag so that a deliberately deleted admin account is not
// silently resurrected on the next restart.
func (db *DB) ensureAdminUser(ctx context.Context, conn *sql.Conn) error {
	if !db.cfg.CreateAdminUser {
		log.Printf("INFO: automatic admin creation disabled (CREATE_ADMIN_USER != true)")
		return nil
	}
	if db.cfg.AdminEmail == "" || db.cfg.AdminPassword == "" {
		log.Printf("WARN: ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin creation")
		return nil
	}

	var email string
	err := conn.QueryRowContext(ctx,
		"SELECT email FROM users WHERE email = $1", db.cfg.AdminEmail).Scan(&email)
	if err == nil {
		log.Printf("INFO: admin user already exists: %v", db.cfg.AdminEmail)
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	_, err = conn.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, created_at) VALUES ($1, $2, CURRENT_TIMESTAMP)",
		db.cfg.AdminEmail, hashPassword(db.cfg.AdminPassword))
	if err != nil {
		return err
	}
	log.Printf("INFO: created admin user: %v", db.cfg.AdminEmail)
	return nil
}

// execInTx runs the statements in one transaction, rolling back on the first
// failure.
func execInTx(ctx context.Context, conn *sql.Conn, statements ...string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
