package storage

import (
	"context"
	"database/sql"
	"log"
)

const statColumns = "id, action_type, user_email, file_id, ip_address, user_agent, additional_info, timestamp"

// LogStat appends one statistics row. If the entry references an owner that
// no longer exists the write is silently downgraded to an anonymous entry
// instead of failing: sessions routinely outlive their backing account and
// the audit log must keep recording.
func (db *DB) LogStat(ctx context.Context, entry *StatEntry) error {
	return db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if entry.UserEmail != "" {
			exists, err := userExists(ctx, conn, entry.UserEmail)
			if err != nil {
				return err
			}
			if !exists {
				entry.UserEmail = ""
			}
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO statistics (action_type, user_email, file_id, ip_address, user_agent, additional_info)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.ActionType, nullString(entry.UserEmail), nullInt64(entry.FileID),
			nullString(entry.IPAddress), nullString(entry.UserAgent), nullString(entry.AdditionalInfo))
		return err
	})
}

// GetStatistics returns one page of the audit log, newest first, restricted
// by filter. An empty filter returns everything.
func (db *DB) GetStatistics(ctx context.Context, filter StatFilter, limit, offset int) ([]StatEntry, error) {
	b := &whereBuilder{}
	filter.apply(b)

	query := "SELECT " + statColumns + " FROM statistics" + b.clause() +
		" ORDER BY timestamp DESC LIMIT " + b.bind(limit) + " OFFSET " + b.bind(offset)

	var entries []StatEntry
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, b.arguments()...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanStatEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, *entry)
		}
		return rows.Err()
	})
	return entries, err
}

// CountStatistics returns the number of audit rows matching filter.
func (db *DB) CountStatistics(ctx context.Context, filter StatFilter) (int64, error) {
	b := &whereBuilder{}
	filter.apply(b)

	var count int64
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM statistics"+b.clause(), b.arguments()...).Scan(&count)
	})
	return count, err
}

// GetActionTypes returns the distinct action types present in the log.
func (db *DB) GetActionTypes(ctx context.Context) ([]string, error) {
	return db.queryStrings(ctx,
		"SELECT DISTINCT action_type FROM statistics ORDER BY action_type")
}

// GetUsers returns the distinct non-anonymous users present in the log.
func (db *DB) GetUsers(ctx context.Context) ([]string, error) {
	return db.queryStrings(ctx,
		"SELECT DISTINCT user_email FROM statistics WHERE user_email IS NOT NULL ORDER BY user_email")
}

// GetStatisticsSummary aggregates the log per action type, most frequent
// first.
func (db *DB) GetStatisticsSummary(ctx context.Context) ([]ActionCount, error) {
	var summary []ActionCount
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			"SELECT action_type, COUNT(*) FROM statistics GROUP BY action_type ORDER BY COUNT(*) DESC")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ac ActionCount
			if err = rows.Scan(&ac.ActionType, &ac.Count); err != nil {
				return err
			}
			summary = append(summary, ac)
		}
		return rows.Err()
	})
	return summary, err
}

// GetTotalDownloads counts recorded download actions.
func (db *DB) GetTotalDownloads(ctx context.Context) (int64, error) {
	var total int64
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM statistics WHERE action_type = 'download'").Scan(&total)
	})
	return total, err
}

// MustLogStat is the fire-and-forget form used by instrumented actions: the
// write outcome is reduced to a flag and the error is only logged.
func (db *DB) MustLogStat(ctx context.Context, entry *StatEntry) bool {
	if err := db.LogStat(ctx, entry); err != nil {
		log.Printf("ERROR: failed to log statistics - %v", err)
		return false
	}
	return true
}

func (db *DB) queryStrings(ctx context.Context, query string) ([]string, error) {
	var values []string
	err := db.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v string
			if err = rows.Scan(&v); err != nil {
				return err
			}
			values = append(values, v)
		}
		return rows.Err()
	})
	return values, err
}

func scanStatEntry(rows *sql.Rows) (*StatEntry, error) {
	var entry StatEntry
	var email, ip, agent, info sql.NullString
	var fileID sql.NullInt64
	err := rows.Scan(&entry.ID, &entry.ActionType, &email, &fileID, &ip, &agent, &info, &entry.Timestamp)
	if err != nil {
		return nil, err
	}
	entry.UserEmail = email.String
	entry.FileID = fileID.Int64
	entry.IPAddress = ip.String
	entry.UserAgent = agent.String
	entry.AdditionalInfo = info.String
	return &entry, nil
}
