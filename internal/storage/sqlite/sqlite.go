package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	db *sql.DB
}

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &DB{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			account TEXT NOT NULL,
			room_jid TEXT NOT NULL,
			sender TEXT NOT NULL,
			body TEXT NOT NULL,
			xhtml TEXT,
			timestamp INTEGER NOT NULL,
			type TEXT NOT NULL,
			delayed INTEGER NOT NULL DEFAULT 0,
			carbon INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(account, room_jid)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`,

		`CREATE TABLE IF NOT EXISTS roster_cache (
			account TEXT NOT NULL,
			jid TEXT NOT NULL,
			name TEXT,
			groups_json TEXT,
			subscription TEXT,
			last_updated INTEGER NOT NULL,
			PRIMARY KEY (account, jid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_roster_cache_account ON roster_cache(account)`,
		`CREATE TABLE IF NOT EXISTS roster_version (
			account TEXT PRIMARY KEY,
			version TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_state (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

type Message struct {
	ID        string
	RoomJID   string
	Sender    string
	Body      string
	XHTML     string
	Timestamp time.Time
	Type      string
	Delayed   bool
	Carbon    bool
}

// SaveMessage stores m once; a message with a known id is ignored.
func (d *DB) SaveMessage(account string, m Message) error {
	_, err := d.db.Exec(`
		INSERT OR IGNORE INTO messages (id, account, room_jid, sender, body, xhtml, timestamp, type, delayed, carbon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, account, m.RoomJID, m.Sender, m.Body, m.XHTML, m.Timestamp.Unix(), m.Type, m.Delayed, m.Carbon)
	return err
}

// GetMessages returns the newest messages of a room, oldest first.
func (d *DB) GetMessages(account, roomJID string, limit, offset int) ([]Message, error) {
	rows, err := d.db.Query(`
		SELECT id, room_jid, sender, body, xhtml, timestamp, type, delayed, carbon
		FROM messages
		WHERE account = ? AND room_jid = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, account, roomJID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var ts int64
		var xhtml sql.NullString

		err := rows.Scan(&msg.ID, &msg.RoomJID, &msg.Sender, &msg.Body, &xhtml, &ts, &msg.Type, &msg.Delayed, &msg.Carbon)
		if err != nil {
			return nil, err
		}

		msg.Timestamp = time.Unix(ts, 0)
		if xhtml.Valid {
			msg.XHTML = xhtml.String
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (d *DB) DeleteMessages(account, roomJID string) error {
	_, err := d.db.Exec("DELETE FROM messages WHERE account = ? AND room_jid = ?", account, roomJID)
	return err
}

func (d *DB) DeleteOldMessages(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	result, err := d.db.Exec("DELETE FROM messages WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *DB) GetMessageCount() (int64, error) {
	var count int64
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	return count, err
}

func (d *DB) SetAppState(key, value string) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO app_state (key, value)
		VALUES (?, ?)
	`, key, value)
	return err
}

func (d *DB) GetAppState(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

type RosterEntry struct {
	JID          string
	Name         string
	Groups       []string
	Subscription string
}

// SaveRoster replaces the cached roster and its version.
func (d *DB) SaveRoster(account, version string, entries []RosterEntry) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM roster_cache WHERE account = ?", account); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := upsertContact(tx, account, entry); err != nil {
			return err
		}
	}
	if err := setVersion(tx, account, version); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveContact updates one cached contact and the roster version after a
// push.
func (d *DB) SaveContact(account, version string, entry RosterEntry) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertContact(tx, account, entry); err != nil {
		return err
	}
	if err := setVersion(tx, account, version); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteContact removes one cached contact.
func (d *DB) DeleteContact(account, version, jid string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM roster_cache WHERE account = ? AND jid = ?", account, jid); err != nil {
		return err
	}
	if err := setVersion(tx, account, version); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertContact(tx *sql.Tx, account string, entry RosterEntry) error {
	groupsJSON := "[]"
	if len(entry.Groups) > 0 {
		encoded, err := json.Marshal(entry.Groups)
		if err != nil {
			return err
		}
		groupsJSON = string(encoded)
	}

	_, err := tx.Exec(`
		INSERT OR REPLACE INTO roster_cache (account, jid, name, groups_json, subscription, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, account, entry.JID, entry.Name, groupsJSON, entry.Subscription, time.Now().Unix())
	return err
}

func setVersion(tx *sql.Tx, account, version string) error {
	if version == "" {
		_, err := tx.Exec("DELETE FROM roster_version WHERE account = ?", account)
		return err
	}
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO roster_version (account, version)
		VALUES (?, ?)
	`, account, version)
	return err
}

// GetRoster returns the cached roster and its version.
func (d *DB) GetRoster(account string) (string, []RosterEntry, error) {
	var version string
	err := d.db.QueryRow("SELECT version FROM roster_version WHERE account = ?", account).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return "", nil, err
	}

	rows, err := d.db.Query(`
		SELECT jid, name, groups_json, subscription
		FROM roster_cache
		WHERE account = ?
		ORDER BY COALESCE(name, jid), jid
	`, account)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	var entries []RosterEntry
	for rows.Next() {
		var entry RosterEntry
		var groupsJSON sql.NullString
		var name, subscription sql.NullString

		if err := rows.Scan(&entry.JID, &name, &groupsJSON, &subscription); err != nil {
			return "", nil, err
		}

		if name.Valid {
			entry.Name = name.String
		}
		if subscription.Valid {
			entry.Subscription = subscription.String
		}
		if groupsJSON.Valid && groupsJSON.String != "" {
			_ = json.Unmarshal([]byte(groupsJSON.String), &entry.Groups)
		}

		entries = append(entries, entry)
	}

	return version, entries, rows.Err()
}
