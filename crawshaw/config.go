package crawshaw

import (
	"context"
	"fmt"

	"crawshaw.io/sqlite"
)

const configSchema = `CREATE TABLE IF NOT EXISTS app_config (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);`

// InitSchema creates the tables Db relies on.
func (d *Db) InitSchema(ctx context.Context) error {
	if err := d.ExecScript(ctx, configSchema); err != nil {
		return fmt.Errorf("config: failed to create schema: %w", err)
	}
	return nil
}

// GetConfig retrieves the latest TOML serialized configuration from the database.
// Returns empty string if no config exists (no error).
func (d *Db) GetConfig(ctx context.Context) (string, error) {
	var configToml string
	err := d.Exec(ctx,
		`SELECT content FROM app_config
		ORDER BY id DESC
		LIMIT 1;`,
		func(stmt *sqlite.Stmt) error {
			configToml = stmt.GetText("content")
			return nil
		})

	if err != nil {
		return "", fmt.Errorf("config: failed to get: %w", err)
	}

	return configToml, nil
}

// SaveConfig stores content as the latest configuration. Older versions are kept.
func (d *Db) SaveConfig(ctx context.Context, content string) error {
	err := d.Exec(ctx,
		`INSERT INTO app_config (content) VALUES (?);`,
		nil,
		content)

	if err != nil {
		return fmt.Errorf("config: failed to save: %w", err)
	}
	return nil
}
