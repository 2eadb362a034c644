package groups

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/database"
)

// SQLiteRepository stores groups in the scene_groups and group_scenes tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load returns every group with its scenes in position order.
func (r *SQLiteRepository) Load(ctx context.Context) (map[string][]string, error) {
	groups := map[string][]string{}

	rows, err := r.db.QueryContext(ctx, `SELECT name FROM scene_groups`)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups[name] = []string{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating groups: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT group_name, scene_name FROM group_scenes ORDER BY group_name, position`)
	if err != nil {
		return nil, fmt.Errorf("querying group scenes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var group, scene string
		if err := rows.Scan(&group, &scene); err != nil {
			return nil, fmt.Errorf("scanning group scene: %w", err)
		}
		groups[group] = append(groups[group], scene)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group scenes: %w", err)
	}
	return groups, nil
}

// Save replaces all stored groups with the given mapping in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, groups map[string][]string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_scenes`); err != nil {
			return fmt.Errorf("clearing group scenes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scene_groups`); err != nil {
			return fmt.Errorf("clearing groups: %w", err)
		}

		insertGroup, err := tx.PrepareContext(ctx, `INSERT INTO scene_groups (name) VALUES (?)`)
		if err != nil {
			return fmt.Errorf("preparing group insert: %w", err)
		}
		defer insertGroup.Close()

		insertScene, err := tx.PrepareContext(ctx,
			`INSERT INTO group_scenes (group_name, position, scene_name) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing scene insert: %w", err)
		}
		defer insertScene.Close()

		for name, scenes := range groups {
			if _, err := insertGroup.ExecContext(ctx, name); err != nil {
				return fmt.Errorf("inserting group %q: %w", name, err)
			}
			for pos, scene := range scenes {
				if _, err := insertScene.ExecContext(ctx, name, pos, scene); err != nil {
					return fmt.Errorf("inserting scene %q of group %q: %w", scene, name, err)
				}
			}
		}
		return nil
	})
}
