package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
)

// LoadAll reads all content-type and component definitions from the database
// and populates the registry.
func LoadAll(ctx context.Context, db *sql.DB, reg *Registry) error {
	contentTypes, err := loadDefinitions(ctx, db, "_content_types")
	if err != nil {
		return fmt.Errorf("load content types: %w", err)
	}

	components, err := loadDefinitions(ctx, db, "_components")
	if err != nil {
		return fmt.Errorf("load components: %w", err)
	}

	reg.Load(contentTypes, components)

	log.Printf("Loaded %d content types, %d components into registry",
		len(contentTypes), len(components))
	return nil
}

func loadDefinitions(ctx context.Context, db *sql.DB, table string) ([]*Schema, error) {
	rows, err := db.QueryContext(ctx, "SELECT uid, definition FROM "+table+" ORDER BY uid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []*Schema
	for rows.Next() {
		var uid string
		var defJSON []byte
		if err := rows.Scan(&uid, &defJSON); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}

		var s Schema
		if err := json.Unmarshal(defJSON, &s); err != nil {
			log.Printf("WARN: skipping schema %s (invalid JSON): %v", uid, err)
			continue
		}
		if s.UID == "" {
			s.UID = uid
		}
		schemas = append(schemas, &s)
	}
	return schemas, rows.Err()
}
