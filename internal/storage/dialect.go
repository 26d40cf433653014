package storage

import "fmt"

type dialect struct {
	schema []string
	// insertIgnore builds an INSERT that silently skips rows whose conflictColumn exists
	insertIgnore func(table, columnsAndValues, conflictColumn string) string
}

var dialects = map[string]dialect{
	"postgres": {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS party (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				short_name TEXT NOT NULL UNIQUE,
				color TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS state (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				short_code TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS electoral_district (
				id BIGSERIAL PRIMARY KEY,
				code TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				full_name TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS parliament_member (
				id TEXT PRIMARY KEY,
				external_id TEXT NOT NULL DEFAULT '',
				full_name TEXT NOT NULL,
				first_name TEXT,
				last_name TEXT NOT NULL,
				title TEXT,
				profile_url TEXT,
				profile_image_url TEXT,
				detailed_info TEXT,
				party_id BIGINT NOT NULL REFERENCES party(id),
				state_id BIGINT NOT NULL REFERENCES state(id),
				electoral_district_id BIGINT NOT NULL REFERENCES electoral_district(id),
				fetched_at TIMESTAMPTZ NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				birth_date TEXT,
				birth_place TEXT,
				occupation TEXT,
				career_history TEXT,
				education TEXT,
				political_functions TEXT,
				social_media TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS data_import_session (
				session_id TEXT PRIMARY KEY,
				total_records INTEGER NOT NULL DEFAULT 0,
				imported_records INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				started_at TIMESTAMPTZ NOT NULL,
				completed_at TIMESTAMPTZ,
				error TEXT
			)`,
		},
		insertIgnore: func(table, columnsAndValues, conflictColumn string) string {
			return fmt.Sprintf("INSERT INTO %s %s ON CONFLICT (%s) DO NOTHING", table, columnsAndValues, conflictColumn)
		},
	},
	"mysql": {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS party (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				short_name VARCHAR(64) NOT NULL UNIQUE,
				color VARCHAR(16) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS state (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE,
				short_code VARCHAR(8) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS electoral_district (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				code VARCHAR(255) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL,
				full_name VARCHAR(255) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS parliament_member (
				id VARCHAR(64) PRIMARY KEY,
				external_id VARCHAR(64) NOT NULL DEFAULT '',
				full_name VARCHAR(255) NOT NULL,
				first_name VARCHAR(255),
				last_name VARCHAR(255) NOT NULL,
				title VARCHAR(255),
				profile_url TEXT,
				profile_image_url TEXT,
				detailed_info TEXT,
				party_id BIGINT NOT NULL,
				state_id BIGINT NOT NULL,
				electoral_district_id BIGINT NOT NULL,
				fetched_at DATETIME(6) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				birth_date VARCHAR(16),
				birth_place VARCHAR(255),
				occupation TEXT,
				career_history TEXT,
				education TEXT,
				political_functions TEXT,
				social_media TEXT,
				FOREIGN KEY (party_id) REFERENCES party(id),
				FOREIGN KEY (state_id) REFERENCES state(id),
				FOREIGN KEY (electoral_district_id) REFERENCES electoral_district(id)
			) DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS data_import_session (
				session_id VARCHAR(64) PRIMARY KEY,
				total_records INT NOT NULL DEFAULT 0,
				imported_records INT NOT NULL DEFAULT 0,
				status VARCHAR(16) NOT NULL,
				started_at DATETIME(6) NOT NULL,
				completed_at DATETIME(6) NULL,
				error TEXT
			)`,
		},
		insertIgnore: func(table, columnsAndValues, _ string) string {
			return fmt.Sprintf("INSERT IGNORE INTO %s %s", table, columnsAndValues)
		},
	},
}
