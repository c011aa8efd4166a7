package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relaydesk/relay/internal/biz/domain"
)

// sqliteDirectory serves the business directory from the shared store
type sqliteDirectory struct {
	store *Store
}

// NewSQLiteDirectory creates a directory backed by SQLite tables
func NewSQLiteDirectory(store *Store) DirectoryStore {
	return &sqliteDirectory{store: store}
}

// LoadDirectorySeed reads a directory snapshot from a YAML file
func LoadDirectorySeed(path string) (*domain.Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory seed: %w", err)
	}
	var dir domain.Directory
	if err := yaml.Unmarshal(raw, &dir); err != nil {
		return nil, fmt.Errorf("failed to parse directory seed: %w", err)
	}
	for i := range dir.Projects {
		if dir.Projects[i].Key == "" {
			dir.Projects[i].Key = dir.Projects[i].ProjectID
		}
	}
	return &dir, nil
}

// Projects lists all projects
func (d *sqliteDirectory) Projects(ctx context.Context) ([]domain.Project, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT project_key, project_id, customer_name, customer_primary, customer_id, address,
			project_type, start_date, status, specs, contact_preference, special_notes
		FROM projects ORDER BY project_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var (
			p     domain.Project
			specs string
		)
		if err := rows.Scan(&p.Key, &p.ProjectID, &p.CustomerName, &p.CustomerPrimary, &p.CustomerID,
			&p.Address, &p.ProjectType, &p.StartDate, &p.Status, &specs, &p.ContactPreference,
			&p.SpecialNotes); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if specs != "" && specs != "{}" {
			if err := json.Unmarshal([]byte(specs), &p.Specs); err != nil {
				return nil, fmt.Errorf("failed to decode specs of %s: %w", p.Key, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Customers lists all customers
func (d *sqliteDirectory) Customers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT customer_id, name, partner, phone, email, primary_contact, language, availability
		FROM customers ORDER BY customer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.CustomerID, &c.Name, &c.Partner, &c.Phone, &c.Email,
			&c.PrimaryContact, &c.Language, &c.Availability); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Schedule lists all schedule entries
func (d *sqliteDirectory) Schedule(ctx context.Context) ([]domain.ScheduleEntry, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT date, worker, project, task, time, duration, status
		FROM schedule_entries ORDER BY date, time, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduleEntry
	for rows.Next() {
		var s domain.ScheduleEntry
		if err := rows.Scan(&s.Date, &s.Worker, &s.Project, &s.Task, &s.Time, &s.Duration, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Issues lists all past issues
func (d *sqliteDirectory) Issues(ctx context.Context) ([]domain.PastIssue, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT issue_type, description, solution, project, cost, success
		FROM past_issues ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query past issues: %w", err)
	}
	defer rows.Close()

	var out []domain.PastIssue
	for rows.Next() {
		var (
			i       domain.PastIssue
			success int
		)
		if err := rows.Scan(&i.IssueType, &i.Description, &i.Solution, &i.Project, &i.Cost, &success); err != nil {
			return nil, fmt.Errorf("failed to scan past issue: %w", err)
		}
		i.Success = success == 1
		out = append(out, i)
	}
	return out, rows.Err()
}

// Workers lists all workers
func (d *sqliteDirectory) Workers(ctx context.Context) ([]domain.Worker, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT name, role, specialty, language, availability FROM workers ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var out []domain.Worker
	for rows.Next() {
		var w domain.Worker
		if err := rows.Scan(&w.Name, &w.Role, &w.Specialty, &w.Language, &w.Availability); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Replace swaps the whole directory in one transaction
func (d *sqliteDirectory) Replace(ctx context.Context, dir *domain.Directory) error {
	return d.store.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"projects", "customers", "schedule_entries", "past_issues", "workers"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, p := range dir.Projects {
			specs := "{}"
			if len(p.Specs) > 0 {
				raw, err := json.Marshal(p.Specs)
				if err != nil {
					return fmt.Errorf("failed to encode specs of %s: %w", p.Key, err)
				}
				specs = string(raw)
			}
			key := p.Key
			if key == "" {
				key = p.ProjectID
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO projects (project_key, project_id, customer_name, customer_primary, customer_id,
					address, project_type, start_date, status, specs, contact_preference, special_notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, key, p.ProjectID, p.CustomerName, p.CustomerPrimary, p.CustomerID, p.Address,
				p.ProjectType, p.StartDate, p.Status, specs, p.ContactPreference, p.SpecialNotes); err != nil {
				return fmt.Errorf("failed to insert project %s: %w", key, err)
			}
		}
		for _, c := range dir.Customers {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO customers (customer_id, name, partner, phone, email, primary_contact, language, availability)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, c.CustomerID, c.Name, c.Partner, c.Phone, c.Email, c.PrimaryContact, c.Language, c.Availability); err != nil {
				return fmt.Errorf("failed to insert customer %s: %w", c.CustomerID, err)
			}
		}
		for _, s := range dir.Schedule {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO schedule_entries (date, worker, project, task, time, duration, status)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, s.Date, s.Worker, s.Project, s.Task, s.Time, s.Duration, s.Status); err != nil {
				return fmt.Errorf("failed to insert schedule entry: %w", err)
			}
		}
		for _, i := range dir.Issues {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO past_issues (issue_type, description, solution, project, cost, success)
				VALUES (?, ?, ?, ?, ?, ?)
			`, i.IssueType, i.Description, i.Solution, i.Project, i.Cost, boolInt(i.Success)); err != nil {
				return fmt.Errorf("failed to insert past issue: %w", err)
			}
		}
		for _, w := range dir.Workers {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO workers (name, role, specialty, language, availability)
				VALUES (?, ?, ?, ?, ?)
			`, w.Name, w.Role, w.Specialty, w.Language, w.Availability); err != nil {
				return fmt.Errorf("failed to insert worker %s: %w", w.Name, err)
			}
		}
		return nil
	})
}
