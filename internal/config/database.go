// internal/config/database.go
package config

import "fmt"

// DSN builds the postgres connection string. The session runs in UTC; the
// payout due-date window compares completed_at against wall-clock cutoffs
// and must not drift with the server's local zone.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
