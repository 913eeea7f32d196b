package database

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/semmidev/stashd/internal/config"
)

// PostgreSQLDatabase dumps a live database with pg_dump so the archive
// carries a consistent copy next to the plain data files.
type PostgreSQLDatabase struct {
	config *config.DatabaseConfig
	run    func(cmd *exec.Cmd) ([]byte, error)
}

func NewPostgreSQL(cfg *config.DatabaseConfig) *PostgreSQLDatabase {
	return &PostgreSQLDatabase{
		config: cfg,
		run:    func(cmd *exec.Cmd) ([]byte, error) { return cmd.CombinedOutput() },
	}
}

func (p *PostgreSQLDatabase) Backup(ctx context.Context, outputPath string) error {
	cmd := exec.CommandContext(ctx, "pg_dump", p.dumpArgs(outputPath)...)
	cmd.Env = p.env()

	output, err := p.run(cmd)
	if err != nil {
		return fmt.Errorf("pg_dump failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

func (p *PostgreSQLDatabase) GetName() string {
	return p.config.Name
}

func (p *PostgreSQLDatabase) GetType() string {
	return "postgresql"
}

func (p *PostgreSQLDatabase) Ping(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "psql", p.pingArgs()...)
	cmd.Env = p.env()

	if output, err := p.run(cmd); err != nil {
		return fmt.Errorf("postgresql ping failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

func (p *PostgreSQLDatabase) connArgs() []string {
	return []string{
		fmt.Sprintf("--host=%s", p.config.Host),
		fmt.Sprintf("--port=%d", p.config.Port),
		fmt.Sprintf("--username=%s", p.config.Username),
	}
}

// The archive is compressed as a whole, so the dump itself stays
// uncompressed.
func (p *PostgreSQLDatabase) dumpArgs(outputPath string) []string {
	return append(p.connArgs(),
		"--format=custom",
		"--compress=0",
		"--no-password",
		fmt.Sprintf("--file=%s", outputPath),
		p.config.Database,
	)
}

func (p *PostgreSQLDatabase) pingArgs() []string {
	return append(p.connArgs(),
		"--no-password",
		fmt.Sprintf("--dbname=%s", p.config.Database),
		"-c", "SELECT 1",
	)
}

func (p *PostgreSQLDatabase) env() []string {
	env := append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", p.config.Password))
	if p.config.SSLMode != "" {
		env = append(env, fmt.Sprintf("PGSSLMODE=%s", p.config.SSLMode))
	}
	return env
}
