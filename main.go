package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"migrant/autodetect"
	"migrant/editor"
	"migrant/executor"
	"migrant/inspect"
	"migrant/loader"
	"migrant/migration"
	"migrant/output"
	"migrant/registry"
	"migrant/state"
)

func loadTarget(modelsDir string) (*state.ProjectState, error) {
	reg := registry.New()
	if err := loader.Register(reg, modelsDir); err != nil {
		return nil, err
	}
	return registry.ProjectStateFrom(reg), nil
}

func loadHistory(migrationsDir string) ([]*migration.Migration, *state.ProjectState, error) {
	migs, err := migration.Dir{Path: migrationsDir}.Load()
	if err != nil {
		return nil, nil, err
	}
	st, err := migration.Replay(migs)
	if err != nil {
		return nil, nil, err
	}
	return migs, st, nil
}

// findMigration returns the sorted history and the target's position in it.
func findMigration(migs []*migration.Migration, namespace, name string) ([]*migration.Migration, int, error) {
	sorted, err := migration.Sort(migs)
	if err != nil {
		return nil, 0, err
	}
	for i, m := range sorted {
		if m.Namespace == namespace && m.Name == name {
			return sorted, i, nil
		}
	}
	return nil, 0, fmt.Errorf("unknown migration %s/%s", namespace, name)
}

func writeOut(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Output saved to %s\n", path)
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrant",
		Short: "Model-driven schema migration tool",
	}

	var modelsDir string
	var migrationsDir string
	rootCmd.PersistentFlags().StringVar(&modelsDir, "models", "models", "Directory with declarative model files (TOML or YAML)")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations", "migrations", "Directory with migration files")

	var planFormat string
	var planOutFile string
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show operations needed to reach the declared models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := loadTarget(modelsDir)
			if err != nil {
				return err
			}
			_, current, err := loadHistory(migrationsDir)
			if err != nil {
				return err
			}
			plan := autodetect.New(current, target).Changes()
			formatter, err := output.NewFormatter(planFormat)
			if err != nil {
				return err
			}
			formatted, err := formatter.FormatPlan(plan)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return writeOut(planOutFile, formatted)
		},
	}
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "", "Output format: json or human")
	planCmd.Flags().StringVarP(&planOutFile, "output", "o", "", "Output file for the plan")

	var makeLabel string
	makeCmd := &cobra.Command{
		Use:   "makemigrations",
		Short: "Write new migration files for pending model changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := loadTarget(modelsDir)
			if err != nil {
				return err
			}
			_, current, err := loadHistory(migrationsDir)
			if err != nil {
				return err
			}
			plan := autodetect.New(current, target).Changes()
			for _, w := range plan.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if plan.IsEmpty() {
				fmt.Println("No changes detected.")
				return nil
			}
			dir := migration.Dir{Path: migrationsDir}
			migs, err := migration.FromPlan(plan, dir, makeLabel)
			if err != nil {
				return err
			}
			for _, m := range migs {
				path, err := dir.Write(m)
				if err != nil {
					return err
				}
				fmt.Printf("Wrote %s (%d operations)\n", path, len(m.Operations))
			}
			return nil
		},
	}
	makeCmd.Flags().StringVarP(&makeLabel, "label", "l", "auto", "Label suffix for new migration names")

	var sqlDialect string
	var sqlFormat string
	var sqlOutFile string
	sqlCmd := &cobra.Command{
		Use:   "sqlmigrate <namespace> <name>",
		Short: "Render the SQL for one migration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			migs, _, err := loadHistory(migrationsDir)
			if err != nil {
				return err
			}
			sorted, i, err := findMigration(migs, args[0], args[1])
			if err != nil {
				return err
			}
			prior, err := migration.Replay(sorted[:i])
			if err != nil {
				return err
			}
			ed, err := editor.New(editor.Dialect(strings.ToLower(sqlDialect)))
			if err != nil {
				return err
			}
			stmts, err := executor.SQL(ed, sorted[i].Namespace, sorted[i].Operations, prior)
			if err != nil {
				return err
			}
			formatter, err := output.NewFormatter(sqlFormat)
			if err != nil {
				return err
			}
			formatted, err := formatter.FormatSQL(stmts)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return writeOut(sqlOutFile, formatted)
		},
	}
	sqlCmd.Flags().StringVarP(&sqlDialect, "dialect", "d", "postgres", "Target dialect: postgres, mysql or sqlite")
	sqlCmd.Flags().StringVarP(&sqlFormat, "format", "f", "", "Output format: json or human")
	sqlCmd.Flags().StringVarP(&sqlOutFile, "output", "o", "", "Output file for the SQL script")

	var importNamespace string
	importCmd := &cobra.Command{
		Use:   "import <dump.sql>",
		Short: "Create initial migrations from a MySQL schema dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read schema dump: %w", err)
			}
			target, err := inspect.NewParser().Parse(importNamespace, string(data))
			if err != nil {
				return err
			}
			if target.Len() == 0 {
				return fmt.Errorf("no CREATE TABLE statements found in %s", args[0])
			}
			plan := autodetect.New(state.NewProjectState(), target).Changes()
			dir := migration.Dir{Path: migrationsDir}
			migs, err := migration.FromPlan(plan, dir, "initial")
			if err != nil {
				return err
			}
			for _, m := range migs {
				path, err := dir.Write(m)
				if err != nil {
					return err
				}
				fmt.Printf("Wrote %s (%d operations)\n", path, len(m.Operations))
			}
			return nil
		},
	}
	importCmd.Flags().StringVarP(&importNamespace, "namespace", "n", "app", "Namespace for imported models")

	var applyDSN string
	var applySQLite string
	var applyTimeout int
	applyCmd := &cobra.Command{
		Use:   "apply <namespace> <name>",
		Short: "Run one migration against a live database",
		Long: `Renders the migration's SQL for the connected database and executes the
statements in order, stopping at the first failure. Earlier migrations are
replayed in memory only; they must already be applied to the database.

Examples:
  migrant apply shop 0002_add_email --dsn "user:pass@tcp(localhost:3306)/mydb"
  migrant apply shop 0002_add_email --sqlite ./app.db`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (applyDSN == "") == (applySQLite == "") {
				return fmt.Errorf("exactly one of --dsn or --sqlite is required")
			}

			migs, _, err := loadHistory(migrationsDir)
			if err != nil {
				return err
			}
			sorted, i, err := findMigration(migs, args[0], args[1])
			if err != nil {
				return err
			}
			prior, err := migration.Replay(sorted[:i])
			if err != nil {
				return err
			}

			driver, dsn, dialect := "mysql", applyDSN, editor.MySQL
			if applySQLite != "" {
				driver, dsn, dialect = "sqlite", applySQLite, editor.SQLite
			}
			ed, err := editor.New(dialect)
			if err != nil {
				return err
			}

			db, err := sql.Open(driver, dsn)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to close database connection: %v\n", err)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(applyTimeout)*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}

			x := executor.New(executor.DB{Conn: db}, ed)
			if err := x.Apply(ctx, sorted[i].Namespace, sorted[i].Operations, prior); err != nil {
				return err
			}
			fmt.Printf("Applied %s/%s (%d operations)\n", sorted[i].Namespace, sorted[i].Name, len(sorted[i].Operations))
			return nil
		},
	}
	applyCmd.Flags().StringVar(&applyDSN, "dsn", "", "MySQL connection string")
	applyCmd.Flags().StringVar(&applySQLite, "sqlite", "", "Path to a SQLite database file")
	applyCmd.Flags().IntVar(&applyTimeout, "timeout", 300, "Statement timeout in seconds")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(makeCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(applyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
