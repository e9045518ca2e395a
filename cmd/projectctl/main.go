// cmd/projectctl/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"project-sync/internal/database"
	"project-sync/internal/model"
)

var rootCmd = &cobra.Command{
	Use:   "projectctl",
	Short: "Inspect and edit the project registry",
	Long: `projectctl talks to the same Postgres database as the sync service.
It lists projects, shows their fetch status and edits keys and remote links.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("db-url", "", "Postgres URL (env DB_URL)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json or yaml")
	_ = viper.BindPFlag("DB_URL", rootCmd.PersistentFlags().Lookup("db-url"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

func registerCommands() {
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(setKeyCmd())
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(unlinkCmd())
	rootCmd.AddCommand(removeCmd())
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueries(cmd.Context(), func(ctx context.Context, q database.Querier) error {
				rows, err := q.ListProjects(ctx)
				if err != nil {
					return err
				}
				projects := database.ProjectsFromRows(rows, func(id model.ProjectID, err error) {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipping project %s: %v\n", id, err)
				})
				return printProjects(cmd.OutOrStdout(), viper.GetString("output"), projects)
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseProjectID(args[0])
			if err != nil {
				return err
			}
			return withQueries(cmd.Context(), func(ctx context.Context, q database.Querier) error {
				row, err := q.GetProject(ctx, database.UUID(id))
				if err != nil {
					return err
				}
				p, err := database.ProjectFromRow(row)
				if err != nil {
					return err
				}
				return printProjects(cmd.OutOrStdout(), viper.GetString("output"), []*model.Project{p})
			})
		},
	}
}

func addCmd() *cobra.Command {
	var title, path, description, keyPath, passphrase string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" || path == "" {
				return errors.New("--title and --path are required")
			}
			p := &model.Project{
				ID:           model.NewProjectID(),
				Title:        title,
				Path:         path,
				PreferredKey: keyFromFlags(keyPath, passphrase),
			}
			if description != "" {
				p.Description = &description
			}
			return withQueries(cmd.Context(), func(ctx context.Context, q database.Querier) error {
				params, err := database.CreateParamsFromProject(p)
				if err != nil {
					return err
				}
				row, err := q.CreateProject(ctx, params)
				if database.IsUniqueViolation(err) {
					return fmt.Errorf("a project with path %q already exists", path)
				}
				if err != nil {
					return err
				}
				created, err := database.ProjectFromRow(row)
				if err != nil {
					return err
				}
				return printProjects(cmd.OutOrStdout(), viper.GetString("output"), []*model.Project{created})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&path, "path", "", "working directory")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&keyPath, "key-path", "", "private key file; omit for a generated key")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "private key passphrase")
	return cmd
}

func setKeyCmd() *cobra.Command {
	var keyPath, passphrase string
	cmd := &cobra.Command{
		Use:   "set-key <id>",
		Short: "Change the preferred key; no --key-path selects the generated key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseProjectID(args[0])
			if err != nil {
				return err
			}
			return withQueries(cmd.Context(), func(ctx context.Context, q database.Querier) error {
				row, err := q.GetProject(ctx, database.UUID(id))
				if err != nil {
					return err
				}
				p, err := database.ProjectFromRow(row)
				if err != nil {
					return err
				}
				p.PreferredKey = keyFromFlags(keyPath, passphrase)
				params, err := database.DetailsParamsFromProject(p)
				if err != nil {
					return err
				}
				if _, err := q.UpdateProjectDetails(ctx, params); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "key updated:", describeKey(p.Key()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keyPath, "key-path", "", "private key file")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "private key passphrase")
	return cmd
}

func linkCmd() *cobra.Command {
	var gitURL, name string
	var syncOn bool
	cmd := &cobra.Command{
		Use:   "link <id>",
		Short: "Link a project to its remote repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseProjectID(args[0])
			if err != nil {
				return err
			}
			if gitURL == "" {
				return errors.New("--git-url is required")
			}
			api := &model.ApiProject{Name: name, GitURL: gitURL, Sync: syncOn}
			return withQueries(cmd.Context(), func(ctx context.Context, q database.Querier) error {
				if _, err := database.SetAPI(ctx, q, id, api); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "linked %s to %s (sync %t)\n", id, gitURL, syncOn)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&gitURL, "git-url", "", "remote git URL")
	cmd.Flags().StringVar(&name, "name", "", "remote project name")
	cmd.Flags().BoolVar(&syncOn, "sync", true, "enable automatic sync")
	return cmd
}

func unlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <id>",
		Short: "Remove the remote link of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseProjectID(args[0])
			if err != nil {
				return err
			}
			return withQueries(cmd.Context(), func(ctx context.Context, q database.Querier) error {
				if _, err := database.SetAPI(ctx, q, id, nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "unlinked", id)
				return nil
			})
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a project from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseProjectID(args[0])
			if err != nil {
				return err
			}
			return withQueries(cmd.Context(), func(ctx context.Context, q database.Querier) error {
				n, err := q.DeleteProject(ctx, database.UUID(id))
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("project %s not found", id)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed", id)
				return nil
			})
		},
	}
}

func keyFromFlags(keyPath, passphrase string) model.AuthKey {
	if keyPath == "" {
		return model.DefaultAuthKey()
	}
	return model.NewLocalKey(keyPath, passphrase)
}

func withQueries(ctx context.Context, fn func(context.Context, database.Querier) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dbURL := viper.GetString("DB_URL")
	if dbURL == "" {
		return errors.New("database url required: set DB_URL or pass --db-url")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, database.New(pool))
}
