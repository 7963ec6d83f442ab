package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Taskline CLI",
	Long: `Taskline tracks tasks across an Admin / CFO / Manager / Employee hierarchy.
- Workspace: a directory holding taskline.yml and the .taskline database.
- Actor: the user a command runs as (--actor-id or TASKLINE_ACTOR_ID); its role decides what it may do.
- Visibility: employees see their own tasks, managers the tasks they manage or hold, CFO and Admin everything.
- Lifecycle: NEW -> IN_PROGRESS -> SUBMITTED -> APPROVED, with REWORK loops counted and CANCELLED as an exit.
- Reassignment moves a task to another user; a submitted task goes back to IN_PROGRESS.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "user id the command runs as")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(bootstrapCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage taskline.yml"}
	var org string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(org)), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&org, "org", "default", "organization name")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg, func() {
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				_ = enc.Encode(cfg)
			})
		},
	}
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that taskline.yml exists and is valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := config.Load(workspace); err != nil {
				return err
			}
			fmt.Printf("%s ok\n", config.Path(workspace))
			return nil
		},
	}
	cfgCmd.AddCommand(initCmd, showCmd, validateCmd)
	return cfgCmd
}

func bootstrapCmd() *cobra.Command {
	var id, name, department, password string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first Admin of an empty organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.Bootstrap(ctx, engine.UserDraft{
					ID:         id,
					Name:       name,
					Role:       string(domain.RoleAdmin),
					Department: department,
					Password:   password,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u, func() { renderUsers([]domain.User{u}) })
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "ADMIN001", "admin user id")
	cmd.Flags().StringVar(&name, "name", "Administrator", "admin name")
	cmd.Flags().StringVar(&department, "department", "Administration", "department")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seedCmd() *cobra.Command {
	var file string
	var demo bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import users and tasks from an organization YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == !demo {
				return fmt.Errorf("use exactly one of --file or --demo")
			}
			seed := app.DemoSeed()
			if file != "" {
				var err error
				if seed, err = app.LoadSeed(file); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := app.ImportSeed(ctx, a.Engine, seed)
				if err != nil {
					return err
				}
				return printJSONOrTable(res, func() {
					fmt.Printf("imported %d users, %d tasks\n", res.Users, res.Tasks)
				})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "organization YAML file")
	cmd.Flags().BoolVar(&demo, "demo", false, "import the bundled demonstration organization")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("log-level") && os.Getenv("TASKLINE_LOG_LEVEL") == "" {
				viper.Set("log-level", "info")
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("TASKLINE_JWT_SECRET is required for bearer auth")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				ttl, err := a.Config.TokenTTL()
				if err != nil {
					return err
				}
				authCfg := server.AuthConfig{JWTSecret: secret, Issuer: a.Config.Auth.Issuer, TokenTTL: ttl}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg, Logger: a.Engine.Logger})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Engine.Logger.Info("serving taskline api", "addr", addr, "base_path", basePath, "docs", "/docs")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from taskline.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from taskline.yml)")
	cmd.Flags().String("jwt-secret", "", "HS256 signing secret")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

// --- helpers ---

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), newLogger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withActor runs fn as the user named by --actor-id.
func withActor(ctx context.Context, fn func(context.Context, *app.App, domain.Principal) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		p, err := app.ResolvePrincipal(ctx, a.Engine, viper.GetString("actor-id"))
		if err != nil {
			return err
		}
		return fn(ctx, a, p)
	})
}

// printJSONOrTable writes v as JSON when --json is set and calls render
// otherwise.
func printJSONOrTable(v any, render func()) error {
	if viper.GetBool("json") || render == nil {
		return printJSON(v)
	}
	render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
