package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skillpass/internal/config"
	"skillpass/internal/db"
	"skillpass/internal/domain"
	"skillpass/internal/engine"
	"skillpass/internal/migrate"
	"skillpass/internal/repo"
	"skillpass/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sp",
	Short: "SkillPass CLI",
	Long: `SkillPass runs a reputation economy for verified skills.
Core concepts:
- Reputation tokens: minted by the authority for good work, slashed for bad; the score never goes below zero.
- Skills: registered by their owners, verified once enough endorsement stake accumulates.
- Investments: back a skill's pool and earn a proportional share of its monthly revenue per elapsed period.
- Job revenue: a platform fee is carved off each completed job and split between investors, the owner and the platform.
- Endorsements: stake tokens behind a skill with evidence; challenges put that stake at risk and honest stakers earn rewards.
- Event log: diary of every state change, view with 'sp log tail'.`,
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SKILLPASS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(reputationCmd())
	rootCmd.AddCommand(skillCmd())
	rootCmd.AddCommand(investCmd())
	rootCmd.AddCommand(revenueCmd())
	rootCmd.AddCommand(yieldCmd())
	rootCmd.AddCommand(endorseCmd())
	rootCmd.AddCommand(challengeCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(rewardsCmd())
	rootCmd.AddCommand(portfolioCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize program state and write default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote default config to %s\n", cfgPath)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if authority == "" {
					authority = viper.GetString("actor-id")
				}
				state, err := e.Initialize(ctx, authority)
				if err != nil {
					return err
				}
				return printJSONOrTable(state)
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "authority actor id (defaults to --actor-id)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show platform overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ov, err := e.Overview(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ov)
				}
				fmt.Printf("Authority: %s\n", ov.State.Authority)
				fmt.Printf("Skills: %d  Investments: %d  Total revenue: %d\n",
					ov.State.TotalSkills, ov.State.TotalInvestments, ov.State.TotalRevenue)
				fmt.Printf("Token supply: %d\n", ov.TotalSupply)
				fmt.Printf("Treasury balance: %d (fees collected %d, distributed %d)\n",
					ov.TreasuryBalance, ov.Treasury.TotalFees, ov.Treasury.TotalDistributed)
				return nil
			})
		},
	}
	return cmd
}

func reputationCmd() *cobra.Command {
	rep := &cobra.Command{
		Use:   "reputation",
		Short: "Mint, slash and inspect reputation",
	}
	rep.AddCommand(reputationMintCmd())
	rep.AddCommand(reputationSlashCmd())
	rep.AddCommand(reputationShowCmd())
	return rep
}

func reputationMintCmd() *cobra.Command {
	var user, reason string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint reputation tokens to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.MintReputation(ctx, viper.GetString("actor-id"), user, amount, reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(rep)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "recipient user id")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "token amount")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the mint")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func reputationSlashCmd() *cobra.Command {
	var user, reason string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "slash",
		Short: "Slash reputation tokens from a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.SlashReputation(ctx, viper.GetString("actor-id"), user, amount, reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(rep)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "token amount")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the slash")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func reputationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user>",
		Short: "Show a user's reputation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.Repo.GetReputation(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(rep)
			})
		},
	}
	return cmd
}

func skillCmd() *cobra.Command {
	skill := &cobra.Command{
		Use:   "skill",
		Short: "Manage skills",
		Long:  "Skills are registered by their owners, accumulate endorsement stake and investments, and become verified once enough endorsers back them.",
	}
	skill.AddCommand(skillCreateCmd())
	skill.AddCommand(skillListCmd())
	skill.AddCommand(skillShowCmd())
	skill.AddCommand(skillMetricsCmd())
	return skill
}

func skillCreateCmd() *cobra.Command {
	var opts engine.SkillCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a skill",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Owner = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSkill(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Category, "category", "", "skill category")
	cmd.Flags().StringVar(&opts.Name, "name", "", "skill name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.MetadataURI, "metadata-uri", "", "external metadata URI")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func skillListCmd() *cobra.Command {
	var owner, category, verified string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				filters := repo.SkillFilters{Owner: owner, Category: category, Limit: limit}
				if verified != "" {
					v := verified == "true"
					filters.Verified = &v
				}
				skills, err := e.Repo.ListSkills(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(skills)
				}
				renderSkillTable(skills)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&verified, "verified", "", "verified filter (true/false)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func skillShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <skill-id>",
		Short: "Show skill detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := e.SkillDetail(ctx, skillID)
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
	return cmd
}

func skillMetricsCmd() *cobra.Command {
	var totalStaked, endorsementCount uint64
	cmd := &cobra.Command{
		Use:   "metrics <skill-id>",
		Short: "Reconcile a skill's stake metrics (authority only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateSkillMetrics(ctx, viper.GetString("actor-id"), skillID, totalStaked, endorsementCount)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().Uint64Var(&totalStaked, "total-staked", 0, "total staked amount")
	cmd.Flags().Uint64Var(&endorsementCount, "endorsement-count", 0, "endorsement count")
	return cmd
}

func investCmd() *cobra.Command {
	var amount uint64
	cmd := &cobra.Command{
		Use:   "invest <skill-id>",
		Short: "Invest in a skill's pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inv, err := e.Invest(ctx, viper.GetString("actor-id"), skillID, amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", 0, "token amount")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func revenueCmd() *cobra.Command {
	rev := &cobra.Command{
		Use:   "revenue",
		Short: "Record revenue (authority only)",
	}
	rev.AddCommand(revenueJobCmd())
	rev.AddCommand(revenueFlatCmd("subscription", "Record subscription revenue for a skill"))
	rev.AddCommand(revenueFlatCmd("verification", "Record a verification fee for a skill"))
	return rev
}

func revenueJobCmd() *cobra.Command {
	var revenue uint64
	var title string
	cmd := &cobra.Command{
		Use:   "job <skill-id>",
		Short: "Record a completed job's revenue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				split, err := e.RecordJobCompletion(ctx, viper.GetString("actor-id"), skillID, revenue, title)
				if err != nil {
					return err
				}
				return printJSONOrTable(split)
			})
		},
	}
	cmd.Flags().Uint64Var(&revenue, "revenue", 0, "gross job revenue")
	cmd.Flags().StringVar(&title, "title", "", "job title")
	_ = cmd.MarkFlagRequired("revenue")
	return cmd
}

func revenueFlatCmd(kind, short string) *cobra.Command {
	var amount uint64
	cmd := &cobra.Command{
		Use:   kind + " <skill-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var b domain.RevenueBreakdown
				var err error
				if kind == "subscription" {
					b, err = e.RecordSubscriptionRevenue(ctx, viper.GetString("actor-id"), skillID, amount)
				} else {
					b, err = e.RecordVerificationFee(ctx, viper.GetString("actor-id"), skillID, amount)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", 0, "fee amount")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func yieldCmd() *cobra.Command {
	y := &cobra.Command{Use: "yield", Short: "Investment yield"}
	claim := &cobra.Command{
		Use:   "claim <skill-id>",
		Short: "Claim accrued yield from a skill's pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ClaimYield(ctx, viper.GetString("actor-id"), skillID)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	y.AddCommand(claim)
	return y
}

func endorseCmd() *cobra.Command {
	var stake uint64
	var evidence string
	cmd := &cobra.Command{
		Use:   "endorse <skill-id>",
		Short: "Stake an endorsement behind a skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				end, err := e.Endorse(ctx, viper.GetString("actor-id"), skillID, stake, evidence)
				if err != nil {
					return err
				}
				return printJSONOrTable(end)
			})
		},
	}
	cmd.Flags().Uint64Var(&stake, "stake", 0, "stake amount")
	cmd.Flags().StringVar(&evidence, "evidence", "", "evidence URI or description")
	_ = cmd.MarkFlagRequired("stake")
	_ = cmd.MarkFlagRequired("evidence")
	return cmd
}

func challengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge <skill-id>",
		Short: "Challenge a skill's endorsements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				info, err := e.Challenge(ctx, viper.GetString("actor-id"), skillID)
				if err != nil {
					return err
				}
				return printJSONOrTable(info)
			})
		},
	}
	return cmd
}

func resolveCmd() *cobra.Command {
	var valid, invalid bool
	cmd := &cobra.Command{
		Use:   "resolve <skill-id>",
		Short: "Resolve a challenge (authority only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if valid == invalid {
				return fmt.Errorf("exactly one of --valid or --invalid is required")
			}
			skillID, err := parseSkillID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ResolveChallenge(ctx, viper.GetString("actor-id"), skillID, valid)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().BoolVar(&valid, "valid", false, "skill survives the challenge")
	cmd.Flags().BoolVar(&invalid, "invalid", false, "skill fails the challenge")
	return cmd
}

func rewardsCmd() *cobra.Command {
	r := &cobra.Command{Use: "rewards", Short: "Staking rewards"}
	claim := &cobra.Command{
		Use:   "claim",
		Short: "Claim accrued staking rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ClaimStakingRewards(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	r.AddCommand(claim)
	return r
}

func portfolioCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show a user's balance, reputation and investments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				target := user
				if target == "" {
					target = viper.GetString("actor-id")
				}
				p, err := e.Portfolio(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (defaults to --actor-id)")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Skills ranked by total endorsement stake",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				skills, err := e.Repo.Leaderboard(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(skills)
				}
				renderSkillTable(skills)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max results")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	var skillID uint64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, skillID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().Uint64Var(&skillID, "skill-id", 0, "skill id filter")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect config",
		Long:  "Config is the rulebook: economy minimums, revenue split basis points, challenge rates and verification thresholds. Stored in skillpass.yml.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			_ = cfg
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			// The raw key is shown once and only its hash is stored.
			raw := "sk-" + uuid.NewString()
			key := domain.APIKey{
				ID:        uuid.NewString(),
				ActorID:   actor,
				Name:      name,
				KeyHash:   repo.HashAPIKey(raw),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "key": raw})
				}
				fmt.Printf("API key created for %s (id %s)\n", key.ActorID, key.ID)
				fmt.Printf("Key (store it now, it will not be shown again): %s\n", raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyActor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("SKILLPASS_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyActor,
			}
			if authCfg.JWTSecret == "" && !allowLegacyActor {
				return fmt.Errorf("SKILLPASS_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving SkillPass API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyActor, "allow-legacy-actor-header", false, "accept X-Actor-Id without auth (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func parseSkillID(arg string) (uint64, error) {
	var id uint64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil || id == 0 {
		return 0, fmt.Errorf("invalid skill id %q", arg)
	}
	return id, nil
}

func renderSkillTable(skills []domain.Skill) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Category", "Owner", "Staked", "Endorsers", "Verified"})
	for _, s := range skills {
		tw.AppendRow(table.Row{s.SkillID, s.Name, s.Category, s.Owner, s.TotalStaked, s.EndorsementCount, s.Verified})
	}
	tw.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
