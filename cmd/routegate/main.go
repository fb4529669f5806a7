package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/routegate/pkg/audit"
	"github.com/zen-systems/routegate/pkg/backend"
	"github.com/zen-systems/routegate/pkg/cache"
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/engine"
	"github.com/zen-systems/routegate/pkg/schema"
	"github.com/zen-systems/routegate/pkg/server"
)

var policyFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "routegate",
		Short: "Cost-tier router for text generation backends",
		Long: `Routegate routes free-text tasks to a cheap or strong generation tier,
	optionally executes the call, validates the answer against the caller's
	output contract, and escalates once to the strong tier on failure.`,
	}

	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "path to routing policy file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(warmupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildEngine assembles the engine and its collaborators from configuration.
func buildEngine(cfg *config.Config) (*engine.Engine, map[string]backend.Backend) {
	backends := createBackends(cfg)
	responseCache := cache.New(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxItems)
	sink := audit.NewWriter(cfg.AuditLogPath)
	return engine.New(cfg.Policy, backends, responseCache, sink), backends
}

// createBackends builds every usable backend, each wrapped with the policy's
// retry settings.
func createBackends(cfg *config.Config) map[string]backend.Backend {
	backends := make(map[string]backend.Backend)

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	backends["ollama"] = backend.NewOllamaBackend(cfg.OllamaBaseURL, backend.WithOllamaTimeout(timeout))

	if cfg.AnthropicAPIKey != "" {
		if b, err := backend.NewAnthropicBackend(cfg.AnthropicAPIKey); err == nil {
			backends["anthropic"] = b
		}
	}
	if cfg.OpenAIAPIKey != "" {
		if b, err := backend.NewOpenAIBackend(cfg.OpenAIAPIKey); err == nil {
			backends["openai"] = b
		}
	}
	if cfg.GoogleAPIKey != "" {
		if b, err := backend.NewGoogleBackend(cfg.GoogleAPIKey); err == nil {
			backends["google"] = b
		}
	}

	for name, b := range backends {
		backends[name] = backend.NewRetrier(b, cfg.Policy.Retry)
	}
	return backends
}

func serveCmd() *cobra.Command {
	var listenFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP routing service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(policyFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if listenFlag != "" {
				cfg.ListenAddr = listenFlag
			}

			eng, backends := buildEngine(cfg)
			srv := server.New(eng, cfg.Policy, backends)

			log.Printf("routegate listening on %s", cfg.ListenAddr)
			return http.ListenAndServe(cfg.ListenAddr, srv.Handler())
		},
	}

	cmd.Flags().StringVar(&listenFlag, "listen", "", "listen address (default :8080)")
	return cmd
}

func routeCmd() *cobra.Command {
	var (
		hintFlag     string
		riskFlag     string
		modeFlag     string
		decideOnly   bool
		formatFlag   string
		requiredKeys []string
		maxWords     int
	)

	cmd := &cobra.Command{
		Use:   "route [task]",
		Short: "Route a single task and print the response as JSON",
		Long: `Routes one task through the decision cascade and, unless --decide-only
	is set, executes it against the chosen backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(policyFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			eng, _ := buildEngine(cfg)

			req := &schema.RouteRequest{
				Task:          args[0],
				TaskTypeHint:  schema.TaskType(hintFlag),
				Constraints:   schema.Constraints{RiskLevel: schema.RiskLevel(riskFlag)},
				ExecutionMode: schema.ExecutionMode(modeFlag),
				OutputSpec: schema.OutputSpec{
					Format:           schema.OutputFormat(formatFlag),
					RequiredJSONKeys: requiredKeys,
					MaxWords:         maxWords,
				},
			}
			if decideOnly {
				execute := false
				req.Execute = &execute
			}

			resp, err := eng.Execute(context.Background(), req)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&hintFlag, "hint", "", "task type hint")
	cmd.Flags().StringVar(&riskFlag, "risk", "low", "risk level (low, medium, high)")
	cmd.Flags().StringVar(&modeFlag, "mode", "direct", "execution mode (direct, cheap_first_verify)")
	cmd.Flags().BoolVar(&decideOnly, "decide-only", false, "return the routing decision without executing")
	cmd.Flags().StringVar(&formatFlag, "format", "text", "expected output format (text, json)")
	cmd.Flags().StringSliceVar(&requiredKeys, "require-keys", nil, "required top-level JSON keys")
	cmd.Flags().IntVar(&maxWords, "max-words", 0, "maximum answer word count (0 = unbounded)")
	return cmd
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show the current routing policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(policyFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			pol := cfg.Policy

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK TYPE\tDEFAULT TIER\tMODEL\tESCALATION KEYWORDS")
			for _, rule := range pol.TaskTypes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					rule.Type,
					rule.DefaultTier,
					pol.ModelFor(rule.DefaultTier),
					strings.Join(rule.EscalateIfKeywords, ", "))
			}

			fmt.Fprintln(w)
			fmt.Fprintf(w, "DEFAULT TIER\t%s\t%s\t-\n", pol.DefaultTier, pol.ModelFor(pol.DefaultTier))
			fmt.Fprintf(w, "LONG TEXT\t>=%d chars -> %s\t\t\n",
				pol.Heuristics.LongTextCharsThreshold, pol.Heuristics.LongTextTarget())
			return w.Flush()
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available backends and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(policyFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			backends := createBackends(cfg)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tMODELS\tSTATUS")

			var names []string
			for name := range backends {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				status := "ready"
				models, err := backends[name].ListModels(cmd.Context())
				if err != nil {
					status = "unreachable"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(models, ", "), status)
			}
			return w.Flush()
		},
	}
}

func warmupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Prime both tier models with a trivial prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(policyFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			backends := createBackends(cfg)

			for _, tier := range []schema.Tier{schema.TierCheap, schema.TierStrong} {
				target, ok := cfg.Policy.Target(tier)
				if !ok {
					return fmt.Errorf("no model configured for tier %s", tier)
				}
				b, ok := backends[target.Backend]
				if !ok {
					return fmt.Errorf("backend %q not configured", target.Backend)
				}
				res, err := b.Chat(cmd.Context(), target.Name, "Reply with exactly two words: warmup ok.", "warmup")
				if err != nil {
					return fmt.Errorf("warmup failed for %s: %w", target.Name, err)
				}
				fmt.Printf("%s (%s): %s\n", tier, target.Name, strings.TrimSpace(res.Answer))
			}
			return nil
		},
	}
}
