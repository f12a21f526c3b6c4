// Command apiconform is the CLI front end for the conformance tester,
// restructured from the teacher's single os.Args-sniffing main.go into
// spf13/cobra subcommands in anasdox-workline's style (spec.md §3.8).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apiconform/internal/advisor"
	"apiconform/internal/catalog"
	"apiconform/internal/conformance"
	"apiconform/internal/config"
	"apiconform/internal/fixture"
	"apiconform/internal/httpclient"
	"apiconform/internal/logging"
	"apiconform/internal/model"
	"apiconform/internal/reporter"
	"apiconform/internal/sqlstate"
	"apiconform/internal/state"
)

var rootCmd = &cobra.Command{
	Use:   "apiconform",
	Short: "Property-based HTTP conformance tester",
	Long: `apiconform drives a REST service's own OpenAPI document through a set of
RFC-grounded properties (safety, idempotency, HEAD/GET consistency, Allow
headers) plus any business rules you define, and reports which endpoints
violate which property.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(demoCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("APICONFORM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON instead of tables")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func generateCmd() *cobra.Command {
	var openapi string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Load an OpenAPI document and print its endpoint catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if openapi == "" {
				return fmt.Errorf("--openapi is required")
			}
			cat, err := catalog.Load(openapi, logging.NewNop())
			if err != nil {
				return err
			}
			endpoints := cat.All()
			if viper.GetBool("json") {
				return printJSON(endpoints)
			}
			printEndpointsTable(endpoints)
			fmt.Printf("%d endpoints loaded from %s\n", len(endpoints), openapi)
			return nil
		},
	}
	cmd.Flags().StringVar(&openapi, "openapi", "", "OpenAPI document URL or file path")
	_ = cmd.MarkFlagRequired("openapi")
	return cmd
}

func runCmd() *cobra.Command {
	var openapi, baseURL string
	var perEndpoint int
	var seed int64
	var outputPath string
	var stateDriver, stateDSN string
	var suggestRules bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance suite against a service and write a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if openapi == "" {
				return fmt.Errorf("--openapi is required")
			}
			if baseURL == "" {
				return fmt.Errorf("--base-url is required")
			}

			log, err := logging.New(config.LoggingConfig{Level: "info"})
			if err != nil {
				return err
			}
			defer log.Sync()

			cat, err := catalog.Load(openapi, log)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			client, err := httpclient.New(
				config.ServiceConfig{BaseURL: baseURL, TimeoutSecs: 30},
				httpclient.RetryConfig{Attempts: 2, Delay: 200 * time.Millisecond},
			)
			if err != nil {
				return fmt.Errorf("build client: %w", err)
			}

			var source state.Source
			if stateDriver != "" {
				src, err := sqlstate.Open(sqlstate.Driver(stateDriver), stateDSN)
				if err != nil {
					return fmt.Errorf("open state source: %w", err)
				}
				source = src
			} else {
				source = emptyStateSource{}
			}

			builder := conformance.NewBuilder(cat, client, source, log).WithSeed(seed)
			tester, err := builder.BuildAsync(cmd.Context())
			if err != nil {
				return fmt.Errorf("build tester: %w", err)
			}

			reports := tester.RunAll(cmd.Context(), perEndpoint)
			report := reporter.Build("apiconform conformance report", time.Now(), reports)

			if err := reporter.WriteFile(outputPath, report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			if suggestRules {
				printSuggestions(cmd.Context(), reports)
			}

			if viper.GetBool("json") {
				return printJSON(report)
			}
			fmt.Println(reporter.SummaryTable(report))
			fmt.Println(reporter.ResultsTable(report))
			fmt.Printf("report written to %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&openapi, "openapi", "", "OpenAPI document URL or file path")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL of the service under test")
	cmd.Flags().IntVar(&perEndpoint, "per-endpoint", 3, "max synthesized requests per endpoint")
	cmd.Flags().Int64Var(&seed, "seed", 1, "deterministic synthesis seed")
	cmd.Flags().StringVar(&outputPath, "output", "apiconform-report.json", "report output path")
	cmd.Flags().StringVar(&stateDriver, "state-driver", "", "optional SQL driver for state tracking (postgres, mysql, sqlserver)")
	cmd.Flags().StringVar(&stateDSN, "state-dsn", "", "DSN for --state-driver")
	cmd.Flags().BoolVar(&suggestRules, "suggest-rules", false, "ask the advisor to draft custom property suggestions from the run")
	_ = cmd.MarkFlagRequired("openapi")
	_ = cmd.MarkFlagRequired("base-url")
	return cmd
}

func demoCmd() *cobra.Command {
	var perEndpoint int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the full pipeline against the in-process fixture service",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewNop()

			svc, err := fixture.New()
			if err != nil {
				return fmt.Errorf("start fixture service: %w", err)
			}
			defer svc.Close()

			srv := httptest.NewServer(svc.Handler)
			defer srv.Close()

			cat, err := catalog.Load(srv.URL+"/openapi.json", log)
			if err != nil {
				return fmt.Errorf("load fixture catalog: %w", err)
			}

			client, err := httpclient.New(
				config.ServiceConfig{BaseURL: srv.URL, TimeoutSecs: 10},
				httpclient.RetryConfig{Attempts: 1},
			)
			if err != nil {
				return err
			}

			builder := conformance.NewBuilder(cat, client, svc.Source, log).WithSeed(1)
			tester, err := builder.BuildAsync(cmd.Context())
			if err != nil {
				return err
			}

			reports := tester.RunAll(cmd.Context(), perEndpoint)
			report := reporter.Build("apiconform demo run", time.Now(), reports)

			if viper.GetBool("json") {
				return printJSON(report)
			}
			fmt.Println(reporter.SummaryTable(report))
			fmt.Println(reporter.ResultsTable(report))
			return nil
		},
	}
	cmd.Flags().IntVar(&perEndpoint, "per-endpoint", 3, "max synthesized requests per endpoint")
	return cmd
}

// printSuggestions asks the advisor to draft property suggestions from a
// completed run and prints them; failures here never fail the command
// since suggestions are advisory (spec.md §3.7).
func printSuggestions(ctx context.Context, reports []model.RequestReport) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "advisor: OPENAI_API_KEY not set, skipping --suggest-rules")
		return
	}
	a, err := advisor.New(config.AdvisorConfig{Enabled: true, APIKey: key})
	if err != nil {
		fmt.Fprintln(os.Stderr, "advisor:", err)
		return
	}
	suggestions, err := a.Suggest(ctx, reports)
	if err != nil {
		fmt.Fprintln(os.Stderr, "advisor:", err)
		return
	}
	if len(suggestions) == 0 {
		fmt.Println("advisor: no suggestions")
		return
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"name", "reason", "assertion sketch"})
	for _, s := range suggestions {
		t.AppendRow(table.Row{s.Name, s.Reason, s.AssertionSketch})
	}
	fmt.Println(t.Render())
}

func printEndpointsTable(endpoints []model.Endpoint) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"method", "path", "parameters", "has body"})
	for _, ep := range endpoints {
		t.AppendRow(table.Row{ep.Method, ep.PathPattern, len(ep.Parameters), ep.Body != nil})
	}
	fmt.Println(t.Render())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emptyStateSource is the StateSource used when no --state-driver is
// configured: every kind is empty, so entity-count/checksum assertions in
// the safety/idempotency properties simply see no tracked state.
type emptyStateSource struct{}

func (emptyStateSource) EntityKinds(ctx context.Context) ([]model.EntityKindDescriptor, error) {
	return nil, nil
}
func (emptyStateSource) Count(ctx context.Context, kind string) (int, error) { return 0, nil }
func (emptyStateSource) ListAll(ctx context.Context, kind string) ([]interface{}, error) {
	return nil, nil
}
func (emptyStateSource) RandomKey(ctx context.Context, kind string) (interface{}, bool, error) {
	return nil, false, nil
}
