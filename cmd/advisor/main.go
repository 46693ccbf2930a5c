// Package main provides the advisor binary, a one-shot command line front
// end to the research pipeline. It talks to the same search and generation
// backends as the server but keeps no state: no database, no artifacts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/search"
	"bizlaw-advisor-backend/service"

	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "Jurisdiction-aware legal research for small businesses",
		Long: `Advisor researches the federal, state, and local rules that apply to a
business and synthesizes them into one structured analysis.

It queries government sources only, filters results against a trusted
domain list, and asks a generative model to merge what it found. Results
print as JSON on stdout.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(queryCmd())
	cmd.AddCommand(contextCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("advisor version %s\n", version)
		},
	})

	return cmd
}

func queryCmd() *cobra.Command {
	var (
		query        string
		city         string
		state        string
		businessType string
		areaOfLaw    string
		statute      string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one research query end to end",
		Long: `Query searches federal, state, and local government sources for the
given question, scoped by the business context flags, and prints the
synthesized analysis as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bctx := models.BusinessContext{
				City:         city,
				State:        state,
				BusinessType: businessType,
				AreaOfLaw:    areaOfLaw,
			}
			if statute != "" {
				bctx.StatuteOfLaw = &statute
			}
			return runQuery(cmd.Context(), query, bctx)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Research question (required)")
	cmd.Flags().StringVar(&city, "city", "", "Business city")
	cmd.Flags().StringVar(&state, "state", "", "Business state; state and local searches stay unscoped without it")
	cmd.Flags().StringVar(&businessType, "business-type", "", "Kind of business")
	cmd.Flags().StringVar(&areaOfLaw, "area-of-law", "", "Legal area of interest")
	cmd.Flags().StringVar(&statute, "statute", "", "Specific statute of interest")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context [text]",
		Short: "Extract a business context from free-form text",
		Long: `Context asks the model to pull the city, state, business type, area of
law, and statute of interest out of a plain-language description and
prints them as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContext(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func runQuery(ctx context.Context, query string, bctx models.BusinessContext) error {
	researchService, _, cleanup, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := researchService.Run(ctx, service.ResearchRequest{
		Query:   query,
		Context: bctx,
	})
	if err != nil {
		return err
	}

	for _, jurisdiction := range result.DegradedJurisdictions() {
		log.Printf("Warning: %s search degraded; analysis covers the remaining jurisdictions", jurisdiction)
	}

	return printJSON(result.Analysis)
}

func runContext(ctx context.Context, input string) error {
	_, analysisService, cleanup, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	bctx, err := analysisService.DetermineContext(ctx, input)
	if err != nil {
		return err
	}

	return printJSON(bctx)
}

// buildServices wires the stateless slice of the pipeline: search provider,
// generator, and the services over them. The returned cleanup closes the
// Gemini client.
func buildServices(ctx context.Context) (*service.ResearchService, *service.AnalysisService, func(), error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	registry, err := config.LoadRegistry(cfg.SourceRegistryPath)
	if err != nil {
		return nil, nil, nil, err
	}

	geminiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing Gemini client: %w", err)
	}
	cleanup := func() {
		_ = geminiClient.Close()
	}

	generator := service.NewGeminiGenerator(geminiClient, cfg.ModelName)
	provider := search.NewSerperClient(cfg.SerperAPIKey)

	searchService := service.NewSearchService(
		service.SearchWithProvider(provider),
		service.SearchWithRegistry(registry),
		service.SearchWithFederalConcurrency(cfg.FederalConcurrency),
	)
	analysisService := service.NewAnalysisService(
		service.AnalysisWithGenerator(generator),
		service.AnalysisWithTemperature(cfg.Temperature),
	)
	researchService := service.NewResearchService(
		service.ResearchWithSearchService(searchService),
		service.ResearchWithAnalysisService(analysisService),
		service.ResearchWithSoftResponseLimit(cfg.SoftResponseLimit),
	)

	return researchService, analysisService, cleanup, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
