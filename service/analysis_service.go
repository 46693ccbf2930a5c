package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"
)

// ParseError reports model output that could not be coerced into the
// expected structure. It carries the raw and cleaned text so prompt or
// schema drift can be debugged from logs. A parse failure is terminal for
// the query; there is no retry.
type ParseError struct {
	Raw     string
	Cleaned string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const synthesisPromptTemplate = `You are a legal advisor helping businesses understand applicable laws and regulations.

Business Context:
%s

Available Legal Information:

Federal Laws:
%s

State Laws:
%s

Local Laws:
%s

Based on the provided information, analyze the legal requirements and provide:
1. A comprehensive summary
2. Key points to remember
3. Analysis for each jurisdiction level
4. Specific steps for compliance
5. Identification of any overlapping regulations

Provide the response as JSON without any additional text, using exactly these fields:
{
    "summary": "A comprehensive summary of the applicable laws",
    "key_points": ["Key points to remember about the laws"],
    "jurisdiction_analysis": {"Federal": "...", "State": "...", "Local": "..."},
    "compliance_steps": ["Steps for compliance"],
    "overlapping_regulations": ["Identified overlapping regulations"]
}`

const contextExtractionPrompt = `Analyze the following user input and extract the business context:

User Input: %q

Extracted Information:
- US City
- US State
- Business Type (e.g., Restaurant Owner, Landlord, Property Manager)
- Area of Law (e.g., Employment, Taxation, Environmental)
- Specific Statute of Law (if mentioned e.g., OSHA, EPA, IRS)

Provide the extracted information in JSON format.
Response Format:
{
    "city": "US City Name or None",
    "state": "US State Name or None",
    "business_type": "Type of Business or None",
    "area_of_law": "Area of Law or None",
    "statute_of_law": "Specific Statute or None"
}`

// AnalysisService turns discovered sources plus a business context into a
// structured legal analysis via a generative model
type AnalysisService struct {
	generator   TextGenerator
	temperature float64
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// AnalysisWithGenerator sets the text generator
func AnalysisWithGenerator(generator TextGenerator) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.generator = generator
	}
}

// AnalysisWithTemperature sets the sampling temperature
func AnalysisWithTemperature(temperature float64) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.temperature = temperature
	}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(opts ...AnalysisServiceOption) *AnalysisService {
	s := &AnalysisService{
		temperature: config.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SynthesizeRequest carries one query's inputs to the synthesizer. The
// three source lists must already be in discovery order.
type SynthesizeRequest struct {
	Context models.BusinessContext
	Federal []models.LegalSource
	State   []models.LegalSource
	Local   []models.LegalSource
}

// Synthesize builds the synthesis prompt, invokes the model once, and
// parses its output into a validated LegalAnalysis. The returned analysis
// lists sources as Federal, then State, then Local URLs in discovery order,
// and its ResponseTime spans the model call through output parsing.
func (s *AnalysisService) Synthesize(ctx context.Context, req SynthesizeRequest) (*models.LegalAnalysis, error) {
	if s.generator == nil {
		return nil, errors.New("text generator not set")
	}

	prompt := buildSynthesisPrompt(req)

	start := time.Now()
	raw, err := s.generator.Generate(ctx, prompt, s.temperature)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	analysis, err := parseAnalysisOutput(raw)
	if err != nil {
		return nil, err
	}

	analysis.Sources = collectSourceURLs(req.Federal, req.State, req.Local)
	analysis.ResponseTime = time.Since(start).Seconds()

	return analysis, nil
}

// DetermineContext extracts a business context from free-form user input.
// Fields the model reports as "None" come back empty.
func (s *AnalysisService) DetermineContext(ctx context.Context, userInput string) (*models.BusinessContext, error) {
	if s.generator == nil {
		return nil, errors.New("text generator not set")
	}

	raw, err := s.generator.Generate(ctx, fmt.Sprintf(contextExtractionPrompt, userInput), s.temperature)
	if err != nil {
		return nil, fmt.Errorf("context extraction failed: %w", err)
	}

	cleaned := extractJSONPayload(raw)
	var out struct {
		City         string `json:"city"`
		State        string `json:"state"`
		BusinessType string `json:"business_type"`
		AreaOfLaw    string `json:"area_of_law"`
		StatuteOfLaw string `json:"statute_of_law"`
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, &ParseError{Raw: raw, Cleaned: cleaned, Err: err}
	}

	bctx := &models.BusinessContext{
		City:         noneToEmpty(out.City),
		State:        noneToEmpty(out.State),
		BusinessType: noneToEmpty(out.BusinessType),
		AreaOfLaw:    noneToEmpty(out.AreaOfLaw),
	}
	if statute := noneToEmpty(out.StatuteOfLaw); statute != "" {
		bctx.StatuteOfLaw = &statute
	}

	return bctx, nil
}

// buildSynthesisPrompt renders the business context and the three formatted
// source blocks into the synthesis template.
func buildSynthesisPrompt(req SynthesizeRequest) string {
	var contextBlock strings.Builder
	fmt.Fprintf(&contextBlock, "- Type: %s\n", req.Context.BusinessType)
	fmt.Fprintf(&contextBlock, "- Location: %s\n", req.Context.Location())
	fmt.Fprintf(&contextBlock, "- Area of Law: %s", req.Context.AreaOfLaw)
	if req.Context.StatuteOfLaw != nil && *req.Context.StatuteOfLaw != "" {
		fmt.Fprintf(&contextBlock, "\n- Statute of Interest: %s", *req.Context.StatuteOfLaw)
	}

	return fmt.Sprintf(
		synthesisPromptTemplate,
		contextBlock.String(),
		formatSources(req.Federal),
		formatSources(req.State),
		formatSources(req.Local),
	)
}

// formatSources renders one jurisdiction's records for the prompt, in list
// order.
func formatSources(sources []models.LegalSource) string {
	var b strings.Builder
	for _, source := range sources {
		fmt.Fprintf(&b, "\nSource: %s\n", source.URL)
		fmt.Fprintf(&b, "Title: %s\n", source.Title)
		fmt.Fprintf(&b, "Content Summary: %s\n", source.Content)
	}
	return b.String()
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSONPayload pulls the JSON body out of model output. A fenced
// block wins over any surrounding prose; bare output is just trimmed.
func extractJSONPayload(raw string) string {
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// parseAnalysisOutput cleans and decodes model output, requiring all five
// analysis fields. Jurisdiction keys outside Federal/State/Local are
// dropped with a warning rather than failing the parse.
func parseAnalysisOutput(raw string) (*models.LegalAnalysis, error) {
	cleaned := extractJSONPayload(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, &ParseError{Raw: raw, Cleaned: cleaned, Err: err}
	}
	for _, key := range models.RequiredAnalysisKeys {
		if _, ok := fields[key]; !ok {
			return nil, &ParseError{Raw: raw, Cleaned: cleaned, Err: fmt.Errorf("missing required field %q", key)}
		}
	}

	var out struct {
		Summary                string            `json:"summary"`
		KeyPoints              []string          `json:"key_points"`
		JurisdictionAnalysis   map[string]string `json:"jurisdiction_analysis"`
		ComplianceSteps        []string          `json:"compliance_steps"`
		OverlappingRegulations []string          `json:"overlapping_regulations"`
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, &ParseError{Raw: raw, Cleaned: cleaned, Err: err}
	}

	for key := range out.JurisdictionAnalysis {
		switch models.Jurisdiction(key) {
		case models.JurisdictionFederal, models.JurisdictionState, models.JurisdictionLocal:
		default:
			log.Printf("Warning: dropping unknown jurisdiction %q from analysis", key)
			delete(out.JurisdictionAnalysis, key)
		}
	}

	return &models.LegalAnalysis{
		Summary:                out.Summary,
		KeyPoints:              out.KeyPoints,
		JurisdictionAnalysis:   out.JurisdictionAnalysis,
		ComplianceSteps:        out.ComplianceSteps,
		OverlappingRegulations: out.OverlappingRegulations,
	}, nil
}

// collectSourceURLs concatenates source URLs in the order the lists are
// given, without dedup or reordering.
func collectSourceURLs(lists ...[]models.LegalSource) []string {
	total := 0
	for _, list := range lists {
		total += len(list)
	}
	urls := make([]string, 0, total)
	for _, list := range lists {
		for _, source := range list {
			urls = append(urls, source.URL)
		}
	}
	return urls
}

// noneToEmpty collapses the model's literal "None" placeholder to an empty
// string.
func noneToEmpty(v string) string {
	trimmed := strings.TrimSpace(v)
	if strings.EqualFold(trimmed, "none") {
		return ""
	}
	return trimmed
}
