package service

import (
	"context"
	"log"
	"time"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/types"
)

// Stage names the pipeline's current step, mostly for logs and error
// context.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageFetchingYourApp    Stage = "fetching_your_app"
	StageFetchingCompetitor Stage = "fetching_competitor"
	StageReconciling        Stage = "reconciling"
	StageSynthesizing       Stage = "synthesizing"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// Pipeline sequences summarize → reconcile → synthesize for exactly
// two apps under one wall-clock budget.
type Pipeline struct {
	summarizer *AppSummarizer
	synthesis  *SynthesisService
	timeout    time.Duration
}

// NewPipeline wires the orchestrator.
func NewPipeline(summarizer *AppSummarizer, synthesis *SynthesisService, timeout time.Duration) *Pipeline {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Pipeline{
		summarizer: summarizer,
		synthesis:  synthesis,
		timeout:    timeout,
	}
}

type pipelineOutcome struct {
	analysis *types.CompetitiveAnalysis
	stage    Stage
	err      error
}

// Analyze runs the full comparison. The deadline preempts all in-flight
// work: on expiry the result is a pipeline-timeout failure regardless
// of which stage was active, never a late upstream result.
func (p *Pipeline) Analyze(ctx context.Context, req types.AnalyzeRequest) (*types.CompetitiveAnalysis, error) {
	source := req.Source
	if source == "" {
		source = types.SourceGooglePlay
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	outcome := make(chan pipelineOutcome, 1)
	go func() {
		analysis, stage, err := p.run(ctx, req.YourAppID, req.CompetitorID, source)
		outcome <- pipelineOutcome{analysis: analysis, stage: stage, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindPipelineTimeout, "competitive analysis timed out", ctx.Err())
	case result := <-outcome:
		if result.err != nil {
			log.Printf("pipeline failed at stage %s: %v", result.stage, result.err)
			return nil, result.err
		}
		return result.analysis, nil
	}
}

// run walks the stage machine; any stage error aborts with no partial
// result.
func (p *Pipeline) run(ctx context.Context, yourAppID, competitorID string, source types.Source) (*types.CompetitiveAnalysis, Stage, error) {
	stage := StageFetchingYourApp
	yourApp, err := p.summarizer.Summarize(ctx, yourAppID, source)
	if err != nil {
		return nil, stage, err
	}

	stage = StageFetchingCompetitor
	competitor, err := p.summarizer.Summarize(ctx, competitorID, source)
	if err != nil {
		return nil, stage, err
	}

	stage = StageReconciling
	recon := Reconcile(yourApp, competitor)

	stage = StageSynthesizing
	synthesized, err := p.synthesis.Synthesize(ctx, yourApp, competitor, recon)
	if err != nil {
		return nil, stage, err
	}

	comparisons := recon.Comparisons
	if comparisons == nil {
		comparisons = []types.ThemeComparison{}
	}

	return &types.CompetitiveAnalysis{
		YourApp:          yourApp,
		Competitor:       competitor,
		Insights:         synthesized.Insights,
		Recommendations:  synthesized.Recommendations,
		MarketPosition:   synthesized.MarketPosition,
		ThemeComparisons: comparisons,
		Summary:          recon.Summary,
		LastUpdated:      time.Now().UTC().Format(time.RFC3339),
	}, StageDone, nil
}
