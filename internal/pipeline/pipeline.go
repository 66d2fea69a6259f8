package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/comicscan/internal/analysis"
	"github.com/nao1215/comicscan/internal/config"
	"github.com/nao1215/comicscan/internal/model"
)

// Completer is the analysis transport the pipeline calls. Implemented by
// analysis.Client; tests substitute a scripted fake.
type Completer interface {
	Complete(ctx context.Context, modelID string, maxTokens int, blocks []analysis.ContentBlock) (string, model.Usage, error)
}

// Pipeline runs the extraction state machine over a set of content images.
// Construct one per run; the stage models and thresholds are fixed at
// construction.
type Pipeline struct {
	client  Completer
	session *Session

	title            string
	primaryModel     string
	fallbackModel    string
	verifyModel      string
	summaryModel     string
	consistencyModel string

	maxImages        int
	maxTokens        int
	summaryMaxTokens int
	threshold        float64
	verify           bool

	pricing analysis.Pricing
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTitle supplies the article title. It is passed to extraction as a
// contextual hint and enables the consistency check stage.
func WithTitle(title string) Option {
	return func(p *Pipeline) {
		p.title = title
	}
}

// WithFallbackModel sets the escalation tier. Escalation runs only when
// the fallback differs from the primary model.
func WithFallbackModel(modelID string) Option {
	return func(p *Pipeline) {
		p.fallbackModel = modelID
	}
}

// WithVerification enables the text-only cross-verification stage.
// An empty modelID runs it on the primary model.
func WithVerification(modelID string) Option {
	return func(p *Pipeline) {
		p.verify = true
		if modelID != "" {
			p.verifyModel = modelID
		}
	}
}

// WithSummaryModel overrides the model serving the aggregation stage.
func WithSummaryModel(modelID string) Option {
	return func(p *Pipeline) {
		if modelID != "" {
			p.summaryModel = modelID
		}
	}
}

// WithConsistencyModel overrides the model serving the consistency check.
func WithConsistencyModel(modelID string) Option {
	return func(p *Pipeline) {
		if modelID != "" {
			p.consistencyModel = modelID
		}
	}
}

// WithMaxImages sets the hard cap on analyzed images.
func WithMaxImages(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxImages = n
		}
	}
}

// WithMaxTokens sets the per-image output token budget.
func WithMaxTokens(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithSummaryMaxTokens sets the output token budget of the aggregation
// stage.
func WithSummaryMaxTokens(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.summaryMaxTokens = n
		}
	}
}

// WithThreshold sets the suspicion confidence threshold.
func WithThreshold(threshold float64) Option {
	return func(p *Pipeline) {
		p.threshold = threshold
	}
}

// WithPricing supplies unit prices for the report's cost estimate.
func WithPricing(pricing analysis.Pricing) Option {
	return func(p *Pipeline) {
		p.pricing = pricing
	}
}

// WithPipelineLogger sets a custom logger.
func WithPipelineLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline bound to an analysis transport, a session, and
// the primary extraction model.
func New(client Completer, session *Session, primaryModel string, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:           client,
		session:          session,
		primaryModel:     primaryModel,
		maxImages:        config.DefaultMaxImages,
		maxTokens:        config.DefaultMaxTokens,
		summaryMaxTokens: config.DefaultSummaryMaxTokens,
		threshold:        config.DefaultThreshold,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.verifyModel == "" {
		p.verifyModel = p.primaryModel
	}
	if p.summaryModel == "" {
		p.summaryModel = p.primaryModel
	}
	if p.consistencyModel == "" {
		p.consistencyModel = p.primaryModel
	}

	return p
}

// escalationEnabled reports whether a distinct fallback tier is configured.
// Escalating to the same model would repeat the identical call, so an
// equal fallback disables the stage.
func (p *Pipeline) escalationEnabled() bool {
	return p.fallbackModel != "" && p.fallbackModel != p.primaryModel
}

// stage is one fold step over the run state. run returns an error only for
// cancellation; domain failures degrade inside the state.
type stage struct {
	name string
	run  func(ctx context.Context, st *runState) error
}

// stages assembles the stage list for this pipeline's configuration.
func (p *Pipeline) stages() []stage {
	stages := []stage{
		{name: "truncate", run: p.truncate},
		{name: "extract", run: p.extract},
		{name: "suspect", run: p.suspect},
	}
	if p.verify {
		stages = append(stages, stage{name: "verify", run: p.crossVerify})
	}
	if p.escalationEnabled() {
		stages = append(stages, stage{name: "escalate", run: p.escalate})
	}
	stages = append(stages, stage{name: "aggregate", run: p.aggregate})
	if p.title != "" {
		stages = append(stages, stage{name: "consistency", run: p.checkConsistency})
	}
	return stages
}

// Run folds the stages over the images and returns the finished report.
// Cancellation is checked between stages; within a stage each analysis
// call honors the context itself.
func (p *Pipeline) Run(ctx context.Context, images []model.ContentImage) (*model.RunReport, error) {
	st := &runState{session: p.session, images: images}

	for _, sg := range p.stages() {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled", "stage", sg.name, "reason", ctx.Err())
			return nil, ctx.Err()
		default:
		}

		p.logger.Info("executing stage", "stage", sg.name, "images", len(st.images))
		if err := sg.run(ctx, st); err != nil {
			return nil, fmt.Errorf("stage %s failed: %w", sg.name, err)
		}
		p.logger.Debug("stage completed", "stage", sg.name, "suspicious", len(st.suspicion))
	}

	return p.report(st), nil
}

// report folds the final run state into the report structure.
func (p *Pipeline) report(st *runState) *model.RunReport {
	suspicious := st.suspicionRecords()

	models := model.StageModels{
		Primary: p.primaryModel,
		Summary: p.summaryModel,
	}
	if p.escalationEnabled() {
		models.Fallback = p.fallbackModel
	}
	if p.verify {
		models.Verify = p.verifyModel
	}
	if p.title != "" {
		models.Consistency = p.consistencyModel
	}

	report := &model.RunReport{
		Title:         p.title,
		GeneratedAt:   time.Now(),
		Summary:       st.summary,
		SummaryFailed: st.summaryFailed,
		Facts:         st.facts,
		Consistency:   st.consistency,
		Meta: model.PipelineMeta{
			TotalImages:       len(st.images),
			SuspiciousCount:   len(suspicious),
			EscalatedCount:    st.escalated,
			Truncated:         st.truncated,
			TruncationWarning: st.truncationWarning,
			Suspicious:        suspicious,
			ModelUsage:        p.session.Ledger.Totals(),
			Models:            models,
			BriefPreview:      st.briefPreview,
		},
	}

	if p.pricing.Enabled() {
		report.EstimatedCost = p.session.Ledger.Estimate(p.pricing)
		report.CostEstimated = true
	}

	return report
}
