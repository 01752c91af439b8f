package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/yazdeszhivu/cityagent/graph"
	"github.com/yazdeszhivu/cityagent/llm"
	"github.com/yazdeszhivu/cityagent/log"
)

// Config configures the RAG pipeline. Disabling a stage removes its node and
// edges from the compiled graph entirely.
type Config struct {
	Model     llms.Model
	Retriever Retriever

	UseQueryRewriting  bool
	UseDocumentGrading bool

	// MaxRetries bounds the grade→rewrite loop. Zero disables the loop.
	MaxRetries int

	Logger log.Logger
}

// state is the working memory of one pipeline run.
type state struct {
	Query       string
	History     string
	SearchQuery string
	Broaden     bool

	Documents       []DocumentChunk
	Grades          map[string]bool
	RetryCount      int
	RetrievalFailed bool

	Answer    string
	Citations []string
	NoContext bool
}

// Pipeline is the compiled RAG graph: REWRITE → RETRIEVE → GRADE → GENERATE
// with a bounded GRADE→REWRITE retry edge.
type Pipeline struct {
	cfg Config
	app *graph.Runnable[state]
}

// New builds and compiles the pipeline for the given configuration.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.NoOpLogger{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	p := &Pipeline{cfg: cfg}

	g := graph.NewStateGraph[state]()
	if cfg.UseQueryRewriting {
		g.AddNode("rewrite", "Rewrite the query for retrieval", p.rewriteNode)
	}
	g.AddNode("retrieve", "Similarity search against the document store", p.retrieveNode)
	if cfg.UseDocumentGrading {
		g.AddNode("grade", "Filter retrieved chunks by relevance", p.gradeNode)
	}
	g.AddNode("generate", "Generate the grounded answer", p.generateNode)

	if cfg.UseQueryRewriting {
		g.SetEntryPoint("rewrite")
		g.AddEdge("rewrite", "retrieve")
	} else {
		g.SetEntryPoint("retrieve")
	}

	if cfg.UseDocumentGrading {
		g.AddEdge("retrieve", "grade")
		if cfg.UseQueryRewriting && cfg.MaxRetries > 0 {
			g.AddConditionalEdge("grade", []string{"rewrite", "generate"}, p.afterGrade)
		} else {
			g.AddEdge("grade", "generate")
		}
	} else {
		g.AddEdge("retrieve", "generate")
	}
	g.AddEdge("generate", graph.END)

	app, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile rag graph: %w", err)
	}
	p.app = app
	return p, nil
}

// Answer runs the pipeline for one query. history is optional conversation
// context used only by the rewrite stage.
func (p *Pipeline) Answer(ctx context.Context, query, history string) (Answer, error) {
	final, err := p.app.Invoke(ctx, state{
		Query:       query,
		History:     history,
		SearchQuery: query,
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		Text:      final.Answer,
		Citations: final.Citations,
		NoContext: final.NoContext,
	}, nil
}

// Retrieve runs only the RETRIEVE(+GRADE) stages. The hybrid graph uses it to
// gather background context alongside tool calls. A single retry is applied
// to the similarity search; a persistent failure returns a RetrievalError.
func (p *Pipeline) Retrieve(ctx context.Context, query string) ([]DocumentChunk, error) {
	docs, err := p.retrieveWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	if p.cfg.UseDocumentGrading {
		docs = p.gradeDocuments(ctx, query, docs, nil)
	}
	return docs, nil
}

func (p *Pipeline) retrieveWithRetry(ctx context.Context, query string) ([]DocumentChunk, error) {
	docs, err := p.cfg.Retriever.Retrieve(ctx, query)
	if err == nil {
		return docs, nil
	}
	if ctx.Err() != nil {
		return nil, &RetrievalError{Err: err}
	}
	p.cfg.Logger.Warn("rag: retrieval failed, retrying once: %v", err)
	docs, retryErr := p.cfg.Retriever.Retrieve(ctx, query)
	if retryErr != nil {
		return nil, &RetrievalError{Err: errors.Join(err, retryErr)}
	}
	return docs, nil
}

func (p *Pipeline) rewriteNode(ctx context.Context, s state) (state, error) {
	if s.Broaden {
		s.RetryCount++
	}

	var sb strings.Builder
	if s.History != "" {
		sb.WriteString("Контекст диалога:\n")
		sb.WriteString(s.History)
		sb.WriteString("\n\n")
	}
	if s.Broaden {
		sb.WriteString(broadenInstruction)
	}

	prompt := fmt.Sprintf(rewritePrompt, sb.String(), s.Query)
	rewritten, err := llms.GenerateFromSinglePrompt(ctx, p.cfg.Model, prompt)
	if err != nil {
		// Rewrite must never block the pipeline: fall back to the
		// original query unmodified.
		p.cfg.Logger.Warn("rag: query rewrite failed, using original query: %v", err)
		s.SearchQuery = s.Query
		return s, nil
	}

	rewritten = strings.Trim(strings.TrimSpace(rewritten), "\"")
	if rewritten == "" {
		rewritten = s.Query
	}
	s.SearchQuery = rewritten
	p.cfg.Logger.Debug("rag: rewrote query %q -> %q (retry %d)", s.Query, rewritten, s.RetryCount)
	return s, nil
}

func (p *Pipeline) retrieveNode(ctx context.Context, s state) (state, error) {
	docs, err := p.retrieveWithRetry(ctx, s.SearchQuery)
	if err != nil {
		// Degrade: generate will state the limitation instead of
		// aborting the turn.
		p.cfg.Logger.Error("rag: retrieval unavailable: %v", err)
		s.RetrievalFailed = true
		s.Documents = nil
		return s, nil
	}
	s.Documents = docs
	p.cfg.Logger.Info("rag: retrieved %d chunks for %q", len(docs), s.SearchQuery)
	return s, nil
}

func (p *Pipeline) gradeNode(ctx context.Context, s state) (state, error) {
	if len(s.Documents) == 0 {
		s.Broaden = true
		return s, nil
	}

	s.Grades = make(map[string]bool, len(s.Documents))
	s.Documents = p.gradeDocuments(ctx, s.Query, s.Documents, s.Grades)

	if len(s.Documents) == 0 {
		s.Broaden = true
	}
	return s, nil
}

// gradeDocuments keeps only chunks the model labels relevant. A grading
// failure keeps the chunk: dropping context on an infrastructure error would
// degrade the answer more than a loose filter does.
func (p *Pipeline) gradeDocuments(ctx context.Context, query string, docs []DocumentChunk, grades map[string]bool) []DocumentChunk {
	kept := docs[:0:0]
	for _, doc := range docs {
		prompt := fmt.Sprintf(gradePrompt, query, doc.Text)
		verdict, err := llms.GenerateFromSinglePrompt(ctx, p.cfg.Model, prompt)
		if err != nil {
			p.cfg.Logger.Warn("rag: grading failed for chunk %s, keeping it: %v", doc.ID, err)
			if grades != nil {
				grades[doc.ID] = true
			}
			kept = append(kept, doc)
			continue
		}
		relevant := isAffirmative(verdict)
		if grades != nil {
			grades[doc.ID] = relevant
		}
		if relevant {
			kept = append(kept, doc)
		}
	}
	p.cfg.Logger.Info("rag: grading kept %d of %d chunks", len(kept), len(docs))
	return kept
}

func isAffirmative(verdict string) bool {
	v := strings.ToLower(strings.TrimSpace(verdict))
	return strings.HasPrefix(v, "да") || strings.HasPrefix(v, "yes")
}

func (p *Pipeline) afterGrade(ctx context.Context, s state) string {
	if len(s.Documents) == 0 && s.RetryCount < p.cfg.MaxRetries && !s.RetrievalFailed {
		return "rewrite"
	}
	return "generate"
}

func (p *Pipeline) generateNode(ctx context.Context, s state) (state, error) {
	if len(s.Documents) == 0 {
		s.Answer = NoContextAnswer
		s.NoContext = true
		s.Citations = nil
		return s, nil
	}

	var sb strings.Builder
	seen := make(map[string]bool)
	for i, doc := range s.Documents {
		fmt.Fprintf(&sb, "[%d] %s\nИсточник: %s\n%s\n\n", i+1, doc.Metadata.Title, doc.SourceURL, doc.Text)
		if doc.SourceURL != "" && !seen[doc.SourceURL] {
			seen[doc.SourceURL] = true
			s.Citations = append(s.Citations, doc.SourceURL)
		}
	}

	prompt := fmt.Sprintf(generatePrompt, sb.String(), s.Query)
	answer, err := llm.Generate(ctx, p.cfg.Model, prompt)
	if err != nil {
		return s, err
	}
	s.Answer = answer
	return s, nil
}
