package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Generator is the text-generation oracle backed by /api/generate. Each call
// is bounded by timeout and runs once.
type Generator struct {
	client     *Client
	executor   *resilience.Executor
	timeout    time.Duration
	jsonFormat bool
}

type GeneratorOptions struct {
	Timeout    time.Duration
	JSONFormat bool
	Executor   *resilience.Executor
}

func NewGenerator(client *Client, options GeneratorOptions) *Generator {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		client:     client,
		executor:   options.Executor,
		timeout:    timeout,
		jsonFormat: options.JSONFormat,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}
	if g.jsonFormat {
		reqBody["format"] = "json"
	}

	out, err := resilience.Call(ctx, g.executor, resilience.OracleOperation("ollama"), func(callCtx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := g.client.postJSON(callCtx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return out, nil
}

// Embedder is the embedding function backed by /api/embed. Catalog builds and
// runtime resolution must share the same embed model.
type Embedder struct {
	client    *Client
	executor  *resilience.Executor
	timeout   time.Duration
	batchSize int
}

type EmbedderOptions struct {
	Timeout   time.Duration
	BatchSize int
	Executor  *resilience.Executor
}

func NewEmbedder(client *Client, options EmbedderOptions) *Embedder {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Embedder{
		client:    client,
		executor:  options.Executor,
		timeout:   timeout,
		batchSize: batchSize,
	}
}

func (e *Embedder) ModelName() string {
	return e.client.embedModel
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, errors.New("ollama embed: embeddings/inputs count mismatch")
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	vectors, err := resilience.Call(ctx, e.executor, resilience.EmbedOperation("ollama"), func(callCtx context.Context) ([][]float32, error) {
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := e.client.postJSON(callCtx, "/api/embed", request, &response, "embed"); err != nil {
			return nil, err
		}
		return response.Embeddings, nil
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama embed", err)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}
