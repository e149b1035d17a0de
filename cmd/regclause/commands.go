package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/regclause/internal/cli"
	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/internal/server"
	"github.com/hyperjump/regclause/internal/storage"
	"github.com/hyperjump/regclause/pkg/utils"
	"go.uber.org/zap"
)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: regclause search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Methods:
  lexical   token counts plus phrase and reference bonuses (default)
  semantic  embedding similarity; empty until embeddings are built
  hybrid    alpha*semantic + (1-alpha)*lexical over normalized scores

Examples:
  regclause search personal data
  regclause search --method semantic "cross-border transfer"
  regclause search --method hybrid --alpha 0.3 --top-k 5 access control
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
	}
	return defaultPath
}

// searchDefaultsFromConfig returns the configured default top_k and alpha, or the
// built-in defaults when the config cannot be loaded.
func searchDefaultsFromConfig(path string) (topK int, alpha float64) {
	var defaults config.Config
	config.ApplyDefaults(&defaults)
	topK, alpha = defaults.Search.DefaultTopK, defaults.Search.DefaultAlpha
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return topK, alpha
	}
	return cfg.Search.DefaultTopK, cfg.Search.DefaultAlpha
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	defaultTopK, defaultAlpha := searchDefaultsFromConfig(configPathFromArgs(searchArgs, defaultConfigPath))

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search in-process)")
	topK := fs.Int("top-k", defaultTopK, "number of results (1-100)")
	method := fs.String("method", string(models.MethodLexical), "lexical, semantic or hybrid")
	alpha := fs.Float64("alpha", defaultAlpha, "semantic weight for hybrid search (0.0-1.0)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	m, err := models.ParseMethod(*method)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	query := &models.SearchQuery{Query: queryStr, TopK: *topK, Method: m, Alpha: *alpha}
	if err := query.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, query)
	} else {
		response, err = searchDirect(*configPath, query)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// searchDirect runs the query in-process. Semantic and hybrid queries wait for the
// embedding build, since there is no long-lived process to build them in the background.
func searchDirect(configPath string, query *models.SearchQuery) (*models.SearchResponse, error) {
	components, logger, err := directComponents(configPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()
	defer components.Close()

	ctx := context.Background()
	if query.Method != models.MethodLexical {
		if err := components.Controller.BuildEmbeddings(ctx); err != nil {
			logger.Warn("embeddings unavailable", zap.Error(err))
		}
	}
	return components.Engine.Search(ctx, query)
}

func searchURL(serverURL string, query *models.SearchQuery) string {
	v := url.Values{}
	v.Set("query", query.Query)
	v.Set("top_k", strconv.Itoa(query.TopK))
	v.Set("method", string(query.Method))
	v.Set("alpha", strconv.FormatFloat(query.Alpha, 'f', -1, 64))
	return strings.TrimRight(serverURL, "/") + "/search?" + v.Encode()
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	var response models.SearchResponse
	if err := doJSON(http.MethodGet, searchURL(serverURL, query), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

type reindexResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = rebuild in-process)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		var resp reindexResponse
		if err := doJSON(http.MethodPost, strings.TrimRight(*serverURL, "/")+"/reindex", &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reindexed %d clauses; embeddings are rebuilding in the background\n", resp.Count)
		return
	}

	components, logger, err := directComponents(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	defer components.Close()

	n, err := components.Controller.Reindex(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
		os.Exit(1)
	}
	components.Controller.Wait()
	fmt.Printf("Reindexed %d clauses (embeddings ready: %t)\n", n, components.Controller.EmbeddingsReady())
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read caches directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *server.StatusResponse
	var err error
	if *serverURL != "" {
		status = &server.StatusResponse{}
		err = doJSON(http.MethodGet, strings.TrimRight(*serverURL, "/")+"/api/v1/status", status)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		if err := cli.WriteJSON(os.Stdout, status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// statusDirect reads the caches without building anything.
func statusDirect(configPath string) (*server.StatusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	clauseCache, err := storage.NewClauseCache(cfg.Storage)
	if err != nil {
		return nil, err
	}
	defer clauseCache.Close()

	status := &server.StatusResponse{
		IndexBackend:        cfg.Storage.Backend,
		IndexPath:           cfg.Storage.IndexPath,
		EmbeddingsPath:      cfg.Storage.EmbeddingsPath,
		EmbeddingProvider:   cfg.Embedding.Provider,
		EmbeddingDimensions: cfg.Embedding.Dimensions,
	}
	if clauses, err := clauseCache.Load(context.Background()); err == nil {
		status.Count = len(clauses)
	}
	if m, _, err := storage.NewEmbeddingCache(cfg.Storage.EmbeddingsPath).Load(); err == nil {
		status.EmbeddingRows = m.Rows()
		status.EmbeddingsReady = m.Rows() > 0 && m.Rows() == status.Count
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.IndexPath, cfg.Storage.EmbeddingsPath); err == nil {
		status.DiskUsageBytes = n
	}
	return status, nil
}

func writeStatusText(w io.Writer, s *server.StatusResponse) {
	fmt.Fprintf(w, "count:                %d   # clauses in the index\n", s.Count)
	if s.Generation != "" {
		fmt.Fprintf(w, "generation:           %s\n", s.Generation)
	}
	if s.BuiltAt != nil {
		fmt.Fprintf(w, "built_at:             %s\n", s.BuiltAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "embeddings_ready:     %t\n", s.EmbeddingsReady)
	fmt.Fprintf(w, "embeddings_building:  %t\n", s.EmbeddingsBuilding)
	fmt.Fprintf(w, "embedding_rows:       %d\n", s.EmbeddingRows)
	fmt.Fprintf(w, "disk_usage_bytes:     %d   # index + embeddings caches\n", s.DiskUsageBytes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "embedding_provider:   %s\n", s.EmbeddingProvider)
	fmt.Fprintf(w, "embedding_dims:       %d\n", s.EmbeddingDimensions)
	fmt.Fprintf(w, "index_backend:        %s\n", s.IndexBackend)
	fmt.Fprintf(w, "index_path:           %s\n", s.IndexPath)
	fmt.Fprintf(w, "embeddings_path:      %s\n", s.EmbeddingsPath)
}

// directComponents loads config and builds in-process components with a logger that
// only reports warnings unless debug is configured.
func directComponents(configPath string) (*Components, *zap.Logger, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if !cfg.Debug {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return components, logger, nil
}

// doJSON sends a bodiless request and decodes a 200 JSON response into out.
// Non-200 responses are returned as errors carrying the server's error message.
func doJSON(method, target string, out interface{}) error {
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
