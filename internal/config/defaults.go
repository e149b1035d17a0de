package config

// Default source documents: the PDPL implementing regulation and the NCA ECC controls.
var defaultDocuments = []DocumentConfig{
	{Key: "pdpl", Label: "PDPL (Implementing Regulation)", Path: "./PDPL.pdf"},
	{Key: "ecc", Label: "NCA Essential Cybersecurity Controls (ECC-1:2018)", Path: "./ecc-en.pdf"},
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.AllowOrigins == nil {
		cfg.Server.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	if cfg.Documents == nil {
		cfg.Documents = append([]DocumentConfig(nil), defaultDocuments...)
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendJSON
	}
	if cfg.Storage.IndexPath == "" {
		if cfg.Storage.Backend == BackendSQLite {
			cfg.Storage.IndexPath = "./data/index.db"
		} else {
			cfg.Storage.IndexPath = "./data/index.json"
		}
	}
	if cfg.Storage.EmbeddingsPath == "" {
		cfg.Storage.EmbeddingsPath = "./data/embeddings.bin"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" && cfg.Embedding.Provider == ProviderONNX {
		cfg.Embedding.ModelPath = "./models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.TextBudget == 0 {
		cfg.Embedding.TextBudget = 1200
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 20
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.DefaultAlpha == 0 {
		cfg.Search.DefaultAlpha = 0.6
	}
	if cfg.Search.SemanticCandidates == 0 {
		cfg.Search.SemanticCandidates = 80
	}
	if cfg.Search.PreviewLimit == 0 {
		cfg.Search.PreviewLimit = 200
	}
	if cfg.Search.MaxPreviewLimit == 0 {
		cfg.Search.MaxPreviewLimit = 5000
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 1500
	}
}
