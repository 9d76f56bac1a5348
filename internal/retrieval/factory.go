package retrieval

import (
	"fmt"
	"log"
	"time"
)

// NewClient builds a retrieval backend from configuration. Mode "off"
// returns nil, which the pipeline treats as retrieval disabled.
func NewClient(mode, httpURL, dataPath string, timeout time.Duration, topK int) (Client, error) {
	switch mode {
	case "off":
		log.Printf("retrieval: disabled")
		return nil, nil
	case "http":
		if httpURL == "" {
			return nil, fmt.Errorf("retrieval mode http requires RETRIEVAL_HTTP_URL")
		}
		log.Printf("retrieval: using http backend at %s", httpURL)
		return NewHTTPClient(httpURL, timeout, topK), nil
	case "local":
		idx, err := NewSQLiteIndex(dataPath, topK)
		if err != nil {
			return nil, fmt.Errorf("retrieval: open local index: %w", err)
		}
		log.Printf("retrieval: using local sqlite index at %s", dataPath)
		return idx, nil
	case "memory":
		log.Printf("retrieval: using in-memory index")
		return NewInMemoryIndex(topK), nil
	case "", "auto":
		if httpURL != "" {
			log.Printf("retrieval: auto mode selected http backend at %s", httpURL)
			return NewHTTPClient(httpURL, timeout, topK), nil
		}
		idx, err := NewSQLiteIndex(dataPath, topK)
		if err != nil {
			return nil, fmt.Errorf("retrieval: open local index: %w", err)
		}
		log.Printf("retrieval: auto mode selected local sqlite index at %s", dataPath)
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown retrieval mode %q", mode)
	}
}
