// Package cli is the docrag command-line interface.
package cli

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"docrag/store"
)

// Service is what the commands need from the pipeline.
type Service interface {
	IndexPaths(ctx context.Context, paths []string) bool
	Query(ctx context.Context, question string) (string, bool)
	Stats(ctx context.Context) (store.DetailedStats, error)
}

// ServiceFactory builds the Service on first use, so --help and argument
// errors never connect to a backend.
type ServiceFactory func(ctx context.Context) (Service, error)

var (
	factory    ServiceFactory
	ragService Service
	serviceMu  sync.Mutex
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Index documents and ask questions about them",
	Long: `docrag loads text, markdown, PDF, DOCX and HTML files, splits them into
chunks, embeds them into a vector store and answers questions from the most
relevant chunks.`,
	SilenceUsage: true,
}

// SetServiceFactory installs the factory used to build the Service.
func SetServiceFactory(f ServiceFactory) {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	factory = f
	ragService = nil
}

func service(ctx context.Context) (Service, error) {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if ragService != nil {
		return ragService, nil
	}
	if factory == nil {
		return nil, errors.New("rag service not configured")
	}
	s, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	ragService = s
	return s, nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
