package summaryservice

import (
	"log/slog"

	httpadapter "txengine/contexts/assistant/summary-service/adapters/http"
	"txengine/contexts/assistant/summary-service/adapters/memory"
	"txengine/contexts/assistant/summary-service/application"
	"txengine/contexts/assistant/summary-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	// Summarizer may be nil; summarize requests then report the summarizer
	// as unavailable.
	Summarizer  ports.Summarizer
	Repository  ports.Repository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Handler: httpadapter.Handler{
			Service: application.Service{
				Summarizer: deps.Summarizer,
				Repo:       deps.Repository,
				Clock:      deps.Clock,
				IDGen:      deps.IDGenerator,
				Logger:     deps.Logger,
			},
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(summarizer ports.Summarizer, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Summarizer:  summarizer,
		Repository:  store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
