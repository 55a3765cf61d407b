package transactionservice

import (
	"log/slog"
	"time"

	"txengine/contexts/finance-core/transaction-service/adapters/broadcast"
	httpadapter "txengine/contexts/finance-core/transaction-service/adapters/http"
	"txengine/contexts/finance-core/transaction-service/adapters/memory"
	"txengine/contexts/finance-core/transaction-service/application"
	"txengine/contexts/finance-core/transaction-service/application/workers"
	"txengine/contexts/finance-core/transaction-service/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Service    application.Service
	Registry   *broadcast.Registry
	Dispatcher *workers.Dispatcher
	Store      *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Locker     ports.KeyLocker
	// Notifier defaults to Registry. Set it to wrap the registry with
	// additional delivery (see adapters/events.FanoutNotifier).
	Notifier   ports.Notifier
	Registry   *broadcast.Registry
	Simulator  ports.WorkSimulator
	Dispatcher *workers.Dispatcher
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	registry := deps.Registry
	if registry == nil {
		registry = broadcast.NewRegistry(broadcast.DefaultBufferSize, deps.Logger)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = registry
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = workers.NewDispatcher(deps.Logger)
	}
	simulator := deps.Simulator
	if simulator == nil {
		simulator = application.DelaySimulator{Delay: application.DefaultProcessingDelay}
	}

	service := application.Service{
		Repo: deps.Repository,
		Guard: application.IdempotencyGuard{
			Repo:   deps.Repository,
			Locker: deps.Locker,
			Logger: deps.Logger,
		},
		Processor: application.Processor{
			Repo:      deps.Repository,
			Simulator: simulator,
			Notifier:  notifier,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		Scheduler: dispatcher,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service:    service,
		Registry:   registry,
		Dispatcher: dispatcher,
	}
}

func NewInMemoryModule(logger *slog.Logger, processingDelay time.Duration) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Locker:     memory.NewKeyLocker(),
		Simulator:  application.DelaySimulator{Delay: processingDelay},
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
