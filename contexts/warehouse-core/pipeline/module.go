package pipeline

import (
	"log/slog"

	crosswalkbuilder "meridian/contexts/warehouse-core/crosswalk-builder"
	crosswalkports "meridian/contexts/warehouse-core/crosswalk-builder/ports"
	fieldmergeengine "meridian/contexts/warehouse-core/field-merge-engine"
	mergeports "meridian/contexts/warehouse-core/field-merge-engine/ports"
	httpadapter "meridian/contexts/warehouse-core/pipeline/adapters/http"
	"meridian/contexts/warehouse-core/pipeline/adapters/memory"
	"meridian/contexts/warehouse-core/pipeline/application"
	"meridian/contexts/warehouse-core/pipeline/ports"
	scdhistorizer "meridian/contexts/warehouse-core/scd-historizer"
	scdports "meridian/contexts/warehouse-core/scd-historizer/ports"
	"meridian/internal/shared/policy"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Policy     policy.Policy
	Sources    crosswalkports.SourceReader
	Crosswalk  crosswalkports.CrosswalkStore
	Merged     mergeports.MergedStore
	Conflicts  mergeports.ConflictLog
	Audit      ports.ConflictAuditReader
	Dimensions scdports.DimensionStore
	History    ports.DimensionHistoryReader
	Runs       ports.RunStore
	Deps       ports.DependencyProbe
	Bus        ports.EventPublisher
	Observer   ports.RunObserver
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	crosswalk := crosswalkbuilder.NewModule(crosswalkbuilder.Dependencies{
		Sources:   deps.Sources,
		Crosswalk: deps.Crosswalk,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	})
	merge := fieldmergeengine.NewModule(fieldmergeengine.Dependencies{
		Sources:   deps.Sources,
		Crosswalk: deps.Crosswalk,
		Merged:    deps.Merged,
		Conflicts: deps.Conflicts,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	})
	historize := scdhistorizer.NewModule(scdhistorizer.Dependencies{
		Merged: deps.Merged,
		Store:  deps.Dimensions,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	})
	service := application.Service{
		Policy:    deps.Policy,
		Crosswalk: crosswalk.Service,
		Merge:     merge.Service,
		Historize: historize.Service,
		Runs:      deps.Runs,
		Deps:      deps.Deps,
		Bus:       deps.Bus,
		Observer:  deps.Observer,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service:    service,
			Conflicts:  deps.Audit,
			Dimensions: deps.History,
			Logger:     deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires the whole pipeline against the in-memory warehouse
// store, for tests and DSN-less dry runs. Run lifecycle events still flow to
// the given bus; a nil bus disables publishing.
func NewInMemoryModule(p policy.Policy, bus ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Policy:     p,
		Sources:    store,
		Crosswalk:  store,
		Merged:     store,
		Conflicts:  store,
		Audit:      store,
		Dimensions: store,
		History:    store,
		Runs:       store,
		Deps:       store,
		Bus:        bus,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
