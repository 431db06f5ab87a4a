package fieldmergeengine

import (
	"log/slog"

	"meridian/contexts/warehouse-core/field-merge-engine/application"
	"meridian/contexts/warehouse-core/field-merge-engine/ports"
)

type Module struct {
	Service application.Service
}

type Dependencies struct {
	Sources   ports.SourceReader
	Crosswalk ports.CrosswalkReader
	Merged    ports.MergedStore
	Conflicts ports.ConflictLog
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Sources:   deps.Sources,
			Crosswalk: deps.Crosswalk,
			Merged:    deps.Merged,
			Conflicts: deps.Conflicts,
			Clock:     deps.Clock,
			IDGen:     deps.IDGen,
			Logger:    deps.Logger,
		},
	}
}
