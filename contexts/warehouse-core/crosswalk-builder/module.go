package crosswalkbuilder

import (
	"log/slog"

	"meridian/contexts/warehouse-core/crosswalk-builder/application"
	"meridian/contexts/warehouse-core/crosswalk-builder/ports"
)

type Module struct {
	Service application.Service
}

type Dependencies struct {
	Sources   ports.SourceReader
	Crosswalk ports.CrosswalkStore
	Clock     ports.Clock
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Sources:   deps.Sources,
			Crosswalk: deps.Crosswalk,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}
