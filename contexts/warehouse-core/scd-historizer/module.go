package scdhistorizer

import (
	"log/slog"

	"meridian/contexts/warehouse-core/scd-historizer/application"
	"meridian/contexts/warehouse-core/scd-historizer/ports"
)

type Module struct {
	Service application.Service
}

type Dependencies struct {
	Merged ports.MergedReader
	Store  ports.DimensionStore
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Merged: deps.Merged,
			Store:  deps.Store,
			Clock:  deps.Clock,
			IDGen:  deps.IDGen,
			Logger: deps.Logger,
		},
	}
}
