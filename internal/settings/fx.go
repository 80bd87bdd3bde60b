package settings

import (
	"github.com/lunaglowlabs/lunaglow/internal/settings/repository"
	"github.com/lunaglowlabs/lunaglow/internal/settings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
