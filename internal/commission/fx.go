package commission

import (
	"github.com/lunaglowlabs/lunaglow/internal/commission/repository"
	"github.com/lunaglowlabs/lunaglow/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
