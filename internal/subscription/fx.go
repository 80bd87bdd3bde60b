package subscription

import (
	"github.com/lunaglowlabs/lunaglow/internal/subscription/repository"
	"github.com/lunaglowlabs/lunaglow/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
