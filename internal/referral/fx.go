package referral

import (
	"github.com/lunaglowlabs/lunaglow/internal/referral/repository"
	"github.com/lunaglowlabs/lunaglow/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
