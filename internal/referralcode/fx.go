package referralcode

import (
	"github.com/lunaglowlabs/lunaglow/internal/referralcode/repository"
	"github.com/lunaglowlabs/lunaglow/internal/referralcode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referralcode.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
