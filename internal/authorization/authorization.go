// Package authorization gates the admin surface (settings mutation, manual
// sweep triggers) behind an RBAC policy keyed off the API key identity.
package authorization

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

func NewEnforcer(db *gorm.DB, cfg config.Config) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}

	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	if _, err := enforcer.AddPolicy("admin", "/v1/settings", "*"); err != nil {
		return nil, err
	}
	if _, err := enforcer.AddPolicy("admin", "/v1/sweeps/*", "*"); err != nil {
		return nil, err
	}
	for _, subject := range cfg.Auth.AdminSubjects {
		if _, err := enforcer.AddGroupingPolicy(subject, "admin"); err != nil {
			return nil, err
		}
	}

	return enforcer, nil
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
)
