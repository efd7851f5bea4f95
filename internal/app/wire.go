//go:build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/data"
	"github.com/gowvp/camcore/internal/web/api"
)

func wireApp(bc *conf.Bootstrap) (*api.Usecase, func(), error) {
	panic(wire.Build(data.ProviderSet, api.ProviderSet))
}
