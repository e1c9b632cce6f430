//go:build wireinject
// +build wireinject

package main

import (
	"github.com/beldeveloper/release-promoter/internal/app/http"
	"github.com/beldeveloper/release-promoter/internal/app/postgres"
	"github.com/beldeveloper/release-promoter/internal/app/svc"
	"github.com/google/wire"
)

func initializeContainer() (container, error) {
	wire.Build(
		postgres.NewPromotion,
		svc.NewPromotion,
		http.NewHandler,
		http.NewRouter,
		newContainer,
		newWatcher,
		newWatchDelay,
		newPostgresConn,
		newHookSvc,
		newArchive,
		newPolicy,
		newAccessKey,
	)
	return container{}, nil
}
