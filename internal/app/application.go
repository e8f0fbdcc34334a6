package app

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/CalcStack/calc_service/internal/app/auth"
	"github.com/CalcStack/calc_service/internal/app/operation"
	calcsvc "github.com/CalcStack/calc_service/internal/app/services/calculations"
	principalsvc "github.com/CalcStack/calc_service/internal/app/services/principals"
	"github.com/CalcStack/calc_service/internal/app/storage"
	"github.com/CalcStack/calc_service/internal/app/storage/memory"
	"github.com/CalcStack/calc_service/internal/app/system"
	"github.com/CalcStack/calc_service/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Principals   storage.PrincipalStore
	Calculations storage.CalculationStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Registry     *operation.Registry
	Tokens       *auth.TokenService
	Guard        *auth.Guard
	Principals   *principalsvc.Service
	Calculations *calcsvc.Service
}

// New builds a fully initialised application with the provided stores. A nil
// token service gets an ephemeral random secret, which invalidates all
// sessions on restart; production deployments must configure one.
func New(stores Stores, tokens *auth.TokenService, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Principals == nil {
		stores.Principals = mem
	}
	if stores.Calculations == nil {
		stores.Calculations = mem
	}

	if tokens == nil {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		log.Warn("no token secret configured; sessions will not survive a restart")
		var err error
		tokens, err = auth.NewTokenService(secret, auth.DefaultTokenTTL, "calcserver")
		if err != nil {
			return nil, fmt.Errorf("build token service: %w", err)
		}
	}

	manager := system.NewManager()

	registry := operation.NewDefault()
	guard := auth.NewGuard(tokens, stores.Principals)
	principalService := principalsvc.New(stores.Principals, tokens, log)
	calculationService := calcsvc.New(stores.Calculations, registry, log)

	for _, name := range []string{"principals", "calculations"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Registry:     registry,
		Tokens:       tokens,
		Guard:        guard,
		Principals:   principalService,
		Calculations: calculationService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
