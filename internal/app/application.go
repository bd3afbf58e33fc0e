package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/events"
	"github.com/MissionForge/escrow_layer/internal/app/services/achievements"
	"github.com/MissionForge/escrow_layer/internal/app/services/escrow"
	"github.com/MissionForge/escrow_layer/internal/app/services/factory"
	"github.com/MissionForge/escrow_layer/internal/app/services/feerouter"
	"github.com/MissionForge/escrow_layer/internal/app/services/guilds"
	reputationsvc "github.com/MissionForge/escrow_layer/internal/app/services/reputation"
	"github.com/MissionForge/escrow_layer/internal/app/services/resolver"
	"github.com/MissionForge/escrow_layer/internal/app/services/token"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/MissionForge/escrow_layer/internal/app/storage/memory"
	"github.com/MissionForge/escrow_layer/internal/app/system"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Missions     storage.MissionStore
	Disputes     storage.DisputeStore
	Guilds       storage.GuildStore
	Reputation   storage.ReputationStore
	Achievements storage.AchievementStore
}

// Identities fixes the protocol's role and custody addresses. Zero fields
// default to deterministic system addresses.
type Identities struct {
	DAO              identity.Address
	ProtocolTreasury identity.Address
	LabsTreasury     identity.Address
	ResolverTreasury identity.Address
	RouterCustody    identity.Address
	FactorySpender   identity.Address
	Resolver         identity.Address
	DisputeCustody   identity.Address
}

func (ids *Identities) applyDefaults() {
	def := func(a *identity.Address, label string) {
		if a.IsZero() {
			*a = identity.SystemAddress(label)
		}
	}
	def(&ids.DAO, "dao")
	def(&ids.ProtocolTreasury, "treasury/protocol")
	def(&ids.LabsTreasury, "treasury/labs")
	def(&ids.ResolverTreasury, "treasury/resolver")
	def(&ids.RouterCustody, "custody/feerouter")
	def(&ids.FactorySpender, "spender/factory")
	def(&ids.Resolver, "resolver")
	def(&ids.DisputeCustody, "custody/disputes")
}

// Options carries the optional collaborators of an application.
type Options struct {
	Ledger       token.Ledger
	Cache        *redis.Client
	CronSchedule string
}

// Application ties the protocol services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Identities Identities
	Bus        *events.Bus
	Ledger     token.Ledger

	Factory      *factory.Service
	Escrow       *escrow.Service
	Resolver     *resolver.Service
	FeeRouter    *feerouter.Service
	Guilds       *guilds.Service
	Reputation   *reputationsvc.Service
	Achievements *achievements.Service
}

// New builds a fully initialised application with the provided stores and
// identities.
func New(stores Stores, ids Identities, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	ids.applyDefaults()

	mem := memory.New()
	if stores.Missions == nil {
		stores.Missions = mem
	}
	if stores.Disputes == nil {
		stores.Disputes = mem
	}
	if stores.Guilds == nil {
		stores.Guilds = mem
	}
	if stores.Reputation == nil {
		stores.Reputation = mem
	}
	if stores.Achievements == nil {
		stores.Achievements = mem
	}

	ledger := opts.Ledger
	if ledger == nil {
		ledger = token.NewBank()
	}

	bus := events.NewBus()

	guildService := guilds.New(stores.Guilds, ids.DAO, opts.Cache, log.Named("guilds"))
	factoryService := factory.New(stores.Missions, ledger, ids.FactorySpender, bus, log.Named("factory"))
	routerService := feerouter.New(
		ids.RouterCustody,
		feerouter.Treasuries{
			Protocol: ids.ProtocolTreasury,
			Labs:     ids.LabsTreasury,
			Resolver: ids.ResolverTreasury,
		},
		factoryService,
		guildService,
		ledger,
		log.Named("feerouter"),
	)
	escrowService := escrow.New(stores.Missions, ledger, routerService, log.Named("escrow"))
	escrowService.SetResolver(ids.Resolver)
	escrowService.AttachBus(bus)

	reputationService := reputationsvc.New(stores.Reputation, ids.Resolver, log.Named("reputation"))
	escrowService.AttachReputation(reputationService)

	resolverService := resolver.New(
		resolver.Config{
			Identity:         ids.Resolver,
			DAO:              ids.DAO,
			Custody:          ids.DisputeCustody,
			ProtocolTreasury: ids.ProtocolTreasury,
		},
		stores.Disputes,
		stores.Missions,
		escrowService,
		ledger,
		log.Named("resolver"),
	)
	resolverService.AttachBus(bus)

	achievementService := achievements.New(stores.Achievements, ids.DAO, log.Named("achievements"))

	manager := system.NewManager()
	finalizer := resolver.NewFinalizer(resolverService, opts.CronSchedule, log.Named("resolver-finalizer"))
	if err := manager.Register(finalizer); err != nil {
		return nil, fmt.Errorf("register finalizer: %w", err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		Identities:   ids,
		Bus:          bus,
		Ledger:       ledger,
		Factory:      factoryService,
		Escrow:       escrowService,
		Resolver:     resolverService,
		FeeRouter:    routerService,
		Guilds:       guildService,
		Reputation:   reputationService,
		Achievements: achievementService,
	}, nil
}

// Start launches background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts background services down.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
