package router

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	userapp "github.com/federation/enterprise/internal/application"
	pginfra "github.com/federation/enterprise/internal/infrastructure/postgres"
	gqlapi "github.com/federation/enterprise/internal/interface/graphql"
	handlers "github.com/federation/enterprise/internal/interface/http"
	"github.com/federation/enterprise/internal/router/modules"
	"github.com/federation/enterprise/pkg/helpers"
)

// Deps carries the shared infrastructure handed to every module. All wiring
// is explicit; modules never reach for globals.
type Deps struct {
	Pool            *pgxpool.Pool
	JWT             *helpers.JWTManager
	Redis           *redis.Client
	Logger          *logrus.Logger
	ES              *elasticsearch.Client
	ESAccountsIndex string
	Publisher       *helpers.RabbitPublisher
	CookieDomain    string
	CookieSecure    bool
	DebugMetrics    bool
}

// InitModules builds the application layer from the given infrastructure and
// registers every feature module with the registry.
func InitModules(r *Registry, d Deps) error {
	repo := pginfra.NewUserRepository(d.Pool)
	svc := userapp.NewService(repo, d.JWT, d.Redis, d.Logger, d.ES, d.ESAccountsIndex)
	h := handlers.NewUserHandler(svc, d.Logger, d.CookieDomain, d.CookieSecure, d.Publisher)

	r.Add(modules.NewUserModule(h, d.JWT, d.Redis))

	schema, err := gqlapi.NewSchema(svc, d.Logger)
	if err != nil {
		return err
	}
	r.Add(modules.NewGraphQLModule(&schema, d.Redis))
	if d.DebugMetrics {
		r.Add(modules.NewDebugModule(d.Redis))
	}
	return nil
}
