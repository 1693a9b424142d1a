package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alex-pricope/campus-election-system/api/controllers"
	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config *Config
}

func NewServer(config *Config) *Server {
	return &Server{
		config: config,
	}
}

// Storages bundles one implementation of every store.
type Storages struct {
	Users       storage.UserStorage
	Elections   storage.ElectionStorage
	Candidacies storage.CandidacyStorage
	Ballots     storage.BallotStorage
	close       func()
}

func (s *Storages) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *Server) Start() {
	startedAt := time.Now()
	ctx := context.Background()
	r := transport.NewRouter(gin.DebugMode)

	stores, err := OpenStorages(ctx, s.config.StorageConfig)
	if err != nil {
		logging.Log.Errorf("failed to open storage: %v", err)
		panic("failed to open storage")
	}
	defer stores.Close()

	clock := election.SystemClock
	tokens := auth.NewTokenManager(s.config.JWTSecret, s.config.TokenTTL)
	if err := SeedAdmin(ctx, stores.Users, s.config.AuthConfig, clock); err != nil {
		logging.Log.Errorf("failed to seed bootstrap admin: %v", err)
		panic("failed to seed bootstrap admin")
	}

	//Register controllers
	RegisterControllers(r, stores, tokens, clock, s.config.Interval, startedAt)

	//Do not run lambda helper locally
	if os.Getenv("APP_ENV") == "local" {
		startLocal(r, s.config.Port)
	} else {
		startLambda(r)
	}
}

// RegisterControllers mounts every API route on engine.
func RegisterControllers(engine *gin.Engine, stores *Storages, tokens *auth.TokenManager, clock election.Clock, liveInterval time.Duration, startedAt time.Time) {
	controllers.NewAuthController(stores.Users, tokens, clock).RegisterRoutes(engine)
	controllers.NewElectionController(stores.Elections, stores.Candidacies, tokens, clock).RegisterRoutes(engine)
	controllers.NewApplicationController(stores.Elections, stores.Candidacies, tokens, clock).RegisterRoutes(engine)
	controllers.NewECController(stores.Users, stores.Elections, stores.Candidacies, tokens, clock).RegisterRoutes(engine)
	controllers.NewAdminController(stores.Users, stores.Elections, stores.Ballots, tokens, startedAt).RegisterRoutes(engine)
	controllers.NewVotingController(stores.Users, stores.Elections, stores.Candidacies, stores.Ballots, tokens, clock, liveInterval).RegisterRoutes(engine)
	controllers.NewResultsController(stores.Users, stores.Elections, stores.Candidacies, stores.Ballots, tokens, clock).RegisterRoutes(engine)
}

// OpenStorages builds the stores of the configured backend.
func OpenStorages(ctx context.Context, conf StorageConfig) (*Storages, error) {
	switch conf.Backend {
	case storage.BackendDynamo:
		var opts []func(*awsconfig.LoadOptions) error
		if conf.Region != "" {
			opts = append(opts, awsconfig.WithRegion(conf.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if conf.Endpoint != "" {
				o.BaseEndpoint = aws.String(conf.Endpoint)
			}
		})
		logging.Log.Infof("STORAGE: using DynamoDB tables %s, %s, %s, %s", conf.TableNameUsers, conf.TableNameElections, conf.TableNameCandidacies, conf.TableNameBallots)
		return &Storages{
			Users:       &storage.DynamoUserStorage{Client: client, TableName: conf.TableNameUsers, GuardsTableName: conf.TableNameGuards},
			Elections:   &storage.DynamoElectionStorage{Client: client, TableName: conf.TableNameElections, GuardsTableName: conf.TableNameGuards},
			Candidacies: &storage.DynamoCandidacyStorage{Client: client, TableName: conf.TableNameCandidacies, GuardsTableName: conf.TableNameGuards},
			Ballots:     &storage.DynamoBallotStorage{Client: client, TableName: conf.TableNameBallots},
		}, nil

	case storage.BackendPostgres, storage.BackendSQLite:
		db, err := storage.OpenSQL(conf.Backend, conf.DSN)
		if err != nil {
			return nil, err
		}
		logging.Log.Infof("STORAGE: using %s", conf.Backend)
		return &Storages{
			Users:       &storage.GormUserStorage{DB: db},
			Elections:   &storage.GormElectionStorage{DB: db},
			Candidacies: &storage.GormCandidacyStorage{DB: db},
			Ballots:     &storage.GormBallotStorage{DB: db},
			close:       func() { _ = storage.CloseSQL(db) },
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", conf.Backend)
}

// SeedAdmin creates the configured bootstrap admin when no admin exists yet.
func SeedAdmin(ctx context.Context, users storage.UserStorage, conf AuthConfig, clock election.Clock) error {
	if conf.BootstrapAdminUsername == "" || conf.BootstrapAdminPassword == "" {
		return nil
	}
	admins, err := users.CountByRole(ctx, storage.RoleAdmin)
	if err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}

	hash, err := auth.HashPassword(conf.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	id, err := gonanoid.Generate(models.Alphabet, models.IDLength)
	if err != nil {
		return err
	}
	admin := &storage.User{
		ID:           id,
		Name:         conf.BootstrapAdminName,
		Username:     conf.BootstrapAdminUsername,
		PasswordHash: hash,
		Role:         storage.RoleAdmin,
		CreatedAt:    clock.Now(),
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, storage.ErrDuplicateUsername) {
			logging.Log.Warnf("AUTH: bootstrap admin username %s is taken by another account", admin.Username)
			return nil
		}
		return err
	}
	logging.Log.Infof("AUTH: seeded bootstrap admin %s", admin.Username)
	return nil
}

// StartLambda sets up for AWS Lambda
func startLambda(engine *gin.Engine) {
	ginLambda := ginadapter.NewV2(engine)

	handler := func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		logging.Log.Infof("Lambda handler triggered on path: %s", req.RawPath)
		return ginLambda.ProxyWithContext(ctx, req)
	}

	logging.Log.Info("Starting lambda")
	lambda.Start(handler)
}

// startLocal serves HTTP until SIGINT or SIGTERM. Request contexts derive from
// the signal context so open live streams end on shutdown.
func startLocal(engine *gin.Engine, port int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     engine,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Log.Errorf("Failed to shut down server: %v", err)
		}
	}()

	logging.Log.Info(fmt.Sprintf("Starting server on http://localhost:%d", port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Log.Fatalf("Failed to run server: %v", err)
	}
	<-done
	logging.Log.Info("Server stopped")
}
