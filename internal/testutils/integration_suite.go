package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"newsdesk/apps/backend/internal/config"
)

const (
	MinioAccessKey = "minioadmin"
	MinioSecretKey = "minioadmin"
)

type IntegrationSuite struct {
	T     *testing.T
	DB    *sql.DB
	Redis *redis.Client
	Minio *minio.Client
	NSQ   *nsq.Producer

	MinioEndpoint string
	NSQDAddr      string
	NSQDHTTPAddr  string
	RedisAddr     string

	pgHost string
	pgPort int

	// Containers
	pgContainer    *postgres.PostgresContainer
	redisContainer testcontainers.Container
	minioContainer testcontainers.Container
	nsqContainer   testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

// Setup starts every backing service. Use the With* variants to start only
// what a test needs.
func (s *IntegrationSuite) Setup() {
	s.WithPostgres()
	s.WithRedis()
	s.WithMinio()
	s.WithNSQ()
}

func (s *IntegrationSuite) WithPostgres() *IntegrationSuite {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("newsdesk_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.pgHost, err = pgContainer.Host(ctx)
	require.NoError(s.T, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(s.T, err)
	s.pgPort = port.Int()

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	m, err := migrate.New("file://"+s.migrationDir(), connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())
	return s
}

func (s *IntegrationSuite) WithRedis() *IntegrationSuite {
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.redisContainer = c

	s.RedisAddr, err = c.Endpoint(ctx, "")
	require.NoError(s.T, err)
	s.Redis = redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	require.NoError(s.T, s.Redis.Ping(ctx).Err())
	return s
}

func (s *IntegrationSuite) WithMinio() *IntegrationSuite {
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     MinioAccessKey,
				"MINIO_ROOT_PASSWORD": MinioSecretKey,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.minioContainer = c

	s.MinioEndpoint, err = c.Endpoint(ctx, "")
	require.NoError(s.T, err)
	s.Minio, err = minio.New(s.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(MinioAccessKey, MinioSecretKey, ""),
		Secure: false,
	})
	require.NoError(s.T, err)
	return s
}

func (s *IntegrationSuite) WithNSQ() *IntegrationSuite {
	ctx := context.Background()

	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nsqio/nsq:v1.3.0",
			ExposedPorts: []string{"4150/tcp", "4151/tcp"},
			Cmd:          []string{"/nsqd", "--broadcast-address=localhost", "--max-msg-timeout=90m"},
			WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	host, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	tcpPort, err := nsqC.MappedPort(ctx, "4150/tcp")
	require.NoError(s.T, err)
	httpPort, err := nsqC.MappedPort(ctx, "4151/tcp")
	require.NoError(s.T, err)
	s.NSQDAddr = fmt.Sprintf("%s:%s", host, tcpPort.Port())
	s.NSQDHTTPAddr = fmt.Sprintf("%s:%s", host, httpPort.Port())

	s.NSQ, err = nsq.NewProducer(s.NSQDAddr, nsq.NewConfig())
	require.NoError(s.T, err)
	return s
}

// GetAppConfig points a config at whichever services the suite started.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DBHost:                     s.pgHost,
		DBPort:                     s.pgPort,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "newsdesk_test",
		MigrationPath:              "file://" + s.migrationDir(),
		RedisAddr:                  s.RedisAddr,
		S3Endpoint:                 s.MinioEndpoint,
		S3AccessKey:                MinioAccessKey,
		S3SecretKey:                MinioSecretKey,
		NSQDHost:                   s.NSQDAddr,
		NSQDHTTP:                   s.NSQDHTTPAddr,
		NSQMaxMsgTimeoutMinutes:    90,
		DocumentTimeoutMinutes:     60,
		ServerPort:                 8081,
		WorkerConcurrency:          1,
		BootstrapRetryAttempts:     3,
		BootstrapRetryDelaySeconds: 1,
	}
}

func (s *IntegrationSuite) migrationDir() string {
	_, b, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(b), "..", "..", "migrations")
}

// ConsumeOne waits up to 10s for a single message on topic.
func (s *IntegrationSuite) ConsumeOne(topic string) *nsq.Message {
	c, err := nsq.NewConsumer(topic, "test-consume-one", nsq.NewConfig())
	require.NoError(s.T, err)
	defer c.Stop()

	got := make(chan *nsq.Message, 1)
	c.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		select {
		case got <- m:
		default:
		}
		return nil
	}))
	require.NoError(s.T, c.ConnectToNSQD(s.NSQDAddr))

	select {
	case m := <-got:
		return m
	case <-time.After(10 * time.Second):
		return nil
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	for _, c := range []testcontainers.Container{s.redisContainer, s.minioContainer, s.nsqContainer} {
		if c != nil {
			c.Terminate(ctx)
		}
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
}
