package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"readquest-service/internal/app"
	"readquest-service/internal/domain"
	"readquest-service/internal/infra/memory"
	pgstore "readquest-service/internal/infra/postgres"
	pgmigrations "readquest-service/internal/infra/postgres/migrations"
	infraredis "readquest-service/internal/infra/redis"
)

func TestQuizProgressEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedAthlete(t, ctx, pgURL, sampleAthlete())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	catalog := infraredis.NewCatalog(redisClient, pgstore.NewCatalogLoader(pool), 5*time.Minute)
	queue := infraredis.NewPendingQueue(redisClient)
	coordinator := app.NewSyncCoordinator(pgstore.NewProgressStore(pool), queue)
	progress := app.NewProgressService(coordinator, 1)
	service := app.NewQuizService(catalog, memory.NewSessionStore(), progress)

	if _, err := service.StartQuiz(ctx, "u1", 1); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := service.MarkStoryRead(ctx, "u1", 1, 120); err != nil {
		t.Fatalf("story read: %v", err)
	}
	// Let the story-read write settle before the quiz write so the final
	// remote snapshot is the quiz one.
	coordinator.Wait()

	answers := []string{"Quarterback", "Super Bowl"}
	for i, option := range answers {
		if _, err := service.SelectOption(ctx, "u1", 1, option); err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		result, submitted, err := service.SubmitAnswer(ctx, "u1", 1)
		if err != nil || !submitted {
			t.Fatalf("submit %d: submitted=%v err=%v", i, submitted, err)
		}
		if !result.Correct {
			t.Fatalf("submit %d: expected correct answer, got %+v", i, result)
		}
		if _, _, err := service.Advance(ctx, "u1", 1); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	rec, ok := service.Progress("u1", 1)
	if !ok {
		t.Fatalf("expected local progress record")
	}
	if !rec.StoryRead || !rec.QuizCompleted || rec.QuizScore != 2 {
		t.Fatalf("unexpected local record %+v", rec)
	}

	// Every accepted mutation was pushed through the coordinator; wait for the
	// background writes and read the durable state back from Postgres.
	coordinator.Wait()
	remote, err := coordinator.ListRemote(ctx, "u1")
	if err != nil {
		t.Fatalf("list remote: %v", err)
	}
	if len(remote) != 1 {
		t.Fatalf("expected one remote record, got %d", len(remote))
	}
	if remote[0].QuizScore != 2 || !remote[0].StoryRead || remote[0].TimeSpentReadingSeconds != 120 {
		t.Fatalf("unexpected remote record %+v", remote[0])
	}

	if n, _ := queue.Len(ctx); n != 0 {
		t.Fatalf("expected empty pending queue, got %d", n)
	}
}

func TestPendingQueueFlushEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	// Park a snapshot in the queue as if a remote write had failed earlier.
	queue := infraredis.NewPendingQueue(redisClient)
	entry := domain.PendingSyncEntry{
		ID: "e1",
		Record: domain.ProgressRecord{
			UserID:         "u1",
			AthleteID:      1,
			AthleteName:    "Patrick Mahomes",
			QuizCompleted:  true,
			QuizScore:      2,
			TotalQuestions: 2,
			CompletionDate: time.Now().UTC().Truncate(time.Second),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := queue.Put(ctx, entry); err != nil {
		t.Fatalf("queue put: %v", err)
	}

	coordinator := app.NewSyncCoordinator(pgstore.NewProgressStore(pool), queue)
	flushed, err := coordinator.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if flushed != 1 {
		t.Fatalf("expected one flushed entry, got %d", flushed)
	}
	if n, _ := queue.Len(ctx); n != 0 {
		t.Fatalf("expected drained queue, got %d", n)
	}

	remote, err := coordinator.ListRemote(ctx, "u1")
	if err != nil {
		t.Fatalf("list remote: %v", err)
	}
	if len(remote) != 1 || remote[0].QuizScore != 2 {
		t.Fatalf("expected flushed record durable, got %+v", remote)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "readquest", "POSTGRES_PASSWORD": "readquestpass", "POSTGRES_DB": "readquestdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://readquest:readquestpass@%s:%s/readquestdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func seedAthlete(t *testing.T, ctx context.Context, dsn string, athlete domain.Athlete) {
	t.Helper()
	migrateDB(t, ctx, dsn)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	data, err := json.Marshal(athlete)
	if err != nil {
		t.Fatalf("marshal athlete: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO athletes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, athlete.ID, string(data)); err != nil {
		t.Fatalf("insert athlete: %v", err)
	}
}

func sampleAthlete() domain.Athlete {
	return domain.Athlete{
		ID:         1,
		Name:       "Patrick Mahomes",
		Sport:      "Football",
		ImageGlyph: "🏈",
		Story:      "Patrick throws the ball in amazing ways and helps kids learn.",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Prompt:        "What position does Patrick play?",
				Options:       []string{"Quarterback", "Goalkeeper", "Pitcher"},
				CorrectOption: "Quarterback",
				Explanation:   "Patrick is a quarterback.",
			},
			{
				ID:            "q2",
				Prompt:        "Which big game has Patrick won?",
				Options:       []string{"World Series", "Super Bowl", "Stanley Cup"},
				CorrectOption: "Super Bowl",
				Explanation:   "The Super Bowl is football's championship game.",
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
