package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"readquest-service/internal/app"
	"readquest-service/internal/auth"
	"readquest-service/internal/config"
	"readquest-service/internal/domain"
	"readquest-service/internal/infra/memory"
	pgstore "readquest-service/internal/infra/postgres"
	redisinfra "readquest-service/internal/infra/redis"
	"readquest-service/internal/infra/wordpress"
	transport "readquest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the reading-quest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleAthletes())
	if pool != nil {
		loader = pgstore.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalog(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalog(loader, catalogTTL)
	}

	var queue app.PendingQueue
	if redisClient != nil {
		queue = redisinfra.NewPendingQueue(redisClient)
	} else {
		queue = memory.NewPendingQueue()
	}

	coordinator := app.NewSyncCoordinator(progressAPIFromConfig(cfg, pool), queue)
	progress := app.NewProgressService(coordinator, cfg.Quiz.CompletionThreshold)
	service := app.NewQuizService(catalog, memory.NewSessionStore(), progress)

	guestSecret := cfg.Auth.GuestSecret
	if guestSecret == "" {
		// Ephemeral secret: guest tokens won't survive a restart.
		guestSecret = uuid.NewString()
		log.Printf("auth: no guest secret configured, using an ephemeral one")
	}
	issuer := auth.NewGuestIssuer(guestSecret, config.TTLDuration(cfg.Auth.GuestTokenTTL, 30*24*time.Hour))

	wsHandler := transport.NewWSHandler(service, coordinator, issuer)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go coordinator.Run(runCtx, config.TTLDuration(cfg.Sync.Interval, time.Minute))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /athletes", transport.HandleListAthletes(service))
	mux.HandleFunc("GET /athletes/{id}", transport.HandleGetAthlete(service))
	mux.HandleFunc("POST /auth/guest", transport.HandleGuestLogin(issuer))
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting reading-quest service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	cancelRun()
	coordinator.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// progressAPIFromConfig picks the remote persistence backend: WordPress when a
// site is configured, otherwise Postgres, otherwise an in-memory stand-in for
// local development.
func progressAPIFromConfig(cfg config.Config, pool *pgxpool.Pool) app.ProgressAPI {
	if cfg.WordPress.BaseURL != "" {
		return wordpress.New(cfg.WordPress.BaseURL, cfg.WordPress.Username, cfg.WordPress.AppPassword)
	}
	if pool != nil {
		return pgstore.NewProgressStore(pool)
	}
	log.Printf("progress: no remote backend configured, using in-memory sink")
	return memory.NewProgressAPI()
}

// sampleAthletes provides a minimal demo catalog; swap the loader for the
// Postgres-backed one in production.
func sampleAthletes() map[int]domain.Athlete {
	return map[int]domain.Athlete{
		1: {
			ID:         1,
			Name:       "Patrick Mahomes",
			Sport:      "Football",
			ImageGlyph: "🏈",
			Story: "Patrick Mahomes is the quarterback of the Kansas City Chiefs. " +
				"He throws the ball in amazing ways and has won the Super Bowl more than once. " +
				"Off the field, Patrick gives money to schools so kids can learn and play.",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Prompt:        "What position does Patrick Mahomes play?",
					Options:       []string{"Quarterback", "Goalkeeper", "Pitcher", "Point guard"},
					CorrectOption: "Quarterback",
					Explanation:   "Patrick is a quarterback, the player who throws the ball to teammates.",
				},
				{
					ID:            "q2",
					Prompt:        "Which big game has Patrick won?",
					Options:       []string{"Super Bowl", "World Series", "Stanley Cup"},
					CorrectOption: "Super Bowl",
					Explanation:   "The Super Bowl is the championship game of American football.",
				},
				{
					ID:            "q3",
					Prompt:        "How does Patrick help his community?",
					Options:       []string{"Gives money to schools", "Coaches a chess club", "Paints murals"},
					CorrectOption: "Gives money to schools",
					Explanation:   "Patrick's foundation donates to schools and kids' programs.",
				},
			},
		},
		2: {
			ID:         2,
			Name:       "Serena Williams",
			Sport:      "Tennis",
			ImageGlyph: "🎾",
			Story: "Serena Williams is one of the greatest tennis players ever. " +
				"She won 23 Grand Slam singles titles with her powerful serve and never-give-up spirit.",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Prompt:        "What sport does Serena Williams play?",
					Options:       []string{"Tennis", "Soccer", "Swimming"},
					CorrectOption: "Tennis",
					Explanation:   "Serena is a tennis champion known for her powerful serve.",
				},
				{
					ID:            "q2",
					Prompt:        "How many Grand Slam singles titles did Serena win?",
					Options:       []string{"23", "5", "50"},
					CorrectOption: "23",
					Explanation:   "Serena won 23 Grand Slam singles titles, more than any other player in the Open Era.",
				},
			},
		},
		3: {
			ID:         3,
			Name:       "Simone Biles",
			Sport:      "Gymnastics",
			ImageGlyph: "🤸",
			Story: "Simone Biles is a gymnast who flips higher than almost anyone. " +
				"She has won Olympic gold medals and even has moves named after her. " +
				"Simone reminds everyone that taking care of yourself matters too.",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Prompt:        "What sport is Simone Biles famous for?",
					Options:       []string{"Gymnastics", "Basketball", "Cycling"},
					CorrectOption: "Gymnastics",
					Explanation:   "Simone is a gymnast with several skills officially named after her.",
				},
				{
					ID:            "q2",
					Prompt:        "What does Simone remind everyone to do?",
					Options:       []string{"Take care of yourself", "Skip practice", "Only eat candy"},
					CorrectOption: "Take care of yourself",
					Explanation:   "Simone speaks up about how important health and rest are, even for champions.",
				},
			},
		},
	}
}
