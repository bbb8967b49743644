package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/blueprints/internal/config"
	"github.com/dyluth/blueprints/internal/printer"
	"github.com/dyluth/blueprints/internal/relay"
	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/internal/store/pgstore"
	"github.com/dyluth/blueprints/internal/store/redisstore"
	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr        string
	serveRedisURL    string
	serveRepository  string
	serveDatabaseURL string
	serveThreshold   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay server: the /blueprints REST API, the /ws web-socket bridge
onto Redis pub/sub, the point router and /healthz.

Points published to /app/newpoint/{author}/{name} are re-broadcast on
/topic/newpoint/{author}/{name}; every --threshold points of a blueprint are
also published together on /topic/newpolygon/{author}/{name}.

Flags override the server section of blueprints.yml.

Examples:
  # Serve with Redis for both pub/sub and storage
  blueprints serve

  # Store blueprints in PostgreSQL
  blueprints serve --repository=postgres --database-url=postgres://bp@db/blueprints`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveRedisURL, "redis-url", "", "Redis URL for pub/sub and the redis repository")
	serveCmd.Flags().StringVar(&serveRepository, "repository", "", "Blueprint storage: redis or postgres")
	serveCmd.Flags().StringVar(&serveDatabaseURL, "database-url", "", "PostgreSQL URL for the postgres repository")
	serveCmd.Flags().IntVar(&serveThreshold, "threshold", 0, "Relayed points per polygon")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	sc := cfg.Server
	if serveAddr != "" {
		sc.Addr = serveAddr
	}
	if serveRedisURL != "" {
		sc.RedisURL = serveRedisURL
	}
	if serveRepository != "" {
		sc.Repository = serveRepository
	}
	if serveDatabaseURL != "" {
		sc.DatabaseURL = serveDatabaseURL
	}
	if serveThreshold != 0 {
		sc.PolygonThreshold = serveThreshold
	}

	ctx, stop := signalContext()
	defer stop()

	redisOpts, err := redis.ParseURL(sc.RedisURL)
	if err != nil {
		return printer.Error("invalid Redis URL", err.Error(), nil)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", sc.RedisURL),
			map[string]string{"Error": err.Error()},
			[]string{"Start Redis, or pass --redis-url"},
		)
	}

	repo, closeRepo, err := openRepository(ctx, sc, rdb)
	if err != nil {
		return printer.ErrorWithContext(
			"repository unavailable",
			err.Error(),
			map[string]string{"Repository": sc.Repository},
			[]string{"Check --database-url", "Use --repository=redis"},
		)
	}
	defer closeRepo()

	srv, err := relay.New(relay.Options{
		Redis:            rdb,
		Repository:       repo,
		PolygonThreshold: sc.PolygonThreshold,
	})
	if err != nil {
		return err
	}

	printer.Step("relay listening on %s (%s repository)\n", sc.Addr, sc.Repository)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, sc.Addr) })
	g.Go(func() error { return srv.Route(gctx) })
	if err := g.Wait(); err != nil {
		glog.Errorf("[serve] relay stopped: %v", err)
		return printer.Error("relay stopped", err.Error(), nil)
	}

	printer.Success("relay stopped\n")
	return nil
}

// openRepository returns the configured repository and its closer.
func openRepository(ctx context.Context, sc config.ServerConfig, rdb *redis.Client) (store.Repository, func() error, error) {
	switch sc.Repository {
	case config.RepositoryRedis:
		return redisstore.New(rdb), func() error { return nil }, nil
	case config.RepositoryPostgres:
		pg, err := pgstore.Open(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown repository: %s", sc.Repository)
	}
}
