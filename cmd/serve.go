package cmd

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/CMSgov/dpc-portal/api/handlers"
	"github.com/CMSgov/dpc-portal/api/middleware"
	"github.com/CMSgov/dpc-portal/api/services"
	docs "github.com/CMSgov/dpc-portal/docs"
	"github.com/CMSgov/dpc-portal/internal/appconfig"
	"github.com/CMSgov/dpc-portal/internal/authn"
	awsclient "github.com/CMSgov/dpc-portal/internal/aws"
	"github.com/CMSgov/dpc-portal/internal/events"
	"github.com/CMSgov/dpc-portal/internal/mailer"
	"github.com/CMSgov/dpc-portal/internal/secrets"
	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title DPC Portal API
// @version v1
// @description JSON API for managing the DPC credentials of a provider organization.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server for the portal pages and the JSON API",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config, initialize the database and set up logging
		commonSetUp()
		defer portalDB.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		awsClients := &awsclient.Clients{Region: appCfg.AWS.Region}

		// Initialize the organization directory client
		directory, err := initializeDirectory(ctx, appCfg.Directory, awsClients)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize organization directory client")
		}

		// Initialize event publisher
		var publisher events.Publisher = events.Discard{}
		if appCfg.Pulsar.URL != "" {
			pulsarPublisher, err := events.NewEventPublisher(appCfg.Pulsar.URL, appCfg.Pulsar.TopicProducer)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize event publisher")
			}
			defer pulsarPublisher.Close()
			publisher = pulsarPublisher
		} else {
			log.Warn().Msg("pulsar.url is not set, credential events will not be published")
		}

		// Initialize the mailer for invitations and password resets
		mail, err := initializeMailer(ctx, appCfg.Accounts, awsClients)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize mailer")
		}

		service := &services.Service{
			Credentials: services.NewCredentialLifecycleManager(directory, publisher),
			Accounts: &services.AccountService{
				Users:            portalDB,
				Directory:        directory,
				Mailer:           mail,
				PortalURL:        appCfg.Portal.URL,
				InvitationTTL:    appCfg.Accounts.InvitationTTL,
				PasswordResetTTL: appCfg.Accounts.PasswordResetTTL,
				Now:              time.Now,
			},
			Organizations: &services.OrganizationService{
				Directory: directory,
				Orgs:      portalDB,
				Users:     portalDB,
			},
		}

		sessions := authn.NewSessionIssuer(appCfg.Portal.SessionSecret, appCfg.Portal.SessionTTL)
		portal, err := handlers.NewPortal(service, sessions, portalDB, appCfg.Portal.SecureCookies)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse portal templates")
		}

		// Create routes
		r := mux.NewRouter()
		r.Use(middleware.WithLogger)
		r.Use(middleware.WithSession(sessions))

		// Operational routes
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(portalDB.DB, appCfg.Database.Driver),
		)
		services.RegisterMetrics(registry)
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
		r.HandleFunc("/healthz", healthCheck).Methods(http.MethodGet)

		// Docs
		docs.SwaggerInfo.Host = appCfg.Host
		docs.SwaggerInfo.BasePath = appCfg.BasePath
		r.PathPrefix(appCfg.DocsPath).Handler(httpSwagger.Handler(
			httpSwagger.URL(path.Join(appCfg.DocsPath, "/doc.json")),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("none"),
			httpSwagger.DomID("swagger-ui"),
		)).Methods(http.MethodGet)

		// JSON API and portal pages
		handlers.RegisterAPIRoutes(r.PathPrefix(appCfg.BasePath).Subrouter(), portal)
		handlers.RegisterRoutes(r, portal)

		server := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           serverHandler(r, appCfg.Portal.BehindProxy),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("server shutdown failed")
			}
		}()

		log.Info().Msg(fmt.Sprintf("Server started at %s:%d", host, port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("could not start server")
		}
		log.Info().Msg("Server stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&host, "host", "0.0.0.0", "host to run the server on")
	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run the server on")
}

// serverHandler adds panic recovery and the access log to the router. Behind a load
// balancer the forwarded client address replaces the balancer's, so throttling is per client.
func serverHandler(r http.Handler, behindProxy bool) http.Handler {
	h := middleware.AccessLog(r)
	if behindProxy {
		h = gorillahandlers.ProxyHeaders(h)
	}
	recovery := gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(stdlog.New(log.Logger, "", 0)),
	)
	return recovery(h)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := portalDB.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("database health check failed")
		services.HandleErrResponse(w, http.StatusServiceUnavailable, errors.New("database unavailable"))
		return
	}
	services.WriteResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// initializeDirectory builds the organization directory client. The admin token is read
// once at start up.
func initializeDirectory(ctx context.Context, cfg appconfig.DirectoryConfig, awsClients *awsclient.Clients) (services.OrgDirectoryClient, error) {
	if cfg.Fake {
		log.Warn().Msg("Using the in-memory organization directory")
		return services.NewFakeOrgDirectory(), nil
	}

	source, err := initializeTokenSource(ctx, cfg.Token, awsClients)
	if err != nil {
		return nil, err
	}
	token, err := source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory token: %w", err)
	}

	log.Info().Str("url", cfg.URL).Str("token_source", cfg.Token.Source).Msg("Using the organization directory")
	return services.NewDirectoryClient(cfg.URL, token, cfg.Timeout, cfg.Retries), nil
}

func initializeTokenSource(ctx context.Context, cfg appconfig.TokenConfig, awsClients *awsclient.Clients) (secrets.TokenSource, error) {
	switch cfg.Source {
	case "env":
		return secrets.EnvSource{Var: cfg.EnvVar}, nil
	case "secretsmanager":
		client, err := awsClients.SecretsManager(ctx)
		if err != nil {
			return nil, err
		}
		return secrets.SecretsManagerSource{
			Client:   client,
			SecretID: cfg.SecretID,
			Key:      cfg.Key,
		}, nil
	case "kubernetes":
		k8sClient, err := initializeK8sClient()
		if err != nil {
			return nil, err
		}
		return secrets.KubernetesSource{
			Client:    k8sClient,
			Namespace: cfg.Namespace,
			Name:      cfg.Name,
			Key:       cfg.Key,
		}, nil
	default:
		return nil, fmt.Errorf("unknown directory token source %q", cfg.Source)
	}
}

// initializeMailer sends through SES when a sender address is configured and logs
// messages otherwise.
func initializeMailer(ctx context.Context, cfg appconfig.AccountsConfig, awsClients *awsclient.Clients) (services.Mailer, error) {
	if cfg.FromEmail == "" {
		log.Warn().Msg("accounts.fromEmail is not set, account emails will only be logged")
		logger := log.With().Str("component", "mailer").Logger()
		return &mailer.LogMailer{Logger: &logger}, nil
	}

	client, err := awsClients.SES(ctx)
	if err != nil {
		return nil, err
	}
	return &mailer.SESMailer{Client: client, From: cfg.FromEmail}, nil
}

func initializeK8sClient() (*kubernetes.Clientset, error) {
	var config *rest.Config
	var err error

	// Check if running inside a Kubernetes pod
	if _, exists := os.LookupEnv("KUBERNETES_SERVICE_HOST"); exists {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load in-cluster Kubernetes config: %w", err)
		}
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return clientset, nil
}
