package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/client"
	"github.com/docshield/docshield/internal/config"
	"github.com/docshield/docshield/internal/infra/database"
	"github.com/docshield/docshield/internal/infra/gateway"
	"github.com/docshield/docshield/internal/infra/repository"
	"github.com/docshield/docshield/internal/present/rest"
	"github.com/docshield/docshield/internal/present/rest/middleware"
	"github.com/docshield/docshield/internal/service"
	"github.com/docshield/docshield/internal/usecase"
	"github.com/docshield/docshield/policy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	roleRepo := repository.NewRoleRepository(db, mc)
	requestRepo := repository.NewRequestRepository(db, mc)
	documentRepo := repository.NewDocumentRepository(db)

	if err := documentRepo.Seed(context.Background(), docshield.SeedFields(), policy.BuiltinTable()); err != nil {
		slog.Error("failed to seed document store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	signal := service.NewSignalService(rdb)
	rewriter := gateway.NewRewriteGateway(client.New(conf.Rewrite.Endpoint))

	roleUC := usecase.NewRoleUsecase(roleRepo, signal)
	requestUC := usecase.NewRequestUsecase(requestRepo, roleRepo, signal)
	documentUC := usecase.NewDocumentUsecase(documentRepo, roleRepo, signal)
	viewUC := usecase.NewViewUsecase(documentRepo, rewriter)

	handler := rest.NewHandler(roleUC, requestUC, documentUC, viewUC, signal)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("docshield"))
	}
	e.Use(middleware.IdentifyRequester)

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTraceProvider(endpoint string) (func(), error) {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("docshield"),
		),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cleanup := func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shut down tracer provider", slog.String("error", err.Error()))
		}
	}
	return cleanup, nil
}
