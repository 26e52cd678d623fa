// Command stitchgate loads a static subschema list from config, dials each
// over gRPC, builds the SuperSchema once, and serves the HTTP entry point —
// the CLI named in SPEC_FULL.md §2.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stitchgql/federate/gateway"
	"github.com/stitchgql/federate/internal/cache"
	"github.com/stitchgql/federate/internal/config"
	"github.com/stitchgql/federate/internal/logging"
	"github.com/stitchgql/federate/internal/schemaload"
	"github.com/stitchgql/federate/subschema"
	"github.com/stitchgql/federate/superschema"
	"github.com/stitchgql/federate/transport/grpcexec"
	"github.com/stitchgql/federate/transport/httpapi"
	"github.com/stitchgql/federate/transport/wsapi"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("stitchgate: loading config: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, FilePath: cfg.LogFilePath})

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	subs, closeConns, err := dialSubschemas(cfg.Subschemas)
	if err != nil {
		log.Fatalf("stitchgate: dialing subschemas: %v", err)
	}
	defer closeConns()

	super, err := superschema.Build(subs)
	if err != nil {
		log.Fatalf("stitchgate: building superschema: %v", err)
	}

	planCache := cache.New(cfg.RedisAddr, 10*time.Minute)

	gw := gateway.New(super, gateway.WithLogger(logger), gateway.WithPlanCache(planCache))
	handler := httpapi.NewHandler(gw, logger)
	wsHandler := wsapi.NewHandler(gw, logger)

	router := handler.Router()
	router.Get("/subscriptions", wsHandler.ServeHTTP)

	logger.Info("stitchgate: listening", "addr", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, router); err != nil {
		log.Fatalf("stitchgate: server failed: %v", err)
	}
}

// dialSubschemas builds one client subschema per configured endpoint over a
// gRPC connection, returning a cleanup func that closes every dialed
// connection.
func dialSubschemas(endpoints []config.SubschemaEndpoint) ([]*subschema.Subschema, func(), error) {
	subs := make([]*subschema.Subschema, 0, len(endpoints))
	conns := make([]*grpc.ClientConn, 0, len(endpoints))

	closeAll := func() {
		for _, cc := range conns {
			cc.Close()
		}
	}

	for _, ep := range endpoints {
		schema, err := schemaload.Load(ep.SchemaPath)
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		cc, err := grpc.Dial(ep.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		conns = append(conns, cc)
		subs = append(subs, grpcexec.NewSubschema(ep.Name, schema, cc))
	}

	return subs, closeAll, nil
}
