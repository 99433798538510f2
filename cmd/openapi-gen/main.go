// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/pipeline"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/server"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	doc, err := generateDocument()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/cloudclip.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing document: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// generateDocument registers every route on a throwaway server and returns
// the OpenAPI document huma builds from the handler types.
func generateDocument() ([]byte, error) {
	tracker, err := pipeline.NewHealthTracker(pipeline.DefaultHealthCooldown)
	if err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating health tracker")
	}

	svc, err := server.NewServices(stubRefresher{}, "textdb",
		server.WithHealth(tracker),
		server.WithRegistry(prometheus.NewRegistry()),
	)
	if err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, cliperr.Errorf(cliperr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stubRefresher is never called during generation.
type stubRefresher struct{}

func (stubRefresher) Dispatch(context.Context, trigger.Action) (pipeline.Outcome, bool) {
	return pipeline.Outcome{}, false
}

func (stubRefresher) Last() (pipeline.Outcome, int64, bool) { return pipeline.Outcome{}, 0, false }
