package lib_test

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/slok/imagegen/pkg/lib"
)

// This example shows a full session using the fake engine.
func Example_session() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "imagegen-example-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	client, err := lib.New(lib.Config{
		DataDir: dir,
		Engine:  lib.EngineFake,
	})
	if err != nil {
		panic(err)
	}

	session, err := client.StartSession(ctx, lib.StartSessionOpts{
		ID: "article-42",
		Items: []lib.WorkItem{
			{Position: "header", Prompt: "a lighthouse at dawn"},
			{Position: "conclusion", Prompt: "a night sky", Parameters: lib.Parameters{Steps: 50}},
		},
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Started: %s (status: %s)\n", session.ID, session.Status)

	outcome, err := client.Resume(ctx, nil)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Finished: %s (status: %s, generated: %d)\n", outcome.Session.ID, outcome.Session.Status, outcome.Session.CompletedCount)

	// Output:
	// Started: article-42 (status: pending)
	// Finished: article-42 (status: completed, generated: 2)
}

// This example shows how to check the SDK errors.
func Example_errorHandling() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "imagegen-example-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	client, err := lib.New(lib.Config{DataDir: dir, Engine: lib.EngineFake})
	if err != nil {
		panic(err)
	}

	_, err = client.Resume(ctx, nil)
	if errors.Is(err, lib.ErrNoActiveSession) {
		fmt.Println("Nothing to resume")
	}

	// Output:
	// Nothing to resume
}
