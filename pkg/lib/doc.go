// Package lib provides a Go SDK to run resumable image generation sessions
// programmatically.
//
// This package allows applications to start, resume, and inspect generation
// sessions without shelling out to the imagegen CLI binary. It shares the data
// directory layout with the CLI, so a session started with the SDK can be inspected
// or resumed with the CLI and the other way around.
//
// # Quick Start
//
// Create a client, start a session and process it:
//
//	client, err := lib.New(lib.Config{
//	    Engine:  lib.EngineCommand,
//	    Command: []string{"python", "generate.py", "--prompt", "{{prompt}}", "--output", "{{output}}"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := client.StartSession(ctx, lib.StartSessionOpts{
//	    ID: "article-42",
//	    Items: []lib.WorkItem{
//	        {Position: "header", Prompt: "a lighthouse at dawn"},
//	        {Position: "conclusion", Prompt: "a night sky"},
//	    },
//	})
//
//	outcome, err := client.Resume(ctx, nil)
//
// # Resuming
//
// Every processed item is checkpointed before the next one starts. If the process
// dies, calling [Client.Resume] again continues at the first unprocessed item. A
// graceful stop can be requested with [ResumeOpts].Stop, the in-flight item is
// finished before returning. Cancelling the context abandons the in-flight item,
// it will be generated again on the next resume.
//
// # Engines
//
//   - [EngineCommand]: Runs an external generator program for every item.
//   - [EngineDocker]: Runs a generator container for every item.
//   - [EngineFake]: Renders flat color images, for tests.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrAlreadyRunning]: Another live process holds the instance lock.
//   - [ErrNoActiveSession]: There is no session to resume.
//   - [ErrCorruptCheckpoint]: The checkpoint exists but is not valid, it's never repaired.
//   - [ErrNotValid]: Invalid input.
//   - [ErrNotRunning]: There is no supervisor to stop.
//
// # Thread Safety
//
// Only one process can run a session for a data directory at a time. A [Client]
// must not run concurrent resumes.
package lib
