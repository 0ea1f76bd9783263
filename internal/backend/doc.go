// Package backend talks to the image generation server: it submits job
// graphs, polls job history, downloads finished artifacts, asks the server to
// interrupt work, and opens the websocket the server streams progress on.
//
//   - client.go: Client, Options, Endpoints and the HTTP calls.
//   - types.go: wire types (History, ArtifactRef, Event).
//   - workflow.go: job-graph templates and parameter substitution.
//   - stream.go: websocket progress stream.
//   - errors.go: typed errors for submission, execution and download failures.
//
// The package is stateless apart from the HTTP client; orchestration lives in
// the manager package.
package backend
