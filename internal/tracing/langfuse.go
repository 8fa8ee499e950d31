// Package tracing wires optional Langfuse tracing into the eino callback
// chain, so model and embedding calls in the query pipeline show up as traces
// when a Langfuse project is configured.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost targets a locally running Langfuse instance when
// LANGFUSE_HOST is not set.
const defaultHost = "http://localhost:3000"

// Setup builds the Langfuse callback handler when both LANGFUSE_PUBLIC_KEY
// and LANGFUSE_SECRET_KEY are present; otherwise it reports enabled=false
// and tracing stays off. The returned flush function must run before process
// exit or buffered traces are lost.
func Setup() (handler callbacks.Handler, flush func(), enabled bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})
	return handler, flush, true
}
