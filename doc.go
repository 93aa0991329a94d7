// Package relayclient is a client SDK for calling AI chat completion
// providers through a developer-operated relay.
//
// The relay holds the real provider API keys; applications never see
// them. Instead, each client instance proves it runs on a genuine
// device via a platform attestation primitive, receives a short-lived
// bearer session, and signs every subsequent request with the attested
// key. The whole lifecycle is managed internally:
//
//	client, err := relayclient.New(ctx, "https://relay.example.com", appID, attestor, ring)
//	if err != nil { ... }
//
//	resp, err := client.CreateChatCompletion(ctx, "openai", relayclient.ChatRequest{
//		Model:    "gpt-4",
//		Messages: []relayclient.ChatMessage{relayclient.UserMessage("Hi")},
//	})
//
// The first call triggers attestation transparently; later calls reuse
// the stored session, and a session the relay rejects is replaced with
// exactly one re-attestation retry before the error surfaces.
//
// Streaming responses arrive as Server-Sent Events and are exposed as a
// Stream with a Next/Current/Err/Close surface:
//
//	stream, err := client.StreamChatCompletion(ctx, "anthropic", req)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//		fmt.Print(stream.Current().Delta.Content)
//	}
//
// Attestation primitives live in the attest package; softattest
// provides a software fallback for development hosts without a secure
// element. Session persistence is pluggable via the keyring package,
// with in-memory, file, and Redis implementations provided.
package relayclient
