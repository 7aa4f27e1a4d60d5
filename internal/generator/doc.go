// Package generator is the boundary to the external text-generation
// service.
//
// OllamaClient talks to an Ollama daemon over HTTP. Generation is
// single-flight: a call waits for the lock up to LockTimeout and then fails
// with ErrLockTimeout. Requests are rate limited, retried with exponential
// backoff on transient failures, and answered from an LRU of recent
// responses when the same prompt is sent twice.
//
// BuildFileInput assembles the bounded context for one file from its
// FileMemory, its RelevantMemory and its source chunks. The more memory a
// file pulls in, the fewer chunks and characters it keeps:
//
//	pressure = symbols + imports + RelevantMemory.Pressure()
//	> 200: fewer chunks, shorter chunks, top-K halved
//	> 350: fewer and shorter again
//
// Summarizer ties both together and falls back to the compact profile once
// when the backend fails transiently or answers with a refusal.
package generator
