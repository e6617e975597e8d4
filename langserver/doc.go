// Package langserver drives external language analyzers over stdio JSON-RPC.
//
// It contains the byte-framed wire transport, the subprocess supervisor with
// its initialize/initialized handshake and open-document tracking, the
// recursive workspace watcher that keeps the analyzer's view of the
// workspace synchronized with disk, and the data-only per-language analyzer
// records. It does not implement a language analyzer itself; it only speaks
// the protocol to one already running.
package langserver
