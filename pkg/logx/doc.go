// Package logx configures jobbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// Configuration is applied once at startup; there is no hot reload.
package logx
