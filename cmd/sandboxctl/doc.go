// Package main is the sandboxctl tooling CLI.
//
// sandboxctl exposes the sandbox pipeline stages individually: minting
// tokens, transforming source, generating runtime preambles, auditing
// transformed output, and running scripts locally without the host
// server.
//
// Usage:
//
//	# Mint a token and inspect what a script compiles to
//	sandboxctl token
//	sandboxctl build -label clock -modules tsyne/runtime clock.js
//
//	# Pipe source through the transformer under a fixed token
//	cat app.js | sandboxctl transform -token $TOKEN
//
//	# Gate a CI step on the auditor (exit 1 when warnings exist)
//	sandboxctl audit -token $TOKEN compiled.js
//
//	# Execute locally with a tight budget
//	sandboxctl run -timeout 2s -modules tsyne/runtime app.js
package main
