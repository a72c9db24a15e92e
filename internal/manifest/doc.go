// Package manifest parses YAML app manifests into registry packages.
//
// A manifest names the app, declares the modules its sandbox may load,
// and optionally caps its execution time. Parse validates every field
// against the shared rules before anything reaches the registry, so a
// stored package is always launchable as-is.
package manifest
