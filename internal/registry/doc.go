// Package registry stores installable app packages for the sandbox host.
//
// A package bundles a validated manifest with its JavaScript source so it
// can be launched on demand without re-reading the app directory.
//
// Components:
//   - Store: package CRUD with an in-memory cache over compressed files
//   - Seeder: loads manifest directories and built-in defaults on startup
//
// Storage structure:
//   - One file per package: {store-dir}/{package-id}.pkg.zst
//   - Contents: JSON, zstd compressed
//   - Writes land via temp file and rename
//
// Example usage:
//
//	store, err := registry.NewStore(dir)
//	err = store.Save(pkg)
//	pkg, err := store.Get("hello")
//	catalog := store.ListMetadata()
package registry
