// Package fetch downloads remote app sources for registry installs.
//
// Downloads retry transient failures, refuse anything that is not UTF-8
// text, and stop reading at the configured size cap. Origins that fail
// repeatedly are cut off per host until a cooldown passes. The host
// keeps this surface disabled unless configuration turns it on.
package fetch
