package types

import "time"

// Package represents an installed app package
type Package struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Version     string        `json:"version"`
	Author      string        `json:"author"`
	Tags        []string      `json:"tags,omitempty"`
	Modules     []string      `json:"modules"`
	Timeout     time.Duration `json:"timeout_ns"`
	Source      string        `json:"source"`
	Digest      string        `json:"digest"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PackageMetadata contains summary information about a package
type PackageMetadata struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags,omitempty"`
	Modules     []string  `json:"modules"`
	Digest      string    `json:"digest"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToMetadata extracts metadata from a package
func (p *Package) ToMetadata() PackageMetadata {
	return PackageMetadata{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		Author:      p.Author,
		Tags:        p.Tags,
		Modules:     p.Modules,
		Digest:      p.Digest,
		CreatedAt:   p.CreatedAt,
	}
}

// StoreStats contains package store statistics
type StoreStats struct {
	TotalPackages int        `json:"total_packages"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}
