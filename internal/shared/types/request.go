package types

// BuildRequest asks for a full artifact: runtime preamble plus rewritten source
type BuildRequest struct {
	Source  string   `json:"source" binding:"required"`
	Label   string   `json:"label" binding:"required"`
	Modules []string `json:"modules"`
	Token   *string  `json:"token,omitempty"`
}

// TransformRequest asks for source rewriting under an existing token
type TransformRequest struct {
	Source string `json:"source"`
	Label  string `json:"label" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

// RuntimeRequest asks for the generated runtime preamble alone
type RuntimeRequest struct {
	Token   string   `json:"token" binding:"required"`
	Modules []string `json:"modules"`
}

// AuditRequest asks for an escape scan of already-transformed output
type AuditRequest struct {
	Source string `json:"source"`
	Token  string `json:"token" binding:"required"`
}

// LaunchRequest starts an instance from inline source or an installed package
type LaunchRequest struct {
	Source    string   `json:"source,omitempty"`
	Label     string   `json:"label,omitempty"`
	PackageID string   `json:"package_id,omitempty"`
	Modules   []string `json:"modules,omitempty"`
	TimeoutMS int64    `json:"timeout_ms,omitempty"`
}

// InstallRequest installs a package from an inline manifest or a remote URL
type InstallRequest struct {
	Manifest string `json:"manifest,omitempty"`
	Source   string `json:"source,omitempty"`
	URL      string `json:"url,omitempty"`
}

// WSMessage represents an inbound WebSocket message
type WSMessage struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id,omitempty"`
}

// Event is one notification pushed to stream subscribers
type Event struct {
	Type       string      `json:"type"`
	InstanceID string      `json:"instance_id,omitempty"`
	Label      string      `json:"label,omitempty"`
	State      State       `json:"state,omitempty"`
	Detail     interface{} `json:"detail,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}
