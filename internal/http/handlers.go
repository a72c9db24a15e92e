package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tsyne-dev/tsyne-host/internal/app"
	"github.com/tsyne-dev/tsyne-host/internal/fetch"
	"github.com/tsyne-dev/tsyne-host/internal/manifest"
	"github.com/tsyne-dev/tsyne-host/internal/monitoring"
	"github.com/tsyne-dev/tsyne-host/internal/registry"
	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	apps    *app.Manager
	store   *registry.Store
	tokens  *sandbox.Registry
	fetcher *fetch.Client // nil while remote installs are disabled
	metrics *monitoring.Metrics
	version string
}

// NewHandlers creates a new handler set
func NewHandlers(
	apps *app.Manager,
	store *registry.Store,
	tokens *sandbox.Registry,
	fetcher *fetch.Client,
	version string,
) *Handlers {
	return &Handlers{
		apps:    apps,
		store:   store,
		tokens:  tokens,
		fetcher: fetcher,
		version: version,
	}
}

// WithMetrics attaches a metrics collector.
func (h *Handlers) WithMetrics(m *monitoring.Metrics) *Handlers {
	h.metrics = m
	return h
}

// Root handles the banner health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "tsyne host",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"instances": h.apps.Stats(),
		"registry":  h.store.Stats(),
		"tokens":    gin.H{"active": h.tokens.Len()},
		"fetch":     gin.H{"enabled": h.fetcher != nil},
	})
}

// BuildSandbox transforms source and wraps it with its runtime preamble
func (h *Handlers) BuildSandbox(c *gin.Context) {
	var req types.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateLabel(req.Label); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateSource(req.Source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateWhitelist(req.Modules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var art *sandbox.Artifact
	var err error
	if req.Token != nil {
		token, perr := sandbox.ParseToken(*req.Token)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		art, err = sandbox.BuildWithToken(req.Source, req.Label, req.Modules, token)
	} else {
		art, err = sandbox.Build(req.Source, req.Label, req.Modules)
	}
	if err != nil {
		h.respondBuildError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordBuild()
		if req.Token == nil {
			h.metrics.RecordTokenIssued()
		}
	}

	c.JSON(http.StatusOK, art)
}

// TransformSandbox rewrites source under a caller-supplied token
func (h *Handlers) TransformSandbox(c *gin.Context) {
	var req types.TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateLabel(req.Label); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateSource(req.Source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := sandbox.ParseToken(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := sandbox.Transform(req.Source, token)
	if err != nil {
		var te *sandbox.TransformError
		if errors.As(err, &te) {
			te.Label = req.Label
		}
		h.respondBuildError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":  code,
		"label": req.Label,
		"token": token,
	})
}

// RuntimeSandbox returns the generated runtime preamble for a token
func (h *Handlers) RuntimeSandbox(c *gin.Context) {
	var req types.RuntimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := sandbox.ParseToken(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateWhitelist(req.Modules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	whitelist := sandbox.ModuleWhitelist(req.Modules).Normalize()
	c.JSON(http.StatusOK, gin.H{
		"code":      sandbox.GenerateRuntime(token, whitelist),
		"token":     token,
		"whitelist": whitelist,
	})
}

// AuditSandbox scans transformed output for unguarded capability references
func (h *Handlers) AuditSandbox(c *gin.Context) {
	var req types.AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := sandbox.ParseToken(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
		return
	}

	warnings := sandbox.Audit(req.Source, token)
	if warnings == nil {
		warnings = []sandbox.Warning{}
	}
	if h.metrics != nil {
		h.metrics.RecordAuditWarnings(len(warnings))
	}

	c.JSON(http.StatusOK, gin.H{
		"warnings": warnings,
		"count":    len(warnings),
	})
}

// TokenSandbox mints a fresh sandbox token
func (h *Handlers) TokenSandbox(c *gin.Context) {
	token := sandbox.NewToken()
	if h.metrics != nil {
		h.metrics.RecordTokenIssued()
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// LaunchApp starts an instance from inline source or an installed package
func (h *Handlers) LaunchApp(c *gin.Context) {
	var req types.LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PackageID != "" {
		if req.Source != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide source or package_id, not both"})
			return
		}
		h.launchPackage(c, req.PackageID, req.TimeoutMS)
		return
	}
	if req.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source or package_id is required"})
		return
	}

	h.launch(c, app.LaunchSpec{
		Source:  req.Source,
		Label:   req.Label,
		Modules: req.Modules,
		Timeout: time.Duration(req.TimeoutMS) * time.Millisecond,
	})
}

// ListApps lists instances, optionally filtered by state
func (h *Handlers) ListApps(c *gin.Context) {
	var state *types.State
	if param := c.Query("state"); param != "" {
		s := types.State(param)
		if !s.Known() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state: " + param})
			return
		}
		state = &s
	}

	c.JSON(http.StatusOK, gin.H{
		"apps":  h.apps.List(state),
		"stats": h.apps.Stats(),
	})
}

// GetApp returns one instance
func (h *Handlers) GetApp(c *gin.Context) {
	appID := c.Param("id")

	if err := utils.ValidateID(appID, "app_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, ok := h.apps.Get(appID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
		return
	}

	c.JSON(http.StatusOK, inst)
}

// CloseApp closes an instance and destroys its token registration
func (h *Handlers) CloseApp(c *gin.Context) {
	appID := c.Param("id")

	if err := utils.ValidateID(appID, "app_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	success := h.apps.Close(appID)

	c.JSON(http.StatusOK, gin.H{
		"success": success,
		"app_id":  appID,
	})
}

// InstallApp installs a package from an inline manifest plus source
func (h *Handlers) InstallApp(c *gin.Context) {
	var req types.InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Manifest == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manifest is required"})
		return
	}
	m, err := manifest.Parse([]byte(req.Manifest))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source := req.Source
	switch {
	case source != "" && req.URL != "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide source or url, not both"})
		return
	case source == "" && req.URL == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "source or url is required"})
		return
	case source == "":
		if h.fetcher == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "remote install is disabled"})
			return
		}
		source, err = h.fetcher.Download(c.Request.Context(), req.URL)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, fetch.ErrOriginUnavailable) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
	}
	if err := utils.ValidateSource(source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pkg := m.Package(source)
	if err := h.store.Save(pkg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.metrics != nil {
		h.metrics.SetPackagesInstalled(h.store.Len())
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"package_id": pkg.ID,
		"digest":     pkg.Digest,
	})
}

// ListRegistryApps lists the package catalog
func (h *Handlers) ListRegistryApps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"apps":  h.store.ListMetadata(),
		"stats": h.store.Stats(),
	})
}

// GetRegistryApp returns one package including its source
func (h *Handlers) GetRegistryApp(c *gin.Context) {
	packageID := c.Param("id")

	if err := utils.ValidateAppID(packageID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pkg, err := h.store.Get(packageID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}

	c.JSON(http.StatusOK, pkg)
}

// DeleteRegistryApp removes a package from the store
func (h *Handlers) DeleteRegistryApp(c *gin.Context) {
	packageID := c.Param("id")

	if err := utils.ValidateAppID(packageID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Delete(packageID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.metrics != nil {
		h.metrics.SetPackagesInstalled(h.store.Len())
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"package_id": packageID,
	})
}

// LaunchRegistryApp launches an installed package
func (h *Handlers) LaunchRegistryApp(c *gin.Context) {
	h.launchPackage(c, c.Param("id"), 0)
}

// launchPackage resolves an installed package and launches it. A positive
// timeoutMS overrides the package's own budget.
func (h *Handlers) launchPackage(c *gin.Context, packageID string, timeoutMS int64) {
	if err := utils.ValidateAppID(packageID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pkg, err := h.store.Get(packageID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}

	timeout := pkg.Timeout
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}

	pid := pkg.ID
	h.launch(c, app.LaunchSpec{
		Source:    pkg.Source,
		Label:     pkg.ID,
		PackageID: &pid,
		Modules:   pkg.Modules,
		Timeout:   timeout,
		Metadata: map[string]interface{}{
			"package_name":    pkg.Name,
			"package_version": pkg.Version,
		},
	})
}

// launch runs the assembled LaunchSpec and renders the settled instance.
// Execution failures come back as instance state, not HTTP errors.
func (h *Handlers) launch(c *gin.Context, spec app.LaunchSpec) {
	inst, err := h.apps.Launch(c.Request.Context(), spec)
	if err != nil {
		h.respondBuildError(c, err)
		return
	}

	c.JSON(http.StatusOK, inst)
}

// respondBuildError renders build and validation failures. Rejected
// source gets 422 with position info so editors can jump to the fault.
func (h *Handlers) respondBuildError(c *gin.Context, err error) {
	var te *sandbox.TransformError
	if errors.As(err, &te) {
		if h.metrics != nil {
			h.metrics.RecordTransformFailure()
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  te.Error(),
			"label":  te.Label,
			"line":   te.Line,
			"column": te.Column,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
