package pipeline

import (
	"context"
	"os"
	"strings"
	"sync"
)

// Feature is a pluggable observer/transformer registered on the pipeline
// (spec §4.7): a storage key, a default config, and an Install function that
// wires handlers onto a Pipeline.
type Feature struct {
	StorageKey    string
	DefaultConfig any
	// Install wires the feature's handlers onto pipeline using config (or
	// DefaultConfig if config is nil). MessageProcessors, if any, must be
	// opened here and closed by Close.
	Install func(pipeline *Pipeline, config any) error
	// Close releases any resources Install opened (message processor
	// lifecycle). May be nil.
	Close func(ctx context.Context) error
	// Forbidden event filters: the Debugger system feature must observe
	// every event unfiltered.
	ForbidsFiltering bool
}

// Registry tracks installed features for a single pipeline instance, so
// uninstalling a feature can both unsubscribe its handlers and close its
// message processors exactly once.
type Registry struct {
	mu        sync.Mutex
	pipeline  *Pipeline
	installed map[string]Feature
}

// NewRegistry constructs a feature Registry bound to pipeline.
func NewRegistry(pipeline *Pipeline) *Registry {
	return &Registry{pipeline: pipeline, installed: make(map[string]Feature)}
}

// Install installs feature with config (DefaultConfig if config is nil)
// unless a feature with the same StorageKey is already installed, in which
// case Install is a no-op (idempotent per spec's prepareAllFeatures
// contract).
func (r *Registry) Install(feature Feature, config any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.installed[feature.StorageKey]; ok {
		return nil
	}
	if config == nil {
		config = feature.DefaultConfig
	}
	if err := feature.Install(r.pipeline, config); err != nil {
		return err
	}
	r.installed[feature.StorageKey] = feature
	return nil
}

// IsInstalled reports whether storageKey has already been installed.
func (r *Registry) IsInstalled(storageKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.installed[storageKey]
	return ok
}

// Uninstall unsubscribes the feature's handlers from the pipeline and closes
// its message processors. Idempotent.
func (r *Registry) Uninstall(ctx context.Context, storageKey string) error {
	r.mu.Lock()
	feature, ok := r.installed[storageKey]
	if ok {
		delete(r.installed, storageKey)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	r.pipeline.Unsubscribe(storageKey)
	if feature.Close != nil {
		return feature.Close(ctx)
	}
	return nil
}

// CloseAll closes every installed feature's message processors and clears
// the registry (closeAllFeaturesMessageProcessors in §4.7). Idempotent.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	keys := make([]string, 0, len(r.installed))
	for k := range r.installed {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	var firstErr error
	for _, k := range keys {
		if err := r.Uninstall(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// KoogFeaturesEnvVar is the process-wide environment variable signal naming
// system features to auto-install (spec §6).
const KoogFeaturesEnvVar = "KOOG_FEATURES"

// KoogFeaturesVMOption is the process-wide equivalent of a JVM system
// property; Go has no such mechanism, so it is modeled as a package-level
// variable an embedder may set before PrepareAllFeatures runs. Read once,
// per spec's "global state" design note.
var KoogFeaturesVMOption string

// SystemFeatures is the registry of recognized system features, keyed by
// the name used in KOOG_FEATURES / KoogFeaturesVMOption. DebuggerFeatureKey
// must always be present.
var SystemFeatures = map[string]Feature{}

const DebuggerFeatureKey = "Debugger"

func init() {
	SystemFeatures[DebuggerFeatureKey] = Feature{
		StorageKey:       DebuggerFeatureKey,
		ForbidsFiltering: true,
		Install: func(p *Pipeline, _ any) error {
			// The Debugger observes every event with no filter (forbidden to
			// be filtered); a no-op handler is wired here since this module
			// leaves the concrete sink (log/exporter) to the embedder, who
			// can register additional unfiltered handlers under the same key.
			p.SubscribeUnfiltered(DebuggerFeatureKey, HandlerFunc(func(context.Context, Event) error { return nil }))
			return nil
		},
	}
}

// ParseFeatureNames splits a comma-separated feature-name list, trimming
// whitespace and dropping empty entries.
func ParseFeatureNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// PrepareAllFeatures runs prepareAllFeatures (spec §4.7): it reads the two
// process-wide signals once, auto-installs every recognized system feature
// named there (unless already installed), and reports unknown names via
// onUnknownFeature (may be nil to ignore). Idempotent: installing an
// already-installed feature is a no-op.
func PrepareAllFeatures(registry *Registry, onUnknownFeature func(name string)) error {
	names := append(ParseFeatureNames(os.Getenv(KoogFeaturesEnvVar)), ParseFeatureNames(KoogFeaturesVMOption)...)
	for _, name := range names {
		feature, ok := SystemFeatures[name]
		if !ok {
			if onUnknownFeature != nil {
				onUnknownFeature(name)
			}
			continue
		}
		if err := registry.Install(feature, nil); err != nil {
			return err
		}
	}
	return nil
}
