// Package appsettings reconciles remote application settings with a desired
// key-value map.
package appsettings

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/wenwu/saas-platform/trialapp-service/internal/client"
)

// Source hands out a settings client. *session.Client implements it.
type Source interface {
	Settings() (client.SettingsAPI, error)
}

// Adapter reads and writes the application settings of a session
type Adapter struct {
	source Source
}

// NewAdapter creates an adapter bound to source
func NewAdapter(source Source) *Adapter {
	return &Adapter{source: source}
}

// List returns the full remote settings map
func (a *Adapter) List(ctx context.Context) (map[string]string, error) {
	api, err := a.source.Settings()
	if err != nil {
		return nil, err
	}
	return api.List(ctx)
}

// Update makes the remote settings equal to desired.
//
// Keys present remotely but missing from desired are deleted one by one,
// then desired is posted in full. Deletes always run before the upsert so a
// key whose value changed is never removed. The first failing call aborts
// the update and its error is returned.
//
// The returned map is desired itself; it is not read back from the endpoint.
// Callers must carry forward any key they want to keep.
func (a *Adapter) Update(ctx context.Context, desired map[string]string) (map[string]string, error) {
	api, err := a.source.Settings()
	if err != nil {
		return nil, err
	}

	current, err := api.List(ctx)
	if err != nil {
		return nil, err
	}

	removed := RemovedKeys(current, desired)
	for _, key := range removed {
		if err := api.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("reconcile settings: %w", err)
		}
	}

	if err := api.Upsert(ctx, desired); err != nil {
		return nil, fmt.Errorf("reconcile settings: %w", err)
	}

	log.Printf("[AppSettings] Settings updated: %d kept, %d removed", len(desired), len(removed))
	return desired, nil
}

// RemovedKeys returns, sorted, the keys of current that desired does not have.
func RemovedKeys(current, desired map[string]string) []string {
	var removed []string
	for key := range current {
		if _, ok := desired[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	return removed
}
