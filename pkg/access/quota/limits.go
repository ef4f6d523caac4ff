package quota

import "github.com/marmos91/fileserv/pkg/registry"

// RegistryLimits resolves limits from the registry's current snapshot, so
// quota edits apply to the next reservation without restarting the
// tracker. Unknown pools are unlimited.
func RegistryLimits(reg *registry.Registry) LimitSource {
	return LimitFunc(func(subject Subject, poolID, zoneID string) Limit {
		snap := reg.Snapshot()
		pool, ok := snap.Pool(poolID)
		if !ok {
			return Limit{}
		}
		zone, _ := snap.Zone(zoneID)
		return EffectiveLimit(subject, pool, zone)
	})
}
