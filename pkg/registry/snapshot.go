package registry

import (
	"sort"
	"time"

	"github.com/marmos91/fileserv/pkg/access/authz"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/identity"
)

// Snapshot is an immutable view of pools, zones and permissions.
//
// Readers obtain one with Registry.Snapshot and evaluate a whole request
// against it, so a concurrent configuration change is either fully visible
// or not at all. Records reachable from a Snapshot must not be modified.
type Snapshot struct {
	// Version increases by one on every published change.
	Version uint64

	// LoadedAt is when the snapshot was built.
	LoadedAt time.Time

	pools       map[string]*models.StoragePool
	zones       map[string]*models.ShareZone
	zonesByName map[string]*models.ShareZone
	permissions map[string][]models.Permission // by zone ID
}

func newSnapshot(version uint64, pools []*models.StoragePool, zones []*models.ShareZone, perms []*models.Permission) *Snapshot {
	s := &Snapshot{
		Version:     version,
		LoadedAt:    time.Now(),
		pools:       make(map[string]*models.StoragePool, len(pools)),
		zones:       make(map[string]*models.ShareZone, len(zones)),
		zonesByName: make(map[string]*models.ShareZone, len(zones)),
		permissions: make(map[string][]models.Permission),
	}
	for _, p := range pools {
		s.pools[p.ID] = p
	}
	for _, z := range zones {
		s.zones[z.ID] = z
		s.zonesByName[z.Name] = z
	}
	for _, p := range perms {
		s.permissions[p.ZoneID] = append(s.permissions[p.ZoneID], *p)
	}
	return s
}

// clone returns a shallow copy with fresh maps, for building the next
// snapshot from this one.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		Version:     s.Version + 1,
		LoadedAt:    time.Now(),
		pools:       make(map[string]*models.StoragePool, len(s.pools)),
		zones:       make(map[string]*models.ShareZone, len(s.zones)),
		zonesByName: make(map[string]*models.ShareZone, len(s.zonesByName)),
		permissions: make(map[string][]models.Permission, len(s.permissions)),
	}
	for k, v := range s.pools {
		next.pools[k] = v
	}
	for k, v := range s.zones {
		next.zones[k] = v
	}
	for k, v := range s.zonesByName {
		next.zonesByName[k] = v
	}
	for k, v := range s.permissions {
		next.permissions[k] = v
	}
	return next
}

func (s *Snapshot) putZone(z *models.ShareZone) {
	if old, ok := s.zones[z.ID]; ok && old.Name != z.Name {
		delete(s.zonesByName, old.Name)
	}
	s.zones[z.ID] = z
	s.zonesByName[z.Name] = z
}

func (s *Snapshot) dropZone(id string) {
	if z, ok := s.zones[id]; ok {
		delete(s.zonesByName, z.Name)
	}
	delete(s.zones, id)
	delete(s.permissions, id)
}

// Pool returns a pool by ID.
func (s *Snapshot) Pool(id string) (*models.StoragePool, bool) {
	p, ok := s.pools[id]
	return p, ok
}

// PoolByName returns a pool by name.
func (s *Snapshot) PoolByName(name string) (*models.StoragePool, bool) {
	for _, p := range s.pools {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Zone returns a zone by ID.
func (s *Snapshot) Zone(id string) (*models.ShareZone, bool) {
	z, ok := s.zones[id]
	return z, ok
}

// ZoneByName returns a zone by name.
func (s *Snapshot) ZoneByName(name string) (*models.ShareZone, bool) {
	z, ok := s.zonesByName[name]
	return z, ok
}

// LookupZone accepts either a zone ID or a zone name.
func (s *Snapshot) LookupZone(ref string) (*models.ShareZone, bool) {
	if z, ok := s.zones[ref]; ok {
		return z, true
	}
	return s.ZoneByName(ref)
}

// ZoneWithPool returns a zone together with its pool.
func (s *Snapshot) ZoneWithPool(ref string) (*models.ShareZone, *models.StoragePool, bool) {
	z, ok := s.LookupZone(ref)
	if !ok {
		return nil, nil, false
	}
	p, ok := s.pools[z.PoolID]
	if !ok {
		return nil, nil, false
	}
	return z, p, true
}

// Pools returns all pools ordered by name.
func (s *Snapshot) Pools() []*models.StoragePool {
	out := make([]*models.StoragePool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Zones returns all zones ordered by name.
func (s *Snapshot) Zones() []*models.ShareZone {
	out := make([]*models.ShareZone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ZonesInPool returns the zones of one pool ordered by name.
func (s *Snapshot) ZonesInPool(poolID string) []*models.ShareZone {
	var out []*models.ShareZone
	for _, z := range s.Zones() {
		if z.PoolID == poolID {
			out = append(out, z)
		}
	}
	return out
}

// Permissions returns the grants of a zone. The slice is shared; do not
// modify it.
func (s *Snapshot) Permissions(zoneID string) []models.Permission {
	return s.permissions[zoneID]
}

// UserZones returns the zones actor can enter, ordered by name.
//
// Administrators see every zone. Everyone else sees enabled zones in
// enabled pools that pass the deny and allow lists; a zone marked not
// browsable is listed only to actors named on its allow lists.
func (s *Snapshot) UserZones(actor identity.Identity) []*models.ShareZone {
	all := s.Zones()
	if actor.IsAdmin {
		return all
	}

	out := make([]*models.ShareZone, 0, len(all))
	for _, z := range all {
		pool, ok := s.pools[z.PoolID]
		if !ok || !pool.Enabled {
			continue
		}
		if authz.EvaluateZone(actor, z, "/") != nil {
			continue
		}
		if !z.Browsable && !authz.OnAllowList(actor, z) {
			continue
		}
		out = append(out, z)
	}
	return out
}
