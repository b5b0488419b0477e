package scope

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crewline/foreman/internal/domain"
	"github.com/crewline/foreman/internal/errors"
)

// Lease is an exclusive grant over a set of resources. It is held by
// exactly one task and returned to the registry on release.
type Lease struct {
	TaskID    domain.TaskID
	Resources []string
	GrantedAt time.Time

	released bool
}

// Registry tracks which resources are exclusively leased by running
// tasks. All methods are safe for concurrent use, though the controller
// drives it single-threaded in practice.
type Registry struct {
	mu     sync.Mutex
	leases map[domain.TaskID]*Lease
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		leases: make(map[domain.TaskID]*Lease),
	}
}

// Normalize cleans, dedupes, and sorts a resource set so equal scope
// sets compare equal regardless of declaration order or trailing
// slashes. Resources that are not paths (feature names) pass through
// unchanged apart from whitespace trimming.
func Normalize(resources []string) []string {
	seen := make(map[string]bool, len(resources))
	out := make([]string, 0, len(resources))
	for _, resource := range resources {
		resource = strings.TrimSpace(resource)
		if resource == "" {
			continue
		}
		resource = path.Clean(resource)
		if seen[resource] {
			continue
		}
		seen[resource] = true
		out = append(out, resource)
	}
	sort.Strings(out)
	return out
}

// Claim grants an exclusive lease over the requested resources, or
// fails with a ConflictError naming the holding task and the exact
// overlap. A task that already holds a lease replaces it, so re-claiming
// never conflicts with itself.
func (r *Registry) Claim(taskID domain.TaskID, resources []string) (*Lease, error) {
	normalized := Normalize(resources)
	if len(normalized) == 0 {
		return nil, errors.New(errors.ErrCodeScopeEmpty, "scope set cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for holder, lease := range r.leases {
		if holder.Equals(taskID) {
			continue
		}
		if overlap := intersect(normalized, lease.Resources); len(overlap) > 0 {
			return nil, &ConflictError{
				RequestingTaskID: taskID,
				HolderTaskID:     holder,
				Overlapping:      overlap,
			}
		}
	}

	lease := &Lease{
		TaskID:    taskID,
		Resources: normalized,
		GrantedAt: time.Now().UTC(),
	}
	r.leases[taskID] = lease
	return lease, nil
}

// Release returns a lease's resources to the pool. Releasing an already
// released or nil lease is a no-op.
func (r *Registry) Release(lease *Lease) {
	if lease == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if lease.released {
		return
	}
	// Only remove the registry entry if this lease is still the live
	// one; the task may have re-claimed since.
	if current, ok := r.leases[lease.TaskID]; ok && current == lease {
		delete(r.leases, lease.TaskID)
	}
	lease.released = true
}

// ReleaseTask drops whatever lease the task holds. It reports whether a
// lease existed. Resume uses this when reclaiming orphaned tasks, where
// no lease handle survived the restart.
func (r *Registry) ReleaseTask(taskID domain.TaskID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	lease, ok := r.leases[taskID]
	if !ok {
		return false
	}
	lease.released = true
	delete(r.leases, taskID)
	return true
}

// Request is one entry of a batch conflict pre-check
type Request struct {
	TaskID domain.TaskID
	Scope  []string
}

// ConflictsIn checks a batch of admission candidates for overlap, both
// pairwise within the batch and against live leases, without granting
// anything. The scheduler runs this before admitting a parallel group so
// overlap is caught before any ticket starts running. Conflicts are
// reported in a deterministic order.
func (r *Registry) ConflictsIn(requests []Request) []*ConflictError {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conflicts []*ConflictError

	normalized := make([][]string, len(requests))
	for i, req := range requests {
		normalized[i] = Normalize(req.Scope)
	}

	for i, req := range requests {
		for holder, lease := range r.leases {
			if holder.Equals(req.TaskID) {
				continue
			}
			if overlap := intersect(normalized[i], lease.Resources); len(overlap) > 0 {
				conflicts = append(conflicts, &ConflictError{
					RequestingTaskID: req.TaskID,
					HolderTaskID:     holder,
					Overlapping:      overlap,
				})
			}
		}
		for j := i + 1; j < len(requests); j++ {
			if overlap := intersect(normalized[i], normalized[j]); len(overlap) > 0 {
				conflicts = append(conflicts, &ConflictError{
					RequestingTaskID: requests[j].TaskID,
					HolderTaskID:     requests[i].TaskID,
					Overlapping:      overlap,
				})
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].RequestingTaskID != conflicts[j].RequestingTaskID {
			return conflicts[i].RequestingTaskID < conflicts[j].RequestingTaskID
		}
		return conflicts[i].HolderTaskID < conflicts[j].HolderTaskID
	})
	return conflicts
}

// LiveResources returns every currently leased resource, sorted
func (r *Registry) LiveResources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, lease := range r.leases {
		out = append(out, lease.Resources...)
	}
	sort.Strings(out)
	return out
}

// HolderOf reports which task holds a lease covering the resource
func (r *Registry) HolderOf(resource string) (domain.TaskID, bool) {
	cleaned := path.Clean(strings.TrimSpace(resource))

	r.mu.Lock()
	defer r.mu.Unlock()

	for holder, lease := range r.leases {
		for _, res := range lease.Resources {
			if res == cleaned {
				return holder, true
			}
		}
	}
	return "", false
}

// LeaseCount returns how many leases are live
func (r *Registry) LeaseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leases)
}

// intersect returns the common elements of two sorted string sets
func intersect(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
