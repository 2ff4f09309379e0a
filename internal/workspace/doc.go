// Package workspace reconciles workspace specs against the container engine.
//
// A workspace is one work container, its sidecars, a network and a set of
// volumes, all found again by their computed names. Nothing is stored
// outside the engine: every operation recomputes the ResourceSet and
// inspects what exists.
//
// # Lifecycle
//
//	Absent -> Provisioning -> Running <-> Stopped -> Removed
//
// Create is idempotent. When the work container already exists it is only
// started. A failed step stops the sequence and leaves what was created in
// place; running Create again continues from there.
//
// # Removal
//
// Remove deletes containers, then the network, then the workspace's own
// volumes. Cache volumes and the identity volumes are shared and only Prune
// with all set removes them.
package workspace
