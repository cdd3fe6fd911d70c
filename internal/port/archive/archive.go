// Package archive defines the storage port for GC backups. The GC engine
// calls it best-effort: archival failure never blocks reclaiming a resource.
package archive

import "context"

// Archiver is the port interface for durable backup storage.
type Archiver interface {
	// Archive writes data under the given key.
	Archive(ctx context.Context, key string, data []byte) error
}
