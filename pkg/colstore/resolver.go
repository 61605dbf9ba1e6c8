package colstore

// PartitionColumnName is the single logical partitioning column declared
// by the resolver.
const PartitionColumnName = "PARTITIONID"

// ColumnPartitionResolver routes a ColumnKey to its partition. All
// columns of a batch share the batch's partition id, so the resolver
// colocates an entire row batch on one member.
type ColumnPartitionResolver struct {
	masterRegionPath string
}

// NewColumnPartitionResolver creates a resolver. masterRegionPath names
// the colocated master region, if any.
func NewColumnPartitionResolver(masterRegionPath string) *ColumnPartitionResolver {
	return &ColumnPartitionResolver{masterRegionPath: masterRegionPath}
}

// RoutingObject returns the routing object for a key.
func (r *ColumnPartitionResolver) RoutingObject(k ColumnKey) int32 {
	return k.RoutingObject()
}

// PartitioningColumns returns the declared partitioning column names.
func (r *ColumnPartitionResolver) PartitioningColumns() []string {
	return []string{PartitionColumnName}
}

// MasterRegionPath returns the colocated master region path, or empty.
func (r *ColumnPartitionResolver) MasterRegionPath() string {
	return r.masterRegionPath
}

// Close implements the resolver lifecycle; it has nothing to release.
func (r *ColumnPartitionResolver) Close() error {
	return nil
}
