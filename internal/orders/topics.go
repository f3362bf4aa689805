package orders

const (
	TopicOrderCompleted = "storefront.order.completed"
)

// Partition key = session id, supaya semua event 1 checkout maintain urutan.
func PartitionKey(sessionID string) []byte { return []byte(sessionID) }
