package redis

const (
	// KeyPrefix is the prefix of every key written by the store
	KeyPrefix = "serverlist:"
)

// ListKey returns the Redis key holding the server list saved under tag
func ListKey(tag string) string {
	return KeyPrefix + "list:" + tag
}
