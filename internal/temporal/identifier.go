package temporal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// maxIdentifierLen is the Postgres NAMEDATALEN-1 limit.
const maxIdentifierLen = 63

// truncateIdentifier shortens identifiers that exceed the Postgres limit by
// truncation plus a short content hash, so repeated builds derive the same
// name for the same input.
func truncateIdentifier(ident string) string {
	if len(ident) <= maxIdentifierLen {
		return ident
	}
	sum := md5.Sum([]byte(ident))
	digest := hex.EncodeToString(sum[:])
	return fmt.Sprintf("%s_%s", ident[:maxIdentifierLen-8], digest[len(digest)-4:])
}
