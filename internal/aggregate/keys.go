package aggregate

const (
	KeyCursor      = "presale:cursor"
	KeyLeaderboard = "presale:leaderboard"
	KeyLastSeen    = "presale:lastseen"
	KeyRecent      = "presale:recent"
	KeyTotalDrops  = "presale:total:drops"
	KeyTotalCount  = "presale:total:count"
	KeyTotalXRP    = "presale:total:xrp"
	KeySnapshot    = "presale:snapshot:current"

	fieldDrops = "drops"
	fieldCount = "count"
)

// TxKey marks a payment hash as applied.
func TxKey(hash string) string { return "presale:tx:" + hash }

func AddrKey(address string) string { return "presale:addr:" + address }

func LockKey(destination string) string { return "presale:lock:ingest:" + destination }
