package rebase

var (
	ledgerStateKey     = []byte("rebase/state")
	accountIndexKey    = []byte("rebase/accounts")
	shareAccountPrefix = []byte("rebase/account/")
)

func shareAccountKey(owner []byte) []byte {
	buf := make([]byte, len(shareAccountPrefix)+len(owner))
	copy(buf, shareAccountPrefix)
	copy(buf[len(shareAccountPrefix):], owner)
	return buf
}
