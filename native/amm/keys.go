package amm

func poolKey(id, suffix string) []byte {
	return []byte("amm/" + id + "/" + suffix)
}

func stateKey(id string) []byte { return poolKey(id, "state") }

func providerIndexKey(id string) []byte { return poolKey(id, "lps") }

func lpKey(id string, owner []byte) []byte {
	prefix := poolKey(id, "lp/")
	buf := make([]byte, len(prefix)+len(owner))
	copy(buf, prefix)
	copy(buf[len(prefix):], owner)
	return buf
}
